package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
)

// commandInput is the JSON payload written to a command detector's stdin.
type commandInput struct {
	Window Window `json:"window"`
	Params Params `json:"params"`
}

// Command adapts an external program into a Detector. The analysis window
// and parameters are written to the program's stdin as JSON; the program
// must print a JSON array of {"start", "end"} ranges on stdout. A non-zero
// exit or unparseable output is a detection failure.
func Command(logger *slog.Logger, name string, args ...string) Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, window Window, params Params) ([]RawRange, error) {
		payload, err := json.Marshal(commandInput{Window: window, Params: params})
		if err != nil {
			return nil, fmt.Errorf("encode detector input: %w", err)
		}

		cmd := exec.CommandContext(ctx, name, args...)
		cmd.Stdin = bytes.NewReader(payload)

		out, err := cmd.Output()
		if err != nil {
			return nil, fmt.Errorf("detector command %q: %w", name, err)
		}

		var ranges []RawRange
		if err := json.Unmarshal(out, &ranges); err != nil {
			return nil, fmt.Errorf("decode detector output: %w", err)
		}

		logger.Debug("external detector finished",
			"command", name,
			"ranges", len(ranges),
		)
		return ranges, nil
	}
}

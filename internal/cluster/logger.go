package cluster

import (
	"io"
	"log/slog"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// newNoOpHCLogger creates a no-op hclog.Logger for Raft to avoid excessive logging.
func newNoOpHCLogger() hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:   "raft",
		Level:  hclog.Off,
		Output: io.Discard,
	})
}

// newHCLogger creates an hclog.Logger that forwards Raft's output to slog.
func newHCLogger(logger *slog.Logger, level hclog.Level) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:   "raft",
		Level:  level,
		Output: &slogWriter{logger: logger},
	})
}

// slogWriter adapts an slog.Logger into the io.Writer hclog expects.
type slogWriter struct {
	logger *slog.Logger
}

func (w *slogWriter) Write(p []byte) (int, error) {
	w.logger.Debug(strings.TrimRight(string(p), "\n"), "component", "raft")
	return len(p), nil
}

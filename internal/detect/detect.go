// Package detect integrates external media analysis (black/silence/scene
// detection, keyframe lookup) with the segment store.
//
// Detectors are opaque asynchronous collaborators returning raw time
// ranges. The integrator validates their output, converts it into
// registered segments, and merges it through the store's single write
// path. A single-flight guard keeps a second detection from starting
// while one is outstanding, and the working indicator is cleared on every
// path out, success or failure.
package detect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/agleyzer/trimcut/internal/segment"
	"github.com/agleyzer/trimcut/internal/selection"
	"github.com/agleyzer/trimcut/internal/store"
	"github.com/agleyzer/trimcut/internal/transform"
)

var (
	// ErrNoMediaLoaded is returned when detection is requested before a
	// media timeline with a usable duration is loaded.
	ErrNoMediaLoaded = errors.New("no media loaded")

	// ErrKeyframeNotFound is returned by keyframe lookups that exhaust
	// their search window (about 60 seconds around the requested time)
	// without finding a keyframe.
	ErrKeyframeNotFound = errors.New("no keyframe found near requested time")
)

// Window is the time span a detector analyzes.
type Window struct {
	From float64 `json:"from"`
	To   float64 `json:"to"`
}

// RawRange is a detector's raw output range. Either bound may be absent.
type RawRange struct {
	Start *float64 `json:"start"`
	End   *float64 `json:"end"`
}

// Params configures a detection run.
type Params struct {
	// Threshold is the detector-specific sensitivity.
	Threshold float64 `json:"threshold"`

	// MinDuration drops detected ranges shorter than this many seconds.
	// Zero keeps everything.
	MinDuration float64 `json:"min_duration"`
}

// Detector analyzes media over a window and returns raw ranges. It must
// not mutate shared state; errors propagate as detection failures.
type Detector func(ctx context.Context, window Window, params Params) ([]RawRange, error)

// PromptFunc asks the user for detection parameters. Returning a nil
// Params with a nil error means the user cancelled; the surrounding
// operation treats that as a no-op, not an error.
type PromptFunc func(ctx context.Context) (*Params, error)

// KeyframeMode selects which neighboring keyframe a lookup returns.
type KeyframeMode int

const (
	// KeyframeBackward returns the nearest keyframe at or before the time.
	KeyframeBackward KeyframeMode = iota
	// KeyframeForward returns the nearest keyframe at or after the time.
	KeyframeForward
)

// KeyframeLookup resolves a time to a nearby keyframe time, or fails with
// ErrKeyframeNotFound when none exists within its tolerance window.
type KeyframeLookup func(ctx context.Context, time float64, mode KeyframeMode) (float64, error)

// Integrator funnels asynchronous analysis results into the store.
type Integrator struct {
	store   *store.Store
	logger  *slog.Logger
	running atomic.Bool
	working atomic.Bool
}

// NewIntegrator creates an integrator writing into st.
func NewIntegrator(st *store.Store, logger *slog.Logger) *Integrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Integrator{store: st, logger: logger}
}

// Working reports whether an analysis operation is in progress. Drives the
// caller's progress indicator.
func (g *Integrator) Working() bool {
	return g.working.Load()
}

// Run invokes the detector over the window and merges its validated output
// into the store: appended to the existing collection, or replacing it when
// only the placeholder is present. A second call while one run is
// outstanding is a no-op. On any failure the store is left unchanged.
func (g *Integrator) Run(ctx context.Context, det Detector, window Window, params Params) error {
	if !g.store.Timeline().Loaded() {
		return ErrNoMediaLoaded
	}
	if !g.begin() {
		g.logger.Debug("detection already running, ignoring request")
		return nil
	}
	defer g.end()

	raw, err := det(ctx, window, params)
	if err != nil {
		return fmt.Errorf("detector failed: %w", err)
	}

	valid := filterRanges(raw, params.MinDuration)
	if len(valid) == 0 {
		return store.ErrNoValidSegments
	}
	existing := g.store.Segments()
	live := len(existing)
	if live == 1 && existing[0].IsPlaceholder() {
		live = 0
	}
	if live+len(valid) > g.store.MaxSegments() {
		return store.ErrTooManySegments
	}

	segments := make([]segment.Segment, len(valid))
	for i, r := range valid {
		segments[i] = g.store.Create(r.Start, r.End, "", true)
	}

	if err := g.store.Append(segments); err != nil {
		return err
	}

	g.logger.Info("merged detector output",
		"ranges", len(raw),
		"accepted", len(valid),
		"window_from", window.From,
		"window_to", window.To,
	)
	return nil
}

// RunPrompted asks for parameters first. User cancellation (nil params)
// is a silent no-op.
func (g *Integrator) RunPrompted(ctx context.Context, prompt PromptFunc, det Detector, window Window) error {
	params, err := prompt(ctx)
	if err != nil {
		return fmt.Errorf("parameter prompt failed: %w", err)
	}
	if params == nil {
		g.logger.Debug("detection cancelled by user")
		return nil
	}
	return g.Run(ctx, det, window, *params)
}

// AlignToKeyframes snaps every selected segment's bounds to keyframes:
// starts backward, ends forward. The batch runs through the bounded
// transformer; one failed lookup aborts the whole batch with no commit.
func (g *Integrator) AlignToKeyframes(ctx context.Context, lookup KeyframeLookup, sel *selection.Set, concurrency int) error {
	if !g.store.Timeline().Loaded() {
		return ErrNoMediaLoaded
	}
	if !g.begin() {
		g.logger.Debug("analysis already running, ignoring alignment request")
		return nil
	}
	defer g.end()

	duration := g.store.Duration()
	fn := func(ctx context.Context, seg segment.Segment) (segment.Segment, error) {
		start, err := lookup(ctx, seg.ApparentStart(), KeyframeBackward)
		if err != nil {
			return segment.Segment{}, fmt.Errorf("align start of %q: %w", seg.ID, err)
		}
		end, err := lookup(ctx, seg.ApparentEnd(duration), KeyframeForward)
		if err != nil {
			return segment.Segment{}, fmt.Errorf("align end of %q: %w", seg.ID, err)
		}
		seg.Start = segment.Bound(start)
		seg.End = segment.Bound(end)
		return seg, nil
	}

	return transform.CommitSelected(ctx, g.store, sel, fn, concurrency)
}

// ShiftSelected moves every selected segment by delta seconds through the
// bounded transformer.
func (g *Integrator) ShiftSelected(ctx context.Context, delta float64, sel *selection.Set, concurrency int) error {
	if !g.store.Timeline().Loaded() {
		return ErrNoMediaLoaded
	}
	if !g.begin() {
		g.logger.Debug("analysis already running, ignoring shift request")
		return nil
	}
	defer g.end()

	return transform.CommitSelected(ctx, g.store, sel, transform.Shift(delta, g.store.Duration()), concurrency)
}

// begin acquires the single-flight guard and raises the working indicator.
func (g *Integrator) begin() bool {
	if !g.running.CompareAndSwap(false, true) {
		return false
	}
	g.working.Store(true)
	return true
}

// end releases the guard and clears the working indicator. Deferred by
// every entry point so the indicator clears on all outcomes.
func (g *Integrator) end() {
	g.working.Store(false)
	g.running.Store(false)
}

// filterRanges drops ranges where both bounds are defined with start at or
// past end, where the start is negative, or where the span is shorter than
// minDuration.
func filterRanges(raw []RawRange, minDuration float64) []RawRange {
	var out []RawRange
	for _, r := range raw {
		if r.Start != nil && r.End != nil && *r.Start >= *r.End {
			continue
		}
		if r.Start != nil && *r.Start < 0 {
			continue
		}
		if minDuration > 0 && r.Start != nil && r.End != nil && *r.End-*r.Start < minDuration {
			continue
		}
		out = append(out, r)
	}
	return out
}

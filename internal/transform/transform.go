// Package transform applies an asynchronous per-segment function across the
// selected segments of a collection with a concurrency cap.
//
// Output order always matches input order regardless of completion order:
// each result is written into its original index slot instead of being
// appended as it completes. Deselected segments pass through untouched.
// Any per-segment failure aborts the whole batch; nothing is committed
// partially.
package transform

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/agleyzer/trimcut/internal/interval"
	"github.com/agleyzer/trimcut/internal/segment"
	"github.com/agleyzer/trimcut/internal/selection"
	"github.com/agleyzer/trimcut/internal/store"
)

// DefaultConcurrency is the transform cap used when none is configured.
const DefaultConcurrency = 5

// Func transforms one segment. It receives a private copy and returns the
// replacement. It must respect ctx cancellation; timeouts are the
// transform's own responsibility.
type Func func(ctx context.Context, seg segment.Segment) (segment.Segment, error)

// Apply runs fn over every selected segment, at most concurrency at a time,
// and returns the full collection with deselected segments unchanged and
// results in input order. On any failure the batch is abandoned and the
// first error returned.
func Apply(ctx context.Context, segments []segment.Segment, sel *selection.Set, fn Func, concurrency int) ([]segment.Segment, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	out := make([]segment.Segment, len(segments))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, seg := range segments {
		if !sel.IsSelected(seg.ID) {
			out[i] = seg.Clone()
			continue
		}

		i, seg := i, seg
		g.Go(func() error {
			res, err := fn(gctx, seg.Clone())
			if err != nil {
				return err
			}
			out[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// CommitSelected transforms the store's selected segments via Apply, clamps
// every result to [0, duration], drops results whose clamped end no longer
// exceeds their start, and commits the survivors as one replace-all write.
// When filtering drops everything the store falls back to its placeholder
// state. Transform failure leaves the store untouched.
func CommitSelected(ctx context.Context, st *store.Store, sel *selection.Set, fn Func, concurrency int) error {
	results, err := Apply(ctx, st.Segments(), sel, fn, concurrency)
	if err != nil {
		return err
	}

	duration := st.Duration()
	kept := make([]segment.Segment, 0, len(results))
	for _, r := range results {
		if r.Start != nil {
			r.Start = segment.Bound(interval.Clamp(*r.Start, duration))
		}
		if r.End != nil {
			r.End = segment.Bound(interval.Clamp(*r.End, duration))
		}
		if r.ApparentEnd(duration) <= r.ApparentStart() {
			continue
		}
		kept = append(kept, r)
	}

	return st.ReplaceOrReset(kept)
}

// Shift returns a Func that moves both bounds of a segment by delta
// seconds, resolving unbounded sides first so the shifted segment is fully
// bounded.
func Shift(delta, duration float64) Func {
	return func(_ context.Context, seg segment.Segment) (segment.Segment, error) {
		seg.Start = segment.Bound(seg.ApparentStart() + delta)
		seg.End = segment.Bound(seg.ApparentEnd(duration) + delta)
		return seg, nil
	}
}

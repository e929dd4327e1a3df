// Package interval provides pure functions over sorted, non-overlapping
// segment ranges: complement, overlap merging, splitting and clamping.
//
// All functions resolve undefined bounds to their apparent values
// (0 for start, timeline duration for end) and never mutate their inputs.
package interval

import (
	"math"

	"github.com/agleyzer/trimcut/internal/segment"
)

// Clamp restricts v to the range [0, duration].
func Clamp(v, duration float64) float64 {
	return math.Min(math.Max(v, 0), duration)
}

// Invert returns the complement of the given ranges over [0, duration]:
// a leading range [0, first.start) when the first segment does not begin
// at 0, the gaps between consecutive segments, and a trailing range
// [last.end, duration] when the last segment ends early.
//
// Defined only when the input is sorted by apparent start, overlap-free,
// every segment is valid, and duration is a positive finite number.
// Returns nil otherwise, signaling "cannot invert" to the caller.
func Invert(segments []segment.Segment, duration float64) []segment.Segment {
	if duration <= 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		return nil
	}

	prevEnd := 0.0
	var out []segment.Segment
	for _, s := range segments {
		if !s.Valid(duration) {
			return nil
		}
		start := s.ApparentStart()
		end := s.ApparentEnd(duration)
		if start < prevEnd {
			// Overlapping or unsorted input
			return nil
		}
		if start > prevEnd {
			out = append(out, segment.Segment{
				Start: segment.Bound(prevEnd),
				End:   segment.Bound(start),
			})
		}
		prevEnd = end
	}

	if prevEnd < duration {
		out = append(out, segment.Segment{
			Start: segment.Bound(prevEnd),
			End:   segment.Bound(duration),
		})
	}

	if out == nil {
		// The input covers [0, duration] exactly; the complement is empty
		// but well-defined.
		out = []segment.Segment{}
	}
	return out
}

// MergeOverlapping folds each segment into its predecessor whenever its
// apparent start is at or before the predecessor's apparent end, extending
// the predecessor's end to the later of the two. The earlier segment's
// metadata (ID, name, tags, color) is retained.
//
// Input must be sorted by apparent start. The result is never longer than
// the input, and the function is idempotent.
func MergeOverlapping(segments []segment.Segment, duration float64) []segment.Segment {
	if len(segments) == 0 {
		return []segment.Segment{}
	}

	out := make([]segment.Segment, 0, len(segments))
	out = append(out, segments[0].Clone())

	for _, s := range segments[1:] {
		last := &out[len(out)-1]
		if s.ApparentStart() <= last.ApparentEnd(duration) {
			if s.ApparentEnd(duration) > last.ApparentEnd(duration) {
				if s.End == nil {
					last.End = nil
				} else {
					last.End = segment.Bound(*s.End)
				}
			}
			continue
		}
		out = append(out, s.Clone())
	}

	return out
}

// SplitAt divides a segment at cursor into [start, cursor] and
// [cursor, end]. Both halves inherit the tags; when the segment has a
// name, the halves are suffixed " 1" and " 2". The left half keeps the
// segment's identity; the right half is returned without an ID and must
// be registered by the store.
//
// Valid only when apparent start < cursor < apparent end; ok is false
// otherwise.
func SplitAt(s segment.Segment, cursor, duration float64) (left, right segment.Segment, ok bool) {
	if !(s.ApparentStart() < cursor && cursor < s.ApparentEnd(duration)) {
		return segment.Segment{}, segment.Segment{}, false
	}

	left = s.Clone()
	left.End = segment.Bound(cursor)

	right = s.Clone()
	right.ID = ""
	right.Start = segment.Bound(cursor)

	if s.Name != "" {
		left.Name = s.Name + " 1"
		right.Name = s.Name + " 2"
	}

	return left, right, true
}

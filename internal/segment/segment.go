// Package segment defines the data model for labeled time ranges on a media timeline.
package segment

import (
	"math"

	"github.com/google/uuid"
)

// Segment represents a single labeled time range over the media timeline.
type Segment struct {
	// ID is an opaque unique identifier, assigned at creation and stable
	// for the segment's lifetime. IDs are never reused.
	ID string

	// ColorIndex comes from a monotonically increasing per-session counter
	// and is used only for deterministic color presentation ordering.
	ColorIndex int

	// Start is the start time in seconds. Nil means unbounded on that side,
	// resolved to 0 at read time.
	Start *float64

	// End is the end time in seconds. Nil means unbounded on that side,
	// resolved to the timeline duration at read time.
	End *float64

	// Name is an optional label.
	Name string

	// Tags is an unordered string-to-string mapping.
	Tags map[string]string
}

// Bound returns a pointer to v, for setting Start/End literals.
func Bound(v float64) *float64 {
	return &v
}

// New builds a segment with a fresh ID and the given color index.
func New(start, end *float64, name string, colorIndex int) Segment {
	return Segment{
		ID:         uuid.NewString(),
		ColorIndex: colorIndex,
		Start:      start,
		End:        end,
		Name:       name,
	}
}

// NewPlaceholder returns the initial segment with both bounds unbounded.
// It is the only segment allowed to have both Start and End undefined,
// and only when it is the sole segment in the collection.
func NewPlaceholder() Segment {
	return Segment{
		ID:         uuid.NewString(),
		ColorIndex: 0,
	}
}

// IsPlaceholder reports whether both bounds are undefined.
func (s Segment) IsPlaceholder() bool {
	return s.Start == nil && s.End == nil
}

// ApparentStart resolves the start bound, treating nil as 0.
func (s Segment) ApparentStart() float64 {
	if s.Start == nil {
		return 0
	}
	return *s.Start
}

// ApparentEnd resolves the end bound, treating nil as the timeline duration.
func (s Segment) ApparentEnd(duration float64) float64 {
	if s.End == nil {
		return duration
	}
	return *s.End
}

// Valid reports whether the segment's apparent start precedes its apparent
// end. Invalid segments are excluded from interval algebra but remain
// visible and editable.
func (s Segment) Valid(duration float64) bool {
	start := s.ApparentStart()
	end := s.ApparentEnd(duration)
	if math.IsNaN(start) || math.IsNaN(end) {
		return false
	}
	return start < end
}

// Clone returns a deep copy, including the tag map.
func (s Segment) Clone() Segment {
	out := s
	if s.Start != nil {
		v := *s.Start
		out.Start = &v
	}
	if s.End != nil {
		v := *s.End
		out.End = &v
	}
	if s.Tags != nil {
		out.Tags = make(map[string]string, len(s.Tags))
		for k, v := range s.Tags {
			out.Tags[k] = v
		}
	}
	return out
}

// CloneAll deep-copies a slice of segments.
func CloneAll(segments []Segment) []Segment {
	out := make([]Segment, len(segments))
	for i, s := range segments {
		out[i] = s.Clone()
	}
	return out
}

// IDs returns the segment IDs in collection order.
func IDs(segments []Segment) []string {
	ids := make([]string, len(segments))
	for i, s := range segments {
		ids[i] = s.ID
	}
	return ids
}

// Package selection tracks which segments are excluded from "selected"
// operations.
//
// Selection is stored as a sparse exception map keyed by segment ID:
// only deselected IDs are present, so newly created segments are selected
// by default and selecting everything is an O(1) reset.
package selection

import (
	"sync"

	"github.com/agleyzer/trimcut/internal/segment"
)

// Set records deselected segment IDs. The zero value is not usable; use New.
type Set struct {
	mu         sync.RWMutex
	deselected map[string]bool
}

// New returns an empty selection set with every segment selected.
func New() *Set {
	return &Set{deselected: make(map[string]bool)}
}

// IsSelected reports whether the segment is selected. Segments absent from
// the exception map are selected.
func (s *Set) IsSelected(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.deselected[id]
}

// Toggle flips the selection state of one segment.
func (s *Set) Toggle(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deselected[id] {
		delete(s.deselected, id)
	} else {
		s.deselected[id] = true
	}
}

// SelectOnly selects id and deselects every other ID in existing.
func (s *Set) SelectOnly(id string, existing []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deselected = make(map[string]bool, len(existing))
	for _, other := range existing {
		if other != id {
			s.deselected[other] = true
		}
	}
}

// SelectAll clears the exception map.
func (s *Set) SelectAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deselected = make(map[string]bool)
}

// DeselectAll marks every ID in existing as deselected.
func (s *Set) DeselectAll(existing []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deselected = make(map[string]bool, len(existing))
	for _, id := range existing {
		s.deselected[id] = true
	}
}

// SelectByName selects every segment whose name equals name, leaving the
// rest untouched. The call is a no-op when nothing matches or when the
// match covers the whole collection, guarding against a vacuous operation.
func (s *Set) SelectByName(name string, segments []segment.Segment) {
	var matched []string
	for _, seg := range segments {
		if seg.Name == name {
			matched = append(matched, seg.ID)
		}
	}
	if len(matched) == 0 || len(matched) == len(segments) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range matched {
		delete(s.deselected, id)
	}
}

// Prune drops exception entries for IDs no longer in the live collection,
// keeping the map sparse after removals.
func (s *Set) Prune(existing []string) {
	live := make(map[string]bool, len(existing))
	for _, id := range existing {
		live[id] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.deselected {
		if !live[id] {
			delete(s.deselected, id)
		}
	}
}

// SelectedCount returns how many of the given segments are selected.
func (s *Set) SelectedCount(segments []segment.Segment) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, seg := range segments {
		if !s.deselected[seg.ID] {
			n++
		}
	}
	return n
}

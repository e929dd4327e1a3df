package store

import (
	"sort"

	"github.com/agleyzer/trimcut/internal/segment"
)

// MoveTo removes the segment at index and reinserts it at newIndex, moving
// the current segment pointer to the new position.
func (s *Store) MoveTo(index, newIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.hist.present)
	if index < 0 || index >= n || newIndex < 0 || newIndex >= n {
		return ErrUnknownSegment
	}
	if index == newIndex {
		return nil
	}

	next := segment.CloneAll(s.hist.present)
	moved := next[index]
	next = append(next[:index], next[index+1:]...)
	next = append(next[:newIndex], append([]segment.Segment{moved}, next[newIndex:]...)...)

	if err := s.replaceLocked(next); err != nil {
		return err
	}
	s.current = newIndex
	return nil
}

// ApplyOrder resorts the collection by an explicit permutation of its IDs.
// The permutation must name every live segment exactly once. The current
// segment pointer follows its segment's ID.
func (s *Store) ApplyOrder(idsInOrder []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(idsInOrder) != len(s.hist.present) {
		return ErrUnknownSegment
	}

	byID := make(map[string]segment.Segment, len(s.hist.present))
	for _, seg := range s.hist.present {
		byID[seg.ID] = seg
	}

	currentID := s.hist.present[s.current].ID
	next := make([]segment.Segment, 0, len(idsInOrder))
	for _, id := range idsInOrder {
		seg, ok := byID[id]
		if !ok {
			return ErrUnknownSegment
		}
		delete(byID, id)
		next = append(next, seg.Clone())
	}

	if err := s.replaceLocked(next); err != nil {
		return err
	}
	s.followCurrentLocked(currentID)
	return nil
}

// SortByApparentStart stably sorts the collection by apparent start time.
// The current segment pointer follows its segment's ID.
func (s *Store) SortByApparentStart() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	currentID := s.hist.present[s.current].ID
	next := segment.CloneAll(s.hist.present)
	sortByApparentStart(next)

	if err := s.replaceLocked(next); err != nil {
		return err
	}
	s.followCurrentLocked(currentID)
	return nil
}

func (s *Store) followCurrentLocked(id string) {
	for i, seg := range s.hist.present {
		if seg.ID == id {
			s.current = i
			return
		}
	}
	s.current = 0
}

func sortByApparentStart(segments []segment.Segment) {
	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].ApparentStart() < segments[j].ApparentStart()
	})
}

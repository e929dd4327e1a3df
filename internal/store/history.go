package store

import "github.com/agleyzer/trimcut/internal/segment"

// historyCapacity bounds how many past states undo can reach back through.
const historyCapacity = 100

// history is a bounded linear undo/redo container. Every committed write
// pushes the previous present onto past and clears future; exceeding
// capacity evicts the oldest past entry. Undo/redo moves are not themselves
// recorded.
type history struct {
	past     [][]segment.Segment
	present  []segment.Segment
	future   [][]segment.Segment
	capacity int
}

func newHistory(initial []segment.Segment) *history {
	return &history{
		present:  initial,
		capacity: historyCapacity,
	}
}

// commit replaces the present state, pushing the old present into the past
// and truncating any redo branch.
func (h *history) commit(next []segment.Segment) {
	h.past = append(h.past, h.present)
	if len(h.past) > h.capacity {
		h.past = h.past[1:]
	}
	h.present = next
	h.future = nil
}

// undo steps back one state. Returns false when there is nothing to undo.
func (h *history) undo() bool {
	if len(h.past) == 0 {
		return false
	}
	h.future = append(h.future, h.present)
	h.present = h.past[len(h.past)-1]
	h.past = h.past[:len(h.past)-1]
	return true
}

// redo steps forward one state. Returns false when there is nothing to redo.
func (h *history) redo() bool {
	if len(h.future) == 0 {
		return false
	}
	h.past = append(h.past, h.present)
	h.present = h.future[len(h.future)-1]
	h.future = h.future[:len(h.future)-1]
	return true
}

func (h *history) undoDepth() int { return len(h.past) }
func (h *history) redoDepth() int { return len(h.future) }

// Package store owns the ordered segment collection and is the single
// invariant-checked write path for all segment mutations.
//
// Every committed mutation validates before touching state, records the
// previous collection in a bounded undo history, and notifies an optional
// commit hook (used to mirror state into a cluster). The collection is
// never empty: any operation that would empty it resets to one placeholder
// segment and resets the color counter.
package store

import (
	"log/slog"
	"sync"

	"github.com/agleyzer/trimcut/internal/interval"
	"github.com/agleyzer/trimcut/internal/segment"
	"github.com/agleyzer/trimcut/internal/timeline"
)

const defaultMaxSegments = 1000

// CommitHook observes every committed collection state, including undo and
// redo moves, together with the color counter and current index at commit
// time. The hook receives a private copy it may retain. It runs with the
// store lock held and must not call back into the store.
type CommitHook func(segments []segment.Segment, counter, current int)

// Store is the authoritative segment collection.
type Store struct {
	mu          sync.RWMutex
	maxSegments int
	counter     int
	current     int
	tl          timeline.Timeline
	hist        *history
	logger      *slog.Logger
	onCommit    CommitHook
}

// Option configures a Store.
type Option func(*Store)

// WithMaxSegments sets the maximum live segment count.
func WithMaxSegments(max int) Option {
	return func(s *Store) {
		if max > 0 {
			s.maxSegments = max
		}
	}
}

// WithTimeline sets the media timeline segments are edited against.
func WithTimeline(tl timeline.Timeline) Option {
	return func(s *Store) { s.tl = tl }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithCommitHook registers a hook invoked after every committed write.
func WithCommitHook(hook CommitHook) Option {
	return func(s *Store) { s.onCommit = hook }
}

// New creates a store holding a single placeholder segment.
func New(opts ...Option) *Store {
	s := &Store{
		maxSegments: defaultMaxSegments,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hist = newHistory([]segment.Segment{segment.NewPlaceholder()})
	return s
}

// Segments returns a copy of the live collection.
func (s *Store) Segments() []segment.Segment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return segment.CloneAll(s.hist.present)
}

// Len returns the live segment count.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.hist.present)
}

// MaxSegments returns the configured segment cap.
func (s *Store) MaxSegments() int {
	return s.maxSegments
}

// Counter returns the current color counter value.
func (s *Store) Counter() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counter
}

// Timeline returns the media timeline.
func (s *Store) Timeline() timeline.Timeline {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tl
}

// SetTimeline updates the media timeline. Not a segment mutation, so it is
// not recorded in history.
func (s *Store) SetTimeline(tl timeline.Timeline) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tl = tl
}

// Duration returns the timeline duration in seconds (0 when unloaded).
func (s *Store) Duration() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tl.Duration
}

// Current returns the current segment index.
func (s *Store) Current() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// SetCurrent moves the current segment pointer. Out-of-range values are
// ignored.
func (s *Store) SetCurrent(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index >= 0 && index < len(s.hist.present) {
		s.current = index
	}
}

// Create builds a segment with a fresh ID and a color index taken from the
// store counter, incrementing the counter first when requested. The segment
// is not inserted into the collection.
func (s *Store) Create(start, end *float64, name string, incrementCounter bool) segment.Segment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(start, end, name, incrementCounter)
}

func (s *Store) createLocked(start, end *float64, name string, incrementCounter bool) segment.Segment {
	if incrementCounter {
		s.counter++
	}
	return segment.New(start, end, name, s.counter)
}

// ReplaceAll swaps the whole collection for newSegments in one committed
// write. It rejects an empty collection and one that exceeds the maximum,
// leaving state unchanged.
func (s *Store) ReplaceAll(newSegments []segment.Segment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replaceLocked(segment.CloneAll(newSegments))
}

// ReplaceOrReset is ReplaceAll with the empty case resolved to the initial
// placeholder state instead of an error. Used by batch transforms whose
// filtering may drop every segment.
func (s *Store) ReplaceOrReset(newSegments []segment.Segment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(newSegments) == 0 {
		s.resetLocked()
		return nil
	}
	return s.replaceLocked(segment.CloneAll(newSegments))
}

// Append merges newSegments into the existing collection, except when the
// collection holds only the placeholder segment, which the new segments
// replace outright.
func (s *Store) Append(newSegments []segment.Segment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := segment.CloneAll(newSegments)
	if !s.placeholderOnlyLocked() {
		next = append(segment.CloneAll(s.hist.present), next...)
	}
	return s.replaceLocked(next)
}

// UpdateAt merges an edit into the segment at index, preserving its ID and
// color index. A negative or out-of-range index is a no-op. An edit that
// would set a bound making start meet or pass end is rejected with
// ErrInvalidTimeOrdering and leaves state unchanged.
func (s *Store) UpdateAt(index int, mutate func(*segment.Segment)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.hist.present) {
		return nil
	}

	next := segment.CloneAll(s.hist.present)
	orig := next[index]
	mutate(&next[index])
	next[index].ID = orig.ID
	next[index].ColorIndex = orig.ColorIndex

	if edited := next[index]; edited.Start != nil && edited.End != nil && *edited.Start >= *edited.End {
		return ErrInvalidTimeOrdering
	}

	return s.replaceLocked(next)
}

// RemoveByIDs filters the named segments out of the collection. Removing
// nothing, or removing from a collection that holds only the placeholder,
// is a no-op. Emptying the collection resets it to one placeholder segment
// and resets the color counter.
func (s *Store) RemoveByIDs(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.placeholderOnlyLocked() {
		return
	}

	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	var next []segment.Segment
	for _, seg := range s.hist.present {
		if !drop[seg.ID] {
			next = append(next, seg.Clone())
		}
	}
	if len(next) == len(s.hist.present) {
		return
	}

	if len(next) == 0 {
		s.resetLocked()
		return
	}
	// Shrinking below the cap is always allowed; replaceLocked cannot fail here.
	_ = s.replaceLocked(next)
}

// Clear resets the collection to one placeholder segment and resets the
// color counter. The clear itself is recorded as an undoable step.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

// Undo steps the collection back one committed write. Returns false when
// there is no past state.
func (s *Store) Undo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hist.undo() {
		return false
	}
	s.afterHistoryMoveLocked("undo")
	return true
}

// Redo steps forward along the redo branch. Returns false when there is no
// forward state.
func (s *Store) Redo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hist.redo() {
		return false
	}
	s.afterHistoryMoveLocked("redo")
	return true
}

// UndoDepth returns how many writes can be undone.
func (s *Store) UndoDepth() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hist.undoDepth()
}

// RedoDepth returns how many undone writes can be redone.
func (s *Store) RedoDepth() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hist.redoDepth()
}

// Split divides the segment at index at cursorTime, inserting the second
// half right after the first. The cursor must fall strictly inside the
// segment's apparent bounds.
func (s *Store) Split(index int, cursorTime float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.hist.present) {
		return ErrUnknownSegment
	}

	left, right, ok := interval.SplitAt(s.hist.present[index], cursorTime, s.tl.Duration)
	if !ok {
		return ErrInvalidTimeOrdering
	}
	// Check the cap before registering so a rejected split leaves the
	// counter untouched.
	if len(s.hist.present)+1 > s.maxSegments {
		return ErrTooManySegments
	}
	registered := s.createLocked(right.Start, right.End, right.Name, true)
	right.ID = registered.ID
	right.ColorIndex = registered.ColorIndex

	next := make([]segment.Segment, 0, len(s.hist.present)+1)
	next = append(next, segment.CloneAll(s.hist.present[:index])...)
	next = append(next, left, right)
	next = append(next, segment.CloneAll(s.hist.present[index+1:])...)

	return s.replaceLocked(next)
}

// MergeOverlapping folds overlapping segments together, retaining the
// earlier segment's metadata, and commits the result.
func (s *Store) MergeOverlapping() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := segment.CloneAll(s.hist.present)
	sortByApparentStart(next)
	return s.replaceLocked(interval.MergeOverlapping(next, s.tl.Duration))
}

// Invert replaces the collection with its complement over [0, duration].
// Fails with ErrCannotInvert when any live segment is invalid or segments
// overlap, or when no media is loaded. An empty complement resets the
// collection to the placeholder.
func (s *Store) Invert() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	gaps, err := s.complementLocked()
	if err != nil {
		return err
	}
	if len(gaps) == 0 {
		s.resetLocked()
		return nil
	}
	if len(gaps) > s.maxSegments {
		return ErrTooManySegments
	}
	return s.replaceLocked(s.registerLocked(gaps))
}

// FillGaps inserts complement segments alongside the existing ones so the
// collection covers [0, duration]. A collection that already covers the
// timeline is left unchanged.
func (s *Store) FillGaps() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	gaps, err := s.complementLocked()
	if err != nil {
		return err
	}
	if len(gaps) == 0 {
		return nil
	}
	if len(s.hist.present)+len(gaps) > s.maxSegments {
		return ErrTooManySegments
	}

	next := append(segment.CloneAll(s.hist.present), s.registerLocked(gaps)...)
	sortByApparentStart(next)
	return s.replaceLocked(next)
}

// Stats reports current store statistics.
func (s *Store) Stats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]any{
		"segments":     len(s.hist.present),
		"max_segments": s.maxSegments,
		"counter":      s.counter,
		"current":      s.current,
		"undo_depth":   s.hist.undoDepth(),
		"redo_depth":   s.hist.redoDepth(),
		"duration":     s.tl.Duration,
	}
}

// complementLocked computes the inverted ranges of the live collection.
// The returned gaps are unregistered: the caller checks the cap before
// handing them to registerLocked, so a rejected commit cannot advance the
// color counter.
func (s *Store) complementLocked() ([]segment.Segment, error) {
	sorted := segment.CloneAll(s.hist.present)
	if len(sorted) == 1 && sorted[0].IsPlaceholder() {
		// The placeholder covers the whole timeline; its complement is empty.
		sorted = nil
	}
	sortByApparentStart(sorted)

	gaps := interval.Invert(sorted, s.tl.Duration)
	if gaps == nil {
		return nil, ErrCannotInvert
	}
	return gaps, nil
}

// registerLocked turns raw gap ranges into fresh segments, advancing the
// color counter for each.
func (s *Store) registerLocked(gaps []segment.Segment) []segment.Segment {
	out := make([]segment.Segment, len(gaps))
	for i, g := range gaps {
		out[i] = s.createLocked(g.Start, g.End, "", true)
	}
	return out
}

// placeholderOnlyLocked reports whether the collection is in its initial
// state: exactly one segment with both bounds undefined.
func (s *Store) placeholderOnlyLocked() bool {
	return len(s.hist.present) == 1 && s.hist.present[0].IsPlaceholder()
}

// resetLocked commits the initial state: one placeholder, counter 0.
func (s *Store) resetLocked() {
	s.counter = 0
	s.current = 0
	s.hist.commit([]segment.Segment{segment.NewPlaceholder()})
	s.logger.Debug("store reset to placeholder")
	s.notifyLocked()
}

// replaceLocked is the single commit point for every mutation. The caller
// passes ownership of next.
func (s *Store) replaceLocked(next []segment.Segment) error {
	if len(next) == 0 {
		return ErrEmptyCollection
	}
	if len(next) > s.maxSegments {
		return ErrTooManySegments
	}

	s.hist.commit(next)
	if s.current >= len(next) {
		s.current = len(next) - 1
	}

	s.logger.Debug("committed segment write",
		"segments", len(next),
		"undo_depth", s.hist.undoDepth(),
	)
	s.notifyLocked()
	return nil
}

func (s *Store) afterHistoryMoveLocked(direction string) {
	if s.current >= len(s.hist.present) {
		s.current = len(s.hist.present) - 1
	}
	s.logger.Debug("moved along history",
		"direction", direction,
		"segments", len(s.hist.present),
		"undo_depth", s.hist.undoDepth(),
		"redo_depth", s.hist.redoDepth(),
	)
	s.notifyLocked()
}

func (s *Store) notifyLocked() {
	if s.onCommit != nil {
		s.onCommit(segment.CloneAll(s.hist.present), s.counter, s.current)
	}
}

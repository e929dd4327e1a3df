package store

import (
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/agleyzer/trimcut/internal/segment"
	"github.com/agleyzer/trimcut/internal/timeline"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func testStore(opts ...Option) *Store {
	base := []Option{
		WithTimeline(timeline.Timeline{Duration: 40}),
		WithLogger(testLogger()),
	}
	return New(append(base, opts...)...)
}

func closed(start, end float64) segment.Segment {
	return segment.Segment{Start: segment.Bound(start), End: segment.Bound(end)}
}

func TestNew_StartsWithPlaceholder(t *testing.T) {
	s := testStore()

	segs := s.Segments()
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}
	if !segs[0].IsPlaceholder() {
		t.Error("expected initial segment to be the placeholder")
	}
	if s.Counter() != 0 {
		t.Errorf("expected counter 0, got %d", s.Counter())
	}
}

func TestCreate_CounterSemantics(t *testing.T) {
	s := testStore()

	a := s.Create(segment.Bound(0), segment.Bound(1), "a", true)
	if a.ColorIndex != 1 {
		t.Errorf("expected color index 1 after increment, got %d", a.ColorIndex)
	}

	b := s.Create(segment.Bound(1), segment.Bound(2), "b", false)
	if b.ColorIndex != 1 {
		t.Errorf("expected color index 1 without increment, got %d", b.ColorIndex)
	}

	if a.ID == b.ID {
		t.Error("created segments must have distinct IDs")
	}
	if s.Len() != 1 {
		t.Error("Create must not insert into the collection")
	}
}

func TestReplaceAll(t *testing.T) {
	t.Run("rejects empty", func(t *testing.T) {
		s := testStore()
		err := s.ReplaceAll(nil)
		if !errors.Is(err, ErrEmptyCollection) {
			t.Errorf("expected ErrEmptyCollection, got %v", err)
		}
		if s.Len() != 1 {
			t.Error("failed replace must leave state unchanged")
		}
	})

	t.Run("rejects exceeding maximum", func(t *testing.T) {
		// Scenario: 6 segments against a maximum of 5.
		s := testStore(WithMaxSegments(5))
		six := make([]segment.Segment, 6)
		for i := range six {
			six[i] = closed(float64(i), float64(i)+1)
		}

		err := s.ReplaceAll(six)
		if !errors.Is(err, ErrTooManySegments) {
			t.Errorf("expected ErrTooManySegments, got %v", err)
		}
		if s.Len() != 1 {
			t.Error("failed replace must leave state unchanged")
		}
	})

	t.Run("commits and records history", func(t *testing.T) {
		s := testStore()
		if err := s.ReplaceAll([]segment.Segment{closed(0, 10), closed(20, 30)}); err != nil {
			t.Fatalf("ReplaceAll: %v", err)
		}
		if s.Len() != 2 {
			t.Errorf("expected 2 segments, got %d", s.Len())
		}
		if !s.Undo() {
			t.Fatal("expected undo to succeed")
		}
		if s.Len() != 1 || !s.Segments()[0].IsPlaceholder() {
			t.Error("undo should restore the placeholder state")
		}
	})
}

func TestUpdateAt(t *testing.T) {
	t.Run("negative index is a no-op", func(t *testing.T) {
		s := testStore()
		if err := s.UpdateAt(-1, func(seg *segment.Segment) { seg.Name = "x" }); err != nil {
			t.Errorf("expected nil error, got %v", err)
		}
		if s.Segments()[0].Name != "" {
			t.Error("negative index should not mutate anything")
		}
	})

	t.Run("preserves identity and color", func(t *testing.T) {
		s := testStore()
		orig := s.Segments()[0]

		err := s.UpdateAt(0, func(seg *segment.Segment) {
			seg.ID = "hijacked"
			seg.ColorIndex = 42
			seg.Name = "renamed"
		})
		if err != nil {
			t.Fatalf("UpdateAt: %v", err)
		}

		got := s.Segments()[0]
		if got.ID != orig.ID || got.ColorIndex != orig.ColorIndex {
			t.Error("UpdateAt must preserve ID and color index")
		}
		if got.Name != "renamed" {
			t.Errorf("expected name %q, got %q", "renamed", got.Name)
		}
	})

	t.Run("rejects inverted bounds", func(t *testing.T) {
		s := testStore()
		err := s.UpdateAt(0, func(seg *segment.Segment) {
			seg.Start = segment.Bound(10)
			seg.End = segment.Bound(5)
		})
		if !errors.Is(err, ErrInvalidTimeOrdering) {
			t.Errorf("expected ErrInvalidTimeOrdering, got %v", err)
		}
		if !s.Segments()[0].IsPlaceholder() {
			t.Error("failed update must leave state unchanged")
		}
	})

	t.Run("open segment may set one bound", func(t *testing.T) {
		s := testStore()
		err := s.UpdateAt(0, func(seg *segment.Segment) {
			seg.Start = segment.Bound(5)
		})
		if err != nil {
			t.Fatalf("UpdateAt: %v", err)
		}
		got := s.Segments()[0]
		if got.Start == nil || *got.Start != 5 || got.End != nil {
			t.Errorf("expected open segment {5, nil}, got %+v", got)
		}
	})
}

func TestRemoveByIDs(t *testing.T) {
	t.Run("placeholder-only collection is a no-op", func(t *testing.T) {
		s := testStore()
		id := s.Segments()[0].ID
		s.RemoveByIDs(id)
		if s.Len() != 1 || s.Segments()[0].ID != id {
			t.Error("removing the sole placeholder should do nothing")
		}
	})

	t.Run("removing every segment resets placeholder and counter", func(t *testing.T) {
		s := testStore()
		a := s.Create(segment.Bound(0), segment.Bound(10), "", true)
		b := s.Create(segment.Bound(20), segment.Bound(30), "", true)
		if err := s.ReplaceAll([]segment.Segment{a, b}); err != nil {
			t.Fatalf("ReplaceAll: %v", err)
		}
		if s.Counter() != 2 {
			t.Fatalf("counter = %d, want 2", s.Counter())
		}

		s.RemoveByIDs(a.ID, b.ID)

		segs := s.Segments()
		if len(segs) != 1 || !segs[0].IsPlaceholder() {
			t.Error("expected exactly one placeholder after removing everything")
		}
		if s.Counter() != 0 {
			t.Errorf("counter = %d, want 0 after reset", s.Counter())
		}
	})

	t.Run("partial removal keeps survivors in order", func(t *testing.T) {
		s := testStore()
		a := s.Create(segment.Bound(0), segment.Bound(10), "a", true)
		b := s.Create(segment.Bound(20), segment.Bound(30), "b", true)
		c := s.Create(segment.Bound(35), segment.Bound(38), "c", true)
		if err := s.ReplaceAll([]segment.Segment{a, b, c}); err != nil {
			t.Fatalf("ReplaceAll: %v", err)
		}

		s.RemoveByIDs(b.ID)

		segs := s.Segments()
		if len(segs) != 2 || segs[0].ID != a.ID || segs[1].ID != c.ID {
			t.Errorf("unexpected survivors: %v", segment.IDs(segs))
		}
	})
}

func TestClear(t *testing.T) {
	s := testStore()
	a := s.Create(segment.Bound(0), segment.Bound(10), "", true)
	if err := s.ReplaceAll([]segment.Segment{a}); err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}

	s.Clear()

	if s.Len() != 1 || !s.Segments()[0].IsPlaceholder() {
		t.Error("expected placeholder after clear")
	}
	if s.Counter() != 0 {
		t.Errorf("counter = %d, want 0", s.Counter())
	}

	// The clear itself is an undoable step.
	if !s.Undo() {
		t.Fatal("expected clear to be undoable")
	}
	if s.Segments()[0].ID != a.ID {
		t.Error("undo after clear should restore the previous collection")
	}
}

func TestUndoRedo_WriteTruncatesRedo(t *testing.T) {
	s := testStore()
	if err := s.ReplaceAll([]segment.Segment{closed(0, 10)}); err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}
	if err := s.ReplaceAll([]segment.Segment{closed(0, 10), closed(20, 30)}); err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}

	s.Undo()
	if err := s.ReplaceAll([]segment.Segment{closed(5, 15)}); err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}

	if s.Redo() {
		t.Error("expected redo branch discarded after a new write")
	}
}

func TestSplit(t *testing.T) {
	s := testStore()
	a := s.Create(segment.Bound(5), segment.Bound(25), "clip", true)
	if err := s.ReplaceAll([]segment.Segment{a}); err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}

	if err := s.Split(0, 10); err != nil {
		t.Fatalf("Split: %v", err)
	}

	segs := s.Segments()
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments after split, got %d", len(segs))
	}
	if segs[0].ApparentEnd(40) != 10 || segs[1].ApparentStart() != 10 {
		t.Errorf("halves do not meet at the cursor: %v %v", segs[0], segs[1])
	}
	if segs[0].ID != a.ID {
		t.Error("left half should keep the original identity")
	}
	if segs[1].ID == "" || segs[1].ID == a.ID {
		t.Error("right half should get a fresh identity")
	}
	if segs[0].Name != "clip 1" || segs[1].Name != "clip 2" {
		t.Errorf("names = %q, %q", segs[0].Name, segs[1].Name)
	}

	if err := s.Split(0, 25); !errors.Is(err, ErrInvalidTimeOrdering) {
		t.Errorf("cursor outside half: expected ErrInvalidTimeOrdering, got %v", err)
	}
}

func TestSplit_AtMaximumLeavesCounterUntouched(t *testing.T) {
	s := testStore(WithMaxSegments(1))
	if err := s.ReplaceAll([]segment.Segment{closed(5, 25)}); err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}
	before := s.Counter()

	if err := s.Split(0, 10); !errors.Is(err, ErrTooManySegments) {
		t.Fatalf("expected ErrTooManySegments, got %v", err)
	}
	if s.Counter() != before {
		t.Errorf("counter = %d after rejected split, want %d", s.Counter(), before)
	}
	if s.Len() != 1 {
		t.Error("failed split must leave state unchanged")
	}
}

func TestInvert(t *testing.T) {
	t.Run("scenario: gaps and trailing fringe", func(t *testing.T) {
		s := testStore()
		if err := s.ReplaceAll([]segment.Segment{closed(0, 10), closed(20, 30)}); err != nil {
			t.Fatalf("ReplaceAll: %v", err)
		}

		if err := s.Invert(); err != nil {
			t.Fatalf("Invert: %v", err)
		}

		segs := s.Segments()
		if len(segs) != 2 {
			t.Fatalf("expected 2 segments, got %d", len(segs))
		}
		if segs[0].ApparentStart() != 10 || segs[0].ApparentEnd(40) != 20 {
			t.Errorf("first gap = [%v, %v], want [10, 20]", segs[0].ApparentStart(), segs[0].ApparentEnd(40))
		}
		if segs[1].ApparentStart() != 30 || segs[1].ApparentEnd(40) != 40 {
			t.Errorf("second gap = [%v, %v], want [30, 40]", segs[1].ApparentStart(), segs[1].ApparentEnd(40))
		}
	})

	t.Run("overlapping segments cannot invert", func(t *testing.T) {
		s := testStore()
		if err := s.ReplaceAll([]segment.Segment{closed(0, 15), closed(10, 30)}); err != nil {
			t.Fatalf("ReplaceAll: %v", err)
		}

		if err := s.Invert(); !errors.Is(err, ErrCannotInvert) {
			t.Errorf("expected ErrCannotInvert, got %v", err)
		}
		if s.Len() != 2 {
			t.Error("failed invert must leave state unchanged")
		}
	})

	t.Run("no media loaded cannot invert", func(t *testing.T) {
		s := New(WithLogger(testLogger())) // duration 0
		if err := s.Invert(); !errors.Is(err, ErrCannotInvert) {
			t.Errorf("expected ErrCannotInvert, got %v", err)
		}
	})

	t.Run("exceeding maximum leaves counter untouched", func(t *testing.T) {
		s := testStore(WithMaxSegments(1))
		if err := s.ReplaceAll([]segment.Segment{closed(10, 20)}); err != nil {
			t.Fatalf("ReplaceAll: %v", err)
		}
		before := s.Counter()

		// Complement of [10,20] over [0,40] is two gaps, over the cap.
		if err := s.Invert(); !errors.Is(err, ErrTooManySegments) {
			t.Fatalf("expected ErrTooManySegments, got %v", err)
		}
		if s.Counter() != before {
			t.Errorf("counter = %d after rejected invert, want %d", s.Counter(), before)
		}
		if s.Len() != 1 {
			t.Error("failed invert must leave state unchanged")
		}
	})

	t.Run("full cover inverts to placeholder", func(t *testing.T) {
		s := testStore()
		if err := s.ReplaceAll([]segment.Segment{closed(0, 40)}); err != nil {
			t.Fatalf("ReplaceAll: %v", err)
		}
		if err := s.Invert(); err != nil {
			t.Fatalf("Invert: %v", err)
		}
		if s.Len() != 1 || !s.Segments()[0].IsPlaceholder() {
			t.Error("expected placeholder after inverting a full cover")
		}
	})
}

func TestFillGaps(t *testing.T) {
	t.Run("covers the timeline", func(t *testing.T) {
		s := testStore()
		if err := s.ReplaceAll([]segment.Segment{closed(10, 20)}); err != nil {
			t.Fatalf("ReplaceAll: %v", err)
		}

		if err := s.FillGaps(); err != nil {
			t.Fatalf("FillGaps: %v", err)
		}

		segs := s.Segments()
		if len(segs) != 3 {
			t.Fatalf("expected 3 segments, got %d", len(segs))
		}
		prevEnd := 0.0
		for i, seg := range segs {
			if seg.ApparentStart() != prevEnd {
				t.Errorf("segment %d starts at %v, want %v", i, seg.ApparentStart(), prevEnd)
			}
			prevEnd = seg.ApparentEnd(40)
		}
		if prevEnd != 40 {
			t.Errorf("collection ends at %v, want 40", prevEnd)
		}
	})

	t.Run("exceeding maximum leaves counter untouched", func(t *testing.T) {
		s := testStore(WithMaxSegments(2))
		if err := s.ReplaceAll([]segment.Segment{closed(10, 20)}); err != nil {
			t.Fatalf("ReplaceAll: %v", err)
		}
		before := s.Counter()

		if err := s.FillGaps(); !errors.Is(err, ErrTooManySegments) {
			t.Fatalf("expected ErrTooManySegments, got %v", err)
		}
		if s.Counter() != before {
			t.Errorf("counter = %d after rejected fill, want %d", s.Counter(), before)
		}
		if s.Len() != 1 {
			t.Error("failed fill must leave state unchanged")
		}
	})
}

func TestMergeOverlappingCommit(t *testing.T) {
	s := testStore()
	a := s.Create(segment.Bound(0), segment.Bound(10), "first", true)
	b := s.Create(segment.Bound(5), segment.Bound(20), "second", true)
	if err := s.ReplaceAll([]segment.Segment{b, a}); err != nil { // unsorted on purpose
		t.Fatalf("ReplaceAll: %v", err)
	}

	if err := s.MergeOverlapping(); err != nil {
		t.Fatalf("MergeOverlapping: %v", err)
	}

	segs := s.Segments()
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}
	if segs[0].ID != a.ID || segs[0].Name != "first" {
		t.Error("merge should retain the earlier segment's metadata")
	}
	if segs[0].ApparentEnd(40) != 20 {
		t.Errorf("merged end = %v, want 20", segs[0].ApparentEnd(40))
	}
}

func TestAppend(t *testing.T) {
	t.Run("placeholder is replaced outright", func(t *testing.T) {
		s := testStore()
		if err := s.Append([]segment.Segment{closed(0, 10)}); err != nil {
			t.Fatalf("Append: %v", err)
		}
		segs := s.Segments()
		if len(segs) != 1 || segs[0].IsPlaceholder() {
			t.Errorf("expected placeholder replaced, got %v", segs)
		}
	})

	t.Run("existing segments are kept", func(t *testing.T) {
		s := testStore()
		if err := s.Append([]segment.Segment{closed(0, 10)}); err != nil {
			t.Fatalf("Append: %v", err)
		}
		if err := s.Append([]segment.Segment{closed(20, 30)}); err != nil {
			t.Fatalf("Append: %v", err)
		}
		if s.Len() != 2 {
			t.Errorf("expected 2 segments, got %d", s.Len())
		}
	})

	t.Run("exceeding maximum fails atomically", func(t *testing.T) {
		s := testStore(WithMaxSegments(2))
		if err := s.Append([]segment.Segment{closed(0, 10), closed(11, 20)}); err != nil {
			t.Fatalf("Append: %v", err)
		}
		err := s.Append([]segment.Segment{closed(21, 30)})
		if !errors.Is(err, ErrTooManySegments) {
			t.Errorf("expected ErrTooManySegments, got %v", err)
		}
		if s.Len() != 2 {
			t.Error("failed append must leave state unchanged")
		}
	})
}

func TestCommitHookObservesWrites(t *testing.T) {
	type commit struct {
		segments []segment.Segment
		counter  int
		current  int
	}
	var observed []commit
	s := testStore(WithCommitHook(func(segs []segment.Segment, counter, current int) {
		observed = append(observed, commit{segs, counter, current})
	}))

	seg := s.Create(segment.Bound(0), segment.Bound(10), "a", true)
	if err := s.ReplaceAll([]segment.Segment{seg}); err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}
	s.Undo()

	if len(observed) != 2 {
		t.Fatalf("hook observed %d commits, want 2 (write + undo)", len(observed))
	}
	if observed[0].counter != 1 || observed[0].current != 0 {
		t.Errorf("first commit carried counter=%d current=%d, want 1, 0",
			observed[0].counter, observed[0].current)
	}
	if len(observed[1].segments) != 1 || !observed[1].segments[0].IsPlaceholder() {
		t.Error("hook should observe the undone state")
	}
}

// The hook runs inside the store's write lock and receives the counter and
// current index as arguments, so a write completes without the hook having
// to read them back from the store.
func TestCommitHookCompletesUnderWriteLock(t *testing.T) {
	done := make(chan struct{}, 1)
	s := testStore(WithCommitHook(func(segs []segment.Segment, counter, current int) {
		done <- struct{}{}
	}))

	finished := make(chan error, 1)
	go func() {
		finished <- s.ReplaceAll([]segment.Segment{closed(0, 10)})
	}()

	select {
	case err := <-finished:
		if err != nil {
			t.Fatalf("ReplaceAll: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ReplaceAll did not return; commit hook blocked the write")
	}
	<-done
}

func TestStats(t *testing.T) {
	s := testStore()
	if err := s.ReplaceAll([]segment.Segment{closed(0, 10), closed(20, 30)}); err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}

	stats := s.Stats()
	if stats["segments"].(int) != 2 {
		t.Errorf("segments = %v, want 2", stats["segments"])
	}
	if stats["undo_depth"].(int) != 1 {
		t.Errorf("undo_depth = %v, want 1", stats["undo_depth"])
	}
	if stats["duration"].(float64) != 40 {
		t.Errorf("duration = %v, want 40", stats["duration"])
	}
}

package segment

import (
	"math"
	"testing"
)

func TestApparentBounds(t *testing.T) {
	tests := []struct {
		name      string
		seg       Segment
		duration  float64
		wantStart float64
		wantEnd   float64
	}{
		{
			name:      "both bounds set",
			seg:       Segment{Start: Bound(5), End: Bound(10)},
			duration:  40,
			wantStart: 5,
			wantEnd:   10,
		},
		{
			name:      "nil start resolves to zero",
			seg:       Segment{End: Bound(10)},
			duration:  40,
			wantStart: 0,
			wantEnd:   10,
		},
		{
			name:      "nil end resolves to duration",
			seg:       Segment{Start: Bound(5)},
			duration:  40,
			wantStart: 5,
			wantEnd:   40,
		},
		{
			name:      "placeholder spans whole timeline",
			seg:       Segment{},
			duration:  40,
			wantStart: 0,
			wantEnd:   40,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.seg.ApparentStart(); got != tt.wantStart {
				t.Errorf("ApparentStart() = %v, want %v", got, tt.wantStart)
			}
			if got := tt.seg.ApparentEnd(tt.duration); got != tt.wantEnd {
				t.Errorf("ApparentEnd() = %v, want %v", got, tt.wantEnd)
			}
		})
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		name     string
		seg      Segment
		duration float64
		want     bool
	}{
		{"ordered bounds", Segment{Start: Bound(1), End: Bound(3)}, 40, true},
		{"reversed bounds", Segment{Start: Bound(5), End: Bound(2)}, 40, false},
		{"equal bounds", Segment{Start: Bound(5), End: Bound(5)}, 40, false},
		{"placeholder with positive duration", Segment{}, 40, true},
		{"placeholder with zero duration", Segment{}, 0, false},
		{"start beyond duration", Segment{Start: Bound(50)}, 40, false},
		{"nan start", Segment{Start: Bound(math.NaN()), End: Bound(3)}, 40, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.seg.Valid(tt.duration); got != tt.want {
				t.Errorf("Valid(%v) = %v, want %v", tt.duration, got, tt.want)
			}
		})
	}
}

func TestNew_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		s := New(Bound(0), Bound(1), "", i)
		if s.ID == "" {
			t.Fatal("expected non-empty ID")
		}
		if seen[s.ID] {
			t.Fatalf("duplicate ID %q", s.ID)
		}
		seen[s.ID] = true
	}
}

func TestNewPlaceholder(t *testing.T) {
	p := NewPlaceholder()
	if !p.IsPlaceholder() {
		t.Error("expected placeholder to have both bounds undefined")
	}
	if p.ColorIndex != 0 {
		t.Errorf("expected color index 0, got %d", p.ColorIndex)
	}
}

func TestClone_Independence(t *testing.T) {
	orig := Segment{
		ID:    "a",
		Start: Bound(1),
		End:   Bound(2),
		Name:  "clip",
		Tags:  map[string]string{"source": "detector"},
	}

	cp := orig.Clone()
	*cp.Start = 9
	cp.Tags["source"] = "manual"

	if *orig.Start != 1 {
		t.Errorf("clone mutated original start: %v", *orig.Start)
	}
	if orig.Tags["source"] != "detector" {
		t.Errorf("clone mutated original tags: %v", orig.Tags)
	}
}

func TestIDs(t *testing.T) {
	segs := []Segment{{ID: "x"}, {ID: "y"}, {ID: "z"}}
	ids := IDs(segs)
	if len(ids) != 3 || ids[0] != "x" || ids[1] != "y" || ids[2] != "z" {
		t.Errorf("IDs() = %v", ids)
	}
}

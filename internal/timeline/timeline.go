// Package timeline describes the bounded media timeline segments are edited against.
package timeline

import (
	"fmt"
	"math"
)

// Timeline holds the properties of the loaded media that segment editing
// operates against.
type Timeline struct {
	// Duration is the media duration in seconds. Zero means no media loaded.
	Duration float64

	// Source is the location the media was loaded from (path or URL).
	// Empty string if not specified.
	Source string

	// FrameRate is the nominal frames per second, when known.
	// Zero if not specified.
	FrameRate float64
}

// Loaded reports whether media with a usable duration is present.
func (t Timeline) Loaded() bool {
	return t.Duration > 0 && !math.IsNaN(t.Duration) && !math.IsInf(t.Duration, 0)
}

// Validate checks the timeline fields.
func (t Timeline) Validate() error {
	if !t.Loaded() {
		return fmt.Errorf("duration must be a positive number, got %v", t.Duration)
	}
	if t.FrameRate < 0 || math.IsNaN(t.FrameRate) {
		return fmt.Errorf("invalid frame rate %v", t.FrameRate)
	}
	return nil
}

package store

import "errors"

var (
	// ErrInvalidTimeOrdering is returned when an edit would set a bound
	// that makes a segment's start meet or pass its end.
	ErrInvalidTimeOrdering = errors.New("segment start must precede its end")

	// ErrNoValidSegments is returned when an import or detection run
	// yields nothing usable after validation.
	ErrNoValidSegments = errors.New("no valid segments")

	// ErrTooManySegments is returned when a write would exceed the
	// configured maximum segment count.
	ErrTooManySegments = errors.New("too many segments")

	// ErrEmptyCollection is returned when a replace would leave the
	// collection with no segments at all.
	ErrEmptyCollection = errors.New("segment collection cannot be empty")

	// ErrCannotInvert is returned when inversion is requested over
	// overlapping or invalid segments, or without a usable duration.
	ErrCannotInvert = errors.New("cannot invert overlapping or invalid segments")

	// ErrUnknownSegment is returned when a reorder names an ID that is
	// not in the live collection.
	ErrUnknownSegment = errors.New("unknown segment id")
)

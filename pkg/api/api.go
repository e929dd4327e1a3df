// Package api defines the JSON types exchanged over the HTTP interface.
package api

// Segment is the wire form of a labeled time range. Absent bounds are
// omitted and mean "start of media" and "end of media" respectively.
type Segment struct {
	ID         string            `json:"id"`
	ColorIndex int               `json:"color_index"`
	Start      *float64          `json:"start,omitempty"`
	End        *float64          `json:"end,omitempty"`
	Name       string            `json:"name,omitempty"`
	Tags       map[string]string `json:"tags,omitempty"`
	Selected   bool              `json:"selected"`
}

// SegmentList is the response for collection reads.
type SegmentList struct {
	Segments  []Segment `json:"segments"`
	Current   int       `json:"current"`
	Counter   int       `json:"counter"`
	UndoDepth int       `json:"undo_depth"`
	RedoDepth int       `json:"redo_depth"`
}

// CreateRequest adds a segment to the collection.
type CreateRequest struct {
	Start *float64          `json:"start,omitempty"`
	End   *float64          `json:"end,omitempty"`
	Name  string            `json:"name,omitempty"`
	Tags  map[string]string `json:"tags,omitempty"`
}

// UpdateRequest changes a segment's bounds, name or tags. Omitted fields
// keep their current values.
type UpdateRequest struct {
	Start *float64          `json:"start,omitempty"`
	End   *float64          `json:"end,omitempty"`
	Name  *string           `json:"name,omitempty"`
	Tags  map[string]string `json:"tags,omitempty"`
}

// SplitRequest splits the segment at the given index at a cursor time.
type SplitRequest struct {
	Index int     `json:"index"`
	Time  float64 `json:"time"`
}

// RemoveRequest removes segments by ID.
type RemoveRequest struct {
	IDs []string `json:"ids"`
}

// SelectRequest adjusts the selection. Exactly one field should be set.
type SelectRequest struct {
	Toggle string `json:"toggle,omitempty"`
	Only   string `json:"only,omitempty"`
	ByName string `json:"by_name,omitempty"`
	All    bool   `json:"all,omitempty"`
	None   bool   `json:"none,omitempty"`
}

// OrderRequest reorders the collection. Either Move or IDs is set.
type OrderRequest struct {
	Move *MoveRequest `json:"move,omitempty"`
	IDs  []string     `json:"ids,omitempty"`
	Sort bool         `json:"sort,omitempty"`
}

// MoveRequest moves one segment to a new position.
type MoveRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// ShiftRequest shifts the selected segments by delta seconds.
type ShiftRequest struct {
	Delta       float64 `json:"delta"`
	Concurrency int     `json:"concurrency,omitempty"`
}

// ImportRequest loads a cut list. Content is the raw cut list text;
// Format is "edl" or "m3u8"; Append merges instead of replacing.
type ImportRequest struct {
	Content string `json:"content"`
	Format  string `json:"format"`
	Append  bool   `json:"append,omitempty"`
}

// Error is the wire form of a failure.
type Error struct {
	Error string `json:"error"`
}

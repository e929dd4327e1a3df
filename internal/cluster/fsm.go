// Package cluster provides Raft-based replication of edit sessions, so a
// standby node can take over with the same segment collection.
package cluster

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/hashicorp/raft"

	"github.com/agleyzer/trimcut/internal/segment"
)

func init() {
	// Register types for gob encoding/decoding
	gob.Register(ReplaceSegmentsCommand{})
	gob.Register(InitializeCommand{})
}

// SessionState is the replicated edit session: the segment collection and
// the bookkeeping needed to resume editing on another node.
type SessionState struct {
	// Segments is the live collection.
	Segments []segment.Segment
	// Counter is the color counter value.
	Counter int
	// Current is the index of the segment under edit.
	Current int
	// Source identifies the media file the session edits.
	Source string
	// Duration is the media duration in seconds.
	Duration float64
}

// CommandType identifies the type of Raft command.
type CommandType uint8

const (
	// CommandReplaceSegments replaces the replicated collection.
	CommandReplaceSegments CommandType = 1
	// CommandInitialize initializes the FSM state.
	CommandInitialize CommandType = 2
)

// Command represents a Raft log command.
type Command struct {
	Type CommandType
	Data any
}

// ReplaceSegmentsCommand carries the collection after a committed write.
type ReplaceSegmentsCommand struct {
	Segments []segment.Segment
	Counter  int
	Current  int
}

// InitializeCommand sets the initial session state.
type InitializeCommand struct {
	State SessionState
}

// SessionFSM implements the raft.FSM interface for edit session state.
type SessionFSM struct {
	mu     sync.RWMutex
	state  SessionState
	logger *slog.Logger
}

// NewSessionFSM creates a new SessionFSM.
func NewSessionFSM(logger *slog.Logger) *SessionFSM {
	return &SessionFSM{
		state:  SessionState{Segments: []segment.Segment{}},
		logger: logger,
	}
}

// Apply applies a Raft log entry to the FSM.
func (f *SessionFSM) Apply(log *raft.Log) any {
	var cmd Command
	if err := gob.NewDecoder(bytes.NewReader(log.Data)).Decode(&cmd); err != nil {
		f.logger.Error("failed to decode command", "error", err)
		return fmt.Errorf("decode command: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch cmd.Type {
	case CommandReplaceSegments:
		return f.applyReplaceSegments(cmd.Data)
	case CommandInitialize:
		return f.applyInitialize(cmd.Data)
	default:
		f.logger.Error("unknown command type", "type", cmd.Type)
		return fmt.Errorf("unknown command type: %d", cmd.Type)
	}
}

// applyReplaceSegments replaces the replicated collection.
func (f *SessionFSM) applyReplaceSegments(data any) any {
	replCmd, ok := data.(ReplaceSegmentsCommand)
	if !ok {
		return fmt.Errorf("invalid replace segments command data")
	}

	f.state.Segments = segment.CloneAll(replCmd.Segments)
	f.state.Counter = replCmd.Counter
	f.state.Current = replCmd.Current
	f.logger.Debug("replicated collection",
		"segments", len(f.state.Segments),
		"counter", f.state.Counter,
	)
	return nil
}

// applyInitialize sets the initial FSM state.
func (f *SessionFSM) applyInitialize(data any) any {
	initCmd, ok := data.(InitializeCommand)
	if !ok {
		return fmt.Errorf("invalid initialize command data")
	}

	f.state = initCmd.State
	f.state.Segments = segment.CloneAll(initCmd.State.Segments)
	f.logger.Info("initialized session state",
		"source", f.state.Source,
		"segments", len(f.state.Segments),
	)
	return nil
}

// Snapshot returns an FSMSnapshot for creating a point-in-time snapshot.
func (f *SessionFSM) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return &fsmSnapshot{state: f.copyStateLocked()}, nil
}

// Restore restores the FSM state from a snapshot.
func (f *SessionFSM) Restore(snapshot io.ReadCloser) error {
	defer snapshot.Close()

	var state SessionState
	if err := gob.NewDecoder(snapshot).Decode(&state); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	f.mu.Lock()
	f.state = state
	f.mu.Unlock()

	f.logger.Info("restored session state from snapshot",
		"source", state.Source,
		"segments", len(state.Segments),
	)
	return nil
}

// GetState returns a copy of the current FSM state.
func (f *SessionFSM) GetState() SessionState {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.copyStateLocked()
}

// copyStateLocked deep copies the state. Caller must hold at least a read
// lock.
func (f *SessionFSM) copyStateLocked() SessionState {
	stateCopy := f.state
	stateCopy.Segments = segment.CloneAll(f.state.Segments)
	return stateCopy
}

// fsmSnapshot implements raft.FSMSnapshot.
type fsmSnapshot struct {
	state SessionState
}

// Persist writes the snapshot to the given sink.
func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s.state); err != nil {
		sink.Cancel()
		return fmt.Errorf("encode snapshot: %w", err)
	}

	if _, err := sink.Write(buf.Bytes()); err != nil {
		sink.Cancel()
		return fmt.Errorf("write snapshot: %w", err)
	}

	return sink.Close()
}

// Release releases any resources held by the snapshot.
func (s *fsmSnapshot) Release() {}

// EncodeCommand encodes a command for Raft submission.
func EncodeCommand(cmd Command) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(cmd); err != nil {
		return nil, fmt.Errorf("encode command: %w", err)
	}
	return buf.Bytes(), nil
}

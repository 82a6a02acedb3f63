// Package cluster replicates the playout cursor across seqplay nodes with Raft,
// so a standby node can take over playback where the leader left off.
package cluster

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/hashicorp/raft"
)

func init() {
	gob.Register(InitializeCommand{})
	gob.Register(PromoteCommand{})
	gob.Register(EndCommand{})
}

// ClusterState is the playout cursor shared by all nodes.
type ClusterState struct {
	// Sequence is the name of the sequence being played.
	Sequence string
	// Clips is the number of clips in the sequence.
	Clips int
	// Index is the clip currently playing.
	Index int
	// Promotions counts clip promotions since the sequence started.
	Promotions int
	// Ended is set once the last clip has ended.
	Ended bool
}

// CommandType identifies the type of Raft command.
type CommandType uint8

const (
	// CommandInitialize sets the cursor state.
	CommandInitialize CommandType = 1
	// CommandPromote moves the cursor to the next clip.
	CommandPromote CommandType = 2
	// CommandEnd marks the sequence as ended.
	CommandEnd CommandType = 3
)

// Command represents a Raft log command.
type Command struct {
	Type CommandType
	Data any
}

// InitializeCommand sets the cursor state.
type InitializeCommand struct {
	State ClusterState
}

// PromoteCommand records that the clip at Index became current.
type PromoteCommand struct {
	Index int
}

// EndCommand records that the sequence ended.
type EndCommand struct{}

// CursorFSM implements the raft.FSM interface for the playout cursor.
type CursorFSM struct {
	mu     sync.RWMutex
	state  ClusterState
	logger *slog.Logger
}

// NewCursorFSM creates a new CursorFSM.
func NewCursorFSM(logger *slog.Logger) *CursorFSM {
	return &CursorFSM{logger: logger}
}

// Apply applies a Raft log entry to the FSM.
func (f *CursorFSM) Apply(log *raft.Log) any {
	var cmd Command
	if err := gob.NewDecoder(bytes.NewReader(log.Data)).Decode(&cmd); err != nil {
		f.logger.Error("failed to decode command", "error", err)
		return fmt.Errorf("decode command: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch cmd.Type {
	case CommandInitialize:
		return f.applyInitialize(cmd.Data)
	case CommandPromote:
		return f.applyPromote(cmd.Data)
	case CommandEnd:
		return f.applyEnd()
	default:
		f.logger.Error("unknown command type", "type", cmd.Type)
		return fmt.Errorf("unknown command type: %d", cmd.Type)
	}
}

func (f *CursorFSM) applyInitialize(data any) any {
	initCmd, ok := data.(InitializeCommand)
	if !ok {
		return fmt.Errorf("invalid initialize command data")
	}

	f.state = initCmd.State
	f.logger.Info("initialized cursor",
		"sequence", f.state.Sequence,
		"clips", f.state.Clips,
		"index", f.state.Index,
	)
	return nil
}

// applyPromote only moves the cursor forward; a promotion from a deposed
// leader that lags the replicated state is ignored.
func (f *CursorFSM) applyPromote(data any) any {
	promCmd, ok := data.(PromoteCommand)
	if !ok {
		return fmt.Errorf("invalid promote command data")
	}

	if f.state.Ended || promCmd.Index <= f.state.Index {
		f.logger.Debug("ignored stale promotion", "index", promCmd.Index, "current", f.state.Index)
		return nil
	}

	f.state.Index = promCmd.Index
	f.state.Promotions++
	f.logger.Debug("promoted cursor", "index", f.state.Index, "promotions", f.state.Promotions)
	return nil
}

func (f *CursorFSM) applyEnd() any {
	f.state.Ended = true
	f.logger.Info("sequence ended", "promotions", f.state.Promotions)
	return nil
}

// Snapshot returns an FSMSnapshot for creating a point-in-time snapshot.
func (f *CursorFSM) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return &fsmSnapshot{state: f.state}, nil
}

// Restore restores the FSM state from a snapshot.
func (f *CursorFSM) Restore(snapshot io.ReadCloser) error {
	defer snapshot.Close()

	var state ClusterState
	if err := gob.NewDecoder(snapshot).Decode(&state); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	f.mu.Lock()
	f.state = state
	f.mu.Unlock()

	f.logger.Info("restored cursor from snapshot", "sequence", state.Sequence, "index", state.Index)
	return nil
}

// GetState returns a copy of the current FSM state.
func (f *CursorFSM) GetState() ClusterState {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state
}

// fsmSnapshot implements raft.FSMSnapshot.
type fsmSnapshot struct {
	state ClusterState
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

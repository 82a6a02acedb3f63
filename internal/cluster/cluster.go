package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/hashicorp/raft"
)

// Manager manages a Raft cluster replicating the playout cursor.
type Manager struct {
	config    Config
	raft      *raft.Raft
	fsm       *CursorFSM
	transport *raft.NetworkTransport
	logger    *slog.Logger
	mu        sync.RWMutex
	shutdown  bool
}

// NewManager creates a new cluster manager.
func NewManager(config Config, logger *slog.Logger) (*Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Manager{
		config:   config,
		fsm:      NewCursorFSM(logger),
		logger:   logger,
		shutdown: false,
	}, nil
}

// Start joins the Raft cluster. Every node bootstraps with the same peer list;
// nodes that find an existing configuration simply rejoin it.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.raft != nil {
		return fmt.Errorf("cluster already started")
	}

	addr, err := net.ResolveTCPAddr("tcp", m.config.BindAddr)
	if err != nil {
		return fmt.Errorf("resolve bind address: %w", err)
	}

	transport, err := raft.NewTCPTransport(m.config.BindAddr, addr, 3, 10*time.Second, nil)
	if err != nil {
		return fmt.Errorf("create transport: %w", err)
	}

	// The cursor is tiny and rebuilt by the leader on start, so in-memory
	// stores are enough.
	r, err := raft.NewRaft(m.raftConfig(), m.fsm,
		raft.NewInmemStore(), raft.NewInmemStore(), raft.NewInmemSnapshotStore(), transport)
	if err != nil {
		transport.Close()
		return fmt.Errorf("create raft: %w", err)
	}
	m.raft = r
	m.transport = transport

	future := r.BootstrapCluster(m.bootstrapConfiguration())
	if err := future.Error(); err != nil && err != raft.ErrCantBootstrap {
		// Not fatal: the node may be rejoining an existing cluster.
		m.logger.Error("failed to bootstrap cluster", "error", err)
	}

	m.logger.Info("cluster started",
		"node_id", m.config.RaftID,
		"bind", m.config.BindAddr,
		"peers", len(m.config.Peers),
	)

	return nil
}

func (m *Manager) raftConfig() *raft.Config {
	c := raft.DefaultConfig()
	// The bind address is the server ID so the bootstrap configuration can be
	// derived from the peer list alone.
	c.LocalID = raft.ServerID(m.config.BindAddr)
	c.HeartbeatTimeout = m.config.HeartbeatTimeout
	c.ElectionTimeout = m.config.ElectionTimeout
	c.LeaderLeaseTimeout = m.config.HeartbeatTimeout
	c.SnapshotInterval = m.config.SnapshotInterval
	c.SnapshotThreshold = m.config.SnapshotThreshold
	c.Logger = newHCLogger(m.logger, m.config.LogLevel)
	return c
}

func (m *Manager) bootstrapConfiguration() raft.Configuration {
	servers := make([]raft.Server, 0, len(m.config.Peers))
	for _, peer := range m.config.Peers {
		servers = append(servers, raft.Server{
			ID:       raft.ServerID(peer),
			Address:  raft.ServerAddress(peer),
			Suffrage: raft.Voter,
		})
	}
	return raft.Configuration{Servers: servers}
}

// Initialize replaces the replicated cursor with state.
func (m *Manager) Initialize(state ClusterState) error {
	return m.apply(Command{
		Type: CommandInitialize,
		Data: InitializeCommand{State: state},
	})
}

// Promote records that the clip at index became current.
func (m *Manager) Promote(index int) error {
	return m.apply(Command{
		Type: CommandPromote,
		Data: PromoteCommand{Index: index},
	})
}

// End records that the sequence has ended.
func (m *Manager) End() error {
	return m.apply(Command{
		Type: CommandEnd,
		Data: EndCommand{},
	})
}

// apply submits cmd to the Raft log and waits for it to commit.
func (m *Manager) apply(cmd Command) error {
	m.mu.RLock()
	if m.shutdown {
		m.mu.RUnlock()
		return fmt.Errorf("cluster is shut down")
	}
	r := m.raft
	m.mu.RUnlock()

	if r == nil {
		return fmt.Errorf("cluster not started")
	}

	data, err := EncodeCommand(cmd)
	if err != nil {
		return fmt.Errorf("encode command: %w", err)
	}

	future := r.Apply(data, m.config.ApplyTimeout)
	if err := future.Error(); err != nil {
		return fmt.Errorf("apply command: %w", err)
	}

	return nil
}

// GetState returns the replicated cursor.
func (m *Manager) GetState() ClusterState {
	return m.fsm.GetState()
}

// IsLeader returns true if this node is the Raft leader.
func (m *Manager) IsLeader() bool {
	m.mu.RLock()
	r := m.raft
	m.mu.RUnlock()

	if r == nil {
		return false
	}

	return r.State() == raft.Leader
}

// LeaderAddr returns the address of the current Raft leader.
func (m *Manager) LeaderAddr() string {
	m.mu.RLock()
	r := m.raft
	m.mu.RUnlock()

	if r == nil {
		return ""
	}

	leaderAddr, _ := r.LeaderWithID()
	return string(leaderAddr)
}

// State returns the current Raft state.
func (m *Manager) State() string {
	m.mu.RLock()
	r := m.raft
	m.mu.RUnlock()

	if r == nil {
		return "NotStarted"
	}

	switch r.State() {
	case raft.Follower:
		return "Follower"
	case raft.Candidate:
		return "Candidate"
	case raft.Leader:
		return "Leader"
	case raft.Shutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}

// QueueSize returns the configured cursor update buffer size.
func (m *Manager) QueueSize() int {
	return m.config.QueueSize
}

// Peers returns the list of peer addresses.
func (m *Manager) Peers() []string {
	return m.config.Peers
}

// NodeID returns this node's Raft ID.
func (m *Manager) NodeID() string {
	return m.config.RaftID
}

// Shutdown gracefully shuts down the Raft cluster.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shutdown {
		return nil
	}

	m.shutdown = true

	if m.raft != nil {
		if err := m.raft.Shutdown().Error(); err != nil {
			m.logger.Error("failed to shutdown raft", "error", err)
			return fmt.Errorf("shutdown raft: %w", err)
		}
	}

	if m.transport != nil {
		if err := m.transport.Close(); err != nil {
			m.logger.Error("failed to close transport", "error", err)
			return fmt.Errorf("close transport: %w", err)
		}
	}

	m.logger.Info("cluster shut down")
	return nil
}

// Info returns cluster status for health reporting.
func (m *Manager) Info() map[string]any {
	state := m.GetState()
	return map[string]any{
		"node_id":     m.NodeID(),
		"state":       m.State(),
		"is_leader":   m.IsLeader(),
		"leader":      m.LeaderAddr(),
		"peers":       m.Peers(),
		"cursor":      state.Index,
		"promotions":  state.Promotions,
		"ended":       state.Ended,
		"sequence":    state.Sequence,
		"total_clips": state.Clips,
	}
}

// WaitForLeader blocks until a leader is elected or context is canceled.
func (m *Manager) WaitForLeader(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if m.LeaderAddr() != "" {
				return nil
			}
		}
	}
}

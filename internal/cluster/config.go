package cluster

import (
	"fmt"
	"net"
	"time"
)

// Config holds the configuration for a cluster node.
type Config struct {
	// RaftID names this node in logs and status output.
	RaftID string
	// BindAddr is the Raft address (host:port). It doubles as the Raft server
	// ID, so it must appear in Peers.
	BindAddr string
	// Peers lists every voter's Raft address, this node included.
	Peers []string

	HeartbeatTimeout  time.Duration
	ElectionTimeout   time.Duration
	SnapshotInterval  time.Duration
	SnapshotThreshold uint64

	// ApplyTimeout bounds how long a cursor update waits to commit.
	ApplyTimeout time.Duration
	// QueueSize is the number of cursor updates a Publisher buffers.
	QueueSize int
	// LogLevel is the Raft log level (trace, debug, info, warn, error, off).
	LogLevel string
}

// Validate checks the configuration and fills in defaults.
func (c *Config) Validate() error {
	if c.RaftID == "" {
		return fmt.Errorf("raft-id is required")
	}

	if c.BindAddr == "" {
		return fmt.Errorf("raft-bind is required")
	}
	if _, _, err := net.SplitHostPort(c.BindAddr); err != nil {
		return fmt.Errorf("invalid raft-bind address %q: %w", c.BindAddr, err)
	}

	if len(c.Peers) == 0 {
		return fmt.Errorf("at least one peer is required")
	}

	seen := make(map[string]bool, len(c.Peers))
	for i, peer := range c.Peers {
		if _, _, err := net.SplitHostPort(peer); err != nil {
			return fmt.Errorf("invalid peer address %d %q: %w", i, peer, err)
		}
		if seen[peer] {
			return fmt.Errorf("duplicate peer address %q", peer)
		}
		seen[peer] = true
	}
	if !seen[c.BindAddr] {
		return fmt.Errorf("raft-bind %q must be listed in peers", c.BindAddr)
	}

	c.setDefaults()
	return nil
}

func (c *Config) setDefaults() {
	if c.HeartbeatTimeout == 0 {
		c.HeartbeatTimeout = time.Second
	}
	if c.ElectionTimeout == 0 {
		c.ElectionTimeout = time.Second
	}
	if c.SnapshotInterval == 0 {
		c.SnapshotInterval = 120 * time.Second
	}
	if c.SnapshotThreshold == 0 {
		c.SnapshotThreshold = 8192
	}
	if c.ApplyTimeout == 0 {
		c.ApplyTimeout = 5 * time.Second
	}
	if c.QueueSize == 0 {
		c.QueueSize = 64
	}
	if c.LogLevel == "" {
		c.LogLevel = "off"
	}
}

package cluster

import (
	"context"
	"log/slog"
)

// Publisher feeds cursor updates from the playout loop into the Raft log.
// Updates are queued without blocking and applied from Run; a node that is
// not the leader drops them.
type Publisher struct {
	manager *Manager
	queue   chan Command
	logger  *slog.Logger
}

// NewPublisher creates a publisher with room for size pending updates.
func NewPublisher(manager *Manager, size int, logger *slog.Logger) *Publisher {
	if size < 1 {
		size = 1
	}
	return &Publisher{
		manager: manager,
		queue:   make(chan Command, size),
		logger:  logger,
	}
}

// Initialize queues a cursor reset.
func (p *Publisher) Initialize(state ClusterState) {
	p.enqueue(Command{Type: CommandInitialize, Data: InitializeCommand{State: state}})
}

// Promote queues a promotion to index.
func (p *Publisher) Promote(index int) {
	p.enqueue(Command{Type: CommandPromote, Data: PromoteCommand{Index: index}})
}

// End queues the end of the sequence.
func (p *Publisher) End() {
	p.enqueue(Command{Type: CommandEnd, Data: EndCommand{}})
}

// Pending returns the number of queued updates.
func (p *Publisher) Pending() int {
	return len(p.queue)
}

// Run applies queued updates until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-p.queue:
			if !p.manager.IsLeader() {
				p.logger.Debug("not leader, dropping cursor update", "type", cmd.Type)
				continue
			}
			if err := p.manager.apply(cmd); err != nil {
				p.logger.Warn("failed to replicate cursor update", "type", cmd.Type, "error", err)
			}
		}
	}
}

func (p *Publisher) enqueue(cmd Command) {
	select {
	case p.queue <- cmd:
	default:
		p.logger.Warn("cursor update queue full, dropping update", "type", cmd.Type)
	}
}

// Package clips manages the lifecycle of live clip instances: the clip being
// played and the one prefetched behind it.
package clips

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/agleyzer/seqplay/internal/media"
	"github.com/agleyzer/seqplay/internal/sequence"
)

// Manager owns at most two live clips, current and next. Every clip it
// creates is destroyed exactly once, on promotion or on teardown.
type Manager struct {
	seq     *sequence.Sequence
	factory media.Factory
	current media.Clip
	next    media.Clip

	created   int
	destroyed int
	logger    *slog.Logger
}

// NewManager creates a lifecycle manager for seq.
func NewManager(seq *sequence.Sequence, factory media.Factory, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{
		seq:     seq,
		factory: factory,
		logger:  logger,
	}
}

// EnsureCurrent instantiates the clip at index as current if there is none.
func (m *Manager) EnsureCurrent(index int) error {
	if m.current != nil {
		return nil
	}

	clip, err := m.create(index)
	if err != nil {
		return err
	}
	m.current = clip
	return nil
}

// EnsureNext prefetches the clip after index if it exists and none is held.
// The clip is prepared immediately so it is ready before the boundary.
func (m *Manager) EnsureNext(index int) error {
	if m.next != nil || index+1 >= m.seq.Len() {
		return nil
	}

	clip, err := m.create(index + 1)
	if err != nil {
		return err
	}
	if err := clip.Prepare(); err != nil {
		m.destroy(clip)
		return fmt.Errorf("failed to prepare clip %d: %w", index+1, err)
	}
	m.next = clip

	m.logger.Debug("prefetched next clip", "index", index+1, "clip", clip.Name())
	return nil
}

// Promote retires the current clip and its transition, then makes the
// prefetched clip current. It does nothing when there is no current clip.
func (m *Manager) Promote() {
	if m.current == nil {
		return
	}

	outgoing := m.current
	m.destroy(outgoing)
	m.current = m.next
	m.next = nil

	m.logger.Debug("promoted clip", "retired", outgoing.Name(), "live", m.Live())
}

// Teardown destroys every live clip.
func (m *Manager) Teardown() {
	if m.next != nil {
		m.destroy(m.next)
		m.next = nil
	}
	if m.current != nil {
		m.destroy(m.current)
		m.current = nil
	}
}

// Current returns the clip being played, or nil.
func (m *Manager) Current() media.Clip { return m.current }

// Next returns the prefetched clip, or nil.
func (m *Manager) Next() media.Clip { return m.next }

// Live returns the number of live clip instances.
func (m *Manager) Live() int {
	n := 0
	if m.current != nil {
		n++
	}
	if m.next != nil {
		n++
	}
	return n
}

// Created returns the number of clips instantiated so far.
func (m *Manager) Created() int { return m.created }

// Destroyed returns the number of clips destroyed so far.
func (m *Manager) Destroyed() int { return m.destroyed }

func (m *Manager) create(index int) (media.Clip, error) {
	if index < 0 || index >= m.seq.Len() {
		return nil, fmt.Errorf("clip index %d out of range (0-%d)", index, m.seq.Len()-1)
	}

	clip, err := m.factory.NewClip(index, m.seq.At(index), m.seq.Span(index))
	if err != nil {
		return nil, fmt.Errorf("failed to create clip %d: %w", index, err)
	}
	m.created++

	m.logger.Debug("created clip", "index", index, "clip", clip.Name(), "instance", clip.ID())
	return clip, nil
}

func (m *Manager) destroy(clip media.Clip) {
	if t := clip.EndTransition(); t != nil {
		t.Detach()
		t.Destroy()
	}
	clip.Destroy()
	m.destroyed++
}

// Package timeline implements the playback state machine that steps through a
// clip sequence, blending across clip boundaries in time with the render clock.
//
// A Timeline is driven entirely by notifications delivered on one goroutine:
// render clock advances, clip time updates and clip ended events. It never
// blocks and holds no locks; callers must not touch it concurrently.
package timeline

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/agleyzer/seqplay/internal/clips"
	"github.com/agleyzer/seqplay/internal/clock"
	"github.com/agleyzer/seqplay/internal/event"
	"github.com/agleyzer/seqplay/internal/media"
	"github.com/agleyzer/seqplay/internal/render"
	"github.com/agleyzer/seqplay/internal/sequence"
	"github.com/agleyzer/seqplay/internal/transition"
)

var (
	// ErrAlreadyStarted is returned when Start is called more than once.
	ErrAlreadyStarted = errors.New("timeline already started")
	// ErrClosed is returned when Start is called after Close.
	ErrClosed = errors.New("timeline closed")
)

// Phase is the state of the playback state machine.
type Phase int

const (
	// Uninitialized is the state before Start.
	Uninitialized Phase = iota
	// PlayingClip plays the current clip outside any overlap window.
	PlayingClip
	// InTransition plays the current clip inside its overlap window with the
	// transition shown. The clip index does not change.
	InTransition
	// Ended is reached once the last clip has ended.
	Ended
)

func (p Phase) String() string {
	switch p {
	case Uninitialized:
		return "Uninitialized"
	case PlayingClip:
		return "PlayingClip"
	case InTransition:
		return "InTransition"
	case Ended:
		return "Ended"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Observer receives timeline lifecycle events. Calls are made synchronously on
// the goroutine driving the timeline and must not block.
type Observer interface {
	OnClipStarted(index int, clip media.Clip)
	OnTransitionActivated(index int, overlapStart time.Duration)
	OnPromoted(index int)
	OnSequenceEnded(promotions int)
}

// Option configures a Timeline.
type Option func(*Timeline)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(tl *Timeline) {
		if logger != nil {
			tl.logger = logger
		}
	}
}

// WithObserver registers an observer for lifecycle events.
func WithObserver(o Observer) Option {
	return func(tl *Timeline) { tl.observer = o }
}

// Timeline orchestrates playback of a sequence.
type Timeline struct {
	seq      *sequence.Sequence
	clock    clock.Clock
	surfaces *render.Surfaces
	clips    *clips.Manager
	binder   *transition.Binder
	listener clock.Listener
	clipSubs event.Group
	ended    event.Signal

	index        int
	phase        Phase
	pending      bool
	overlapStart time.Duration
	promotions   int
	closed       bool
	err          error

	observer Observer
	logger   *slog.Logger
}

// New creates a timeline for seq. Clips are created by factory, deferred
// steps run on clk, and content is presented through surfaces. The sequence
// contents are validated by Start.
func New(seq *sequence.Sequence, factory media.Factory, clk clock.Clock, surfaces *render.Surfaces, opts ...Option) (*Timeline, error) {
	if seq == nil {
		return nil, fmt.Errorf("sequence is required")
	}
	if factory == nil {
		return nil, fmt.Errorf("clip factory is required")
	}
	if clk == nil {
		return nil, fmt.Errorf("render clock is required")
	}
	if surfaces == nil {
		return nil, fmt.Errorf("render surfaces are required")
	}

	tl := &Timeline{
		seq:          seq,
		clock:        clk,
		surfaces:     surfaces,
		overlapStart: transition.NoTransition,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(tl)
	}

	tl.clips = clips.NewManager(seq, factory, tl.logger)
	tl.binder = transition.NewBinder(tl.logger)

	return tl, nil
}

// Start validates the sequence and begins playing its first clip.
func (tl *Timeline) Start() error {
	if tl.closed {
		return ErrClosed
	}
	if tl.phase != Uninitialized {
		return ErrAlreadyStarted
	}
	if err := tl.seq.Validate(); err != nil {
		return fmt.Errorf("invalid sequence: %w", err)
	}

	tl.logger.Info("starting timeline",
		"sequence", tl.seq.Name(),
		"clips", tl.seq.Len(),
		"duration", tl.seq.Total(),
	)

	if err := tl.initializeClip(); err != nil {
		tl.clipSubs.CancelAll()
		tl.clips.Teardown()
		tl.phase = Uninitialized
		return err
	}
	return nil
}

// OnEnded registers fn to run once the last clip has ended.
func (tl *Timeline) OnEnded(fn func()) event.Subscription {
	return tl.ended.Subscribe(fn)
}

// Close tears the timeline down: it cancels every pending subscription,
// unbinds any transition and destroys the live clips. It is safe to call more
// than once.
func (tl *Timeline) Close() {
	if tl.closed {
		return
	}
	tl.closed = true

	tl.listener.Cancel()
	tl.pending = false
	tl.clipSubs.CancelAll()

	tl.surfaces.Container.Unbind()
	tl.surfaces.ShowMain()
	tl.surfaces.Main.Clear()
	tl.surfaces.Aux.Clear()
	tl.binder.Reset()
	tl.clips.Teardown()

	tl.logger.Info("timeline closed",
		"index", tl.index,
		"promotions", tl.promotions,
		"created", tl.clips.Created(),
		"destroyed", tl.clips.Destroyed(),
	)
}

// initializeClip makes the clip at the current index playable: it ensures the
// current and next instances exist, computes the overlap window and
// subscribes to the clip's notifications.
func (tl *Timeline) initializeClip() error {
	if err := tl.clips.EnsureCurrent(tl.index); err != nil {
		return fmt.Errorf("failed to initialize clip %d: %w", tl.index, err)
	}
	if err := tl.clips.EnsureNext(tl.index); err != nil {
		// Retried when the boundary is reached; until then the boundary is a hard cut.
		tl.logger.Warn("failed to prefetch next clip", "index", tl.index+1, "error", err)
	}

	clip := tl.clips.Current()
	tl.surfaces.Main.Bind(clip)
	if next := tl.clips.Next(); next != nil {
		tl.surfaces.Aux.Bind(next)
	} else {
		tl.surfaces.Aux.Clear()
	}
	tl.phase = PlayingClip

	if tl.seq.IsLast(tl.index) {
		tl.overlapStart = transition.NoTransition
		tl.clipSubs.Add(clip.OnEnded(tl.onLastClipEnded))
	} else {
		tl.overlapStart = transition.ComputeOverlapStart(clip, tl.clips.Next(), clip.EndTransition())
		tl.clipSubs.Add(clip.OnTimeChanged(tl.onTimeChanged))
		tl.clipSubs.Add(clip.OnEnded(tl.onClipEnded))
	}

	tl.logger.Info("playing clip",
		"index", tl.index,
		"clip", clip.Name(),
		"endTime", clip.EndTime(),
		"overlapStart", tl.overlapStart,
	)
	if tl.observer != nil {
		tl.observer.OnClipStarted(tl.index, clip)
	}

	clip.Play()
	return nil
}

func (tl *Timeline) onTimeChanged() {
	if tl.closed || tl.phase == Ended || tl.overlapStart == transition.NoTransition {
		return
	}

	clip := tl.clips.Current()
	active := tl.binder.MaybeActivate(
		clip.EndTransition(),
		clip.CurrentTime().Start,
		tl.overlapStart,
		clip.EndTime(),
		tl.surfaces,
	)
	if !active || tl.phase == InTransition {
		return
	}

	tl.phase = InTransition
	tl.logger.Debug("entered transition", "index", tl.index, "overlapStart", tl.overlapStart)
	if tl.observer != nil {
		tl.observer.OnTransitionActivated(tl.index, tl.overlapStart)
	}
}

// onClipEnded defers promotion to the next clock advance so the ended clip is
// not destroyed from inside its own notification.
func (tl *Timeline) onClipEnded() {
	if tl.closed || tl.pending {
		return
	}
	tl.pending = tl.listener.ArmOnce(tl.clock, tl.advance)
}

func (tl *Timeline) advance() {
	tl.pending = false
	if tl.closed || tl.phase == Ended {
		return
	}

	tl.clipSubs.CancelAll()

	// The incoming clip is already bound to the auxiliary surface.
	tl.surfaces.Swap()
	tl.surfaces.Aux.Clear()
	tl.surfaces.Container.Unbind()
	tl.surfaces.ShowMain()
	tl.binder.Reset()

	tl.clips.Promote()
	tl.index++
	tl.promotions++

	tl.logger.Info("promoted clip", "index", tl.index, "promotions", tl.promotions)
	if tl.observer != nil {
		tl.observer.OnPromoted(tl.index)
	}

	if err := tl.initializeClip(); err != nil {
		tl.fail(err)
	}
}

func (tl *Timeline) onLastClipEnded() {
	if tl.closed {
		return
	}
	tl.finish()
}

func (tl *Timeline) fail(err error) {
	tl.err = err
	tl.logger.Error("timeline failed", "index", tl.index, "error", err)
	tl.finish()
}

func (tl *Timeline) finish() {
	if tl.phase == Ended {
		return
	}
	tl.phase = Ended
	tl.clipSubs.CancelAll()

	tl.logger.Info("sequence ended", "promotions", tl.promotions)
	if tl.observer != nil {
		tl.observer.OnSequenceEnded(tl.promotions)
	}
	tl.ended.Emit()
}

package media

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/agleyzer/seqplay/internal/clock"
	"github.com/agleyzer/seqplay/internal/event"
	"github.com/agleyzer/seqplay/internal/interval"
	"github.com/agleyzer/seqplay/internal/sequence"
)

// FrameClip is a clip that steps one frame per render clock advance.
// Its end time is rounded up to a frame boundary so the last frame lands on it exactly.
// Time-changed fires for every frame, including the first one when Play is called.
type FrameClip struct {
	id         string
	index      int
	desc       sequence.Descriptor
	span       interval.Interval
	endTime    time.Duration
	frame      time.Duration
	clock      clock.Clock
	current    interval.Interval
	frameCount int64
	transition Transition

	timeChanged event.Signal
	ended       event.Signal
	tick        event.Subscription

	prepared  bool
	playing   bool
	hasEnded  bool
	destroyed bool
	logger    *slog.Logger
}

// NewFrameClip creates a clip for descriptor d occupying span on the timeline.
func NewFrameClip(index int, d sequence.Descriptor, span interval.Interval, c clock.Clock, frame time.Duration, logger *slog.Logger) *FrameClip {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	fc := &FrameClip{
		id:      uuid.NewString(),
		index:   index,
		desc:    d,
		span:    span,
		endTime: span.Start + AlignEnd(span.Duration(), frame),
		frame:   frame,
		clock:   c,
		current: interval.New(span.Start, span.Start+frame),
	}
	if d.Transition != nil {
		fc.transition = NewBlend(*d.Transition)
	}
	fc.logger = logger.With("clip", d.Name, "index", index, "instance", fc.id)

	return fc
}

// ID implements Content.
func (c *FrameClip) ID() string { return c.id }

// Name implements Clip.
func (c *FrameClip) Name() string { return c.desc.Name }

// Index implements Clip.
func (c *FrameClip) Index() int { return c.index }

// Source returns the media location the clip plays.
func (c *FrameClip) Source() string { return c.desc.Source }

// Duration implements Clip.
func (c *FrameClip) Duration() time.Duration { return c.desc.Duration }

// EndTime implements Clip.
func (c *FrameClip) EndTime() time.Duration { return c.endTime }

// CurrentTime implements Clip.
func (c *FrameClip) CurrentTime() interval.Interval { return c.current }

// MediaTime returns the position within the source media, honoring the descriptor's in-point.
func (c *FrameClip) MediaTime() time.Duration {
	return c.desc.Start + c.current.Start - c.span.Start
}

// EndTransition implements Clip.
func (c *FrameClip) EndTransition() Transition { return c.transition }

// OnTimeChanged implements Clip.
func (c *FrameClip) OnTimeChanged(fn func()) event.Subscription {
	return c.timeChanged.Subscribe(fn)
}

// OnEnded implements Clip.
func (c *FrameClip) OnEnded(fn func()) event.Subscription {
	return c.ended.Subscribe(fn)
}

// Prepare implements Clip.
func (c *FrameClip) Prepare() error {
	if c.destroyed {
		return fmt.Errorf("clip %s already destroyed", c.desc.Name)
	}
	if c.prepared {
		return nil
	}
	c.prepared = true
	c.logger.Debug("clip prepared", "source", c.desc.Source, "start", c.desc.Start)
	return nil
}

// Prepared reports whether Prepare has run.
func (c *FrameClip) Prepared() bool { return c.prepared }

// Play implements Clip.
func (c *FrameClip) Play() {
	if c.destroyed || c.playing || c.hasEnded {
		return
	}
	if !c.prepared {
		if err := c.Prepare(); err != nil {
			c.logger.Error("failed to prepare clip", "error", err)
			return
		}
	}
	c.playing = true
	c.tick = c.clock.OnAdvance(c.render)
	c.logger.Debug("clip playing", "end", c.endTime)

	// The first frame is on screen from the moment playback starts.
	c.timeChanged.Emit()
}

// Playing reports whether the clip is advancing with the clock.
func (c *FrameClip) Playing() bool { return c.playing }

// Ended reports whether the clip has reached its end time.
func (c *FrameClip) Ended() bool { return c.hasEnded }

// Destroy implements Clip.
func (c *FrameClip) Destroy() {
	if c.destroyed {
		return
	}
	c.stop()
	if c.transition != nil {
		c.transition.Destroy()
	}
	c.destroyed = true
	c.logger.Debug("clip destroyed")
}

// Destroyed reports whether Destroy has been called.
func (c *FrameClip) Destroyed() bool { return c.destroyed }

// render advances one frame. The final frame starts exactly at EndTime and is
// followed by the ended notification.
func (c *FrameClip) render() {
	if !c.playing {
		return
	}

	c.frameCount++
	start := c.span.Start + time.Duration(c.frameCount)*c.frame
	if start > c.endTime {
		start = c.endTime
	}
	c.current = interval.New(start, start+c.frame)

	c.timeChanged.Emit()
	if c.destroyed || start < c.endTime {
		return
	}

	c.stop()
	c.hasEnded = true
	c.logger.Debug("clip ended", "frames", c.frameCount)
	c.ended.Emit()
}

func (c *FrameClip) stop() {
	if c.tick != nil {
		c.tick.Cancel()
		c.tick = nil
	}
	c.playing = false
}

// FrameFactory creates FrameClips bound to a render clock.
type FrameFactory struct {
	clock  clock.Clock
	frame  time.Duration
	logger *slog.Logger
}

// NewFrameFactory creates a factory for clips stepping frame by frame on c.
func NewFrameFactory(c clock.Clock, frame time.Duration, logger *slog.Logger) *FrameFactory {
	return &FrameFactory{clock: c, frame: frame, logger: logger}
}

// NewClip implements Factory.
func (f *FrameFactory) NewClip(index int, d sequence.Descriptor, span interval.Interval) (Clip, error) {
	if f.frame <= 0 {
		return nil, fmt.Errorf("invalid frame duration %v", f.frame)
	}
	return NewFrameClip(index, d, span, f.clock, f.frame, f.logger), nil
}

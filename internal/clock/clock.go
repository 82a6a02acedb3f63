// Package clock provides the render clock and the one-shot listener used to
// defer work to the next clock advance.
package clock

import (
	"time"

	"github.com/agleyzer/seqplay/internal/event"
	"github.com/agleyzer/seqplay/internal/interval"
)

// Clock is the capability the scheduler needs from a render clock.
type Clock interface {
	// OnAdvance registers fn to be called every time the clock advances.
	OnAdvance(fn func()) event.Subscription
}

// Render is a frame clock advanced explicitly by its owner, one frame per call.
type Render struct {
	advanced      event.Signal
	frameDuration time.Duration
	current       interval.Interval
	ticks         uint64
}

// NewRender creates a render clock whose frames last frameDuration.
func NewRender(frameDuration time.Duration) *Render {
	return &Render{
		frameDuration: frameDuration,
		current:       interval.New(0, frameDuration),
	}
}

// OnAdvance implements Clock.
func (r *Render) OnAdvance(fn func()) event.Subscription {
	return r.advanced.Subscribe(fn)
}

// Advance moves the clock forward one frame and notifies subscribers.
func (r *Render) Advance() {
	r.ticks++
	r.current = r.current.Next(r.frameDuration)
	r.advanced.Emit()
}

// Ticks returns the number of advances so far.
func (r *Render) Ticks() uint64 {
	return r.ticks
}

// CurrentFrame returns the interval of the frame being rendered.
func (r *Render) CurrentFrame() interval.Interval {
	return r.current
}

// FrameDuration returns the length of one frame.
func (r *Render) FrameDuration() time.Duration {
	return r.frameDuration
}

// Subscribers returns the number of active advance subscriptions.
func (r *Render) Subscribers() int {
	return r.advanced.Len()
}

// Listener holds at most one armed one-shot subscription to a clock.
// The zero value is ready to use.
type Listener struct {
	sub event.Subscription
}

// ArmOnce subscribes handler to the next advance of c. The subscription is
// cancelled before handler runs, so handler fires at most once. If the
// listener is already armed, ArmOnce does nothing and returns false.
func (l *Listener) ArmOnce(c Clock, handler func()) bool {
	if l.sub != nil {
		return false
	}
	l.sub = c.OnAdvance(func() {
		l.Cancel()
		handler()
	})
	return true
}

// Armed reports whether a one-shot subscription is pending.
func (l *Listener) Armed() bool {
	return l.sub != nil
}

// Cancel drops the pending subscription, if any.
func (l *Listener) Cancel() {
	if l.sub == nil {
		return
	}
	l.sub.Cancel()
	l.sub = nil
}

// Package transition computes clip overlap windows and drives a transition's
// blend progress across them.
package transition

import (
	"io"
	"log/slog"
	"time"

	"github.com/agleyzer/seqplay/internal/media"
	"github.com/agleyzer/seqplay/internal/render"
)

// NoTransition is the overlap start reported for a boundary without a blend.
const NoTransition time.Duration = -1

// ComputeOverlapStart returns the timeline time at which the blend from clip
// into next begins. The overlap is clamped so it never outlasts the transition
// or either clip. A missing clip or transition, or a non-positive overlap,
// yields NoTransition.
func ComputeOverlapStart(clip, next media.Clip, t media.Transition) time.Duration {
	if clip == nil || next == nil || t == nil {
		return NoTransition
	}

	overlap := min(t.Duration(), clip.Duration(), next.Duration())
	if overlap <= 0 {
		return NoTransition
	}
	return clip.EndTime() - overlap
}

// Progress maps a playback time inside [overlapStart, endTime] to a blend
// value in [0, 1]. ok is false for a degenerate window.
func Progress(at, overlapStart, endTime time.Duration) (value float64, ok bool) {
	if overlapStart < 0 || endTime <= overlapStart {
		return 0, false
	}
	if at <= overlapStart {
		return 0, true
	}
	if at >= endTime {
		return 1, true
	}
	return float64(at-overlapStart) / float64(endTime-overlapStart), true
}

// Binder attaches a transition to the render surfaces when playback enters the
// overlap window and keeps its progress current until the clip ends.
type Binder struct {
	active media.Transition
	last   float64
	logger *slog.Logger
}

// NewBinder creates a binder.
func NewBinder(logger *slog.Logger) *Binder {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Binder{logger: logger}
}

// MaybeActivate reports whether t is active after processing playback time
// at. Before the window it does nothing. On the first call inside the window
// it binds t into the container, assigns the main surface as source and the
// auxiliary surface as destination, then shows the container. Every call
// inside the window sets the blend progress, which never decreases within
// one activation.
func (b *Binder) MaybeActivate(t media.Transition, at, overlapStart, endTime time.Duration, s *render.Surfaces) bool {
	if t == nil {
		return false
	}
	value, ok := Progress(at, overlapStart, endTime)
	if !ok || at < overlapStart {
		return false
	}

	if !t.Attached() {
		s.Container.Bind(t)
		t.SetSource(s.Main.Content())
		t.SetDest(s.Aux.Content())
		b.active = t
		b.last = 0
		t.SetTime(value)
		s.ShowTransition()

		b.logger.Debug("transition activated",
			"overlapStart", overlapStart,
			"endTime", endTime,
			"at", at,
		)
		b.last = value
		return true
	}

	if value < b.last {
		value = b.last
	}
	b.last = value
	t.SetTime(value)
	return true
}

// Active returns the transition bound by the last activation, or nil.
func (b *Binder) Active() media.Transition {
	return b.active
}

// Reset forgets the active transition. The caller is responsible for
// unbinding it from the surfaces.
func (b *Binder) Reset() {
	b.active = nil
	b.last = 0
}

package media

import (
	"time"

	"github.com/google/uuid"

	"github.com/agleyzer/seqplay/internal/sequence"
)

// Blend is a transition that records blend progress instead of compositing pixels.
type Blend struct {
	id        string
	kind      string
	duration  time.Duration
	time      float64
	source    Content
	dest      Content
	attached  bool
	destroyed bool
	history   []float64
}

// NewBlend creates a blend from a transition spec.
func NewBlend(spec sequence.TransitionSpec) *Blend {
	kind := spec.Kind
	if kind == "" {
		kind = sequence.KindCrossfade
	}
	return &Blend{
		id:       uuid.NewString(),
		kind:     kind,
		duration: spec.Duration,
	}
}

// ID implements Content.
func (b *Blend) ID() string { return b.id }

// Kind returns the blend effect name.
func (b *Blend) Kind() string { return b.kind }

// Duration implements Transition.
func (b *Blend) Duration() time.Duration { return b.duration }

// Time implements Transition.
func (b *Blend) Time() float64 { return b.time }

// SetTime implements Transition.
func (b *Blend) SetTime(t float64) {
	if b.destroyed {
		return
	}
	b.time = t
	b.history = append(b.history, t)
}

// SetSource implements Transition.
func (b *Blend) SetSource(c Content) { b.source = c }

// SetDest implements Transition.
func (b *Blend) SetDest(c Content) { b.dest = c }

// Source returns the bound source content.
func (b *Blend) Source() Content { return b.source }

// Dest returns the bound destination content.
func (b *Blend) Dest() Content { return b.dest }

// Attached implements Transition.
func (b *Blend) Attached() bool { return b.attached }

// Attach implements Transition.
func (b *Blend) Attach() {
	if b.destroyed {
		return
	}
	b.attached = true
}

// Detach implements Transition.
func (b *Blend) Detach() { b.attached = false }

// Destroy implements Transition.
func (b *Blend) Destroy() {
	if b.destroyed {
		return
	}
	b.Detach()
	b.source = nil
	b.dest = nil
	b.destroyed = true
}

// Destroyed reports whether Destroy has been called.
func (b *Blend) Destroyed() bool { return b.destroyed }

// History returns every progress value set so far.
func (b *Blend) History() []float64 {
	out := make([]float64, len(b.history))
	copy(out, b.history)
	return out
}

// Package media defines the clip and transition capabilities the scheduler
// consumes, along with frame-stepping implementations driven by the render clock.
package media

import (
	"time"

	"github.com/agleyzer/seqplay/internal/event"
	"github.com/agleyzer/seqplay/internal/interval"
	"github.com/agleyzer/seqplay/internal/sequence"
)

// Content is anything a render surface can display.
type Content interface {
	ID() string
}

// Transition is a blend effect between two clips' surfaces.
type Transition interface {
	// Duration is the nominal overlap length.
	Duration() time.Duration

	// Time is the blend progress: 0 is fully source, 1 is fully destination.
	Time() float64
	SetTime(t float64)

	SetSource(c Content)
	SetDest(c Content)

	// Attached reports whether the transition is bound into the render tree.
	Attached() bool
	Attach()
	Detach()

	// Destroy releases the transition. It is safe to call more than once.
	Destroy()
}

// Clip is one playable media segment placed on the timeline.
type Clip interface {
	Content

	Name() string
	Index() int

	// Duration is the nominal clip length.
	Duration() time.Duration

	// EndTime is the absolute timeline time at which the clip ends.
	EndTime() time.Duration

	// CurrentTime is the frame interval being played. Its Start never decreases.
	CurrentTime() interval.Interval

	// EndTransition is the blend into the next clip, or nil for a hard cut.
	// The clip owns it.
	EndTransition() Transition

	OnTimeChanged(fn func()) event.Subscription

	// OnEnded handlers fire exactly once, when playback reaches EndTime.
	OnEnded(fn func()) event.Subscription

	// Prepare starts acquiring playback resources ahead of Play.
	Prepare() error

	// Play starts advancing CurrentTime.
	Play()

	// Destroy releases all clip resources, including its transition.
	// It is safe to call more than once.
	Destroy()
}

// Factory instantiates clips from sequence descriptors.
type Factory interface {
	NewClip(index int, d sequence.Descriptor, span interval.Interval) (Clip, error)
}

// FrameDuration returns the length of one frame at fps frames per second.
func FrameDuration(fps float64) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / fps)
}

// AlignEnd rounds d up to a whole number of frames.
func AlignEnd(d, frame time.Duration) time.Duration {
	if frame <= 0 {
		return d
	}
	frames := d / frame
	aligned := frames * frame
	if aligned < d {
		aligned += frame
	}
	return aligned
}

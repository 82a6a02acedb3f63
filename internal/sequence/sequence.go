// Package sequence defines the immutable clip sequence that the timeline plays.
package sequence

import (
	"errors"
	"fmt"
	"time"

	"github.com/agleyzer/seqplay/internal/interval"
)

var (
	// ErrEmpty is returned for a sequence with zero clips.
	ErrEmpty = errors.New("sequence has no clips")
	// ErrNegativeDuration is returned for a transition with a negative duration.
	ErrNegativeDuration = errors.New("transition duration is negative")
	// ErrInvalidClip is returned for a clip with a non-positive duration or a negative start.
	ErrInvalidClip = errors.New("invalid clip")
)

// Transition kinds understood by the built-in blend.
const (
	KindCrossfade = "crossfade"
	KindWipe      = "wipe"
	KindDip       = "dip"
)

// TransitionSpec describes the blend at the end of a clip.
type TransitionSpec struct {
	// Kind names the blend effect (crossfade, wipe, dip)
	Kind string

	// Duration is the nominal overlap length
	Duration time.Duration
}

// Descriptor is the template a clip instance is created from.
type Descriptor struct {
	// Name identifies the clip in logs and playlists
	Name string

	// Source is the media location (file path or URL)
	Source string

	// Start is the in-point within the source media
	Start time.Duration

	// Duration is the nominal clip length
	Duration time.Duration

	// Transition is the blend into the following clip.
	// Nil means the boundary is a hard cut.
	Transition *TransitionSpec
}

// Sequence is an ordered, immutable list of clip descriptors.
type Sequence struct {
	name        string
	descriptors []Descriptor
	offsets     []time.Duration
}

// New creates a sequence from descriptors. The slice is copied.
func New(name string, descriptors []Descriptor) *Sequence {
	s := &Sequence{
		name:        name,
		descriptors: make([]Descriptor, len(descriptors)),
		offsets:     make([]time.Duration, len(descriptors)),
	}

	var offset time.Duration
	for i, d := range descriptors {
		if d.Transition != nil {
			spec := *d.Transition
			d.Transition = &spec
		}
		s.descriptors[i] = d
		s.offsets[i] = offset
		offset += d.Duration
	}

	return s
}

// Name returns the sequence name.
func (s *Sequence) Name() string {
	return s.name
}

// Len returns the number of clips.
func (s *Sequence) Len() int {
	return len(s.descriptors)
}

// At returns the descriptor at index i. The last clip never carries a
// transition, whatever its source declared.
func (s *Sequence) At(i int) Descriptor {
	d := s.descriptors[i]
	if d.Transition != nil {
		spec := *d.Transition
		d.Transition = &spec
	}
	if s.IsLast(i) {
		d.Transition = nil
	}
	return d
}

// IsLast reports whether i is the final index.
func (s *Sequence) IsLast(i int) bool {
	return i == len(s.descriptors)-1
}

// Span returns the timeline interval occupied by clip i.
func (s *Sequence) Span(i int) interval.Interval {
	start := s.offsets[i]
	return interval.New(start, start+s.descriptors[i].Duration)
}

// Total returns the summed clip duration.
func (s *Sequence) Total() time.Duration {
	if len(s.descriptors) == 0 {
		return 0
	}
	return s.Span(len(s.descriptors) - 1).End
}

// Descriptors returns a copy of every descriptor, as returned by At.
func (s *Sequence) Descriptors() []Descriptor {
	out := make([]Descriptor, len(s.descriptors))
	for i := range s.descriptors {
		out[i] = s.At(i)
	}
	return out
}

// Tail returns a sequence of the clips from index from onward.
// An index past the end yields an empty sequence.
func (s *Sequence) Tail(from int) *Sequence {
	if from <= 0 {
		return New(s.name, s.descriptors)
	}
	if from >= len(s.descriptors) {
		return New(s.name, nil)
	}
	return New(s.name, s.descriptors[from:])
}

// Validate checks the sequence for configuration errors.
func (s *Sequence) Validate() error {
	if s == nil || len(s.descriptors) == 0 {
		return ErrEmpty
	}

	for i, d := range s.descriptors {
		if d.Duration <= 0 {
			return fmt.Errorf("clip %d (%s): duration %v must be positive: %w", i, d.Name, d.Duration, ErrInvalidClip)
		}
		if d.Start < 0 {
			return fmt.Errorf("clip %d (%s): start %v must not be negative: %w", i, d.Name, d.Start, ErrInvalidClip)
		}
		if d.Transition != nil && d.Transition.Duration < 0 {
			return fmt.Errorf("clip %d (%s): %v: %w", i, d.Name, d.Transition.Duration, ErrNegativeDuration)
		}
	}

	return nil
}

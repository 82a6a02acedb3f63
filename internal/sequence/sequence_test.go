package sequence

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestSequence(durations ...time.Duration) *Sequence {
	descriptors := make([]Descriptor, len(durations))
	for i, d := range durations {
		descriptors[i] = Descriptor{
			Name:       "clip" + string(rune('0'+i)),
			Source:     "file:///clip" + string(rune('0'+i)) + ".mp4",
			Duration:   d,
			Transition: &TransitionSpec{Kind: KindCrossfade, Duration: 2 * time.Second},
		}
	}
	return New("test", descriptors)
}

func TestSequence_Span(t *testing.T) {
	seq := newTestSequence(10*time.Second, 5*time.Second, 10*time.Second)

	tests := []struct {
		index     int
		wantStart time.Duration
		wantEnd   time.Duration
	}{
		{0, 0, 10 * time.Second},
		{1, 10 * time.Second, 15 * time.Second},
		{2, 15 * time.Second, 25 * time.Second},
	}

	for _, tt := range tests {
		span := seq.Span(tt.index)
		if span.Start != tt.wantStart || span.End != tt.wantEnd {
			t.Errorf("Span(%d) = %v, want [%v, %v)", tt.index, span, tt.wantStart, tt.wantEnd)
		}
	}

	if seq.Total() != 25*time.Second {
		t.Errorf("Total() = %v, want 25s", seq.Total())
	}
}

func TestSequence_LastClipHasNoTransition(t *testing.T) {
	seq := newTestSequence(time.Second, time.Second)

	if seq.At(0).Transition == nil {
		t.Error("first clip should keep its transition")
	}
	if seq.At(1).Transition != nil {
		t.Error("last clip should never carry a transition")
	}
	if !seq.IsLast(1) || seq.IsLast(0) {
		t.Error("IsLast reported the wrong index")
	}
}

func TestSequence_IsImmutable(t *testing.T) {
	descriptors := []Descriptor{
		{Name: "a", Duration: time.Second, Transition: &TransitionSpec{Duration: time.Second}},
		{Name: "b", Duration: time.Second},
	}
	seq := New("immutable", descriptors)

	descriptors[0].Name = "changed"
	descriptors[0].Transition.Duration = time.Hour

	got := seq.At(0)
	if got.Name != "a" {
		t.Errorf("Name = %q, want %q", got.Name, "a")
	}
	if got.Transition.Duration != time.Second {
		t.Errorf("Transition.Duration = %v, want 1s", got.Transition.Duration)
	}

	got.Transition.Duration = time.Minute
	if seq.At(0).Transition.Duration != time.Second {
		t.Error("At returned a transition aliasing internal state")
	}
}

func TestSequence_Validate(t *testing.T) {
	tests := []struct {
		name    string
		seq     *Sequence
		wantErr error
	}{
		{
			name:    "nil sequence",
			seq:     nil,
			wantErr: ErrEmpty,
		},
		{
			name:    "zero clips",
			seq:     New("empty", nil),
			wantErr: ErrEmpty,
		},
		{
			name: "negative transition duration",
			seq: New("neg", []Descriptor{
				{Name: "a", Duration: time.Second, Transition: &TransitionSpec{Duration: -time.Second}},
				{Name: "b", Duration: time.Second},
			}),
			wantErr: ErrNegativeDuration,
		},
		{
			name:    "zero clip duration",
			seq:     New("zero", []Descriptor{{Name: "a"}}),
			wantErr: ErrInvalidClip,
		},
		{
			name:    "negative start",
			seq:     New("start", []Descriptor{{Name: "a", Duration: time.Second, Start: -time.Second}}),
			wantErr: ErrInvalidClip,
		},
		{
			name:    "valid",
			seq:     newTestSequence(time.Second, time.Second),
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.seq.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

const testSequenceYAML = `
name: demo
transition:
  kind: wipe
  duration: 1s
clips:
  - name: intro
    source: intro.mp4
    duration: 10s
  - name: middle
    source: middle.mp4
    start: 2s
    duration: "4.5"
    transition:
      duration: 3s
  - name: hard
    source: hard.mp4
    duration: 5s
    cut: true
  - source: outro.mp4
    duration: 1m
`

func TestParse(t *testing.T) {
	seq, err := Parse([]byte(testSequenceYAML))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if seq.Name() != "demo" {
		t.Errorf("Name() = %q, want demo", seq.Name())
	}
	if seq.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", seq.Len())
	}

	intro := seq.At(0)
	if intro.Transition == nil || intro.Transition.Kind != KindWipe || intro.Transition.Duration != time.Second {
		t.Errorf("intro transition = %+v, want default wipe 1s", intro.Transition)
	}

	middle := seq.At(1)
	if middle.Start != 2*time.Second {
		t.Errorf("middle start = %v, want 2s", middle.Start)
	}
	if middle.Duration != 4500*time.Millisecond {
		t.Errorf("middle duration = %v, want 4.5s", middle.Duration)
	}
	if middle.Transition == nil || middle.Transition.Kind != KindCrossfade || middle.Transition.Duration != 3*time.Second {
		t.Errorf("middle transition = %+v, want crossfade 3s", middle.Transition)
	}

	if seq.At(2).Transition != nil {
		t.Error("cut clip should have no transition")
	}

	outro := seq.At(3)
	if outro.Name != "clip003" {
		t.Errorf("unnamed clip got name %q, want clip003", outro.Name)
	}
	if outro.Duration != time.Minute {
		t.Errorf("outro duration = %v, want 1m", outro.Duration)
	}
}

func TestParse_InvalidDuration(t *testing.T) {
	_, err := Parse([]byte("clips:\n  - duration: soon\n"))
	if err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seq.yaml")
	if err := os.WriteFile(path, []byte(testSequenceYAML), 0o644); err != nil {
		t.Fatalf("failed to write sequence file: %v", err)
	}

	seq, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if err := seq.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSequence_Tail(t *testing.T) {
	seq := newTestSequence(2*time.Second, 3*time.Second, 4*time.Second)

	tail := seq.Tail(1)
	if tail.Len() != 2 {
		t.Fatalf("Tail(1).Len() = %d, want 2", tail.Len())
	}
	if tail.Span(0).Start != 0 || tail.Total() != 7*time.Second {
		t.Errorf("Tail(1) span %v total %v, want offsets rebased to 0 and 7s", tail.Span(0), tail.Total())
	}
	if tail.Name() != seq.Name() {
		t.Errorf("Tail(1).Name() = %q, want %q", tail.Name(), seq.Name())
	}

	if got := seq.Tail(0).Len(); got != 3 {
		t.Errorf("Tail(0).Len() = %d, want 3", got)
	}
	if err := seq.Tail(3).Validate(); !errors.Is(err, ErrEmpty) {
		t.Errorf("Tail(3).Validate() = %v, want ErrEmpty", err)
	}
}

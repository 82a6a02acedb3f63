package transition

import (
	"testing"
	"time"

	"github.com/agleyzer/seqplay/internal/clock"
	"github.com/agleyzer/seqplay/internal/interval"
	"github.com/agleyzer/seqplay/internal/media"
	"github.com/agleyzer/seqplay/internal/render"
	"github.com/agleyzer/seqplay/internal/sequence"
)

func newTestClip(index int, start, duration time.Duration) *media.FrameClip {
	r := clock.NewRender(time.Millisecond)
	d := sequence.Descriptor{Name: "clip", Duration: duration}
	return media.NewFrameClip(index, d, interval.New(start, start+duration), r, time.Millisecond, nil)
}

func newTestBlend(d time.Duration) *media.Blend {
	return media.NewBlend(sequence.TransitionSpec{Kind: sequence.KindCrossfade, Duration: d})
}

func TestComputeOverlapStart(t *testing.T) {
	tests := []struct {
		name       string
		clipStart  time.Duration
		clipDur    time.Duration
		nextDur    time.Duration
		transition time.Duration
		want       time.Duration
	}{
		{
			name:       "transition shorter than both clips",
			clipDur:    10 * time.Second,
			nextDur:    10 * time.Second,
			transition: 2 * time.Second,
			want:       8 * time.Second,
		},
		{
			name:       "second boundary in absolute time",
			clipStart:  10 * time.Second,
			clipDur:    10 * time.Second,
			nextDur:    10 * time.Second,
			transition: 2 * time.Second,
			want:       18 * time.Second,
		},
		{
			name:       "clamped to shortest clip",
			clipDur:    3 * time.Second,
			nextDur:    4 * time.Second,
			transition: 5 * time.Second,
			want:       0,
		},
		{
			name:       "clamped to next clip",
			clipDur:    10 * time.Second,
			nextDur:    time.Second,
			transition: 5 * time.Second,
			want:       9 * time.Second,
		},
		{
			name:       "zero duration transition is a hard cut",
			clipDur:    10 * time.Second,
			nextDur:    10 * time.Second,
			transition: 0,
			want:       NoTransition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clip := newTestClip(0, tt.clipStart, tt.clipDur)
			next := newTestClip(1, tt.clipStart+tt.clipDur, tt.nextDur)

			got := ComputeOverlapStart(clip, next, newTestBlend(tt.transition))
			if got != tt.want {
				t.Errorf("ComputeOverlapStart() = %v, want %v", got, tt.want)
			}
			if got != NoTransition && got > clip.EndTime() {
				t.Errorf("overlap start %v after clip end %v", got, clip.EndTime())
			}
		})
	}
}

func TestComputeOverlapStart_ClampMatchesScenario(t *testing.T) {
	clip := newTestClip(0, 0, 3*time.Second)
	next := newTestClip(1, 3*time.Second, 4*time.Second)

	got := ComputeOverlapStart(clip, next, newTestBlend(5*time.Second))
	if want := clip.EndTime() - 3*time.Second; got != want {
		t.Errorf("ComputeOverlapStart() = %v, want endTime - 3s = %v", got, want)
	}
}

func TestComputeOverlapStart_MissingPieces(t *testing.T) {
	clip := newTestClip(0, 0, time.Second)
	next := newTestClip(1, time.Second, time.Second)

	if got := ComputeOverlapStart(clip, nil, newTestBlend(time.Second)); got != NoTransition {
		t.Errorf("without next = %v, want NoTransition", got)
	}
	if got := ComputeOverlapStart(clip, next, nil); got != NoTransition {
		t.Errorf("without transition = %v, want NoTransition", got)
	}
}

func TestProgress(t *testing.T) {
	tests := []struct {
		name   string
		at     time.Duration
		start  time.Duration
		end    time.Duration
		want   float64
		wantOK bool
	}{
		{"start of window", 8 * time.Second, 8 * time.Second, 10 * time.Second, 0, true},
		{"middle of window", 9 * time.Second, 8 * time.Second, 10 * time.Second, 0.5, true},
		{"end of window", 10 * time.Second, 8 * time.Second, 10 * time.Second, 1, true},
		{"past end clamps", 11 * time.Second, 8 * time.Second, 10 * time.Second, 1, true},
		{"zero length window", 10 * time.Second, 10 * time.Second, 10 * time.Second, 0, false},
		{"no transition sentinel", 10 * time.Second, NoTransition, 10 * time.Second, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Progress(tt.at, tt.start, tt.end)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Progress() = %v, %v, want %v, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestBinder_ActivatesOnceAndTracksProgress(t *testing.T) {
	b := NewBinder(nil)
	s := render.New()
	outgoing := newTestClip(0, 0, 10*time.Second)
	incoming := newTestClip(1, 10*time.Second, 10*time.Second)
	s.Main.Bind(outgoing)
	s.Aux.Bind(incoming)
	blend := newTestBlend(2 * time.Second)

	overlapStart := 8 * time.Second
	end := 10 * time.Second

	if b.MaybeActivate(blend, 7*time.Second, overlapStart, end, s) {
		t.Fatal("activated before the overlap window")
	}
	if blend.Attached() || s.TransitionVisible() {
		t.Fatal("transition bound before the overlap window")
	}

	for _, at := range []time.Duration{8 * time.Second, 9 * time.Second, 9500 * time.Millisecond, 10 * time.Second} {
		if !b.MaybeActivate(blend, at, overlapStart, end, s) {
			t.Fatalf("MaybeActivate(%v) = false inside window", at)
		}
	}

	if !blend.Attached() || s.Container.Transition() != blend {
		t.Error("transition should be bound into the container")
	}
	if blend.Source() != outgoing || blend.Dest() != incoming {
		t.Error("source/dest should be main and aux content")
	}
	if s.Main.Visible() || !s.TransitionVisible() {
		t.Error("container should be shown and main hidden")
	}
	if b.Active() != blend {
		t.Error("Active() should return the bound transition")
	}

	want := []float64{0, 0.5, 0.75, 1}
	got := blend.History()
	if len(got) != len(want) {
		t.Fatalf("History() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("progress %d = %v, want %v", i, got[i], want[i])
		}
	}
	if blend.Time() != 1.0 {
		t.Errorf("final Time() = %v, want exactly 1.0", blend.Time())
	}
}

func TestBinder_ProgressNeverDecreases(t *testing.T) {
	b := NewBinder(nil)
	s := render.New()
	blend := newTestBlend(2 * time.Second)

	b.MaybeActivate(blend, 9*time.Second, 8*time.Second, 10*time.Second, s)
	b.MaybeActivate(blend, 8500*time.Millisecond, 8*time.Second, 10*time.Second, s)

	if blend.Time() != 0.5 {
		t.Errorf("Time() = %v, want 0.5 held", blend.Time())
	}
}

func TestBinder_DegenerateWindowIsHardCut(t *testing.T) {
	b := NewBinder(nil)
	s := render.New()
	blend := newTestBlend(0)

	if b.MaybeActivate(blend, 10*time.Second, 10*time.Second, 10*time.Second, s) {
		t.Error("zero-length window should not activate")
	}
	if b.MaybeActivate(blend, 10*time.Second, NoTransition, 10*time.Second, s) {
		t.Error("NoTransition should not activate")
	}
	if b.MaybeActivate(nil, 10*time.Second, 8*time.Second, 10*time.Second, s) {
		t.Error("nil transition should not activate")
	}
	if s.TransitionVisible() {
		t.Error("container must stay hidden")
	}
}

func TestBinder_Reset(t *testing.T) {
	b := NewBinder(nil)
	s := render.New()
	blend := newTestBlend(2 * time.Second)
	b.MaybeActivate(blend, 9*time.Second, 8*time.Second, 10*time.Second, s)

	b.Reset()

	if b.Active() != nil {
		t.Error("Active() should be nil after Reset")
	}
}

package timeline

import (
	"time"

	"github.com/agleyzer/seqplay/internal/render"
)

// Stats is a point-in-time view of the timeline.
type Stats struct {
	Sequence     string        `json:"sequence"`
	Phase        string        `json:"phase"`
	Index        int           `json:"index"`
	Clips        int           `json:"clips"`
	Promotions   int           `json:"promotions"`
	Pending      bool          `json:"pending_promotion"`
	Clip         string        `json:"clip,omitempty"`
	PlaybackTime time.Duration `json:"playback_time"`
	EndTime      time.Duration `json:"end_time"`
	OverlapStart time.Duration `json:"overlap_start"`
	Progress     float64       `json:"transition_progress"`
	LiveClips    int           `json:"live_clips"`
	Created      int           `json:"clips_created"`
	Destroyed    int           `json:"clips_destroyed"`
	Surfaces     render.State  `json:"surfaces"`
	Error        string        `json:"error,omitempty"`
}

// Phase returns the current phase.
func (tl *Timeline) Phase() Phase { return tl.phase }

// Index returns the index of the current clip.
func (tl *Timeline) Index() int { return tl.index }

// Promotions returns the number of promotions so far.
func (tl *Timeline) Promotions() int { return tl.promotions }

// Pending reports whether a promotion is waiting for the next clock advance.
func (tl *Timeline) Pending() bool { return tl.pending }

// OverlapStart returns the overlap start for the current clip, or
// transition.NoTransition.
func (tl *Timeline) OverlapStart() time.Duration { return tl.overlapStart }

// Err returns the error that ended the sequence early, if any.
func (tl *Timeline) Err() error { return tl.err }

// LiveClips returns the number of live clip instances.
func (tl *Timeline) LiveClips() int { return tl.clips.Live() }

// Stats returns a snapshot of the timeline state.
func (tl *Timeline) Stats() Stats {
	st := Stats{
		Sequence:     tl.seq.Name(),
		Phase:        tl.phase.String(),
		Index:        tl.index,
		Clips:        tl.seq.Len(),
		Promotions:   tl.promotions,
		Pending:      tl.pending,
		OverlapStart: tl.overlapStart,
		LiveClips:    tl.clips.Live(),
		Created:      tl.clips.Created(),
		Destroyed:    tl.clips.Destroyed(),
		Surfaces:     tl.surfaces.Snapshot(),
	}

	if clip := tl.clips.Current(); clip != nil {
		st.Clip = clip.Name()
		st.PlaybackTime = clip.CurrentTime().Start
		st.EndTime = clip.EndTime()
		if t := tl.binder.Active(); t != nil && t == clip.EndTransition() {
			st.Progress = t.Time()
		}
	}
	if tl.err != nil {
		st.Error = tl.err.Error()
	}

	return st
}

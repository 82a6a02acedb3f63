// Package playout runs a sequence in real time: it advances the render clock
// at the configured frame rate, records an as-run HLS playlist and publishes
// the playout cursor.
package playout

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/grafov/m3u8"

	"github.com/agleyzer/seqplay/internal/clock"
	"github.com/agleyzer/seqplay/internal/media"
	"github.com/agleyzer/seqplay/internal/metrics"
	"github.com/agleyzer/seqplay/internal/render"
	"github.com/agleyzer/seqplay/internal/sequence"
	"github.com/agleyzer/seqplay/internal/timeline"
	"github.com/agleyzer/seqplay/internal/transition"
)

// CursorEvent identifies what moved the playout cursor.
type CursorEvent uint8

const (
	// CursorStarted is reported once playback begins.
	CursorStarted CursorEvent = iota
	// CursorPromoted is reported when the next clip becomes current.
	CursorPromoted
	// CursorEnded is reported when the last clip has ended.
	CursorEnded
)

// Cursor is the playout position within the full sequence.
type Cursor struct {
	Sequence   string
	Clips      int
	Index      int
	Promotions int
	Ended      bool
}

// Player owns the render clock, surfaces and timeline for one sequence.
// Advance, Start and Close may be called from any goroutine; the timeline
// itself only ever runs under the player's lock.
type Player struct {
	mu       sync.RWMutex
	seq      *sequence.Sequence
	fps      float64
	frame    time.Duration
	from     int
	clock    *clock.Render
	surfaces *render.Surfaces
	timeline *timeline.Timeline
	metrics  *metrics.Metrics
	asRun    *m3u8.MediaPlaylist
	stats    timeline.Stats
	cursor   Cursor

	// transitioned records whether the current clip blended into its successor
	transitioned bool
	started      bool
	ended        bool
	closed       bool
	done         chan struct{}

	onCursor    func(CursorEvent, Cursor)
	clusterInfo func() map[string]any
	logger      *slog.Logger
}

// New creates a player for seq at fps frames per second. m may be nil.
func New(seq *sequence.Sequence, fps float64, m *metrics.Metrics, logger *slog.Logger) (*Player, error) {
	if err := seq.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sequence: %w", err)
	}

	frame := media.FrameDuration(fps)
	if frame <= 0 {
		return nil, fmt.Errorf("fps must be positive, got %g", fps)
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	asRun, err := m3u8.NewMediaPlaylist(0, uint(seq.Len()))
	if err != nil {
		return nil, fmt.Errorf("failed to create as-run playlist: %w", err)
	}
	asRun.MediaType = m3u8.EVENT

	return &Player{
		seq:     seq,
		fps:     fps,
		frame:   frame,
		metrics: m,
		asRun:   asRun,
		cursor:  Cursor{Sequence: seq.Name(), Clips: seq.Len()},
		stats: timeline.Stats{
			Sequence:     seq.Name(),
			Phase:        timeline.Uninitialized.String(),
			Clips:        seq.Len(),
			OverlapStart: transition.NoTransition,
		},
		done:   make(chan struct{}),
		logger: logger,
	}, nil
}

// OnCursor registers fn to receive cursor updates. It is called with the
// player's lock held and must not block or call back into the player.
func (p *Player) OnCursor(fn func(CursorEvent, Cursor)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onCursor = fn
}

// SetClusterInfo registers a source of cluster status for GetStats.
func (p *Player) SetClusterInfo(fn func() map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clusterInfo = fn
}

// Start begins playback at clip index from.
func (p *Player) Start(from int) error {
	return p.Resume(from, from)
}

// Resume begins playback at clip index from with the cursor's promotion count
// carried over from an earlier run, such as the replicated cursor of a
// previous leader.
func (p *Player) Resume(from, promotions int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return fmt.Errorf("player closed")
	}
	if p.started {
		return fmt.Errorf("player already started")
	}
	if from < 0 || from >= p.seq.Len() {
		return fmt.Errorf("start index %d out of range (0-%d)", from, p.seq.Len()-1)
	}
	if promotions < 0 {
		return fmt.Errorf("promotions must not be negative, got %d", promotions)
	}

	p.from = from
	p.clock = clock.NewRender(p.frame)
	p.surfaces = render.New()

	tl, err := timeline.New(
		p.seq.Tail(from),
		media.NewFrameFactory(p.clock, p.frame, p.logger),
		p.clock,
		p.surfaces,
		timeline.WithLogger(p.logger),
		timeline.WithObserver(&recorder{p: p}),
	)
	if err != nil {
		return fmt.Errorf("failed to create timeline: %w", err)
	}
	tl.OnEnded(p.onEnded)
	p.timeline = tl

	p.cursor.Index = from
	p.cursor.Promotions = promotions
	p.started = true

	if err := tl.Start(); err != nil {
		p.started = false
		p.timeline = nil
		return fmt.Errorf("failed to start timeline: %w", err)
	}
	p.stats = tl.Stats()
	p.publish(CursorStarted)

	p.logger.Info("playout started",
		"sequence", p.seq.Name(),
		"from", from,
		"fps", p.fps,
		"frame", p.frame,
	)
	return nil
}

// Advance renders one frame and reports whether the sequence has ended.
func (p *Player) Advance() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started || p.closed || p.ended {
		return p.ended
	}

	p.clock.Advance()
	if p.metrics != nil {
		p.metrics.Frame(p.timeline.LiveClips())
	}
	p.stats = p.timeline.Stats()

	return p.ended
}

// Run plays the sequence in real time until it ends or ctx is cancelled. It
// starts from the first clip unless Start was called already.
func (p *Player) Run(ctx context.Context) error {
	if !p.Started() {
		if err := p.Start(0); err != nil {
			return err
		}
	}

	p.logger.Info("starting auto-advance", "interval", p.frame, "clips", p.seq.Len())

	ticker := time.NewTicker(p.frame)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("stopping auto-advance")
			p.Close()
			return nil
		case <-p.done:
			p.Close()
			if err := p.Err(); err != nil {
				return fmt.Errorf("playout failed: %w", err)
			}
			return nil
		case <-ticker.C:
			p.Advance()
		}
	}
}

// Close stops playback and releases every live clip.
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true

	if p.timeline != nil {
		p.timeline.Close()
		p.stats = p.timeline.Stats()
	}
	p.logger.Info("playout closed", "ended", p.ended, "promotions", p.cursor.Promotions)
}

// Done is closed once the last clip has ended.
func (p *Player) Done() <-chan struct{} {
	return p.done
}

// Started reports whether playback has begun.
func (p *Player) Started() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.started
}

// Err returns the error that ended playback early, if any.
func (p *Player) Err() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.timeline == nil {
		return nil
	}
	return p.timeline.Err()
}

// Cursor returns the current playout position.
func (p *Player) Cursor() Cursor {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cursor
}

// Generate returns the as-run playlist: one entry per clip that has started
// playing, a discontinuity wherever the boundary was a hard cut and an end
// marker once the sequence has ended. Encoding writes the playlist's internal
// buffer, so it takes the write lock.
func (p *Player) Generate() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.asRun.Encode().String(), nil
}

// GetStats returns current statistics about the playout.
func (p *Player) GetStats() map[string]any {
	p.mu.RLock()
	defer p.mu.RUnlock()

	st := p.stats
	stats := map[string]any{
		"sequence":            st.Sequence,
		"phase":               st.Phase,
		"index":               p.cursor.Index,
		"start_index":         p.from,
		"clips":               p.seq.Len(),
		"promotions":          p.cursor.Promotions,
		"pending_promotion":   st.Pending,
		"clip":                st.Clip,
		"playback_time":       st.PlaybackTime.Seconds(),
		"end_time":            st.EndTime.Seconds(),
		"transition_progress": st.Progress,
		"live_clips":          st.LiveClips,
		"clips_created":       st.Created,
		"clips_destroyed":     st.Destroyed,
		"surfaces":            st.Surfaces,
		"fps":                 p.fps,
		"ended":               p.ended,
	}

	if st.OverlapStart == transition.NoTransition {
		stats["overlap_start"] = nil
	} else {
		stats["overlap_start"] = st.OverlapStart.Seconds()
	}
	if p.clock != nil {
		stats["frames"] = p.clock.Ticks()
	}
	if st.Error != "" {
		stats["error"] = st.Error
	}
	if p.clusterInfo != nil {
		stats["cluster"] = p.clusterInfo()
	}

	return stats
}

// onEnded runs inside Advance with the lock held.
func (p *Player) onEnded() {
	p.ended = true
	p.asRun.Close()
	p.cursor.Ended = true
	p.publish(CursorEnded)
	close(p.done)
}

func (p *Player) publish(ev CursorEvent) {
	if p.onCursor != nil {
		p.onCursor(ev, p.cursor)
	}
}

// recorder observes the timeline on the player's behalf. Its methods run with
// the player's lock held.
type recorder struct {
	p *Player
}

func (r *recorder) OnClipStarted(index int, clip media.Clip) {
	p := r.p
	d := p.seq.At(p.from + index)

	uri := d.Source
	if uri == "" {
		uri = d.Name
	}
	if err := p.asRun.Append(uri, clip.Duration().Seconds(), clip.Name()); err != nil {
		p.logger.Warn("failed to record as-run entry", "clip", clip.Name(), "error", err)
	} else if index > 0 && !p.transitioned {
		// The boundary into this clip was a hard cut.
		p.asRun.SetDiscontinuity()
	}
	p.transitioned = false

	if p.metrics != nil {
		p.metrics.OnClipStarted(p.from+index, clip)
	}
}

func (r *recorder) OnTransitionActivated(index int, overlapStart time.Duration) {
	r.p.transitioned = true
	if r.p.metrics != nil {
		r.p.metrics.OnTransitionActivated(r.p.from+index, overlapStart)
	}
}

func (r *recorder) OnPromoted(index int) {
	p := r.p
	p.cursor.Index = p.from + index
	p.cursor.Promotions++
	if p.metrics != nil {
		p.metrics.OnPromoted(p.cursor.Index)
	}
	p.publish(CursorPromoted)
}

func (r *recorder) OnSequenceEnded(promotions int) {
	if r.p.metrics != nil {
		r.p.metrics.OnSequenceEnded(r.p.from + promotions)
	}
}

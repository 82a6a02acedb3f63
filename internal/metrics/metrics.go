// Package metrics exposes timeline activity as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/agleyzer/seqplay/internal/media"
)

// Metrics records timeline events. It implements timeline.Observer.
type Metrics struct {
	clipsStarted prometheus.Counter
	promotions   prometheus.Counter
	transitions  prometheus.Counter
	sequences    prometheus.Counter
	frames       prometheus.Counter
	liveClips    prometheus.Gauge
	clipIndex    prometheus.Gauge
	overlap      prometheus.Histogram

	// end time of the clip that started last, used to size its overlap window
	clipEnd time.Duration
}

// New creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		clipsStarted: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "seqplay_clips_started_total", Help: "Clips that started playing"},
		),
		promotions: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "seqplay_promotions_total", Help: "Prefetched clips promoted to current"},
		),
		transitions: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "seqplay_transitions_total", Help: "Transitions activated at clip boundaries"},
		),
		sequences: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "seqplay_sequences_ended_total", Help: "Sequences played to the end"},
		),
		frames: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "seqplay_frames_total", Help: "Render clock advances"},
		),
		liveClips: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "seqplay_live_clips", Help: "Live clip instances"},
		),
		clipIndex: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "seqplay_clip_index", Help: "Index of the clip being played"},
		),
		overlap: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "seqplay_transition_overlap_seconds",
				Help:    "Length of activated overlap windows",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
			},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.clipsStarted,
			m.promotions,
			m.transitions,
			m.sequences,
			m.frames,
			m.liveClips,
			m.clipIndex,
			m.overlap,
		)
	}

	return m
}

// OnClipStarted implements timeline.Observer.
func (m *Metrics) OnClipStarted(index int, clip media.Clip) {
	m.clipsStarted.Inc()
	m.clipIndex.Set(float64(index))
	m.clipEnd = clip.EndTime()
}

// OnTransitionActivated implements timeline.Observer.
func (m *Metrics) OnTransitionActivated(index int, overlapStart time.Duration) {
	m.transitions.Inc()
	if window := m.clipEnd - overlapStart; window > 0 {
		m.overlap.Observe(window.Seconds())
	}
}

// OnPromoted implements timeline.Observer.
func (m *Metrics) OnPromoted(index int) {
	m.promotions.Inc()
	m.clipIndex.Set(float64(index))
}

// OnSequenceEnded implements timeline.Observer.
func (m *Metrics) OnSequenceEnded(promotions int) {
	m.sequences.Inc()
}

// Frame records one render clock advance and the live clip count after it.
func (m *Metrics) Frame(liveClips int) {
	m.frames.Inc()
	m.liveClips.Set(float64(liveClips))
}

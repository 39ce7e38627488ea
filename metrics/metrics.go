// Package metrics exposes Prometheus metrics for evaluation sessions.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/camden-git/facebench/recognition"
)

// SessionMetrics counts sampled frames, drops and classified outcomes. It
// satisfies workers.Recorder so it can observe a session next to its accumulator.
type SessionMetrics struct {
	FramesSampled prometheus.Counter
	FramesDropped prometheus.Counter

	DetectionTotal     *prometheus.CounterVec
	RecognitionLatency *prometheus.HistogramVec
	MatchConfidence    *prometheus.HistogramVec

	SessionsTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewSessionMetrics creates the metrics and registers them with registry.
func NewSessionMetrics(registry *prometheus.Registry) (*SessionMetrics, error) {
	m := &SessionMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register session metrics: %w", err)
	}
	return m, nil
}

func (m *SessionMetrics) initMetrics() {
	m.FramesSampled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "facebench_frames_sampled_total",
			Help: "Frames offered to the classifier at a sample tick.",
		},
	)
	m.FramesDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "facebench_frames_dropped_total",
			Help: "Sampled frames skipped because a classification was still running.",
		},
	)

	m.DetectionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "facebench_detections_total",
			Help: "Classified frames partitioned by model and outcome.",
		},
		[]string{"model", "outcome"},
	)

	m.RecognitionLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "facebench_recognition_duration_seconds",
			Help:    "Time spent matching a detected face against the gallery.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
		},
		[]string{"model"},
	)

	m.MatchConfidence = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "facebench_match_confidence",
			Help:    "Confidence of successful matches.",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 9),
		},
		[]string{"model"},
	)

	m.SessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "facebench_sessions_total",
			Help: "Finalized sessions partitioned by model and outcome.",
		},
		[]string{"model", "outcome"},
	)
}

func (m *SessionMetrics) FrameSampled() {
	m.FramesSampled.Inc()
}

func (m *SessionMetrics) FrameDropped() {
	m.FramesDropped.Inc()
}

// Record counts one classified frame. Latency is observed for attempts only,
// confidence for matches only.
func (m *SessionMetrics) Record(ev recognition.DetectionEvent) {
	model := string(ev.Model)
	m.DetectionTotal.WithLabelValues(model, ev.Kind.String()).Inc()
	if ev.Kind.IsAttempt() {
		m.RecognitionLatency.WithLabelValues(model).Observe(ev.Latency.Seconds())
	}
	if ev.Kind == recognition.Match {
		m.MatchConfidence.WithLabelValues(model).Observe(ev.Confidence)
	}
}

// RecordSession counts a finalized session.
func (m *SessionMetrics) RecordSession(model recognition.ModelName, outcome string) {
	m.SessionsTotal.WithLabelValues(string(model), outcome).Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *SessionMetrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.FramesSampled.Desc()
	ch <- m.FramesDropped.Desc()
	m.DetectionTotal.Describe(ch)
	m.RecognitionLatency.Describe(ch)
	m.MatchConfidence.Describe(ch)
	m.SessionsTotal.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *SessionMetrics) Collect(ch chan<- prometheus.Metric) {
	ch <- m.FramesSampled
	ch <- m.FramesDropped
	m.DetectionTotal.Collect(ch)
	m.RecognitionLatency.Collect(ch)
	m.MatchConfidence.Collect(ch)
	m.SessionsTotal.Collect(ch)
}

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camden-git/facebench/recognition"
)

func TestRecordEvents(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewSessionMetrics(registry)
	require.NoError(t, err)

	events := []recognition.DetectionEvent{
		{Model: recognition.ArcFace, Kind: recognition.Match, Confidence: 0.8, Latency: 50 * time.Millisecond},
		{Model: recognition.ArcFace, Kind: recognition.Match, Confidence: 0.7, Latency: 60 * time.Millisecond},
		{Model: recognition.ArcFace, Kind: recognition.Unknown, Latency: 40 * time.Millisecond},
		{Model: recognition.ArcFace, Kind: recognition.NoFace},
		{Model: recognition.Dlib, Kind: recognition.Error},
	}
	for _, ev := range events {
		m.Record(ev)
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(m.DetectionTotal.WithLabelValues("ArcFace", "match")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DetectionTotal.WithLabelValues("ArcFace", "unknown")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DetectionTotal.WithLabelValues("ArcFace", "no_face")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DetectionTotal.WithLabelValues("Dlib", "error")))

	// three attempts observed, no-face and error frames are not
	assert.Equal(t, 1, testutil.CollectAndCount(m.RecognitionLatency, "facebench_recognition_duration_seconds"))
	assert.Equal(t, 1, testutil.CollectAndCount(m.MatchConfidence, "facebench_match_confidence"))
}

func TestFrameCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewSessionMetrics(registry)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		m.FrameSampled()
	}
	m.FrameDropped()

	assert.Equal(t, float64(3), testutil.ToFloat64(m.FramesSampled))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.FramesDropped))
}

func TestRecordSession(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewSessionMetrics(registry)
	require.NoError(t, err)

	m.RecordSession(recognition.Facenet, "success")
	m.RecordSession(recognition.Facenet, "no_recognition")
	m.RecordSession(recognition.Facenet, "success")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.SessionsTotal.WithLabelValues("Facenet", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SessionsTotal.WithLabelValues("Facenet", "no_recognition")))
}

func TestDoubleRegistrationFails(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := NewSessionMetrics(registry)
	require.NoError(t, err)

	_, err = NewSessionMetrics(registry)
	assert.Error(t, err)
}

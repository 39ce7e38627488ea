package session

import (
	"sync"
	"time"

	"github.com/camden-git/facebench/recognition"
)

// Stats is a frozen view of one session. Averages are plain arithmetic means.
type Stats struct {
	SessionID string                `json:"session_id"`
	Model     recognition.ModelName `json:"model"`
	Expected  string                `json:"expected,omitempty"`

	FramesSampled int `json:"frames_sampled"`
	FramesDropped int `json:"frames_dropped"`

	TotalAttempts          int `json:"total_attempts"`
	SuccessfulRecognitions int `json:"successful_recognitions"`
	NoFaceFrames           int `json:"no_face_frames"`
	Unknowns               int `json:"unknowns"`
	FalsePositives         int `json:"false_positives"`
	Errors                 int `json:"errors"`

	AvgConfidence      float64 `json:"avg_confidence"`       // Match events only
	AvgProcessingTime  float64 `json:"avg_processing_time"`  // seconds, every timed attempt
	AvgRecognitionRate float64 `json:"avg_recognition_rate"` // percent

	LastIdentified string    `json:"last_identified,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	EndedAt        time.Time `json:"ended_at"`
}

// Duration is the wall-clock length of the session.
func (s Stats) Duration() time.Duration {
	if s.EndedAt.IsZero() {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// Accumulator collects DetectionEvents for one session. It is safe for concurrent use.
type Accumulator struct {
	mu sync.Mutex

	sessionID string
	model     recognition.ModelName
	expected  string
	startedAt time.Time

	framesSampled int
	framesDropped int

	attempts       int
	successes      int
	noFace         int
	unknowns       int
	falsePositives int
	errors         int

	confidenceSum float64
	latencySum    time.Duration
	timed         int

	lastIdentified string
}

func NewAccumulator(sessionID string, model recognition.ModelName, expected string) *Accumulator {
	return &Accumulator{
		sessionID: sessionID,
		model:     model,
		expected:  expected,
		startedAt: time.Now(),
	}
}

// FrameSampled counts a frame taken from the camera at a sampling tick.
func (a *Accumulator) FrameSampled() {
	a.mu.Lock()
	a.framesSampled++
	a.mu.Unlock()
}

// FrameDropped counts a sampled frame that was discarded because a classification
// was already in flight.
func (a *Accumulator) FrameDropped() {
	a.mu.Lock()
	a.framesDropped++
	a.mu.Unlock()
}

// Record folds one classified frame into the running totals.
func (a *Accumulator) Record(ev recognition.DetectionEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch ev.Kind {
	case recognition.NoFace:
		a.noFace++
		return
	case recognition.Error:
		a.errors++
		return
	}

	a.attempts++
	a.latencySum += ev.Latency
	a.timed++

	switch ev.Kind {
	case recognition.Match:
		a.successes++
		a.confidenceSum += ev.Confidence
		a.lastIdentified = ev.Identity
	case recognition.FalsePositive:
		a.falsePositives++
		a.lastIdentified = ev.Identity
	case recognition.Unknown:
		a.unknowns++
	}
}

// Snapshot returns the session totals as of now.
func (a *Accumulator) Snapshot() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := Stats{
		SessionID:              a.sessionID,
		Model:                  a.model,
		Expected:               a.expected,
		FramesSampled:          a.framesSampled,
		FramesDropped:          a.framesDropped,
		TotalAttempts:          a.attempts,
		SuccessfulRecognitions: a.successes,
		NoFaceFrames:           a.noFace,
		Unknowns:               a.unknowns,
		FalsePositives:         a.falsePositives,
		Errors:                 a.errors,
		LastIdentified:         a.lastIdentified,
		StartedAt:              a.startedAt,
		EndedAt:                time.Now(),
	}
	if a.attempts > 0 {
		s.AvgRecognitionRate = float64(a.successes) / float64(a.attempts) * 100
	}
	if a.successes > 0 {
		s.AvgConfidence = a.confidenceSum / float64(a.successes)
	}
	if a.timed > 0 {
		s.AvgProcessingTime = a.latencySum.Seconds() / float64(a.timed)
	}
	return s
}

package recognition

import (
	"fmt"
	"log"
	"time"
)

// Decision is the result of Decide.
type Decision struct {
	Kind       OutcomeKind
	Identity   string
	Confidence float64
}

// Decide classifies one frame from already computed inputs. It is pure: the same
// arguments always produce the same decision. Only the first face matters, and a
// nil candidate means the matcher found nothing.
func Decide(faces int, candidate *Candidate, threshold float64, expected string) Decision {
	if faces == 0 {
		return Decision{Kind: NoFace}
	}
	if candidate == nil {
		return Decision{Kind: Unknown}
	}

	confidence := 1 - candidate.Distance
	if confidence < threshold {
		return Decision{Kind: Unknown, Confidence: confidence}
	}
	if expected != "" && candidate.Identity != expected {
		return Decision{Kind: FalsePositive, Identity: candidate.Identity, Confidence: confidence}
	}
	return Decision{Kind: Match, Identity: candidate.Identity, Confidence: confidence}
}

// Classifier runs detection and matching for one model and turns the result into
// a DetectionEvent.
type Classifier struct {
	recognizer Recognizer
	thresholds Thresholds
	now        func() time.Time
}

func NewClassifier(recognizer Recognizer, thresholds Thresholds) *Classifier {
	if thresholds == nil {
		thresholds = DefaultThresholds()
	}
	return &Classifier{recognizer: recognizer, thresholds: thresholds, now: time.Now}
}

// Thresholds returns the thresholds in use.
func (c *Classifier) Thresholds() Thresholds {
	return c.thresholds
}

// Classify detects faces in frame, matches the first one against the gallery and
// annotates it. Adapter failures come back as an Error event, never as a panic or
// returned error.
func (c *Classifier) Classify(frame Frame, model ModelName, expected string) DetectionEvent {
	ev := DetectionEvent{Model: model, Expected: expected, Timestamp: c.now()}

	faces, err := c.recognizer.DetectFaces(frame)
	if err != nil {
		return c.failed(ev, fmt.Errorf("%w: detect faces: %w", ErrDetectionFailure, err))
	}
	if len(faces) == 0 {
		ev.Kind = NoFace
		return ev
	}
	box := faces[0]
	ev.Box = &box

	start := c.now()
	candidate, err := c.recognizer.MatchAgainstGallery(frame, model)
	latency := c.now().Sub(start)
	if err != nil {
		return c.failed(ev, fmt.Errorf("%w: match against gallery: %w", ErrDetectionFailure, err))
	}

	d := Decide(len(faces), candidate, c.thresholds.For(model), expected)
	ev.Kind = d.Kind
	ev.Identity = d.Identity
	ev.Confidence = d.Confidence
	ev.Latency = latency

	switch d.Kind {
	case Match:
		c.recognizer.Annotate(frame, box, fmt.Sprintf("%s (%.1f%%)", d.Identity, d.Confidence*100), StyleMatch)
	case FalsePositive:
		c.recognizer.Annotate(frame, box, fmt.Sprintf("%s != %s", d.Identity, expected), StyleFalsePositive)
	default:
		c.recognizer.Annotate(frame, box, "Unknown", StyleUnknown)
	}
	return ev
}

func (c *Classifier) failed(ev DetectionEvent, err error) DetectionEvent {
	log.Printf("classifier: %s: %v", ev.Model, err)
	ev.Kind = Error
	ev.Err = err
	ev.Box = nil
	return ev
}

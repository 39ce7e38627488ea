package recognition

import (
	"errors"
	"strings"
	"time"
)

// ModelName identifies one of the supported embedding models.
type ModelName string

const (
	ArcFace ModelName = "ArcFace"
	Facenet ModelName = "Facenet"
	Dlib    ModelName = "Dlib"
)

// KnownModels is the fixed model enumeration, in menu order.
var KnownModels = []ModelName{ArcFace, Facenet, Dlib}

// ParseModel resolves a model name case-insensitively.
func ParseModel(name string) (ModelName, bool) {
	for _, m := range KnownModels {
		if strings.EqualFold(string(m), strings.TrimSpace(name)) {
			return m, true
		}
	}
	return "", false
}

// ErrDetectionFailure wraps any error raised by the detector or the gallery matcher.
var ErrDetectionFailure = errors.New("detection failure")

// Frame is an image owned by whoever holds it. Clone returns an independent copy
// that must be closed by its new owner.
type Frame interface {
	Clone() Frame
	Close() error
	Empty() bool
}

// BoundingBox is a detected face region in frame pixel coordinates.
type BoundingBox struct {
	X, Y, Width, Height int
	Score               float32
}

// Candidate is the best gallery match for a frame.
type Candidate struct {
	Identity string
	Distance float64
}

// Style selects the overlay colour used when annotating a face.
type Style int

const (
	StyleMatch Style = iota
	StyleUnknown
	StyleFalsePositive
)

// Recognizer is the face detection and gallery matching backend.
type Recognizer interface {
	DetectFaces(frame Frame) ([]BoundingBox, error)
	// MatchAgainstGallery returns nil when no gallery identity is close enough to
	// be reported at all.
	MatchAgainstGallery(frame Frame, model ModelName) (*Candidate, error)
	Annotate(frame Frame, box BoundingBox, label string, style Style)
}

// OutcomeKind is the classification of one sampled frame.
type OutcomeKind int

const (
	NoFace OutcomeKind = iota
	Match
	FalsePositive
	Unknown
	Error
)

func (k OutcomeKind) String() string {
	switch k {
	case NoFace:
		return "no_face"
	case Match:
		return "match"
	case FalsePositive:
		return "false_positive"
	case Unknown:
		return "unknown"
	case Error:
		return "error"
	default:
		return "invalid"
	}
}

// MarshalText makes kinds readable in JSON payloads.
func (k OutcomeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// IsAttempt reports whether a frame with this outcome had at least one detected
// face and went through gallery matching.
func (k OutcomeKind) IsAttempt() bool {
	return k == Match || k == FalsePositive || k == Unknown
}

// DetectionEvent is the outcome of classifying one frame.
type DetectionEvent struct {
	SessionID  string        `json:"session_id"`
	Model      ModelName     `json:"model"`
	Kind       OutcomeKind   `json:"kind"`
	Identity   string        `json:"identity,omitempty"`
	Expected   string        `json:"expected,omitempty"`
	Confidence float64       `json:"confidence"`
	Latency    time.Duration `json:"latency_ns"`
	Timestamp  time.Time     `json:"timestamp"`
	Box        *BoundingBox  `json:"box,omitempty"`
	Err        error         `json:"-"`
}

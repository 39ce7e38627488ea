package recognition

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFrame struct{ closed bool }

func (f *stubFrame) Clone() Frame { return &stubFrame{} }
func (f *stubFrame) Close() error { f.closed = true; return nil }
func (f *stubFrame) Empty() bool  { return false }

type annotation struct {
	label string
	style Style
}

type stubRecognizer struct {
	faces      []BoundingBox
	detectErr  error
	candidate  *Candidate
	matchErr   error
	matchCalls int
	annotated  []annotation

	// run inside the corresponding call, used to move a fake clock
	onDetect, onMatch, onAnnotate func()
}

func (r *stubRecognizer) DetectFaces(Frame) ([]BoundingBox, error) {
	if r.onDetect != nil {
		r.onDetect()
	}
	return r.faces, r.detectErr
}

func (r *stubRecognizer) MatchAgainstGallery(Frame, ModelName) (*Candidate, error) {
	r.matchCalls++
	if r.onMatch != nil {
		r.onMatch()
	}
	return r.candidate, r.matchErr
}

func (r *stubRecognizer) Annotate(_ Frame, _ BoundingBox, label string, style Style) {
	if r.onAnnotate != nil {
		r.onAnnotate()
	}
	r.annotated = append(r.annotated, annotation{label: label, style: style})
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) func() {
	return func() { c.t = c.t.Add(d) }
}

func oneFace() []BoundingBox {
	return []BoundingBox{{X: 10, Y: 20, Width: 100, Height: 120, Score: 0.9}}
}

func TestDecide(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		name      string
		faces     int
		candidate *Candidate
		model     ModelName
		expected  string
		want      OutcomeKind
		identity  string
	}{
		{"no faces", 0, &Candidate{Identity: "alice", Distance: 0.1}, ArcFace, "", NoFace, ""},
		{"no candidate", 1, nil, ArcFace, "", Unknown, ""},
		{"arcface close match", 1, &Candidate{Identity: "alice", Distance: 0.2}, ArcFace, "", Match, "alice"},
		{"dlib below threshold", 1, &Candidate{Identity: "alice", Distance: 0.3}, Dlib, "", Unknown, ""},
		{"facenet uses default", 1, &Candidate{Identity: "alice", Distance: 0.4}, Facenet, "", Unknown, ""},
		{"facenet above default", 1, &Candidate{Identity: "alice", Distance: 0.3}, Facenet, "", Match, "alice"},
		{"expected identity matches", 2, &Candidate{Identity: "alice", Distance: 0.1}, ArcFace, "alice", Match, "alice"},
		{"wrong identity", 1, &Candidate{Identity: "bob", Distance: 0.1}, ArcFace, "alice", FalsePositive, "bob"},
		{"wrong identity below threshold", 1, &Candidate{Identity: "bob", Distance: 0.9}, ArcFace, "alice", Unknown, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(tt.faces, tt.candidate, th.For(tt.model), tt.expected)
			assert.Equal(t, tt.want, d.Kind)
			assert.Equal(t, tt.identity, d.Identity)

			again := Decide(tt.faces, tt.candidate, th.For(tt.model), tt.expected)
			assert.Equal(t, d, again)
		})
	}
}

func TestDecideThresholdBoundaryIsInclusive(t *testing.T) {
	// 1 - 0.5 is exactly 0.5 in binary floating point.
	d := Decide(1, &Candidate{Identity: "alice", Distance: 0.5}, 0.5, "")
	assert.Equal(t, Match, d.Kind)
	assert.InDelta(t, 0.5, d.Confidence, 1e-12)

	d = Decide(1, &Candidate{Identity: "alice", Distance: 0.5}, 0.5000001, "")
	assert.Equal(t, Unknown, d.Kind)
}

func TestClassifyMatch(t *testing.T) {
	rec := &stubRecognizer{faces: oneFace(), candidate: &Candidate{Identity: "alice", Distance: 0.2}}
	c := NewClassifier(rec, nil)

	ev := c.Classify(&stubFrame{}, ArcFace, "")

	assert.Equal(t, Match, ev.Kind)
	assert.Equal(t, "alice", ev.Identity)
	assert.InDelta(t, 0.8, ev.Confidence, 1e-9)
	require.NotNil(t, ev.Box)
	assert.Equal(t, 100, ev.Box.Width)
	require.Len(t, rec.annotated, 1)
	assert.Equal(t, "alice (80.0%)", rec.annotated[0].label)
	assert.Equal(t, StyleMatch, rec.annotated[0].style)
}

func TestClassifyDlibBelowThresholdIsUnknown(t *testing.T) {
	rec := &stubRecognizer{faces: oneFace(), candidate: &Candidate{Identity: "alice", Distance: 0.3}}
	c := NewClassifier(rec, nil)

	ev := c.Classify(&stubFrame{}, Dlib, "")

	assert.Equal(t, Unknown, ev.Kind)
	assert.Empty(t, ev.Identity)
	assert.True(t, ev.Kind.IsAttempt())
	require.Len(t, rec.annotated, 1)
	assert.Equal(t, StyleUnknown, rec.annotated[0].style)
}

func TestClassifyFalsePositive(t *testing.T) {
	rec := &stubRecognizer{faces: oneFace(), candidate: &Candidate{Identity: "bob", Distance: 0.1}}
	c := NewClassifier(rec, nil)

	ev := c.Classify(&stubFrame{}, ArcFace, "alice")

	assert.Equal(t, FalsePositive, ev.Kind)
	assert.Equal(t, "bob", ev.Identity)
	assert.Equal(t, "alice", ev.Expected)
	require.Len(t, rec.annotated, 1)
	assert.Equal(t, "bob != alice", rec.annotated[0].label)
}

func TestClassifyNoFaceSkipsMatching(t *testing.T) {
	rec := &stubRecognizer{}
	c := NewClassifier(rec, nil)

	ev := c.Classify(&stubFrame{}, ArcFace, "")

	assert.Equal(t, NoFace, ev.Kind)
	assert.False(t, ev.Kind.IsAttempt())
	assert.Zero(t, rec.matchCalls)
	assert.Empty(t, rec.annotated)
}

func TestClassifyAdapterErrors(t *testing.T) {
	t.Run("detector", func(t *testing.T) {
		rec := &stubRecognizer{detectErr: errors.New("net not loaded")}
		ev := NewClassifier(rec, nil).Classify(&stubFrame{}, ArcFace, "")

		assert.Equal(t, Error, ev.Kind)
		assert.ErrorIs(t, ev.Err, ErrDetectionFailure)
		assert.False(t, ev.Kind.IsAttempt())
	})

	t.Run("matcher", func(t *testing.T) {
		rec := &stubRecognizer{faces: oneFace(), matchErr: errors.New("embedding failed")}
		ev := NewClassifier(rec, nil).Classify(&stubFrame{}, ArcFace, "")

		assert.Equal(t, Error, ev.Kind)
		assert.ErrorIs(t, ev.Err, ErrDetectionFailure)
		assert.Nil(t, ev.Box)
		assert.Empty(t, rec.annotated)
	})

	t.Run("cause stays in the chain", func(t *testing.T) {
		errGallery := errors.New("no usable reference faces")
		rec := &stubRecognizer{faces: oneFace(), matchErr: fmt.Errorf("arcface: %w", errGallery)}
		ev := NewClassifier(rec, nil).Classify(&stubFrame{}, ArcFace, "")

		assert.ErrorIs(t, ev.Err, ErrDetectionFailure)
		assert.ErrorIs(t, ev.Err, errGallery)

		rec = &stubRecognizer{detectErr: errGallery}
		ev = NewClassifier(rec, nil).Classify(&stubFrame{}, ArcFace, "")
		assert.ErrorIs(t, ev.Err, errGallery)
	})
}

func TestClassifyLatencyCoversMatchingOnly(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	rec := &stubRecognizer{
		faces:      oneFace(),
		candidate:  &Candidate{Identity: "alice", Distance: 0.2},
		onDetect:   clock.advance(2 * time.Second),
		onMatch:    clock.advance(150 * time.Millisecond),
		onAnnotate: clock.advance(time.Second),
	}
	c := NewClassifier(rec, nil)
	c.now = clock.Now

	ev := c.Classify(&stubFrame{}, ArcFace, "")

	require.Equal(t, Match, ev.Kind)
	assert.Equal(t, 150*time.Millisecond, ev.Latency)
}

func TestThresholds(t *testing.T) {
	th := DefaultThresholds()
	assert.Equal(t, 0.45, th.For(ArcFace))
	assert.Equal(t, 0.85, th.For(Dlib))
	assert.Equal(t, DefaultMinConfidence, th.For(Facenet))

	custom, err := NewThresholds(map[string]float64{"facenet": 0.7})
	require.NoError(t, err)
	assert.Equal(t, 0.7, custom.For(Facenet))
	assert.Equal(t, 0.45, custom.For(ArcFace))

	_, err = NewThresholds(map[string]float64{"VGG-Face": 0.5})
	assert.ErrorIs(t, err, ErrInvalidThreshold)

	_, err = NewThresholds(map[string]float64{"Dlib": 1.5})
	assert.ErrorIs(t, err, ErrInvalidThreshold)
}

func TestParseModel(t *testing.T) {
	m, ok := ParseModel(" arcface ")
	assert.True(t, ok)
	assert.Equal(t, ArcFace, m)

	_, ok = ParseModel("OpenFace")
	assert.False(t, ok)
}

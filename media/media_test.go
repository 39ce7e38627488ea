package media

import (
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/camden-git/facebench/recognition"
)

func TestCosineDistance(t *testing.T) {
	a := []float32{1, 0, 0}
	assert.InDelta(t, 0.0, CosineDistance(a, []float32{2, 0, 0}), 1e-9)
	assert.InDelta(t, 1.0, CosineDistance(a, []float32{0, 1, 0}), 1e-9)
	assert.InDelta(t, 2.0, CosineDistance(a, []float32{-1, 0, 0}), 1e-9)
	assert.Equal(t, 2.0, CosineDistance(a, []float32{1, 0}))
	assert.Equal(t, 2.0, CosineDistance(a, []float32{0, 0, 0}))
}

func TestNormalizeEmbedding(t *testing.T) {
	v := normalizeEmbedding([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	zero := normalizeEmbedding([]float32{0, 0})
	assert.Equal(t, []float32{0, 0}, zero)
}

func TestBestMatch(t *testing.T) {
	refs := []galleryEmbedding{
		{identity: "alice", vector: []float32{1, 0}},
		{identity: "bob", vector: []float32{0, 1}},
	}
	best := bestMatch([]float32{0.9, 0.1}, refs)
	require.NotNil(t, best)
	assert.Equal(t, "alice", best.Identity)
	assert.Less(t, best.Distance, 0.1)

	assert.Nil(t, bestMatch([]float32{1, 0}, nil))
}

func TestNonMaxSuppression(t *testing.T) {
	dets := []DetectionResult{
		{X: 0, Y: 0, W: 100, H: 100, Confidence: 0.7},
		{X: 5, Y: 5, W: 100, H: 100, Confidence: 0.9},
		{X: 300, Y: 300, W: 50, H: 50, Confidence: 0.8},
	}
	kept := NonMaxSuppression(dets, 0.4)

	require.Len(t, kept, 2)
	assert.Equal(t, float32(0.9), kept[0].Confidence)
	assert.Equal(t, float32(0.8), kept[1].Confidence)
	assert.Equal(t, float32(0.7), dets[0].Confidence, "input is not reordered")
}

func TestIoU(t *testing.T) {
	a := DetectionResult{X: 0, Y: 0, W: 10, H: 10}
	assert.InDelta(t, 1.0, IoU(a, a), 1e-6)
	assert.InDelta(t, 0.0, IoU(a, DetectionResult{X: 20, Y: 20, W: 5, H: 5}), 1e-6)
	assert.InDelta(t, 25.0/175.0, IoU(a, DetectionResult{X: 5, Y: 5, W: 10, H: 10}), 1e-6)
}

func TestGenerateRetinaFacePriors(t *testing.T) {
	priors := GenerateRetinaFacePriors(640, 640)
	// (80*80 + 40*40 + 20*20) cells, two anchors each
	assert.Len(t, priors, 16800)
	assert.InDelta(t, 4.0/640, priors[0].Cx, 1e-6)
	assert.InDelta(t, 16.0/640, priors[0].W, 1e-6)
}

func TestDecodeBoxIdentity(t *testing.T) {
	prior := PriorBox{Cx: 0.5, Cy: 0.5, W: 0.2, H: 0.4}
	box := DecodeBox([4]float32{}, prior, [2]float32{0.1, 0.2})
	assert.InDelta(t, 0.4, box[0], 1e-6)
	assert.InDelta(t, 0.3, box[1], 1e-6)
	assert.InDelta(t, 0.6, box[2], 1e-6)
	assert.InDelta(t, 0.7, box[3], 1e-6)
}

func TestPaddedRect(t *testing.T) {
	bounds := image.Rect(0, 0, 100, 100)
	r := paddedRect(image.Rect(10, 10, 50, 50), 0.5, bounds)
	assert.Equal(t, image.Rect(0, 0, 70, 70), r)
}

func TestListGallery(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"person10.jpg", "person2.png", "notes.txt", ".hidden.jpg", "alice.JPEG"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.jpg"), 0o755))

	gallery, err := ListGallery(dir)
	require.NoError(t, err)

	var ids []string
	for _, g := range gallery {
		ids = append(ids, g.Identity)
	}
	assert.Equal(t, []string{"alice", "person2", "person10"}, ids)
}

func TestListGalleryMissing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "face_photos")

	_, err := ListGallery(dir)
	assert.ErrorIs(t, err, ErrMissingGallery)

	info, statErr := os.Stat(dir)
	require.NoError(t, statErr, "missing gallery directory is created")
	assert.True(t, info.IsDir())

	_, err = ListGallery(dir)
	assert.ErrorIs(t, err, ErrMissingGallery, "empty gallery")
}

func TestIsRasterImage(t *testing.T) {
	assert.True(t, IsRasterImage("a.JPG"))
	assert.True(t, IsRasterImage("b.tiff"))
	assert.False(t, IsRasterImage("c.heic"))
	assert.False(t, IsRasterImage("noext"))
}

type stubEmbedder struct{ calls int }

func (e *stubEmbedder) Embed(gocv.Mat) ([]float32, error) {
	e.calls++
	return []float32{1, 0, 0}, nil
}

func (e *stubEmbedder) Close() {}

func TestPrepareWithoutUsableGallery(t *testing.T) {
	dir := t.TempDir()
	broken := filepath.Join(dir, "alice.jpg")
	require.NoError(t, os.WriteFile(broken, []byte("not an image"), 0o644))

	embedder := &stubEmbedder{}
	r := NewRecognizer(nil, map[recognition.ModelName]Embedder{recognition.ArcFace: embedder}, []GalleryEntry{
		{Identity: "alice", Path: broken},
		{Identity: "bob", Path: filepath.Join(dir, "bob.jpg")},
	})

	err := r.Prepare(recognition.ArcFace)
	require.ErrorIs(t, err, ErrMissingGallery)
	assert.Zero(t, embedder.calls)

	err = r.Prepare(recognition.ArcFace)
	assert.ErrorIs(t, err, ErrMissingGallery, "a failed gallery is not cached as usable")
}

func TestPrepareUnknownModel(t *testing.T) {
	r := NewRecognizer(nil, map[recognition.ModelName]Embedder{}, nil)
	err := r.Prepare(recognition.Dlib)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMissingGallery)
}

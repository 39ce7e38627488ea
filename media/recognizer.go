package media

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"log"
	"sync"

	"gocv.io/x/gocv"

	"github.com/camden-git/facebench/recognition"
)

const (
	galleryMaxSide = 1024
	dlibCropPad    = 0.25
)

var (
	colorMatch         = color.RGBA{0, 255, 0, 0}
	colorUnknown       = color.RGBA{255, 0, 0, 0}
	colorFalsePositive = color.RGBA{255, 165, 0, 0}
)

// Recognizer adapts an OpenCV detector and one embedder per model to
// recognition.Recognizer. Gallery embeddings are computed per model by Prepare,
// or on first use when Prepare was not called.
type Recognizer struct {
	detector  FaceDetector
	embedders map[recognition.ModelName]Embedder
	gallery   []GalleryEntry

	mu         sync.Mutex
	embeddings map[recognition.ModelName][]galleryEmbedding
}

type galleryEmbedding struct {
	identity string
	vector   []float32
}

// NewRecognizer takes ownership of detector and embedders; Close releases them.
func NewRecognizer(detector FaceDetector, embedders map[recognition.ModelName]Embedder, gallery []GalleryEntry) *Recognizer {
	return &Recognizer{
		detector:   detector,
		embedders:  embedders,
		gallery:    gallery,
		embeddings: make(map[recognition.ModelName][]galleryEmbedding),
	}
}

func (r *Recognizer) Close() {
	if r.detector != nil {
		r.detector.Close()
	}
	for _, e := range r.embedders {
		e.Close()
	}
}

// DetectFaces finds faces in the frame and remembers them on it.
func (r *Recognizer) DetectFaces(frame recognition.Frame) ([]recognition.BoundingBox, error) {
	mf, err := asMat(frame)
	if err != nil {
		return nil, err
	}
	faces, err := r.detector.DetectFaces(mf.Mat)
	if err != nil {
		return nil, err
	}
	mf.faces, mf.detected = faces, true

	boxes := make([]recognition.BoundingBox, 0, len(faces))
	for _, f := range faces {
		boxes = append(boxes, f.Box())
	}
	return boxes, nil
}

// MatchAgainstGallery embeds the first face of the frame and returns the closest
// gallery identity by cosine distance. It returns nil when the frame has no face
// or nothing in the gallery points the same way (distance >= 1).
func (r *Recognizer) MatchAgainstGallery(frame recognition.Frame, model recognition.ModelName) (*recognition.Candidate, error) {
	mf, err := asMat(frame)
	if err != nil {
		return nil, err
	}
	embedder, ok := r.embedders[model]
	if !ok {
		return nil, fmt.Errorf("no embedder loaded for model %s", model)
	}

	if !mf.detected {
		if _, err := r.DetectFaces(mf); err != nil {
			return nil, err
		}
	}
	if len(mf.faces) == 0 {
		return nil, nil
	}

	refs, err := r.galleryFor(model, embedder)
	if err != nil {
		return nil, err
	}

	vector, err := r.embedFace(mf.Mat, mf.faces[0], model, embedder)
	if errors.Is(err, errNoFaceInCrop) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	best := bestMatch(vector, refs)
	if best == nil || best.Distance >= 1 {
		return nil, nil
	}
	return best, nil
}

// Prepare embeds the gallery for each model up front so that matching during a
// session only compares vectors. It fails with ErrMissingGallery when no
// reference image of the gallery has a usable face.
func (r *Recognizer) Prepare(models ...recognition.ModelName) error {
	for _, model := range models {
		embedder, ok := r.embedders[model]
		if !ok {
			return fmt.Errorf("no embedder loaded for model %s", model)
		}
		if _, err := r.galleryFor(model, embedder); err != nil {
			return err
		}
	}
	return nil
}

// Annotate boxes the face and writes label above it.
func (r *Recognizer) Annotate(frame recognition.Frame, box recognition.BoundingBox, label string, style recognition.Style) {
	mf, err := asMat(frame)
	if err != nil {
		return
	}
	c := colorUnknown
	switch style {
	case recognition.StyleMatch:
		c = colorMatch
	case recognition.StyleFalsePositive:
		c = colorFalsePositive
	}
	rect := image.Rect(box.X, box.Y, box.X+box.Width, box.Y+box.Height)
	gocv.Rectangle(&mf.Mat, rect, c, 2)
	gocv.PutText(&mf.Mat, label, image.Pt(box.X, max(box.Y-10, 15)), gocv.FontHersheySimplex, 0.9, c, 2)
}

// Validate checks each gallery image for a detectable face. The returned map
// holds the number of faces per identity.
func (r *Recognizer) Validate() map[string]int {
	out := make(map[string]int, len(r.gallery))
	for _, entry := range r.gallery {
		mat, err := LoadGalleryImage(entry.Path, galleryMaxSide)
		if err != nil {
			log.Printf("gallery: %v", err)
			out[entry.Identity] = 0
			mat.Close()
			continue
		}
		faces, err := r.detector.DetectFaces(mat)
		mat.Close()
		if err != nil {
			log.Printf("gallery: detection failed for %s: %v", entry.Path, err)
		}
		out[entry.Identity] = len(faces)
	}
	return out
}

func (r *Recognizer) galleryFor(model recognition.ModelName, embedder Embedder) ([]galleryEmbedding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if refs, ok := r.embeddings[model]; ok {
		return refs, nil
	}

	var refs []galleryEmbedding
	for _, entry := range r.gallery {
		vector, err := r.embedGalleryImage(entry, model, embedder)
		if err != nil {
			log.Printf("gallery: skipping %s for %s: %v", entry.Path, model, err)
			continue
		}
		refs = append(refs, galleryEmbedding{identity: entry.Identity, vector: vector})
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("%w: no usable reference faces for %s", ErrMissingGallery, model)
	}
	log.Printf("gallery: %d of %d reference images embedded for %s", len(refs), len(r.gallery), model)
	r.embeddings[model] = refs
	return refs, nil
}

func (r *Recognizer) embedGalleryImage(entry GalleryEntry, model recognition.ModelName, embedder Embedder) ([]float32, error) {
	mat, err := LoadGalleryImage(entry.Path, galleryMaxSide)
	defer mat.Close()
	if err != nil {
		return nil, err
	}
	faces, err := r.detector.DetectFaces(mat)
	if err != nil {
		return nil, err
	}
	if len(faces) == 0 {
		return nil, errors.New("no face detected")
	}
	return r.embedFace(mat, largestFace(faces), model, embedder)
}

func (r *Recognizer) embedFace(img gocv.Mat, face DetectionResult, model recognition.ModelName, embedder Embedder) ([]float32, error) {
	bounds := image.Rect(0, 0, img.Cols(), img.Rows())
	rect := face.Rect().Intersect(bounds)
	if model == recognition.Dlib {
		rect = paddedRect(rect, dlibCropPad, bounds)
	}
	if rect.Empty() {
		return nil, errors.New("face outside image")
	}
	region := img.Region(rect)
	defer region.Close()
	return embedder.Embed(region)
}

func largestFace(faces []DetectionResult) DetectionResult {
	best := faces[0]
	for _, f := range faces[1:] {
		if f.W*f.H > best.W*best.H {
			best = f
		}
	}
	return best
}

func bestMatch(vector []float32, refs []galleryEmbedding) *recognition.Candidate {
	var best *recognition.Candidate
	for _, ref := range refs {
		d := CosineDistance(vector, ref.vector)
		if best == nil || d < best.Distance {
			best = &recognition.Candidate{Identity: ref.identity, Distance: d}
		}
	}
	return best
}

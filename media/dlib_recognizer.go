package media

import (
	"errors"
	"fmt"
	"image"
	"log"
	"sync"

	"github.com/Kagami/go-face"
	"gocv.io/x/gocv"
)

// DlibEmbedder produces dlib ResNet descriptors through go-face. dlib runs its own
// landmark fit, so crops are padded before they are handed over.
type DlibEmbedder struct {
	mu  sync.Mutex
	rec *face.Recognizer
}

// NewDlibEmbedder loads shape_predictor_5_face_landmarks.dat and
// dlib_face_recognition_resnet_model_v1.dat from modelsDir.
func NewDlibEmbedder(modelsDir string) (*DlibEmbedder, error) {
	log.Printf("recognition(dlib): loading models from %s", modelsDir)
	rec, err := face.NewRecognizer(modelsDir)
	if err != nil {
		return nil, fmt.Errorf("recognition(dlib): failed to load models: %w", err)
	}
	return &DlibEmbedder{rec: rec}, nil
}

func (d *DlibEmbedder) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.rec != nil {
		d.rec.Close()
		d.rec = nil
		log.Println("recognition(dlib): closed recognizer")
	}
}

// Embed returns the 128-d descriptor of the face in faceRegion.
func (d *DlibEmbedder) Embed(faceRegion gocv.Mat) ([]float32, error) {
	if faceRegion.Empty() {
		return nil, errors.New("empty face region")
	}
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, faceRegion)
	if err != nil {
		return nil, fmt.Errorf("failed to encode face crop: %w", err)
	}
	defer buf.Close()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.rec == nil {
		return nil, errors.New("dlib recognizer closed")
	}
	f, err := d.rec.RecognizeSingle(buf.GetBytes())
	if err != nil {
		return nil, fmt.Errorf("dlib recognize: %w", err)
	}
	if f == nil {
		return nil, errNoFaceInCrop
	}

	out := make([]float32, len(f.Descriptor))
	copy(out, f.Descriptor[:])
	return out, nil
}

var errNoFaceInCrop = errors.New("no face found in crop")

// paddedRect grows r by frac of its size on every side, clipped to bounds.
func paddedRect(r image.Rectangle, frac float64, bounds image.Rectangle) image.Rectangle {
	dx := int(float64(r.Dx()) * frac)
	dy := int(float64(r.Dy()) * frac)
	return image.Rect(r.Min.X-dx, r.Min.Y-dy, r.Max.X+dx, r.Max.Y+dy).Intersect(bounds)
}

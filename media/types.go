package media

import (
	"image"

	"gocv.io/x/gocv"

	"github.com/camden-git/facebench/recognition"
)

// DetectionResult is a face region in image pixel coordinates.
type DetectionResult struct {
	X          int
	Y          int
	W          int
	H          int
	Confidence float32
}

func (d DetectionResult) Rect() image.Rectangle {
	return image.Rect(d.X, d.Y, d.X+d.W, d.Y+d.H)
}

func (d DetectionResult) Box() recognition.BoundingBox {
	return recognition.BoundingBox{X: d.X, Y: d.Y, Width: d.W, Height: d.H, Score: d.Confidence}
}

// FaceDetector finds faces in a BGR image.
type FaceDetector interface {
	DetectFaces(img gocv.Mat) ([]DetectionResult, error)
	Close()
}

// Embedder turns a cropped face into a feature vector.
type Embedder interface {
	Embed(face gocv.Mat) ([]float32, error)
	Close()
}

package media

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/camden-git/facebench/recognition"
)

// MatFrame is a recognition.Frame backed by an OpenCV matrix. Detections made on
// the frame are remembered so gallery matching does not detect twice.
type MatFrame struct {
	Mat gocv.Mat

	faces    []DetectionResult
	detected bool
}

func NewMatFrame(mat gocv.Mat) *MatFrame {
	return &MatFrame{Mat: mat}
}

func (f *MatFrame) Clone() recognition.Frame {
	return &MatFrame{Mat: f.Mat.Clone()}
}

func (f *MatFrame) Close() error {
	return f.Mat.Close()
}

func (f *MatFrame) Empty() bool {
	return f.Mat.Empty()
}

func asMat(frame recognition.Frame) (*MatFrame, error) {
	mf, ok := frame.(*MatFrame)
	if !ok || mf == nil {
		return nil, fmt.Errorf("unsupported frame type %T", frame)
	}
	if mf.Mat.Empty() {
		return nil, fmt.Errorf("empty frame")
	}
	return mf, nil
}

// EncodeJPEG encodes a frame for the live view.
func EncodeJPEG(frame recognition.Frame) ([]byte, error) {
	mf, err := asMat(frame)
	if err != nil {
		return nil, err
	}
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mf.Mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	defer buf.Close()

	// copy out of the native buffer before it is released
	data := buf.GetBytes()
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

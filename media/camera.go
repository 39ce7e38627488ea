package media

import (
	"errors"
	"fmt"
	"log"

	"gocv.io/x/gocv"

	"github.com/camden-git/facebench/recognition"
)

// Camera reads frames from a local capture device. It satisfies
// workers.FrameSource: the returned frame is reused by the next Read.
type Camera struct {
	capture *gocv.VideoCapture
	frame   *MatFrame
}

// OpenCamera opens device index at the requested resolution. The driver may pick
// a different one.
func OpenCamera(index, width, height int) (*Camera, error) {
	capture, err := gocv.OpenVideoCapture(index)
	if err != nil {
		return nil, fmt.Errorf("failed to open camera %d: %w", index, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("camera %d could not be opened", index)
	}
	capture.Set(gocv.VideoCaptureFrameWidth, float64(width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(height))
	log.Printf("camera: opened device %d at %.0fx%.0f", index,
		capture.Get(gocv.VideoCaptureFrameWidth), capture.Get(gocv.VideoCaptureFrameHeight))

	return &Camera{capture: capture, frame: NewMatFrame(gocv.NewMat())}, nil
}

func (c *Camera) Read() (recognition.Frame, error) {
	if ok := c.capture.Read(&c.frame.Mat); !ok {
		return nil, errors.New("capture returned no frame")
	}
	// new image, forget detections cached on the previous one
	c.frame.faces, c.frame.detected = nil, false
	return c.frame, nil
}

func (c *Camera) Close() error {
	c.frame.Close()
	return c.capture.Close()
}

// Window is the preview window. It satisfies workers.Display; pressing q quits.
type Window struct {
	window *gocv.Window
}

func NewWindow(title string) *Window {
	return &Window{window: gocv.NewWindow(title)}
}

func (w *Window) Show(frame recognition.Frame) bool {
	if mf, err := asMat(frame); err == nil {
		w.window.IMShow(mf.Mat)
	}
	key := w.window.WaitKey(1)
	return key == 'q' || key == 'Q'
}

func (w *Window) Close() error {
	return w.window.Close()
}

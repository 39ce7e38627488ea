package media

import (
	"errors"
	"fmt"
	"image"
	"log"

	"gocv.io/x/gocv"
)

var errDetectorDisabled = errors.New("face detector not loaded")

// SSDFaceDetector is the res10 300x300 SSD face detector.
type SSDFaceDetector struct {
	Net     gocv.Net
	Enabled bool

	InputSizeW    int
	InputSizeH    int
	ScaleFactor   float64
	MeanVal       gocv.Scalar
	ConfThreshold float32
}

// NewSSDFaceDetector loads the caffe model. A detector that failed to load is
// returned disabled together with the error.
func NewSSDFaceDetector(configPath, modelPath string) (*SSDFaceDetector, error) {
	if configPath == "" || modelPath == "" {
		return &SSDFaceDetector{}, fmt.Errorf("detection(dnn): config or model path is empty")
	}

	net := gocv.ReadNet(modelPath, configPath)
	if net.Empty() {
		return &SSDFaceDetector{}, fmt.Errorf("detection(dnn): failed to load network model: config=%s, model=%s", configPath, modelPath)
	}
	log.Printf("detection(dnn): successfully loaded face detection model")
	selectBackend(&net, "detection(dnn)")

	return &SSDFaceDetector{
		Net:           net,
		Enabled:       true,
		InputSizeW:    300,
		InputSizeH:    300,
		ScaleFactor:   1.0,
		MeanVal:       gocv.NewScalar(104.0, 177.0, 123.0, 0),
		ConfThreshold: 0.5,
	}, nil
}

func (d *SSDFaceDetector) Close() {
	if d != nil && d.Enabled {
		d.Net.Close()
		log.Println("detection(dnn): closed network")
		d.Enabled = false
	}
}

// DetectFaces returns faces above ConfThreshold, in output order.
func (d *SSDFaceDetector) DetectFaces(img gocv.Mat) ([]DetectionResult, error) {
	if d == nil || !d.Enabled {
		return nil, errDetectorDisabled
	}
	if img.Empty() {
		return nil, nil
	}

	imgHeight := float32(img.Rows())
	imgWidth := float32(img.Cols())

	blob := gocv.BlobFromImage(img, d.ScaleFactor, image.Pt(d.InputSizeW, d.InputSizeH), d.MeanVal, false, false)
	defer blob.Close()

	d.Net.SetInput(blob, "")
	detectionsMat := d.Net.Forward("")
	defer detectionsMat.Close()

	// output is [1, 1, N, 7]
	sizes := detectionsMat.Size()
	if len(sizes) != 4 {
		return nil, fmt.Errorf("detection(dnn): unexpected output dimensions %v", sizes)
	}
	numDetections := sizes[2]
	if numDetections == 0 {
		return nil, nil
	}

	detectionsData := detectionsMat.Reshape(1, numDetections)
	defer detectionsData.Close()

	var results []DetectionResult
	for i := 0; i < numDetections; i++ {
		confidence := detectionsData.GetFloatAt(i, 2)
		if confidence <= d.ConfThreshold {
			continue
		}

		xMin := max(0, detectionsData.GetFloatAt(i, 3)*imgWidth)
		yMin := max(0, detectionsData.GetFloatAt(i, 4)*imgHeight)
		xMax := min(imgWidth, detectionsData.GetFloatAt(i, 5)*imgWidth)
		yMax := min(imgHeight, detectionsData.GetFloatAt(i, 6)*imgHeight)

		if xMax > xMin && yMax > yMin {
			results = append(results, DetectionResult{
				X:          int(xMin),
				Y:          int(yMin),
				W:          int(xMax - xMin),
				H:          int(yMax - yMin),
				Confidence: confidence,
			})
		}
	}
	return results, nil
}

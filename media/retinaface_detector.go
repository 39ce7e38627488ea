package media

import (
	"fmt"
	"image"
	"log"
	"math"
	"sort"

	"gocv.io/x/gocv"
)

// PriorBox is an anchor (center x, center y, width, height), normalised to the
// network input.
type PriorBox struct {
	Cx, Cy, W, H float32
}

// GenerateRetinaFacePriors builds the anchors of the standard RetinaFace config
// for an imgW x imgH input.
func GenerateRetinaFacePriors(imgW, imgH int) []PriorBox {
	minSizes := [][]int{{16, 32}, {64, 128}, {256, 512}}
	steps := []int{8, 16, 32}

	var priors []PriorBox
	for k, step := range steps {
		fmH, fmW := imgH/step, imgW/step
		for i := 0; i < fmH; i++ {
			for j := 0; j < fmW; j++ {
				for _, minSize := range minSizes[k] {
					priors = append(priors, PriorBox{
						Cx: (float32(j) + 0.5) * float32(step) / float32(imgW),
						Cy: (float32(i) + 0.5) * float32(step) / float32(imgH),
						W:  float32(minSize) / float32(imgW),
						H:  float32(minSize) / float32(imgH),
					})
				}
			}
		}
	}
	return priors
}

// DecodeBox turns a [dx, dy, dw, dh] regression into normalised corners.
func DecodeBox(rawBox [4]float32, prior PriorBox, variances [2]float32) [4]float32 {
	cx := prior.Cx + rawBox[0]*variances[0]*prior.W
	cy := prior.Cy + rawBox[1]*variances[0]*prior.H
	w := prior.W * float32(math.Exp(float64(rawBox[2]*variances[1])))
	h := prior.H * float32(math.Exp(float64(rawBox[3]*variances[1])))
	return [4]float32{cx - w/2, cy - h/2, cx + w/2, cy + h/2}
}

// RetinaFaceDetector runs a RetinaFace ONNX export with bbox/confidence outputs.
type RetinaFaceDetector struct {
	Net     gocv.Net
	Enabled bool

	InputSizeW    int
	InputSizeH    int
	MeanVal       gocv.Scalar
	ConfThreshold float32
	IoUThreshold  float32

	priors []PriorBox
}

func NewRetinaFaceDetector(modelPath string) (*RetinaFaceDetector, error) {
	if modelPath == "" {
		return &RetinaFaceDetector{}, fmt.Errorf("detection(retinaface): model path is empty")
	}

	net := gocv.ReadNet(modelPath, "")
	if net.Empty() {
		return &RetinaFaceDetector{}, fmt.Errorf("detection(retinaface): ReadNet returned an empty network for %s", modelPath)
	}
	log.Printf("detection(retinaface): successfully loaded RetinaFace model")
	selectBackend(&net, "detection(retinaface)")

	return &RetinaFaceDetector{
		Net:           net,
		Enabled:       true,
		InputSizeW:    640,
		InputSizeH:    640,
		MeanVal:       gocv.NewScalar(104.0, 117.0, 123.0, 0),
		ConfThreshold: 0.5,
		IoUThreshold:  0.4,
		priors:        GenerateRetinaFacePriors(640, 640),
	}, nil
}

func (r *RetinaFaceDetector) Close() {
	if r != nil && r.Enabled {
		r.Net.Close()
		log.Println("detection(retinaface): closed network")
		r.Enabled = false
	}
}

// DetectFaces returns faces sorted by confidence after non-maximum suppression.
func (r *RetinaFaceDetector) DetectFaces(img gocv.Mat) ([]DetectionResult, error) {
	if r == nil || !r.Enabled {
		return nil, errDetectorDisabled
	}
	if img.Empty() {
		return nil, nil
	}

	imgHeight := float32(img.Rows())
	imgWidth := float32(img.Cols())

	blob := gocv.BlobFromImage(img, 1.0, image.Pt(r.InputSizeW, r.InputSizeH), r.MeanVal, false, false)
	defer blob.Close()

	r.Net.SetInput(blob, "input")
	outputs := r.Net.ForwardLayers([]string{"bbox", "confidence"})
	defer func() {
		for _, mat := range outputs {
			mat.Close()
		}
	}()
	if len(outputs) < 2 {
		return nil, fmt.Errorf("detection(retinaface): expected bbox and confidence outputs, got %d", len(outputs))
	}
	boxes, scores := outputs[0], outputs[1]

	// outputs are [1, N, 4] and [1, N, 2]
	if len(boxes.Size()) < 2 || boxes.Size()[1] != len(r.priors) {
		return nil, fmt.Errorf("detection(retinaface): output shape %v does not match %d priors", boxes.Size(), len(r.priors))
	}
	flatBoxes := boxes.Reshape(1, 1)
	defer flatBoxes.Close()
	flatScores := scores.Reshape(1, 1)
	defer flatScores.Close()

	variances := [2]float32{0.1, 0.2}
	var detections []DetectionResult
	for i, prior := range r.priors {
		score := flatScores.GetFloatAt(0, i*2+1)
		if score < r.ConfThreshold {
			continue
		}
		var raw [4]float32
		for j := 0; j < 4; j++ {
			raw[j] = flatBoxes.GetFloatAt(0, i*4+j)
		}
		decoded := DecodeBox(raw, prior, variances)

		x1 := max(0, decoded[0]*imgWidth)
		y1 := max(0, decoded[1]*imgHeight)
		x2 := min(imgWidth, decoded[2]*imgWidth)
		y2 := min(imgHeight, decoded[3]*imgHeight)
		if x2 <= x1 || y2 <= y1 {
			continue
		}
		detections = append(detections, DetectionResult{
			X:          int(x1),
			Y:          int(y1),
			W:          int(x2 - x1),
			H:          int(y2 - y1),
			Confidence: score,
		})
	}

	return NonMaxSuppression(detections, r.IoUThreshold), nil
}

// NonMaxSuppression keeps the most confident of any group of boxes overlapping by
// more than iouThreshold. The result is sorted by confidence, highest first.
func NonMaxSuppression(detections []DetectionResult, iouThreshold float32) []DetectionResult {
	if len(detections) == 0 {
		return detections
	}
	sorted := make([]DetectionResult, len(detections))
	copy(sorted, detections)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	var result []DetectionResult
	suppressed := make([]bool, len(sorted))
	for i := range sorted {
		if suppressed[i] {
			continue
		}
		result = append(result, sorted[i])
		for j := i + 1; j < len(sorted); j++ {
			if !suppressed[j] && IoU(sorted[i], sorted[j]) > iouThreshold {
				suppressed[j] = true
			}
		}
	}
	return result
}

// IoU is the intersection over union of two boxes.
func IoU(a, b DetectionResult) float32 {
	inter := a.Rect().Intersect(b.Rect())
	if inter.Empty() {
		return 0
	}
	intersection := float32(inter.Dx() * inter.Dy())
	union := float32(a.W*a.H+b.W*b.H) - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}

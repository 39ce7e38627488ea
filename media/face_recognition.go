package media

import (
	"errors"
	"fmt"
	"image"
	"log"
	"math"
	"os"

	"gocv.io/x/gocv"
)

// EmbeddingModel extracts face embeddings with an ONNX network (ArcFace, Facenet).
type EmbeddingModel struct {
	Net       gocv.Net
	Enabled   bool
	ModelName string

	InputSizeW int
	InputSizeH int
}

// NewEmbeddingModel loads an ONNX embedding network. modelName selects the input
// size: "facenet" uses 160x160, everything else 112x112.
func NewEmbeddingModel(modelPath, modelName string) (*EmbeddingModel, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("recognition: model path for %s is empty", modelName)
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("recognition: model file for %s: %w", modelName, err)
	}

	log.Printf("recognition: Attempting to load %s model: %s", modelName, modelPath)
	net := gocv.ReadNet(modelPath, "")
	if net.Empty() {
		return nil, fmt.Errorf("recognition: ReadNet returned an empty network for %s", modelName)
	}
	log.Printf("recognition: successfully loaded %s model", modelName)
	selectBackend(&net, "recognition("+modelName+")")

	w, h := 112, 112
	if modelName == "facenet" {
		w, h = 160, 160
	}
	return &EmbeddingModel{
		Net:        net,
		Enabled:    true,
		ModelName:  modelName,
		InputSizeW: w,
		InputSizeH: h,
	}, nil
}

func (f *EmbeddingModel) Close() {
	if f != nil && f.Enabled {
		f.Net.Close()
		log.Printf("recognition: closed %s network", f.ModelName)
		f.Enabled = false
	}
}

// Embed returns the L2-normalised embedding of a cropped BGR face.
func (f *EmbeddingModel) Embed(faceRegion gocv.Mat) ([]float32, error) {
	if f == nil || !f.Enabled {
		return nil, errors.New("embedding model not loaded")
	}
	if faceRegion.Empty() {
		return nil, errors.New("empty face region")
	}

	// networks expect RGB input scaled to [0,1]
	blob := gocv.BlobFromImage(faceRegion, 1.0/255.0, image.Pt(f.InputSizeW, f.InputSizeH), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	f.Net.SetInput(blob, "")
	output := f.Net.Forward("")
	defer output.Close()

	flattened := output.Reshape(1, 1)
	defer flattened.Close()

	n := flattened.Cols()
	if n == 0 {
		return nil, fmt.Errorf("%s returned an empty embedding", f.ModelName)
	}
	embedding := make([]float32, n)
	for i := 0; i < n; i++ {
		embedding[i] = flattened.GetFloatAt(0, i)
	}
	return normalizeEmbedding(embedding), nil
}

// normalizeEmbedding scales v to unit length. A zero vector is returned as is.
func normalizeEmbedding(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	norm = math.Sqrt(norm)

	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// CosineDistance is 1 - cosine similarity, clamped to [0, 2]. Mismatched or empty
// vectors are maximally distant.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 2
	}
	d := 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
	return math.Max(0, math.Min(2, d))
}

package cmd

import (
	"fmt"
	"log"

	"github.com/camden-git/facebench/config"
	"github.com/camden-git/facebench/media"
	"github.com/camden-git/facebench/recognition"
)

func newDetector(cfg config.Config) (media.FaceDetector, error) {
	if cfg.Detector == config.DetectorRetinaFace {
		return media.NewRetinaFaceDetector(cfg.RetinaFaceModelPath)
	}
	return media.NewSSDFaceDetector(cfg.FaceDNNNetConfigPath, cfg.FaceDNNNetModelPath)
}

func newEmbedder(cfg config.Config, model recognition.ModelName) (media.Embedder, error) {
	switch model {
	case recognition.ArcFace:
		return media.NewEmbeddingModel(cfg.ArcFaceModelPath, "arcface")
	case recognition.Facenet:
		return media.NewEmbeddingModel(cfg.FacenetModelPath, "facenet")
	case recognition.Dlib:
		return media.NewDlibEmbedder(cfg.DlibModelsDir)
	default:
		return nil, fmt.Errorf("no embedder for model %s", model)
	}
}

// buildRecognizer loads the detector and the embedders for the given models. No
// embedders are loaded when models is empty, which is enough for detection only.
func buildRecognizer(cfg config.Config, gallery []media.GalleryEntry, models ...recognition.ModelName) (*media.Recognizer, error) {
	detector, err := newDetector(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s face detector: %w", cfg.Detector, err)
	}

	embedders := make(map[recognition.ModelName]media.Embedder, len(models))
	for _, m := range models {
		e, err := newEmbedder(cfg, m)
		if err != nil {
			detector.Close()
			for _, loaded := range embedders {
				loaded.Close()
			}
			return nil, fmt.Errorf("failed to load %s model: %w", m, err)
		}
		embedders[m] = e
		log.Printf("recognition: loaded %s embedder", m)
	}
	return media.NewRecognizer(detector, embedders, gallery), nil
}

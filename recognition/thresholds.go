package recognition

import (
	"errors"
	"fmt"
)

// DefaultMinConfidence applies to every model without an explicit threshold.
const DefaultMinConfidence = 0.65

var ErrInvalidThreshold = errors.New("invalid threshold")

// Thresholds maps a model to the minimum confidence a match needs.
type Thresholds map[ModelName]float64

// DefaultThresholds returns the tuned per-model minimum confidences. Dlib distances
// run larger than the others, hence its higher bar.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ArcFace: 0.45,
		Dlib:    0.85,
	}
}

// NewThresholds starts from DefaultThresholds and applies overrides keyed by model
// name. The result is validated.
func NewThresholds(overrides map[string]float64) (Thresholds, error) {
	t := DefaultThresholds()
	for name, val := range overrides {
		model, ok := ParseModel(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown model %q", ErrInvalidThreshold, name)
		}
		t[model] = val
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// For returns the minimum confidence for model.
func (t Thresholds) For(model ModelName) float64 {
	if v, ok := t[model]; ok {
		return v
	}
	return DefaultMinConfidence
}

// Validate rejects entries for models outside the enumeration and values outside [0,1].
func (t Thresholds) Validate() error {
	for model, v := range t {
		if _, ok := ParseModel(string(model)); !ok {
			return fmt.Errorf("%w: unknown model %q", ErrInvalidThreshold, model)
		}
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: %s threshold %.3f outside [0,1]", ErrInvalidThreshold, model, v)
		}
	}
	return nil
}

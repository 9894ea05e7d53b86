package model

import (
	"fmt"
	"math"

	"github.com/mikey/email-classifier/internal/core"
)

// Predict classifies a validated feature vector. The vector's schema
// version must match the artifact's training-time version; anything else
// is rejected rather than predicted on a best-effort basis. Predict is
// pure and safe to call concurrently against the same artifact.
func (a *Artifact) Predict(vec *core.FeatureVector) (*core.Prediction, error) {
	if vec.SchemaVersion != a.schema.Version {
		return nil, &core.SchemaVersionMismatchError{
			ArtifactVersion: a.schema.Version,
			VectorVersion:   vec.SchemaVersion,
		}
	}
	if len(vec.Values) != a.schema.Len() {
		return nil, &core.ModelInferenceError{
			Err: fmt.Errorf("vector has %d values, model expects %d", len(vec.Values), a.schema.Len()),
		}
	}

	logits := make([]float64, len(a.labels))
	for i := range a.labels {
		z := a.bias[i]
		for j, v := range vec.Values {
			z += a.weights[i][j] * v
		}
		logits[i] = z
	}

	probs := softmax(logits, a.calibration.Temperature)

	best := 0
	for i := 1; i < len(probs); i++ {
		if probs[i] > probs[best] {
			best = i
		}
	}

	confidence := probs[best]
	if math.IsNaN(confidence) || math.IsInf(confidence, 0) {
		return nil, &core.ModelInferenceError{
			Err: fmt.Errorf("non-finite probability for label %q", a.labels[best]),
		}
	}

	return &core.Prediction{
		Label:         a.labels[best],
		Confidence:    confidence,
		SchemaVersion: a.schema.Version,
		ModelType:     a.modelType,
	}, nil
}

// softmax converts logits into calibrated probabilities. Logits are
// shifted by their maximum for numerical stability before exponentiation.
func softmax(logits []float64, temperature float64) []float64 {
	scaled := make([]float64, len(logits))
	maxLogit := math.Inf(-1)
	for i, z := range logits {
		scaled[i] = z / temperature
		if scaled[i] > maxLogit {
			maxLogit = scaled[i]
		}
	}

	probs := make([]float64, len(scaled))
	var sum float64
	for i, z := range scaled {
		probs[i] = math.Exp(z - maxLogit)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

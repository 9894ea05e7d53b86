// Package model loads trained classifier artifacts and runs inference
// against them. An artifact is an opaque, versioned interchange file
// produced by the offline training pipeline: label set, feature schema,
// weights and calibration. The serving side never embeds training logic.
package model

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mikey/email-classifier/internal/core"
	"github.com/mikey/email-classifier/internal/schema"
)

// artifactFormatVersion is the interchange format this build understands.
const artifactFormatVersion = 1

// ModelTypeLinearSoftmax is the only model type currently supported: a
// linear model per label with temperature-scaled softmax calibration.
const ModelTypeLinearSoftmax = "linear_softmax"

// Calibration describes how raw scores become probabilities. The method
// and its parameters are fixed at training time.
type Calibration struct {
	Method      string  `json:"method"`
	Temperature float64 `json:"temperature"`
}

// artifactFile is the on-disk JSON layout of a model artifact.
type artifactFile struct {
	FormatVersion int            `json:"format_version"`
	ModelType     string         `json:"model_type"`
	CreatedAt     time.Time      `json:"created_at"`
	Labels        []string       `json:"labels"`
	Schema        *schema.Schema `json:"schema"`
	Weights       [][]float64    `json:"weights"`
	Bias          []float64      `json:"bias"`
	Calibration   Calibration    `json:"calibration"`
}

// Artifact is a loaded classifier plus its training-time metadata. It is
// immutable after construction and safe for concurrent Predict calls;
// swapping models means loading a whole new artifact.
type Artifact struct {
	modelType   string
	createdAt   time.Time
	labels      []string
	schema      *schema.Schema
	weights     [][]float64
	bias        []float64
	calibration Calibration
}

// Load reads and validates a model artifact from disk. Any unreadable,
// malformed or dimensionally inconsistent file yields an ArtifactLoadError.
func Load(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &core.ArtifactLoadError{Path: path, Err: err}
	}

	var file artifactFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, &core.ArtifactLoadError{Path: path, Err: fmt.Errorf("invalid artifact JSON: %w", err)}
	}
	if file.FormatVersion != artifactFormatVersion {
		return nil, &core.ArtifactLoadError{
			Path: path,
			Err:  fmt.Errorf("unsupported artifact format version %d (want %d)", file.FormatVersion, artifactFormatVersion),
		}
	}

	artifact, err := NewArtifact(file.ModelType, file.Labels, file.Schema, file.Weights, file.Bias, file.Calibration)
	if err != nil {
		return nil, &core.ArtifactLoadError{Path: path, Err: err}
	}
	artifact.createdAt = file.CreatedAt
	return artifact, nil
}

// NewArtifact builds an artifact from its parts, validating internal
// consistency. Tests use it to construct in-memory artifacts.
func NewArtifact(
	modelType string,
	labels []string,
	s *schema.Schema,
	weights [][]float64,
	bias []float64,
	calibration Calibration,
) (*Artifact, error) {
	if modelType != ModelTypeLinearSoftmax {
		return nil, fmt.Errorf("unsupported model type %q", modelType)
	}
	if len(labels) < 2 {
		return nil, fmt.Errorf("artifact declares %d labels, need at least 2", len(labels))
	}
	if s == nil {
		return nil, fmt.Errorf("artifact carries no feature schema")
	}
	if err := s.Check(); err != nil {
		return nil, fmt.Errorf("artifact schema invalid: %w", err)
	}
	if len(weights) != len(labels) {
		return nil, fmt.Errorf("weight matrix has %d rows for %d labels", len(weights), len(labels))
	}
	for i, row := range weights {
		if len(row) != s.Len() {
			return nil, fmt.Errorf("weight row %d has %d columns for %d features", i, len(row), s.Len())
		}
	}
	if len(bias) != len(labels) {
		return nil, fmt.Errorf("bias vector has %d entries for %d labels", len(bias), len(labels))
	}
	if calibration.Method == "" {
		calibration.Method = "softmax"
	}
	if calibration.Method != "softmax" {
		return nil, fmt.Errorf("unsupported calibration method %q", calibration.Method)
	}
	if calibration.Temperature <= 0 {
		return nil, fmt.Errorf("calibration temperature must be positive, got %v", calibration.Temperature)
	}

	return &Artifact{
		modelType:   modelType,
		labels:      append([]string(nil), labels...),
		schema:      s,
		weights:     weights,
		bias:        bias,
		calibration: calibration,
	}, nil
}

// Schema returns the feature schema the model was trained with.
func (a *Artifact) Schema() *schema.Schema {
	return a.schema
}

// SchemaVersion returns the training-time schema version.
func (a *Artifact) SchemaVersion() string {
	return a.schema.Version
}

// Labels returns a copy of the label set.
func (a *Artifact) Labels() []string {
	return append([]string(nil), a.labels...)
}

// HasLabel reports whether the label set contains the given label.
func (a *Artifact) HasLabel(label string) bool {
	for _, l := range a.labels {
		if l == label {
			return true
		}
	}
	return false
}

// CreatedAt returns when the artifact was produced by training.
func (a *Artifact) CreatedAt() time.Time {
	return a.createdAt
}

// ModelType returns the artifact's model type identifier.
func (a *Artifact) ModelType() string {
	return a.modelType
}

package core

import (
	"fmt"
	"strings"
)

// MissingRequiredFeatureError is returned when a raw email lacks a signal
// the schema marks as mandatory.
type MissingRequiredFeatureError struct {
	Feature string
}

func (e *MissingRequiredFeatureError) Error() string {
	return fmt.Sprintf("missing required feature %q", e.Feature)
}

// SchemaMismatchError is returned when a feature vector does not match the
// pinned schema. It carries the offending keys and is never auto-corrected.
type SchemaMismatchError struct {
	Missing    []string
	Extra      []string
	Mistyped   []string
	Misordered []string
}

func (e *SchemaMismatchError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Extra) > 0 {
		parts = append(parts, "extra: "+strings.Join(e.Extra, ", "))
	}
	if len(e.Mistyped) > 0 {
		parts = append(parts, "mistyped: "+strings.Join(e.Mistyped, ", "))
	}
	if len(e.Misordered) > 0 {
		parts = append(parts, "misordered: "+strings.Join(e.Misordered, ", "))
	}
	if len(parts) == 0 {
		return "feature vector does not match schema"
	}
	return "feature vector does not match schema (" + strings.Join(parts, "; ") + ")"
}

// SchemaVersionMismatchError is returned when a feature vector was built
// against a different schema version than the one the model was trained on.
type SchemaVersionMismatchError struct {
	ArtifactVersion string
	VectorVersion   string
}

func (e *SchemaVersionMismatchError) Error() string {
	return fmt.Sprintf("schema version mismatch: artifact trained on %q, vector built with %q",
		e.ArtifactVersion, e.VectorVersion)
}

// ArtifactLoadError is returned when a model artifact cannot be loaded.
// During startup this is fatal; the service never runs without a valid model.
type ArtifactLoadError struct {
	Path string
	Err  error
}

func (e *ArtifactLoadError) Error() string {
	return fmt.Sprintf("failed to load model artifact %q: %v", e.Path, e.Err)
}

func (e *ArtifactLoadError) Unwrap() error {
	return e.Err
}

// ModelInferenceError is returned when the underlying prediction call
// faults on an otherwise valid feature vector.
type ModelInferenceError struct {
	Err error
}

func (e *ModelInferenceError) Error() string {
	return fmt.Sprintf("model inference failed: %v", e.Err)
}

func (e *ModelInferenceError) Unwrap() error {
	return e.Err
}

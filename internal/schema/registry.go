package schema

import (
	"fmt"

	"github.com/mikey/email-classifier/internal/core"
)

// Registry pins the schema the loaded model artifact was trained with.
// One registry is built per process at startup; it is read-only afterwards
// and safe for concurrent use.
type Registry struct {
	schema *Schema
}

// NewRegistry creates a registry pinned to the given schema.
func NewRegistry(s *Schema) (*Registry, error) {
	if s == nil {
		return nil, fmt.Errorf("registry requires a schema")
	}
	if err := s.Check(); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return &Registry{schema: s}, nil
}

// Current returns the pinned schema.
func (r *Registry) Current() *Schema {
	return r.schema
}

// Version returns the pinned schema version.
func (r *Registry) Version() string {
	return r.schema.Version
}

// Validate checks a feature vector against the pinned schema.
func (r *Registry) Validate(vec *core.FeatureVector) error {
	return r.schema.Validate(vec)
}

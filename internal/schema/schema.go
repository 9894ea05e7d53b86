// Package schema defines the versioned feature contract shared by the
// training pipeline and the serving core. The schema travels inside the
// model artifact so serving is always pinned to the training-time layout.
package schema

import (
	"fmt"
	"math"

	"github.com/mikey/email-classifier/internal/core"
)

// FeatureType enumerates the value kinds a schema field may declare.
type FeatureType string

const (
	TypeFloat FeatureType = "float"
	TypeInt   FeatureType = "int"
	TypeBool  FeatureType = "bool"
)

// Source names the raw-email signal a feature is derived from. The
// extractor uses it to decide whether the signal backing a feature is
// present at all.
type Source string

const (
	SourceSubject  Source = "subject"
	SourceBody     Source = "body"
	SourceHeaders  Source = "headers"
	SourceEnvelope Source = "envelope"
)

// ClipRange bounds a raw feature value. The bounds are frozen at training
// time and shipped with the schema; they are never recomputed at serving
// time.
type ClipRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// ScaleMinMax rescales a clipped value into [0,1] using the clip bounds.
const ScaleMinMax = "minmax"

// Feature declares one column of the feature vector.
type Feature struct {
	Name     string      `json:"name"`
	Type     FeatureType `json:"type"`
	Source   Source      `json:"source"`
	Required bool        `json:"required,omitempty"`
	Default  float64     `json:"default,omitempty"`
	Clip     *ClipRange  `json:"clip,omitempty"`
	Scale    string      `json:"scale,omitempty"`
}

// Schema is the ordered, versioned list of features the model consumes.
type Schema struct {
	Version  string    `json:"version"`
	Features []Feature `json:"features"`
}

// Len returns the number of features.
func (s *Schema) Len() int {
	return len(s.Features)
}

// Names returns the feature names in schema order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.Features))
	for i, f := range s.Features {
		names[i] = f.Name
	}
	return names
}

// Check verifies the schema itself is well-formed. It is called when an
// artifact is loaded, so a broken schema fails the process at startup
// rather than on the first request.
func (s *Schema) Check() error {
	if s.Version == "" {
		return fmt.Errorf("schema has no version")
	}
	if len(s.Features) == 0 {
		return fmt.Errorf("schema %q declares no features", s.Version)
	}
	seen := make(map[string]struct{}, len(s.Features))
	for _, f := range s.Features {
		if f.Name == "" {
			return fmt.Errorf("schema %q contains an unnamed feature", s.Version)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("schema %q declares feature %q twice", s.Version, f.Name)
		}
		seen[f.Name] = struct{}{}

		switch f.Type {
		case TypeFloat, TypeInt, TypeBool:
		default:
			return fmt.Errorf("feature %q has unknown type %q", f.Name, f.Type)
		}
		switch f.Source {
		case SourceSubject, SourceBody, SourceHeaders, SourceEnvelope:
		default:
			return fmt.Errorf("feature %q has unknown source %q", f.Name, f.Source)
		}
		if f.Clip != nil && f.Clip.Min >= f.Clip.Max {
			return fmt.Errorf("feature %q has invalid clip range [%v, %v]", f.Name, f.Clip.Min, f.Clip.Max)
		}
		if f.Scale == ScaleMinMax && f.Clip == nil {
			return fmt.Errorf("feature %q requests minmax scaling without clip bounds", f.Name)
		}
		if f.Scale != "" && f.Scale != ScaleMinMax {
			return fmt.Errorf("feature %q has unknown scale %q", f.Name, f.Scale)
		}
	}
	return nil
}

// Validate checks a feature vector against the schema: key set equality,
// exact ordering (the model is order-sensitive) and per-key type
// compatibility. Any deviation is reported via SchemaMismatchError and is
// never corrected silently.
func (s *Schema) Validate(vec *core.FeatureVector) error {
	mismatch := &SchemaMismatchBuilder{}

	inVector := make(map[string]int, len(vec.Names))
	for i, name := range vec.Names {
		inVector[name] = i
	}
	for i, f := range s.Features {
		pos, ok := inVector[f.Name]
		if !ok {
			mismatch.Missing(f.Name)
			continue
		}
		if pos != i {
			mismatch.Misordered(f.Name)
		}
	}
	declared := make(map[string]*Feature, len(s.Features))
	for i := range s.Features {
		declared[s.Features[i].Name] = &s.Features[i]
	}
	for _, name := range vec.Names {
		if _, ok := declared[name]; !ok {
			mismatch.Extra(name)
		}
	}

	if len(vec.Values) != len(vec.Names) {
		return &core.SchemaMismatchError{
			Mistyped: []string{fmt.Sprintf("vector has %d names but %d values", len(vec.Names), len(vec.Values))},
		}
	}

	for i, name := range vec.Names {
		f, ok := declared[name]
		if !ok {
			continue
		}
		if !typeCompatible(f, vec.Values[i]) {
			mismatch.Mistyped(name)
		}
	}

	return mismatch.Err()
}

// typeCompatible reports whether a value satisfies the feature's declared
// type. Scaled features are checked against the scaled range instead of
// the raw type, since minmax scaling legitimately turns counts into
// fractions.
func typeCompatible(f *Feature, v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	if f.Scale == ScaleMinMax {
		return v >= 0 && v <= 1
	}
	switch f.Type {
	case TypeBool:
		return v == 0 || v == 1
	case TypeInt:
		return v == math.Trunc(v)
	default:
		return true
	}
}

// SchemaMismatchBuilder accumulates validation findings and produces a
// single SchemaMismatchError, or nil when nothing was recorded.
type SchemaMismatchBuilder struct {
	err core.SchemaMismatchError
}

func (b *SchemaMismatchBuilder) Missing(name string)    { b.err.Missing = append(b.err.Missing, name) }
func (b *SchemaMismatchBuilder) Extra(name string)      { b.err.Extra = append(b.err.Extra, name) }
func (b *SchemaMismatchBuilder) Mistyped(name string)   { b.err.Mistyped = append(b.err.Mistyped, name) }
func (b *SchemaMismatchBuilder) Misordered(name string) { b.err.Misordered = append(b.err.Misordered, name) }

// Err returns the accumulated error, or nil if the vector passed.
func (b *SchemaMismatchBuilder) Err() error {
	if len(b.err.Missing) == 0 && len(b.err.Extra) == 0 &&
		len(b.err.Mistyped) == 0 && len(b.err.Misordered) == 0 {
		return nil
	}
	return &b.err
}

package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikey/email-classifier/internal/core"
)

func testSchema() *Schema {
	return &Schema{
		Version: "v1",
		Features: []Feature{
			{Name: "subject_caps_ratio", Type: TypeFloat, Source: SourceSubject},
			{Name: "body_exclamations", Type: TypeInt, Source: SourceBody, Clip: &ClipRange{Min: 0, Max: 10}, Scale: ScaleMinMax},
			{Name: "has_list_unsubscribe", Type: TypeBool, Source: SourceHeaders},
			{Name: "body_token_count", Type: TypeInt, Source: SourceBody, Required: true},
		},
	}
}

func TestSchemaCheck(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *Schema)
		wantErr string
	}{
		{
			name:   "valid schema",
			mutate: func(s *Schema) {},
		},
		{
			name:    "no version",
			mutate:  func(s *Schema) { s.Version = "" },
			wantErr: "no version",
		},
		{
			name:    "no features",
			mutate:  func(s *Schema) { s.Features = nil },
			wantErr: "declares no features",
		},
		{
			name: "duplicate feature",
			mutate: func(s *Schema) {
				s.Features = append(s.Features, s.Features[0])
			},
			wantErr: "twice",
		},
		{
			name:    "unknown type",
			mutate:  func(s *Schema) { s.Features[0].Type = "complex" },
			wantErr: "unknown type",
		},
		{
			name:    "unknown source",
			mutate:  func(s *Schema) { s.Features[0].Source = "attachment" },
			wantErr: "unknown source",
		},
		{
			name:    "inverted clip range",
			mutate:  func(s *Schema) { s.Features[1].Clip = &ClipRange{Min: 5, Max: 5} },
			wantErr: "invalid clip range",
		},
		{
			name: "minmax without clip",
			mutate: func(s *Schema) {
				s.Features[1].Clip = nil
			},
			wantErr: "without clip bounds",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSchema()
			tt.mutate(s)
			err := s.Check()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func validVector(s *Schema) *core.FeatureVector {
	return &core.FeatureVector{
		SchemaVersion: s.Version,
		Names:         s.Names(),
		Values:        []float64{0.5, 0.3, 1, 42},
	}
}

func TestValidateAcceptsMatchingVector(t *testing.T) {
	s := testSchema()
	require.NoError(t, s.Check())
	assert.NoError(t, s.Validate(validVector(s)))
}

func TestValidateMissingKey(t *testing.T) {
	s := testSchema()
	vec := validVector(s)
	vec.Names = vec.Names[:3]
	vec.Values = vec.Values[:3]

	err := s.Validate(vec)
	var mismatch *core.SchemaMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, []string{"body_token_count"}, mismatch.Missing)
}

func TestValidateExtraKey(t *testing.T) {
	s := testSchema()
	vec := validVector(s)
	vec.Names = append(vec.Names, "emoji_count")
	vec.Values = append(vec.Values, 2)

	err := s.Validate(vec)
	var mismatch *core.SchemaMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, []string{"emoji_count"}, mismatch.Extra)
}

func TestValidateMisorderedKeys(t *testing.T) {
	s := testSchema()
	vec := validVector(s)
	vec.Names[0], vec.Names[1] = vec.Names[1], vec.Names[0]

	err := s.Validate(vec)
	var mismatch *core.SchemaMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.NotEmpty(t, mismatch.Misordered)
}

func TestValidateMistypedValues(t *testing.T) {
	tests := []struct {
		name  string
		index int
		value float64
		key   string
	}{
		{name: "non-binary bool", index: 2, value: 0.5, key: "has_list_unsubscribe"},
		{name: "fractional int", index: 3, value: 1.5, key: "body_token_count"},
		{name: "scaled value out of range", index: 1, value: 1.2, key: "body_exclamations"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSchema()
			vec := validVector(s)
			vec.Values[tt.index] = tt.value

			err := s.Validate(vec)
			var mismatch *core.SchemaMismatchError
			require.True(t, errors.As(err, &mismatch))
			assert.Contains(t, mismatch.Mistyped, tt.key)
		})
	}
}

func TestRegistryPinsSchema(t *testing.T) {
	s := testSchema()
	reg, err := NewRegistry(s)
	require.NoError(t, err)

	assert.Equal(t, "v1", reg.Version())
	assert.Same(t, s, reg.Current())
	assert.NoError(t, reg.Validate(validVector(s)))
}

func TestRegistryRejectsBrokenSchema(t *testing.T) {
	s := testSchema()
	s.Version = ""
	_, err := NewRegistry(s)
	assert.Error(t, err)

	_, err = NewRegistry(nil)
	assert.Error(t, err)
}

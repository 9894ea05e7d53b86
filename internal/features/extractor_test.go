package features

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/email-classifier/internal/core"
	"github.com/mikey/email-classifier/internal/schema"
)

func testRegistry(t *testing.T, s *schema.Schema) *schema.Registry {
	t.Helper()
	reg, err := schema.NewRegistry(s)
	require.NoError(t, err)
	return reg
}

func extractorSchema() *schema.Schema {
	return &schema.Schema{
		Version: "v1",
		Features: []schema.Feature{
			{Name: "subject_caps_ratio", Type: schema.TypeFloat, Source: schema.SourceSubject},
			{Name: "body_exclamations", Type: schema.TypeInt, Source: schema.SourceBody, Clip: &schema.ClipRange{Min: 0, Max: 10}, Scale: schema.ScaleMinMax},
			{Name: "urgency_terms", Type: schema.TypeInt, Source: schema.SourceBody, Clip: &schema.ClipRange{Min: 0, Max: 8}, Scale: schema.ScaleMinMax},
			{Name: "body_token_count", Type: schema.TypeInt, Source: schema.SourceBody, Required: true, Clip: &schema.ClipRange{Min: 0, Max: 500}, Scale: schema.ScaleMinMax},
			{Name: "has_list_unsubscribe", Type: schema.TypeBool, Source: schema.SourceHeaders},
			{Name: "recipient_count", Type: schema.TypeInt, Source: schema.SourceEnvelope},
		},
	}
}

func testEmail() *core.RawEmail {
	return &core.RawEmail{
		From:    "promo@spam.example",
		To:      []string{"alice@example.com", "bob@example.com"},
		Subject: "WIN FREE MONEY NOW",
		Body:    "Click here!!!",
		Headers: map[string]string{
			"List-Unsubscribe": "<mailto:unsub@spam.example>",
		},
		ReceivedAt: time.Now(),
	}
}

func TestExtractProducesSchemaOrderedVector(t *testing.T) {
	reg := testRegistry(t, extractorSchema())
	ex, err := NewExtractor(reg, zap.NewNop())
	require.NoError(t, err)

	vec, err := ex.Extract(testEmail())
	require.NoError(t, err)

	assert.Equal(t, "v1", vec.SchemaVersion)
	assert.Equal(t, reg.Current().Names(), vec.Names)
	require.Len(t, vec.Values, 6)

	assert.InDelta(t, 1.0, vec.Values[0], 1e-9)   // every letter upper case
	assert.InDelta(t, 0.3, vec.Values[1], 1e-9)   // 3 exclamations, scaled over [0,10]
	assert.InDelta(t, 0.5, vec.Values[2], 1e-9)   // win, free, money, click here
	assert.InDelta(t, 0.004, vec.Values[3], 1e-9) // 2 body tokens, scaled over [0,500]
	assert.Equal(t, 1.0, vec.Values[4])
	assert.Equal(t, 2.0, vec.Values[5])

	assert.NoError(t, reg.Validate(vec))
}

func TestExtractIsDeterministic(t *testing.T) {
	ex, err := NewExtractor(testRegistry(t, extractorSchema()), zap.NewNop())
	require.NoError(t, err)

	first, err := ex.Extract(testEmail())
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := ex.Extract(testEmail())
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestExtractMissingOptionalUsesDefault(t *testing.T) {
	s := &schema.Schema{
		Version: "v1",
		Features: []schema.Feature{
			{Name: "subject_caps_ratio", Type: schema.TypeFloat, Source: schema.SourceSubject, Default: 0.25},
			{Name: "body_token_count", Type: schema.TypeInt, Source: schema.SourceBody, Required: true},
		},
	}
	ex, err := NewExtractor(testRegistry(t, s), zap.NewNop())
	require.NoError(t, err)

	email := testEmail()
	email.Subject = ""

	vec, err := ex.Extract(email)
	require.NoError(t, err)
	assert.Equal(t, 0.25, vec.Values[0])
}

func TestExtractMissingMandatoryFails(t *testing.T) {
	ex, err := NewExtractor(testRegistry(t, extractorSchema()), zap.NewNop())
	require.NoError(t, err)

	email := testEmail()
	email.Body = ""

	_, err = ex.Extract(email)
	var missing *core.MissingRequiredFeatureError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "body_token_count", missing.Feature)
}

func TestExtractClipsBeforeScaling(t *testing.T) {
	ex, err := NewExtractor(testRegistry(t, extractorSchema()), zap.NewNop())
	require.NoError(t, err)

	email := testEmail()
	email.Body = "Buy now!!!!!!!!!!!!!!!" // far beyond the clip ceiling

	vec, err := ex.Extract(email)
	require.NoError(t, err)
	assert.Equal(t, 1.0, vec.Values[1])
	assert.NoError(t, extractorSchema().Validate(vec))
}

func TestExtractDefaultPassesThroughScaling(t *testing.T) {
	s := &schema.Schema{
		Version: "v1",
		Features: []schema.Feature{
			{Name: "has_list_unsubscribe", Type: schema.TypeBool, Source: schema.SourceHeaders},
			{Name: "body_token_count", Type: schema.TypeInt, Source: schema.SourceBody, Required: true, Clip: &schema.ClipRange{Min: 0, Max: 500}, Scale: schema.ScaleMinMax},
		},
	}
	ex, err := NewExtractor(testRegistry(t, s), zap.NewNop())
	require.NoError(t, err)

	email := testEmail()
	email.Headers = nil

	vec, err := ex.Extract(email)
	require.NoError(t, err)
	assert.Equal(t, 0.0, vec.Values[0])
	assert.NoError(t, s.Validate(vec))
}

func TestNewExtractorRejectsUnknownFeature(t *testing.T) {
	s := &schema.Schema{
		Version: "v1",
		Features: []schema.Feature{
			{Name: "sender_reputation", Type: schema.TypeFloat, Source: schema.SourceEnvelope},
		},
	}
	_, err := NewExtractor(testRegistry(t, s), zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sender_reputation")
}

func TestNumberCountCountsBareNumbersOnly(t *testing.T) {
	s := &schema.Schema{
		Version: "v1",
		Features: []schema.Feature{
			{Name: "number_count", Type: schema.TypeInt, Source: schema.SourceBody},
		},
	}
	ex, err := NewExtractor(testRegistry(t, s), zap.NewNop())
	require.NoError(t, err)

	email := testEmail()
	email.Subject = ""
	email.Body = "Call 555 about invoice 12, pay $99.99 at https://pay.example/123, or reply to this number."

	vec, err := ex.Extract(email)
	require.NoError(t, err)

	// 555 and 12 count; the money amount, the digits in the URL and the
	// word "number" do not.
	assert.Equal(t, 2.0, vec.Values[0])
}

func TestCountUrgencyTermsRespectsWordBoundaries(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
	}{
		{name: "whole words counted", text: "win free money", want: 3},
		{name: "substrings ignored", text: "winning the showing", want: 0},
		{name: "phrases counted once per occurrence", text: "click here and click here", want: 2},
		{name: "empty text", text: "", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, countUrgencyTerms(tt.text))
		})
	}
}

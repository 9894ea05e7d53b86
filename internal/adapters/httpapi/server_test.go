package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/email-classifier/internal/adapters/cache"
	"github.com/mikey/email-classifier/internal/core"
	"github.com/mikey/email-classifier/internal/features"
	"github.com/mikey/email-classifier/internal/model"
	"github.com/mikey/email-classifier/internal/schema"
	"github.com/mikey/email-classifier/internal/whitelist"
)

func testService(t *testing.T) *core.ClassificationService {
	t.Helper()

	s := &schema.Schema{
		Version: "v1",
		Features: []schema.Feature{
			{Name: "subject_caps_ratio", Type: schema.TypeFloat, Source: schema.SourceSubject},
			{Name: "body_exclamations", Type: schema.TypeInt, Source: schema.SourceBody, Clip: &schema.ClipRange{Min: 0, Max: 10}, Scale: schema.ScaleMinMax},
			{Name: "urgency_terms", Type: schema.TypeInt, Source: schema.SourceBody, Clip: &schema.ClipRange{Min: 0, Max: 8}, Scale: schema.ScaleMinMax},
			{Name: "body_token_count", Type: schema.TypeInt, Source: schema.SourceBody, Required: true, Clip: &schema.ClipRange{Min: 0, Max: 500}, Scale: schema.ScaleMinMax},
		},
	}

	artifact, err := model.NewArtifact(
		model.ModelTypeLinearSoftmax,
		[]string{"ham", "spam"},
		s,
		[][]float64{
			{-1.0, -0.5, -2.0, 0.5},
			{3.0, 2.0, 4.0, -0.5},
		},
		[]float64{1.0, -2.0},
		model.Calibration{Method: "softmax", Temperature: 1},
	)
	require.NoError(t, err)

	registry, err := schema.NewRegistry(artifact.Schema())
	require.NoError(t, err)

	extractor, err := features.NewExtractor(registry, zap.NewNop())
	require.NoError(t, err)

	return core.NewClassificationService(
		extractor, registry, artifact,
		zap.NewNop(), whitelist.NewChecker(nil, nil), "ham")
}

func testServer(t *testing.T, cacheEnabled bool) *Server {
	t.Helper()
	var predCache core.PredictionCache
	if cacheEnabled {
		mc := cache.NewMemoryCache(zap.NewNop(), time.Hour)
		t.Cleanup(mc.Stop)
		predCache = mc
	}
	return NewServer(testService(t), predCache, cacheEnabled, time.Hour, nil, zap.NewNop(), ":0")
}

func postClassify(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/classify", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestClassifyEndpoint(t *testing.T) {
	handler := testServer(t, false).Router()

	rec := postClassify(t, handler, `{
		"from": "promo@spam.example",
		"subject": "WIN FREE MONEY NOW",
		"body": "Click here!!!"
	}`)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp classifyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "spam", resp.Label)
	assert.Greater(t, resp.Confidence, 0.8)
	assert.Equal(t, "v1", resp.SchemaVersion)
	assert.NotEmpty(t, resp.ProcessingID)
	assert.False(t, resp.Cached)
}

func TestClassifyEndpointBadJSON(t *testing.T) {
	handler := testServer(t, false).Router()

	rec := postClassify(t, handler, `{"from":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "bad_request", resp.Code)
}

func TestClassifyEndpointMissingRequiredFeature(t *testing.T) {
	handler := testServer(t, false).Router()

	rec := postClassify(t, handler, `{
		"from": "someone@example.com",
		"subject": "No body"
	}`)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "missing_required_feature", resp.Code)
	assert.Equal(t, []string{"body_token_count"}, resp.Missing)
}

func TestClassifyEndpointCaching(t *testing.T) {
	handler := testServer(t, true).Router()
	body := `{
		"from": "promo@spam.example",
		"subject": "WIN FREE MONEY NOW",
		"body": "Click here!!!"
	}`

	first := postClassify(t, handler, body)
	require.Equal(t, http.StatusOK, first.Code)
	var firstResp classifyResponse
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &firstResp))
	assert.False(t, firstResp.Cached)

	second := postClassify(t, handler, body)
	require.Equal(t, http.StatusOK, second.Code)
	var secondResp classifyResponse
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &secondResp))
	assert.True(t, secondResp.Cached)
	assert.Equal(t, firstResp.Label, secondResp.Label)
	assert.Equal(t, firstResp.ProcessingID, secondResp.ProcessingID)
}

func TestClassifyEndpointDifferentContentMissesCache(t *testing.T) {
	handler := testServer(t, true).Router()

	first := postClassify(t, handler, `{"from": "a@example.com", "subject": "Hello", "body": "First message."}`)
	require.Equal(t, http.StatusOK, first.Code)

	second := postClassify(t, handler, `{"from": "a@example.com", "subject": "Hello", "body": "Second message."}`)
	require.Equal(t, http.StatusOK, second.Code)

	var secondResp classifyResponse
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &secondResp))
	assert.False(t, secondResp.Cached)
}

type stubExplainer struct {
	text string
}

func (s *stubExplainer) Explain(_ context.Context, _ *core.RawEmail, _ *core.Prediction) (string, error) {
	return s.text, nil
}

func TestClassifyEndpointExplain(t *testing.T) {
	srv := NewServer(testService(t), nil, false, 0,
		&stubExplainer{text: "heavy use of urgency phrases"}, zap.NewNop(), ":0")
	handler := srv.Router()

	req := httptest.NewRequest(http.MethodPost, "/v1/classify?explain=true",
		bytes.NewReader([]byte(`{"from": "promo@spam.example", "subject": "WIN FREE MONEY NOW", "body": "Click here!!!"}`)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp classifyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "heavy use of urgency phrases", resp.Explanation)
}

func TestLabelsEndpoint(t *testing.T) {
	handler := testServer(t, false).Router()

	req := httptest.NewRequest(http.MethodGet, "/v1/labels", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"ham", "spam"}, resp["labels"])
}

func TestHealthEndpoint(t *testing.T) {
	handler := testServer(t, false).Router()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestHandleClassifyErrorMapping(t *testing.T) {
	srv := testServer(t, false)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "missing required feature",
			err:        &core.MissingRequiredFeatureError{Feature: "body_token_count"},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "missing_required_feature",
		},
		{
			name:       "schema mismatch",
			err:        &core.SchemaMismatchError{Extra: []string{"emoji_count"}},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "schema_mismatch",
		},
		{
			name:       "schema version mismatch",
			err:        &core.SchemaVersionMismatchError{ArtifactVersion: "v1", VectorVersion: "v2"},
			wantStatus: http.StatusConflict,
			wantCode:   "schema_version_mismatch",
		},
		{
			name:       "model inference error",
			err:        &core.ModelInferenceError{Err: assert.AnError},
			wantStatus: http.StatusInternalServerError,
			wantCode:   "model_inference_error",
		},
		{
			name:       "unknown error",
			err:        assert.AnError,
			wantStatus: http.StatusInternalServerError,
			wantCode:   "internal_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.handleClassifyError(rec, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var resp errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantCode, resp.Code)
		})
	}
}

func TestContentDigestDistinguishesContent(t *testing.T) {
	base := &core.RawEmail{
		From:    "a@example.com",
		To:      []string{"x@example.com"},
		Subject: "Hi",
		Body:    "Hello",
		Headers: map[string]string{"List-Unsubscribe": "<mailto:u@example.com>", "Message-Id": "<1@example.com>"},
	}
	same := &core.RawEmail{
		From:    "a@example.com",
		To:      []string{"x@example.com"},
		Subject: "Hi",
		Body:    "Hello",
		Headers: map[string]string{"Message-Id": "<1@example.com>", "List-Unsubscribe": "<mailto:u@example.com>"},
	}
	assert.Equal(t, contentDigest(base), contentDigest(same))

	tests := []struct {
		name   string
		mutate func(e *core.RawEmail)
	}{
		{name: "different body", mutate: func(e *core.RawEmail) { e.Body = "Hello!" }},
		{name: "different subject", mutate: func(e *core.RawEmail) { e.Subject = "Hi!" }},
		{name: "different sender", mutate: func(e *core.RawEmail) { e.From = "b@example.com" }},
		{name: "extra recipient", mutate: func(e *core.RawEmail) { e.To = append(e.To, "y@example.com") }},
		{name: "no recipients", mutate: func(e *core.RawEmail) { e.To = nil }},
		{name: "different header value", mutate: func(e *core.RawEmail) { e.Headers["List-Unsubscribe"] = "<mailto:v@example.com>" }},
		{name: "header removed", mutate: func(e *core.RawEmail) { delete(e.Headers, "List-Unsubscribe") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := &core.RawEmail{
				From:    base.From,
				To:      append([]string(nil), base.To...),
				Subject: base.Subject,
				Body:    base.Body,
				Headers: map[string]string{},
			}
			for k, v := range base.Headers {
				other.Headers[k] = v
			}
			tt.mutate(other)
			assert.NotEqual(t, contentDigest(base), contentDigest(other))
		})
	}
}

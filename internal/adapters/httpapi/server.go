// Package httpapi exposes the classification pipeline over HTTP. It owns
// everything the core delegates to the boundary: request decoding,
// prediction caching, error-to-status mapping and metrics.
package httpapi

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mikey/email-classifier/internal/core"
	"github.com/mikey/email-classifier/internal/metrics"
)

// Server serves the classification API.
type Server struct {
	service      *core.ClassificationService
	cache        core.PredictionCache
	cacheEnabled bool
	cacheTTL     time.Duration
	explainer    core.Explainer
	logger       *zap.Logger
	listenAddr   string
	httpServer   *http.Server
}

// NewServer creates an HTTP API server. explainer may be nil, in which
// case explain requests are answered without an explanation.
func NewServer(
	service *core.ClassificationService,
	cache core.PredictionCache,
	cacheEnabled bool,
	cacheTTL time.Duration,
	explainer core.Explainer,
	logger *zap.Logger,
	listenAddr string,
) *Server {
	return &Server{
		service:      service,
		cache:        cache,
		cacheEnabled: cacheEnabled,
		cacheTTL:     cacheTTL,
		explainer:    explainer,
		logger:       logger,
		listenAddr:   listenAddr,
	}
}

// Router builds the chi router. Exposed separately so tests can drive the
// handlers without binding a socket.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware())

	r.Post("/v1/classify", s.handleClassify)
	r.Get("/v1/labels", s.handleLabels)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.listenAddr,
		Handler:      s.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	s.logger.Info("HTTP API starting", zap.String("address", s.listenAddr))

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// ProcessEmail classifies a single email. Used by tests and direct calls.
func (s *Server) ProcessEmail(ctx context.Context, email *core.RawEmail) (*core.Prediction, error) {
	return s.service.Classify(ctx, email)
}

type classifyRequest struct {
	From    string            `json:"from"`
	To      []string          `json:"to"`
	Subject string            `json:"subject"`
	Body    string            `json:"body"`
	Headers map[string]string `json:"headers"`
}

type classifyResponse struct {
	Label         string  `json:"label"`
	Confidence    float64 `json:"confidence"`
	SchemaVersion string  `json:"schema_version"`
	ModelType     string  `json:"model_type"`
	ProcessingID  string  `json:"processing_id"`
	PredictedAt   string  `json:"predicted_at"`
	Cached        bool    `json:"cached"`
	Explanation   string  `json:"explanation,omitempty"`
}

type errorResponse struct {
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Missing  []string `json:"missing,omitempty"`
	Extra    []string `json:"extra,omitempty"`
	Mistyped []string `json:"mistyped,omitempty"`
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errorResponse{
			Code:    "bad_request",
			Message: "invalid request body: " + err.Error(),
		})
		return
	}

	email := &core.RawEmail{
		From:       req.From,
		To:         req.To,
		Subject:    req.Subject,
		Body:       req.Body,
		Headers:    req.Headers,
		ReceivedAt: time.Now(),
	}

	digest := contentDigest(email)
	if s.cacheEnabled {
		if pred, ok := s.cache.Get(r.Context(), digest); ok {
			s.logger.Debug("Cache hit", zap.String("digest", digest))
			metrics.RecordCacheHit()
			s.writeClassifyResponse(w, r, email, pred, true)
			return
		}
	}

	pred, err := s.service.Classify(r.Context(), email)
	if err != nil {
		s.handleClassifyError(w, err)
		return
	}

	if s.cacheEnabled {
		s.cache.Set(r.Context(), digest, pred, s.cacheTTL)
	}

	metrics.RecordPrediction(pred.Label)
	s.writeClassifyResponse(w, r, email, pred, false)
}

func (s *Server) writeClassifyResponse(w http.ResponseWriter, r *http.Request, email *core.RawEmail, pred *core.Prediction, cached bool) {
	resp := classifyResponse{
		Label:         pred.Label,
		Confidence:    pred.Confidence,
		SchemaVersion: pred.SchemaVersion,
		ModelType:     pred.ModelType,
		ProcessingID:  pred.ProcessingID,
		PredictedAt:   pred.PredictedAt.UTC().Format(time.RFC3339),
		Cached:        cached,
	}

	if r.URL.Query().Get("explain") == "true" && s.explainer != nil {
		explanation, err := s.explainer.Explain(r.Context(), email, pred)
		if err != nil {
			s.logger.Warn("Failed to generate explanation", zap.Error(err))
		} else {
			resp.Explanation = explanation
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleClassifyError maps each pipeline failure kind to a distinct error
// code and status, so callers can act on them instead of seeing a generic
// "prediction failed".
func (s *Server) handleClassifyError(w http.ResponseWriter, err error) {
	var missingErr *core.MissingRequiredFeatureError
	var mismatchErr *core.SchemaMismatchError
	var versionErr *core.SchemaVersionMismatchError
	var inferenceErr *core.ModelInferenceError

	switch {
	case errors.As(err, &missingErr):
		metrics.RecordFailure("missing_required_feature")
		writeError(w, http.StatusUnprocessableEntity, errorResponse{
			Code:    "missing_required_feature",
			Message: err.Error(),
			Missing: []string{missingErr.Feature},
		})
	case errors.As(err, &mismatchErr):
		metrics.RecordFailure("schema_mismatch")
		writeError(w, http.StatusUnprocessableEntity, errorResponse{
			Code:     "schema_mismatch",
			Message:  err.Error(),
			Missing:  mismatchErr.Missing,
			Extra:    mismatchErr.Extra,
			Mistyped: mismatchErr.Mistyped,
		})
	case errors.As(err, &versionErr):
		metrics.RecordFailure("schema_version_mismatch")
		writeError(w, http.StatusConflict, errorResponse{
			Code:    "schema_version_mismatch",
			Message: err.Error(),
		})
	case errors.As(err, &inferenceErr):
		metrics.RecordFailure("model_inference_error")
		writeError(w, http.StatusInternalServerError, errorResponse{
			Code:    "model_inference_error",
			Message: err.Error(),
		})
	default:
		metrics.RecordFailure("internal")
		s.logger.Error("Unexpected classification error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, errorResponse{
			Code:    "internal_error",
			Message: "classification failed",
		})
	}
}

func (s *Server) handleLabels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"labels": s.service.Labels()})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// contentDigest keys the prediction cache on every signal extraction can
// consume: sender, recipients, subject, body and headers. Header keys are
// sorted so the digest is stable across map iteration order.
func contentDigest(email *core.RawEmail) string {
	h := sha256.New()
	h.Write([]byte(email.From))
	h.Write([]byte{0})
	for _, to := range email.To {
		h.Write([]byte(to))
		h.Write([]byte{0})
	}
	h.Write([]byte{0})
	h.Write([]byte(email.Subject))
	h.Write([]byte{0})
	h.Write([]byte(email.Body))

	keys := make([]string, 0, len(email.Headers))
	for k := range email.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.Write([]byte{0})
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write([]byte(email.Headers[k]))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, resp errorResponse) {
	writeJSON(w, status, resp)
}

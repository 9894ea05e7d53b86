package core

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mikey/email-classifier/internal/whitelist"
)

// ClassificationService orchestrates the feature-extraction-and-inference
// pipeline: extract, validate against the pinned schema, predict. It holds
// no mutable state and performs no I/O, so a single instance serves
// concurrent callers.
type ClassificationService struct {
	extractor  FeatureExtractor
	validator  SchemaValidator
	classifier Classifier
	logger     *zap.Logger
	trusted    *whitelist.Checker
	hamLabel   string
}

// NewClassificationService creates a new classification service. trusted
// may be nil when no domains bypass the model.
func NewClassificationService(
	extractor FeatureExtractor,
	validator SchemaValidator,
	classifier Classifier,
	logger *zap.Logger,
	trusted *whitelist.Checker,
	hamLabel string,
) *ClassificationService {
	return &ClassificationService{
		extractor:  extractor,
		validator:  validator,
		classifier: classifier,
		logger:     logger,
		trusted:    trusted,
		hamLabel:   hamLabel,
	}
}

// Classify runs a raw email through the pipeline and returns its
// prediction. Failures at any stage are returned to the caller as-is;
// there are no internal retries and no fallback predictions.
func (s *ClassificationService) Classify(ctx context.Context, email *RawEmail) (*Prediction, error) {
	processingID := uuid.NewString()

	if s.trusted != nil && s.trusted.IsTrusted(email.From) {
		s.logger.Info("Skipping classification for trusted domain",
			zap.String("sender", email.From),
			zap.String("processing_id", processingID))
		return &Prediction{
			Label:         s.hamLabel,
			Confidence:    1.0,
			SchemaVersion: s.validator.Version(),
			ModelType:     "trusted-domain",
			ProcessingID:  processingID,
			PredictedAt:   time.Now(),
		}, nil
	}

	vec, err := s.extractor.Extract(email)
	if err != nil {
		s.logger.Warn("Feature extraction failed",
			zap.Error(err),
			zap.String("stage", string(StageExtracted)),
			zap.String("processing_id", processingID))
		return nil, err
	}

	if err := s.validator.Validate(vec); err != nil {
		s.logger.Error("Feature vector rejected by schema",
			zap.Error(err),
			zap.String("stage", string(StageValidated)),
			zap.String("schema_version", vec.SchemaVersion),
			zap.String("processing_id", processingID))
		return nil, err
	}

	pred, err := s.classifier.Predict(vec)
	if err != nil {
		s.logger.Error("Prediction failed",
			zap.Error(err),
			zap.String("stage", string(StagePredicted)),
			zap.String("processing_id", processingID))
		return nil, err
	}

	pred.ProcessingID = processingID
	pred.PredictedAt = time.Now()

	s.logger.Debug("Email classified",
		zap.String("label", pred.Label),
		zap.Float64("confidence", pred.Confidence),
		zap.String("schema_version", pred.SchemaVersion),
		zap.String("processing_id", processingID))

	return pred, nil
}

// Labels returns the label set of the underlying model.
func (s *ClassificationService) Labels() []string {
	return s.classifier.Labels()
}

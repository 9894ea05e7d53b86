package core

import (
	"context"
	"time"
)

// FeatureExtractor turns a raw email into the schema's ordered feature
// vector. Implementations must be deterministic and side-effect free.
type FeatureExtractor interface {
	Extract(email *RawEmail) (*FeatureVector, error)
}

// SchemaValidator checks a feature vector against the pinned schema.
type SchemaValidator interface {
	// Validate returns a SchemaMismatchError if the vector's keys, order
	// or types do not match the schema.
	Validate(vec *FeatureVector) error

	// Version returns the pinned schema version.
	Version() string
}

// Classifier produces a prediction from a validated feature vector.
// Implementations must be pure and safe for concurrent use.
type Classifier interface {
	// Predict returns the winning label with its calibrated probability.
	Predict(vec *FeatureVector) (*Prediction, error)

	// Labels returns the label set the model was trained on.
	Labels() []string
}

// PredictionCache caches predictions keyed by email content digest.
// Caching belongs to the transport layer; the core pipeline never uses it.
type PredictionCache interface {
	// Get retrieves a cached prediction for a content digest.
	Get(ctx context.Context, digest string) (*Prediction, bool)

	// Set stores a prediction with the given TTL.
	Set(ctx context.Context, digest string, pred *Prediction, ttl time.Duration)

	// Delete removes a cached prediction.
	Delete(ctx context.Context, digest string) error

	// Cleanup removes expired entries.
	Cleanup(ctx context.Context) error
}

// Explainer produces a human-readable account of why an email was
// classified the way it was.
type Explainer interface {
	Explain(ctx context.Context, email *RawEmail, pred *Prediction) (string, error)
}

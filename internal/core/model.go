package core

import (
	"strings"
	"time"
)

// RawEmail represents an email message as handed to the pipeline by a
// transport adapter. It is treated as immutable once constructed.
type RawEmail struct {
	From       string
	To         []string
	Subject    string
	Body       string
	Headers    map[string]string
	ReceivedAt time.Time
}

// Header returns the value of the named header, matching case-insensitively.
func (e *RawEmail) Header(name string) (string, bool) {
	for k, v := range e.Headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// FeatureVector is the ordered feature representation of one email.
// Names and Values are index-aligned and follow the schema order exactly;
// boolean and categorical features are encoded as 0/1 values.
type FeatureVector struct {
	SchemaVersion string
	Names         []string
	Values        []float64
}

// Prediction represents the classification result for a single email.
type Prediction struct {
	Label         string
	Confidence    float64
	SchemaVersion string
	ModelType     string
	ProcessingID  string
	PredictedAt   time.Time
}

// Stage identifies how far through the pipeline a request got before
// it succeeded or failed.
type Stage string

const (
	StageReceived  Stage = "received"
	StageExtracted Stage = "extracted"
	StageValidated Stage = "validated"
	StagePredicted Stage = "predicted"
)

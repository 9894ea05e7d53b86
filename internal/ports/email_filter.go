package ports

import (
	"context"

	"github.com/mikey/email-classifier/internal/core"
)

// EmailFilter defines the interface serving adapters expose to the
// application: the HTTP API and the postfix content filter both satisfy it.
type EmailFilter interface {
	// ProcessEmail classifies a single email
	ProcessEmail(ctx context.Context, email *core.RawEmail) (*core.Prediction, error)

	// Start starts the serving adapter
	Start() error

	// Stop stops the serving adapter
	Stop() error
}

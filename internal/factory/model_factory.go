package factory

import (
	"fmt"

	"github.com/mikey/email-classifier/internal/config"
	"github.com/mikey/email-classifier/internal/model"
	"github.com/mikey/email-classifier/internal/schema"
	"go.uber.org/zap"
)

// ModelFactory loads the model artifact and builds the schema registry
// pinned to it.
type ModelFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewModelFactory creates a new model factory
func NewModelFactory(cfg *config.Config, logger *zap.Logger) *ModelFactory {
	return &ModelFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// LoadArtifact loads the configured model artifact. A load failure here
// is fatal to startup; the service never runs without a valid model.
func (f *ModelFactory) LoadArtifact() (*model.Artifact, error) {
	modelCfg := f.cfg.GetModel()

	artifact, err := model.Load(modelCfg.ArtifactPath)
	if err != nil {
		return nil, err
	}

	// The ham/spam labels used by the whitelist bypass and the postfix
	// filter must exist in the artifact's label set.
	for _, label := range []string{modelCfg.HamLabel, modelCfg.SpamLabel} {
		if label != "" && !artifact.HasLabel(label) {
			return nil, fmt.Errorf("configured label %q is not in the artifact's label set", label)
		}
	}

	f.logger.Info("Model artifact loaded",
		zap.String("path", modelCfg.ArtifactPath),
		zap.String("model_type", artifact.ModelType()),
		zap.String("schema_version", artifact.SchemaVersion()),
		zap.Strings("labels", artifact.Labels()))

	return artifact, nil
}

// CreateRegistry builds the schema registry pinned to the artifact's
// training-time schema.
func (f *ModelFactory) CreateRegistry(artifact *model.Artifact) (*schema.Registry, error) {
	return schema.NewRegistry(artifact.Schema())
}

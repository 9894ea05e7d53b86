package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/email-classifier/internal/config"
	"github.com/mikey/email-classifier/internal/core"
	"github.com/mikey/email-classifier/internal/factory"
	"github.com/mikey/email-classifier/internal/features"
	"github.com/mikey/email-classifier/internal/logging"
	"github.com/mikey/email-classifier/internal/model"
	"github.com/mikey/email-classifier/internal/ports"
	"github.com/mikey/email-classifier/internal/schema"
	"github.com/mikey/email-classifier/internal/whitelist"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewModelFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewCacheFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewExplainerFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewFilterFactory); err != nil {
		return nil, err
	}

	// Register model artifact; a load failure aborts startup
	if err := container.Provide(func(f *factory.ModelFactory) (*model.Artifact, error) {
		return f.LoadArtifact()
	}); err != nil {
		return nil, err
	}

	// Register schema registry pinned to the artifact
	if err := container.Provide(func(f *factory.ModelFactory, artifact *model.Artifact) (*schema.Registry, error) {
		return f.CreateRegistry(artifact)
	}); err != nil {
		return nil, err
	}

	// Register feature extractor
	if err := container.Provide(func(registry *schema.Registry, logger *zap.Logger) (*features.Extractor, error) {
		return features.NewExtractor(registry, logger)
	}); err != nil {
		return nil, err
	}

	// Register classification service
	if err := container.Provide(func(
		extractor *features.Extractor,
		registry *schema.Registry,
		artifact *model.Artifact,
		cfg *config.Config,
		logger *zap.Logger,
	) *core.ClassificationService {
		modelCfg := cfg.GetModel()
		return core.NewClassificationService(
			extractor,
			registry,
			artifact,
			logger,
			whitelist.NewChecker(modelCfg.TrustedDomains, logger),
			modelCfg.HamLabel,
		)
	}); err != nil {
		return nil, err
	}

	// Register prediction cache
	if err := container.Provide(func(f *factory.CacheFactory) (core.PredictionCache, error) {
		return f.CreatePredictionCache()
	}); err != nil {
		return nil, err
	}

	// Register explainer (nil when disabled)
	if err := container.Provide(func(f *factory.ExplainerFactory) (core.Explainer, error) {
		return f.CreateExplainer()
	}); err != nil {
		return nil, err
	}

	// Register serving adapter
	if err := container.Provide(func(f *factory.FilterFactory) (ports.EmailFilter, error) {
		return f.CreateEmailFilter()
	}); err != nil {
		return nil, err
	}

	return container, nil
}

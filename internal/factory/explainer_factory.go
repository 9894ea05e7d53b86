package factory

import (
	"fmt"

	"github.com/mikey/email-classifier/internal/adapters/openai"
	"github.com/mikey/email-classifier/internal/config"
	"github.com/mikey/email-classifier/internal/core"
	"go.uber.org/zap"
)

// ExplainerFactory creates explanation clients based on configuration
type ExplainerFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewExplainerFactory creates a new explainer factory
func NewExplainerFactory(cfg *config.Config, logger *zap.Logger) *ExplainerFactory {
	return &ExplainerFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateExplainer creates an explainer, or nil when explanations are
// disabled.
func (f *ExplainerFactory) CreateExplainer() (core.Explainer, error) {
	explainCfg := f.cfg.GetExplain()
	if !explainCfg.Enabled {
		return nil, nil
	}
	if explainCfg.APIKey == "" {
		return nil, fmt.Errorf("explain.api_key is required when explanations are enabled")
	}

	return openai.NewExplainer(
		explainCfg.APIKey,
		explainCfg.ModelName,
		explainCfg.MaxTokens,
		explainCfg.Temperature,
		explainCfg.MaxBodySize,
		f.logger,
	), nil
}

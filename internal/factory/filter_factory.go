package factory

import (
	"fmt"
	"time"

	"github.com/mikey/email-classifier/internal/adapters/filter"
	"github.com/mikey/email-classifier/internal/adapters/httpapi"
	"github.com/mikey/email-classifier/internal/config"
	"github.com/mikey/email-classifier/internal/core"
	"github.com/mikey/email-classifier/internal/ports"
	"go.uber.org/zap"
)

// FilterFactory creates serving adapters based on configuration
type FilterFactory struct {
	cfg       *config.Config
	logger    *zap.Logger
	service   *core.ClassificationService
	cache     core.PredictionCache
	explainer core.Explainer
}

// NewFilterFactory creates a new filter factory
func NewFilterFactory(
	cfg *config.Config,
	logger *zap.Logger,
	service *core.ClassificationService,
	cache core.PredictionCache,
	explainer core.Explainer,
) *FilterFactory {
	return &FilterFactory{
		cfg:       cfg,
		logger:    logger,
		service:   service,
		cache:     cache,
		explainer: explainer,
	}
}

// CreateEmailFilter creates a serving adapter based on the configuration
func (f *FilterFactory) CreateEmailFilter() (ports.EmailFilter, error) {
	serverCfg := f.cfg.GetServer()

	switch serverCfg.Mode {
	case "http":
		cacheTTL, err := f.cfg.GetDuration("cache.ttl")
		if err != nil {
			cacheTTL = 24 * time.Hour
		}
		return httpapi.NewServer(
			f.service,
			f.cache,
			f.cfg.GetBool("cache.enabled"),
			cacheTTL,
			f.explainer,
			f.logger,
			serverCfg.ListenAddress,
		), nil
	case "postfix":
		return filter.NewPostfixFilter(
			f.service,
			f.logger,
			serverCfg.ListenAddress,
			f.cfg.GetString("model.spam_label"),
			serverCfg.BlockSpam,
			serverCfg.ClassHeader,
			serverCfg.ConfidenceHeader,
			serverCfg.SchemaHeader,
			serverCfg.PostfixAddress,
			serverCfg.PostfixPort,
			serverCfg.PostfixEnabled,
			serverCfg.SubjectPrefix,
			serverCfg.ModifySubject,
		), nil
	default:
		return nil, fmt.Errorf("unsupported server mode: %s", serverCfg.Mode)
	}
}

package factory

import (
	"fmt"

	"github.com/mikey/inbox-classifier/internal/config"
	"github.com/mikey/inbox-classifier/internal/core"
	"github.com/mikey/inbox-classifier/internal/utils"
	"github.com/mikey/inbox-classifier/internal/whitelist"
	"go.uber.org/zap"
)

// ServiceFactory assembles the classification service from configuration
type ServiceFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewServiceFactory creates a new service factory
func NewServiceFactory(cfg *config.Config, logger *zap.Logger) *ServiceFactory {
	return &ServiceFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateTextProcessor creates a new TextProcessor
func (f *ServiceFactory) CreateTextProcessor() *utils.TextProcessor {
	return utils.NewTextProcessor(f.logger)
}

// CreateClassifier builds the classifier from the configured rules and
// decision policy
func (f *ServiceFactory) CreateClassifier() (*core.Classifier, error) {
	rules, err := f.cfg.GetRules()
	if err != nil {
		return nil, fmt.Errorf("invalid classifier rules: %w", err)
	}
	classifier, err := core.NewClassifier(rules, f.cfg.GetClassifier())
	if err != nil {
		return nil, fmt.Errorf("failed to build classifier: %w", err)
	}
	return classifier, nil
}

// CreateService builds the classification service. summarizer and cache
// may be nil.
func (f *ServiceFactory) CreateService(summarizer core.Summarizer, cache core.CacheRepository) (*core.ClassificationService, error) {
	classifier, err := f.CreateClassifier()
	if err != nil {
		return nil, err
	}

	spamCfg := f.cfg.GetSpam()
	if len(spamCfg.WhitelistedDomains) > 0 {
		f.logger.Info("Loaded whitelisted domains", zap.Strings("domains", spamCfg.WhitelistedDomains))
	}

	cacheCfg, err := f.cfg.GetCache()
	if err != nil {
		return nil, fmt.Errorf("invalid cache configuration: %w", err)
	}

	return core.NewClassificationService(
		classifier,
		core.NewSpamScorer(spamCfg.Policy),
		whitelist.NewChecker(spamCfg.WhitelistedDomains, f.logger),
		summarizer,
		cache,
		f.logger,
		core.ServiceOptions{
			CacheEnabled:   cacheCfg.Enabled,
			CacheTTL:       cacheCfg.TTL,
			IncludeSummary: f.cfg.GetSummary().Enabled,
		},
	), nil
}

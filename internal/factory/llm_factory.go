package factory

import (
	"context"
	"fmt"

	"github.com/mikey/inbox-classifier/internal/adapters/breaker"
	"github.com/mikey/inbox-classifier/internal/config"
	"github.com/mikey/inbox-classifier/internal/core"
	"github.com/mikey/inbox-classifier/internal/utils"
	"go.uber.org/zap"
)

// ProviderNone disables model summaries
const ProviderNone = "none"

// LLMFactory creates the summary provider
type LLMFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewLLMFactory creates a new LLM factory
func NewLLMFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *LLMFactory {
	return &LLMFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateSummarizer creates the configured summarizer, wrapped in a circuit
// breaker when enabled. It returns nil for the "none" provider.
func (f *LLMFactory) CreateSummarizer(ctx context.Context) (core.Summarizer, error) {
	provider := f.cfg.GetLLM().Provider

	var (
		summarizer core.Summarizer
		err        error
	)
	switch provider {
	case "", ProviderNone:
		f.logger.Info("No summary provider configured, using heuristic summaries")
		return nil, nil
	case "bedrock":
		summarizer, err = NewBedrockFactory(f.cfg, f.logger, f.textProcessor).CreateSummarizer(ctx)
	case "gemini":
		summarizer, err = NewGeminiFactory(f.cfg, f.logger, f.textProcessor).CreateSummarizer(ctx)
	case "openai":
		summarizer, err = NewOpenAIFactory(f.cfg, f.logger, f.textProcessor).CreateSummarizer()
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
	if err != nil {
		return nil, err
	}

	breakerCfg, err := f.cfg.GetBreaker()
	if err != nil {
		return nil, fmt.Errorf("invalid breaker configuration: %w", err)
	}
	if breakerCfg.Enabled {
		summarizer = breaker.NewSummarizer(summarizer, breakerCfg.MaxFailures, breakerCfg.OpenTimeout, f.logger)
	}

	f.logger.Info("Summary provider ready",
		zap.String("provider", provider),
		zap.Bool("breaker", breakerCfg.Enabled))
	return summarizer, nil
}

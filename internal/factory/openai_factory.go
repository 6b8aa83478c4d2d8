package factory

import (
	"fmt"

	"github.com/mikey/inbox-classifier/internal/adapters/openai"
	"github.com/mikey/inbox-classifier/internal/config"
	"github.com/mikey/inbox-classifier/internal/utils"
	"go.uber.org/zap"
)

// OpenAIFactory creates OpenAI summarizers
type OpenAIFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewOpenAIFactory creates a new OpenAI factory
func NewOpenAIFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *OpenAIFactory {
	return &OpenAIFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateSummarizer creates an OpenAI summarizer. A base URL selects any
// OpenAI-compatible endpoint, in which case the API key may be empty.
func (f *OpenAIFactory) CreateSummarizer() (*openai.Summarizer, error) {
	openaiCfg := f.cfg.GetOpenAI()
	if openaiCfg.APIKey == "" && openaiCfg.BaseURL == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	return openai.NewSummarizer(
		openai.NewClient(openaiCfg.APIKey, openaiCfg.BaseURL),
		openaiCfg.ModelName,
		openaiCfg.MaxTokens,
		openaiCfg.Temperature,
		openaiCfg.TopP,
		openaiCfg.MaxBodySize,
		f.logger,
		f.textProcessor,
	), nil
}

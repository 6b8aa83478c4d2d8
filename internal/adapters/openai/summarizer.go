package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/mikey/inbox-classifier/internal/core"
	"github.com/mikey/inbox-classifier/internal/utils"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Summarizer is an implementation of core.Summarizer using OpenAI chat completions
type Summarizer struct {
	client        *openai.Client
	modelName     string
	maxTokens     int
	temperature   float32
	topP          float32
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewClient builds an OpenAI client. A non-empty baseURL points it at an
// OpenAI-compatible endpoint.
func NewClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

// NewSummarizer creates a new OpenAI summarizer
func NewSummarizer(
	client *openai.Client,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *Summarizer {
	return &Summarizer{
		client:        client,
		modelName:     modelName,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// Summarize asks the chat model for a JSON summary
func (s *Summarizer) Summarize(ctx context.Context, email *core.EmailRecord) (*core.Summary, error) {
	req := openai.ChatCompletionRequest{
		Model: s.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: utils.SummarySystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: s.textProcessor.BuildSummaryPrompt(email, s.maxBodySize),
			},
		},
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
		TopP:        s.topP,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion with OpenAI: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("empty response from OpenAI")
	}

	s.logger.Debug("OpenAI summary received",
		zap.String("model", s.modelName),
		zap.String("response_id", resp.ID),
		zap.Int("total_tokens", resp.Usage.TotalTokens))

	return utils.ParseSummaryResponse(resp.Choices[0].Message.Content, s.modelName)
}

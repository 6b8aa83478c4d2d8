package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/mikey/inbox-classifier/internal/core"
	"github.com/mikey/inbox-classifier/internal/utils"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// ContentGenerator is the part of a genai model the summarizer uses
type ContentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Summarizer is an implementation of core.Summarizer using Google Gemini
type Summarizer struct {
	client        *genai.Client
	model         ContentGenerator
	modelName     string
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewSummarizer creates a Gemini summarizer backed by the public API
func NewSummarizer(
	ctx context.Context,
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
	opts ...option.ClientOption,
) (*Summarizer, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)
	model.SetTopP(topP)
	model.SetMaxOutputTokens(int32(maxTokens))
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(utils.SummarySystemPrompt)}}

	s := NewSummarizerWithModel(model, modelName, maxBodySize, logger, textProcessor)
	s.client = client
	return s, nil
}

// NewSummarizerWithModel wraps an already configured model
func NewSummarizerWithModel(model ContentGenerator, modelName string, maxBodySize int, logger *zap.Logger, textProcessor *utils.TextProcessor) *Summarizer {
	return &Summarizer{
		model:         model,
		modelName:     modelName,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// Close closes the Gemini client
func (s *Summarizer) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Summarize asks Gemini for a JSON summary
func (s *Summarizer) Summarize(ctx context.Context, email *core.EmailRecord) (*core.Summary, error) {
	prompt := s.textProcessor.BuildSummaryPrompt(email, s.maxBodySize)

	resp, err := s.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content with Gemini: %w", err)
	}

	text := responseText(resp)
	if text == "" {
		return nil, errors.New("empty response from Gemini")
	}

	s.logger.Debug("Gemini summary received",
		zap.String("model", s.modelName),
		zap.Int("response_size", len(text)))

	return utils.ParseSummaryResponse(text, s.modelName)
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String()
}

package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/mikey/inbox-classifier/internal/core"
	"github.com/mikey/inbox-classifier/internal/utils"
	"go.uber.org/zap"
)

const anthropicVersion = "bedrock-2023-05-31"

// InvokeModelAPI is the part of the Bedrock runtime client the summarizer uses
type InvokeModelAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Summarizer is an implementation of core.Summarizer using Amazon Bedrock
type Summarizer struct {
	client        InvokeModelAPI
	modelID       string
	maxTokens     int
	temperature   float32
	topP          float32
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewSummarizer creates a new Bedrock summarizer
func NewSummarizer(
	client InvokeModelAPI,
	modelID string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *Summarizer {
	return &Summarizer{
		client:        client,
		modelID:       modelID,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// Summarize asks the configured Bedrock model for a summary
func (s *Summarizer) Summarize(ctx context.Context, email *core.EmailRecord) (*core.Summary, error) {
	prompt := s.textProcessor.BuildSummaryPrompt(email, s.maxBodySize)

	payload, err := s.requestBody(prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	resp, err := s.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(s.modelID),
		Body:        payload,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to invoke Bedrock model: %w", err)
	}

	text, err := s.responseText(resp.Body)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Bedrock summary received",
		zap.String("model", s.modelID),
		zap.Int("response_size", len(text)))

	return utils.ParseSummaryResponse(text, s.modelID)
}

// family picks the request schema for the model id
func (s *Summarizer) family() string {
	id := strings.ToLower(s.modelID)
	switch {
	case strings.Contains(id, "anthropic.claude-v2"), strings.Contains(id, "anthropic.claude-instant"):
		return "claude-text"
	case strings.Contains(id, "anthropic."):
		return "claude-messages"
	case strings.Contains(id, "amazon.titan"):
		return "titan"
	default:
		return "generic"
	}
}

func (s *Summarizer) requestBody(prompt string) ([]byte, error) {
	switch s.family() {
	case "claude-text":
		return json.Marshal(map[string]interface{}{
			"prompt":               "\n\nHuman: " + prompt + "\n\nAssistant:",
			"max_tokens_to_sample": s.maxTokens,
			"temperature":          s.temperature,
			"top_p":                s.topP,
		})
	case "claude-messages":
		return json.Marshal(map[string]interface{}{
			"anthropic_version": anthropicVersion,
			"max_tokens":        s.maxTokens,
			"temperature":       s.temperature,
			"top_p":             s.topP,
			"system":            utils.SummarySystemPrompt,
			"messages": []map[string]interface{}{
				{"role": "user", "content": prompt},
			},
		})
	case "titan":
		return json.Marshal(map[string]interface{}{
			"inputText": prompt,
			"textGenerationConfig": map[string]interface{}{
				"maxTokenCount": s.maxTokens,
				"temperature":   s.temperature,
				"topP":          s.topP,
			},
		})
	default:
		return json.Marshal(map[string]interface{}{
			"prompt":      prompt,
			"max_tokens":  s.maxTokens,
			"temperature": s.temperature,
			"top_p":       s.topP,
		})
	}
}

func (s *Summarizer) responseText(body []byte) (string, error) {
	switch s.family() {
	case "claude-text":
		var resp struct {
			Completion string `json:"completion"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Claude response: %w", err)
		}
		return resp.Completion, nil
	case "claude-messages":
		var resp struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Claude response: %w", err)
		}
		var b strings.Builder
		for _, part := range resp.Content {
			if part.Type == "text" {
				b.WriteString(part.Text)
			}
		}
		if b.Len() == 0 {
			return "", errors.New("empty response from Claude model")
		}
		return b.String(), nil
	case "titan":
		var resp struct {
			Results []struct {
				OutputText string `json:"outputText"`
			} `json:"results"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Titan response: %w", err)
		}
		if len(resp.Results) == 0 {
			return "", errors.New("empty response from Titan model")
		}
		return resp.Results[0].OutputText, nil
	default:
		var resp struct {
			Output   string `json:"output"`
			Text     string `json:"text"`
			Response string `json:"response"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("failed to unmarshal generic response: %w", err)
		}
		switch {
		case resp.Output != "":
			return resp.Output, nil
		case resp.Text != "":
			return resp.Text, nil
		case resp.Response != "":
			return resp.Response, nil
		default:
			return string(body), nil
		}
	}
}

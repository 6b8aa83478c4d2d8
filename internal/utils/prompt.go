package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mikey/inbox-classifier/internal/core"
)

// ErrNoJSON is returned when a model reply carries no JSON object
var ErrNoJSON = errors.New("no JSON object in model response")

// SummarySystemPrompt is sent as the system message where the provider supports one
const SummarySystemPrompt = "You summarize emails for a busy reader. Respond only with JSON."

const summaryPromptFormat = `Summarize the following email in one or two sentences and list any requests made of the reader.
Respond with a JSON object containing:
- summary: string (the summary)
- action_items: array of strings (things the reader is asked to do, may be empty)

Email:
From: %s
To: %s
Subject: %s
Body:
%s

Respond only with the JSON object and nothing else.`

type summaryResponse struct {
	Summary     string   `json:"summary"`
	ActionItems []string `json:"action_items"`
}

// BuildSummaryPrompt renders the summary prompt. The body is sanitized and
// cut to maxBodySize bytes; the snippet stands in for an empty body.
func (tp *TextProcessor) BuildSummaryPrompt(email *core.EmailRecord, maxBodySize int) string {
	to := ""
	if len(email.To) > 0 {
		to = email.To[0]
		if len(email.To) > 1 {
			to += fmt.Sprintf(" and %d others", len(email.To)-1)
		}
	}

	body := email.Body
	if strings.TrimSpace(body) == "" {
		body = email.Snippet
	}

	return fmt.Sprintf(summaryPromptFormat, email.From, to, email.Subject, tp.ProcessText(body, maxBodySize))
}

// ParseSummaryResponse decodes a model reply into a Summary. Replies that
// wrap the JSON in prose or code fences are tolerated.
func ParseSummaryResponse(text, model string) (*core.Summary, error) {
	var resp summaryResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		start := strings.IndexByte(text, '{')
		end := strings.LastIndexByte(text, '}')
		if start < 0 || end <= start {
			return nil, ErrNoJSON
		}
		if err := json.Unmarshal([]byte(text[start:end+1]), &resp); err != nil {
			return nil, fmt.Errorf("failed to parse model response as JSON: %w", err)
		}
	}

	if strings.TrimSpace(resp.Summary) == "" {
		return nil, errors.New("model response has an empty summary")
	}

	return &core.Summary{
		Text:        strings.TrimSpace(resp.Summary),
		ActionItems: resp.ActionItems,
		ModelUsed:   model,
		GeneratedAt: time.Now(),
	}, nil
}

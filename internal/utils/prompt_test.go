package utils

import (
	"strings"
	"testing"

	"github.com/mikey/inbox-classifier/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSummaryPrompt(t *testing.T) {
	tp := NewTextProcessor(nil)

	prompt := tp.BuildSummaryPrompt(&core.EmailRecord{
		From:    "alice@gmail.com",
		To:      []string{"bob@example.com", "carol@example.com", "dan@example.com"},
		Subject: "Quarterly report",
		Body:    strings.Repeat("x", 50),
	}, 10)

	assert.Contains(t, prompt, "From: alice@gmail.com")
	assert.Contains(t, prompt, "To: bob@example.com and 2 others")
	assert.Contains(t, prompt, "Subject: Quarterly report")
	assert.Contains(t, prompt, strings.Repeat("x", 10)+truncationMarker)
	assert.NotContains(t, prompt, strings.Repeat("x", 11))

	prompt = tp.BuildSummaryPrompt(&core.EmailRecord{Snippet: "snippet text"}, 0)
	assert.Contains(t, prompt, "snippet text")
}

func TestParseSummaryResponse(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    string
		items   []string
		wantErr bool
	}{
		{
			name:  "plain json",
			text:  `{"summary": "Report is ready.", "action_items": ["Review it"]}`,
			want:  "Report is ready.",
			items: []string{"Review it"},
		},
		{
			name: "fenced json",
			text: "Here you go:\n```json\n{\"summary\": \" Lunch moved. \", \"action_items\": []}\n```",
			want: "Lunch moved.",
		},
		{name: "no json", text: "I cannot help with that.", wantErr: true},
		{name: "broken json", text: `{"summary": }`, wantErr: true},
		{name: "empty summary", text: `{"summary": ""}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSummaryResponse(tt.text, "test-model")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Text)
			if tt.items != nil {
				assert.Equal(t, tt.items, got.ActionItems)
			}
			assert.Equal(t, "test-model", got.ModelUsed)
		})
	}

	_, err := ParseSummaryResponse("nothing", "m")
	assert.ErrorIs(t, err, ErrNoJSON)
}

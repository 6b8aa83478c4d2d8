package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mikey/inbox-classifier/internal/core"
	"github.com/mikey/inbox-classifier/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestServer(t *testing.T, status int, content string, seen *map[string]interface{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if seen != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"requests"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "gpt-4o-mini",
			"choices": []map[string]interface{}{
				{"index": 0, "message": map[string]string{"role": "assistant", "content": content}, "finish_reason": "stop"},
			},
			"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestSummarizer(t *testing.T, srv *httptest.Server) *Summarizer {
	logger := zaptest.NewLogger(t)
	return NewSummarizer(NewClient("test-key", srv.URL+"/v1"), "gpt-4o-mini", 200, 0.2, 0.9, 2048,
		logger, utils.NewTextProcessor(logger))
}

func TestSummarize(t *testing.T) {
	var seen map[string]interface{}
	srv := newTestServer(t, http.StatusOK, `{"summary":"Bob wants the slides.","action_items":["Send slides"]}`, &seen)
	s := newTestSummarizer(t, srv)

	summary, err := s.Summarize(context.Background(), &core.EmailRecord{
		From:    "bob@example.com",
		Subject: "Slides",
		Body:    "Can you send the slides?",
	})
	require.NoError(t, err)
	assert.Equal(t, "Bob wants the slides.", summary.Text)
	assert.Equal(t, []string{"Send slides"}, summary.ActionItems)
	assert.Equal(t, "gpt-4o-mini", summary.ModelUsed)

	assert.Equal(t, "gpt-4o-mini", seen["model"])
	format, ok := seen["response_format"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "json_object", format["type"])
}

func TestSummarizeAPIError(t *testing.T) {
	srv := newTestServer(t, http.StatusTooManyRequests, "", nil)
	s := newTestSummarizer(t, srv)

	_, err := s.Summarize(context.Background(), &core.EmailRecord{Subject: "x"})
	assert.Error(t, err)
}

func TestSummarizeUnparseableReply(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, "I would rather not.", nil)
	s := newTestSummarizer(t, srv)

	_, err := s.Summarize(context.Background(), &core.EmailRecord{Subject: "x"})
	assert.ErrorIs(t, err, utils.ErrNoJSON)
}

package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/mikey/inbox-classifier/internal/core"
	"github.com/mikey/inbox-classifier/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeRuntime struct {
	input *bedrockruntime.InvokeModelInput
	body  string
	err   error
}

func (f *fakeRuntime) InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: []byte(f.body)}, nil
}

func newTestSummarizer(t *testing.T, runtime *fakeRuntime, modelID string) *Summarizer {
	logger := zaptest.NewLogger(t)
	return NewSummarizer(runtime, modelID, 256, 0.2, 0.9, 1024, logger, utils.NewTextProcessor(logger))
}

var testEmail = &core.EmailRecord{
	From:    "alice@gmail.com",
	Subject: "Quarterly report",
	Body:    "Please review the attached report by Friday.",
}

func TestSummarizeClaudeMessages(t *testing.T) {
	runtime := &fakeRuntime{body: `{"content":[{"type":"text","text":"{\"summary\":\"Alice shared the report.\",\"action_items\":[\"Review by Friday\"]}"}]}`}
	s := newTestSummarizer(t, runtime, "anthropic.claude-3-haiku-20240307-v1:0")

	summary, err := s.Summarize(context.Background(), testEmail)
	require.NoError(t, err)
	assert.Equal(t, "Alice shared the report.", summary.Text)
	assert.Equal(t, []string{"Review by Friday"}, summary.ActionItems)
	assert.Equal(t, "anthropic.claude-3-haiku-20240307-v1:0", summary.ModelUsed)

	var sent map[string]interface{}
	require.NoError(t, json.Unmarshal(runtime.input.Body, &sent))
	assert.Equal(t, anthropicVersion, sent["anthropic_version"])
	assert.Equal(t, "anthropic.claude-3-haiku-20240307-v1:0", aws.ToString(runtime.input.ModelId))
}

func TestSummarizeTitan(t *testing.T) {
	runtime := &fakeRuntime{body: `{"results":[{"outputText":"Sure: {\"summary\":\"Report attached.\"}"}]}`}
	s := newTestSummarizer(t, runtime, "amazon.titan-text-express-v1")

	summary, err := s.Summarize(context.Background(), testEmail)
	require.NoError(t, err)
	assert.Equal(t, "Report attached.", summary.Text)

	var sent map[string]interface{}
	require.NoError(t, json.Unmarshal(runtime.input.Body, &sent))
	assert.Contains(t, sent["inputText"], "Subject: Quarterly report")
}

func TestSummarizeLegacyClaude(t *testing.T) {
	runtime := &fakeRuntime{body: `{"completion":" {\"summary\":\"Report.\"}"}`}
	s := newTestSummarizer(t, runtime, "anthropic.claude-v2")

	summary, err := s.Summarize(context.Background(), testEmail)
	require.NoError(t, err)
	assert.Equal(t, "Report.", summary.Text)

	var sent map[string]interface{}
	require.NoError(t, json.Unmarshal(runtime.input.Body, &sent))
	assert.Contains(t, sent["prompt"], "\n\nHuman: ")
}

func TestSummarizeErrors(t *testing.T) {
	s := newTestSummarizer(t, &fakeRuntime{err: errors.New("throttled")}, "anthropic.claude-3-haiku")
	_, err := s.Summarize(context.Background(), testEmail)
	assert.ErrorContains(t, err, "throttled")

	s = newTestSummarizer(t, &fakeRuntime{body: `{"results":[]}`}, "amazon.titan-text-lite-v1")
	_, err = s.Summarize(context.Background(), testEmail)
	assert.Error(t, err)

	s = newTestSummarizer(t, &fakeRuntime{body: `{"content":[]}`}, "anthropic.claude-3-sonnet")
	_, err = s.Summarize(context.Background(), testEmail)
	assert.Error(t, err)
}

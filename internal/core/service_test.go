package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeSummarizer struct {
	calls int
	err   error
}

func (f *fakeSummarizer) Summarize(ctx context.Context, email *EmailRecord) (*Summary, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &Summary{
		Text:        "model summary of " + email.Subject,
		ActionItems: []string{"reply"},
		ModelUsed:   "fake-model",
		GeneratedAt: time.Now(),
	}, nil
}

type mapCache struct {
	mu      sync.Mutex
	entries map[string]*CacheEntry
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string]*CacheEntry)}
}

func (m *mapCache) Get(ctx context.Context, key string) (*CacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return entry, nil
}

func (m *mapCache) Set(ctx context.Context, entry *CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.Key] = entry
	return nil
}

func (m *mapCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *mapCache) Cleanup(ctx context.Context) error { return nil }

type domainWhitelist string

func (d domainWhitelist) IsWhitelisted(from string) bool {
	return SenderDomain(from) == string(d)
}

func newTestService(t *testing.T, summarizer Summarizer, cache CacheRepository, whitelist WhitelistChecker, opts ServiceOptions) *ClassificationService {
	t.Helper()
	classifier, err := NewClassifier(DefaultRules(), DefaultDecisionPolicy())
	require.NoError(t, err)
	return NewClassificationService(classifier, NewSpamScorer(DefaultSpamPolicy()),
		whitelist, summarizer, cache, zaptest.NewLogger(t), opts)
}

func TestAnalyzeCategorizesAndScores(t *testing.T) {
	svc := newTestService(t, nil, nil, nil, ServiceOptions{})

	result, err := svc.Analyze(context.Background(), &EmailRecord{
		From:    "claims@lucky.xyz",
		Subject: "You are a lottery winner",
		Snippet: "claim at bit.ly/win",
	})
	require.NoError(t, err)

	assert.True(t, result.Category.IsValid())
	assert.Len(t, result.Scores, len(AllCategories))
	assert.Equal(t, 5, result.SpamScore)
	assert.True(t, result.IsSpam, "suspicious sender and link shortener")
	assert.False(t, result.Whitelisted)
	assert.NotEmpty(t, result.ProcessingID)
	assert.NotNil(t, result.Insights)
	assert.Nil(t, result.Summary)
}

func TestAnalyzeHonoursNativeLabel(t *testing.T) {
	svc := newTestService(t, nil, nil, nil, ServiceOptions{})

	result, err := svc.Analyze(context.Background(), &EmailRecord{
		From:         "alice@gmail.com",
		Subject:      "Quarterly report",
		NativeLabels: []string{"CATEGORY_UPDATES"},
	})
	require.NoError(t, err)
	assert.Equal(t, CategoryUpdates, result.Category)
	assert.True(t, result.NativeLabel)
}

func TestAnalyzeWhitelistedSenderIsNeverSpam(t *testing.T) {
	svc := newTestService(t, nil, nil, domainWhitelist("cheap.tk"), ServiceOptions{})

	email := &EmailRecord{
		From: "promo@cheap.tk",
		Body: "click https://tinyurl.com/xyz now",
	}
	result, err := svc.Analyze(context.Background(), email)
	require.NoError(t, err)
	assert.True(t, result.Whitelisted)
	assert.False(t, result.IsSpam)
}

func TestAnalyzeCanceledContext(t *testing.T) {
	svc := newTestService(t, nil, nil, nil, ServiceOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Analyze(ctx, &EmailRecord{Subject: "hi"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnalyzeNilEmail(t *testing.T) {
	svc := newTestService(t, nil, nil, nil, ServiceOptions{})

	result, err := svc.Analyze(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, CategoryPrimary, result.Category)
	assert.False(t, result.IsSpam)
}

func TestSummarizeUsesCache(t *testing.T) {
	summarizer := &fakeSummarizer{}
	cache := newMapCache()
	svc := newTestService(t, summarizer, cache, nil, ServiceOptions{
		CacheEnabled:   true,
		CacheTTL:       time.Hour,
		IncludeSummary: true,
	})

	email := &EmailRecord{ID: "msg-1", Subject: "Budget"}

	first, err := svc.Analyze(context.Background(), email)
	require.NoError(t, err)
	require.NotNil(t, first.Summary)
	assert.Equal(t, "fake-model", first.Summary.ModelUsed)
	assert.Equal(t, "model summary of Budget", first.Summary.Text)

	entry, err := cache.Get(context.Background(), "id:msg-1")
	require.NoError(t, err)
	assert.WithinDuration(t, entry.CreatedAt.Add(time.Hour), entry.ExpiresAt, time.Second)

	second, err := svc.Summarize(context.Background(), email)
	require.NoError(t, err)
	assert.Equal(t, "cache", second.ModelUsed)
	assert.Equal(t, "model summary of Budget", second.Text)
	assert.Equal(t, []string{"reply"}, second.ActionItems)
	assert.Equal(t, 1, summarizer.calls)
}

func TestSummarizeFallsBackOnError(t *testing.T) {
	summarizer := &fakeSummarizer{err: errors.New("quota exceeded")}
	cache := newMapCache()
	svc := newTestService(t, summarizer, cache, nil, ServiceOptions{CacheEnabled: true, CacheTTL: time.Hour})

	email := &EmailRecord{Subject: "Offsite", Body: "The main venue is booked. Please confirm attendance."}
	summary, err := svc.Summarize(context.Background(), email)
	require.NoError(t, err)
	assert.Equal(t, "heuristic", summary.ModelUsed)
	assert.Equal(t, "The main venue is booked", summary.Text)
	assert.Equal(t, []string{"Offsite The main venue is booked. Please confirm attendance."}, summary.ActionItems)
	assert.Empty(t, cache.entries, "fallback summaries are not cached")
}

func TestSummarizeWithoutModel(t *testing.T) {
	svc := newTestService(t, nil, nil, nil, ServiceOptions{CacheEnabled: true})

	summary, err := svc.Summarize(context.Background(), &EmailRecord{Snippet: "short note"})
	require.NoError(t, err)
	assert.Equal(t, "heuristic", summary.ModelUsed)
	assert.Equal(t, "short note", summary.Text)
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "id:abc", CacheKey(&EmailRecord{ID: "abc", Subject: "x"}))

	a := CacheKey(&EmailRecord{From: "a@b.c", Subject: "hi"})
	b := CacheKey(&EmailRecord{From: "a@b.c", Subject: "hi"})
	c := CacheKey(&EmailRecord{From: "a@b.ch", Subject: "i"})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Contains(t, a, "sha256:")
}

package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WhitelistChecker reports whether a sender is exempt from spam flagging
type WhitelistChecker interface {
	IsWhitelisted(from string) bool
}

// ServiceOptions toggles the optional parts of an analysis
type ServiceOptions struct {
	CacheEnabled   bool
	CacheTTL       time.Duration
	IncludeSummary bool
}

// ClassificationService is the core service for categorizing mail
type ClassificationService struct {
	classifier *Classifier
	spam       *SpamScorer
	whitelist  WhitelistChecker
	summarizer Summarizer
	cache      CacheRepository
	logger     *zap.Logger
	opts       ServiceOptions
}

// NewClassificationService creates a new classification service. The
// summarizer, cache and whitelist may be nil.
func NewClassificationService(
	classifier *Classifier,
	spam *SpamScorer,
	whitelist WhitelistChecker,
	summarizer Summarizer,
	cache CacheRepository,
	logger *zap.Logger,
	opts ServiceOptions,
) *ClassificationService {
	if cache == nil {
		opts.CacheEnabled = false
	}
	return &ClassificationService{
		classifier: classifier,
		spam:       spam,
		whitelist:  whitelist,
		summarizer: summarizer,
		cache:      cache,
		logger:     logger,
		opts:       opts,
	}
}

// Analyze categorizes an email, scores it for spam and extracts insights
func (s *ClassificationService) Analyze(ctx context.Context, email *EmailRecord) (*AnalysisResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if email == nil {
		email = &EmailRecord{}
	}

	result := &AnalysisResult{
		Scores:       s.classifier.Scores(email),
		Insights:     ExtractInsights(email),
		AnalyzedAt:   time.Now(),
		ProcessingID: uuid.NewString(),
	}

	if native, ok := NativeCategory(email); ok {
		result.Category = native
		result.NativeLabel = true
	} else {
		result.Category = s.classifier.decide(result.Scores)
	}

	result.SpamScore = s.spam.Score(email)
	if s.whitelist != nil && s.whitelist.IsWhitelisted(email.From) {
		s.logger.Debug("Skipping spam verdict for whitelisted sender",
			zap.String("sender", email.From),
			zap.String("action", "whitelist_bypass"))
		result.Whitelisted = true
	} else {
		result.IsSpam = s.spam.IsLikelySpam(email, result.SpamScore)
	}

	if s.opts.IncludeSummary {
		summary, err := s.Summarize(ctx, email)
		if err != nil {
			return nil, err
		}
		result.Summary = summary
	}

	s.logger.Debug("Classified email",
		zap.String("processing_id", result.ProcessingID),
		zap.String("sender", email.From),
		zap.String("category", string(result.Category)),
		zap.Bool("native_label", result.NativeLabel),
		zap.Int("spam_score", result.SpamScore),
		zap.Bool("is_spam", result.IsSpam))

	return result, nil
}

// Categorize returns only the category of an email
func (s *ClassificationService) Categorize(email *EmailRecord) Category {
	return s.classifier.Categorize(email)
}

// Summarize returns a summary, preferring the cache and falling back to the
// heuristic summary when the model is unavailable
func (s *ClassificationService) Summarize(ctx context.Context, email *EmailRecord) (*Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := CacheKey(email)

	if s.opts.CacheEnabled {
		if entry, err := s.cache.Get(ctx, key); err == nil {
			s.logger.Debug("Cache hit for summary", zap.String("key", key))
			return &Summary{
				Text:        entry.Summary,
				ActionItems: entry.ActionItems,
				ModelUsed:   "cache",
				GeneratedAt: entry.CreatedAt,
			}, nil
		}
	}

	if s.summarizer == nil {
		return s.fallbackSummary(email), nil
	}

	summary, err := s.summarizer.Summarize(ctx, email)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn("Summarizer failed, using heuristic summary",
			zap.Error(err),
			zap.String("sender", email.From))
		return s.fallbackSummary(email), nil
	}

	if s.opts.CacheEnabled {
		now := time.Now()
		entry := &CacheEntry{
			Key:         key,
			Summary:     summary.Text,
			ActionItems: summary.ActionItems,
			ModelUsed:   summary.ModelUsed,
			CreatedAt:   now,
			ExpiresAt:   now.Add(s.opts.CacheTTL),
		}
		if err := s.cache.Set(ctx, entry); err != nil {
			s.logger.Error("Failed to update cache", zap.Error(err))
		}
	}

	return summary, nil
}

func (s *ClassificationService) fallbackSummary(email *EmailRecord) *Summary {
	return &Summary{
		Text:        FallbackSummary(email),
		ActionItems: ActionItems(email),
		ModelUsed:   "heuristic",
		GeneratedAt: time.Now(),
	}
}

// CacheKey identifies an email for caching. It uses the message id when
// present and a content fingerprint otherwise.
func CacheKey(email *EmailRecord) string {
	if email.ID != "" {
		return "id:" + email.ID
	}
	h := sha256.New()
	for _, part := range []string{email.From, email.Subject, email.Snippet, email.Body} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil))
}

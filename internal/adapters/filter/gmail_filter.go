package filter

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mikey/inbox-classifier/internal/config"
	"github.com/mikey/inbox-classifier/internal/core"
	"go.uber.org/zap"
)

// MailboxClient is the part of the Gmail client the poller needs
type MailboxClient interface {
	ListMessageIDs(ctx context.Context, query string, maxResults int64) ([]string, error)
	GetRecord(ctx context.Context, id string) (*core.EmailRecord, error)
	Modify(ctx context.Context, id string, add, remove []string) error
	MoveToSpam(ctx context.Context, id string) error
}

// PollStats counts what one poll did
type PollStats struct {
	Processed int
	Skipped   int
	Spam      int
	Labeled   int
	Failed    int
}

// GmailFilter polls a Gmail inbox, classifies new messages and routes them
// with labels
type GmailFilter struct {
	service *core.ClassificationService
	client  MailboxClient
	cfg     config.GmailConfig
	logger  *zap.Logger
	seen    *lru.Cache[string, struct{}]

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewGmailFilter creates a new Gmail poller
func NewGmailFilter(service *core.ClassificationService, client MailboxClient, cfg config.GmailConfig, logger *zap.Logger) (*GmailFilter, error) {
	size := cfg.SeenCacheSize
	if size <= 0 {
		size = 10000
	}
	seen, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create seen-message cache: %w", err)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Minute
	}
	return &GmailFilter{
		service: service,
		client:  client,
		cfg:     cfg,
		logger:  logger,
		seen:    seen,
		stopCh:  make(chan struct{}),
	}, nil
}

// ProcessEmail classifies a single message
func (f *GmailFilter) ProcessEmail(ctx context.Context, email *core.EmailRecord) (*core.AnalysisResult, error) {
	return f.service.Analyze(ctx, email)
}

// Poll runs one pass over the inbox. A failure on one message is logged and
// does not stop the pass.
func (f *GmailFilter) Poll(ctx context.Context) (PollStats, error) {
	var stats PollStats

	ids, err := f.client.ListMessageIDs(ctx, f.cfg.Query, f.cfg.MaxResults)
	if err != nil {
		return stats, err
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if f.seen.Contains(id) {
			stats.Skipped++
			continue
		}

		if err := f.route(ctx, id, &stats); err != nil {
			stats.Failed++
			f.logger.Error("Failed to process Gmail message", zap.String("message_id", id), zap.Error(err))
			continue
		}
		f.seen.Add(id, struct{}{})
		stats.Processed++
	}

	f.logger.Debug("Gmail poll complete",
		zap.Int("processed", stats.Processed),
		zap.Int("skipped", stats.Skipped),
		zap.Int("spam", stats.Spam),
		zap.Int("labeled", stats.Labeled),
		zap.Int("failed", stats.Failed))
	return stats, nil
}

func (f *GmailFilter) route(ctx context.Context, id string, stats *PollStats) error {
	record, err := f.client.GetRecord(ctx, id)
	if err != nil {
		return err
	}
	result, err := f.service.Analyze(ctx, record)
	if err != nil {
		return fmt.Errorf("failed to analyze message: %w", err)
	}

	f.logger.Info("Classified Gmail message",
		zap.String("message_id", id),
		zap.String("sender", record.From),
		zap.String("category", string(result.Category)),
		zap.Bool("is_spam", result.IsSpam),
		zap.Int("spam_score", result.SpamScore))

	if result.IsSpam && f.cfg.MoveSpam {
		if err := f.client.MoveToSpam(ctx, id); err != nil {
			return err
		}
		stats.Spam++
		return nil
	}

	if f.cfg.ApplyCategoryLabels && !result.NativeLabel {
		if label, ok := core.NativeLabelFor(result.Category); ok {
			if err := f.client.Modify(ctx, id, []string{label}, nil); err != nil {
				return err
			}
			stats.Labeled++
		}
	}
	return nil
}

// Start polls in the background until Stop is called
func (f *GmailFilter) Start() error {
	f.logger.Info("Gmail poller starting",
		zap.Duration("interval", f.cfg.PollInterval),
		zap.String("query", f.cfg.Query))

	ctx, cancel := context.WithCancel(context.Background())
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		defer cancel()

		ticker := time.NewTicker(f.cfg.PollInterval)
		defer ticker.Stop()

		for {
			if _, err := f.Poll(ctx); err != nil && ctx.Err() == nil {
				f.logger.Error("Gmail poll failed", zap.Error(err))
			}
			select {
			case <-ticker.C:
			case <-f.stopCh:
				return
			}
		}
	}()

	go func() {
		<-f.stopCh
		cancel()
	}()
	return nil
}

// Stop stops the poller and waits for the current pass to finish
func (f *GmailFilter) Stop() error {
	f.stopOnce.Do(func() {
		close(f.stopCh)
	})
	f.wg.Wait()
	return nil
}

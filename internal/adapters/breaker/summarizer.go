package breaker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/mikey/inbox-classifier/internal/core"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Summarizer guards another summarizer with a circuit breaker. While the
// circuit is open calls fail fast and the service falls back to the
// heuristic summary.
type Summarizer struct {
	next   core.Summarizer
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

// NewSummarizer wraps next. The circuit opens after maxFailures consecutive
// errors and probes again after openTimeout.
func NewSummarizer(next core.Summarizer, maxFailures uint32, openTimeout time.Duration, logger *zap.Logger) *Summarizer {
	if maxFailures == 0 {
		maxFailures = 1
	}
	settings := gobreaker.Settings{
		Name:        "summarizer",
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// Canceled callers say nothing about the provider's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &Summarizer{
		next:   next,
		cb:     gobreaker.NewCircuitBreaker(settings),
		logger: logger,
	}
}

// Summarize forwards to the wrapped summarizer unless the circuit is open
func (s *Summarizer) Summarize(ctx context.Context, email *core.EmailRecord) (*core.Summary, error) {
	result, err := s.cb.Execute(func() (interface{}, error) {
		return s.next.Summarize(ctx, email)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("summarizer unavailable: %w", err)
		}
		return nil, err
	}
	return result.(*core.Summary), nil
}

// State reports the current breaker state
func (s *Summarizer) State() gobreaker.State {
	return s.cb.State()
}

// Close closes the wrapped summarizer when it holds a client
func (s *Summarizer) Close() error {
	if closer, ok := s.next.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

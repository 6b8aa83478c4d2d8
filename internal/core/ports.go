package core

import (
	"context"
)

// Summarizer defines the interface for LLM-backed message summaries
type Summarizer interface {
	// Summarize produces a short summary of an email
	Summarize(ctx context.Context, email *EmailRecord) (*Summary, error)
}

// CacheRepository defines the interface for caching summaries
type CacheRepository interface {
	// Get retrieves a cached entry by key
	Get(ctx context.Context, key string) (*CacheEntry, error)

	// Set stores a cache entry
	Set(ctx context.Context, entry *CacheEntry) error

	// Delete removes a cache entry
	Delete(ctx context.Context, key string) error

	// Cleanup removes expired entries
	Cleanup(ctx context.Context) error
}

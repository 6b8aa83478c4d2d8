package ports

import (
	"context"

	"github.com/mikey/inbox-classifier/internal/core"
)

// EmailFilter defines the interface for a mail source that classifies
// messages as they arrive
type EmailFilter interface {
	// ProcessEmail classifies a single message
	ProcessEmail(ctx context.Context, email *core.EmailRecord) (*core.AnalysisResult, error)

	// Start starts the filter service
	Start() error

	// Stop stops the filter service
	Stop() error
}

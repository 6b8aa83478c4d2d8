package factory

import (
	"context"
	"fmt"
	"os"

	"github.com/mikey/inbox-classifier/internal/adapters/filter"
	"github.com/mikey/inbox-classifier/internal/adapters/gmail"
	"github.com/mikey/inbox-classifier/internal/config"
	"github.com/mikey/inbox-classifier/internal/core"
	"github.com/mikey/inbox-classifier/internal/ports"
	"github.com/mikey/inbox-classifier/internal/utils"
	"go.uber.org/zap"
)

// FilterFactory creates email filters based on configuration
type FilterFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	service       *core.ClassificationService
	textProcessor *utils.TextProcessor
}

// NewFilterFactory creates a new filter factory
func NewFilterFactory(cfg *config.Config, logger *zap.Logger, service *core.ClassificationService, textProcessor *utils.TextProcessor) *FilterFactory {
	return &FilterFactory{
		cfg:           cfg,
		logger:        logger,
		service:       service,
		textProcessor: textProcessor,
	}
}

// CreateEmailFilter creates an email filter based on the configuration
func (f *FilterFactory) CreateEmailFilter(ctx context.Context) (ports.EmailFilter, error) {
	serverCfg := f.cfg.GetServer()

	switch serverCfg.FilterType {
	case "postfix":
		return filter.NewPostfixFilter(f.service, f.textProcessor, serverCfg, f.logger), nil
	case "gmail":
		gmailCfg, err := f.cfg.GetGmail()
		if err != nil {
			return nil, fmt.Errorf("invalid gmail configuration: %w", err)
		}
		svc, err := gmail.NewServiceFromFiles(ctx, gmailCfg.CredentialsPath, gmailCfg.TokenPath)
		if err != nil {
			return nil, err
		}
		client := gmail.NewClient(svc, gmailCfg.User, f.textProcessor, f.logger)
		return filter.NewGmailFilter(f.service, client, gmailCfg, f.logger)
	case "cli":
		return filter.NewCliFilter(
			f.service,
			f.logger,
			os.Stdout,
			f.cfg.GetBool("cli.verbose"),
			f.cfg.GetBool("cli.json"),
		), nil
	default:
		return nil, fmt.Errorf("unsupported filter type: %s", serverCfg.FilterType)
	}
}

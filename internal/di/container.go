package di

import (
	"context"

	"go.uber.org/dig"

	"github.com/mikey/inbox-classifier/internal/config"
	"github.com/mikey/inbox-classifier/internal/core"
	"github.com/mikey/inbox-classifier/internal/factory"
	"github.com/mikey/inbox-classifier/internal/logging"
	"github.com/mikey/inbox-classifier/internal/ports"
	"github.com/mikey/inbox-classifier/internal/utils"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	if err := provideServices(container); err != nil {
		return nil, err
	}
	return container, nil
}

// provideServices registers everything downstream of the configuration and
// logger
func provideServices(container *dig.Container) error {
	// Register factories
	for _, ctor := range []interface{}{
		factory.NewServiceFactory,
		factory.NewLLMFactory,
		factory.NewCacheFactory,
		factory.NewFilterFactory,
	} {
		if err := container.Provide(ctor); err != nil {
			return err
		}
	}

	// Register text processor
	if err := container.Provide(func(f *factory.ServiceFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return err
	}

	// Register summarizer, nil when no provider is configured
	if err := container.Provide(func(f *factory.LLMFactory) (core.Summarizer, error) {
		return f.CreateSummarizer(context.Background())
	}); err != nil {
		return err
	}

	// Register cache repository, nil when caching is disabled
	if err := container.Provide(func(f *factory.CacheFactory) (factory.Cache, error) {
		return f.CreateCacheRepository(context.Background())
	}); err != nil {
		return err
	}

	// Register classification service
	if err := container.Provide(func(f *factory.ServiceFactory, summarizer core.Summarizer, cache factory.Cache) (*core.ClassificationService, error) {
		return f.CreateService(summarizer, cache)
	}); err != nil {
		return err
	}

	// Register email filter
	return container.Provide(func(f *factory.FilterFactory) (ports.EmailFilter, error) {
		return f.CreateEmailFilter(context.Background())
	})
}

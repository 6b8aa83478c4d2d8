package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mikey/inbox-classifier/internal/core"
	"github.com/mikey/inbox-classifier/internal/di"
	"github.com/mikey/inbox-classifier/internal/factory"
	"github.com/mikey/inbox-classifier/internal/ports"
	"go.uber.org/zap"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	emailFilter ports.EmailFilter,
	summarizer core.Summarizer,
	cache factory.Cache,
) error {
	defer logger.Sync()

	if err := emailFilter.Start(); err != nil {
		logger.Error("Failed to start filter", zap.Error(err))
		return err
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("Shutting down...", zap.String("signal", sig.String()))

	if err := emailFilter.Stop(); err != nil {
		logger.Error("Failed to stop filter", zap.Error(err))
	}

	if closer, ok := summarizer.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close summarizer", zap.Error(err))
		}
	}

	if cache != nil {
		cache.Stop()
	}

	logger.Info("Shutdown complete")
	return nil
}

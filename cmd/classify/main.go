package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mikey/inbox-classifier/internal/adapters/filter"
	"github.com/mikey/inbox-classifier/internal/core"
	"github.com/mikey/inbox-classifier/internal/di"
	"github.com/mikey/inbox-classifier/internal/ports"
	"github.com/mikey/inbox-classifier/internal/utils"
	"go.uber.org/zap"
)

func main() {
	flags, err := di.ParseFlags(os.Args[0], os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	if err := container.Invoke(run); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(
	flags *di.CLIFlags,
	logger *zap.Logger,
	emailFilter ports.EmailFilter,
	summarizer core.Summarizer,
	textProcessor *utils.TextProcessor,
) error {
	defer logger.Sync()

	if closer, ok := summarizer.(io.Closer); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				logger.Error("Failed to close summarizer", zap.Error(err))
			}
		}()
	}

	var input io.Reader = os.Stdin
	if flags.InputFile != "" {
		file, err := os.Open(flags.InputFile)
		if err != nil {
			return fmt.Errorf("failed to open input file: %w", err)
		}
		defer file.Close()
		input = file
		logger.Debug("Reading email from file", zap.String("file", flags.InputFile))
	} else {
		logger.Debug("Reading email from stdin")
	}

	raw, err := io.ReadAll(input)
	if err != nil {
		return fmt.Errorf("failed to read email: %w", err)
	}

	email, err := filter.ParseMessage(raw, "", nil, textProcessor)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err = emailFilter.ProcessEmail(ctx, email)
	return err
}

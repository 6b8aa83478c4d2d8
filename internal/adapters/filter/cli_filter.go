package filter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mikey/inbox-classifier/internal/core"
	"go.uber.org/zap"
)

const bodyPreviewLength = 500

// CliFilter classifies a single message and prints the result
type CliFilter struct {
	service *core.ClassificationService
	logger  *zap.Logger
	out     io.Writer
	verbose bool
	json    bool
}

// NewCliFilter creates a new CLI filter that writes to out
func NewCliFilter(service *core.ClassificationService, logger *zap.Logger, out io.Writer, verbose, jsonOutput bool) *CliFilter {
	return &CliFilter{
		service: service,
		logger:  logger,
		out:     out,
		verbose: verbose,
		json:    jsonOutput,
	}
}

// ProcessEmail analyzes an email and writes the report
func (f *CliFilter) ProcessEmail(ctx context.Context, email *core.EmailRecord) (*core.AnalysisResult, error) {
	f.logger.Debug("Processing email", zap.String("sender", email.From))

	start := time.Now()
	result, err := f.service.Analyze(ctx, email)
	if err != nil {
		f.logger.Error("Failed to analyze email", zap.Error(err))
		return nil, err
	}
	duration := time.Since(start)

	if f.json {
		enc := json.NewEncoder(f.out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return nil, fmt.Errorf("failed to encode result: %w", err)
		}
		return result, nil
	}

	f.printEmail(email)
	f.printResult(result, duration)
	return result, nil
}

func (f *CliFilter) printEmail(email *core.EmailRecord) {
	fmt.Fprintf(f.out, "\n=== Email ===\n")
	fmt.Fprintf(f.out, "From: %s\n", email.From)
	fmt.Fprintf(f.out, "To: %s\n", strings.Join(email.To, ", "))
	fmt.Fprintf(f.out, "Subject: %s\n", email.Subject)
	if len(email.NativeLabels) > 0 {
		fmt.Fprintf(f.out, "Labels: %s\n", strings.Join(email.NativeLabels, ", "))
	}
	fmt.Fprintf(f.out, "Body length: %d bytes\n", len(email.Body))

	if f.verbose {
		preview := []rune(email.Body)
		if len(preview) > bodyPreviewLength {
			preview = append(preview[:bodyPreviewLength], []rune("...")...)
		}
		fmt.Fprintf(f.out, "\nBody preview:\n%s\n", string(preview))
	}
}

func (f *CliFilter) printResult(result *core.AnalysisResult, duration time.Duration) {
	fmt.Fprintf(f.out, "\n=== Classification ===\n")
	fmt.Fprintf(f.out, "Category: %s", result.Category)
	if result.NativeLabel {
		fmt.Fprintf(f.out, " (native label)")
	}
	fmt.Fprintf(f.out, "\n")
	if f.verbose {
		for _, s := range result.Scores {
			fmt.Fprintf(f.out, "  %-10s %6.1f\n", s.Category, s.Score)
		}
	}
	fmt.Fprintf(f.out, "Spam: %t (score %d)", result.IsSpam, result.SpamScore)
	if result.Whitelisted {
		fmt.Fprintf(f.out, " whitelisted")
	}
	fmt.Fprintf(f.out, "\n")

	if in := result.Insights; in != nil {
		fmt.Fprintf(f.out, "\n=== Insights ===\n")
		fmt.Fprintf(f.out, "Priority: %s\n", in.Priority)
		fmt.Fprintf(f.out, "Sentiment: %s (%d)\n", in.Sentiment.Label, in.Sentiment.Score)
		fmt.Fprintf(f.out, "Automated: %t\n", in.IsAutomated)
		if len(in.SmartLabels) > 0 {
			fmt.Fprintf(f.out, "Labels: %s\n", strings.Join(in.SmartLabels, ", "))
		}
		for _, item := range in.ActionItems {
			fmt.Fprintf(f.out, "Action: %s\n", item)
		}
		for _, d := range in.Deadlines {
			fmt.Fprintf(f.out, "Deadline: %s\n", d.Date)
		}
		if m := in.Meeting; len(m.Dates) > 0 || len(m.Times) > 0 || m.Location != "" {
			fmt.Fprintf(f.out, "Meeting: dates=%s times=%s location=%q virtual=%t\n",
				strings.Join(m.Dates, ","), strings.Join(m.Times, ","), m.Location, m.IsVirtual)
		}
		if in.SuggestedReply != "" {
			fmt.Fprintf(f.out, "Suggested reply: %s\n", in.SuggestedReply)
		}
	}

	if s := result.Summary; s != nil {
		fmt.Fprintf(f.out, "\n=== Summary (%s) ===\n", s.ModelUsed)
		fmt.Fprintf(f.out, "%s\n", s.Text)
		for _, item := range s.ActionItems {
			fmt.Fprintf(f.out, "- %s\n", item)
		}
	}

	fmt.Fprintf(f.out, "\nProcessing time: %v\n", duration)
}

// Start is a no-op for the CLI filter
func (f *CliFilter) Start() error {
	return nil
}

// Stop is a no-op for the CLI filter
func (f *CliFilter) Stop() error {
	return nil
}

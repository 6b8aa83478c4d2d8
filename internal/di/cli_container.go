package di

import (
	"flag"
	"strings"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/inbox-classifier/internal/config"
	"github.com/mikey/inbox-classifier/internal/logging"
)

// CLIFlags contains all command line flags for the CLI application
type CLIFlags struct {
	// Summary flags
	Provider  string
	Summarize bool

	// Classification flags
	Margin           float64
	PrimaryThreshold float64
	SpamThreshold    int
	MinSignals       int
	Whitelist        string

	// Input and output flags
	InputFile  string
	Verbose    bool
	JSONLog    bool
	JSONOutput bool
	ConfigFile string

	// set records which flags were given explicitly
	set map[string]bool
}

// ParseFlags parses command line arguments into a CLIFlags struct
func ParseFlags(name string, args []string) (*CLIFlags, error) {
	flags := &CLIFlags{set: make(map[string]bool)}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)

	// Summary flags
	fs.StringVar(&flags.Provider, "provider", "none", "Summary provider (none, bedrock, gemini, openai)")
	fs.BoolVar(&flags.Summarize, "summarize", false, "Include a summary in the report")

	// Classification flags
	fs.Float64Var(&flags.Margin, "margin", 1.5, "Factor by which the top category must beat the runner-up")
	fs.Float64Var(&flags.PrimaryThreshold, "primary-threshold", 30, "Primary score that wins a close call")
	fs.IntVar(&flags.SpamThreshold, "threshold", 15, "Spam score at which the score signal fires")
	fs.IntVar(&flags.MinSignals, "min-signals", 2, "Spam signals required for a spam verdict")
	fs.StringVar(&flags.Whitelist, "whitelist", "", "Comma-separated list of whitelisted domains")

	// Input and output flags
	fs.StringVar(&flags.InputFile, "file", "", "Input email file (use stdin if not specified)")
	fs.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose logging and output")
	fs.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	fs.BoolVar(&flags.JSONOutput, "json", false, "Print the analysis as JSON")
	fs.StringVar(&flags.ConfigFile, "config", "", "Path to config file; explicit flags override it")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) { flags.set[f.Name] = true })
	return flags, nil
}

// IsSet reports whether a flag was given on the command line
func (f *CLIFlags) IsSet(name string) bool {
	return f.set[name]
}

// BuildCLIContainer creates and configures a dependency injection container for the CLI application
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		return createConfigFromFlags(flags, logger)
	}); err != nil {
		return nil, err
	}

	if err := provideServices(container); err != nil {
		return nil, err
	}
	return container, nil
}

// createConfigFromFlags loads the optional config file and applies the
// command line flags on top. Without a file every flag applies, with one
// only explicit flags do.
func createConfigFromFlags(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
	var cfg *config.Config
	if flags.ConfigFile != "" {
		loaded, err := config.NewFromFile(flags.ConfigFile)
		if err != nil {
			return nil, err
		}
		logger.Info("Loaded configuration from file", zap.String("file", loaded.GetViper().ConfigFileUsed()))
		cfg = loaded
	} else {
		cfg = config.NewFromViper(config.NewEmptyViper())
	}

	apply := func(name, key string, value interface{}) {
		if flags.ConfigFile == "" || flags.IsSet(name) {
			cfg.Set(key, value)
		}
	}

	apply("provider", "llm.provider", flags.Provider)
	apply("summarize", "summary.enabled", flags.Summarize)
	apply("margin", "classifier.margin", flags.Margin)
	apply("primary-threshold", "classifier.primary_threshold", flags.PrimaryThreshold)
	apply("threshold", "spam.score_threshold", flags.SpamThreshold)
	apply("min-signals", "spam.min_signals", flags.MinSignals)
	if flags.Whitelist != "" {
		cfg.Set("spam.whitelisted_domains", splitList(flags.Whitelist))
	}

	// CLI specific settings
	cfg.Set("server.filter_type", "cli")
	cfg.Set("cli.verbose", flags.Verbose)
	cfg.Set("cli.json", flags.JSONOutput)
	cfg.Set("cache.enabled", false)

	return cfg, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

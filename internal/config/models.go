package config

import (
	"fmt"
	"time"

	"github.com/mikey/inbox-classifier/internal/core"
)

// LLMConfig represents the configuration for the summary provider
type LLMConfig struct {
	Provider string
}

// SummaryConfig controls whether analyses carry a summary
type SummaryConfig struct {
	Enabled     bool
	MaxBodySize int
}

// BreakerConfig guards the summary provider
type BreakerConfig struct {
	Enabled     bool
	MaxFailures uint32
	OpenTimeout time.Duration
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// SpamConfig holds the spam vote and the sender whitelist
type SpamConfig struct {
	Policy             core.SpamPolicy
	WhitelistedDomains []string
}

// CacheConfig represents the summary cache settings
type CacheConfig struct {
	Type             string
	Enabled          bool
	TTL              time.Duration
	CleanupFrequency time.Duration
	SQLitePath       string
	MySQLDSN         string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	RedisPrefix      string
}

// HeaderNames are the headers stamped on filtered mail
type HeaderNames struct {
	Category string
	Spam     string
	Score    string
	Priority string
}

// ServerConfig represents the SMTP filter settings
type ServerConfig struct {
	FilterType      string
	ListenAddress   string
	BlockSpam       bool
	SubjectPrefix   string
	MaxMessageBytes int64
	Headers         HeaderNames
	PostfixEnabled  bool
	PostfixAddress  string
	PostfixPort     int
}

// GmailConfig represents the Gmail poller settings
type GmailConfig struct {
	CredentialsPath     string
	TokenPath           string
	User                string
	Query               string
	PollInterval        time.Duration
	MaxResults          int64
	SeenCacheSize       int
	MoveSpam            bool
	ApplyCategoryLabels bool
}

// GetLLM returns the LLM configuration
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider: c.GetString("llm.provider"),
	}
}

// GetSummary returns the summary settings
func (c *Config) GetSummary() SummaryConfig {
	return SummaryConfig{
		Enabled:     c.GetBool("summary.enabled"),
		MaxBodySize: c.GetInt("summary.max_body_size"),
	}
}

// GetBreaker returns the circuit breaker settings
func (c *Config) GetBreaker() (BreakerConfig, error) {
	timeout, err := c.GetDuration("breaker.open_timeout")
	if err != nil {
		return BreakerConfig{}, err
	}
	failures := c.GetInt("breaker.max_failures")
	if failures < 1 {
		failures = 1
	}
	return BreakerConfig{
		Enabled:     c.GetBool("breaker.enabled"),
		MaxFailures: uint32(failures),
		OpenTimeout: timeout,
	}, nil
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
		MaxBodySize: c.GetInt("summary.max_body_size"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
		MaxBodySize: c.GetInt("summary.max_body_size"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		BaseURL:     c.GetString("openai.base_url"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
		MaxBodySize: c.GetInt("summary.max_body_size"),
	}
}

// GetClassifier returns the category decision policy
func (c *Config) GetClassifier() core.DecisionPolicy {
	return core.DecisionPolicy{
		Margin:           c.GetFloat64("classifier.margin"),
		PrimaryThreshold: c.GetFloat64("classifier.primary_threshold"),
	}
}

// GetRules returns the built-in category rules with any configured
// overrides applied. An override replaces the whole field it names.
func (c *Config) GetRules() (core.RuleSet, error) {
	rules := core.DefaultRules()
	for i := range rules {
		prefix := "classifier.rules." + string(rules[i].Category) + "."
		if c.v.IsSet(prefix + "domains") {
			rules[i].Domains = c.GetStringSlice(prefix + "domains")
		}
		if c.v.IsSet(prefix + "keywords") {
			rules[i].Keywords = c.GetStringSlice(prefix + "keywords")
		}
		if c.v.IsSet(prefix + "sender_patterns") {
			rules[i].SenderPatterns = c.GetStringSlice(prefix + "sender_patterns")
		}
		if c.v.IsSet(prefix + "trusted_domains") {
			rules[i].TrustedDomains = c.GetStringSlice(prefix + "trusted_domains")
		}
		if c.v.IsSet(prefix + "weight") {
			rules[i].Weight = c.GetFloat64(prefix + "weight")
		}
	}

	for name := range c.v.GetStringMap("classifier.rules") {
		if !core.Category(name).IsValid() {
			return nil, fmt.Errorf("unknown category %q in classifier.rules", name)
		}
	}

	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return rules, nil
}

// GetSpam returns the spam configuration
func (c *Config) GetSpam() SpamConfig {
	return SpamConfig{
		Policy: core.SpamPolicy{
			ScoreThreshold: c.GetInt("spam.score_threshold"),
			MinSignals:     c.GetInt("spam.min_signals"),
		},
		WhitelistedDomains: c.GetStringSlice("spam.whitelisted_domains"),
	}
}

// GetCache returns the cache configuration
func (c *Config) GetCache() (CacheConfig, error) {
	ttl, err := c.GetDuration("cache.ttl")
	if err != nil {
		return CacheConfig{}, err
	}
	cleanup, err := c.GetDuration("cache.cleanup_frequency")
	if err != nil {
		return CacheConfig{}, err
	}
	return CacheConfig{
		Type:             c.GetString("cache.type"),
		Enabled:          c.GetBool("cache.enabled"),
		TTL:              ttl,
		CleanupFrequency: cleanup,
		SQLitePath:       c.GetString("cache.sqlite_path"),
		MySQLDSN:         c.GetString("cache.mysql_dsn"),
		RedisAddr:        c.GetString("cache.redis_addr"),
		RedisPassword:    c.GetString("cache.redis_password"),
		RedisDB:          c.GetInt("cache.redis_db"),
		RedisPrefix:      c.GetString("cache.redis_prefix"),
	}, nil
}

// GetServer returns the SMTP filter configuration
func (c *Config) GetServer() ServerConfig {
	return ServerConfig{
		FilterType:      c.GetString("server.filter_type"),
		ListenAddress:   c.GetString("server.listen_address"),
		BlockSpam:       c.GetBool("server.block_spam"),
		SubjectPrefix:   c.GetString("server.subject_prefix"),
		MaxMessageBytes: int64(c.GetInt("server.max_message_bytes")),
		Headers: HeaderNames{
			Category: c.GetString("server.headers.category"),
			Spam:     c.GetString("server.headers.spam"),
			Score:    c.GetString("server.headers.score"),
			Priority: c.GetString("server.headers.priority"),
		},
		PostfixEnabled: c.GetBool("server.postfix.enabled"),
		PostfixAddress: c.GetString("server.postfix.address"),
		PostfixPort:    c.GetInt("server.postfix.port"),
	}
}

// GetGmail returns the Gmail poller configuration
func (c *Config) GetGmail() (GmailConfig, error) {
	interval, err := c.GetDuration("gmail.poll_interval")
	if err != nil {
		return GmailConfig{}, err
	}
	return GmailConfig{
		CredentialsPath:     c.GetString("gmail.credentials_path"),
		TokenPath:           c.GetString("gmail.token_path"),
		User:                c.GetString("gmail.user"),
		Query:               c.GetString("gmail.query"),
		PollInterval:        interval,
		MaxResults:          int64(c.GetInt("gmail.max_results")),
		SeenCacheSize:       c.GetInt("gmail.seen_cache_size"),
		MoveSpam:            c.GetBool("gmail.move_spam"),
		ApplyCategoryLabels: c.GetBool("gmail.apply_category_labels"),
	}, nil
}

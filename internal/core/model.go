package core

import (
	"net/textproto"
	"strings"
	"time"
)

// Category is one of the five fixed inbox tabs
type Category string

const (
	CategoryPrimary    Category = "primary"
	CategorySocial     Category = "social"
	CategoryPromotions Category = "promotions"
	CategoryUpdates    Category = "updates"
	CategoryForums     Category = "forums"
)

// AllCategories lists every category in rule iteration order. Ties between
// equal scores resolve to the earliest entry.
var AllCategories = []Category{
	CategoryPrimary,
	CategorySocial,
	CategoryPromotions,
	CategoryUpdates,
	CategoryForums,
}

// IsValid reports whether c belongs to the closed category set
func (c Category) IsValid() bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

// EmailRecord represents a normalized email message
type EmailRecord struct {
	ID           string
	From         string
	To           []string
	Subject      string
	Snippet      string
	Body         string
	NativeLabels []string
	Headers      map[string][]string
}

// Header returns the first value of the named header. Names are matched
// case-insensitively.
func (e *EmailRecord) Header(name string) string {
	if e == nil || len(e.Headers) == 0 {
		return ""
	}
	if values, ok := e.Headers[textproto.CanonicalMIMEHeaderKey(name)]; ok && len(values) > 0 {
		return values[0]
	}
	for key, values := range e.Headers {
		if strings.EqualFold(key, name) && len(values) > 0 {
			return values[0]
		}
	}
	return ""
}

// HasNativeLabel reports whether the record carries the given provider
// label, ignoring case and space, hyphen or underscore separators
func (e *EmailRecord) HasNativeLabel(label string) bool {
	if e == nil {
		return false
	}
	want := normalizeLabel(label)
	for _, l := range e.NativeLabels {
		if normalizeLabel(l) == want {
			return true
		}
	}
	return false
}

// ScoredCategory is a per-call category score
type ScoredCategory struct {
	Category Category `json:"category"`
	Score    float64  `json:"score"`
}

// Priority of a message as inferred from headers and wording
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Sentiment is a word-count sentiment estimate
type Sentiment struct {
	Score int    `json:"score"`
	Label string `json:"label"`
}

// Deadline is a date found next to due/deadline/by/until wording
type Deadline struct {
	Date    string `json:"date"`
	Context string `json:"context"`
}

// MeetingDetails holds meeting hints found in the message text
type MeetingDetails struct {
	Dates     []string `json:"dates,omitempty"`
	Times     []string `json:"times,omitempty"`
	IsVirtual bool     `json:"is_virtual"`
	Location  string   `json:"location,omitempty"`
}

// Insights represents the heuristic reading of a message
type Insights struct {
	Priority       Priority       `json:"priority"`
	Sentiment      Sentiment      `json:"sentiment"`
	SmartLabels    []string       `json:"smart_labels,omitempty"`
	IsAutomated    bool           `json:"is_automated"`
	ActionItems    []string       `json:"action_items,omitempty"`
	Deadlines      []Deadline     `json:"deadlines,omitempty"`
	Meeting        MeetingDetails `json:"meeting"`
	SuggestedReply string         `json:"suggested_reply"`
}

// Summary represents a short description of a message
type Summary struct {
	Text        string    `json:"text"`
	ActionItems []string  `json:"action_items,omitempty"`
	ModelUsed   string    `json:"model_used"`
	GeneratedAt time.Time `json:"generated_at"`
}

// AnalysisResult represents the result of classifying one message
type AnalysisResult struct {
	Category     Category         `json:"category"`
	Scores       []ScoredCategory `json:"scores"`
	NativeLabel  bool             `json:"native_label"`
	SpamScore    int              `json:"spam_score"`
	IsSpam       bool             `json:"is_spam"`
	Whitelisted  bool             `json:"whitelisted"`
	Insights     *Insights        `json:"insights,omitempty"`
	Summary      *Summary         `json:"summary,omitempty"`
	AnalyzedAt   time.Time        `json:"analyzed_at"`
	ProcessingID string           `json:"processing_id"`
}

// CacheEntry is a stored summary
type CacheEntry struct {
	Key         string    `json:"key"`
	Summary     string    `json:"summary"`
	ActionItems []string  `json:"action_items"`
	ModelUsed   string    `json:"model_used"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

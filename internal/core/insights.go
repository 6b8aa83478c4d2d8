package core

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const maxFallbackSummaryLength = 100

var priorityIndicators = []struct {
	level      Priority
	indicators []string
}{
	{PriorityHigh, []string{"urgent", "asap", "immediate", "deadline", "important", "priority"}},
	{PriorityMedium, []string{"review", "update", "attention", "please respond", "confirm"}},
	{PriorityLow, []string{"newsletter", "subscription", "fyi", "for your information"}},
}

var (
	positiveWords = []string{"thank", "appreciate", "great", "good", "excellent", "pleased"}
	negativeWords = []string{"issue", "problem", "concerned", "disappointed", "urgent", "complaint"}
)

var smartLabelRules = []struct {
	label    string
	keywords []string
}{
	{"requires-response", []string{"please respond", "let me know", "what do you think"}},
	{"follow-up", []string{"following up", "checking in", "any updates"}},
	{"document", []string{"attached", "document", "pdf", "doc", "spreadsheet"}},
	{"meeting", []string{"meeting", "calendar", "schedule", "discuss"}},
	{"deadline", []string{"due", "deadline", "by", "until"}},
	{"review", []string{"review", "feedback", "thoughts", "opinion"}},
}

var automatedIndicators = []string{
	"noreply", "no-reply", "donotreply", "automated",
	"system", "notification", "mailer-daemon", "postmaster",
}

var actionIndicators = []string{
	"please", "need to", "action item", "todo", "to-do",
	"required", "must", "should", "could you", "can you",
}

var keyPointKeywords = []string{"key", "main", "important", "summary", "conclude"}

const monthPattern = `(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?`

var (
	wordSplitter     = regexp.MustCompile(`\W+`)
	sentenceSplitter = regexp.MustCompile(`[.!?]+`)
	datePattern      = regexp.MustCompile(`(?i)(?:\b\d{1,2}(?:st|nd|rd|th)?\s+` + monthPattern + `\s+\d{4})|(?:\d{1,2}/\d{1,2}/\d{2,4})`)
	timePattern      = regexp.MustCompile(`(?i)\b(?:1[0-2]|0?[1-9])(?::[0-5][0-9])?\s*(?:am|pm)\b`)
	virtualPattern   = regexp.MustCompile(`(?i)zoom|meet|teams|webex|virtual`)
	locationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:room|rm\.?)\s+[a-z0-9-]+`),
		regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?(?:zoom\.us|meet\.google\.com|teams\.microsoft\.com)/\S*`),
		regexp.MustCompile(`(?i)(?:building|bldg\.?)\s+[a-z0-9-]+`),
	}
	deadlinePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:due|deadline|by|until)\s+(?:on\s+)?(\d{1,2}(?:st|nd|rd|th)?\s+` + monthPattern + `\s+\d{4})`),
		regexp.MustCompile(`(?i)(?:due|deadline|by|until)\s+(?:on\s+)?(\d{1,2}/\d{1,2}/\d{2,4})`),
	}
)

// ExtractInsights runs every heuristic reader over the email
func ExtractInsights(email *EmailRecord) *Insights {
	if email == nil {
		email = &EmailRecord{}
	}
	return &Insights{
		Priority:       DetectPriority(email),
		Sentiment:      AnalyzeSentiment(email),
		SmartLabels:    SmartLabels(email),
		IsAutomated:    IsAutomated(email),
		ActionItems:    ActionItems(email),
		Deadlines:      Deadlines(email),
		Meeting:        ExtractMeetingDetails(email),
		SuggestedReply: SuggestReply(email),
	}
}

// DetectPriority reads X-Priority/Importance, then falls back to wording
func DetectPriority(email *EmailRecord) Priority {
	explicit := email.Header("X-Priority")
	if explicit == "" {
		explicit = email.Header("Importance")
	}
	// X-Priority values look like "1 (Highest)".
	if fields := strings.Fields(explicit); len(fields) > 0 {
		switch strings.ToLower(fields[0]) {
		case "1", "high":
			return PriorityHigh
		case "3", "normal":
			return PriorityMedium
		case "5", "low":
			return PriorityLow
		}
	}

	content := shortContent(email)
	for _, p := range priorityIndicators {
		for _, indicator := range p.indicators {
			if strings.Contains(content, indicator) {
				return p.level
			}
		}
	}
	return PriorityMedium
}

// AnalyzeSentiment counts positive and negative words
func AnalyzeSentiment(email *EmailRecord) Sentiment {
	score := 0
	for _, word := range wordSplitter.Split(shortContent(email), -1) {
		if containsString(positiveWords, word) {
			score++
		}
		if containsString(negativeWords, word) {
			score--
		}
	}

	label := "neutral"
	if score > 0 {
		label = "positive"
	} else if score < 0 {
		label = "negative"
	}
	return Sentiment{Score: score, Label: label}
}

// SmartLabels returns the keyword-driven labels that apply
func SmartLabels(email *EmailRecord) []string {
	words := wordSet(shortContent(email))
	content := shortContent(email)

	var labels []string
	for _, rule := range smartLabelRules {
		for _, kw := range rule.keywords {
			// Single words must match a whole word so "by" does not hit "maybe".
			matched := false
			if strings.Contains(kw, " ") {
				matched = strings.Contains(content, kw)
			} else {
				_, matched = words[kw]
			}
			if matched {
				labels = append(labels, rule.label)
				break
			}
		}
	}
	return labels
}

// IsAutomated reports whether the sender looks like a machine
func IsAutomated(email *EmailRecord) bool {
	from := strings.ToLower(fromOf(email))
	for _, indicator := range automatedIndicators {
		if strings.Contains(from, indicator) {
			return true
		}
	}
	return false
}

// ActionItems returns lines that read like requests
func ActionItems(email *EmailRecord) []string {
	var items []string
	for _, line := range strings.Split(email.Subject+" "+bodyOf(email), "\n") {
		lower := strings.ToLower(line)
		for _, indicator := range actionIndicators {
			if strings.Contains(lower, indicator) {
				if trimmed := strings.TrimSpace(line); trimmed != "" {
					items = append(items, trimmed)
				}
				break
			}
		}
	}
	return items
}

// ExtractMeetingDetails finds dates, times and a location
func ExtractMeetingDetails(email *EmailRecord) MeetingDetails {
	content := email.Subject + " " + bodyOf(email)

	details := MeetingDetails{
		Dates:     datePattern.FindAllString(content, -1),
		Times:     timePattern.FindAllString(content, -1),
		IsVirtual: virtualPattern.MatchString(content),
	}
	for _, pattern := range locationPatterns {
		if match := pattern.FindString(content); match != "" {
			details.Location = match
			break
		}
	}
	return details
}

// Deadlines returns dates introduced by due/deadline/by/until
func Deadlines(email *EmailRecord) []Deadline {
	content := email.Subject + " " + bodyOf(email)

	var deadlines []Deadline
	for _, pattern := range deadlinePatterns {
		for _, m := range pattern.FindAllStringSubmatchIndex(content, -1) {
			start := m[0] - 50
			if start < 0 {
				start = 0
			}
			end := m[0] + 50
			if end > len(content) {
				end = len(content)
			}
			deadlines = append(deadlines, Deadline{
				Date:    content[m[2]:m[3]],
				Context: strings.ToValidUTF8(content[start:end], ""),
			})
		}
	}
	return deadlines
}

// SuggestReply picks a canned reply from the message wording
func SuggestReply(email *EmailRecord) string {
	content := shortContent(email)
	switch {
	case strings.Contains(content, "meeting") || strings.Contains(content, "invite"):
		return "I will attend the meeting."
	case strings.Contains(content, "thank"):
		return "Thank you for your email."
	case strings.Contains(content, "confirm"):
		return "I confirm receipt of your email."
	default:
		return "I will look into this and get back to you soon."
	}
}

// FallbackSummary builds a summary from key-point sentences without a model
func FallbackSummary(email *EmailRecord) string {
	var keyPoints []string
	for _, sentence := range sentenceSplitter.Split(bodyOf(email), -1) {
		lower := strings.ToLower(sentence)
		for _, kw := range keyPointKeywords {
			if strings.Contains(lower, kw) {
				keyPoints = append(keyPoints, strings.TrimSpace(sentence))
				break
			}
		}
		if len(keyPoints) == 3 {
			break
		}
	}

	summary := strings.Join(keyPoints, ". ")
	if summary == "" {
		summary = strings.TrimSpace(email.Snippet)
	}
	if summary == "" {
		summary = strings.TrimSpace(email.Subject)
	}

	if utf8.RuneCountInString(summary) > maxFallbackSummaryLength {
		runes := []rune(summary)
		summary = string(runes[:maxFallbackSummaryLength]) + "..."
	}
	return summary
}

func shortContent(email *EmailRecord) string {
	return strings.ToLower(email.Subject + " " + email.Snippet)
}

func bodyOf(email *EmailRecord) string {
	if email.Body != "" {
		return email.Body
	}
	return email.Snippet
}

func wordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range wordSplitter.Split(text, -1) {
		if w != "" {
			set[w] = struct{}{}
		}
	}
	return set
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

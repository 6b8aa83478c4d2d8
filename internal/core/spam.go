package core

import (
	"net/textproto"
	"regexp"
	"strings"
)

const (
	subjectPhrasePoints = 5
	senderPhrasePoints  = 3
)

// spamHeaderPoints are awarded when the header carries a positive value
var spamHeaderPoints = map[string]int{
	"X-Spam-Flag":   10,
	"X-Spam-Status": 5,
	"X-Spam-Level":  5,
	"X-Spam-Score":  5,
}

var positiveSpamValue = regexp.MustCompile(`(?i)yes|true|spam`)

// suspiciousPhrases cover pharma, lottery, urgency and advance-fee wording
var suspiciousPhrases = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(viagra|cialis|rolex|luxury.*watches)\b`),
	regexp.MustCompile(`(?i)\b(lottery|prize|winner|million.*dollars)\b`),
	regexp.MustCompile(`(?i)\b(urgent|action.*required|account.*suspended)\b`),
	regexp.MustCompile(`(?i)\b(nigerian.*prince|inheritance|bank.*transfer)\b`),
}

var suspiciousTLDs = []string{".xyz", ".top", ".website", ".space", ".tk", ".ml"}

var linkShorteners = []string{"bit.ly", "tinyurl.com", "goo.gl", "is.gd"}

// SpamPolicy holds the spam vote thresholds
type SpamPolicy struct {
	// ScoreThreshold is the score at which the score signal fires.
	ScoreThreshold int
	// MinSignals is how many of the four signals must fire.
	MinSignals int
}

// DefaultSpamPolicy returns the stock spam thresholds
func DefaultSpamPolicy() SpamPolicy {
	return SpamPolicy{
		ScoreThreshold: 15,
		MinSignals:     2,
	}
}

// SpamScorer computes a heuristic spam score and a majority-vote verdict
type SpamScorer struct {
	policy SpamPolicy
}

// NewSpamScorer creates a new spam scorer
func NewSpamScorer(policy SpamPolicy) *SpamScorer {
	defaults := DefaultSpamPolicy()
	if policy.ScoreThreshold <= 0 {
		policy.ScoreThreshold = defaults.ScoreThreshold
	}
	if policy.MinSignals <= 0 {
		policy.MinSignals = defaults.MinSignals
	}
	return &SpamScorer{policy: policy}
}

// Policy returns the thresholds in use
func (s *SpamScorer) Policy() SpamPolicy {
	return s.policy
}

// Score returns the additive spam score of an email
func (s *SpamScorer) Score(email *EmailRecord) int {
	if email == nil {
		return 0
	}

	score := 0
	for name, values := range email.Headers {
		points, ok := spamHeaderPoints[textproto.CanonicalMIMEHeaderKey(name)]
		if !ok {
			continue
		}
		for _, v := range values {
			if positiveSpamValue.MatchString(v) {
				score += points
			}
		}
	}

	subject := subjectOf(email)
	from := fromOf(email)
	for _, pattern := range suspiciousPhrases {
		if pattern.MatchString(subject) {
			score += subjectPhrasePoints
		}
		if pattern.MatchString(from) {
			score += senderPhrasePoints
		}
	}

	return score
}

// IsLikelySpam reports whether enough independent signals agree
func (s *SpamScorer) IsLikelySpam(email *EmailRecord, score int) bool {
	signals := []bool{
		score >= s.policy.ScoreThreshold,
		HasSpamHeaders(email),
		HasSuspiciousSender(email),
		HasSuspiciousLinks(email),
	}

	count := 0
	for _, fired := range signals {
		if fired {
			count++
		}
	}
	return count >= s.policy.MinSignals
}

// HasSpamHeaders reports whether any X-Spam-* header has a positive value
func HasSpamHeaders(email *EmailRecord) bool {
	if email == nil {
		return false
	}
	for name, values := range email.Headers {
		if !strings.HasPrefix(strings.ToLower(name), "x-spam-") {
			continue
		}
		for _, v := range values {
			if positiveSpamValue.MatchString(v) {
				return true
			}
		}
	}
	return false
}

// HasSuspiciousSender reports whether the sender domain uses a throwaway TLD
func HasSuspiciousSender(email *EmailRecord) bool {
	if email == nil {
		return false
	}
	domain := SenderDomain(fromOf(email))
	if domain == "" {
		return false
	}
	for _, tld := range suspiciousTLDs {
		if strings.HasSuffix(domain, tld) {
			return true
		}
	}
	return false
}

// HasSuspiciousLinks reports whether the snippet or body mentions a link shortener
func HasSuspiciousLinks(email *EmailRecord) bool {
	if email == nil {
		return false
	}
	content := strings.ToLower(email.Snippet + " " + email.Body)
	for _, shortener := range linkShorteners {
		if strings.Contains(content, shortener) {
			return true
		}
	}
	return false
}

func subjectOf(email *EmailRecord) string {
	if email.Subject != "" {
		return email.Subject
	}
	return email.Header("Subject")
}

func fromOf(email *EmailRecord) string {
	if email.From != "" {
		return email.From
	}
	return email.Header("From")
}

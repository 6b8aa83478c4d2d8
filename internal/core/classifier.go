package core

import (
	"fmt"
	"net/mail"
	"regexp"
	"sort"
	"strings"
)

const (
	senderPatternPoints = 30
	domainPoints        = 25
	trustedDomainPoints = 20
	keywordPoints       = 10
)

// nativeCategoryLabels maps provider category markers to categories, in the
// order they are checked.
var nativeCategoryLabels = []struct {
	label    string
	category Category
}{
	{"CATEGORY_SOCIAL", CategorySocial},
	{"CATEGORY_PROMOTIONS", CategoryPromotions},
	{"CATEGORY_UPDATES", CategoryUpdates},
	{"CATEGORY_FORUMS", CategoryForums},
}

// NativeLabelFor returns the provider label that marks a category
func NativeLabelFor(category Category) (string, bool) {
	for _, n := range nativeCategoryLabels {
		if n.category == category {
			return n.label, true
		}
	}
	return "", false
}

type compiledRule struct {
	category       Category
	domains        []string
	keywords       []string
	senderPatterns []*regexp.Regexp
	trustedDomains map[string]struct{}
	weight         float64
}

// Classifier assigns one category per email from a fixed rule set. It holds
// no mutable state and is safe for concurrent use.
type Classifier struct {
	rules  []compiledRule
	policy DecisionPolicy
}

// NewClassifier compiles a rule set into a classifier
func NewClassifier(rules RuleSet, policy DecisionPolicy) (*Classifier, error) {
	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rule set: %w", err)
	}

	compiled := make([]compiledRule, 0, len(AllCategories))
	for _, category := range AllCategories {
		rule, _ := rules.Rule(category)
		cr, err := compileRule(category, rule)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, cr)
	}

	defaults := DefaultDecisionPolicy()
	if policy == (DecisionPolicy{}) {
		policy = defaults
	}
	if policy.Margin <= 0 {
		policy.Margin = defaults.Margin
	}
	if policy.PrimaryThreshold < 0 {
		policy.PrimaryThreshold = defaults.PrimaryThreshold
	}

	return &Classifier{
		rules:  compiled,
		policy: policy,
	}, nil
}

func compileRule(category Category, rule CategoryRule) (compiledRule, error) {
	cr := compiledRule{
		category:       category,
		domains:        normalizeTerms(rule.Domains),
		keywords:       normalizeTerms(rule.Keywords),
		trustedDomains: make(map[string]struct{}),
		weight:         rule.Weight,
	}
	if cr.weight <= 0 {
		cr.weight = 1.0
	}

	for _, pattern := range rule.SenderPatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return compiledRule{}, fmt.Errorf("invalid sender pattern %q for %s: %w", pattern, category, err)
		}
		cr.senderPatterns = append(cr.senderPatterns, re)
	}

	if category == CategoryPrimary {
		for _, d := range normalizeTerms(rule.TrustedDomains) {
			cr.trustedDomains[d] = struct{}{}
		}
	}

	return cr, nil
}

// normalizeTerms lowercases, trims and de-duplicates terms, dropping empties
func normalizeTerms(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Policy returns the decision thresholds in use
func (c *Classifier) Policy() DecisionPolicy {
	return c.policy
}

// Categorize returns exactly one category for the email
func (c *Classifier) Categorize(email *EmailRecord) Category {
	if category, ok := NativeCategory(email); ok {
		return category
	}
	return c.decide(c.Scores(email))
}

// NativeCategory returns the category implied by a provider label, if any.
// API tokens (CATEGORY_SOCIAL), Takeout names (Category Social) and bare
// category names (social) are all recognised.
func NativeCategory(email *EmailRecord) (Category, bool) {
	if email == nil {
		return "", false
	}
	for _, n := range nativeCategoryLabels {
		if email.HasNativeLabel(n.label) || email.HasNativeLabel(string(n.category)) {
			return n.category, true
		}
	}
	return "", false
}

// normalizeLabel folds a label to the API token form: upper case, each run
// of separators replaced by one underscore.
func normalizeLabel(label string) string {
	fields := strings.FieldsFunc(strings.ToUpper(label), func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '\t'
	})
	return strings.Join(fields, "_")
}

// Scores returns every category score, highest first. Equal scores keep
// rule order.
func (c *Classifier) Scores(email *EmailRecord) []ScoredCategory {
	if email == nil {
		email = &EmailRecord{}
	}

	domain := SenderDomain(email.From)
	text := strings.ToLower(email.Subject + " " + email.Snippet)

	scores := make([]ScoredCategory, 0, len(c.rules))
	for _, rule := range c.rules {
		scores = append(scores, ScoredCategory{
			Category: rule.category,
			Score:    rule.score(email.From, domain, text),
		})
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Score > scores[j].Score
	})
	return scores
}

func (r *compiledRule) score(from, domain, text string) float64 {
	var score float64

	for _, re := range r.senderPatterns {
		if re.MatchString(from) {
			score += senderPatternPoints
			break
		}
	}

	if domain != "" {
		for _, d := range r.domains {
			if strings.Contains(domain, d) {
				score += domainPoints
				break
			}
		}
		if _, ok := r.trustedDomains[domain]; ok {
			score += trustedDomainPoints
		}
	}

	for _, kw := range r.keywords {
		if strings.Contains(text, kw) {
			score += keywordPoints
		}
	}

	return score * r.weight
}

func (c *Classifier) decide(scores []ScoredCategory) Category {
	if len(scores) == 0 {
		return CategoryPrimary
	}

	top := scores[0]
	if len(scores) == 1 {
		return top.Category
	}
	second := scores[1]

	if top.Score > second.Score*c.policy.Margin {
		return top.Category
	}

	for _, s := range scores {
		if s.Category == CategoryPrimary && s.Score > c.policy.PrimaryThreshold {
			return CategoryPrimary
		}
	}

	return top.Category
}

// SenderDomain extracts the lowercased domain of a From value. It returns
// an empty string when there is no @.
func SenderDomain(from string) string {
	addr := strings.TrimSpace(from)
	if addr == "" {
		return ""
	}
	if parsed, err := mail.ParseAddress(addr); err == nil {
		addr = parsed.Address
	}

	at := strings.LastIndex(addr, "@")
	if at < 0 {
		return ""
	}

	domain := strings.TrimSpace(addr[at+1:])
	domain = strings.TrimRight(domain, "> \t")
	return strings.ToLower(domain)
}

package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDefaultClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := NewClassifier(DefaultRules(), DefaultDecisionPolicy())
	require.NoError(t, err)
	return c
}

func scoreOf(scores []ScoredCategory, category Category) float64 {
	for _, s := range scores {
		if s.Category == category {
			return s.Score
		}
	}
	return -1
}

func TestCategorizeExamples(t *testing.T) {
	c := newDefaultClassifier(t)

	tests := []struct {
		name  string
		email *EmailRecord
		want  Category
	}{
		{
			name: "personal mail from trusted domain",
			email: &EmailRecord{
				From:    "alice@gmail.com",
				Subject: "Quarterly report",
				Snippet: "please review the attached report",
			},
			want: CategoryPrimary,
		},
		{
			name: "social network notification",
			email: &EmailRecord{
				From:    "updates@facebook.com",
				Subject: "John liked your post",
				Snippet: "check it out",
			},
			want: CategorySocial,
		},
		{
			name: "newsletter deal",
			email: &EmailRecord{
				From:    "deals@newsletter.example.com",
				Subject: "50% off everything",
				Snippet: "limited time offer",
			},
			want: CategoryPromotions,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Categorize(tt.email))
		})
	}
}

func TestScoresForExamples(t *testing.T) {
	c := newDefaultClassifier(t)

	primary := c.Scores(&EmailRecord{
		From:    "alice@gmail.com",
		Subject: "Quarterly report",
		Snippet: "please review the attached report",
	})
	// pattern 30 + domain 25 + trusted 20 + report/review 20
	assert.Equal(t, 95.0, scoreOf(primary, CategoryPrimary))
	assert.Equal(t, CategoryPrimary, primary[0].Category)

	social := c.Scores(&EmailRecord{
		From:    "updates@facebook.com",
		Subject: "John liked your post",
		Snippet: "check it out",
	})
	assert.Equal(t, []ScoredCategory{
		{CategorySocial, 45},
		{CategoryPrimary, 30},
		{CategoryForums, 10},
		{CategoryPromotions, 0},
		{CategoryUpdates, 0},
	}, social)

	promo := c.Scores(&EmailRecord{
		From:    "deals@newsletter.example.com",
		Subject: "50% off everything",
		Snippet: "limited time offer",
	})
	assert.Equal(t, 55.0, scoreOf(promo, CategoryPromotions))
}

func TestNativeLabelOverridesHeuristics(t *testing.T) {
	c := newDefaultClassifier(t)

	email := &EmailRecord{
		From:         "alice@gmail.com",
		Subject:      "Quarterly report",
		Snippet:      "please review the attached report",
		NativeLabels: []string{"INBOX", "CATEGORY_PROMOTIONS"},
	}
	assert.Equal(t, CategoryPromotions, c.Categorize(email))

	email.NativeLabels = []string{"category_forums"}
	assert.Equal(t, CategoryForums, c.Categorize(email))

	email.NativeLabels = []string{"CATEGORY_UPDATES", "CATEGORY_SOCIAL"}
	assert.Equal(t, CategorySocial, c.Categorize(email), "social is checked first")

	email.NativeLabels = []string{"CATEGORY_PERSONAL"}
	assert.Equal(t, CategoryPrimary, c.Categorize(email))
}

func TestNativeLabelTakeoutForms(t *testing.T) {
	c := newDefaultClassifier(t)
	email := &EmailRecord{
		From:    "alice@gmail.com",
		Subject: "Quarterly report",
	}

	tests := []struct {
		labels []string
		want   Category
	}{
		{[]string{"Inbox", "Category Social"}, CategorySocial},
		{[]string{"Opened", "Category Promotions", "Important"}, CategoryPromotions},
		{[]string{"category-updates"}, CategoryUpdates},
		{[]string{" Category  Forums "}, CategoryForums},
		{[]string{"social"}, CategorySocial},
		{[]string{"Category Personal"}, CategoryPrimary},
	}
	for _, tt := range tests {
		email.NativeLabels = tt.labels
		assert.Equal(t, tt.want, c.Categorize(email), "labels %q", tt.labels)
	}
}

func TestNewClassifierDefaultsZeroPolicy(t *testing.T) {
	c, err := NewClassifier(DefaultRules(), DecisionPolicy{})
	require.NoError(t, err)
	assert.Equal(t, DefaultDecisionPolicy(), c.Policy())

	c, err = NewClassifier(DefaultRules(), DecisionPolicy{Margin: -1, PrimaryThreshold: 40})
	require.NoError(t, err)
	assert.Equal(t, DecisionPolicy{Margin: 1.5, PrimaryThreshold: 40}, c.Policy())

	c, err = NewClassifier(DefaultRules(), DecisionPolicy{Margin: 2, PrimaryThreshold: -5})
	require.NoError(t, err)
	assert.Equal(t, DecisionPolicy{Margin: 2, PrimaryThreshold: 30}, c.Policy())
}

func TestTrustedDomainBonus(t *testing.T) {
	rules := RuleSet{
		{Category: CategoryPrimary, TrustedDomains: []string{"Example.org"}},
		{Category: CategorySocial, TrustedDomains: []string{"example.org"}},
	}
	c, err := NewClassifier(rules, DefaultDecisionPolicy())
	require.NoError(t, err)

	scores := c.Scores(&EmailRecord{From: "Bob <bob@example.org>"})
	assert.Equal(t, 20.0, scoreOf(scores, CategoryPrimary))
	assert.Equal(t, 0.0, scoreOf(scores, CategorySocial), "trusted domains only count for primary")

	scores = c.Scores(&EmailRecord{From: "bob@mail.example.org"})
	assert.Equal(t, 0.0, scoreOf(scores, CategoryPrimary), "trusted match is exact")
}

func TestCategorizeIsIdempotent(t *testing.T) {
	c := newDefaultClassifier(t)
	email := &EmailRecord{
		From:    "updates@facebook.com",
		Subject: "John liked your post",
		Snippet: "check it out",
	}

	first := c.Categorize(email)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, c.Categorize(email))
	}
	assert.Equal(t, "John liked your post", email.Subject)
}

func TestSenderWithoutAt(t *testing.T) {
	c := newDefaultClassifier(t)

	email := &EmailRecord{From: "Mailer Daemon"}
	var got Category
	assert.NotPanics(t, func() { got = c.Categorize(email) })
	assert.True(t, got.IsValid())

	for _, s := range c.Scores(email) {
		assert.Zero(t, s.Score, "category %s", s.Category)
	}
	assert.Equal(t, CategoryPrimary, got)
}

func TestEmptyAndNilRecords(t *testing.T) {
	c := newDefaultClassifier(t)
	assert.Equal(t, CategoryPrimary, c.Categorize(&EmailRecord{}))
	assert.Equal(t, CategoryPrimary, c.Categorize(nil))
}

func TestTieResolvesToRuleOrder(t *testing.T) {
	// Rules listed out of order on purpose.
	rules := RuleSet{
		{Category: CategoryPromotions, Keywords: []string{"hello"}},
		{Category: CategorySocial, Keywords: []string{"hello"}},
	}
	c, err := NewClassifier(rules, DefaultDecisionPolicy())
	require.NoError(t, err)

	email := &EmailRecord{From: "x@y.z", Subject: "Hello"}
	assert.Equal(t, CategorySocial, c.Categorize(email))
}

func TestPrimaryBiasOnCloseCall(t *testing.T) {
	rules := RuleSet{
		{Category: CategoryPrimary, Keywords: []string{"alpha", "beta", "gamma", "delta"}},
		{Category: CategorySocial, Keywords: []string{"alpha", "beta", "gamma", "delta", "omega"}},
	}
	email := &EmailRecord{Subject: "alpha beta gamma delta omega"}

	c, err := NewClassifier(rules, DefaultDecisionPolicy())
	require.NoError(t, err)
	assert.Equal(t, CategoryPrimary, c.Categorize(email), "50 does not beat 40 by 1.5x and primary is above 30")

	tight, err := NewClassifier(rules, DecisionPolicy{Margin: 1.1, PrimaryThreshold: 30})
	require.NoError(t, err)
	assert.Equal(t, CategorySocial, tight.Categorize(email))

	high, err := NewClassifier(rules, DecisionPolicy{Margin: 1.5, PrimaryThreshold: 40})
	require.NoError(t, err)
	assert.Equal(t, CategorySocial, high.Categorize(email), "primary must exceed the threshold")
}

func TestWeightMultipliesScore(t *testing.T) {
	rules := RuleSet{
		{Category: CategoryPromotions, Keywords: []string{"sale"}, Weight: 2},
		{Category: CategoryUpdates, Keywords: []string{"sale"}},
	}
	c, err := NewClassifier(rules, DefaultDecisionPolicy())
	require.NoError(t, err)

	scores := c.Scores(&EmailRecord{Subject: "Big sale"})
	assert.Equal(t, 20.0, scoreOf(scores, CategoryPromotions))
	assert.Equal(t, 10.0, scoreOf(scores, CategoryUpdates), "zero weight defaults to 1")
}

func TestKeywordsCountOncePerDistinctTerm(t *testing.T) {
	rules := RuleSet{
		{Category: CategoryForums, Keywords: []string{"post", "POST", " post ", ""}},
	}
	c, err := NewClassifier(rules, DefaultDecisionPolicy())
	require.NoError(t, err)

	scores := c.Scores(&EmailRecord{Subject: "post post post", Snippet: "another post"})
	assert.Equal(t, 10.0, scoreOf(scores, CategoryForums))
}

func TestNewClassifierRejectsBadRules(t *testing.T) {
	_, err := NewClassifier(RuleSet{{Category: "spam"}}, DefaultDecisionPolicy())
	assert.Error(t, err)

	_, err = NewClassifier(RuleSet{
		{Category: CategorySocial},
		{Category: CategorySocial},
	}, DefaultDecisionPolicy())
	assert.Error(t, err)

	_, err = NewClassifier(RuleSet{
		{Category: CategorySocial, SenderPatterns: []string{"(unclosed"}},
	}, DefaultDecisionPolicy())
	assert.Error(t, err)
}

func TestSenderDomain(t *testing.T) {
	tests := []struct {
		from string
		want string
	}{
		{"alice@gmail.com", "gmail.com"},
		{"Alice <Alice@GMAIL.com>", "gmail.com"},
		{"\"Weird, Name\" <a@b.example.org>", "b.example.org"},
		{"broken <a@host.tk", "host.tk"},
		{"no address", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SenderDomain(tt.from), tt.from)
	}
}

func TestDefaultRulesAreFreshCopies(t *testing.T) {
	rules := DefaultRules()
	rules[0].Keywords[0] = "mutated"
	assert.NotEqual(t, "mutated", DefaultRules()[0].Keywords[0])
}

package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpamScore(t *testing.T) {
	scorer := NewSpamScorer(DefaultSpamPolicy())

	tests := []struct {
		name  string
		email *EmailRecord
		want  int
	}{
		{
			name:  "clean mail",
			email: &EmailRecord{From: "alice@gmail.com", Subject: "Lunch tomorrow?"},
			want:  0,
		},
		{
			name: "spam flag header and lottery subject",
			email: &EmailRecord{
				From:    "claims@example.com",
				Subject: "You won a lottery prize",
				Headers: map[string][]string{"X-Spam-Flag": {"YES"}},
			},
			want: 15,
		},
		{
			name: "header names are case-insensitive",
			email: &EmailRecord{
				Headers: map[string][]string{
					"x-spam-flag":   {"true"},
					"X-SPAM-STATUS": {"Yes, score=8.2"},
					"X-Spam-Level":  {"***"},
				},
			},
			want: 15,
		},
		{
			name: "negative header values score nothing",
			email: &EmailRecord{
				Headers: map[string][]string{"X-Spam-Flag": {"NO"}},
			},
			want: 0,
		},
		{
			name:  "one point award per pattern in the subject",
			email: &EmailRecord{Subject: "URGENT: lottery winner inheritance"},
			want:  15,
		},
		{
			name:  "sender matches score three",
			email: &EmailRecord{From: "winner@prize.xyz"},
			want:  3,
		},
		{
			name: "subject and sender fall back to headers",
			email: &EmailRecord{
				Headers: map[string][]string{
					"Subject": {"Cheap Viagra"},
					"From":    {"rolex@shop.top"},
				},
			},
			want: 8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scorer.Score(tt.email))
		})
	}
}

func TestIsLikelySpam(t *testing.T) {
	scorer := NewSpamScorer(DefaultSpamPolicy())

	lottery := &EmailRecord{
		Subject: "You won a lottery prize",
		Headers: map[string][]string{"X-Spam-Flag": {"YES"}},
	}
	assert.True(t, scorer.IsLikelySpam(lottery, scorer.Score(lottery)))

	shortenerOnly := &EmailRecord{
		From:    "friend@example.com",
		Snippet: "see https://bit.ly/abc",
	}
	assert.False(t, scorer.IsLikelySpam(shortenerOnly, scorer.Score(shortenerOnly)), "one signal is not enough")

	shortenerAndTLD := &EmailRecord{
		From: "promo@cheap.tk",
		Body: "click https://TinyURL.com/xyz now",
	}
	assert.True(t, scorer.IsLikelySpam(shortenerAndTLD, scorer.Score(shortenerAndTLD)))

	highScoreOnly := &EmailRecord{Subject: "URGENT: lottery winner inheritance"}
	assert.False(t, scorer.IsLikelySpam(highScoreOnly, scorer.Score(highScoreOnly)))

	strict := NewSpamScorer(SpamPolicy{ScoreThreshold: 15, MinSignals: 1})
	assert.True(t, strict.IsLikelySpam(highScoreOnly, strict.Score(highScoreOnly)))
}

func TestSpamSignals(t *testing.T) {
	assert.True(t, HasSpamHeaders(&EmailRecord{Headers: map[string][]string{"X-Spam-Custom": {"spam"}}}))
	assert.False(t, HasSpamHeaders(&EmailRecord{Headers: map[string][]string{"X-Mailer": {"spam"}}}))

	assert.True(t, HasSuspiciousSender(&EmailRecord{From: "Deals <deals@win.website>"}))
	assert.False(t, HasSuspiciousSender(&EmailRecord{From: "no at sign .xyz"}))
	assert.False(t, HasSuspiciousSender(&EmailRecord{From: "bob@xyz.com"}))

	assert.True(t, HasSuspiciousLinks(&EmailRecord{Snippet: "go to goo.gl/x"}))
	assert.True(t, HasSuspiciousLinks(&EmailRecord{Body: "IS.GD/short"}))
	assert.False(t, HasSuspiciousLinks(&EmailRecord{Body: "https://example.com"}))
}

func TestSpamScorerToleratesNil(t *testing.T) {
	scorer := NewSpamScorer(SpamPolicy{})
	assert.Equal(t, 0, scorer.Score(nil))
	assert.False(t, scorer.IsLikelySpam(nil, 0))
	assert.Equal(t, 2, scorer.Policy().MinSignals)
}

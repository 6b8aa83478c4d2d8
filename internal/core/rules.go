package core

import "fmt"

// CategoryRule describes which signals indicate membership in a category
type CategoryRule struct {
	Category       Category
	Domains        []string
	Keywords       []string
	SenderPatterns []string
	// TrustedDomains only counts for the primary category.
	TrustedDomains []string
	// Weight multiplies the raw score. Zero or negative means 1.0.
	Weight float64
}

// RuleSet is an ordered list of category rules
type RuleSet []CategoryRule

// Rule returns the rule for a category
func (rs RuleSet) Rule(category Category) (CategoryRule, bool) {
	for _, r := range rs {
		if r.Category == category {
			return r, true
		}
	}
	return CategoryRule{}, false
}

// Validate checks that every rule names a known category exactly once
func (rs RuleSet) Validate() error {
	seen := make(map[Category]bool, len(rs))
	for _, r := range rs {
		if !r.Category.IsValid() {
			return fmt.Errorf("unknown category %q", r.Category)
		}
		if seen[r.Category] {
			return fmt.Errorf("duplicate rule for category %q", r.Category)
		}
		seen[r.Category] = true
	}
	return nil
}

// DecisionPolicy holds the thresholds used to pick a category from scores
type DecisionPolicy struct {
	// Margin is the factor by which the top score must beat the runner-up.
	Margin float64
	// PrimaryThreshold is the primary score above which primary wins a close call.
	PrimaryThreshold float64
}

// DefaultDecisionPolicy returns the stock thresholds
func DefaultDecisionPolicy() DecisionPolicy {
	return DecisionPolicy{
		Margin:           1.5,
		PrimaryThreshold: 30,
	}
}

// DefaultRules returns a fresh copy of the built-in rule tables
func DefaultRules() RuleSet {
	return RuleSet{
		{
			Category: CategoryPrimary,
			Domains: []string{
				"gmail.com", "outlook.com", "yahoo.com", "hotmail.com",
				"protonmail.com", "icloud.com", "mail.com",
			},
			Keywords: []string{
				"invoice", "receipt", "account", "important", "report",
				"review", "meeting", "deadline", "urgent", "contract",
				"agreement", "payment", "schedule", "appointment",
				"confirmation", "tax", "document", "statement", "bill",
			},
			SenderPatterns: []string{
				`^[a-zA-Z.]+@`,
			},
			TrustedDomains: []string{
				"gmail.com", "outlook.com", "yahoo.com", "hotmail.com",
				"protonmail.com", "icloud.com",
			},
			Weight: 1.0,
		},
		{
			Category: CategorySocial,
			Domains: []string{
				"facebook.com", "twitter.com", "instagram.com", "linkedin.com",
				"tiktok.com", "pinterest.com", "reddit.com", "tumblr.com",
				"snapchat.com", "discord.com", "slack.com", "whatsapp.com",
				"messenger.com", "meet.google.com", "zoom.us",
			},
			Keywords: []string{
				"friend request", "following", "follower", "connection",
				"network", "liked", "shared", "commented", "social",
				"group", "invitation", "join", "follow", "profile",
				"post", "story", "tweet", "message", "chat", "meeting",
			},
			SenderPatterns: []string{
				`(?i)@(social|community|friends|group|notification)`,
			},
			Weight: 1.0,
		},
		{
			Category: CategoryPromotions,
			Domains: []string{
				"marketing", "newsletter", "info", "sales", "promotions",
				"deals", "offers", "discount",
			},
			Keywords: []string{
				"off", "sale", "discount", "deal", "offer", "limited time",
				"exclusive", "promotion", "coupon", "promo", "special",
			},
			Weight: 1.0,
		},
		{
			Category: CategoryUpdates,
			Domains: []string{
				"noreply", "notification", "updates", "alert", "system",
				"service", "status", "admin",
			},
			Keywords: []string{
				"update", "alert", "notification", "status", "change",
				"confirm", "verification", "security", "password",
			},
			Weight: 1.0,
		},
		{
			Category: CategoryForums,
			Domains: []string{
				"forum", "community", "groups", "discuss", "support",
				"help", "board",
			},
			Keywords: []string{
				"forum", "discussion", "thread", "reply", "community",
				"topic", "post", "question", "answer",
			},
			Weight: 1.0,
		},
	}
}

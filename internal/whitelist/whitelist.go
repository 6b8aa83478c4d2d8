package whitelist

import (
	"strings"

	"github.com/mikey/inbox-classifier/internal/core"
	"go.uber.org/zap"
)

// Checker tells whether a sender domain is trusted enough to skip spam flagging
type Checker struct {
	domains map[string]struct{}
	logger  *zap.Logger
}

// NewChecker creates a new whitelist checker
func NewChecker(domains []string, logger *zap.Logger) *Checker {
	set := make(map[string]struct{}, len(domains))
	normalized := make([]string, 0, len(domains))
	for _, domain := range domains {
		d := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), "@")
		if d == "" {
			continue
		}
		if _, ok := set[d]; !ok {
			set[d] = struct{}{}
			normalized = append(normalized, d)
		}
	}

	if len(normalized) > 0 && logger != nil {
		logger.Info("Initialized whitelist checker", zap.Strings("domains", normalized))
	}

	return &Checker{
		domains: set,
		logger:  logger,
	}
}

// IsWhitelisted matches the sender domain or any parent of it
func (c *Checker) IsWhitelisted(from string) bool {
	if len(c.domains) == 0 {
		return false
	}

	domain := core.SenderDomain(from)
	for domain != "" {
		if _, ok := c.domains[domain]; ok {
			if c.logger != nil {
				c.logger.Debug("Domain is whitelisted",
					zap.String("domain", domain),
					zap.String("email", from))
			}
			return true
		}
		dot := strings.Index(domain, ".")
		if dot < 0 {
			break
		}
		domain = domain[dot+1:]
	}

	return false
}

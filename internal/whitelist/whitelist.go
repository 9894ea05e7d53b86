package whitelist

import (
	"strings"

	"go.uber.org/zap"
)

// Checker reports whether a sender's domain is trusted enough to skip
// classification entirely.
type Checker struct {
	domains map[string]struct{}
	logger  *zap.Logger
}

// NewChecker creates a new trusted-domain checker
func NewChecker(domains []string, logger *zap.Logger) *Checker {
	normalized := make(map[string]struct{}, len(domains))
	for _, domain := range domains {
		domain = strings.ToLower(strings.TrimSpace(domain))
		if domain != "" {
			normalized[domain] = struct{}{}
		}
	}

	if len(normalized) > 0 && logger != nil {
		logger.Info("Initialized trusted-domain checker", zap.Int("domains", len(normalized)))
	}

	return &Checker{domains: normalized, logger: logger}
}

// IsTrusted checks if the sender's domain is in the trusted list
func (c *Checker) IsTrusted(from string) bool {
	if len(c.domains) == 0 {
		return false
	}

	parts := strings.Split(from, "@")
	if len(parts) != 2 {
		return false
	}
	domain := strings.ToLower(parts[1])

	if _, ok := c.domains[domain]; ok {
		if c.logger != nil {
			c.logger.Debug("Sender domain is trusted",
				zap.String("domain", domain),
				zap.String("email", from))
		}
		return true
	}
	return false
}

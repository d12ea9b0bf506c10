package suppress

import (
	"strings"

	"github.com/emersion/go-message/mail"
	"go.uber.org/zap"
)

// Checker decides whether a sender must never receive a reply. Our own
// sending domain is always suppressed so replies cannot loop back in.
type Checker struct {
	domains []string
	logger  *zap.Logger
}

// NewChecker creates a new suppression checker from a domain list and the
// reply from-address
func NewChecker(domains []string, fromAddress string, logger *zap.Logger) *Checker {
	normalized := make([]string, 0, len(domains)+1)
	for _, domain := range domains {
		if d := strings.ToLower(strings.TrimSpace(domain)); d != "" {
			normalized = append(normalized, d)
		}
	}
	if own := Domain(fromAddress); own != "" {
		normalized = append(normalized, own)
	}

	if len(normalized) > 0 && logger != nil {
		logger.Info("Initialized sender suppression", zap.Strings("domains", normalized))
	}

	return &Checker{
		domains: normalized,
		logger:  logger,
	}
}

// IsSuppressed checks if the sender's domain is suppressed
func (c *Checker) IsSuppressed(from string) bool {
	domain := Domain(from)
	if domain == "" {
		return false
	}

	for _, suppressed := range c.domains {
		if suppressed == domain {
			if c.logger != nil {
				c.logger.Debug("Sender is suppressed",
					zap.String("domain", domain),
					zap.String("email", from))
			}
			return true
		}
	}

	return false
}

// Domain extracts the lower-cased domain of an address, which may carry a display name
func Domain(address string) string {
	address = strings.TrimSpace(address)
	if address == "" {
		return ""
	}
	if parsed, err := mail.ParseAddress(address); err == nil {
		address = parsed.Address
	}

	at := strings.LastIndex(address, "@")
	if at < 0 || at == len(address)-1 {
		return ""
	}
	return strings.ToLower(address[at+1:])
}

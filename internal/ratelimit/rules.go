package ratelimit

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Proton-105/inovabank/pkg/config"
)

// Scope names a configured limit.
type Scope string

const (
	ScopeAdmin  Scope = "admin"
	ScopeExport Scope = "export"
)

// Rules encapsulates configured rate limits and helper methods.
type Rules struct {
	config    config.RateLimitConfig
	whitelist map[string]struct{}
}

// NewRules constructs rate limiting rules from configuration settings.
func NewRules(cfg config.RateLimitConfig) *Rules {
	whitelist := make(map[string]struct{}, len(cfg.Whitelist))
	for _, id := range cfg.Whitelist {
		if id = strings.TrimSpace(id); id != "" {
			whitelist[id] = struct{}{}
		}
	}
	return &Rules{config: cfg, whitelist: whitelist}
}

// Enabled reports whether limits are enforced at all.
func (r *Rules) Enabled() bool {
	return r != nil && r.config.Enabled
}

// IsWhitelisted returns true if the admin bypasses rate limits.
func (r *Rules) IsWhitelisted(adminID string) bool {
	_, ok := r.whitelist[adminID]
	return ok
}

// Limit returns the limit and window configured for scope.
func (r *Rules) Limit(scope Scope) (int, time.Duration, error) {
	switch scope {
	case ScopeAdmin:
		return parseRule(r.config.PerAdmin)
	case ScopeExport:
		return parseRule(r.config.Export)
	default:
		return 0, 0, fmt.Errorf("unsupported rate limit scope %q", scope)
	}
}

// MaxWindow returns the longest configured window, or fallback when no
// scope has a valid one.
func (r *Rules) MaxWindow(fallback time.Duration) time.Duration {
	longest := time.Duration(0)
	for _, scope := range []Scope{ScopeAdmin, ScopeExport} {
		if _, window, err := r.Limit(scope); err == nil && window > longest {
			longest = window
		}
	}
	if longest == 0 {
		return fallback
	}
	return longest
}

// Key builds the limiter key of an admin within scope.
func Key(scope Scope, adminID string) string {
	return fmt.Sprintf("%s:%s", scope, adminID)
}

func parseRule(rule config.RateLimitRule) (int, time.Duration, error) {
	if rule.Window == "" {
		return rule.Limit, 0, errors.New("window duration is not set")
	}
	window, err := time.ParseDuration(rule.Window)
	if err != nil {
		return 0, 0, err
	}
	return rule.Limit, window, nil
}

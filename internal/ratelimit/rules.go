package ratelimit

import (
	"errors"
	"time"

	"github.com/Proton-105/worklog-bot/pkg/config"
)

// Rules encapsulates configured rate limits and helper methods.
type Rules struct {
	config config.RateLimitConfig
}

// NewRules constructs rate limiting rules from configuration settings.
func NewRules(cfg config.RateLimitConfig) *Rules {
	return &Rules{config: cfg}
}

// Enabled reports whether limiting is switched on.
func (r *Rules) Enabled() bool {
	return r != nil && r.config.Enabled
}

// IsWhitelisted returns true if the chat bypasses rate limits.
func (r *Rules) IsWhitelisted(chatID int64) bool {
	for _, id := range r.config.Whitelist {
		if id == chatID {
			return true
		}
	}
	return false
}

// PerChatLimit returns how many updates a chat may send per window.
func (r *Rules) PerChatLimit() (int, time.Duration, error) {
	return parseRule(r.config.PerChat)
}

func parseRule(rule config.RateLimitRule) (int, time.Duration, error) {
	if rule.Window == "" {
		return rule.Limit, 0, errors.New("window duration is not set")
	}
	window, err := time.ParseDuration(rule.Window)
	if err != nil {
		return 0, 0, err
	}
	if rule.Limit <= 0 {
		return 0, 0, errors.New("limit must be positive")
	}
	return rule.Limit, window, nil
}

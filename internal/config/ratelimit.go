package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

// RateLimitConfig holds the per-namespace token bucket settings.
// Chat, API and login buckets are independent so numerically colliding keys
// cannot interfere across namespaces.
type RateLimitConfig struct {
	ChatPerMinute int `env:"RATE_LIMIT_CHAT_PER_MINUTE" yaml:"chat_per_minute" default:"20"`
	APIPerMinute  int `env:"RATE_LIMIT_API_PER_MINUTE" yaml:"api_per_minute" default:"100"`

	LoginAttempts int           `env:"RATE_LIMIT_LOGIN_ATTEMPTS" yaml:"login_attempts" default:"5"`
	LoginWindow   time.Duration `env:"RATE_LIMIT_LOGIN_WINDOW" yaml:"login_window" default:"15m"`
}

// Validate checks RateLimitConfig for positive limits
func (c RateLimitConfig) Validate() error {
	var result error
	if c.ChatPerMinute <= 0 {
		result = multierror.Append(result, fmt.Errorf("chat_per_minute must be greater than 0, got %d", c.ChatPerMinute))
	}
	if c.APIPerMinute <= 0 {
		result = multierror.Append(result, fmt.Errorf("api_per_minute must be greater than 0, got %d", c.APIPerMinute))
	}
	if c.LoginAttempts <= 0 {
		result = multierror.Append(result, fmt.Errorf("login_attempts must be greater than 0, got %d", c.LoginAttempts))
	}
	if c.LoginWindow <= 0 {
		result = multierror.Append(result, fmt.Errorf("login_window must be greater than 0"))
	}
	return result
}

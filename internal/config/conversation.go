package config

import "time"

// ConversationConfig holds conversation engine tunables
type ConversationConfig struct {
	// SessionTTL bounds how long an abandoned verification session is kept
	// before the janitor evicts it.
	SessionTTL time.Duration `env:"SESSION_TTL" yaml:"session_ttl" default:"24h"`

	// SummaryLimit is the character budget for course summaries in menus.
	SummaryLimit int `env:"MENU_SUMMARY_LIMIT" yaml:"menu_summary_limit" default:"200"`
}

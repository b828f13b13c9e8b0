package config

import "time"

// CommerceConfig holds the fallback WooCommerce configuration.
//
// Like the Telegram token, the operative credentials live in the settings
// store; these values seed the store on first run.
type CommerceConfig struct {
	StoreURL       string        `env:"COMMERCE_STORE_URL" yaml:"store_url"`
	ConsumerKey    string        `env:"COMMERCE_CONSUMER_KEY" yaml:"consumer_key"`
	ConsumerSecret string        `env:"COMMERCE_CONSUMER_SECRET" yaml:"consumer_secret"`
	Timeout        time.Duration `env:"COMMERCE_TIMEOUT" yaml:"timeout" default:"10s"`
}

// Configured returns true if all fallback commerce credentials are present
func (c *CommerceConfig) Configured() bool {
	return c.StoreURL != "" && c.ConsumerKey != "" && c.ConsumerSecret != ""
}

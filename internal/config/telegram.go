package config

// TelegramConfig holds the fallback Telegram configuration.
//
// The operative bot token lives in the settings store and can be rotated at
// runtime through the admin API; the environment value is only consulted when
// the store holds no token yet (first run).
type TelegramConfig struct {
	BotToken string `env:"TELEGRAM_BOT_TOKEN" yaml:"bot_token"`
	Debug    bool   `env:"TELEGRAM_DEBUG" yaml:"debug"`
}

// Enabled returns true if a fallback bot token is configured
func (c *TelegramConfig) Enabled() bool {
	return c.BotToken != ""
}

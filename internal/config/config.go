package config

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/openlearnhq/coursegate/pkg/logger"
)

// AppConfig holds all application configuration
type AppConfig struct {
	// Service configuration
	ServiceName string `env:"SERVICE_NAME" yaml:"service_name" default:"coursegate"`
	Version     string `env:"VERSION" yaml:"version" default:"dev"`
	Environment string `env:"ENVIRONMENT" yaml:"environment" default:"development"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging,inline"`

	// HTTP server configuration
	Server ServerConfig `yaml:"server,inline"`

	// Telegram fallback configuration
	Telegram TelegramConfig `yaml:"telegram,inline"`

	// Commerce fallback configuration
	Commerce CommerceConfig `yaml:"commerce,inline"`

	// Database configuration
	Database DatabaseConfig `yaml:"database,inline"`

	// Redis configuration (optional menu cache)
	Redis RedisConfig `yaml:"redis,inline"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit,inline"`

	// Conversation engine configuration
	Conversation ConversationConfig `yaml:"conversation,inline"`
}

// Validate validates the configuration and returns an error if invalid
func (c *AppConfig) Validate() error {
	var result error

	validLevels := []string{"debug", "info", "warn", "warning", "error"}
	level := strings.ToLower(c.Logging.Level)
	valid := false
	for _, validLevel := range validLevels {
		if level == validLevel {
			valid = true
			break
		}
	}
	if !valid {
		result = multierror.Append(result, fmt.Errorf("log_level must be one of [debug, info, warn, error], got %q", c.Logging.Level))
	}

	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		result = multierror.Append(result, fmt.Errorf("log_format must be either 'json' or 'text', got %q", c.Logging.Format))
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}

	if c.Database.URL == "" {
		result = multierror.Append(result, fmt.Errorf("database_url is required"))
	}

	if c.Database.MaxConnections <= 0 {
		result = multierror.Append(result, fmt.Errorf("database_max_connections must be greater than 0"))
	}

	if c.Commerce.Timeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("commerce_timeout must be greater than 0"))
	}

	if err := c.RateLimit.Validate(); err != nil {
		result = multierror.Append(result, err)
	}

	if c.Conversation.SessionTTL <= 0 {
		result = multierror.Append(result, fmt.Errorf("session_ttl must be greater than 0"))
	}

	return result
}

// GetLogLevel returns the parsed logger level
func (c *AppConfig) GetLogLevel() logger.Level {
	return logger.ParseLevel(strings.ToLower(c.Logging.Level))
}

// IsProduction returns true if running in production environment
func (c *AppConfig) IsProduction() bool {
	return strings.ToLower(c.Environment) == "production"
}

// LogConfig logs the current configuration (without sensitive data)
func (c *AppConfig) LogConfig(log logger.Logger) {
	log.Info("Application configuration loaded",
		logger.StringField("service_name", c.ServiceName),
		logger.StringField("version", c.Version),
		logger.StringField("environment", c.Environment),
		logger.IntField("port", c.Server.Port),
		logger.StringField("log_level", c.Logging.Level),
		logger.StringField("log_format", c.Logging.Format),
		logger.BoolField("telegram_fallback_token", c.Telegram.BotToken != ""),
		logger.BoolField("commerce_fallback_configured", c.Commerce.Configured()),
		logger.BoolField("redis_configured", c.Redis.Addr != ""),
		logger.IntField("chat_rate_limit", c.RateLimit.ChatPerMinute),
		logger.IntField("api_rate_limit", c.RateLimit.APIPerMinute),
		logger.DurationField("session_ttl", c.Conversation.SessionTTL),
	)
}

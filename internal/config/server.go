package config

import "time"

// ServerConfig holds the operations HTTP server configuration
type ServerConfig struct {
	Port           int           `env:"PORT" yaml:"port" default:"8080"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" yaml:"request_timeout" default:"30s"`
	IdleTimeout    time.Duration `env:"IDLE_TIMEOUT" yaml:"idle_timeout" default:"60s"`

	// AdminToken protects the settings API. Empty disables the admin routes.
	AdminToken string `env:"ADMIN_TOKEN" yaml:"admin_token"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" yaml:"cors_allowed_origins" default:"http://localhost:3000"`
}

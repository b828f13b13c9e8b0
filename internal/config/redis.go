package config

import "time"

// RedisConfig holds Redis configuration for the optional course-menu cache.
// An empty Addr disables caching entirely.
type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR" yaml:"addr"`
	Password string        `env:"REDIS_PASSWORD" yaml:"password"`
	Database int           `env:"REDIS_DATABASE" yaml:"database" default:"0"`
	CacheTTL time.Duration `env:"REDIS_CACHE_TTL" yaml:"cache_ttl" default:"5m"`
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nestedConfig struct {
	Token   string        `env:"TEST_NESTED_TOKEN" yaml:"token"`
	Timeout time.Duration `env:"TEST_NESTED_TIMEOUT" yaml:"timeout" default:"15s"`
}

type testConfig struct {
	Name     string   `env:"TEST_NAME" yaml:"name" default:"coursegate"`
	Port     int      `env:"TEST_PORT" yaml:"port" default:"8080"`
	Debug    bool     `env:"TEST_DEBUG" yaml:"debug"`
	Origins  []string `env:"TEST_ORIGINS" yaml:"origins" default:"http://localhost:3000"`
	Required string   `env:"TEST_REQUIRED" yaml:"required" required:"true"`

	Nested nestedConfig `yaml:"nested,inline"`
}

func TestGetConfigFromEnvVars(t *testing.T) {
	t.Setenv("TEST_REQUIRED", "set")
	t.Setenv("TEST_PORT", "9999")
	t.Setenv("TEST_NESTED_TIMEOUT", "3s")

	var cfg testConfig
	err := GetConfigFromEnvVars(&cfg)
	require.NoError(t, err)

	assert.Equal(t, "coursegate", cfg.Name, "default should apply when env unset")
	assert.Equal(t, 9999, cfg.Port, "env should override default")
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Origins)
	assert.Equal(t, 3*time.Second, cfg.Nested.Timeout)
}

func TestGetConfigFromEnvVarsMissingRequired(t *testing.T) {
	os.Unsetenv("TEST_REQUIRED")

	var cfg testConfig
	err := GetConfigFromEnvVars(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TEST_REQUIRED")
	assert.Zero(t, cfg.Name, "config should be reset on failed load")
}

func TestGetConfigFromEnvVarsInvalidInt(t *testing.T) {
	t.Setenv("TEST_REQUIRED", "set")
	t.Setenv("TEST_PORT", "not-a-number")

	var cfg testConfig
	err := GetConfigFromEnvVars(&cfg)
	require.Error(t, err)
}

func TestGetConfigYAMLWithEnvOverlay(t *testing.T) {
	t.Setenv("TEST_REQUIRED", "from-env")
	t.Setenv("TEST_NAME", "env-wins")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	// Nested is tagged ",inline", so its keys live at the top level.
	yamlBody := "name: from-file\nport: 4000\ntoken: file-token\n"
	require.NoError(t, os.WriteFile(path, []byte(yamlBody), 0o600))

	var cfg testConfig
	err := GetConfig(&cfg, path, false)
	require.NoError(t, err)

	assert.Equal(t, "env-wins", cfg.Name, "env overlays file values")
	assert.Equal(t, 4000, cfg.Port, "file value survives when env unset")
	assert.Equal(t, "file-token", cfg.Nested.Token)
}

func TestGetConfigMissingFileFallsBack(t *testing.T) {
	t.Setenv("TEST_REQUIRED", "set")

	var cfg testConfig
	err := GetConfig(&cfg, "/nonexistent/config.yaml", true)
	require.NoError(t, err)
	assert.Equal(t, "coursegate", cfg.Name)

	err = GetConfig(&cfg, "/nonexistent/config.yaml", false)
	require.Error(t, err)
}

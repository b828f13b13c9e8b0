// Package credentials resolves the named runtime configurations ("telegram",
// "commerce") from the settings store, falling back to process configuration
// when the store holds no value yet.
package credentials

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openlearnhq/coursegate/internal/config"
	"github.com/openlearnhq/coursegate/internal/store"
	"github.com/openlearnhq/coursegate/pkg/logger"
)

// Setting names understood by the source.
const (
	SettingTelegram = "telegram"
	SettingCommerce = "commerce"
)

// Telegram holds the messaging transport credentials.
type Telegram struct {
	BotToken string `json:"bot_token"`
}

// Commerce holds the order-verification API credentials.
type Commerce struct {
	StoreURL       string `json:"store_url"`
	ConsumerKey    string `json:"consumer_key"`
	ConsumerSecret string `json:"consumer_secret"`
}

// Configured reports whether the commerce credentials are complete.
func (c Commerce) Configured() bool {
	return c.StoreURL != "" && c.ConsumerKey != "" && c.ConsumerSecret != ""
}

// Source reads credentials from the settings store with config fallbacks.
// Both named configurations are independently updatable at runtime through
// the settings API; Source always reads the current value.
type Source struct {
	settings store.SettingsStore
	telegram config.TelegramConfig
	commerce config.CommerceConfig
	log      logger.Logger
}

// NewSource creates a credential source backed by the settings store.
func NewSource(settings store.SettingsStore, telegram config.TelegramConfig, commerce config.CommerceConfig, log logger.Logger) *Source {
	return &Source{
		settings: settings,
		telegram: telegram,
		commerce: commerce,
		log:      log.WithFields(logger.StringField("component", "credentials")),
	}
}

// EnsureDefaults creates the named settings seeded from process configuration
// when they do not exist yet. Idempotent; called once at startup so a first
// run does not fail for lack of configuration.
func (s *Source) EnsureDefaults(ctx context.Context) error {
	telegramSeed, err := json.Marshal(Telegram{BotToken: s.telegram.BotToken})
	if err != nil {
		return fmt.Errorf("marshal telegram defaults: %w", err)
	}
	if err := s.settings.EnsureSetting(ctx, SettingTelegram, telegramSeed); err != nil {
		return fmt.Errorf("ensure telegram setting: %w", err)
	}

	commerceSeed, err := json.Marshal(Commerce{
		StoreURL:       s.commerce.StoreURL,
		ConsumerKey:    s.commerce.ConsumerKey,
		ConsumerSecret: s.commerce.ConsumerSecret,
	})
	if err != nil {
		return fmt.Errorf("marshal commerce defaults: %w", err)
	}
	if err := s.settings.EnsureSetting(ctx, SettingCommerce, commerceSeed); err != nil {
		return fmt.Errorf("ensure commerce setting: %w", err)
	}

	return nil
}

// Telegram returns the current Telegram credentials. The stored value wins;
// the process configuration only fills in when the store holds no token.
func (s *Source) Telegram(ctx context.Context) (Telegram, error) {
	var creds Telegram

	setting, err := s.settings.GetSetting(ctx, SettingTelegram)
	if err != nil {
		return creds, fmt.Errorf("read telegram setting: %w", err)
	}
	if setting != nil {
		if err := json.Unmarshal(setting.Data, &creds); err != nil {
			return creds, fmt.Errorf("decode telegram setting: %w", err)
		}
	}

	if creds.BotToken == "" {
		creds.BotToken = s.telegram.BotToken
	}
	return creds, nil
}

// Commerce returns the current commerce credentials, with config fallback.
func (s *Source) Commerce(ctx context.Context) (Commerce, error) {
	var creds Commerce

	setting, err := s.settings.GetSetting(ctx, SettingCommerce)
	if err != nil {
		return creds, fmt.Errorf("read commerce setting: %w", err)
	}
	if setting != nil {
		if err := json.Unmarshal(setting.Data, &creds); err != nil {
			return creds, fmt.Errorf("decode commerce setting: %w", err)
		}
	}

	if !creds.Configured() && s.commerce.Configured() {
		creds = Commerce{
			StoreURL:       s.commerce.StoreURL,
			ConsumerKey:    s.commerce.ConsumerKey,
			ConsumerSecret: s.commerce.ConsumerSecret,
		}
	}
	return creds, nil
}

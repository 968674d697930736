package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	IMAP IMAPConfig
	SMTP SMTPConfig

	// Language model settings
	AnthropicAPIKey  string
	AnthropicBaseURL string
	Model            string
	MaxTokens        int

	// Session policy
	FreshnessWindow time.Duration
	RefreshWindow   time.Duration
	IMAPTimeout     time.Duration

	// Search agent settings
	AgentMaxRounds  int
	AgentMaxResults int
	DefaultFolder   string

	// Cache settings
	CachePath string
	LogLevel  string
}

// IMAPConfig holds the mailbox connection settings
type IMAPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
}

// SMTPConfig holds the outbound mail settings
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
}

// SecretSource looks up stored secrets by key.
type SecretSource interface {
	Get(key string) (string, error)
}

var defaults = map[string]interface{}{
	"imap_port":          993,
	"smtp_port":          587,
	"claude_model":       "claude-sonnet-4-20250514",
	"anthropic_base_url": "https://api.anthropic.com",
	"max_tokens":         2048,
	"cache_path":         "./data/mail_cache.db",
	"log_level":          "info",
	"freshness_window":   "5m",
	"refresh_window":     "8m",
	"imap_timeout":       "60s",
	"agent_max_rounds":   5,
	"agent_max_results":  20,
	"default_folder":     "INBOX",
}

// keys without a default still need binding so that AutomaticEnv sees them.
var envOnly = []string{
	"imap_host", "imap_user", "imap_password",
	"smtp_host", "smtp_user", "smtp_password",
	"anthropic_api_key",
}

// LoadConfig loads configuration from the environment and, when path is not
// empty, a YAML file. Environment variables win over the file. An empty
// imap_password is looked up in secrets under "imap:<user>".
func LoadConfig(path string, secrets SecretSource) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	for _, key := range envOnly {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var pathErr *os.PathError
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	cfg := &Config{
		IMAP: IMAPConfig{
			Host:     v.GetString("imap_host"),
			Port:     v.GetInt("imap_port"),
			User:     v.GetString("imap_user"),
			Password: v.GetString("imap_password"),
		},
		SMTP: SMTPConfig{
			Host:     v.GetString("smtp_host"),
			Port:     v.GetInt("smtp_port"),
			User:     v.GetString("smtp_user"),
			Password: v.GetString("smtp_password"),
		},
		AnthropicAPIKey:  v.GetString("anthropic_api_key"),
		AnthropicBaseURL: v.GetString("anthropic_base_url"),
		Model:            v.GetString("claude_model"),
		MaxTokens:        v.GetInt("max_tokens"),
		FreshnessWindow:  v.GetDuration("freshness_window"),
		RefreshWindow:    v.GetDuration("refresh_window"),
		IMAPTimeout:      v.GetDuration("imap_timeout"),
		AgentMaxRounds:   v.GetInt("agent_max_rounds"),
		AgentMaxResults:  v.GetInt("agent_max_results"),
		DefaultFolder:    v.GetString("default_folder"),
		CachePath:        v.GetString("cache_path"),
		LogLevel:         v.GetString("log_level"),
	}

	if cfg.IMAP.Password == "" && cfg.IMAP.User != "" && secrets != nil {
		if secret, err := secrets.Get("imap:" + cfg.IMAP.User); err == nil {
			cfg.IMAP.Password = secret
		}
	}
	cfg.SMTP = DeriveSMTP(cfg.IMAP, cfg.SMTP)

	return cfg, nil
}

// DeriveSMTP fills unset SMTP fields from the IMAP account: the host with
// "imap" replaced by "smtp", and the same user and password.
func DeriveSMTP(imap IMAPConfig, smtp SMTPConfig) SMTPConfig {
	if smtp.Host == "" && imap.Host != "" {
		smtp.Host = strings.Replace(imap.Host, "imap", "smtp", 1)
	}
	if smtp.Port == 0 {
		smtp.Port = 587
	}
	if smtp.User == "" {
		smtp.User = imap.User
	}
	if smtp.Password == "" {
		smtp.Password = imap.Password
	}
	return smtp
}

// HasMailbox reports whether enough is configured to connect at startup.
func (c *Config) HasMailbox() bool {
	return c.IMAP.Host != "" && c.IMAP.User != "" && c.IMAP.Password != ""
}

// HasModel reports whether a language model API key is configured.
func (c *Config) HasModel() bool {
	return c.AnthropicAPIKey != ""
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.CachePath == "" {
		return fmt.Errorf("CACHE_PATH is required")
	}

	if c.IMAP.Port < 1 || c.IMAP.Port > 65535 {
		return fmt.Errorf("invalid IMAP_PORT: %d", c.IMAP.Port)
	}
	if c.SMTP.Port < 1 || c.SMTP.Port > 65535 {
		return fmt.Errorf("invalid SMTP_PORT: %d", c.SMTP.Port)
	}

	if c.FreshnessWindow <= 0 {
		return fmt.Errorf("FRESHNESS_WINDOW must be positive")
	}
	if c.RefreshWindow <= 0 {
		return fmt.Errorf("REFRESH_WINDOW must be positive")
	}
	if c.FreshnessWindow > c.RefreshWindow {
		return fmt.Errorf("FRESHNESS_WINDOW (%s) must not exceed REFRESH_WINDOW (%s)", c.FreshnessWindow, c.RefreshWindow)
	}

	if c.AgentMaxRounds < 1 {
		return fmt.Errorf("AGENT_MAX_ROUNDS must be at least 1")
	}
	if c.AgentMaxResults < 1 {
		return fmt.Errorf("AGENT_MAX_RESULTS must be at least 1")
	}
	if c.MaxTokens < 1 {
		return fmt.Errorf("MAX_TOKENS must be at least 1")
	}

	return nil
}

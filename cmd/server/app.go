package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/brandon/mail-agent/internal/agent"
	"github.com/brandon/mail-agent/internal/cache"
	"github.com/brandon/mail-agent/internal/config"
	"github.com/brandon/mail-agent/internal/credential"
	"github.com/brandon/mail-agent/internal/email"
	"github.com/brandon/mail-agent/internal/llm"
	"github.com/brandon/mail-agent/internal/mcp"
	"github.com/brandon/mail-agent/internal/tools"
)

// app holds the wired services of one process.
type app struct {
	cfg       *config.Config
	logger    *logrus.Logger
	cache     *cache.Cache
	store     *cache.Store
	manager   *email.Manager
	agent     *agent.SearchAgent
	assistant *agent.Assistant
}

func newLogger() *logrus.Logger {
	// stdout carries the MCP stream, so logs go to stderr.
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stderr)
	return logger
}

func newApp(configPath string) (*app, error) {
	logger := newLogger()

	secrets, err := openCredentials(configPath)
	if err != nil {
		logger.WithError(err).Warn("Keyring unavailable, stored passwords disabled")
	}

	var source config.SecretSource
	if secrets != nil {
		source = secrets
	}
	cfg, err := config.LoadConfig(configPath, source)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	mailCache, err := cache.NewCache(cfg.CachePath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}
	store := cache.NewStore(mailCache, logger)

	creds := email.Credentials{
		Host:   cfg.IMAP.Host,
		Port:   cfg.IMAP.Port,
		User:   cfg.IMAP.User,
		Secret: cfg.IMAP.Password,
	}
	policy := email.Policy{
		FreshnessWindow: cfg.FreshnessWindow,
		RefreshWindow:   cfg.RefreshWindow,
	}
	session := email.NewSession(creds, &email.IMAPDialer{Timeout: cfg.IMAPTimeout, Logger: logger}, policy, logger)
	sender := email.NewSMTPSender(email.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.User,
		Password: cfg.SMTP.Password,
	}, logger)

	var secretStore email.SecretStore
	if secrets != nil {
		secretStore = secrets
	}
	manager := email.NewManager(session, sender, store, secretStore, logger)
	if session.Configured() {
		manager.Adopt(creds)
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		cache:   mailCache,
		store:   store,
		manager: manager,
	}

	if cfg.HasModel() {
		client := llm.New(llm.Config{
			APIKey:    cfg.AnthropicAPIKey,
			Model:     cfg.Model,
			BaseURL:   cfg.AnthropicBaseURL,
			MaxTokens: cfg.MaxTokens,
		})
		a.agent = agent.NewSearchAgent(client, cfg.AgentMaxRounds, cfg.AgentMaxResults, logger)
		a.assistant = agent.NewAssistant(client, logger)
		logger.WithField("model", client.Model()).Info("AI features enabled")
	} else {
		logger.Warn("ANTHROPIC_API_KEY not set, AI features disabled")
	}

	return a, nil
}

// connectAtStartup tries the configured account once. Failure is not fatal:
// the session reconnects on the first tool call.
func (a *app) connectAtStartup() {
	if !a.cfg.HasMailbox() {
		a.logger.Info("No mailbox configured, waiting for the connect tool")
		return
	}
	if err := a.manager.Session().Connect(); err != nil {
		a.logger.WithError(err).Warn("Could not connect at startup")
	}
}

func (a *app) server() (*mcp.Server, error) {
	deps := tools.Deps{
		Config: a.cfg,
		Mail:   a.manager,
		Store:  a.store,
		Logger: a.logger,
	}
	if a.agent != nil {
		deps.Agent = a.agent
		deps.Assistant = a.assistant
	}

	registry, err := tools.NewRegistry(deps)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool registry: %w", err)
	}
	return mcp.NewServer(registry, "mail-agent", version, a.logger), nil
}

func (a *app) close() {
	a.manager.Close()
	if err := a.cache.Close(); err != nil {
		a.logger.WithError(err).Warn("Failed to close cache")
	}
}

// openCredentials opens the keyring; its file fallback lives next to the
// config file, or in the user config directory.
func openCredentials(configPath string) (*credential.Store, error) {
	dir := ""
	if configPath != "" {
		dir = filepath.Dir(configPath)
	} else if base, err := os.UserConfigDir(); err == nil {
		dir = filepath.Join(base, "mail-agent")
	}
	return credential.Open(dir)
}

package tools

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/brandon/mail-agent/internal/config"
	"github.com/brandon/mail-agent/internal/email"
)

// ConnectTool switches the server to another mail account
type ConnectTool struct {
	mail   Mail
	logger *logrus.Logger
}

// NewConnectTool creates a new connect tool
func NewConnectTool(d Deps) *ConnectTool {
	return &ConnectTool{mail: d.Mail, logger: d.Logger}
}

// Name returns the tool name
func (t *ConnectTool) Name() string {
	return "connect"
}

// Description returns the tool description
func (t *ConnectTool) Description() string {
	return "Connect to an IMAP account. SMTP settings default to the IMAP ones with the host's \"imap\" replaced by \"smtp\"."
}

// InputSchema returns the JSON schema for tool inputs
func (t *ConnectTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"imap_host":     map[string]interface{}{"type": "string", "description": "IMAP server host"},
			"imap_port":     map[string]interface{}{"type": "integer", "description": "IMAP port (default 993)"},
			"imap_user":     map[string]interface{}{"type": "string", "description": "Login name"},
			"imap_password": map[string]interface{}{"type": "string", "description": "Password or app password"},
			"smtp_host":     map[string]interface{}{"type": "string", "description": "Optional: SMTP server host"},
			"smtp_port":     map[string]interface{}{"type": "integer", "description": "Optional: SMTP port (default 587)"},
			"smtp_user":     map[string]interface{}{"type": "string", "description": "Optional: SMTP login name"},
			"smtp_password": map[string]interface{}{"type": "string", "description": "Optional: SMTP password"},
			"remember": map[string]interface{}{
				"type":        "boolean",
				"description": "Optional: store the password in the system keyring",
			},
		},
		"required": []string{"imap_host", "imap_user", "imap_password"},
	}
}

// Execute executes the tool
func (t *ConnectTool) Execute(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	host, err := requiredString(params, "imap_host")
	if err != nil {
		return nil, err
	}
	user, err := requiredString(params, "imap_user")
	if err != nil {
		return nil, err
	}
	password, ok := params["imap_password"].(string)
	if !ok || password == "" {
		return nil, fmt.Errorf("imap_password is required")
	}
	port, err := intParam(params, "imap_port", 993)
	if err != nil {
		return nil, err
	}
	smtpPort, err := intParam(params, "smtp_port", 587)
	if err != nil {
		return nil, err
	}
	smtpPassword, _ := params["smtp_password"].(string)

	imap := config.IMAPConfig{Host: host, Port: port, User: user, Password: password}
	smtp := config.DeriveSMTP(imap, config.SMTPConfig{
		Host:     stringParam(params, "smtp_host"),
		Port:     smtpPort,
		User:     stringParam(params, "smtp_user"),
		Password: smtpPassword,
	})

	creds := email.Credentials{Host: host, Port: port, User: user, Secret: password}
	sender := email.SMTPConfig{Host: smtp.Host, Port: smtp.Port, Username: smtp.User, Password: smtp.Password}
	if err := t.mail.Connect(ctx, creds, sender, boolParam(params, "remember")); err != nil {
		return nil, fmt.Errorf("connection failed: %w", err)
	}

	t.logger.WithField("host", host).Info("Connected to mail account")
	return map[string]interface{}{
		"status": "connected",
		"user":   user,
	}, nil
}

// StatusTool reports whether the mailbox connection is alive
type StatusTool struct {
	mail      Mail
	hasModel  bool
	hasSearch bool
}

// NewStatusTool creates a new status tool
func NewStatusTool(d Deps) *StatusTool {
	return &StatusTool{mail: d.Mail, hasModel: d.Assistant != nil, hasSearch: d.Agent != nil}
}

// Name returns the tool name
func (t *StatusTool) Name() string {
	return "status"
}

// Description returns the tool description
func (t *StatusTool) Description() string {
	return "Report whether the mailbox is connected and which AI features are available"
}

// InputSchema returns the JSON schema for tool inputs
func (t *StatusTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

// Execute executes the tool
func (t *StatusTool) Execute(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	status := t.mail.Status()
	return map[string]interface{}{
		"connected":  status.Connected,
		"user":       status.User,
		"ai_enabled": t.hasModel && t.hasSearch,
	}, nil
}

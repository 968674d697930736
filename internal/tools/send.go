package tools

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/brandon/mail-agent/internal/email"
)

// SendEmailTool sends a new email
type SendEmailTool struct {
	mail   Mail
	logger *logrus.Logger
}

// NewSendEmailTool creates a new send email tool
func NewSendEmailTool(d Deps) *SendEmailTool {
	return &SendEmailTool{mail: d.Mail, logger: d.Logger}
}

// Name returns the tool name
func (t *SendEmailTool) Name() string {
	return "send_email"
}

// Description returns the tool description
func (t *SendEmailTool) Description() string {
	return "Send a plain-text email from the connected account, optionally as a reply"
}

// InputSchema returns the JSON schema for tool inputs
func (t *SendEmailTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"to": map[string]interface{}{
				"type":        "string",
				"description": "Recipient email address(es) (comma-separated)",
			},
			"subject": map[string]interface{}{
				"type":        "string",
				"description": "Email subject",
			},
			"body": map[string]interface{}{
				"type":        "string",
				"description": "Plain text body",
			},
			"in_reply_to": map[string]interface{}{
				"type":        "string",
				"description": "Optional: Message-ID of the email being answered",
			},
		},
		"required": []string{"to", "subject", "body"},
	}
}

// Execute executes the tool
func (t *SendEmailTool) Execute(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	to := splitList(stringParam(params, "to"))
	if len(to) == 0 {
		return nil, fmt.Errorf("to is required")
	}

	subject, err := requiredString(params, "subject")
	if err != nil {
		return nil, err
	}

	body, ok := params["body"].(string)
	if !ok || body == "" {
		return nil, fmt.Errorf("body is required")
	}

	msg := &email.OutgoingMessage{
		To:        to,
		Subject:   subject,
		Body:      body,
		InReplyTo: stringParam(params, "in_reply_to"),
	}
	if err := t.mail.SendEmail(msg); err != nil {
		return nil, err
	}

	t.logger.WithField("recipients", len(to)).Info("Email sent")
	return map[string]interface{}{
		"success": true,
		"message": "Email sent successfully",
	}, nil
}

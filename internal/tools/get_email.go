package tools

import (
	"context"
	"fmt"

	"github.com/brandon/mail-agent/pkg/types"
)

// GetEmailTool retrieves a full email by UID
type GetEmailTool struct {
	mail          Mail
	defaultFolder string
}

// NewGetEmailTool creates a new get email tool
func NewGetEmailTool(d Deps) *GetEmailTool {
	return &GetEmailTool{mail: d.Mail, defaultFolder: d.Config.DefaultFolder}
}

// Name returns the tool name
func (t *GetEmailTool) Name() string {
	return "get_email"
}

// Description returns the tool description
func (t *GetEmailTool) Description() string {
	return "Retrieve a full email (bodies, recipients, attachment list) by UID"
}

// InputSchema returns the JSON schema for tool inputs
func (t *GetEmailTool) InputSchema() map[string]interface{} {
	return messageSchema(nil)
}

// Execute executes the tool
func (t *GetEmailTool) Execute(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	if err := requireMailbox(t.mail); err != nil {
		return nil, err
	}
	return fetchMessage(t.mail, params, t.defaultFolder)
}

// messageSchema is the schema of tools addressing one message, plus extra
// properties.
func messageSchema(extra map[string]interface{}, required ...string) map[string]interface{} {
	properties := map[string]interface{}{
		"uid": map[string]interface{}{
			"type":        "string",
			"description": "Email UID (from list_inbox or search results)",
		},
		"folder": map[string]interface{}{
			"type":        "string",
			"description": "Optional: Folder containing the email (default INBOX)",
		},
	}
	for k, v := range extra {
		properties[k] = v
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": properties,
		"required":   append([]string{"uid"}, required...),
	}
}

func fetchMessage(mail Mail, params map[string]interface{}, defaultFolder string) (*types.ParsedEmail, error) {
	uid, err := uidParam(params, "uid")
	if err != nil {
		return nil, err
	}
	folder := stringParam(params, "folder")
	if folder == "" {
		folder = defaultFolder
	}

	msg, err := mail.GetEmail(folder, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to get email %s: %w", uid, err)
	}
	return msg, nil
}

package tools

import (
	"context"
	"fmt"
)

const (
	defaultInboxLimit = 50
	maxInboxLimit     = 200
)

// ListFoldersTool lists available email folders
type ListFoldersTool struct {
	mail Mail
}

// NewListFoldersTool creates a new list folders tool
func NewListFoldersTool(d Deps) *ListFoldersTool {
	return &ListFoldersTool{mail: d.Mail}
}

// Name returns the tool name
func (t *ListFoldersTool) Name() string {
	return "list_folders"
}

// Description returns the tool description
func (t *ListFoldersTool) Description() string {
	return "List available mailboxes/folders of the connected account"
}

// InputSchema returns the JSON schema for tool inputs
func (t *ListFoldersTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

// Execute executes the tool
func (t *ListFoldersTool) Execute(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	if err := requireMailbox(t.mail); err != nil {
		return nil, err
	}

	folders, err := t.mail.ListFolders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	return map[string]interface{}{"folders": folders}, nil
}

// ListInboxTool lists the newest messages of a folder
type ListInboxTool struct {
	mail          Mail
	defaultFolder string
}

// NewListInboxTool creates a new list inbox tool
func NewListInboxTool(d Deps) *ListInboxTool {
	return &ListInboxTool{mail: d.Mail, defaultFolder: d.Config.DefaultFolder}
}

// Name returns the tool name
func (t *ListInboxTool) Name() string {
	return "list_inbox"
}

// Description returns the tool description
func (t *ListInboxTool) Description() string {
	return "List the newest emails of a folder, newest first"
}

// InputSchema returns the JSON schema for tool inputs
func (t *ListInboxTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"folder": map[string]interface{}{
				"type":        "string",
				"description": "Optional: Folder to list (default INBOX)",
			},
			"limit": map[string]interface{}{
				"type":        "integer",
				"description": "Optional: Maximum number of emails (1-200, default 50)",
				"minimum":     1,
				"maximum":     maxInboxLimit,
			},
		},
	}
}

// Execute executes the tool
func (t *ListInboxTool) Execute(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	if err := requireMailbox(t.mail); err != nil {
		return nil, err
	}

	limit, err := intParam(params, "limit", defaultInboxLimit)
	if err != nil {
		return nil, err
	}
	if limit < 1 || limit > maxInboxLimit {
		return nil, fmt.Errorf("limit must be between 1 and %d", maxInboxLimit)
	}
	folder := stringParam(params, "folder")
	if folder == "" {
		folder = t.defaultFolder
	}

	inbox, err := t.mail.ListInbox(ctx, folder, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", folder, err)
	}
	return inbox, nil
}

package tools

import (
	"context"
	"fmt"
)

// SummarizeEmailTool summarizes one email
type SummarizeEmailTool struct {
	mail          Mail
	assistant     Assistant
	defaultFolder string
}

// NewSummarizeEmailTool creates a new summarize tool
func NewSummarizeEmailTool(d Deps) *SummarizeEmailTool {
	return &SummarizeEmailTool{mail: d.Mail, assistant: d.Assistant, defaultFolder: d.Config.DefaultFolder}
}

// Name returns the tool name
func (t *SummarizeEmailTool) Name() string {
	return "summarize_email"
}

// Description returns the tool description
func (t *SummarizeEmailTool) Description() string {
	return "Summarize an email in two or three sentences"
}

// InputSchema returns the JSON schema for tool inputs
func (t *SummarizeEmailTool) InputSchema() map[string]interface{} {
	return messageSchema(nil)
}

// Execute executes the tool
func (t *SummarizeEmailTool) Execute(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	if err := requireModel(t.mail, t.assistant); err != nil {
		return nil, err
	}
	msg, err := fetchMessage(t.mail, params, t.defaultFolder)
	if err != nil {
		return nil, err
	}

	summary, err := t.assistant.Summarize(ctx, msg)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"summary": summary}, nil
}

// DraftReplyTool drafts a reply to one email
type DraftReplyTool struct {
	mail          Mail
	assistant     Assistant
	defaultFolder string
}

// NewDraftReplyTool creates a new draft reply tool
func NewDraftReplyTool(d Deps) *DraftReplyTool {
	return &DraftReplyTool{mail: d.Mail, assistant: d.Assistant, defaultFolder: d.Config.DefaultFolder}
}

// Name returns the tool name
func (t *DraftReplyTool) Name() string {
	return "draft_reply"
}

// Description returns the tool description
func (t *DraftReplyTool) Description() string {
	return "Draft a reply to an email following an instruction. Nothing is sent."
}

// InputSchema returns the JSON schema for tool inputs
func (t *DraftReplyTool) InputSchema() map[string]interface{} {
	return messageSchema(map[string]interface{}{
		"instruction": map[string]interface{}{
			"type":        "string",
			"description": "What the reply should say, e.g. \"accept, propose Tuesday\"",
		},
	}, "instruction")
}

// Execute executes the tool
func (t *DraftReplyTool) Execute(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	if err := requireModel(t.mail, t.assistant); err != nil {
		return nil, err
	}
	instruction, err := requiredString(params, "instruction")
	if err != nil {
		return nil, err
	}
	msg, err := fetchMessage(t.mail, params, t.defaultFolder)
	if err != nil {
		return nil, err
	}

	return t.assistant.DraftReply(ctx, msg, instruction)
}

// CategorizeEmailsTool sorts emails into categories
type CategorizeEmailsTool struct {
	mail          Mail
	assistant     Assistant
	defaultFolder string
}

// NewCategorizeEmailsTool creates a new categorize tool
func NewCategorizeEmailsTool(d Deps) *CategorizeEmailsTool {
	return &CategorizeEmailsTool{mail: d.Mail, assistant: d.Assistant, defaultFolder: d.Config.DefaultFolder}
}

// Name returns the tool name
func (t *CategorizeEmailsTool) Name() string {
	return "categorize_emails"
}

// Description returns the tool description
func (t *CategorizeEmailsTool) Description() string {
	return "Sort emails into categories such as Action Required, FYI, Marketing, Personal, Finance, Social and Spam"
}

// InputSchema returns the JSON schema for tool inputs
func (t *CategorizeEmailsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"uids": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"description": "UIDs of the emails to categorize",
			},
			"folder": map[string]interface{}{
				"type":        "string",
				"description": "Optional: Folder containing the emails (default INBOX)",
			},
		},
		"required": []string{"uids"},
	}
}

// Execute executes the tool
func (t *CategorizeEmailsTool) Execute(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	if err := requireModel(t.mail, t.assistant); err != nil {
		return nil, err
	}
	uids, err := uidListParam(params, "uids")
	if err != nil {
		return nil, err
	}
	folder := stringParam(params, "folder")
	if folder == "" {
		folder = t.defaultFolder
	}

	summaries, err := t.mail.FetchSummaries(folder, uids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch emails: %w", err)
	}
	if len(summaries) == 0 {
		return map[string]interface{}{"results": []interface{}{}}, nil
	}

	categories, err := t.assistant.Categorize(ctx, summaries)
	if err != nil {
		return nil, err
	}

	subjects := make(map[string]string, len(summaries))
	for _, s := range summaries {
		subjects[s.UID] = s.Subject
	}
	results := make([]map[string]interface{}, 0, len(categories))
	for _, c := range categories {
		results = append(results, map[string]interface{}{
			"uid":      c.UID,
			"subject":  subjects[c.UID],
			"category": c.Category,
		})
	}
	return map[string]interface{}{"results": results}, nil
}

// ActionItemsTool extracts action items from one email
type ActionItemsTool struct {
	mail          Mail
	assistant     Assistant
	defaultFolder string
}

// NewActionItemsTool creates a new action items tool
func NewActionItemsTool(d Deps) *ActionItemsTool {
	return &ActionItemsTool{mail: d.Mail, assistant: d.Assistant, defaultFolder: d.Config.DefaultFolder}
}

// Name returns the tool name
func (t *ActionItemsTool) Name() string {
	return "action_items"
}

// Description returns the tool description
func (t *ActionItemsTool) Description() string {
	return "List the tasks and requests an email asks of the reader"
}

// InputSchema returns the JSON schema for tool inputs
func (t *ActionItemsTool) InputSchema() map[string]interface{} {
	return messageSchema(nil)
}

// Execute executes the tool
func (t *ActionItemsTool) Execute(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	if err := requireModel(t.mail, t.assistant); err != nil {
		return nil, err
	}
	msg, err := fetchMessage(t.mail, params, t.defaultFolder)
	if err != nil {
		return nil, err
	}

	items, err := t.assistant.ActionItems(ctx, msg)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"items": items}, nil
}

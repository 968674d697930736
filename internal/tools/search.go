package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/brandon/mail-agent/internal/cache"
	"github.com/brandon/mail-agent/pkg/types"
)

// SearchEmailsTool answers natural-language searches with the search agent
type SearchEmailsTool struct {
	mail          Mail
	agent         Searcher
	store         *cache.Store
	defaultFolder string
	logger        *logrus.Logger
	now           func() time.Time
}

// NewSearchEmailsTool creates a new search emails tool
func NewSearchEmailsTool(d Deps) *SearchEmailsTool {
	return &SearchEmailsTool{
		mail:          d.Mail,
		agent:         d.Agent,
		store:         d.Store,
		defaultFolder: d.Config.DefaultFolder,
		logger:        d.Logger,
		now:           time.Now,
	}
}

// Name returns the tool name
func (t *SearchEmailsTool) Name() string {
	return "search_emails"
}

// Description returns the tool description
func (t *SearchEmailsTool) Description() string {
	return "Search the mailbox with a natural-language request, e.g. \"unread mail from Alice about the budget since last week\". Returns a summary and the matching emails."
}

// InputSchema returns the JSON schema for tool inputs
func (t *SearchEmailsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "What to look for, in plain language",
			},
			"folder": map[string]interface{}{
				"type":        "string",
				"description": "Optional: Folder to search (default INBOX)",
			},
		},
		"required": []string{"query"},
	}
}

// Execute executes the tool
func (t *SearchEmailsTool) Execute(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	if err := requireModel(t.mail, t.agent); err != nil {
		return nil, err
	}
	query, err := requiredString(params, "query")
	if err != nil {
		return nil, err
	}
	folder := stringParam(params, "folder")
	if folder == "" {
		folder = t.defaultFolder
	}

	outcome, err := t.agent.Run(ctx, t.mail, query, folder)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	t.mail.CacheResults(ctx, folder, outcome.Matches)
	if t.store != nil {
		run := types.SearchRun{
			ID:         outcome.ID,
			Query:      query,
			Folder:     folder,
			IMAPQuery:  outcome.Query,
			Summary:    outcome.Summary,
			MatchCount: len(outcome.Matches),
			Rounds:     outcome.Rounds,
			Exhausted:  outcome.Exhausted,
			CreatedAt:  t.now().UTC(),
		}
		if err := t.store.RecordSearch(ctx, run); err != nil {
			t.logger.WithError(err).WithField("search_id", outcome.ID).Warn("Failed to record search")
		}
	}

	return outcome, nil
}

// SearchHistoryTool lists recent natural-language searches
type SearchHistoryTool struct {
	store *cache.Store
}

// NewSearchHistoryTool creates a new search history tool
func NewSearchHistoryTool(d Deps) *SearchHistoryTool {
	return &SearchHistoryTool{store: d.Store}
}

// Name returns the tool name
func (t *SearchHistoryTool) Name() string {
	return "search_history"
}

// Description returns the tool description
func (t *SearchHistoryTool) Description() string {
	return "List recent search_emails runs, newest first, with the IMAP query each one ended on"
}

// InputSchema returns the JSON schema for tool inputs
func (t *SearchHistoryTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"limit": map[string]interface{}{
				"type":        "integer",
				"description": "Optional: Maximum number of runs (default 20, max 200)",
			},
		},
	}
}

// Execute executes the tool
func (t *SearchHistoryTool) Execute(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	if t.store == nil {
		return nil, ErrNoCache
	}
	limit, err := intParam(params, "limit", 0)
	if err != nil {
		return nil, err
	}

	runs, err := t.store.RecentSearches(ctx, limit)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"searches": runs}, nil
}

// SearchCachedTool searches the local cache without touching the server
type SearchCachedTool struct {
	store *cache.Store
}

// NewSearchCachedTool creates a new search cached tool
func NewSearchCachedTool(d Deps) *SearchCachedTool {
	return &SearchCachedTool{store: d.Store}
}

// Name returns the tool name
func (t *SearchCachedTool) Name() string {
	return "search_cached"
}

// Description returns the tool description
func (t *SearchCachedTool) Description() string {
	return "Full-text search over subjects and senders of emails seen before, without contacting the server"
}

// InputSchema returns the JSON schema for tool inputs
func (t *SearchCachedTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Optional: Words to match in subject or sender",
			},
			"folder": map[string]interface{}{
				"type":        "string",
				"description": "Optional: Restrict to one folder",
			},
			"unread_only": map[string]interface{}{
				"type":        "boolean",
				"description": "Optional: Only unread emails",
			},
			"limit": map[string]interface{}{
				"type":        "integer",
				"description": "Optional: Maximum number of results (default 100, max 1000)",
			},
		},
	}
}

// Execute executes the tool
func (t *SearchCachedTool) Execute(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	if t.store == nil {
		return nil, ErrNoCache
	}
	limit, err := intParam(params, "limit", 0)
	if err != nil {
		return nil, err
	}

	opts := cache.SearchOptions{
		Term:       stringParam(params, "query"),
		UnreadOnly: boolParam(params, "unread_only"),
		Limit:      limit,
	}
	if folder := stringParam(params, "folder"); folder != "" {
		opts.Folder = &folder
	}

	results, err := t.store.SearchCached(ctx, opts)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"emails": results,
		"count":  len(results),
	}, nil
}

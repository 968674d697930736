package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/brandon/mail-agent/internal/agent"
	"github.com/brandon/mail-agent/internal/cache"
	"github.com/brandon/mail-agent/internal/config"
	"github.com/brandon/mail-agent/internal/email"
	"github.com/brandon/mail-agent/pkg/types"
)

var (
	// ErrNotConnected is returned by mailbox tools before an account is set up.
	ErrNotConnected = errors.New("not connected to email server")
	// ErrNoModel is returned by AI tools when no API key is configured.
	ErrNoModel = errors.New("anthropic API key not configured")
	// ErrNoCache is returned by history tools when the cache is disabled.
	ErrNoCache = errors.New("local cache is not available")
)

// Mail is the mailbox service the tools drive.
type Mail interface {
	agent.Mailbox
	Configured() bool
	Status() email.Status
	Account() email.Account
	Connect(ctx context.Context, creds email.Credentials, smtp email.SMTPConfig, remember bool) error
	ListFolders(ctx context.Context) ([]string, error)
	ListInbox(ctx context.Context, folder string, limit int) (*email.Inbox, error)
	GetEmail(folder, uid string) (*types.ParsedEmail, error)
	FetchSummaries(folder string, uids []string) ([]types.MessageSummary, error)
	CacheResults(ctx context.Context, folder string, emails []types.MessageSummary)
	SendEmail(msg *email.OutgoingMessage) error
}

// Searcher answers natural-language mailbox searches.
type Searcher interface {
	Run(ctx context.Context, mailbox agent.Mailbox, query, folder string) (*agent.Outcome, error)
}

// Assistant runs single-shot prompts about messages.
type Assistant interface {
	Summarize(ctx context.Context, email *types.ParsedEmail) (string, error)
	DraftReply(ctx context.Context, email *types.ParsedEmail, instruction string) (*agent.Draft, error)
	Categorize(ctx context.Context, summaries []types.MessageSummary) ([]agent.Category, error)
	ActionItems(ctx context.Context, email *types.ParsedEmail) ([]string, error)
}

// Deps are the services shared by all tools. Store, Agent and Assistant may
// be nil; the tools needing them then fail with ErrNoCache or ErrNoModel.
type Deps struct {
	Config    *config.Config
	Mail      Mail
	Store     *cache.Store
	Agent     Searcher
	Assistant Assistant
	Logger    *logrus.Logger
}

// Tool represents an MCP tool
type Tool interface {
	Name() string
	Description() string
	InputSchema() map[string]interface{}
	Execute(ctx context.Context, params map[string]interface{}) (interface{}, error)
}

// Registry manages MCP tools
type Registry struct {
	deps  Deps
	order []string
	tools map[string]Tool
}

// NewRegistry creates a new tool registry
func NewRegistry(deps Deps) (*Registry, error) {
	if deps.Mail == nil {
		return nil, fmt.Errorf("mail service is required")
	}
	if deps.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Logger == nil {
		deps.Logger = logrus.New()
	}

	reg := &Registry{
		deps:  deps,
		tools: make(map[string]Tool),
	}
	reg.registerTools()
	return reg, nil
}

// registerTools registers all available tools
func (r *Registry) registerTools() {
	d := r.deps
	toolList := []Tool{
		NewConnectTool(d),
		NewStatusTool(d),
		NewListFoldersTool(d),
		NewListInboxTool(d),
		NewGetEmailTool(d),
		NewSearchEmailsTool(d),
		NewSearchHistoryTool(d),
		NewSearchCachedTool(d),
		NewSummarizeEmailTool(d),
		NewDraftReplyTool(d),
		NewCategorizeEmailsTool(d),
		NewActionItemsTool(d),
		NewSendEmailTool(d),
	}

	for _, tool := range toolList {
		r.tools[tool.Name()] = tool
		r.order = append(r.order, tool.Name())
		d.Logger.WithField("tool", tool.Name()).Debug("Registered tool")
	}

	d.Logger.WithField("count", len(r.tools)).Info("Registered tools")
}

// GetTool returns a tool by name
func (r *Registry) GetTool(name string) (Tool, bool) {
	tool, exists := r.tools[name]
	return tool, exists
}

// ListTools returns all registered tools in registration order
func (r *Registry) ListTools() []Tool {
	tools := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		tools = append(tools, r.tools[name])
	}
	return tools
}

// GetToolDefinitions returns tool definitions for MCP
func (r *Registry) GetToolDefinitions() []map[string]interface{} {
	definitions := make([]map[string]interface{}, 0, len(r.order))
	for _, tool := range r.ListTools() {
		definitions = append(definitions, map[string]interface{}{
			"name":        tool.Name(),
			"description": tool.Description(),
			"inputSchema": tool.InputSchema(),
		})
	}
	return definitions
}

func requireMailbox(mail Mail) error {
	if !mail.Configured() {
		return ErrNotConnected
	}
	return nil
}

func requireModel(mail Mail, model interface{}) error {
	if err := requireMailbox(mail); err != nil {
		return err
	}
	if model == nil {
		return ErrNoModel
	}
	return nil
}

// Package agent drives language-model conversations over the mailbox.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/brandon/mail-agent/internal/llm"
	"github.com/brandon/mail-agent/internal/search"
	"github.com/brandon/mail-agent/pkg/types"
)

const (
	// SearchToolName is the only tool offered to the model.
	SearchToolName = "imap_search"

	DefaultMaxRounds  = 5
	DefaultMaxResults = 20

	noFinalSummary = "Search completed but did not produce a final summary."
	noResults      = "No emails found matching those criteria."

	oneSearchPerTurn = "Only one search runs per turn. Call imap_search again with these criteria if they are still needed."
)

var searchTool = llm.Tool{
	Name:        SearchToolName,
	Description: "Search the user's email inbox using IMAP criteria. Returns matching email summaries.",
	InputSchema: json.RawMessage(`{
  "type": "object",
  "properties": {
    "from_addr": {"type": "string", "description": "Sender email address or name fragment"},
    "to_addr": {"type": "string", "description": "Recipient email or name"},
    "subject": {"type": "string", "description": "Subject line keyword(s)"},
    "body": {"type": "string", "description": "Body text keyword(s)"},
    "since": {"type": "string", "description": "Date in DD-Mon-YYYY format (e.g. 01-Jan-2025). Only return emails on or after this date."},
    "before": {"type": "string", "description": "Date in DD-Mon-YYYY format. Only return emails before this date."},
    "unseen": {"type": "boolean", "description": "If true, only return unread messages"}
  },
  "required": []
}`),
}

// Mailbox is the part of the mail session the search agent uses.
type Mailbox interface {
	Search(query, folder string) ([]string, error)
	FetchHeaders(uids []string, limit int) ([]types.MessageSummary, error)
}

// ToolModel is a language model that can call tools.
type ToolModel interface {
	CompleteWithTools(ctx context.Context, system string, turns []llm.Turn, tools []llm.Tool) (*llm.Response, error)
}

// Outcome is the result of one search run.
type Outcome struct {
	ID      string                 `json:"id"`
	Summary string                 `json:"summary"`
	Matches []types.MessageSummary `json:"emails"`
	// Query is the last IMAP query executed, "" if none ran.
	Query     string `json:"imap_query"`
	Rounds    int    `json:"rounds"`
	Exhausted bool   `json:"exhausted"`
}

// SearchAgent turns natural-language requests into IMAP searches by letting
// a model call a search tool for a bounded number of rounds. It keeps no
// state between runs.
type SearchAgent struct {
	model      ToolModel
	maxRounds  int
	maxResults int
	logger     *logrus.Logger
	now        func() time.Time
}

// NewSearchAgent creates an agent. Non-positive limits use the defaults.
func NewSearchAgent(model ToolModel, maxRounds, maxResults int, logger *logrus.Logger) *SearchAgent {
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &SearchAgent{
		model:      model,
		maxRounds:  maxRounds,
		maxResults: maxResults,
		logger:     logger,
		now:        time.Now,
	}
}

// Run searches folder of mailbox for what query describes. Running out of
// rounds is not an error: the outcome is marked Exhausted and carries the
// last matches. Model and mailbox failures are returned as errors.
func (a *SearchAgent) Run(ctx context.Context, mailbox Mailbox, query, folder string) (*Outcome, error) {
	if folder == "" {
		folder = "INBOX"
	}

	today := a.now().Format(search.DateLayout)
	system := fmt.Sprintf(searchSystem, today)
	turns := []llm.Turn{llm.UserText(fmt.Sprintf("Today is %s.\n\n%s", today, query))}
	tools := []llm.Tool{searchTool}

	out := &Outcome{
		ID:      uuid.New().String(),
		Matches: []types.MessageSummary{},
	}
	log := a.logger.WithFields(logrus.Fields{
		"search_id": out.ID,
		"folder":    folder,
	})

	for round := 1; round <= a.maxRounds; round++ {
		out.Rounds = round

		resp, err := a.model.CompleteWithTools(ctx, system, turns, tools)
		if err != nil {
			return nil, fmt.Errorf("search round %d: %w", round, err)
		}

		var call llm.ToolInvocation
		switch reply := resp.Reply().(type) {
		case llm.FinalText:
			out.Summary = reply.Text
			log.WithField("round", round).Info("Search agent finished")
			return out, nil
		case llm.ToolInvocation:
			call = reply
		}

		turns = append(turns, resp.AssistantTurn())

		// Only the first call runs; the others still need a result.
		var skipped []llm.Block
		for _, extra := range resp.ToolCalls()[1:] {
			skipped = append(skipped, llm.ResultBlock(extra.ID, oneSearchPerTurn, true))
		}
		if len(skipped) > 0 {
			log.WithFields(logrus.Fields{"round": round, "skipped": len(skipped)}).Warn("Model requested several tool calls in one turn")
		}

		if call.Name != SearchToolName {
			log.WithFields(logrus.Fields{"round": round, "tool": call.Name}).Warn("Model called an unknown tool")
			unknown := llm.ResultBlock(call.ID, fmt.Sprintf("Unknown tool %q. Use %s.", call.Name, SearchToolName), true)
			turns = append(turns, llm.ToolResults(append([]llm.Block{unknown}, skipped...)...))
			continue
		}

		filters, warnings := search.FromToolInput(call.Input)
		for _, w := range warnings {
			log.WithField("round", round).Warn("Ignoring malformed search input: " + w)
		}
		out.Query = search.BuildQuery(filters)

		uids, err := mailbox.Search(out.Query, folder)
		if err != nil {
			return nil, fmt.Errorf("search round %d: %w", round, err)
		}
		headers, err := mailbox.FetchHeaders(uids, a.maxResults)
		if err != nil {
			return nil, fmt.Errorf("search round %d: %w", round, err)
		}
		if headers == nil {
			headers = []types.MessageSummary{}
		}
		out.Matches = headers

		log.WithFields(logrus.Fields{
			"round":   round,
			"query":   out.Query,
			"matches": len(uids),
		}).Debug("Search agent ran query")

		result := llm.ResultBlock(call.ID, Digest(headers), false)
		turns = append(turns, llm.ToolResults(append([]llm.Block{result}, skipped...)...))
	}

	out.Summary = noFinalSummary
	out.Exhausted = true
	log.WithField("rounds", out.Rounds).Warn("Search agent ran out of rounds")
	return out, nil
}

// Digest renders search results the way they are fed back to the model.
func Digest(headers []types.MessageSummary) string {
	if len(headers) == 0 {
		return noResults
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d emails:\n\n", len(headers))
	for _, h := range headers {
		status := "Unread"
		if h.IsRead {
			status = "Read"
		}
		fmt.Fprintf(&sb, "- UID %s | %s | %s | %s | %s\n", h.UID, h.Sender, h.Subject, h.Date, status)
	}
	return sb.String()
}

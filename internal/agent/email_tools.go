package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/brandon/mail-agent/pkg/types"
)

const maxBodyChars = 3000

// Completer answers a single prompt.
type Completer interface {
	Complete(ctx context.Context, system, user string, maxTokens int) (string, error)
}

// Draft is a suggested reply.
type Draft struct {
	Draft   string `json:"draft"`
	Subject string `json:"subject"`
}

// Category assigns one message to a category.
type Category struct {
	UID      string `json:"uid"`
	Category string `json:"category"`
}

// Assistant runs single-shot prompts about individual messages.
type Assistant struct {
	model  Completer
	logger *logrus.Logger
}

// NewAssistant creates an Assistant.
func NewAssistant(model Completer, logger *logrus.Logger) *Assistant {
	if logger == nil {
		logger = logrus.New()
	}
	return &Assistant{model: model, logger: logger}
}

// Summarize returns a two or three sentence summary of email.
func (a *Assistant) Summarize(ctx context.Context, email *types.ParsedEmail) (string, error) {
	summary, err := a.model.Complete(ctx, summarizeSystem, describe(email), 512)
	if err != nil {
		return "", fmt.Errorf("summarize UID %s: %w", email.UID, err)
	}
	return summary, nil
}

// DraftReply writes a reply to email following instruction.
func (a *Assistant) DraftReply(ctx context.Context, email *types.ParsedEmail, instruction string) (*Draft, error) {
	prompt := "Original email:\n" + describe(email) + "\n\n---\nUser's instruction for the reply: " + instruction

	text, err := a.model.Complete(ctx, draftReplySystem, prompt, 1024)
	if err != nil {
		return nil, fmt.Errorf("draft reply to UID %s: %w", email.UID, err)
	}
	return &Draft{Draft: text, Subject: ReplySubject(email.Subject)}, nil
}

// Categorize sorts summaries into categories. An unreadable model answer
// yields a single placeholder entry instead of an error.
func (a *Assistant) Categorize(ctx context.Context, summaries []types.MessageSummary) ([]Category, error) {
	var sb strings.Builder
	sb.WriteString("Categorize these emails:\n\n")
	for i, s := range summaries {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "- UID %s: From %s | Subject: %s", s.UID, s.Sender, s.Subject)
	}

	text, err := a.model.Complete(ctx, categorizeSystem, sb.String(), 1024)
	if err != nil {
		return nil, fmt.Errorf("categorize: %w", err)
	}

	categories, err := parseCategories(text)
	if err != nil {
		a.logger.WithError(err).Warn("Unparseable categorization")
		return []Category{{UID: "?", Category: "Error parsing AI response"}}, nil
	}
	return categories, nil
}

// ActionItems extracts the tasks an email asks of the reader.
func (a *Assistant) ActionItems(ctx context.Context, email *types.ParsedEmail) ([]string, error) {
	text, err := a.model.Complete(ctx, actionItemsSystem, describe(email), 512)
	if err != nil {
		return nil, fmt.Errorf("action items for UID %s: %w", email.UID, err)
	}

	items := []string{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimLeft(strings.TrimSpace(line), "-•* ")
		if line != "" {
			items = append(items, line)
		}
	}
	return items, nil
}

// ReplySubject prefixes "Re: " unless subject already starts with it.
func ReplySubject(subject string) string {
	if strings.HasPrefix(strings.ToLower(subject), "re:") {
		return subject
	}
	return "Re: " + subject
}

func describe(email *types.ParsedEmail) string {
	body := email.BodyPlain
	if body == "" {
		body = email.BodyHTML
	}
	if body == "" {
		body = "(empty)"
	}
	if r := []rune(body); len(r) > maxBodyChars {
		body = string(r[:maxBodyChars])
	}
	return fmt.Sprintf("From: %s\nSubject: %s\nDate: %s\n\n%s", email.Sender, email.Subject, email.Date, body)
}

// parseCategories reads a JSON array, optionally wrapped in a fenced code
// block. UIDs may be strings or numbers.
func parseCategories(text string) ([]Category, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		nl := strings.IndexByte(text, '\n')
		if nl < 0 {
			return nil, fmt.Errorf("unterminated code block")
		}
		text = text[nl+1:]
		if end := strings.LastIndex(text, "```"); end >= 0 {
			text = text[:end]
		}
		text = strings.TrimSpace(text)
	}

	var raw []struct {
		UID      json.RawMessage `json:"uid"`
		Category string          `json:"category"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, err
	}

	out := make([]Category, 0, len(raw))
	for _, r := range raw {
		uid := strings.Trim(string(r.UID), `"`)
		out = append(out, Category{UID: uid, Category: r.Category})
	}
	return out, nil
}

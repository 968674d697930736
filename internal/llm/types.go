package llm

import (
	"encoding/json"
	"strings"
)

// Role is the author of a Turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Block types used in turns and responses.
const (
	BlockText       = "text"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
)

// Block is one content block of a turn or response.
type Block struct {
	Type string `json:"type"`

	// For text blocks
	Text string `json:"text,omitempty"`

	// For tool_use blocks
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// For tool_result blocks
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

// Turn is one message of a transcript.
type Turn struct {
	Role   Role    `json:"role"`
	Blocks []Block `json:"content"`
}

// UserText returns a user turn holding a single text block.
func UserText(text string) Turn {
	return Turn{Role: RoleUser, Blocks: []Block{{Type: BlockText, Text: text}}}
}

// ToolResult returns the user turn answering the tool call id.
func ToolResult(id, content string, isError bool) Turn {
	return ToolResults(ResultBlock(id, content, isError))
}

// ToolResults returns one user turn carrying several tool results. Every
// tool_use block of the previous assistant turn needs a result here.
func ToolResults(results ...Block) Turn {
	return Turn{Role: RoleUser, Blocks: results}
}

// ResultBlock is the tool_result block answering the tool call id.
func ResultBlock(id, content string, isError bool) Block {
	return Block{
		Type:      BlockToolResult,
		ToolUseID: id,
		Content:   content,
		IsError:   isError,
	}
}

// Tool declares a tool the model may call.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// Response is a model reply to a transcript.
type Response struct {
	ID         string  `json:"id"`
	Model      string  `json:"model"`
	Blocks     []Block `json:"content"`
	StopReason string  `json:"stop_reason"`
}

// AssistantTurn returns the response as a transcript turn.
func (r *Response) AssistantTurn() Turn {
	return Turn{Role: RoleAssistant, Blocks: r.Blocks}
}

// Text concatenates the text blocks of the response.
func (r *Response) Text() string {
	var sb strings.Builder
	for _, b := range r.Blocks {
		if b.Type == BlockText {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}

// Reply is either FinalText or ToolInvocation.
type Reply interface {
	isReply()
}

// FinalText is a response without any tool call.
type FinalText struct {
	Text string
}

// ToolInvocation is the first tool call of a response.
type ToolInvocation struct {
	ID    string
	Name  string
	Input json.RawMessage
}

func (FinalText) isReply()      {}
func (ToolInvocation) isReply() {}

// ToolCalls returns every tool_use block of the response in order.
func (r *Response) ToolCalls() []ToolInvocation {
	var calls []ToolInvocation
	for _, b := range r.Blocks {
		if b.Type == BlockToolUse {
			calls = append(calls, ToolInvocation{ID: b.ID, Name: b.Name, Input: b.Input})
		}
	}
	return calls
}

// Reply classifies the response. The first tool_use block wins; without one
// the response is final and carries all of its text.
func (r *Response) Reply() Reply {
	for _, b := range r.Blocks {
		if b.Type == BlockToolUse {
			return ToolInvocation{ID: b.ID, Name: b.Name, Input: b.Input}
		}
	}
	return FinalText{Text: r.Text()}
}

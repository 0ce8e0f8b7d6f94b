// Package llm abstracts the tool-use LLM interface the resolution stage
// talks to: a request carries a system prompt, conversation history and tool
// schemas; the response is an ordered list of content blocks, each free text
// or a structured tool invocation.
package llm

import "context"

// ToolDefinition describes one tool the model may invoke.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// ToolCall is a structured tool invocation requested by the model.
type ToolCall struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

// ToolResult is fed back into the conversation after executing a tool call.
type ToolResult struct {
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
	IsError   bool   `json:"is_error,omitempty"`
}

// Content block types on the wire.
const (
	BlockText       = "text"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
)

// ContentBlock is one ordered element of a message. Exactly the fields for
// its Type are set.
type ContentBlock struct {
	Type string `json:"type"`

	// BlockText
	Text string `json:"text,omitempty"`

	// BlockToolUse
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`

	// BlockToolResult
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

// Message is one conversation turn.
type Message struct {
	Role    string         `json:"role"` // "user" | "assistant"
	Content []ContentBlock `json:"content"`
}

// Request is one round of the tool-use conversation.
type Request struct {
	System   string
	Messages []Message
	Tools    []ToolDefinition
}

// Response is the model's reply for one round.
type Response struct {
	// Content preserves the ordered blocks for appending back into the
	// conversation history.
	Content    []ContentBlock
	Text       string
	ToolCalls  []ToolCall
	StopReason string
}

// Client is the tool-use LLM interface.
type Client interface {
	CreateToolMessage(ctx context.Context, req Request) (*Response, error)
}

// TextMessage builds a plain user/assistant text turn.
func TextMessage(role, text string) Message {
	return Message{Role: role, Content: []ContentBlock{{Type: BlockText, Text: text}}}
}

// ToolResultMessage builds the user turn carrying tool results.
func ToolResultMessage(results []ToolResult) Message {
	blocks := make([]ContentBlock, 0, len(results))
	for _, r := range results {
		blocks = append(blocks, ContentBlock{
			Type:      BlockToolResult,
			ToolUseID: r.ToolUseID,
			Content:   r.Content,
			IsError:   r.IsError,
		})
	}
	return Message{Role: "user", Content: blocks}
}

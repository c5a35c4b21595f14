// Package llm provides completion endpoint clients.
package llm

import (
	"encoding/json"
	"log/slog"
)

// LevelTrace is below Debug, used for wire-level payload logging.
const LevelTrace = slog.Level(-8)

// Stop reasons reported on a ChatResponse. A completion that requests
// tool execution stops with StopToolUse; everything else counts as a
// natural stop from the driver's point of view.
const (
	StopToolUse  = "tool_use"
	StopEndTurn  = "end_turn"
	StopMaxToken = "max_tokens"
)

// Message represents one entry in the conversation sent to the model.
//
// Roles:
//   - "system": folded into the provider's system prompt
//   - "user": plain user input
//   - "assistant": model output, possibly carrying thinking and tool calls
//   - "tool": a tool result answering a prior tool call (ToolCallID set)
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`

	// Thinking carries the assistant's reasoning blocks in order.
	// Recorded for observability and echoed back on the wire; never
	// drives control flow.
	Thinking []ThinkingBlock `json:"thinking,omitempty"`

	// ToolCalls are the tool invocations an assistant message requested.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID correlates a "tool" message with the call it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`
	// ToolError marks a "tool" message as a failed execution.
	ToolError bool `json:"tool_error,omitempty"`
}

// ThinkingBlock is one reasoning segment. The signature is opaque
// provider state that must be echoed back verbatim when the block is
// resent with the conversation.
type ThinkingBlock struct {
	Text      string `json:"text"`
	Signature string `json:"signature,omitempty"`
}

// ToolCall represents a single tool invocation requested by the model.
// Input is the raw JSON argument object, passed through untouched so
// tool implementations decode exactly what the model produced.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolSchema describes one callable tool on the wire: its name, a
// description for the model, and a JSON Schema for its input object.
type ToolSchema struct {
	Name        string
	Description string
	InputSchema any
}

// ChatResponse is the provider-neutral result of one completion request.
type ChatResponse struct {
	Model      string
	Message    Message
	StopReason string

	// Token usage as reported by the provider for this single request.
	InputTokens  int
	OutputTokens int
}

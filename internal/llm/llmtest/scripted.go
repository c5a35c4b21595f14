// Package llmtest provides a deterministic scripted completion client
// for driver tests.
package llmtest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nugget/dirigent/internal/llm"
)

// Step configures one completion in a scripted sequence.
type Step struct {
	Response *llm.ChatResponse
	Err      error
}

// Scripted replays a fixed sequence of completions. Each Chat call
// consumes the next step; the sequence exhausting is a test bug and
// surfaces as an error.
type Scripted struct {
	mu    sync.Mutex
	index int
	steps []Step

	// Requests records a copy of the messages from every Chat call,
	// in order, for assertions on what the driver sent.
	Requests [][]llm.Message
}

// NewScripted creates a scripted client from the given steps.
func NewScripted(steps ...Step) *Scripted {
	cloned := make([]Step, len(steps))
	copy(cloned, steps)
	return &Scripted{steps: cloned}
}

var _ llm.Client = (*Scripted)(nil)

// Chat returns the next scripted step.
func (s *Scripted) Chat(_ context.Context, _ string, messages []llm.Message, _ []llm.ToolSchema) (*llm.ChatResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make([]llm.Message, len(messages))
	copy(snapshot, messages)
	s.Requests = append(s.Requests, snapshot)

	if s.index >= len(s.steps) {
		return nil, fmt.Errorf("script exhausted at step %d", s.index+1)
	}
	step := s.steps[s.index]
	s.index++
	if step.Err != nil {
		return nil, step.Err
	}
	return step.Response, nil
}

// Calls returns how many completions have been requested so far.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// Repeating returns a client that answers every Chat call with the
// same response, regardless of how many are made. Useful for modeling
// an endpoint that requests the same tool forever.
func Repeating(resp *llm.ChatResponse) *RepeatingClient {
	return &RepeatingClient{resp: resp}
}

// RepeatingClient answers every completion identically.
type RepeatingClient struct {
	mu    sync.Mutex
	calls int
	resp  *llm.ChatResponse
}

var _ llm.Client = (*RepeatingClient)(nil)

// Chat returns the fixed response.
func (r *RepeatingClient) Chat(context.Context, string, []llm.Message, []llm.ToolSchema) (*llm.ChatResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.resp, nil
}

// Calls returns how many completions have been requested.
func (r *RepeatingClient) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// TextResponse builds a natural-stop completion with the given text.
func TextResponse(text string, inputTokens, outputTokens int) *llm.ChatResponse {
	return &llm.ChatResponse{
		Model: "scripted",
		Message: llm.Message{
			Role:    "assistant",
			Content: text,
		},
		StopReason:   llm.StopEndTurn,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
	}
}

// ToolCallResponse builds a completion requesting a single tool call.
func ToolCallResponse(callID, tool string, input map[string]any, inputTokens, outputTokens int) *llm.ChatResponse {
	raw, err := json.Marshal(input)
	if err != nil {
		raw = []byte("{}")
	}
	return &llm.ChatResponse{
		Model: "scripted",
		Message: llm.Message{
			Role:      "assistant",
			ToolCalls: []llm.ToolCall{{ID: callID, Name: tool, Input: raw}},
		},
		StopReason:   llm.StopToolUse,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
	}
}

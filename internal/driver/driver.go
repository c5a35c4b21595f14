// Package driver runs directives against a completion endpoint. The
// driver owns the conversation loop: it composes the initial prompt,
// relays tool calls to the executor, enforces the directive's tool
// allow-list and turn budget, and accumulates the transcript and
// token usage for the run.
package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/nugget/dirigent/internal/directive"
	"github.com/nugget/dirigent/internal/llm"
	"github.com/nugget/dirigent/internal/tools"
)

// State is the terminal state of a run.
type State string

const (
	// StateDone means the model produced a final text response.
	StateDone State = "done"

	// StateTurnLimit means the turn budget ran out while the model
	// was still requesting tools. This is a normal termination, not
	// an error; the result carries whatever partial response exists.
	StateTurnLimit State = "turn_limit_reached"
)

// Options configures a Driver.
type Options struct {
	Model         string // Completion model identifier
	MaxTurns      int    // Default turn budget when neither request nor directive sets one
	RetryAttempts int    // Completion retries after the first failure
}

// Request describes one directive run.
type Request struct {
	Directive    *directive.Directive
	Input        map[string]any
	AllowedTools []string // Tool allow-list; nil means the directive's own list
	TurnBudget   int      // Negative means unset (directive, then Options.MaxTurns)
	RunID        string
}

// ToolCallEntry is one tool invocation in the run transcript. Error
// is set and Result empty when the call failed or was not permitted.
type ToolCallEntry struct {
	Turn   int             `json:"turn"`
	CallID string          `json:"-"`
	Tool   string          `json:"tool"`
	Input  json.RawMessage `json:"input"`
	Result string          `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// ThinkingEntry is one reasoning segment, attributed to the turn it
// preceded, or "final" for the closing completion.
type ThinkingEntry struct {
	Turn string `json:"turn"`
	Text string `json:"thinking"`
}

// Usage is the aggregate token accounting for a run.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	Turns        int `json:"turns"`
}

// Result is the outcome of a completed run.
type Result struct {
	Response   string          `json:"response"`
	Transcript []ToolCallEntry `json:"conversation"`
	Thinking   []ThinkingEntry `json:"thinking"`
	Usage      Usage           `json:"usage"`
	State      State           `json:"state"`
	Model      string          `json:"model"`
}

// CompletionEndpointError means the completion endpoint was
// unreachable or rejected the request even after retries. It is the
// only condition Run surfaces as an error; everything else, including
// failing tools and exhausted budgets, comes back inside the Result.
type CompletionEndpointError struct {
	Attempts int
	Err      error
}

func (e *CompletionEndpointError) Error() string {
	return fmt.Sprintf("completion endpoint failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *CompletionEndpointError) Unwrap() error { return e.Err }

// Notifier receives best-effort progress events. Implementations must
// never block; the driver does not wait on them and ignores their
// failures.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// Event is a progress notification emitted during a run.
type Event struct {
	Type      string `json:"type"` // run_started, tool_call, run_completed
	RunID     string `json:"run_id"`
	Directive string `json:"directive"`
	Turn      int    `json:"turn,omitempty"`
	Tool      string `json:"tool,omitempty"`
	State     string `json:"state,omitempty"`
}

// Driver executes directive runs. A single Driver is shared across
// concurrent runs; all per-run state lives in Run's locals.
type Driver struct {
	registry *tools.Registry
	exec     *tools.Executor
	client   llm.Client
	notifier Notifier
	logger   *slog.Logger
	opts     Options
}

// New creates a Driver. notifier may be nil.
func New(registry *tools.Registry, exec *tools.Executor, client llm.Client, notifier Notifier, logger *slog.Logger, opts Options) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = 15
	}
	if opts.RetryAttempts < 0 {
		opts.RetryAttempts = 0
	}
	return &Driver{
		registry: registry,
		exec:     exec,
		client:   client,
		notifier: notifier,
		logger:   logger,
		opts:     opts,
	}
}

// Run executes a directive to completion. Tool failures and budget
// exhaustion are reported inside the Result; the returned error is
// non-nil only for *CompletionEndpointError.
func (d *Driver) Run(ctx context.Context, req Request) (*Result, error) {
	if req.Directive == nil {
		return nil, fmt.Errorf("request has no directive")
	}

	allowed := req.AllowedTools
	if allowed == nil {
		allowed = req.Directive.Tools
	}
	budget := d.resolveBudget(req)
	exposed := d.registry.ListFor(allowed)
	schemas := toolSchemas(exposed)
	allowedSet := make(map[string]bool, len(allowed))
	for _, name := range allowed {
		allowedSet[name] = true
	}

	logger := d.logger.With("directive", req.Directive.Name, "run_id", req.RunID)
	logger.Info("executing directive",
		"tools", len(exposed),
		"turn_budget", budget)

	d.notify(ctx, Event{Type: "run_started", RunID: req.RunID, Directive: req.Directive.Name})

	messages := []llm.Message{{
		Role:    "user",
		Content: composePrompt(req.Directive, req.Input),
	}}

	result := &Result{Model: d.opts.Model, State: StateDone}
	turn := 0

	resp, err := d.complete(ctx, logger, messages, schemas)
	if err != nil {
		return nil, err
	}
	result.Usage.InputTokens += resp.InputTokens
	result.Usage.OutputTokens += resp.OutputTokens

	for resp.StopReason == llm.StopToolUse && len(resp.Message.ToolCalls) > 0 {
		if turn+1 > budget {
			result.State = StateTurnLimit
			logger.Info("turn budget exhausted", "turns", turn)
			break
		}
		turn++

		for _, tb := range resp.Message.Thinking {
			result.Thinking = append(result.Thinking, ThinkingEntry{
				Turn: strconv.Itoa(turn),
				Text: tb.Text,
			})
			logger.Log(ctx, llm.LevelTrace, "model thinking", "turn", turn, "thinking", tb.Text)
		}

		assistant := resp.Message
		messages = append(messages, assistant)

		for _, call := range assistant.ToolCalls {
			entry := ToolCallEntry{
				Turn:   turn,
				CallID: call.ID,
				Tool:   call.Name,
				Input:  call.Input,
			}

			var content string
			var isErr bool
			if !allowedSet[call.Name] {
				// Permission check stays here so an un-allow-listed
				// tool never reaches the executor even when it exists
				// in the registry.
				entry.Error = (&tools.ToolNotPermittedError{ToolName: call.Name}).Error()
				content = errorPayload(entry.Error)
				isErr = true
				logger.Warn("tool call denied", "turn", turn, "tool", call.Name)
			} else {
				logger.Info("tool call", "turn", turn, "tool", call.Name)
				d.notify(ctx, Event{
					Type:      "tool_call",
					RunID:     req.RunID,
					Directive: req.Directive.Name,
					Turn:      turn,
					Tool:      call.Name,
				})

				res := d.exec.Execute(ctx, call.Name, call.Input)
				if res.IsError() {
					entry.Error = res.Err
					content = errorPayload(res.Err)
					isErr = true
				} else {
					entry.Result = res.Content
					content = res.Content
				}
			}

			result.Transcript = append(result.Transcript, entry)
			messages = append(messages, llm.Message{
				Role:       "tool",
				Content:    content,
				ToolCallID: call.ID,
				ToolError:  isErr,
			})
		}

		resp, err = d.complete(ctx, logger, messages, schemas)
		if err != nil {
			return nil, err
		}
		result.Usage.InputTokens += resp.InputTokens
		result.Usage.OutputTokens += resp.OutputTokens
	}

	result.Response = resp.Message.Content
	for _, tb := range resp.Message.Thinking {
		result.Thinking = append(result.Thinking, ThinkingEntry{Turn: "final", Text: tb.Text})
	}
	result.Usage.Turns = turn

	logger.Info("directive complete",
		"state", result.State,
		"turns", turn,
		"input_tokens", result.Usage.InputTokens,
		"output_tokens", result.Usage.OutputTokens)

	d.notify(ctx, Event{
		Type:      "run_completed",
		RunID:     req.RunID,
		Directive: req.Directive.Name,
		Turn:      turn,
		State:     string(result.State),
	})

	return result, nil
}

// resolveBudget picks the effective turn budget: explicit request
// value, then the directive's max_turns, then the configured default.
func (d *Driver) resolveBudget(req Request) int {
	if req.TurnBudget >= 0 {
		return req.TurnBudget
	}
	if req.Directive.MaxTurns > 0 {
		return req.Directive.MaxTurns
	}
	return d.opts.MaxTurns
}

// complete requests a completion, retrying transport failures. Every
// attempt exhausted means the run fails with *CompletionEndpointError.
func (d *Driver) complete(ctx context.Context, logger *slog.Logger, messages []llm.Message, schemas []llm.ToolSchema) (*llm.ChatResponse, error) {
	attempts := d.opts.RetryAttempts + 1

	var lastErr error
	for i := 0; i < attempts; i++ {
		resp, err := d.client.Chat(ctx, d.opts.Model, messages, schemas)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		logger.Warn("completion request failed",
			"attempt", i+1,
			"attempts", attempts,
			"error", err)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, &CompletionEndpointError{Attempts: attempts, Err: lastErr}
}

func (d *Driver) notify(ctx context.Context, event Event) {
	if d.notifier == nil {
		return
	}
	d.notifier.Notify(ctx, event)
}

// errorPayload serializes an error message into the JSON envelope the
// model receives as a failed tool result.
func errorPayload(msg string) string {
	b, err := json.Marshal(map[string]string{"error": msg})
	if err != nil {
		return `{"error": "internal error"}`
	}
	return string(b)
}

// toolSchemas converts registry tools into the wire representation.
func toolSchemas(list []*tools.Tool) []llm.ToolSchema {
	schemas := make([]llm.ToolSchema, 0, len(list))
	for _, t := range list {
		schemas = append(schemas, llm.ToolSchema{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}
	return schemas
}

// composePrompt builds the initial user message from the directive
// body and the run's input payload.
func composePrompt(d *directive.Directive, input map[string]any) string {
	inputSection := "No input data provided."
	if len(input) > 0 {
		if b, err := json.MarshalIndent(input, "", "  "); err == nil {
			inputSection = string(b)
		}
	}

	return fmt.Sprintf(`You are executing a specific directive. Follow it precisely.

## DIRECTIVE
%s

## INPUT DATA
%s

## INSTRUCTIONS
1. Read and understand the directive above
2. Use the available tools to accomplish the task
3. Report your results clearly

Execute the directive now.`, d.Content, inputSection)
}

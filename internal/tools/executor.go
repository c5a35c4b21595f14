package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Result is the outcome of a tool invocation. Exactly one of Content
// or Err is meaningful: a non-empty Err means the call failed and the
// text should be relayed to the model as an error result.
type Result struct {
	Content string
	Err     string
}

// IsError reports whether the result represents a failure.
func (r Result) IsError() bool {
	return r.Err != ""
}

// Executor dispatches tool calls against a registry. Failures of any
// kind are folded into the Result so the conversation can continue;
// Execute itself never fails.
type Executor struct {
	registry *Registry
	logger   *slog.Logger
}

// NewExecutor creates an executor over the given registry.
func NewExecutor(registry *Registry, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{registry: registry, logger: logger}
}

// Execute looks up and runs the named tool. Unknown tools, handler
// errors, and handler panics all come back as error Results.
func (e *Executor) Execute(ctx context.Context, name string, input json.RawMessage) Result {
	tool, err := e.registry.Lookup(name)
	if err != nil {
		e.logger.Warn("tool call for unregistered tool", "tool", name)
		return Result{Err: err.Error()}
	}

	start := time.Now()
	content, err := e.run(ctx, tool, input)
	elapsed := time.Since(start)

	if err != nil {
		e.logger.Debug("tool call failed",
			"tool", name,
			"duration", elapsed,
			"error", err)
		return Result{Err: err.Error()}
	}

	e.logger.Debug("tool call completed",
		"tool", name,
		"duration", elapsed,
		"result_bytes", len(content))
	return Result{Content: content}
}

// run invokes the handler with panic recovery. A panicking tool must
// not take down the run loop.
func (e *Executor) run(ctx context.Context, tool *Tool, input json.RawMessage) (content string, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("tool handler panicked", "tool", tool.Name, "panic", r)
			err = fmt.Errorf("tool %q panicked: %v", tool.Name, r)
		}
	}()
	return tool.Handler(ctx, input)
}

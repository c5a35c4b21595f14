package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/invopop/jsonschema"
)

// Tool represents a callable capability. The handler receives the raw
// JSON argument object exactly as the model produced it.
type Tool struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
	Handler     func(ctx context.Context, input json.RawMessage) (string, error)
}

// Registry holds the process-wide tool catalogue. It is populated at
// startup and read-only afterwards; concurrent runs only ever read it.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds a tool to the registry. Registering a name twice
// returns a *DuplicateToolError; the first registration wins.
func (r *Registry) Register(t *Tool) error {
	if t == nil || t.Name == "" {
		return fmt.Errorf("tool name is empty")
	}
	if t.Handler == nil {
		return fmt.Errorf("tool %q has nil handler", t.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; exists {
		return &DuplicateToolError{ToolName: t.Name}
	}
	r.tools[t.Name] = t
	return nil
}

// MustRegister registers a tool and panics on failure. For use during
// process startup where a bad registration is a programming error.
func (r *Registry) MustRegister(t *Tool) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// Lookup retrieves a tool by name, or returns *UnknownToolError.
func (r *Registry) Lookup(name string) (*Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return nil, &UnknownToolError{ToolName: name}
	}
	return t, nil
}

// ListFor returns the tools present in both the registry and the
// allow-list, in allow-list order. Allow-listed names with no
// registered tool are silently dropped; the mismatch surfaces at call
// time instead.
func (r *Registry) ListFor(allowed []string) []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*Tool
	seen := make(map[string]bool, len(allowed))
	for _, name := range allowed {
		if seen[name] {
			continue
		}
		seen[name] = true
		if t, ok := r.tools[name]; ok {
			result = append(result, t)
		}
	}
	return result
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

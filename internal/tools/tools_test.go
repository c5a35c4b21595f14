package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func echoTool(name string) *Tool {
	return &Tool{
		Name:        name,
		Description: "echoes its input",
		Handler: func(_ context.Context, input json.RawMessage) (string, error) {
			return string(input), nil
		},
	}
}

func TestRegisterAndLookup(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(echoTool("echo")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	tool, err := r.Lookup("echo")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if tool.Name != "echo" {
		t.Errorf("Lookup returned tool %q, want %q", tool.Name, "echo")
	}
}

func TestRegisterDuplicate(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(echoTool("echo")); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}

	err := r.Register(echoTool("echo"))
	if err == nil {
		t.Fatal("duplicate Register succeeded, want error")
	}
	var dup *DuplicateToolError
	if !errors.As(err, &dup) {
		t.Errorf("error type %T, want *DuplicateToolError", err)
	}
	if dup.ToolName != "echo" {
		t.Errorf("duplicate tool name %q, want %q", dup.ToolName, "echo")
	}
}

func TestRegisterInvalid(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(&Tool{Name: ""}); err == nil {
		t.Error("Register with empty name succeeded, want error")
	}
	if err := r.Register(&Tool{Name: "nohandler"}); err == nil {
		t.Error("Register with nil handler succeeded, want error")
	}
}

func TestLookupUnknown(t *testing.T) {
	r := NewRegistry()

	_, err := r.Lookup("missing")
	if err == nil {
		t.Fatal("Lookup of missing tool succeeded, want error")
	}
	var unknown *UnknownToolError
	if !errors.As(err, &unknown) {
		t.Errorf("error type %T, want *UnknownToolError", err)
	}
}

func TestListFor(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"alpha", "beta", "gamma"} {
		if err := r.Register(echoTool(name)); err != nil {
			t.Fatalf("Register %s failed: %v", name, err)
		}
	}

	list := r.ListFor([]string{"gamma", "alpha"})
	if len(list) != 2 {
		t.Fatalf("ListFor returned %d tools, want 2", len(list))
	}
	if list[0].Name != "gamma" || list[1].Name != "alpha" {
		t.Errorf("ListFor order = [%s %s], want [gamma alpha]", list[0].Name, list[1].Name)
	}
}

func TestListForDropsUnknown(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoTool("alpha")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	list := r.ListFor([]string{"alpha", "nonexistent"})
	if len(list) != 1 {
		t.Fatalf("ListFor returned %d tools, want 1", len(list))
	}
	if list[0].Name != "alpha" {
		t.Errorf("ListFor returned %q, want alpha", list[0].Name)
	}
}

func TestListForDeduplicates(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoTool("alpha")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	list := r.ListFor([]string{"alpha", "alpha"})
	if len(list) != 1 {
		t.Errorf("ListFor returned %d tools, want 1", len(list))
	}
}

func TestNames(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zebra", "apple", "mango"} {
		if err := r.Register(echoTool(name)); err != nil {
			t.Fatalf("Register %s failed: %v", name, err)
		}
	}

	names := r.Names()
	want := []string{"apple", "mango", "zebra"}
	if len(names) != len(want) {
		t.Fatalf("Names returned %d entries, want %d", len(names), len(want))
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

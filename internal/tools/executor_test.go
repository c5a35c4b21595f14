package tools

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func testExecutor(t *testing.T, reg *Registry) *Executor {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(new(strings.Builder), nil))
	return NewExecutor(reg, logger)
}

func TestExecuteSuccess(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoTool("echo")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	e := testExecutor(t, r)

	res := e.Execute(t.Context(), "echo", json.RawMessage(`{"x":1}`))
	if res.IsError() {
		t.Fatalf("Execute returned error: %s", res.Err)
	}
	if res.Content != `{"x":1}` {
		t.Errorf("Execute content = %q, want %q", res.Content, `{"x":1}`)
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	e := testExecutor(t, NewRegistry())

	res := e.Execute(t.Context(), "missing", nil)
	if !res.IsError() {
		t.Fatal("Execute of unknown tool succeeded, want error result")
	}
	if !strings.Contains(res.Err, "missing") {
		t.Errorf("error %q does not name the tool", res.Err)
	}
}

func TestExecuteHandlerError(t *testing.T) {
	r := NewRegistry()
	err := r.Register(&Tool{
		Name: "broken",
		Handler: func(context.Context, json.RawMessage) (string, error) {
			return "", errors.New("connection refused")
		},
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	e := testExecutor(t, r)

	res := e.Execute(t.Context(), "broken", nil)
	if !res.IsError() {
		t.Fatal("Execute succeeded, want error result")
	}
	if res.Err != "connection refused" {
		t.Errorf("error = %q, want %q", res.Err, "connection refused")
	}
	if res.Content != "" {
		t.Errorf("error result carries content %q", res.Content)
	}
}

func TestExecuteHandlerPanic(t *testing.T) {
	r := NewRegistry()
	err := r.Register(&Tool{
		Name: "panics",
		Handler: func(context.Context, json.RawMessage) (string, error) {
			panic("index out of range")
		},
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	e := testExecutor(t, r)

	res := e.Execute(t.Context(), "panics", nil)
	if !res.IsError() {
		t.Fatal("Execute of panicking tool succeeded, want error result")
	}
	if !strings.Contains(res.Err, "index out of range") {
		t.Errorf("error %q does not carry the panic value", res.Err)
	}
}

func TestGenerateSchema(t *testing.T) {
	type args struct {
		Recipient string `json:"recipient" jsonschema:"required,description=Email address"`
		Subject   string `json:"subject"`
	}

	schema := GenerateSchema[args]()
	if schema == nil {
		t.Fatal("GenerateSchema returned nil")
	}
	if schema.Type != "object" {
		t.Errorf("schema type = %q, want object", schema.Type)
	}
	if schema.Properties == nil {
		t.Fatal("schema has no properties")
	}
	if _, ok := schema.Properties.Get("recipient"); !ok {
		t.Error("schema missing recipient property")
	}
	if _, ok := schema.Properties.Get("subject"); !ok {
		t.Error("schema missing subject property")
	}
}

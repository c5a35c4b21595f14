package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestFindConfig_Explicit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	os.WriteFile(path, []byte("listen:\n  port: 9999\n"), 0600)

	got, err := FindConfig(path)
	if err != nil {
		t.Fatalf("FindConfig(%q) error: %v", path, err)
	}
	if got != path {
		t.Errorf("FindConfig(%q) = %q, want %q", path, got, path)
	}
}

func TestFindConfig_ExplicitMissing(t *testing.T) {
	_, err := FindConfig("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("FindConfig with missing explicit path should error")
	}
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dirigent.yaml")
	os.WriteFile(path, []byte("anthropic:\n  api_key: test-key\n"), 0600)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Listen.Port != 8080 {
		t.Errorf("default port = %d, want 8080", cfg.Listen.Port)
	}
	if cfg.Driver.MaxTurns != 15 {
		t.Errorf("default max_turns = %d, want 15", cfg.Driver.MaxTurns)
	}
	if cfg.Driver.RetryAttempts != 1 {
		t.Errorf("default retry_attempts = %d, want 1", cfg.Driver.RetryAttempts)
	}
	if cfg.Anthropic.MaxTokens != 16000 {
		t.Errorf("default max_tokens = %d, want 16000", cfg.Anthropic.MaxTokens)
	}
	if cfg.MQTT.TopicPrefix != "dirigent" {
		t.Errorf("default topic_prefix = %q, want %q", cfg.MQTT.TopicPrefix, "dirigent")
	}
	if cfg.DirectivesDir != "directives" {
		t.Errorf("default directives_dir = %q, want %q", cfg.DirectivesDir, "directives")
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("DIRIGENT_TEST_KEY", "sk-from-env")

	dir := t.TempDir()
	path := filepath.Join(dir, "dirigent.yaml")
	os.WriteFile(path, []byte("anthropic:\n  api_key: ${DIRIGENT_TEST_KEY}\n"), 0600)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Anthropic.APIKey != "sk-from-env" {
		t.Errorf("api_key = %q, want env-expanded value", cfg.Anthropic.APIKey)
	}
}

func TestLoad_ExplicitValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dirigent.yaml")
	content := `
listen:
  port: 9090
driver:
  max_turns: 3
  retry_attempts: 2
directives_dir: /srv/directives
data_dir: /var/lib/dirigent
pricing:
  claude-sonnet-4-20250514:
    input_per_mtok: 3.0
    output_per_mtok: 15.0
`
	os.WriteFile(path, []byte(content), 0600)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Listen.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Listen.Port)
	}
	if cfg.Driver.MaxTurns != 3 {
		t.Errorf("max_turns = %d, want 3", cfg.Driver.MaxTurns)
	}
	if cfg.UsageDBPath() != "/var/lib/dirigent/usage.db" {
		t.Errorf("UsageDBPath = %q", cfg.UsageDBPath())
	}
	p, ok := cfg.Pricing["claude-sonnet-4-20250514"]
	if !ok {
		t.Fatal("pricing entry missing")
	}
	if p.InputPerMTok != 3.0 || p.OutputPerMTok != 15.0 {
		t.Errorf("pricing = %+v", p)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"info", slog.LevelInfo, false},
		{"INFO", slog.LevelInfo, false},
		{"trace", LevelTrace, false},
		{"debug", slog.LevelDebug, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{" debug ", slog.LevelDebug, false},
		{"bogus", slog.LevelInfo, true},
	}

	for _, tc := range tests {
		got, err := ParseLogLevel(tc.input)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseLogLevel(%q) expected error", tc.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseLogLevel(%q) error: %v", tc.input, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestReplaceLogLevelNames(t *testing.T) {
	a := slog.Attr{Key: slog.LevelKey, Value: slog.AnyValue(LevelTrace)}
	got := ReplaceLogLevelNames(nil, a)
	if got.Value.String() != "TRACE" {
		t.Errorf("trace level rendered as %q, want TRACE", got.Value.String())
	}

	b := slog.Attr{Key: slog.LevelKey, Value: slog.AnyValue(slog.LevelInfo)}
	got = ReplaceLogLevelNames(nil, b)
	if got.Value.Any() != slog.LevelInfo {
		t.Errorf("info level should pass through unchanged, got %v", got.Value)
	}
}

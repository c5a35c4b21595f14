package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// defaultConfigYAML is written by init as a starting configuration.
const defaultConfigYAML = `# Dirigent configuration

listen:
  port: 8080

anthropic:
  api_key: ${ANTHROPIC_API_KEY}
  model: claude-sonnet-4-20250514
  max_tokens: 16000
  thinking_budget: 32000

driver:
  max_turns: 15
  retry_attempts: 1

directives_dir: directives
data_dir: db
log_level: info

# mqtt:
#   enabled: true
#   broker: mqtt://localhost:1883
#   topic_prefix: dirigent

pricing:
  claude-sonnet-4-20250514:
    input_per_mtok: 3.0
    output_per_mtok: 15.0
`

// defaultDirectiveMD is a sample directive demonstrating frontmatter.
const defaultDirectiveMD = `---
description: Acknowledge an inbound request by email
tools:
  - send_email
max_turns: 5
---

# Acknowledge Request

A request has arrived in the input data. Send a short, polite
acknowledgement email to the requester confirming that their request
was received, then report what you sent.
`

// runInit initializes a dirigent working directory with default files.
// Existing files are never overwritten.
func runInit(w io.Writer, dir string) error {
	fmt.Fprintf(w, "Initializing Dirigent workspace in %s\n", dir)

	for _, sub := range []string{"db", "directives"} {
		path := filepath.Join(dir, sub)
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
	}

	configPath := filepath.Join(dir, "dirigent.yaml")
	if err := writeIfMissing(configPath, []byte(defaultConfigYAML)); err != nil {
		return err
	}
	fmt.Fprintf(w, "  ✓ %s\n", configPath)

	directivePath := filepath.Join(dir, "directives", "acknowledge.md")
	if err := writeIfMissing(directivePath, []byte(defaultDirectiveMD)); err != nil {
		return err
	}
	fmt.Fprintf(w, "  ✓ %s\n", directivePath)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Edit dirigent.yaml and add directives under directives/ to customize.")
	return nil
}

// writeIfMissing writes content to path only if the file does not already
// exist. This ensures init never overwrites user customizations.
func writeIfMissing(path string, content []byte) error {
	if _, err := os.Stat(path); err == nil {
		return nil // already exists, skip
	}
	return os.WriteFile(path, content, 0o644)
}

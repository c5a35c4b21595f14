package directive

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func writeDirective(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name+".md"), []byte(content), 0o644); err != nil {
		t.Fatalf("write directive: %v", err)
	}
}

const sampleDirective = `---
description: Handles inbound support requests
tools:
  - send_email
  - read_sheet
max_turns: 10
---

# Support Triage

Read the incoming request and respond appropriately.
`

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeDirective(t, dir, "triage", sampleDirective)

	s := NewStore(dir)
	d, err := s.Load("triage")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if d.Name != "triage" {
		t.Errorf("Name = %q, want triage", d.Name)
	}
	if d.Title != "Support Triage" {
		t.Errorf("Title = %q, want %q", d.Title, "Support Triage")
	}
	if d.Description != "Handles inbound support requests" {
		t.Errorf("Description = %q", d.Description)
	}
	if len(d.Tools) != 2 || d.Tools[0] != "send_email" || d.Tools[1] != "read_sheet" {
		t.Errorf("Tools = %v, want [send_email read_sheet]", d.Tools)
	}
	if d.MaxTurns != 10 {
		t.Errorf("MaxTurns = %d, want 10", d.MaxTurns)
	}
	if d.Content == "" || d.Content[0] != '#' {
		t.Errorf("Content not stripped of frontmatter: %q", d.Content)
	}
}

func TestLoadMissing(t *testing.T) {
	s := NewStore(t.TempDir())

	_, err := s.Load("nope")
	if err == nil {
		t.Fatal("Load of missing directive succeeded")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("error %v does not wrap fs.ErrNotExist", err)
	}
}

func TestLoadInvalidName(t *testing.T) {
	s := NewStore(t.TempDir())

	for _, name := range []string{"", "../etc/passwd", "a/b", `a\b`} {
		if _, err := s.Load(name); err == nil {
			t.Errorf("Load(%q) succeeded, want error", name)
		}
	}
}

func TestLoadNoFrontmatter(t *testing.T) {
	dir := t.TempDir()
	writeDirective(t, dir, "plain", "# Plain Directive\n\nJust instructions.\n")

	s := NewStore(dir)
	d, err := s.Load("plain")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if d.Title != "Plain Directive" {
		t.Errorf("Title = %q", d.Title)
	}
	if len(d.Tools) != 0 {
		t.Errorf("Tools = %v, want empty", d.Tools)
	}
}

func TestLoadNoHeading(t *testing.T) {
	dir := t.TempDir()
	writeDirective(t, dir, "bare", "Do the thing.\n")

	s := NewStore(dir)
	d, err := s.Load("bare")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if d.Title != "bare" {
		t.Errorf("Title = %q, want name fallback", d.Title)
	}
}

func TestLoadBadFrontmatter(t *testing.T) {
	dir := t.TempDir()
	writeDirective(t, dir, "bad", "---\ntools: [unclosed\n---\nbody\n")

	s := NewStore(dir)
	if _, err := s.Load("bad"); err == nil {
		t.Error("Load of bad frontmatter succeeded, want error")
	}
}

func TestLoadRereadsFile(t *testing.T) {
	dir := t.TempDir()
	writeDirective(t, dir, "live", "# One\n")

	s := NewStore(dir)
	d, err := s.Load("live")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if d.Title != "One" {
		t.Errorf("Title = %q, want One", d.Title)
	}

	writeDirective(t, dir, "live", "# Two\n")
	d, err = s.Load("live")
	if err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if d.Title != "Two" {
		t.Errorf("Title = %q, want Two after edit", d.Title)
	}
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	writeDirective(t, dir, "beta", "# Beta\n")
	writeDirective(t, dir, "alpha", sampleDirective)
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore"), 0o644); err != nil {
		t.Fatalf("write notes: %v", err)
	}

	s := NewStore(dir)
	list, err := s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("List returned %d directives, want 2", len(list))
	}
	if list[0].Name != "alpha" || list[1].Name != "beta" {
		t.Errorf("List order = [%s %s], want [alpha beta]", list[0].Name, list[1].Name)
	}
}

func TestListMissingDir(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "nowhere"))

	list, err := s.List()
	if err != nil {
		t.Fatalf("List of missing dir failed: %v", err)
	}
	if list != nil {
		t.Errorf("List = %v, want nil", list)
	}
}

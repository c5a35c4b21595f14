// Package directive loads directive documents: markdown instruction
// files with YAML frontmatter declaring which tools the directive may
// use.
package directive

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

// Directive is a parsed directive document.
type Directive struct {
	Name        string   // Filename without .md extension
	Title       string   // First markdown heading, or Name if none
	Description string   // From frontmatter
	Tools       []string // Allow-list of tool names from frontmatter
	MaxTurns    int      // Per-directive turn budget override, 0 = unset
	Content     string   // Markdown body (frontmatter stripped)
}

// Store reads directives from a directory. Files are re-read on every
// Load so edits take effect without a restart.
type Store struct {
	dir string
}

// NewStore creates a directive store over the given directory.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// frontmatter is the YAML metadata block at the top of a directive file.
type frontmatter struct {
	Description string   `yaml:"description"`
	Tools       []string `yaml:"tools"`
	MaxTurns    int      `yaml:"max_turns"`
}

// Load reads and parses a single directive by name. Returns an error
// wrapping fs.ErrNotExist when no such directive file exists.
func (s *Store) Load(name string) (*Directive, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	path := filepath.Join(s.dir, name+".md")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("directive %q: %w", name, fs.ErrNotExist)
		}
		return nil, fmt.Errorf("read directive %q: %w", name, err)
	}

	return parse(name, string(data))
}

// List returns all directives in the store, sorted by name. Files that
// fail to parse are skipped.
func (s *Store) List() ([]*Directive, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read directives dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") {
			names = append(names, strings.TrimSuffix(e.Name(), ".md"))
		}
	}
	sort.Strings(names)

	var directives []*Directive
	for _, name := range names {
		d, err := s.Load(name)
		if err != nil {
			continue
		}
		directives = append(directives, d)
	}
	return directives, nil
}

// validateName rejects names that could escape the directives
// directory. Directive names come straight from URL paths.
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("directive name is empty")
	}
	if strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return fmt.Errorf("invalid directive name %q", name)
	}
	return nil
}

// parse splits frontmatter from body and extracts the title.
func parse(name, raw string) (*Directive, error) {
	meta, body, err := splitFrontmatter(raw)
	if err != nil {
		return nil, fmt.Errorf("directive %q: %w", name, err)
	}

	d := &Directive{
		Name:        name,
		Description: meta.Description,
		Tools:       meta.Tools,
		MaxTurns:    meta.MaxTurns,
		Content:     body,
	}

	d.Title = extractTitle(body)
	if d.Title == "" {
		d.Title = name
	}
	return d, nil
}

// splitFrontmatter separates the leading "---" delimited YAML block
// from the markdown body. A file with no frontmatter is valid; it just
// declares no tools.
func splitFrontmatter(raw string) (frontmatter, string, error) {
	var meta frontmatter

	if !strings.HasPrefix(raw, "---") {
		return meta, raw, nil
	}

	rest := raw[3:]
	if i := strings.IndexByte(rest, '\n'); i >= 0 {
		rest = rest[i+1:]
	} else {
		return meta, raw, nil
	}

	closeIdx := strings.Index(rest, "\n---")
	if closeIdx < 0 {
		return meta, raw, nil
	}

	block := rest[:closeIdx]
	body := rest[closeIdx+4:]
	body = strings.TrimLeft(body, "\r\n")

	if err := yaml.Unmarshal([]byte(block), &meta); err != nil {
		return frontmatter{}, "", fmt.Errorf("parse frontmatter: %w", err)
	}
	return meta, body, nil
}

// extractTitle returns the text of the first heading in the markdown
// body, or "" if there is none.
func extractTitle(body string) string {
	src := []byte(body)
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))

	var title string
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if h, ok := n.(*ast.Heading); ok {
			var sb strings.Builder
			for c := h.FirstChild(); c != nil; c = c.NextSibling() {
				if t, ok := c.(*ast.Text); ok {
					sb.Write(t.Value(src))
				}
			}
			title = strings.TrimSpace(sb.String())
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return title
}

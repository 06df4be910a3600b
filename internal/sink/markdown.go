package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dt-pm-tools/jira-loader/internal/loader"
)

// Markdown writes each document to <dir>/<KEY>.md with its metadata as
// YAML frontmatter.
type Markdown struct {
	dir string
}

// NewMarkdown creates dir if needed.
func NewMarkdown(dir string) (*Markdown, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	return &Markdown{dir: dir}, nil
}

func (s *Markdown) Write(ctx context.Context, doc loader.Document) error {
	key := doc.Key()
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return fmt.Errorf("cannot name a file after issue key %q", key)
	}

	front, err := yaml.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling frontmatter for %s: %w", key, err)
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(front)
	b.WriteString("---\n\n")
	b.WriteString(doc.Text)

	filename := filepath.Join(s.dir, key+".md")
	if err := os.WriteFile(filename, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}

func (s *Markdown) Close() error {
	return nil
}

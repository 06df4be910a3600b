package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/dt-pm-tools/jira-loader/internal/loader"
)

// JSONL writes one JSON object per line.
type JSONL struct {
	enc    *json.Encoder
	closer io.Closer
}

// NewJSONL writes to w and closes closer on Close.
func NewJSONL(w io.Writer, closer io.Closer) *JSONL {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &JSONL{enc: enc, closer: closer}
}

func (s *JSONL) Write(ctx context.Context, doc loader.Document) error {
	if err := s.enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding %s: %w", doc.Key(), err)
	}
	return nil
}

func (s *JSONL) Close() error {
	return s.closer.Close()
}

// YAML writes a multi-document YAML stream.
type YAML struct {
	enc    *yaml.Encoder
	closer io.Closer
}

// NewYAML writes to w and closes closer on Close.
func NewYAML(w io.Writer, closer io.Closer) *YAML {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	return &YAML{enc: enc, closer: closer}
}

func (s *YAML) Write(ctx context.Context, doc loader.Document) error {
	if err := s.enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding %s: %w", doc.Key(), err)
	}
	return nil
}

func (s *YAML) Close() error {
	if err := s.enc.Close(); err != nil {
		s.closer.Close()
		return fmt.Errorf("flushing yaml: %w", err)
	}
	return s.closer.Close()
}

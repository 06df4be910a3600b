// Package sink writes loaded documents somewhere a pipeline can pick them up.
package sink

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dt-pm-tools/jira-loader/internal/loader"
)

// Output formats.
const (
	FormatJSONL    = "jsonl"
	FormatYAML     = "yaml"
	FormatMarkdown = "markdown"
	FormatSQLite   = "sqlite"
)

// Formats lists the supported output formats.
var Formats = []string{FormatJSONL, FormatYAML, FormatMarkdown, FormatSQLite}

// Sink consumes documents.
type Sink interface {
	Write(ctx context.Context, doc loader.Document) error
	Close() error
}

// Open creates a sink for format. Stream formats write to stdout when path
// is empty; markdown needs a directory and sqlite a database file.
func Open(format, path string, stdout io.Writer) (Sink, error) {
	switch format {
	case FormatJSONL, FormatYAML:
		w, closer := stdout, io.Closer(nopCloser{})
		if path != "" {
			f, err := os.Create(path)
			if err != nil {
				return nil, fmt.Errorf("creating output file: %w", err)
			}
			w, closer = f, f
		}
		if format == FormatJSONL {
			return NewJSONL(w, closer), nil
		}
		return NewYAML(w, closer), nil
	case FormatMarkdown:
		if path == "" {
			return nil, fmt.Errorf("--out is required for %s output (a directory)", format)
		}
		return NewMarkdown(path)
	case FormatSQLite:
		if path == "" {
			return nil, fmt.Errorf("--out is required for %s output (a database file)", format)
		}
		return NewSQLite(path)
	default:
		return nil, fmt.Errorf("unknown output format %q (want one of %v)", format, Formats)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Package loader turns the result of a JQL search into documents for an
// indexing pipeline.
//
// A Loader holds a Searcher and a query. Ranging over Documents issues one
// search for every matching issue, then maps the fetched issues to
// documents one at a time. Breaking out of the loop stops the mapping;
// ranging again searches again.
package loader

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/dt-pm-tools/jira-loader/internal/telemetry"
)

// Unbounded asks a Searcher for every matching issue.
const Unbounded = 0

// SearchOptions controls a single search.
type SearchOptions struct {
	// MaxResults caps the number of issues returned. Unbounded (zero)
	// means all of them, however many pages that takes.
	MaxResults int
}

// Searcher runs JQL searches against an issue tracker.
type Searcher interface {
	Search(ctx context.Context, jql string, opts SearchOptions) ([]Issue, error)
}

// Verifier is implemented by searchers that can check their credentials.
type Verifier interface {
	Myself(ctx context.Context) (string, error)
}

// SearchError wraps a failed search.
type SearchError struct {
	JQL string
	Err error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("searching issues with JQL %q: %v", e.JQL, e.Err)
}

func (e *SearchError) Unwrap() error {
	return e.Err
}

// Loader produces documents for the issues matching a JQL query.
type Loader struct {
	client  Searcher
	jql     string
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(ld *Loader) {
		if l != nil {
			ld.logger = l
		}
	}
}

// WithMetrics records searches and documents on m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(ld *Loader) {
		ld.metrics = m
	}
}

// New creates a Loader for jql using an already authenticated client.
func New(client Searcher, jql string, opts ...Option) *Loader {
	ld := &Loader{
		client: client,
		jql:    jql,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(ld)
	}
	return ld
}

// JQL returns the query the loader runs.
func (ld *Loader) JQL() string {
	return ld.jql
}

// Client returns the searcher the loader runs against.
func (ld *Loader) Client() Searcher {
	return ld.client
}

// Documents returns a lazy sequence of documents, one per matching issue,
// in the order the tracker returned them. A failed search is yielded once
// as a *SearchError and ends the sequence.
func (ld *Loader) Documents(ctx context.Context) iter.Seq2[Document, error] {
	return func(yield func(Document, error) bool) {
		issues, err := ld.search(ctx)
		if err != nil {
			yield(Document{}, err)
			return
		}
		for _, issue := range issues {
			doc := ToDocument(issue)
			ld.metrics.ObserveDocument()
			if !yield(doc, nil) {
				return
			}
		}
	}
}

// Load collects every document.
func (ld *Loader) Load(ctx context.Context) ([]Document, error) {
	var docs []Document
	for doc, err := range ld.Documents(ctx) {
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (ld *Loader) search(ctx context.Context) ([]Issue, error) {
	ld.logger.InfoContext(ctx, "fetching issues", "jql", ld.jql)

	start := time.Now()
	issues, err := ld.client.Search(ctx, ld.jql, SearchOptions{MaxResults: Unbounded})
	ld.metrics.ObserveSearch(start, err)
	if err != nil {
		return nil, &SearchError{JQL: ld.jql, Err: err}
	}

	ld.logger.InfoContext(ctx, "found issues", "jql", ld.jql, "count", len(issues))
	return issues, nil
}

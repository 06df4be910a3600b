// Package backend registers the tracker clients the loader can dial.
//
// Import it for its side effects:
//
//	import _ "github.com/dt-pm-tools/jira-loader/internal/backend"
package backend

import (
	"context"
	"fmt"

	"github.com/dt-pm-tools/jira-loader/internal/config"
	"github.com/dt-pm-tools/jira-loader/internal/jira"
	"github.com/dt-pm-tools/jira-loader/internal/loader"
	"github.com/dt-pm-tools/jira-loader/internal/markdown"
)

// Backend names.
const (
	REST   = "rest"
	GoJira = "go-jira"
)

func init() {
	loader.RegisterBackend(REST, dialREST)
	loader.RegisterBackend(GoJira, dialGoJira)
}

// RESTSearcher adapts the REST client to loader.Searcher.
type RESTSearcher struct {
	client *jira.Client
}

// NewRESTSearcher wraps client.
func NewRESTSearcher(client *jira.Client) *RESTSearcher {
	return &RESTSearcher{client: client}
}

func dialREST(ctx context.Context, p loader.DialParams) (loader.Searcher, error) {
	cfg := config.Config{
		URL:        p.Credentials.ServerURL,
		Username:   p.Credentials.Username,
		Token:      p.Credentials.APIToken,
		APIVersion: p.APIVersion,
	}
	return NewRESTSearcher(jira.NewClient(cfg, jira.WithHTTPClient(p.HTTPClient))), nil
}

// Search implements loader.Searcher.
func (s *RESTSearcher) Search(ctx context.Context, jql string, opts loader.SearchOptions) ([]loader.Issue, error) {
	raw, err := s.client.Search(ctx, jql, opts.MaxResults)
	if err != nil {
		return nil, err
	}

	issues := make([]loader.Issue, 0, len(raw))
	for _, r := range raw {
		issue, err := convertIssue(r)
		if err != nil {
			return nil, fmt.Errorf("converting %s: %w", r.Key, err)
		}
		issues = append(issues, issue)
	}
	return issues, nil
}

// Myself implements loader.Verifier.
func (s *RESTSearcher) Myself(ctx context.Context) (string, error) {
	me, err := s.client.Myself(ctx)
	if err != nil {
		return "", err
	}
	return me.DisplayName, nil
}

func convertIssue(r jira.Issue) (loader.Issue, error) {
	issue := loader.Issue{
		Self:    r.Self,
		Key:     r.Key,
		Summary: r.Fields.Summary,
		Status:  r.Fields.Status.Name,
		Created: r.Fields.Created,
		Updated: r.Fields.Updated,
	}

	desc, ok, err := markdown.Text(r.Fields.Description)
	if err != nil {
		return loader.Issue{}, fmt.Errorf("description: %w", err)
	}
	if ok {
		issue.Description = &desc
	}

	if r.Fields.Reporter != nil {
		issue.Reporter = r.Fields.Reporter.DisplayName
	}
	if r.Fields.Assignee != nil {
		name := r.Fields.Assignee.DisplayName
		issue.Assignee = &name
	}

	if r.Fields.Comment != nil {
		for i, c := range r.Fields.Comment.Comments {
			body, _, err := markdown.Text(c.Body)
			if err != nil {
				return loader.Issue{}, fmt.Errorf("comment %d: %w", i, err)
			}
			issue.Comments = append(issue.Comments, loader.Comment{
				Author: c.Author.DisplayName,
				Body:   body,
			})
		}
	}
	return issue, nil
}

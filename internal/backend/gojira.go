package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gojira "github.com/andygrunwald/go-jira"

	"github.com/dt-pm-tools/jira-loader/internal/config"
	"github.com/dt-pm-tools/jira-loader/internal/jira"
	"github.com/dt-pm-tools/jira-loader/internal/loader"
)

// jiraTimeLayout is the timestamp layout Jira uses on the wire.
const jiraTimeLayout = "2006-01-02T15:04:05.000-0700"

var errEnoughIssues = errors.New("enough issues")

// GoJiraSearcher adapts a go-jira client to loader.Searcher.
type GoJiraSearcher struct {
	client *gojira.Client
}

// NewGoJiraSearcher wraps client.
func NewGoJiraSearcher(client *gojira.Client) *GoJiraSearcher {
	return &GoJiraSearcher{client: client}
}

func dialGoJira(ctx context.Context, p loader.DialParams) (loader.Searcher, error) {
	if p.APIVersion == 3 {
		return nil, fmt.Errorf("the %s backend only speaks REST API v2", GoJira)
	}

	client, err := gojira.NewClient(goJiraHTTPClient(p), p.Credentials.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("creating go-jira client: %w", err)
	}
	return NewGoJiraSearcher(client), nil
}

// goJiraHTTPClient wraps the caller's transport in basic auth and keeps its
// timeout, falling back to the same default as the REST client.
func goJiraHTTPClient(p loader.DialParams) *http.Client {
	tp := gojira.BasicAuthTransport{
		Username: p.Credentials.Username,
		Password: p.Credentials.APIToken,
	}
	if p.HTTPClient != nil {
		tp.Transport = p.HTTPClient.Transport
	}
	hc := tp.Client()
	hc.Timeout = config.DefaultTimeoutSeconds * time.Second
	if p.HTTPClient != nil && p.HTTPClient.Timeout != 0 {
		hc.Timeout = p.HTTPClient.Timeout
	}
	return hc
}

// Search implements loader.Searcher. go-jira pages through the results
// itself; a positive MaxResults stops the paging early.
func (s *GoJiraSearcher) Search(ctx context.Context, jql string, opts loader.SearchOptions) ([]loader.Issue, error) {
	searchOpts := &gojira.SearchOptions{
		MaxResults: jira.PageSize,
		Fields:     jira.SearchFields,
	}

	var issues []loader.Issue
	err := s.client.Issue.SearchPagesWithContext(ctx, jql, searchOpts, func(i gojira.Issue) error {
		issues = append(issues, convertGoJiraIssue(i))
		if opts.MaxResults > 0 && len(issues) >= opts.MaxResults {
			return errEnoughIssues
		}
		return nil
	})
	if err != nil && !errors.Is(err, errEnoughIssues) {
		return nil, err
	}
	return issues, nil
}

// Myself implements loader.Verifier.
func (s *GoJiraSearcher) Myself(ctx context.Context) (string, error) {
	me, resp, err := s.client.User.GetSelfWithContext(ctx)
	if err != nil {
		return "", gojira.NewJiraError(resp, err)
	}
	return me.DisplayName, nil
}

func convertGoJiraIssue(i gojira.Issue) loader.Issue {
	issue := loader.Issue{
		Self: i.Self,
		Key:  i.Key,
	}
	f := i.Fields
	if f == nil {
		return issue
	}

	issue.Summary = f.Summary
	if f.Description != "" {
		desc := f.Description
		issue.Description = &desc
	}
	if f.Status != nil {
		issue.Status = f.Status.Name
	}
	if f.Reporter != nil {
		issue.Reporter = f.Reporter.DisplayName
	}
	if f.Assignee != nil {
		name := f.Assignee.DisplayName
		issue.Assignee = &name
	}
	issue.Created = formatJiraTime(time.Time(f.Created))
	issue.Updated = formatJiraTime(time.Time(f.Updated))

	if f.Comments != nil {
		for _, c := range f.Comments.Comments {
			if c == nil {
				continue
			}
			issue.Comments = append(issue.Comments, loader.Comment{
				Author: c.Author.DisplayName,
				Body:   c.Body,
			})
		}
	}
	return issue
}

// formatJiraTime writes t back in Jira's own layout, which go-jira parsed
// it from, so the timestamps match what the REST backend passes through.
func formatJiraTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(jiraTimeLayout)
}

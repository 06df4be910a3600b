package jira

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dt-pm-tools/jira-loader/internal/config"
)

// PageSize is the number of issues requested per search page. Jira caps
// maxResults server-side (commonly at 100) whatever the client asks for.
const PageSize = 100

// SearchFields are the issue fields requested by Search.
var SearchFields = []string{
	"summary", "description", "status", "reporter", "assignee",
	"created", "updated", "comment",
}

// APIError is returned when JIRA answers with a non-success status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("JIRA API returned %d: %s", e.StatusCode, e.Body)
}

// Client is a JIRA REST API client.
type Client struct {
	baseURL    string
	apiVersion int
	authHeader string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient creates a new JIRA client from the given config.
func NewClient(cfg config.Config, opts ...Option) *Client {
	creds := base64.StdEncoding.EncodeToString([]byte(cfg.Username + ":" + cfg.Token))
	version := cfg.APIVersion
	if version == 0 {
		version = 2
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = config.DefaultTimeoutSeconds * time.Second
	}
	c := &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiVersion: version,
		authHeader: "Basic " + creds,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIVersion reports the REST API version the client talks to.
func (c *Client) APIVersion() int {
	return c.apiVersion
}

// Myself fetches the authenticated user. It is used to verify credentials.
func (c *Client) Myself(ctx context.Context) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, "/myself", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Search runs a JQL query. A limit of zero returns every matching issue,
// following startAt across pages until the reported total is reached. A
// positive limit stops once that many issues have been collected.
func (c *Client) Search(ctx context.Context, jql string, limit int) ([]Issue, error) {
	var issues []Issue
	startAt := 0
	for {
		size := PageSize
		if limit > 0 && limit-len(issues) < size {
			size = limit - len(issues)
		}

		req := SearchRequest{
			JQL:        jql,
			StartAt:    startAt,
			MaxResults: size,
			Fields:     SearchFields,
		}
		var page SearchResponse
		if err := c.do(ctx, http.MethodPost, "/search", req, &page); err != nil {
			return nil, fmt.Errorf("searching issues at %d: %w", startAt, err)
		}

		issues = append(issues, page.Issues...)
		startAt += len(page.Issues)

		if len(page.Issues) == 0 || startAt >= page.Total {
			break
		}
		if limit > 0 && len(issues) >= limit {
			break
		}
	}

	if limit > 0 && len(issues) > limit {
		issues = issues[:limit]
	}
	return issues, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	url := fmt.Sprintf("%s/rest/api/%d%s", c.baseURL, c.apiVersion, path)

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshalling payload: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: errorBody(data)}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// errorBody prefers JIRA's structured error messages over the raw body.
func errorBody(data []byte) string {
	var jiraErr ErrorResponse
	if json.Unmarshal(data, &jiraErr) == nil && (len(jiraErr.ErrorMessages) > 0 || len(jiraErr.Errors) > 0) {
		msgs := append([]string{}, jiraErr.ErrorMessages...)
		for field, msg := range jiraErr.Errors {
			msgs = append(msgs, field+": "+msg)
		}
		return strings.Join(msgs, "; ")
	}
	return strings.TrimSpace(string(data))
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", c.authHeader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
}

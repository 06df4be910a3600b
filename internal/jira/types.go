package jira

import "encoding/json"

// Issue represents a JIRA issue as returned by the search endpoint.
type Issue struct {
	ID     string `json:"id"`
	Key    string `json:"key"`
	Self   string `json:"self"`
	Fields Fields `json:"fields"`
}

// Fields contains the issue fields the loader requests.
//
// Description and comment bodies are kept raw: REST v2 sends plain strings,
// REST v3 sends ADF documents, and either may be null.
type Fields struct {
	Summary     string          `json:"summary"`
	Description json.RawMessage `json:"description,omitempty"`
	Status      Status          `json:"status"`
	Reporter    *User           `json:"reporter,omitempty"`
	Assignee    *User           `json:"assignee,omitempty"`
	Comment     *Comments       `json:"comment,omitempty"`
	Created     string          `json:"created"`
	Updated     string          `json:"updated"`
}

// Status represents a JIRA status.
type Status struct {
	Name string `json:"name"`
}

// User represents a JIRA user.
type User struct {
	AccountID    string `json:"accountId,omitempty"`
	EmailAddress string `json:"emailAddress,omitempty"`
	DisplayName  string `json:"displayName"`
}

// Comments wraps the comments array from the JIRA API.
type Comments struct {
	Comments []Comment `json:"comments"`
	Total    int       `json:"total"`
}

// Comment represents a single JIRA comment.
type Comment struct {
	Author  User            `json:"author"`
	Body    json.RawMessage `json:"body"`
	Created string          `json:"created"`
}

// ADFNode represents a node in the Atlassian Document Format.
type ADFNode struct {
	Type    string         `json:"type"`
	Content []ADFNode      `json:"content,omitempty"`
	Text    string         `json:"text,omitempty"`
	Attrs   map[string]any `json:"attrs,omitempty"`
	Marks   []ADFMark      `json:"marks,omitempty"`
}

// ADFMark represents an inline formatting mark in ADF.
type ADFMark struct {
	Type  string         `json:"type"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

// SearchRequest is the body for POST /rest/api/{version}/search.
type SearchRequest struct {
	JQL        string   `json:"jql"`
	StartAt    int      `json:"startAt"`
	MaxResults int      `json:"maxResults"`
	Fields     []string `json:"fields,omitempty"`
}

// SearchResponse is one page of search results.
type SearchResponse struct {
	StartAt    int     `json:"startAt"`
	MaxResults int     `json:"maxResults"`
	Total      int     `json:"total"`
	Issues     []Issue `json:"issues"`
}

// ErrorResponse is the standard JIRA error body.
type ErrorResponse struct {
	ErrorMessages []string          `json:"errorMessages"`
	Errors        map[string]string `json:"errors"`
}

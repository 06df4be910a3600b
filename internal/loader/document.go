package loader

import "strings"

// Metadata keys set on every Document.
const (
	MetaSource    = "source"
	MetaIssueKey  = "issue_key"
	MetaStatus    = "status"
	MetaReporter  = "reporter"
	MetaAssignee  = "assignee"
	MetaCreatedAt = "created_at"
	MetaUpdatedAt = "updated_at"
)

// Placeholders for nullable issue fields.
const (
	NoDescription = "No description"
	Unassigned    = "Unassigned"
)

// Issue is the tracker-neutral view of a Jira issue that backends return.
type Issue struct {
	Self        string
	Key         string
	Summary     string
	Description *string
	Status      string
	Reporter    string
	Assignee    *string
	Created     string
	Updated     string
	Comments    []Comment
}

// Comment is a single issue comment.
type Comment struct {
	Author string
	Body   string
}

// Document is one issue rendered for an indexing pipeline.
type Document struct {
	Text     string            `json:"text"     yaml:"text"`
	Metadata map[string]string `json:"metadata" yaml:"metadata"`
}

// Key returns the issue key the document was built from.
func (d Document) Key() string {
	return d.Metadata[MetaIssueKey]
}

// ToDocument maps an issue to a document. Bodies are copied verbatim.
func ToDocument(issue Issue) Document {
	description := NoDescription
	if issue.Description != nil && *issue.Description != "" {
		description = *issue.Description
	}

	var b strings.Builder
	b.WriteString("Summary: " + issue.Summary + "\n\n")
	b.WriteString("Description: " + description + "\n\n")
	for _, c := range issue.Comments {
		b.WriteString("Comment by " + c.Author + ":\n")
		b.WriteString(c.Body + "\n\n")
	}

	assignee := Unassigned
	if issue.Assignee != nil {
		assignee = *issue.Assignee
	}

	return Document{
		Text: b.String(),
		Metadata: map[string]string{
			MetaSource:    issue.Self,
			MetaIssueKey:  issue.Key,
			MetaStatus:    issue.Status,
			MetaReporter:  issue.Reporter,
			MetaAssignee:  assignee,
			MetaCreatedAt: issue.Created,
			MetaUpdatedAt: issue.Updated,
		},
	}
}

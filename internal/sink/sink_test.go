package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/dt-pm-tools/jira-loader/internal/loader"
)

func testDocs() []loader.Document {
	desc := "Implement X"
	dave := "Dave"
	return []loader.Document{
		loader.ToDocument(loader.Issue{
			Self: "https://jira.example.com/rest/api/2/issue/10001", Key: "P-1",
			Summary: "Fix bug", Status: "Open", Reporter: "Alice",
			Created: "2024-01-01", Updated: "2024-01-02",
			Comments: []loader.Comment{{Author: "Bob", Body: "Looks <good> & fine"}},
		}),
		loader.ToDocument(loader.Issue{
			Self: "https://jira.example.com/rest/api/2/issue/10002", Key: "P-2",
			Summary: "Add feature", Description: &desc, Status: "Done",
			Reporter: "Carol", Assignee: &dave,
			Created: "2024-02-01", Updated: "2024-02-02",
		}),
	}
}

func writeAll(t *testing.T, s Sink) {
	t.Helper()
	for _, doc := range testDocs() {
		require.NoError(t, s.Write(context.Background(), doc))
	}
	require.NoError(t, s.Close())
}

func TestJSONL(t *testing.T) {
	var buf bytes.Buffer
	s, err := Open(FormatJSONL, "", &buf)
	require.NoError(t, err)
	writeAll(t, s)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Looks <good> & fine", "HTML must not be escaped")

	var got loader.Document
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &got))
	assert.Equal(t, testDocs()[1], got)
}

func TestYAML_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.yaml")
	s, err := Open(FormatYAML, path, nil)
	require.NoError(t, err)
	writeAll(t, s)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec := yaml.NewDecoder(f)
	var docs []loader.Document
	for {
		var doc loader.Document
		if err := dec.Decode(&doc); err != nil {
			break
		}
		docs = append(docs, doc)
	}
	assert.Equal(t, testDocs(), docs)
}

func TestMarkdown(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	s, err := Open(FormatMarkdown, dir, nil)
	require.NoError(t, err)
	writeAll(t, s)

	data, err := os.ReadFile(filepath.Join(dir, "P-2.md"))
	require.NoError(t, err)

	content := string(data)
	require.True(t, strings.HasPrefix(content, "---\n"))
	parts := strings.SplitN(content, "---\n", 3)
	require.Len(t, parts, 3)

	var meta map[string]string
	require.NoError(t, yaml.Unmarshal([]byte(parts[1]), &meta))
	assert.Equal(t, testDocs()[1].Metadata, meta)
	assert.Equal(t, "\n"+testDocs()[1].Text, parts[2])
}

func TestMarkdown_RejectsUnsafeKey(t *testing.T) {
	s, err := NewMarkdown(t.TempDir())
	require.NoError(t, err)

	err = s.Write(context.Background(), loader.Document{Metadata: map[string]string{loader.MetaIssueKey: "../P-1"}})
	assert.Error(t, err)
}

func TestSQLite_Upsert(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.db")
	s, err := NewSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	ctx := context.Background()
	docs := testDocs()
	for _, doc := range docs {
		require.NoError(t, s.Write(ctx, doc))
	}

	// A second load replaces rows instead of duplicating them.
	docs[0].Metadata[loader.MetaStatus] = "In Progress"
	require.NoError(t, s.Write(ctx, docs[0]))

	rows, err := s.Documents(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "P-1", rows[0].IssueKey)
	assert.Equal(t, "In Progress", rows[0].Status)
	assert.Equal(t, "Unassigned", rows[0].Assignee)
	assert.Equal(t, docs[0].Text, rows[0].Text)
	assert.True(t, fixed.Equal(rows[0].LoadedAt))

	var meta map[string]string
	require.NoError(t, json.Unmarshal([]byte(rows[1].Metadata), &meta))
	assert.Equal(t, docs[1].Metadata, meta)
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open("csv", "", nil)
	assert.Error(t, err)
	_, err = Open(FormatMarkdown, "", nil)
	assert.Error(t, err)
	_, err = Open(FormatSQLite, "", nil)
	assert.Error(t, err)
}

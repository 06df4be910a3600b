package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	gojira "github.com/andygrunwald/go-jira"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dt-pm-tools/jira-loader/internal/config"
	"github.com/dt-pm-tools/jira-loader/internal/loader"
)

const v2Issues = `[
	{
		"id": "10001", "key": "P-1", "self": "%[1]s/rest/api/2/issue/10001",
		"fields": {
			"summary": "Fix bug", "description": null,
			"status": {"name": "Open"},
			"reporter": {"displayName": "Alice"}, "assignee": null,
			"created": "2024-01-01T10:00:00.000+0000", "updated": "2024-01-02T10:00:00.000+0000",
			"comment": {"comments": [{"author": {"displayName": "Bob"}, "body": "Looks good"}], "total": 1}
		}
	},
	{
		"id": "10002", "key": "P-2", "self": "%[1]s/rest/api/2/issue/10002",
		"fields": {
			"summary": "Add feature", "description": "Implement X",
			"status": {"name": "Done"},
			"reporter": {"displayName": "Carol"}, "assignee": {"displayName": "Dave"},
			"created": "2024-02-01T10:00:00.000+0000", "updated": "2024-02-02T10:00:00.000+0000",
			"comment": {"comments": [], "total": 0}
		}
	}
]`

// newJiraServer serves the two issues above, one per page, for both the
// POST (rest backend) and GET (go-jira backend) flavours of search.
func newJiraServer(t *testing.T) *httptest.Server {
	t.Helper()
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rest/api/2/myself":
			user, _, _ := r.BasicAuth()
			if user != "user" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			io.WriteString(w, `{"displayName": "Alice"}`)
		case "/rest/api/2/search":
			var issues []json.RawMessage
			require.NoError(t, json.Unmarshal([]byte(fmt.Sprintf(v2Issues, server.URL)), &issues))

			startAt := 0
			if r.Method == http.MethodPost {
				var req struct {
					StartAt int `json:"startAt"`
				}
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				startAt = req.StartAt
			} else {
				startAt, _ = strconv.Atoi(r.URL.Query().Get("startAt"))
			}

			page := issues[startAt:]
			if len(page) > 1 {
				page = page[:1]
			}
			json.NewEncoder(w).Encode(map[string]any{
				"startAt": startAt, "maxResults": 1, "total": len(issues), "issues": page,
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBackends_Registered(t *testing.T) {
	assert.Subset(t, loader.Backends(), []string{REST, GoJira})
}

func TestBackends_EndToEnd(t *testing.T) {
	tests := []struct {
		backend   string
		createdAt string
	}{
		{REST, "2024-01-01T10:00:00.000+0000"},
		{GoJira, "2024-01-01T10:00:00.000+0000"},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			server := newJiraServer(t)

			ld, err := loader.FromCredentials(context.Background(), "project = P",
				loader.Credentials{ServerURL: server.URL, Username: "user", APIToken: "token"},
				loader.WithEnv(config.MapLookup(nil)),
				loader.WithBackend(tt.backend),
				loader.WithVerify(true),
				loader.WithLoaderOptions(loader.WithLogger(quietLogger())),
			)
			require.NoError(t, err)

			docs, err := ld.Load(context.Background())
			require.NoError(t, err)
			require.Len(t, docs, 2)

			assert.Equal(t, "Summary: Fix bug\n\nDescription: No description\n\nComment by Bob:\nLooks good\n\n", docs[0].Text)
			assert.Equal(t, loader.Unassigned, docs[0].Metadata[loader.MetaAssignee])
			assert.Equal(t, "Alice", docs[0].Metadata[loader.MetaReporter])
			assert.Equal(t, server.URL+"/rest/api/2/issue/10001", docs[0].Metadata[loader.MetaSource])
			assert.Equal(t, tt.createdAt, docs[0].Metadata[loader.MetaCreatedAt])

			assert.Equal(t, "Summary: Add feature\n\nDescription: Implement X\n\n", docs[1].Text)
			assert.Equal(t, "Dave", docs[1].Metadata[loader.MetaAssignee])
			assert.Equal(t, "Done", docs[1].Metadata[loader.MetaStatus])
		})
	}
}

func TestBackends_VerifyRejectsBadCredentials(t *testing.T) {
	for _, name := range []string{REST, GoJira} {
		t.Run(name, func(t *testing.T) {
			server := newJiraServer(t)
			_, err := loader.FromCredentials(context.Background(), "q",
				loader.Credentials{ServerURL: server.URL, Username: "mallory", APIToken: "x"},
				loader.WithEnv(config.MapLookup(nil)),
				loader.WithBackend(name),
				loader.WithVerify(true),
			)
			assert.Error(t, err)
		})
	}
}

func TestRESTSearcher_MaxResults(t *testing.T) {
	server := newJiraServer(t)
	s, err := dialREST(context.Background(), loader.DialParams{
		Credentials: loader.Credentials{ServerURL: server.URL, Username: "user", APIToken: "token"},
	})
	require.NoError(t, err)

	issues, err := s.Search(context.Background(), "q", loader.SearchOptions{MaxResults: 1})
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "P-1", issues[0].Key)
}

func TestGoJiraSearcher_MaxResults(t *testing.T) {
	server := newJiraServer(t)
	s, err := dialGoJira(context.Background(), loader.DialParams{
		Credentials: loader.Credentials{ServerURL: server.URL, Username: "user", APIToken: "token"},
	})
	require.NoError(t, err)

	issues, err := s.Search(context.Background(), "q", loader.SearchOptions{MaxResults: 1})
	require.NoError(t, err)
	require.Len(t, issues, 1)
}

func TestGoJiraHTTPClient_Timeout(t *testing.T) {
	creds := loader.Credentials{ServerURL: "http://jira.invalid", Username: "user", APIToken: "token"}

	hc := goJiraHTTPClient(loader.DialParams{Credentials: creds})
	assert.Equal(t, config.DefaultTimeoutSeconds*time.Second, hc.Timeout)
	assert.IsType(t, &gojira.BasicAuthTransport{}, hc.Transport)

	hc = goJiraHTTPClient(loader.DialParams{Credentials: creds, HTTPClient: &http.Client{Timeout: 5 * time.Second}})
	assert.Equal(t, 5*time.Second, hc.Timeout)
}

func TestGoJira_RejectsV3(t *testing.T) {
	_, err := dialGoJira(context.Background(), loader.DialParams{APIVersion: 3})
	assert.Error(t, err)
}

func TestConvertIssue_ADF(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/3/search", r.URL.Path)
		io.WriteString(w, `{"startAt": 0, "maxResults": 100, "total": 1, "issues": [{
			"key": "P-3", "self": "s",
			"fields": {
				"summary": "ADF",
				"description": {"type": "doc", "content": [{"type": "paragraph", "content": [{"type": "text", "text": "Hello", "marks": [{"type": "strong"}]}]}]},
				"status": {"name": "Open"}, "reporter": {"displayName": "Alice"},
				"created": "c", "updated": "u",
				"comment": {"comments": [{"author": {"displayName": "Bob"}, "body": {"type": "doc", "content": [{"type": "paragraph", "content": [{"type": "text", "text": "ok"}]}]}}]}
			}
		}]}`)
	}))
	defer server.Close()

	s, err := dialREST(context.Background(), loader.DialParams{
		Credentials: loader.Credentials{ServerURL: server.URL, Username: "user", APIToken: "token"},
		APIVersion:  3,
	})
	require.NoError(t, err)

	issues, err := s.Search(context.Background(), "q", loader.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, issues, 1)

	doc := loader.ToDocument(issues[0])
	assert.Equal(t, "Summary: ADF\n\nDescription: **Hello**\n\nComment by Bob:\nok\n\n", doc.Text)
}

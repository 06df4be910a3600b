package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/dt-pm-tools/jira-loader/internal/loader"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	issue_key  TEXT PRIMARY KEY,
	source     TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT '',
	reporter   TEXT NOT NULL DEFAULT '',
	assignee   TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL DEFAULT '',
	updated_at TEXT NOT NULL DEFAULT '',
	text       TEXT NOT NULL,
	metadata   TEXT NOT NULL DEFAULT '{}',
	loaded_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
`

// Row is a document as stored in the documents table.
type Row struct {
	IssueKey  string    `db:"issue_key"`
	Source    string    `db:"source"`
	Status    string    `db:"status"`
	Reporter  string    `db:"reporter"`
	Assignee  string    `db:"assignee"`
	CreatedAt string    `db:"created_at"`
	UpdatedAt string    `db:"updated_at"`
	Text      string    `db:"text"`
	Metadata  string    `db:"metadata"`
	LoadedAt  time.Time `db:"loaded_at"`
}

// SQLite upserts documents into a documents table keyed by issue key, so
// re-running a load refreshes rows in place.
type SQLite struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewSQLite opens (or creates) the database at path.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLite{db: db, now: time.Now}, nil
}

func (s *SQLite) Write(ctx context.Context, doc loader.Document) error {
	meta, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	row := Row{
		IssueKey:  doc.Metadata[loader.MetaIssueKey],
		Source:    doc.Metadata[loader.MetaSource],
		Status:    doc.Metadata[loader.MetaStatus],
		Reporter:  doc.Metadata[loader.MetaReporter],
		Assignee:  doc.Metadata[loader.MetaAssignee],
		CreatedAt: doc.Metadata[loader.MetaCreatedAt],
		UpdatedAt: doc.Metadata[loader.MetaUpdatedAt],
		Text:      doc.Text,
		Metadata:  string(meta),
		LoadedAt:  s.now().UTC(),
	}

	const query = `
		INSERT OR REPLACE INTO documents (
			issue_key, source, status, reporter, assignee,
			created_at, updated_at, text, metadata, loaded_at
		) VALUES (
			:issue_key, :source, :status, :reporter, :assignee,
			:created_at, :updated_at, :text, :metadata, :loaded_at
		)`

	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("upserting %s: %w", row.IssueKey, err)
	}
	return nil
}

// Documents returns the stored rows ordered by issue key.
func (s *SQLite) Documents(ctx context.Context) ([]Row, error) {
	var rows []Row
	if err := s.db.SelectContext(ctx, &rows, "SELECT * FROM documents ORDER BY issue_key"); err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	return rows, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

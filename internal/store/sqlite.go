// Package store persists analysis records in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"trace-go/internal/types"

	_ "modernc.org/sqlite" // SQLite driver registration
)

const busyTimeoutMillis = 5000

const schema = `
CREATE TABLE IF NOT EXISTS analysis_records (
	id        TEXT PRIMARY KEY,
	sent_at   INTEGER NOT NULL,
	filename  TEXT NOT NULL DEFAULT '',
	filesize  TEXT NOT NULL DEFAULT '',
	duration  TEXT NOT NULL DEFAULT '',
	analysis  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_analysis_records_sent_at ON analysis_records(sent_at DESC);
`

// SQLite is the record store. Records are append-only.
type SQLite struct {
	db *sql.DB
}

// Open opens or creates the database at path with WAL journaling, a busy
// timeout and a single connection, then applies the schema.
func Open(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeoutMillis)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: set busy_timeout: %w", err)
	}

	return migrate(db)
}

// OpenInMemory creates a private in-memory database (for tests and the CLI).
func OpenInMemory() (*SQLite, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("store: open in-memory database: %w", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	return migrate(db)
}

func migrate(db *sql.DB) (*SQLite, error) {
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// Insert stores rec under a fresh id and returns it. A zero SentAt is
// replaced with the current time.
func (s *SQLite) Insert(ctx context.Context, rec types.AnalysisRecord) (string, error) {
	analysis, err := json.Marshal(rec.Analysis)
	if err != nil {
		return "", fmt.Errorf("store: encode analysis: %w", err)
	}

	id := uuid.NewString()
	sentAt := rec.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO analysis_records (id, sent_at, filename, filesize, duration, analysis) VALUES (?, ?, ?, ?, ?, ?)`,
		id, sentAt.UnixNano(), rec.Filename, rec.Filesize, rec.Duration, string(analysis))
	if err != nil {
		return "", fmt.Errorf("store: insert record: %w", err)
	}
	return id, nil
}

// ListAll returns every record, newest first.
func (s *SQLite) ListAll(ctx context.Context) ([]types.AnalysisRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sent_at, filename, filesize, duration, analysis FROM analysis_records ORDER BY sent_at DESC, rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: list records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := []types.AnalysisRecord{}
	for rows.Next() {
		var (
			rec      types.AnalysisRecord
			sentAt   int64
			analysis string
		)
		if err := rows.Scan(&rec.ID, &sentAt, &rec.Filename, &rec.Filesize, &rec.Duration, &analysis); err != nil {
			return nil, fmt.Errorf("store: scan record: %w", err)
		}
		rec.SentAt = time.Unix(0, sentAt)
		if err := json.Unmarshal([]byte(analysis), &rec.Analysis); err != nil {
			return nil, fmt.Errorf("store: decode analysis for %s: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate records: %w", err)
	}
	return records, nil
}

func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM analysis_records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count records: %w", err)
	}
	return n, nil
}

// Package sqlite implements ports.TopicStore on SQLite (modernc.org/sqlite,
// pure Go). The topics table keeps aliases as a JSON array in a TEXT column
// and enforces URL uniqueness, so upserts keep IDs stable.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/corey/cognitia/internal/ports"
)

// Store implements ports.TopicStore backed by SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ ports.TopicStore = (*Store)(nil)

// Open opens (or creates) a SQLite database with WAL mode enabled.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS topics (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	url TEXT UNIQUE NOT NULL,
	summary TEXT NOT NULL DEFAULT '',
	aliases TEXT NOT NULL DEFAULT '[]',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_topics_title ON topics(title);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// UpsertTopic inserts t, or updates the row that already owns t.URL.
func (s *Store) UpsertTopic(ctx context.Context, t ports.TopicRecord) (int64, error) {
	t, err := t.Normalize()
	if err != nil {
		return 0, err
	}
	aliases, err := encodeAliases(t.Aliases)
	if err != nil {
		return 0, err
	}
	now := s.now().UTC().Format(time.RFC3339Nano)

	const stmt = `
INSERT INTO topics (title, url, summary, aliases, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(url) DO UPDATE SET
	title=excluded.title,
	summary=excluded.summary,
	aliases=excluded.aliases,
	updated_at=excluded.updated_at
RETURNING id;
`
	var id int64
	err = s.db.QueryRowContext(ctx, stmt, t.Title, t.URL, t.Summary, aliases, now, now).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert topic %q: %w", t.Title, err)
	}
	return id, nil
}

const selectTopic = `SELECT id, title, url, summary, aliases, updated_at FROM topics`

// GetTopic returns ports.ErrTopicNotFound if no row has this ID.
func (s *Store) GetTopic(ctx context.Context, id int64) (ports.TopicRecord, error) {
	row := s.db.QueryRowContext(ctx, selectTopic+` WHERE id = ?`, id)
	t, err := scanTopic(row)
	if errors.Is(err, sql.ErrNoRows) {
		return t, fmt.Errorf("topic %d: %w", id, ports.ErrTopicNotFound)
	}
	return t, err
}

// GetTopicByTitle matches the title exactly; the lowest ID wins on ties.
func (s *Store) GetTopicByTitle(ctx context.Context, title string) (ports.TopicRecord, error) {
	row := s.db.QueryRowContext(ctx, selectTopic+` WHERE title = ? ORDER BY id LIMIT 1`, title)
	t, err := scanTopic(row)
	if errors.Is(err, sql.ErrNoRows) {
		return t, fmt.Errorf("topic %q: %w", title, ports.ErrTopicNotFound)
	}
	return t, err
}

// DeleteTopic is idempotent.
func (s *Store) DeleteTopic(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM topics WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete topic %d: %w", id, err)
	}
	return nil
}

// CountTopics returns the number of rows in topics.
func (s *Store) CountTopics(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM topics`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count topics: %w", err)
	}
	return n, nil
}

// ListAllTopics returns every topic ordered by title, then ID.
func (s *Store) ListAllTopics(ctx context.Context) ([]ports.TopicRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectTopic+` ORDER BY title, id`)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	defer rows.Close()

	var topics []ports.TopicRecord
	for rows.Next() {
		t, err := scanTopic(rows)
		if err != nil {
			return nil, err
		}
		topics = append(topics, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	return topics, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTopic(row scanner) (ports.TopicRecord, error) {
	var (
		t       ports.TopicRecord
		aliases string
		updated string
	)
	if err := row.Scan(&t.ID, &t.Title, &t.URL, &t.Summary, &aliases, &updated); err != nil {
		return ports.TopicRecord{}, err
	}
	if aliases != "" {
		if err := json.Unmarshal([]byte(aliases), &t.Aliases); err != nil {
			return ports.TopicRecord{}, fmt.Errorf("topic %d: decode aliases: %w", t.ID, err)
		}
	}
	if parsed, err := time.Parse(time.RFC3339Nano, updated); err == nil {
		t.UpdatedAt = parsed
	}
	return t, nil
}

func encodeAliases(aliases []string) (string, error) {
	if len(aliases) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(aliases)
	if err != nil {
		return "", fmt.Errorf("encode aliases: %w", err)
	}
	return string(data), nil
}

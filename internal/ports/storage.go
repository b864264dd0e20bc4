// Package ports defines the interfaces (contracts) that adapters must implement.
// These are the boundaries of the hexagonal architecture. Domain logic depends
// only on these interfaces, never on concrete implementations.
package ports

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrTopicNotFound is returned by TopicStore lookups that find nothing.
	ErrTopicNotFound = errors.New("topic not found")

	// ErrInvalidTopic is returned by UpsertTopic when title or URL is blank.
	ErrInvalidTopic = errors.New("invalid topic")
)

// TopicRecord is one dictionary entry: a canonical title plus aliases that
// all resolve to the same topic. URL and Summary are payload carried through
// to matches untouched.
type TopicRecord struct {
	ID        int64     `json:"id" yaml:"id,omitempty"`
	Title     string    `json:"title" yaml:"title"`
	Aliases   []string  `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	URL       string    `json:"url" yaml:"url"`
	Summary   string    `json:"summary,omitempty" yaml:"summary,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty" yaml:"-"`
}

// DictionaryProvider supplies the full, current set of topics.
// Called once at startup and once per rebuild. Implementations must return
// a deterministic order (the matcher breaks ties by insertion order).
type DictionaryProvider interface {
	ListAllTopics(ctx context.Context) ([]TopicRecord, error)
}

// TopicStore persists topics. Both backends (bbolt, sqlite) upsert by URL so
// a re-crawled topic keeps its ID. Concurrent reads are safe; writes are
// serialized by the adapter.
type TopicStore interface {
	DictionaryProvider

	// UpsertTopic inserts a topic or updates the one with the same URL.
	// Returns the (stable) topic ID. The ID field of t is ignored; title and
	// URL are required.
	UpsertTopic(ctx context.Context, t TopicRecord) (int64, error)

	// GetTopic returns ErrTopicNotFound if no topic has this ID.
	GetTopic(ctx context.Context, id int64) (TopicRecord, error)

	// GetTopicByTitle matches the title exactly (case-sensitive).
	GetTopicByTitle(ctx context.Context, title string) (TopicRecord, error)

	// DeleteTopic is idempotent: deleting a missing topic is not an error.
	DeleteTopic(ctx context.Context, id int64) error

	CountTopics(ctx context.Context) (int, error)

	Close() error
}

// Normalize trims the title, URL and summary, drops blank aliases and
// checks the required fields. Stores call it before writing.
func (t TopicRecord) Normalize() (TopicRecord, error) {
	t.Title = strings.TrimSpace(t.Title)
	t.URL = strings.TrimSpace(t.URL)
	t.Summary = strings.TrimSpace(t.Summary)
	if t.Title == "" {
		return t, fmt.Errorf("%w: title is required", ErrInvalidTopic)
	}
	if t.URL == "" {
		return t, fmt.Errorf("%w: url is required for %q", ErrInvalidTopic, t.Title)
	}

	var aliases []string
	for _, a := range t.Aliases {
		if a = strings.TrimSpace(a); a != "" {
			aliases = append(aliases, a)
		}
	}
	t.Aliases = aliases
	return t, nil
}

// Package matcher finds topic mentions in post text. It compiles the topic
// dictionary into an immutable Snapshot (Aho-Corasick automaton plus topic
// table), answers searches against the current snapshot, and rebuilds a
// fresh snapshot whenever the dictionary changes.
//
// Concurrency model:
//   - Search loads the current snapshot with one atomic read; no locks.
//   - Rebuild holds rebuildMu for fetch + compile, then swaps the pointer.
//     Concurrent rebuilds serialize, the last one to finish wins.
//   - A failed rebuild never swaps: the last-known-good snapshot stays.
package matcher

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/corey/cognitia/internal/domain/automaton"
	"github.com/corey/cognitia/internal/ports"
	"github.com/oklog/ulid/v2"
)

// Matcher owns the current snapshot. Construct one per dictionary and pass
// it to whatever issues searches and rebuilds.
type Matcher struct {
	provider ports.DictionaryProvider
	factory  ports.ScannerFactory
	logger   *slog.Logger

	current atomic.Pointer[Snapshot]

	rebuildMu  sync.Mutex
	generation uint64
	entropy    *ulid.MonotonicEntropy

	statsMu     sync.Mutex
	lastErr     error
	lastRebuild time.Time
	rebuilds    int
	failures    int
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithLogger sets the logger. Nil keeps slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Matcher) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithScannerFactory replaces the native automaton with another engine.
func WithScannerFactory(f ports.ScannerFactory) Option {
	return func(m *Matcher) {
		if f != nil {
			m.factory = f
		}
	}
}

// New creates an uninitialized matcher. Call Initialize before serving.
func New(provider ports.DictionaryProvider, opts ...Option) *Matcher {
	m := &Matcher{
		provider: provider,
		factory:  automaton.NewScanner,
		logger:   slog.Default(),
		entropy:  ulid.Monotonic(rand.Reader, 0),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initialize builds the first snapshot from the provider.
func (m *Matcher) Initialize(ctx context.Context) error {
	snap, err := m.RebuildSnapshot(ctx)
	if err != nil {
		return err
	}
	m.logger.Info("matcher initialized",
		"topics", snap.TopicCount,
		"patterns", snap.PatternCount,
	)
	return nil
}

// Rebuild fetches the full dictionary, compiles a new snapshot and swaps it
// in. On provider failure the error wraps ErrRebuildFailed and the previous
// snapshot keeps serving.
func (m *Matcher) Rebuild(ctx context.Context) error {
	_, err := m.RebuildSnapshot(ctx)
	return err
}

// RebuildSnapshot is Rebuild, returning the snapshot this call swapped in.
// Snapshot() may already report a newer one by the time it returns.
func (m *Matcher) RebuildSnapshot(ctx context.Context) (*Snapshot, error) {
	if m.provider == nil {
		return nil, fmt.Errorf("%w: no dictionary provider", ErrRebuildFailed)
	}

	m.rebuildMu.Lock()
	defer m.rebuildMu.Unlock()

	start := time.Now()
	topics, err := m.provider.ListAllTopics(ctx)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		err = fmt.Errorf("%w: list topics: %w", ErrRebuildFailed, err)
		m.recordRebuild(err)
		m.logger.Error("matcher rebuild failed, keeping previous snapshot",
			"generation", m.generation,
			"err", err,
		)
		return nil, err
	}

	m.generation++
	snap := m.build(topics, m.generation)
	m.current.Store(snap)
	m.recordRebuild(nil)

	m.logger.Info("matcher rebuilt",
		"snapshot", snap.ID,
		"generation", snap.Generation,
		"topics", snap.TopicCount,
		"patterns", snap.PatternCount,
		"skipped", len(snap.Problems),
		"elapsed", time.Since(start),
	)
	return snap, nil
}

// Build compiles topics into a snapshot without swapping it in. The result
// has Generation 0. Useful for dry runs and for validating a dictionary.
func (m *Matcher) Build(topics []ports.TopicRecord) *Snapshot {
	m.rebuildMu.Lock()
	defer m.rebuildMu.Unlock()
	return m.build(topics, 0)
}

// build must be called with rebuildMu held (entropy is not goroutine-safe).
func (m *Matcher) build(topics []ports.TopicRecord, generation uint64) *Snapshot {
	tbl := compile(topics)
	for _, p := range tbl.problems {
		m.logger.Warn("skipping dictionary pattern",
			"topic_id", p.TopicID,
			"pattern", p.Pattern,
			"reason", p.Reason,
		)
	}

	now := time.Now()
	return &Snapshot{
		ID:           ulid.MustNew(ulid.Timestamp(now), m.entropy).String(),
		Generation:   generation,
		BuiltAt:      now,
		TopicCount:   len(topics),
		PatternCount: len(tbl.patterns),
		Problems:     tbl.problems,
		topics:       slices.Clone(topics),
		owners:       tbl.owners,
		scanner:      m.factory(tbl.patterns),
	}
}

// Search returns the resolved matches in text against the current snapshot.
// Before the first successful build it logs a warning and returns an empty
// slice rather than failing the caller.
func (m *Matcher) Search(text string) []Match {
	snap := m.current.Load()
	if snap == nil {
		m.logger.Warn("matcher not initialized, returning no matches")
		return []Match{}
	}
	return snap.Search(text)
}

// Snapshot returns the current snapshot, nil before the first build.
func (m *Matcher) Snapshot() *Snapshot {
	return m.current.Load()
}

// Ready returns ErrNotInitialized until a snapshot exists.
func (m *Matcher) Ready() error {
	if m.current.Load() == nil {
		return ErrNotInitialized
	}
	return nil
}

// Stats summarizes the matcher for health endpoints.
type Stats struct {
	Initialized  bool      `json:"initialized"`
	SnapshotID   string    `json:"snapshot_id,omitempty"`
	Generation   uint64    `json:"generation"`
	TopicCount   int       `json:"topic_count"`
	PatternCount int       `json:"pattern_count"`
	Skipped      int       `json:"skipped"`
	BuiltAt      time.Time `json:"built_at,omitempty"`
	Rebuilds     int       `json:"rebuilds"`
	Failures     int       `json:"failures"`
	LastRebuild  time.Time `json:"last_rebuild,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
}

// Stats returns a point-in-time summary.
func (m *Matcher) Stats() Stats {
	var st Stats
	if snap := m.current.Load(); snap != nil {
		st.Initialized = true
		st.SnapshotID = snap.ID
		st.Generation = snap.Generation
		st.TopicCount = snap.TopicCount
		st.PatternCount = snap.PatternCount
		st.Skipped = len(snap.Problems)
		st.BuiltAt = snap.BuiltAt
	}

	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	st.Rebuilds = m.rebuilds
	st.Failures = m.failures
	st.LastRebuild = m.lastRebuild
	if m.lastErr != nil {
		st.LastError = m.lastErr.Error()
	}
	return st
}

func (m *Matcher) recordRebuild(err error) {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	m.lastRebuild = time.Now()
	m.lastErr = err
	if err != nil {
		m.failures++
	} else {
		m.rebuilds++
	}
}

package matcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/corey/cognitia/internal/adapters/dictfile"
	"github.com/corey/cognitia/internal/domain/automaton"
	"github.com/corey/cognitia/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// providerFunc adapts a function to ports.DictionaryProvider.
type providerFunc func(ctx context.Context) ([]ports.TopicRecord, error)

func (f providerFunc) ListAllTopics(ctx context.Context) ([]ports.TopicRecord, error) {
	return f(ctx)
}

func staticProvider(topics ...ports.TopicRecord) ports.DictionaryProvider {
	return providerFunc(func(context.Context) ([]ports.TopicRecord, error) {
		return topics, nil
	})
}

func quietLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

func newTestMatcher(t *testing.T, topics ...ports.TopicRecord) *Matcher {
	t.Helper()
	m := New(staticProvider(topics...), WithLogger(quietLogger()))
	require.NoError(t, m.Initialize(context.Background()))
	return m
}

func seedTopics() []ports.TopicRecord {
	return []ports.TopicRecord{
		{ID: 1, Title: "The Beatles", URL: "https://grokipedia.com/page/The_Beatles"},
		{ID: 2, Title: "Artificial Intelligence", Aliases: []string{"AI", "Machine Intelligence"}, URL: "https://grokipedia.com/page/Artificial_intelligence"},
		{ID: 3, Title: "Elon Musk", Aliases: []string{"Musk"}, URL: "https://grokipedia.com/page/Elon_Musk"},
		{ID: 4, Title: "SpaceX", Aliases: []string{"Space Exploration Technologies Corp"}, URL: "https://grokipedia.com/page/SpaceX"},
		{ID: 5, Title: "Tesla", Aliases: []string{"Tesla Motors", "Tesla Inc"}, URL: "https://grokipedia.com/page/Tesla,_Inc."},
		{ID: 6, Title: "New York", URL: "https://grokipedia.com/page/New_York"},
		{ID: 7, Title: "New York Times", Aliases: []string{"NYT"}, URL: "https://grokipedia.com/page/The_New_York_Times"},
	}
}

type span struct {
	ID    int64
	Start int
	End   int
	Text  string
}

func spans(ms []Match) []span {
	out := make([]span, 0, len(ms))
	for _, m := range ms {
		out = append(out, span{ID: m.Topic.ID, Start: m.StartIndex, End: m.EndIndex, Text: m.MatchedText})
	}
	return out
}

// =============================================================================
// Search: word boundaries, case folding, aliases, overlap resolution
// Expectation: one resolved, non-overlapping mention per span, ordered by
// start offset, with the original casing preserved in MatchedText.
// =============================================================================

func TestSearch_ElonMuskBeatsSuffixAlias(t *testing.T) {
	m := newTestMatcher(t, seedTopics()...)

	got := m.Search("Elon Musk founded SpaceX")
	assert.Equal(t, []span{
		{ID: 3, Start: 0, End: 9, Text: "Elon Musk"},
		{ID: 4, Start: 18, End: 24, Text: "SpaceX"},
	}, spans(got))
}

func TestSearch_WordBoundaryRejectsInnerMatch(t *testing.T) {
	m := newTestMatcher(t, seedTopics()...)

	got := m.Search("CHAIN of AI")
	require.Len(t, got, 1)
	assert.Equal(t, span{ID: 2, Start: 9, End: 11, Text: "AI"}, spans(got)[0])

	assert.Empty(t, m.Search("CHAINS and TRAINING"))
	assert.Empty(t, m.Search("AI_model"), "underscore is a word rune")
	assert.Empty(t, m.Search("AI2"), "digit is a word rune")
}

func TestSearch_CaseInsensitive(t *testing.T) {
	m := newTestMatcher(t, seedTopics()...)

	for _, text := range []string{"spacex", "SPACEX", "SpaceX", "sPaCeX"} {
		got := m.Search(text)
		require.Len(t, got, 1, text)
		assert.Equal(t, int64(4), got[0].Topic.ID)
		assert.Equal(t, text, got[0].MatchedText, "original casing preserved")
	}
}

func TestSearch_AliasResolvesToOwningTopic(t *testing.T) {
	m := newTestMatcher(t, seedTopics()...)

	got := m.Search("Tesla Motors announced")
	require.Len(t, got, 1)
	assert.Equal(t, "Tesla", got[0].Topic.Title)
	assert.Equal(t, "Tesla Motors", got[0].MatchedText)
	assert.Equal(t, 0, got[0].StartIndex)
	assert.Equal(t, 12, got[0].EndIndex)
}

func TestSearch_LongerSpanAtSameStartWins(t *testing.T) {
	m := newTestMatcher(t, seedTopics()...)

	got := m.Search("the New York Times said")
	assert.Equal(t, []span{{ID: 7, Start: 4, End: 18, Text: "New York Times"}}, spans(got))
}

func TestSearch_LongerOverlappingSpanReplacesAccepted(t *testing.T) {
	m := newTestMatcher(t,
		ports.TopicRecord{ID: 1, Title: "New York"},
		ports.TopicRecord{ID: 2, Title: "York Times"},
	)

	got := m.Search("New York Times")
	assert.Equal(t, []span{{ID: 2, Start: 4, End: 14, Text: "York Times"}}, spans(got))
}

func TestSearch_MultipleMentionsOrdered(t *testing.T) {
	m := newTestMatcher(t, seedTopics()...)

	text := "AI, Musk, and The Beatles. Then musk again!"
	got := m.Search(text)
	require.Len(t, got, 4)
	assert.Equal(t, []int64{2, 3, 1, 3}, []int64{got[0].Topic.ID, got[1].Topic.ID, got[2].Topic.ID, got[3].Topic.ID})
	for _, g := range got {
		assert.Equal(t, text[g.StartIndex:g.EndIndex], g.MatchedText)
	}
}

func TestSearch_MultibyteOffsetsAreBytes(t *testing.T) {
	m := newTestMatcher(t, ports.TopicRecord{ID: 1, Title: "Zürich"})

	text := "Grüße aus ZÜRICH!"
	got := m.Search(text)
	require.Len(t, got, 1)
	assert.Equal(t, "ZÜRICH", got[0].MatchedText)
	assert.Equal(t, strings.Index(text, "ZÜRICH"), got[0].StartIndex)

	assert.Empty(t, m.Search("Zürichsee"), "letters after the span are word runes")
}

func TestSearch_IdenticalPatternFromTwoTopics(t *testing.T) {
	m := newTestMatcher(t,
		ports.TopicRecord{ID: 10, Title: "Mercury", Aliases: []string{"Planet Mercury"}},
		ports.TopicRecord{ID: 11, Title: "mercury", Aliases: []string{"Hg"}},
	)

	snap := m.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, 3, snap.PatternCount, "mercury shared by both topics")

	got := m.Search("Mercury rising")
	require.Len(t, got, 1, "identical spans overlap, first inserted topic kept")
	assert.Equal(t, int64(10), got[0].Topic.ID)

	got = m.Search("Hg levels")
	require.Len(t, got, 1)
	assert.Equal(t, int64(11), got[0].Topic.ID)
}

func TestSearch_DuplicateAliasWithinTopicCollapses(t *testing.T) {
	m := newTestMatcher(t, ports.TopicRecord{ID: 1, Title: "Bitcoin", Aliases: []string{"BITCOIN", "bitcoin", "BTC"}})

	assert.Equal(t, 2, m.Snapshot().PatternCount)
	got := m.Search("bitcoin")
	require.Len(t, got, 1)
}

func TestSearch_ReturnedTopicIsACopy(t *testing.T) {
	m := newTestMatcher(t, seedTopics()...)

	got := m.Search("AI")
	require.Len(t, got, 1)
	got[0].Topic.Aliases[0] = "mutated"

	again := m.Search("AI")
	require.Len(t, again, 1)
	assert.Equal(t, "AI", again[0].Topic.Aliases[0])
}

func TestSearch_EmptyDictionaryAndEmptyText(t *testing.T) {
	m := newTestMatcher(t)

	got := m.Search("Elon Musk founded SpaceX")
	assert.NotNil(t, got)
	assert.Empty(t, got)

	m = newTestMatcher(t, seedTopics()...)
	got = m.Search("")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSearch_InvalidUTF8DoesNotPanic(t *testing.T) {
	m := newTestMatcher(t, seedTopics()...)

	assert.NotPanics(t, func() {
		got := m.Search("\xff AI \xfe\xfd Musk \xc3")
		assert.Len(t, got, 2)
	})
}

// =============================================================================
// Uninitialized matcher
// Expectation: searches degrade to an empty result; Ready reports why.
// =============================================================================

func TestMatcher_NotInitialized(t *testing.T) {
	m := New(staticProvider(seedTopics()...), WithLogger(quietLogger()))

	assert.Nil(t, m.Snapshot())
	assert.ErrorIs(t, m.Ready(), ErrNotInitialized)

	got := m.Search("Elon Musk")
	assert.NotNil(t, got)
	assert.Empty(t, got)

	st := m.Stats()
	assert.False(t, st.Initialized)

	require.NoError(t, m.Initialize(context.Background()))
	assert.NoError(t, m.Ready())
}

func TestMatcher_NilProvider(t *testing.T) {
	m := New(nil, WithLogger(quietLogger()))
	err := m.Initialize(context.Background())
	assert.ErrorIs(t, err, ErrRebuildFailed)
}

// =============================================================================
// Configuration errors
// Expectation: bad patterns are skipped and reported; the rest compiles.
// =============================================================================

func TestBuild_SkipsInvalidPatterns(t *testing.T) {
	m := New(nil, WithLogger(quietLogger()))

	snap := m.Build([]ports.TopicRecord{
		{ID: 1, Title: "Bitcoin", Aliases: []string{"   ", "BTC", "\xffbad"}},
		{ID: 2, Title: "", Aliases: []string{"Ethereum"}},
	})

	require.Len(t, snap.Problems, 3)
	for _, p := range snap.Problems {
		assert.ErrorIs(t, p, ErrConfiguration)
	}
	var cfgErr *ConfigurationError
	require.True(t, errors.As(error(snap.Problems[0]), &cfgErr))
	assert.Equal(t, int64(1), cfgErr.TopicID)
	assert.Equal(t, "empty pattern", cfgErr.Reason)
	assert.Equal(t, "invalid UTF-8", snap.Problems[1].Reason)
	assert.Equal(t, int64(2), snap.Problems[2].TopicID)

	assert.Equal(t, uint64(0), snap.Generation, "dry builds are not swapped in")
	assert.Equal(t, 3, snap.PatternCount)
	assert.Len(t, snap.Search("BTC and Ethereum"), 2)
	assert.Nil(t, m.Snapshot())
}

func TestConfigurationError_Message(t *testing.T) {
	err := &ConfigurationError{TopicID: 7, Pattern: " ", Reason: "empty pattern"}
	assert.Equal(t, `topic 7: pattern " " skipped: empty pattern`, err.Error())
}

// =============================================================================
// Rebuild: snapshot swap, failure handling, stability
// =============================================================================

func TestRebuild_PicksUpNewTopics(t *testing.T) {
	var mu sync.Mutex
	topics := []ports.TopicRecord{{ID: 1, Title: "Bitcoin"}}
	p := providerFunc(func(context.Context) ([]ports.TopicRecord, error) {
		mu.Lock()
		defer mu.Unlock()
		return append([]ports.TopicRecord(nil), topics...), nil
	})

	m := New(p, WithLogger(quietLogger()))
	require.NoError(t, m.Initialize(context.Background()))
	assert.Empty(t, m.Search("Ethereum rallies"))
	first := m.Snapshot()

	mu.Lock()
	topics = append(topics, ports.TopicRecord{ID: 2, Title: "Ethereum", Aliases: []string{"ETH"}})
	mu.Unlock()

	require.NoError(t, m.Rebuild(context.Background()))
	got := m.Search("Ethereum rallies")
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].Topic.ID)

	second := m.Snapshot()
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.Generation+1, second.Generation)

	// The old snapshot is untouched by the swap.
	assert.Empty(t, first.Search("Ethereum rallies"))
}

func TestRebuild_FailureKeepsPreviousSnapshot(t *testing.T) {
	var fail atomic.Bool
	boom := errors.New("database is locked")
	p := providerFunc(func(context.Context) ([]ports.TopicRecord, error) {
		if fail.Load() {
			return nil, boom
		}
		return seedTopics(), nil
	})

	m := New(p, WithLogger(quietLogger()))
	require.NoError(t, m.Initialize(context.Background()))
	before := m.Snapshot()

	fail.Store(true)
	err := m.Rebuild(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRebuildFailed)
	assert.ErrorIs(t, err, boom)

	assert.Same(t, before, m.Snapshot())
	assert.Len(t, m.Search("Elon Musk"), 1)

	st := m.Stats()
	assert.Equal(t, 1, st.Rebuilds)
	assert.Equal(t, 1, st.Failures)
	assert.Contains(t, st.LastError, "database is locked")

	fail.Store(false)
	require.NoError(t, m.Rebuild(context.Background()))
	assert.Empty(t, m.Stats().LastError)
}

func TestRebuild_CanceledContext(t *testing.T) {
	m := newTestMatcher(t, seedTopics()...)
	before := m.Snapshot()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := m.Rebuild(ctx)
	assert.ErrorIs(t, err, ErrRebuildFailed)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Same(t, before, m.Snapshot())
}

func TestRebuildSnapshot_ReturnsWhatItStored(t *testing.T) {
	m := newTestMatcher(t, seedTopics()...)

	snap, err := m.RebuildSnapshot(context.Background())
	require.NoError(t, err)
	assert.Same(t, m.Snapshot(), snap)
	assert.Equal(t, uint64(2), snap.Generation)

	const workers = 8
	gens := make(chan uint64, workers)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := m.RebuildSnapshot(context.Background())
			if assert.NoError(t, err) {
				gens <- s.Generation
			}
		}()
	}
	wg.Wait()
	close(gens)

	seen := make(map[uint64]bool)
	for g := range gens {
		assert.False(t, seen[g], "generation %d reported twice", g)
		seen[g] = true
	}
	assert.Len(t, seen, workers)
	assert.Equal(t, uint64(2+workers), m.Snapshot().Generation)
}

func TestRebuildSnapshot_FailureReturnsNil(t *testing.T) {
	m := New(providerFunc(func(context.Context) ([]ports.TopicRecord, error) {
		return nil, errors.New("store closed")
	}), WithLogger(quietLogger()))

	snap, err := m.RebuildSnapshot(context.Background())
	assert.ErrorIs(t, err, ErrRebuildFailed)
	assert.Nil(t, snap)
}

func TestInitialize_FileDictionaryWithBadRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topics.yaml")
	body := `topics:
  - title: SpaceX
    url: https://grokipedia.com/page/SpaceX
  - title: "  "
    url: https://grokipedia.com/page/Blank
  - title: Tesla
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	m := New(dictfile.FileProvider{Path: path, Logger: quietLogger()}, WithLogger(quietLogger()))
	require.NoError(t, m.Initialize(context.Background()))

	got := m.Search("SpaceX launched")
	require.Len(t, got, 1)
	assert.Equal(t, "SpaceX", got[0].Topic.Title)
	assert.Equal(t, 1, m.Snapshot().TopicCount)
	assert.Empty(t, m.Stats().LastError)
}

func TestRebuild_RoundTripStable(t *testing.T) {
	m := newTestMatcher(t, seedTopics()...)

	corpus := []string{
		"Elon Musk founded SpaceX",
		"CHAIN of AI",
		"Tesla Motors announced",
		"the New York Times said The Beatles were great",
		"nothing to see here",
	}
	before := make([][]Match, len(corpus))
	for i, text := range corpus {
		before[i] = m.Search(text)
	}

	for range 3 {
		require.NoError(t, m.Rebuild(context.Background()))
	}
	for i, text := range corpus {
		assert.Equal(t, before[i], m.Search(text), text)
	}
	assert.Equal(t, uint64(4), m.Snapshot().Generation)
}

func TestRebuild_ConcurrentSearchSeesOneSnapshot(t *testing.T) {
	alpha := []ports.TopicRecord{{ID: 1, Title: "Alpha"}}
	beta := []ports.TopicRecord{{ID: 2, Title: "Beta"}}
	var n atomic.Int64
	p := providerFunc(func(context.Context) ([]ports.TopicRecord, error) {
		if n.Add(1)%2 == 1 {
			return alpha, nil
		}
		return beta, nil
	})

	m := New(p, WithLogger(quietLogger()))
	require.NoError(t, m.Initialize(context.Background()))

	const text = "Alpha meets Beta"
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	var bad atomic.Int64

	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				got := m.Search(text)
				if len(got) != 1 {
					bad.Add(1)
					continue
				}
				if got[0].MatchedText != "Alpha" && got[0].MatchedText != "Beta" {
					bad.Add(1)
				}
			}
		}()
	}

	var rb sync.WaitGroup
	for range 4 {
		rb.Add(1)
		go func() {
			defer rb.Done()
			for range 25 {
				assert.NoError(t, m.Rebuild(context.Background()))
			}
		}()
	}
	rb.Wait()
	cancel()
	wg.Wait()

	assert.Zero(t, bad.Load(), "a search observed a mixed or partial snapshot")
	assert.Equal(t, uint64(101), m.Snapshot().Generation)
}

func TestMatcher_CustomScannerFactory(t *testing.T) {
	var built atomic.Int64
	factory := func(patterns []string) ports.Scanner {
		built.Add(1)
		return automaton.NewScanner(patterns)
	}
	m := New(staticProvider(seedTopics()...), WithLogger(quietLogger()), WithScannerFactory(factory))
	require.NoError(t, m.Initialize(context.Background()))
	require.NoError(t, m.Rebuild(context.Background()))

	assert.Equal(t, int64(2), built.Load())
	assert.Len(t, m.Search("SpaceX"), 1)
}

// =============================================================================
// Overlap resolution: direct and randomized
// =============================================================================

func TestResolveOverlaps_Chain(t *testing.T) {
	got := resolveOverlaps([]candidate{
		{topic: 0, start: 0, end: 3},
		{topic: 1, start: 2, end: 8},
		{topic: 2, start: 5, end: 15},
		{topic: 3, start: 20, end: 22},
	})
	assert.Equal(t, []candidate{
		{topic: 2, start: 5, end: 15},
		{topic: 3, start: 20, end: 22},
	}, got)
}

func TestResolveOverlaps_EqualLengthKeepsFirst(t *testing.T) {
	got := resolveOverlaps([]candidate{
		{topic: 0, start: 0, end: 4},
		{topic: 1, start: 2, end: 6},
	})
	assert.Equal(t, []candidate{{topic: 0, start: 0, end: 4}}, got)
}

func TestSearch_RandomizedInvariants(t *testing.T) {
	vocab := []string{"alpha", "beta", "gamma", "delta", "alpha beta", "beta gamma", "gamma delta epsilon", "al", "ph", "Δέλτα", "x"}
	topics := make([]ports.TopicRecord, 0, len(vocab))
	for i, w := range vocab {
		topics = append(topics, ports.TopicRecord{ID: int64(i + 1), Title: w})
	}
	m := newTestMatcher(t, topics...)

	words := []string{"alpha", "BETA", "gamma", "delta", "epsilon", "alphabet", "Δέλτα", "x", "y", "ph"}
	seps := []string{" ", ", ", ".", "-", "  ", "!"}
	rng := rand.New(rand.NewSource(42))

	for i := range 500 {
		var b strings.Builder
		for j := range 2 + rng.Intn(12) {
			if j > 0 {
				b.WriteString(seps[rng.Intn(len(seps))])
			}
			b.WriteString(words[rng.Intn(len(words))])
		}
		text := b.String()
		got := m.Search(text)

		lastEnd := -1
		for _, g := range got {
			msg := fmt.Sprintf("case %d: %q -> %+v", i, text, g)
			require.GreaterOrEqual(t, g.StartIndex, 0, msg)
			require.Less(t, g.StartIndex, g.EndIndex, msg)
			require.LessOrEqual(t, g.EndIndex, len(text), msg)
			require.GreaterOrEqual(t, g.StartIndex, lastEnd, "overlap: "+msg)
			require.True(t, atWordBoundary(text, g.StartIndex, g.EndIndex), msg)
			require.Equal(t, automaton.Fold(g.Topic.Title), automaton.Fold(g.MatchedText), msg)
			lastEnd = g.EndIndex
		}
	}
}

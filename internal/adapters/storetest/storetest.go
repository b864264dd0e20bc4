// Package storetest is the shared conformance suite for ports.TopicStore
// implementations. Each adapter calls Run from its own tests.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/corey/cognitia/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory opens a fresh, empty store. It should register its own cleanup.
type Factory func(t *testing.T) ports.TopicStore

// Run executes every conformance test against stores from newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s ports.TopicStore)
	}{
		{"UpsertAssignsIDs", testUpsertAssignsIDs},
		{"UpsertByURLKeepsID", testUpsertByURLKeepsID},
		{"UpsertValidates", testUpsertValidates},
		{"GetTopic", testGetTopic},
		{"GetTopicByTitle", testGetTopicByTitle},
		{"DeleteTopicIdempotent", testDeleteTopic},
		{"ListOrderedByTitle", testListOrdered},
		{"Count", testCount},
		{"ConcurrentReads", testConcurrentReads},
		{"CanceledContext", testCanceledContext},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, newStore(t))
		})
	}
}

// Topic builds a valid record with a URL derived from the title.
func Topic(title string, aliases ...string) ports.TopicRecord {
	return ports.TopicRecord{
		Title:   title,
		Aliases: aliases,
		URL:     "https://grokipedia.com/page/" + title,
		Summary: title + " summary",
	}
}

func testUpsertAssignsIDs(t *testing.T, s ports.TopicStore) {
	ctx := context.Background()
	id1, err := s.UpsertTopic(ctx, Topic("Bitcoin", "BTC"))
	require.NoError(t, err)
	id2, err := s.UpsertTopic(ctx, Topic("Ethereum", "ETH"))
	require.NoError(t, err)

	assert.Positive(t, id1)
	assert.Positive(t, id2)
	assert.NotEqual(t, id1, id2)
}

func testUpsertByURLKeepsID(t *testing.T, s ports.TopicStore) {
	ctx := context.Background()
	id, err := s.UpsertTopic(ctx, Topic("Tesla", "Tesla Motors"))
	require.NoError(t, err)

	updated := Topic("Tesla", "Tesla Motors", "Tesla Inc")
	updated.Summary = "  EV maker  "
	updated.ID = 999 // ignored
	again, err := s.UpsertTopic(ctx, updated)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	got, err := s.GetTopic(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"Tesla Motors", "Tesla Inc"}, got.Aliases)
	assert.Equal(t, "EV maker", got.Summary)
	assert.False(t, got.UpdatedAt.IsZero())

	n, err := s.CountTopics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func testUpsertValidates(t *testing.T, s ports.TopicStore) {
	ctx := context.Background()

	_, err := s.UpsertTopic(ctx, ports.TopicRecord{Title: "  ", URL: "https://x"})
	assert.ErrorIs(t, err, ports.ErrInvalidTopic)

	_, err = s.UpsertTopic(ctx, ports.TopicRecord{Title: "Grok"})
	assert.ErrorIs(t, err, ports.ErrInvalidTopic)

	id, err := s.UpsertTopic(ctx, Topic("Grok", "", "  ", "xAI"))
	require.NoError(t, err)
	got, err := s.GetTopic(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"xAI"}, got.Aliases, "blank aliases dropped")
}

func testGetTopic(t *testing.T, s ports.TopicStore) {
	ctx := context.Background()
	id, err := s.UpsertTopic(ctx, Topic("OpenAI"))
	require.NoError(t, err)

	got, err := s.GetTopic(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "OpenAI", got.Title)
	assert.Equal(t, "https://grokipedia.com/page/OpenAI", got.URL)
	assert.Equal(t, "OpenAI summary", got.Summary)
	assert.Empty(t, got.Aliases)

	_, err = s.GetTopic(ctx, id+100)
	assert.ErrorIs(t, err, ports.ErrTopicNotFound)
}

func testGetTopicByTitle(t *testing.T, s ports.TopicStore) {
	ctx := context.Background()
	_, err := s.UpsertTopic(ctx, Topic("Blockchain"))
	require.NoError(t, err)
	id, err := s.UpsertTopic(ctx, Topic("Cryptocurrency", "Crypto"))
	require.NoError(t, err)

	got, err := s.GetTopicByTitle(ctx, "Cryptocurrency")
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, []string{"Crypto"}, got.Aliases)

	_, err = s.GetTopicByTitle(ctx, "cryptocurrency")
	assert.ErrorIs(t, err, ports.ErrTopicNotFound, "title lookup is exact")
}

func testDeleteTopic(t *testing.T, s ports.TopicStore) {
	ctx := context.Background()
	id, err := s.UpsertTopic(ctx, Topic("Twitter", "X", "X Corp"))
	require.NoError(t, err)

	require.NoError(t, s.DeleteTopic(ctx, id))
	_, err = s.GetTopic(ctx, id)
	assert.ErrorIs(t, err, ports.ErrTopicNotFound)

	// Deleting a missing topic is fine
	assert.NoError(t, s.DeleteTopic(ctx, id))

	// The URL is free again; re-adding creates a fresh topic.
	again, err := s.UpsertTopic(ctx, Topic("Twitter"))
	require.NoError(t, err)
	got, err := s.GetTopic(ctx, again)
	require.NoError(t, err)
	assert.Empty(t, got.Aliases)
}

func testListOrdered(t *testing.T, s ports.TopicStore) {
	ctx := context.Background()
	for _, title := range []string{"SpaceX", "Elon Musk", "ChatGPT", "Bitcoin"} {
		_, err := s.UpsertTopic(ctx, Topic(title))
		require.NoError(t, err)
	}
	dup := Topic("Bitcoin")
	dup.URL = "https://example.com/bitcoin"
	dupID, err := s.UpsertTopic(ctx, dup)
	require.NoError(t, err)

	topics, err := s.ListAllTopics(ctx)
	require.NoError(t, err)
	require.Len(t, topics, 5)

	titles := make([]string, 0, len(topics))
	for _, tp := range topics {
		titles = append(titles, tp.Title)
	}
	assert.Equal(t, []string{"Bitcoin", "Bitcoin", "ChatGPT", "Elon Musk", "SpaceX"}, titles)
	assert.Equal(t, dupID, topics[1].ID, "equal titles ordered by ID")

	again, err := s.ListAllTopics(ctx)
	require.NoError(t, err)
	assert.Equal(t, topics, again, "listing is deterministic")
}

func testCount(t *testing.T, s ports.TopicStore) {
	ctx := context.Background()
	n, err := s.CountTopics(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	for i := range 7 {
		_, err := s.UpsertTopic(ctx, Topic(fmt.Sprintf("Topic %d", i)))
		require.NoError(t, err)
	}
	n, err = s.CountTopics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func testConcurrentReads(t *testing.T, s ports.TopicStore) {
	ctx := context.Background()
	for _, title := range []string{"Machine Learning", "Neural Network", "Grok"} {
		_, err := s.UpsertTopic(ctx, Topic(title))
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			topics, err := s.ListAllTopics(ctx)
			if err != nil {
				errs <- err
				return
			}
			if len(topics) != 3 {
				errs <- fmt.Errorf("expected 3 topics, got %d", len(topics))
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent read error: %v", err)
	}
}

func testCanceledContext(t *testing.T, s ports.TopicStore) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.ListAllTopics(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = s.UpsertTopic(ctx, Topic("Late"))
	assert.ErrorIs(t, err, context.Canceled)
}

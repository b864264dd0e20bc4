package bbolt

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/corey/cognitia/internal/adapters/storetest"
	"github.com/corey/cognitia/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

// =============================================================================
// bbolt TopicStore: upsert by URL, stable IDs, crash recovery
// Expectation: passes the shared TopicStore suite and survives reopen.
// =============================================================================

// newTestStore creates a temporary bbolt store for testing.
func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")
	store, err := NewStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, path
}

func TestStore_Conformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) ports.TopicStore {
		s, _ := newTestStore(t)
		return s
	})
}

func TestStore_StateSurvivesRestart(t *testing.T) {
	// Write topics, close, reopen. Data from committed transactions is intact
	// and the ID sequence continues where it left off.
	dir := t.TempDir()
	path := filepath.Join(dir, "restart.db")
	ctx := context.Background()

	store, err := NewStore(path)
	require.NoError(t, err)
	id1, err := store.UpsertTopic(ctx, storetest.Topic("Bitcoin", "BTC"))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store2, err := NewStore(path)
	require.NoError(t, err)
	defer store2.Close()

	got, err := store2.GetTopic(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, "Bitcoin", got.Title)
	assert.Equal(t, []string{"BTC"}, got.Aliases)

	again, err := store2.UpsertTopic(ctx, storetest.Topic("Bitcoin", "BTC", "XBT"))
	require.NoError(t, err)
	assert.Equal(t, id1, again, "URL index persisted")

	id2, err := store2.UpsertTopic(ctx, storetest.Topic("Ethereum"))
	require.NoError(t, err)
	assert.Greater(t, id2, id1)
}

func TestStore_KeysAreBigEndianIDs(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	for _, title := range []string{"Zeta", "Alpha", "Mu"} {
		_, err := store.UpsertTopic(ctx, storetest.Topic(title))
		require.NoError(t, err)
	}

	var ids []int64
	err := store.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTopics).ForEach(func(k, _ []byte) error {
			ids = append(ids, btoi(k))
			return nil
		})
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ids)
	assert.Equal(t, int64(258), btoi(itob(258)))
}

func TestStore_UpdatedAtUsesClock(t *testing.T) {
	store, _ := newTestStore(t)
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	id, err := store.UpsertTopic(context.Background(), storetest.Topic("Grok"))
	require.NoError(t, err)
	got, err := store.GetTopic(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, fixed.Equal(got.UpdatedAt))
}

// =============================================================================
// Lock contention tests: verify the 1s timeout prevents hangs
// =============================================================================

func TestStore_OpenTimeout_DoesNotHang(t *testing.T) {
	// When another process/goroutine holds the bbolt exclusive lock,
	// a second open should timeout in ~1 second, not hang forever.
	dir := t.TempDir()
	path := filepath.Join(dir, "locked.db")

	store1, err := NewStore(path)
	require.NoError(t, err)
	defer store1.Close()

	start := time.Now()
	store2, err := NewStore(path)
	elapsed := time.Since(start)

	require.Error(t, err, "second open should fail with lock timeout")
	assert.Nil(t, store2, "store should be nil on timeout")
	assert.Contains(t, err.Error(), "bbolt open")
	assert.Contains(t, err.Error(), "timeout", "error should mention timeout")
	assert.Less(t, elapsed, 3*time.Second, "should complete within 3s, not hang")
	assert.GreaterOrEqual(t, elapsed, 900*time.Millisecond, "should wait ~1s for the configured timeout")
}

func TestStore_OpenAfterClose_Succeeds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "released.db")

	store1, err := NewStore(path)
	require.NoError(t, err)
	_, err = store1.UpsertTopic(context.Background(), storetest.Topic("SpaceX"))
	require.NoError(t, err)
	store1.Close()

	start := time.Now()
	store2, err := NewStore(path)
	elapsed := time.Since(start)

	require.NoError(t, err, "open after close should succeed")
	require.NotNil(t, store2)
	defer store2.Close()
	assert.Less(t, elapsed, 500*time.Millisecond, "should open instantly after lock released")

	n, err := store2.CountTopics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

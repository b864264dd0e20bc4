package matcher

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/corey/cognitia/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Coordinator: background rebuilds
// Expectation: Trigger never blocks, bursts coalesce, Stop is clean.
// =============================================================================

func TestCoordinator_TriggerRebuilds(t *testing.T) {
	m := newTestMatcher(t, seedTopics()...)
	c := NewCoordinator(m, quietLogger())

	done := make(chan error, 4)
	c.OnRebuild(func(err error) { done <- err })
	c.Start(context.Background())
	defer c.Stop()

	c.Trigger()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("rebuild never ran")
	}
	assert.Equal(t, uint64(2), m.Snapshot().Generation)
}

func TestCoordinator_CoalescesBurst(t *testing.T) {
	var calls atomic.Int64
	entered := make(chan struct{})
	release := make(chan struct{})
	p := providerFunc(func(ctx context.Context) ([]ports.TopicRecord, error) {
		if calls.Add(1) == 2 {
			// second call: first background rebuild, held until released
			entered <- struct{}{}
			select {
			case <-release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return seedTopics(), nil
	})

	m := New(p, WithLogger(quietLogger()))
	require.NoError(t, m.Initialize(context.Background()))

	c := NewCoordinator(m, quietLogger())
	var finished atomic.Int64
	c.OnRebuild(func(error) { finished.Add(1) })
	c.Start(context.Background())
	defer c.Stop()

	c.Trigger()
	<-entered

	for range 10 {
		c.Trigger()
	}
	close(release)

	require.Eventually(t, func() bool { return finished.Load() == 2 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(2), finished.Load(), "burst collapsed into one follow-up rebuild")
	assert.Equal(t, int64(3), calls.Load())
}

func TestCoordinator_StopCancelsInFlight(t *testing.T) {
	entered := make(chan struct{}, 1)
	var calls atomic.Int64
	p := providerFunc(func(ctx context.Context) ([]ports.TopicRecord, error) {
		if calls.Add(1) == 1 {
			return seedTopics(), nil
		}
		entered <- struct{}{}
		<-ctx.Done()
		return nil, ctx.Err()
	})

	m := New(p, WithLogger(quietLogger()))
	require.NoError(t, m.Initialize(context.Background()))
	before := m.Snapshot()

	c := NewCoordinator(m, quietLogger())
	result := make(chan error, 1)
	c.OnRebuild(func(err error) { result <- err })
	c.Start(context.Background())

	c.Trigger()
	<-entered

	stopped := make(chan struct{})
	go func() {
		c.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
	assert.ErrorIs(t, <-result, ErrRebuildFailed)
	assert.Same(t, before, m.Snapshot())

	// Idempotent, and Trigger after Stop does not block.
	c.Stop()
	c.Trigger()
	c.Trigger()
}

func TestCoordinator_StopWithoutStart(t *testing.T) {
	c := NewCoordinator(newTestMatcher(t), nil)
	assert.NotPanics(t, c.Stop)
}

package matcher

import (
	"context"
	"log/slog"
	"sync"
)

// Coordinator runs rebuilds in the background. Trigger never blocks: a burst
// of triggers while a rebuild is running collapses into one follow-up
// rebuild, so every dictionary change is eventually picked up without
// piling up work. Searches keep using the previous snapshot meanwhile.
type Coordinator struct {
	matcher *Matcher
	logger  *slog.Logger

	kick      chan struct{}
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once

	mu        sync.Mutex
	onRebuild func(error)
}

// NewCoordinator creates a stopped coordinator for m.
func NewCoordinator(m *Matcher, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		matcher: m,
		logger:  logger,
		kick:    make(chan struct{}, 1),
	}
}

// OnRebuild registers a callback invoked after every background rebuild
// with its result. Replaces any previous callback.
func (c *Coordinator) OnRebuild(fn func(error)) {
	c.mu.Lock()
	c.onRebuild = fn
	c.mu.Unlock()
}

// Start launches the rebuild loop. Subsequent calls are no-ops.
func (c *Coordinator) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		ctx, c.cancel = context.WithCancel(ctx)
		c.wg.Add(1)
		go c.loop(ctx)
	})
}

// Trigger requests a rebuild. Returns immediately.
func (c *Coordinator) Trigger() {
	select {
	case c.kick <- struct{}{}:
	default:
		// a rebuild is already pending
	}
}

// Stop cancels any in-flight rebuild and waits for the loop to exit.
// Idempotent.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		c.wg.Wait()
	})
}

func (c *Coordinator) loop(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.kick:
			err := c.matcher.Rebuild(ctx)
			if err != nil && ctx.Err() == nil {
				c.logger.Warn("background rebuild failed", "err", err)
			}

			c.mu.Lock()
			fn := c.onRebuild
			c.mu.Unlock()
			if fn != nil {
				fn(err)
			}
		}
	}
}

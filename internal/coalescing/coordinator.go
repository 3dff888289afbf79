package coalescing

import (
	"context"
	"sync"
	"time"
)

// slot holds the coordination state for a single cache key.
type slot struct {
	leading  bool
	done     chan struct{} // closed when the current leader releases
	waiters  int
	lastUsed time.Time
}

// Coordinator elects one leader per key to perform a fetch while concurrent
// callers for the same key wait for the leader to finish. It carries no
// payloads: results travel through the cache, and a leader failure is never
// propagated to waiters.
//
// Idle slots are swept periodically so the table stays bounded by the
// working set of keys rather than growing with every key ever seen.
type Coordinator struct {
	mu    sync.Mutex
	slots map[string]*slot

	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup

	nowFunc func() time.Time
}

func NewCoordinator(sweepInterval, retention time.Duration) *Coordinator {
	c := &Coordinator{
		slots:   make(map[string]*slot),
		nowFunc: time.Now,
	}
	if sweepInterval > 0 && retention > 0 {
		c.ticker = time.NewTicker(sweepInterval)
		c.stopCh = make(chan struct{})
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			for {
				select {
				case <-c.ticker.C:
					c.sweep(retention)
				case <-c.stopCh:
					return
				}
			}
		}()
	}
	return c
}

// AcquireLeadership reports whether the caller became the leader for key.
// It never blocks. At most one concurrent caller per key wins; the others
// should AwaitCompletion and then re-check their cache.
func (c *Coordinator) AcquireLeadership(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.slots[key]
	if !ok {
		s = &slot{}
		c.slots[key] = s
	}
	s.lastUsed = c.nowFunc()

	if s.leading {
		return false
	}
	s.leading = true
	s.done = make(chan struct{})
	return true
}

// AwaitCompletion blocks until the leader for key releases or ctx is done.
// It returns immediately when no fetch is in flight for key.
func (c *Coordinator) AwaitCompletion(ctx context.Context, key string) error {
	c.mu.Lock()
	s, ok := c.slots[key]
	if !ok || !s.leading {
		c.mu.Unlock()
		return nil
	}
	// Snapshot the channel for this round: the leader may release and a new
	// round may start while we wait.
	done := s.done
	s.waiters++
	s.lastUsed = c.nowFunc()
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		// The slot cannot have been swept while we counted as a waiter.
		s.waiters--
		s.lastUsed = c.nowFunc()
		c.mu.Unlock()
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release ends the caller's leadership of key and wakes all waiters.
// Releasing a key that is not being led is a no-op, so it is safe to call
// in a defer regardless of how the fetch ended.
func (c *Coordinator) Release(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.slots[key]
	if !ok || !s.leading {
		return
	}
	s.leading = false
	s.lastUsed = c.nowFunc()
	close(s.done)
}

// Len reports the current number of coordination slots.
func (c *Coordinator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.slots)
}

func (c *Coordinator) sweep(retention time.Duration) {
	cutoff := c.nowFunc().Add(-retention)

	c.mu.Lock()
	for key, s := range c.slots {
		if !s.leading && s.waiters == 0 && s.lastUsed.Before(cutoff) {
			delete(c.slots, key)
		}
	}
	c.mu.Unlock()
}

// Close stops the sweeper goroutine. The coordinator remains usable; idle
// slots simply stop being reclaimed.
func (c *Coordinator) Close() {
	if c.stopCh != nil {
		close(c.stopCh)
		c.ticker.Stop()
		c.wg.Wait()
	}
}

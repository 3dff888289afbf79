package coalescing

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireLeadership(t *testing.T) {
	t.Parallel()

	t.Run("first caller wins", func(t *testing.T) {
		t.Parallel()
		c := NewCoordinator(0, 0)

		require.True(t, c.AcquireLeadership("key1"))
		require.False(t, c.AcquireLeadership("key1"))

		// Leadership is per key
		require.True(t, c.AcquireLeadership("key2"))
	})

	t.Run("leadership can be re-acquired after release", func(t *testing.T) {
		t.Parallel()
		c := NewCoordinator(0, 0)

		require.True(t, c.AcquireLeadership("key1"))
		c.Release("key1")
		require.True(t, c.AcquireLeadership("key1"))
	})

	t.Run("exactly one winner under contention", func(t *testing.T) {
		t.Parallel()
		c := NewCoordinator(0, 0)

		for attempt := 0; attempt < 100; attempt++ {
			key := fmt.Sprintf("key%d", attempt)

			var winners atomic.Int64
			var wg sync.WaitGroup
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if c.AcquireLeadership(key) {
						winners.Add(1)
					}
				}()
			}
			wg.Wait()

			require.Equal(t, int64(1), winners.Load())
		}
	})
}

func TestAwaitCompletion(t *testing.T) {
	t.Parallel()

	t.Run("returns immediately when nobody is leading", func(t *testing.T) {
		t.Parallel()
		c := NewCoordinator(0, 0)

		require.NoError(t, c.AwaitCompletion(t.Context(), "key1"))

		// Same after a completed round
		require.True(t, c.AcquireLeadership("key1"))
		c.Release("key1")
		require.NoError(t, c.AwaitCompletion(t.Context(), "key1"))
	})

	t.Run("release wakes all waiters", func(t *testing.T) {
		t.Parallel()
		c := NewCoordinator(0, 0)

		require.True(t, c.AcquireLeadership("key1"))

		const waiters = 9
		var woken atomic.Int64
		var wg sync.WaitGroup
		started := make(chan struct{}, waiters)
		for i := 0; i < waiters; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				started <- struct{}{}
				err := c.AwaitCompletion(t.Context(), "key1")
				assert.NoError(t, err)
				woken.Add(1)
			}()
		}
		for i := 0; i < waiters; i++ {
			<-started
		}
		// Give the waiters a moment to actually block
		time.Sleep(10 * time.Millisecond)
		require.Equal(t, int64(0), woken.Load())

		c.Release("key1")
		wg.Wait()
		require.Equal(t, int64(waiters), woken.Load())
	})

	t.Run("waiters of one key do not wake on another key's release", func(t *testing.T) {
		t.Parallel()
		c := NewCoordinator(0, 0)

		require.True(t, c.AcquireLeadership("key1"))
		require.True(t, c.AcquireLeadership("key2"))

		done := make(chan error, 1)
		go func() {
			done <- c.AwaitCompletion(t.Context(), "key1")
		}()

		c.Release("key2")
		select {
		case <-done:
			t.Fatal("waiter woke on unrelated release")
		case <-time.After(20 * time.Millisecond):
		}

		c.Release("key1")
		require.NoError(t, <-done)
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		t.Parallel()
		c := NewCoordinator(0, 0)

		require.True(t, c.AcquireLeadership("key1"))

		ctx, cancel := context.WithCancel(t.Context())
		done := make(chan error, 1)
		go func() {
			done <- c.AwaitCompletion(ctx, "key1")
		}()

		cancel()
		require.ErrorIs(t, <-done, context.Canceled)

		// The leader is unaffected and can still release
		c.Release("key1")
	})

	t.Run("respects context deadline", func(t *testing.T) {
		t.Parallel()
		c := NewCoordinator(0, 0)

		require.True(t, c.AcquireLeadership("key1"))

		ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
		defer cancel()

		err := c.AwaitCompletion(ctx, "key1")
		require.ErrorIs(t, err, context.DeadlineExceeded)

		c.Release("key1")
	})

	t.Run("waiter joining a new round blocks until that round completes", func(t *testing.T) {
		t.Parallel()
		c := NewCoordinator(0, 0)

		require.True(t, c.AcquireLeadership("key1"))
		c.Release("key1")

		// Second round
		require.True(t, c.AcquireLeadership("key1"))

		done := make(chan error, 1)
		go func() {
			done <- c.AwaitCompletion(t.Context(), "key1")
		}()

		select {
		case <-done:
			t.Fatal("waiter was woken by a previous round")
		case <-time.After(20 * time.Millisecond):
		}

		c.Release("key1")
		require.NoError(t, <-done)
	})
}

func TestRelease(t *testing.T) {
	t.Parallel()

	t.Run("releasing an idle key is a no-op", func(t *testing.T) {
		t.Parallel()
		c := NewCoordinator(0, 0)

		c.Release("never-acquired")

		require.True(t, c.AcquireLeadership("key1"))
		c.Release("key1")
		c.Release("key1")

		require.True(t, c.AcquireLeadership("key1"))
	})
}

func TestSweep(t *testing.T) {
	t.Parallel()

	newFakeClock := func(start time.Time) (*time.Time, func() time.Time) {
		current := start
		return &current, func() time.Time { return current }
	}

	t.Run("idle slots are reclaimed", func(t *testing.T) {
		t.Parallel()
		c := NewCoordinator(0, 0)
		now, nowFunc := newFakeClock(time.Now())
		c.nowFunc = nowFunc

		for i := 0; i < 10; i++ {
			key := fmt.Sprintf("key%d", i)
			require.True(t, c.AcquireLeadership(key))
			c.Release(key)
		}
		require.Equal(t, 10, c.Len())

		*now = now.Add(time.Hour)
		c.sweep(time.Minute)

		require.Equal(t, 0, c.Len())
	})

	t.Run("fresh slots survive", func(t *testing.T) {
		t.Parallel()
		c := NewCoordinator(0, 0)
		now, nowFunc := newFakeClock(time.Now())
		c.nowFunc = nowFunc

		require.True(t, c.AcquireLeadership("old"))
		c.Release("old")

		*now = now.Add(time.Hour)

		require.True(t, c.AcquireLeadership("fresh"))
		c.Release("fresh")

		c.sweep(time.Minute)

		require.Equal(t, 1, c.Len())
		require.NoError(t, c.AwaitCompletion(t.Context(), "old"))
	})

	t.Run("slots with a leader in flight survive", func(t *testing.T) {
		t.Parallel()
		c := NewCoordinator(0, 0)
		now, nowFunc := newFakeClock(time.Now())
		c.nowFunc = nowFunc

		require.True(t, c.AcquireLeadership("key1"))

		*now = now.Add(time.Hour)
		c.sweep(time.Minute)

		require.Equal(t, 1, c.Len())
		require.False(t, c.AcquireLeadership("key1"))
		c.Release("key1")
	})

	t.Run("sweeper goroutine reclaims in the background", func(t *testing.T) {
		t.Parallel()
		c := NewCoordinator(time.Millisecond, time.Millisecond)
		defer c.Close()

		require.True(t, c.AcquireLeadership("key1"))
		c.Release("key1")

		require.Eventually(t, func() bool {
			return c.Len() == 0
		}, time.Second, 5*time.Millisecond)
	})
}

func TestClose(t *testing.T) {
	t.Parallel()

	t.Run("close without sweeper", func(t *testing.T) {
		t.Parallel()
		c := NewCoordinator(0, 0)
		c.Close()
	})

	t.Run("coordinator remains usable after close", func(t *testing.T) {
		t.Parallel()
		c := NewCoordinator(time.Minute, time.Minute)
		c.Close()

		require.True(t, c.AcquireLeadership("key1"))
		c.Release("key1")
	})
}

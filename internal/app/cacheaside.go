package app

import (
	"context"
	"fmt"
	"time"

	"github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/adapters/cachestore"
	"github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/coalescing"
	e "github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/errors"
	"github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/logging"
)

// Source tells where the returned payload came from.
type Source string

const (
	// SourceCache: fast path, the value was in the cache.
	SourceCache Source = "cache"
	// SourceLeaderFetch: this caller won leadership and fetched the value.
	SourceLeaderFetch Source = "leader-fetch"
	// SourceFollowerCache: this caller waited for a leader and found the
	// value the leader cached.
	SourceFollowerCache Source = "follower-cache"
	// SourceFollowerFetch: this caller waited, found nothing and fetched
	// directly without caching. Degraded path taken when the leader failed,
	// the cache write failed, or the wait timed out.
	SourceFollowerFetch Source = "follower-fetch"
)

// FetchFunc loads the authoritative value from the backing store.
type FetchFunc func(ctx context.Context) ([]byte, error)

// Endpoint identifies the logical operation for metrics partitioning.
type Endpoint struct {
	Name      string
	QueryType string
}

// AccessRecorder receives cache access outcomes. Implementations must be
// safe for concurrent use and must never fail the access path.
type AccessRecorder interface {
	Hit(ctx context.Context, endpoint string)
	Miss(ctx context.Context, endpoint string)
	Wait(ctx context.Context, endpoint string)
	CacheError(ctx context.Context, endpoint string, op string)
	FetchObserved(ctx context.Context, queryType string, endpoint string, duration time.Duration)
}

// CacheAside reads through a TTL'd cache and coalesces concurrent misses
// for the same key into a single backing store fetch. One caller per key
// becomes the leader and populates the cache; the others wait for it and
// then re-read.
//
// Cache failures only ever disable acceleration: a read error degrades to
// a miss and a write error is recorded and swallowed.
type CacheAside struct {
	store       cachestore.Store
	coordinator *coalescing.Coordinator
	recorder    AccessRecorder

	// Upper bound on how long a follower waits for its leader before
	// falling back to a direct fetch. Zero disables the bound.
	waitTimeout time.Duration
}

type CacheAsideOption func(*CacheAside)

func WithWaitTimeout(timeout time.Duration) CacheAsideOption {
	return func(a *CacheAside) {
		a.waitTimeout = timeout
	}
}

func NewCacheAside(store cachestore.Store, coordinator *coalescing.Coordinator, recorder AccessRecorder, options ...CacheAsideOption) *CacheAside {
	accessor := &CacheAside{
		store:       store,
		coordinator: coordinator,
		recorder:    recorder,
	}
	for _, option := range options {
		option(accessor)
	}
	return accessor
}

// GetOrPopulate returns the cached value for key, or fetches and caches it.
//
// While the cache is warm the backing store is never touched. While it is
// cold, at most one concurrent caller per key fetches; the rest wait and
// reuse the result. A leader's fetch error is returned to the leader only;
// its followers each fall back to one independent, uncached fetch.
func (a *CacheAside) GetOrPopulate(ctx context.Context, endpoint Endpoint, key string, fetch FetchFunc, ttl time.Duration) ([]byte, Source, error) {
	logger := logging.FromContext(ctx)

	value, found := a.readCache(ctx, endpoint, key)
	if found {
		a.recorder.Hit(ctx, endpoint.Name)
		return value, SourceCache, nil
	}

	if a.coordinator.AcquireLeadership(key) {
		// Release on every path so followers never wait on a dead leader.
		defer a.coordinator.Release(key)

		a.recorder.Miss(ctx, endpoint.Name)

		value, err := a.timedFetch(ctx, endpoint, fetch)
		if err != nil {
			return nil, SourceLeaderFetch, fmt.Errorf("failed to fetch from backing store: %w", err)
		}

		if err := a.store.Set(ctx, key, value, ttl); err != nil {
			logger.Warn("Failed to write to cache", "key", key, "error", err.Error())
			a.recorder.CacheError(ctx, endpoint.Name, "write")
		}

		return value, SourceLeaderFetch, nil
	}

	a.recorder.Wait(ctx, endpoint.Name)

	waitCtx := ctx
	if a.waitTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, a.waitTimeout)
		defer cancel()
	}

	waitTimedOut := false
	if err := a.coordinator.AwaitCompletion(waitCtx, key); err != nil {
		if ctx.Err() != nil {
			// The caller itself gave up; the leader's fetch is unaffected.
			return nil, "", ctx.Err()
		}
		waitTimedOut = true
		logger.Warn("Timed out waiting for leader", "key", key, "timeout", a.waitTimeout.String())
	} else {
		value, found := a.readCache(ctx, endpoint, key)
		if found {
			return value, SourceFollowerCache, nil
		}
	}

	// The leader failed, its cache write failed, or we stopped waiting.
	// Fetch directly without caching and without re-entering coordination:
	// one uncached fetch per follower bounds the herd to the callers that
	// were already waiting.
	value, err := a.timedFetch(ctx, endpoint, fetch)
	if err != nil {
		if waitTimedOut {
			return nil, SourceFollowerFetch, fmt.Errorf("%w: fallback fetch after wait timeout failed: %w", e.CoordinationTimeoutError, err)
		}
		return nil, SourceFollowerFetch, fmt.Errorf("failed to fetch from backing store: %w", err)
	}
	return value, SourceFollowerFetch, nil
}

// Invalidate removes all cached entries matching pattern. It does not touch
// coordination state: an in-flight population may land after the
// invalidation, which is an accepted race.
func (a *CacheAside) Invalidate(ctx context.Context, pattern string) (int, error) {
	count, err := a.store.DeleteAll(ctx, pattern)
	if err != nil {
		return count, fmt.Errorf("failed to invalidate cache: %w", err)
	}
	return count, nil
}

func (a *CacheAside) readCache(ctx context.Context, endpoint Endpoint, key string) ([]byte, bool) {
	value, found, err := a.store.Get(ctx, key)
	if err != nil {
		// A cache outage must never fail the request path.
		logging.FromContext(ctx).Warn("Failed to read from cache, treating as miss", "key", key, "error", err.Error())
		a.recorder.CacheError(ctx, endpoint.Name, "read")
		return nil, false
	}
	return value, found
}

func (a *CacheAside) timedFetch(ctx context.Context, endpoint Endpoint, fetch FetchFunc) ([]byte, error) {
	start := time.Now()
	value, err := fetch(ctx)
	a.recorder.FetchObserved(ctx, endpoint.QueryType, endpoint.Name, time.Since(start))
	return value, err
}

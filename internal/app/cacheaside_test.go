package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/adapters/cachestore"
	"github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/app"
	"github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/coalescing"
	e "github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testEndpoint = app.Endpoint{Name: "products_cached", QueryType: "select"}

type recordedAccess struct {
	mutex       sync.Mutex
	hits        int
	misses      int
	waits       int
	cacheErrors map[string]int
	fetches     int
}

func (r *recordedAccess) Hit(ctx context.Context, endpoint string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.hits++
}

func (r *recordedAccess) Miss(ctx context.Context, endpoint string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.misses++
}

func (r *recordedAccess) Wait(ctx context.Context, endpoint string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.waits++
}

func (r *recordedAccess) CacheError(ctx context.Context, endpoint string, op string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.cacheErrors == nil {
		r.cacheErrors = make(map[string]int)
	}
	r.cacheErrors[op]++
}

func (r *recordedAccess) FetchObserved(ctx context.Context, queryType string, endpoint string, duration time.Duration) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.fetches++
}

func (r *recordedAccess) snapshot() (hits, misses, waits int) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.hits, r.misses, r.waits
}

// failingStore errors on every operation, like an unreachable cache server.
type failingStore struct{}

func (failingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, errors.New("connection refused")
}

func (failingStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return errors.New("connection refused")
}

func (failingStore) DeleteAll(ctx context.Context, pattern string) (int, error) {
	return 0, errors.New("connection refused")
}

func (failingStore) Stats(ctx context.Context) (cachestore.Stats, error) {
	return cachestore.Stats{}, errors.New("connection refused")
}

func (failingStore) Close() error { return nil }

func newAccessor(t *testing.T, store cachestore.Store, options ...app.CacheAsideOption) (*app.CacheAside, *recordedAccess) {
	t.Helper()

	coordinator := coalescing.NewCoordinator(0, 0)
	recorder := &recordedAccess{}
	return app.NewCacheAside(store, coordinator, recorder, options...), recorder
}

func newMemoryStore(t *testing.T) *cachestore.Memory {
	t.Helper()

	store := cachestore.NewMemory(time.Minute)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestGetOrPopulateColdCache(t *testing.T) {
	t.Parallel()

	accessor, recorder := newAccessor(t, newMemoryStore(t))

	var fetchCalls atomic.Int64
	fetch := func(ctx context.Context) ([]byte, error) {
		fetchCalls.Add(1)
		return []byte(`{"products":[]}`), nil
	}

	value, source, err := accessor.GetOrPopulate(t.Context(), testEndpoint, "products:all:limit100", fetch, time.Minute)
	require.NoError(t, err)
	require.Equal(t, app.SourceLeaderFetch, source)
	require.Equal(t, []byte(`{"products":[]}`), value)
	require.Equal(t, int64(1), fetchCalls.Load())

	hits, misses, waits := recorder.snapshot()
	require.Equal(t, 0, hits)
	require.Equal(t, 1, misses)
	require.Equal(t, 0, waits)
}

func TestGetOrPopulateSingleFetchUnderContention(t *testing.T) {
	t.Parallel()

	// Cold cache, 10 concurrent callers, slow successful fetch: exactly one
	// backing call and identical payloads for everyone.
	accessor, recorder := newAccessor(t, newMemoryStore(t))

	const callers = 10

	var fetchCalls atomic.Int64
	fetch := func(ctx context.Context) ([]byte, error) {
		fetchCalls.Add(1)
		// Hold leadership until every other caller has missed and is
		// waiting, so nobody sneaks in after the cache write.
		deadline := time.Now().Add(time.Second)
		for {
			_, _, waits := recorder.snapshot()
			if waits == callers-1 || time.Now().After(deadline) {
				break
			}
			time.Sleep(time.Millisecond)
		}
		return []byte(`{"products":[{"id":1}]}`), nil
	}
	values := make([][]byte, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			value, _, err := accessor.GetOrPopulate(t.Context(), testEndpoint, "products:all:limit100", fetch, time.Minute)
			assert.NoError(t, err)
			values[i] = value
		}()
	}
	wg.Wait()

	require.Equal(t, int64(1), fetchCalls.Load())
	for i := 0; i < callers; i++ {
		require.Equal(t, []byte(`{"products":[{"id":1}]}`), values[i])
	}

	hits, misses, waits := recorder.snapshot()
	require.Equal(t, 1, misses)
	require.Equal(t, callers-1, waits)
	// Callers that arrived before the leader's write re-read the cache after
	// the release instead of counting as hits.
	require.Equal(t, 0, hits)
}

func TestGetOrPopulateWarmCache(t *testing.T) {
	t.Parallel()

	store := newMemoryStore(t)
	accessor, recorder := newAccessor(t, store)

	require.NoError(t, store.Set(t.Context(), "users:all:limit50", []byte(`{"users":[]}`), 30*time.Second))

	fetch := func(ctx context.Context) ([]byte, error) {
		t.Error("backing store should not be called on a warm cache")
		return nil, nil
	}

	const callers = 5
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			value, source, err := accessor.GetOrPopulate(t.Context(), testEndpoint, "users:all:limit50", fetch, 30*time.Second)
			assert.NoError(t, err)
			assert.Equal(t, app.SourceCache, source)
			assert.Equal(t, []byte(`{"users":[]}`), value)
		}()
	}
	wg.Wait()

	hits, misses, waits := recorder.snapshot()
	require.Equal(t, callers, hits)
	require.Equal(t, 0, misses)
	require.Equal(t, 0, waits)
}

func TestGetOrPopulateRepeatedReads(t *testing.T) {
	t.Parallel()

	accessor, _ := newAccessor(t, newMemoryStore(t))

	var fetchCalls atomic.Int64
	fetch := func(ctx context.Context) ([]byte, error) {
		fetchCalls.Add(1)
		return []byte(`{"value":1}`), nil
	}

	for i := 0; i < 5; i++ {
		value, _, err := accessor.GetOrPopulate(t.Context(), testEndpoint, "key1", fetch, time.Minute)
		require.NoError(t, err)
		require.Equal(t, []byte(`{"value":1}`), value)
	}

	require.Equal(t, int64(1), fetchCalls.Load())
}

func TestGetOrPopulateLeaderFailure(t *testing.T) {
	t.Parallel()

	// The leader's error goes to the leader alone. Each waiting follower
	// falls back to one direct fetch, and the cache stays empty.
	store := newMemoryStore(t)
	accessor, recorder := newAccessor(t, store)

	const followers = 4

	leaderEntered := make(chan struct{})
	followersWaiting := make(chan struct{})
	var fetchCalls atomic.Int64
	fetch := func(ctx context.Context) ([]byte, error) {
		if fetchCalls.Add(1) == 1 {
			close(leaderEntered)
			<-followersWaiting
			return nil, errors.New("backing store down")
		}
		return []byte(`{"degraded":true}`), nil
	}

	leaderErr := make(chan error, 1)
	go func() {
		_, _, err := accessor.GetOrPopulate(t.Context(), testEndpoint, "key1", fetch, time.Minute)
		leaderErr <- err
	}()
	<-leaderEntered

	var wg sync.WaitGroup
	for i := 0; i < followers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			value, source, err := accessor.GetOrPopulate(t.Context(), testEndpoint, "key1", fetch, time.Minute)
			assert.NoError(t, err)
			assert.Equal(t, app.SourceFollowerFetch, source)
			assert.Equal(t, []byte(`{"degraded":true}`), value)
		}()
	}

	// Let the followers reach their wait before the leader fails.
	require.Eventually(t, func() bool {
		_, _, waits := recorder.snapshot()
		return waits == followers
	}, time.Second, time.Millisecond)
	close(followersWaiting)

	wg.Wait()
	require.ErrorContains(t, <-leaderErr, "backing store down")

	// 1 leader fetch + one direct fetch per follower
	require.Equal(t, int64(1+followers), fetchCalls.Load())

	_, found, err := store.Get(t.Context(), "key1")
	require.NoError(t, err)
	require.False(t, found, "cache must stay unpopulated after a failed leader fetch")
}

func TestGetOrPopulateFollowerFetchError(t *testing.T) {
	t.Parallel()

	// A follower on the degraded path surfaces its own fetch error.
	accessor, _ := newAccessor(t, newMemoryStore(t))

	leaderEntered := make(chan struct{})
	followerWaiting := make(chan struct{})
	var fetchCalls atomic.Int64
	fetch := func(ctx context.Context) ([]byte, error) {
		if fetchCalls.Add(1) == 1 {
			close(leaderEntered)
			<-followerWaiting
		}
		return nil, errors.New("backing store down")
	}

	go func() {
		_, _, _ = accessor.GetOrPopulate(t.Context(), testEndpoint, "key1", fetch, time.Minute)
	}()
	<-leaderEntered

	followerDone := make(chan error, 1)
	go func() {
		_, _, err := accessor.GetOrPopulate(t.Context(), testEndpoint, "key1", fetch, time.Minute)
		followerDone <- err
	}()

	time.Sleep(10 * time.Millisecond)
	close(followerWaiting)

	require.ErrorContains(t, <-followerDone, "backing store down")
}

func TestGetOrPopulateWaitTimeout(t *testing.T) {
	t.Parallel()

	// A follower stops waiting for a stalled leader after the configured
	// timeout and fetches directly.
	accessor, _ := newAccessor(t, newMemoryStore(t), app.WithWaitTimeout(20*time.Millisecond))

	leaderEntered := make(chan struct{})
	releaseLeader := make(chan struct{})
	var fetchCalls atomic.Int64
	fetch := func(ctx context.Context) ([]byte, error) {
		if fetchCalls.Add(1) == 1 {
			close(leaderEntered)
			<-releaseLeader
		}
		return []byte(`{"value":1}`), nil
	}

	go func() {
		_, _, _ = accessor.GetOrPopulate(t.Context(), testEndpoint, "key1", fetch, time.Minute)
	}()
	<-leaderEntered
	defer close(releaseLeader)

	value, source, err := accessor.GetOrPopulate(t.Context(), testEndpoint, "key1", fetch, time.Minute)
	require.NoError(t, err)
	require.Equal(t, app.SourceFollowerFetch, source)
	require.Equal(t, []byte(`{"value":1}`), value)
}

func TestGetOrPopulateWaitTimeoutThenFetchFailure(t *testing.T) {
	t.Parallel()

	// When the fallback fetch after a wait timeout also fails, the error
	// identifies the timeout so it is not mistaken for a plain outage.
	accessor, _ := newAccessor(t, newMemoryStore(t), app.WithWaitTimeout(20*time.Millisecond))

	leaderEntered := make(chan struct{})
	releaseLeader := make(chan struct{})
	var fetchCalls atomic.Int64
	fetch := func(ctx context.Context) ([]byte, error) {
		if fetchCalls.Add(1) == 1 {
			close(leaderEntered)
			<-releaseLeader
			return []byte(`{"value":1}`), nil
		}
		return nil, errors.New("backing store down")
	}

	go func() {
		_, _, _ = accessor.GetOrPopulate(t.Context(), testEndpoint, "key1", fetch, time.Minute)
	}()
	<-leaderEntered
	defer close(releaseLeader)

	_, source, err := accessor.GetOrPopulate(t.Context(), testEndpoint, "key1", fetch, time.Minute)
	require.Equal(t, app.SourceFollowerFetch, source)
	require.ErrorIs(t, err, e.CoordinationTimeoutError)
	require.ErrorContains(t, err, "backing store down")
}

func TestGetOrPopulateCallerCancellation(t *testing.T) {
	t.Parallel()

	// A follower that abandons its request returns the context error without
	// fetching; the leader is unaffected.
	accessor, _ := newAccessor(t, newMemoryStore(t))

	leaderEntered := make(chan struct{})
	releaseLeader := make(chan struct{})
	var fetchCalls atomic.Int64
	fetch := func(ctx context.Context) ([]byte, error) {
		fetchCalls.Add(1)
		close(leaderEntered)
		<-releaseLeader
		return []byte(`{"value":1}`), nil
	}

	leaderDone := make(chan error, 1)
	go func() {
		_, _, err := accessor.GetOrPopulate(t.Context(), testEndpoint, "key1", fetch, time.Minute)
		leaderDone <- err
	}()
	<-leaderEntered

	ctx, cancel := context.WithCancel(t.Context())
	followerDone := make(chan error, 1)
	go func() {
		_, _, err := accessor.GetOrPopulate(ctx, testEndpoint, "key1", fetch, time.Minute)
		followerDone <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	require.ErrorIs(t, <-followerDone, context.Canceled)
	require.Equal(t, int64(1), fetchCalls.Load())

	close(releaseLeader)
	require.NoError(t, <-leaderDone)
}

func TestGetOrPopulateCacheOutage(t *testing.T) {
	t.Parallel()

	// An unreachable cache degrades every access to a miss but never fails
	// the request.
	accessor, recorder := newAccessor(t, failingStore{})

	var fetchCalls atomic.Int64
	fetch := func(ctx context.Context) ([]byte, error) {
		fetchCalls.Add(1)
		return []byte(`{"value":1}`), nil
	}

	for i := 0; i < 3; i++ {
		value, source, err := accessor.GetOrPopulate(t.Context(), testEndpoint, "key1", fetch, time.Minute)
		require.NoError(t, err)
		require.Equal(t, app.SourceLeaderFetch, source)
		require.Equal(t, []byte(`{"value":1}`), value)
	}

	require.Equal(t, int64(3), fetchCalls.Load())

	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	require.Equal(t, 3, recorder.cacheErrors["read"])
	require.Equal(t, 3, recorder.cacheErrors["write"])
}

func TestGetOrPopulateTTLExpiry(t *testing.T) {
	t.Parallel()

	accessor, _ := newAccessor(t, newMemoryStore(t))

	var fetchCalls atomic.Int64
	fetch := func(ctx context.Context) ([]byte, error) {
		return []byte(fmt.Sprintf(`{"fetch":%d}`, fetchCalls.Add(1))), nil
	}

	value, _, err := accessor.GetOrPopulate(t.Context(), testEndpoint, "key1", fetch, 50*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, []byte(`{"fetch":1}`), value)

	// Within the TTL reads keep hitting the cached value
	value, source, err := accessor.GetOrPopulate(t.Context(), testEndpoint, "key1", fetch, 50*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, app.SourceCache, source)
	require.Equal(t, []byte(`{"fetch":1}`), value)

	// After expiry the next access re-populates
	require.Eventually(t, func() bool {
		value, source, err := accessor.GetOrPopulate(t.Context(), testEndpoint, "key1", fetch, 50*time.Millisecond)
		require.NoError(t, err)
		return source == app.SourceLeaderFetch && string(value) == `{"fetch":2}`
	}, time.Second, 10*time.Millisecond)
}

func TestInvalidate(t *testing.T) {
	t.Parallel()

	store := newMemoryStore(t)
	accessor, _ := newAccessor(t, store)

	require.NoError(t, store.Set(t.Context(), "products:all:limit100", []byte("p"), time.Minute))
	require.NoError(t, store.Set(t.Context(), "users:all:limit50", []byte("u"), time.Minute))

	count, err := accessor.Invalidate(t.Context(), "*")
	require.NoError(t, err)
	require.Equal(t, 2, count)

	_, found, err := store.Get(t.Context(), "products:all:limit100")
	require.NoError(t, err)
	require.False(t, found)
}

func TestInvalidateDuringPopulation(t *testing.T) {
	t.Parallel()

	// Invalidation racing a leader's write is an accepted window: afterwards
	// a read returns either the leader's value or a miss.
	store := newMemoryStore(t)
	accessor, _ := newAccessor(t, store)

	leaderEntered := make(chan struct{})
	releaseLeader := make(chan struct{})
	fetch := func(ctx context.Context) ([]byte, error) {
		close(leaderEntered)
		<-releaseLeader
		return []byte(`{"value":1}`), nil
	}

	leaderDone := make(chan struct{})
	go func() {
		defer close(leaderDone)
		_, _, err := accessor.GetOrPopulate(t.Context(), testEndpoint, "key1", fetch, time.Minute)
		assert.NoError(t, err)
	}()
	<-leaderEntered

	// Mid-flight invalidation
	_, err := accessor.Invalidate(t.Context(), "*")
	require.NoError(t, err)

	close(releaseLeader)
	<-leaderDone

	value, found, err := store.Get(t.Context(), "key1")
	require.NoError(t, err)
	if found {
		// The leader's write landed after the invalidation
		require.Equal(t, []byte(`{"value":1}`), value)
	}
}

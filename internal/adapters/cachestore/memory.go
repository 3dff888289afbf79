package cachestore

import (
	"context"
	"path"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Memory is an in-process Store used for development and tests. It keeps
// the same contract as the Redis store, including glob patterns for
// DeleteAll, but reports no memory usage in Stats.
type Memory struct {
	cache *ttlcache.Cache[string, []byte]
}

var _ Store = (*Memory)(nil)

func NewMemory(defaultTTL time.Duration) *Memory {
	cache := ttlcache.New[string, []byte](
		ttlcache.WithTTL[string, []byte](defaultTTL),
		ttlcache.WithDisableTouchOnHit[string, []byte](),
	)

	go cache.Start()

	return &Memory{cache: cache}
}

func (s *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	item := s.cache.Get(key)
	if item == nil {
		return nil, false, nil
	}
	return item.Value(), true, nil
}

func (s *Memory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = ttlcache.NoTTL
	}
	s.cache.Set(key, value, ttl)
	return nil
}

func (s *Memory) DeleteAll(ctx context.Context, pattern string) (int, error) {
	if pattern == "*" {
		deleted := s.cache.Len()
		s.cache.DeleteAll()
		return deleted, nil
	}

	matching := []string{}
	for _, key := range s.cache.Keys() {
		// Keys are opaque strings; a malformed pattern matches nothing.
		if matched, err := path.Match(pattern, key); err == nil && matched {
			matching = append(matching, key)
		}
	}

	for _, key := range matching {
		s.cache.Delete(key)
	}
	return len(matching), nil
}

func (s *Memory) Stats(ctx context.Context) (Stats, error) {
	return Stats{
		Keys:            int64(s.cache.Len()),
		UsedMemoryHuman: "n/a",
		PeakMemoryHuman: "n/a",
	}, nil
}

func (s *Memory) Close() error {
	s.cache.Stop()
	return nil
}

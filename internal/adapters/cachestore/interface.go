package cachestore

import (
	"context"
	"time"
)

// Stats describes the state of the cache server for admin endpoints.
type Stats struct {
	Keys            int64
	UsedMemoryBytes int64
	UsedMemoryHuman string
	PeakMemoryHuman string
}

// Store is a shared TTL'd byte cache.
//
// A missing key is (nil, false, nil); errors are reserved for transport and
// server failures. Callers on the read path treat errors as a miss, and
// treat write errors as best-effort.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeleteAll(ctx context.Context, pattern string) (int, error)
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

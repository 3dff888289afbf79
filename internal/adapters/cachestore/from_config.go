package cachestore

import (
	"fmt"
	"time"

	"github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/config"
)

// NewStoreFromConfig picks the cache backend: Redis when REDIS_URL is set,
// otherwise an in-memory store in development. Production and staging
// require Redis so that instances share a cache.
func NewStoreFromConfig(conf config.Config) (Store, error) {
	if conf.RedisURL() != "" {
		store, err := NewRedis(conf.RedisURL())
		if err != nil {
			return nil, fmt.Errorf("failed to create redis cache store: %w", err)
		}
		return store, nil
	}

	if conf.IsDevelopment() {
		return NewMemory(10 * time.Minute), nil
	}

	return nil, fmt.Errorf("missing REDIS_URL in non-development environment")
}

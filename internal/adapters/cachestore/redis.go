package cachestore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	e "github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/errors"
	goredis "github.com/redis/go-redis/v9"
)

type Redis struct {
	rdb         goredis.UniversalClient
	closeClient bool
}

var _ Store = (*Redis)(nil)

func NewRedis(redisURL string) (*Redis, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return &Redis{
		rdb:         goredis.NewClient(opts),
		closeClient: true,
	}, nil
}

// NewRedisWithClient wraps an existing client. The caller keeps ownership
// and Close becomes a no-op.
func NewRedisWithClient(client goredis.UniversalClient) *Redis {
	return &Redis{rdb: client, closeClient: false}
}

func (s *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.rdb.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return nil, false, nil // miss
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: failed to read key: %w", e.CacheUnavailableError, err)
	}
	return b, true, nil
}

func (s *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 0 // treat non-positive TTLs as "no expiry"
	}

	err := s.rdb.Set(ctx, key, value, ttl).Err()
	if err != nil {
		return fmt.Errorf("%w: failed to write key: %w", e.CacheUnavailableError, err)
	}
	return nil
}

func (s *Redis) DeleteAll(ctx context.Context, pattern string) (int, error) {
	deleted := 0

	iter := s.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	batch := make([]string, 0, 100)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.rdb.Del(ctx, batch...).Err(); err != nil {
			return err
		}
		deleted += len(batch)
		batch = batch[:0]
		return nil
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := flush(); err != nil {
				return deleted, fmt.Errorf("%w: failed to delete keys: %w", e.CacheUnavailableError, err)
			}
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("%w: failed to scan keys: %w", e.CacheUnavailableError, err)
	}
	if err := flush(); err != nil {
		return deleted, fmt.Errorf("%w: failed to delete keys: %w", e.CacheUnavailableError, err)
	}

	return deleted, nil
}

func (s *Redis) Stats(ctx context.Context) (Stats, error) {
	info, err := s.rdb.Info(ctx, "memory").Result()
	if err != nil {
		return Stats{}, fmt.Errorf("%w: failed to read memory info: %w", e.CacheUnavailableError, err)
	}

	keys, err := s.rdb.DBSize(ctx).Result()
	if err != nil {
		return Stats{}, fmt.Errorf("%w: failed to read key count: %w", e.CacheUnavailableError, err)
	}

	usedBytes, _ := strconv.ParseInt(infoField(info, "used_memory"), 10, 64)

	return Stats{
		Keys:            keys,
		UsedMemoryBytes: usedBytes,
		UsedMemoryHuman: infoField(info, "used_memory_human"),
		PeakMemoryHuman: infoField(info, "used_memory_peak_human"),
	}, nil
}

// Close releases the underlying client only when this store owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (s *Redis) Close() error {
	if s.closeClient {
		if err := s.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}

// infoField extracts a single "field:value" line from an INFO response.
func infoField(info, field string) string {
	for _, line := range strings.Split(info, "\n") {
		line = strings.TrimSpace(line)
		if value, found := strings.CutPrefix(line, field+":"); found {
			return value
		}
	}
	return ""
}

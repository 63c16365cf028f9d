package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares counters between server instances.  Each key is a
// plain integer whose TTL is the window; redis expires it, so Sweep has
// nothing to do.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) key(k string) string { return s.prefix + ":" + k }

// incrScript bumps the counter and starts the window on the first failure.
var incrScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
    redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
return { n, ttl }
`)

func (s *RedisStore) Get(ctx context.Context, key string, now time.Time) (Entry, bool, error) {
	pipe := s.rdb.Pipeline()
	get := pipe.Get(ctx, s.key(key))
	ttl := pipe.PTTL(ctx, s.key(key))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return Entry{}, false, fmt.Errorf("ratelimit get: %w", err)
	}
	n, err := get.Int()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("ratelimit get: %w", err)
	}
	d := ttl.Val()
	if d <= 0 {
		return Entry{}, false, nil
	}
	return Entry{Count: n, ResetAt: now.Add(d)}, true, nil
}

func (s *RedisStore) Increment(ctx context.Context, key string, window time.Duration, now time.Time) (Entry, error) {
	vals, err := incrScript.Run(ctx, s.rdb, []string{s.key(key)}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return Entry{}, fmt.Errorf("ratelimit incr: %w", err)
	}
	if len(vals) != 2 {
		return Entry{}, fmt.Errorf("ratelimit incr: unexpected reply %v", vals)
	}
	ttl := time.Duration(vals[1]) * time.Millisecond
	if ttl <= 0 {
		ttl = window
	}
	return Entry{Count: int(vals[0]), ResetAt: now.Add(ttl)}, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, s.key(key)).Err()
}

func (s *RedisStore) Sweep(context.Context, time.Time) (int, error) { return 0, nil }

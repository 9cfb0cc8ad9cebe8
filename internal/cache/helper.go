package cache

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
)

// GetJSON reads key into dest. Returns (true, nil) on a hit. A cached
// value that no longer unmarshals is deleted and reported as a miss, so
// a schema change self-heals on the next write instead of poisoning the
// key until its TTL runs out.
func GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if client == nil {
		return false, nil
	}
	s, err := client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(s), dest); err != nil {
		client.Del(ctx, key)
		return false, nil
	}
	return true, nil
}

// SetJSON marshals v and writes it under key. The TTL gets a small
// random spread so hot keys written in the same burst do not all expire
// in the same instant.
func SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if client == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return client.Set(ctx, key, b, jitter(ttl)).Err()
}

func jitter(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return ttl
	}
	return ttl + time.Duration(rand.Int63n(int64(ttl/10)+1))
}

// Aside serves key from redis when possible, falling back to fetch.
// fetch must write into dest; its result is stored best-effort. Redis
// being unreachable counts as a miss, not an error: reads degrade to
// the source and the client's metrics hook records the failure.
func Aside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	found, err := GetJSON(ctx, key, dest)
	if err == nil && found {
		return nil
	}

	if err := fetch(); err != nil {
		return err
	}

	_ = SetJSON(ctx, key, dest, ttl)
	return nil
}

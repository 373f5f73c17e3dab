package credstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig contains configuration options for RedisStore.
type RedisConfig struct {
	// Client is the Redis client instance.
	Client *redis.Client

	// KeyPrefix is prepended to every session key.
	// Default: "walink:creds:"
	KeyPrefix string

	// TTL bounds how long an abandoned context survives in Redis if the
	// process dies before discarding it. Zero disables expiry.
	TTL time.Duration
}

// RedisStore keeps each credential context in a Redis hash.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisStore creates a Redis-backed Store.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if cfg.Client == nil {
		return nil, errors.New("credstore: redis client is required")
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "walink:creds:"
	}
	return &RedisStore{client: cfg.Client, keyPrefix: cfg.KeyPrefix, ttl: cfg.TTL}, nil
}

// Client returns the underlying Redis client.
func (s *RedisStore) Client() *redis.Client { return s.client }

func (s *RedisStore) redisKey(key string) string { return s.keyPrefix + key }

// OpenOrCreate implements Store.
func (s *RedisStore) OpenOrCreate(ctx context.Context, key string) (*Context, SaveFunc, error) {
	if !ValidKey(key) {
		return nil, nil, ErrInvalidKey
	}

	rkey := s.redisKey(key)
	vals, err := s.client.HGetAll(ctx, rkey).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("credstore: load %s: %w", rkey, err)
	}

	entries := make(map[string][]byte, len(vals))
	for name, v := range vals {
		entries[name] = []byte(v)
	}

	c := NewContext(key, entries)
	save := newSaveFunc(c, func(ctx context.Context, u Update) error {
		_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for name, data := range u {
				if data == nil {
					pipe.HDel(ctx, rkey, name)
					continue
				}
				pipe.HSet(ctx, rkey, name, data)
			}
			if s.ttl > 0 {
				pipe.Expire(ctx, rkey, s.ttl)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("credstore: save %s: %w", rkey, err)
		}
		return nil
	})
	return c, save, nil
}

// Discard implements Store.
func (s *RedisStore) Discard(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("credstore: discard %s: %w", key, err)
	}
	return nil
}

// Close implements Store. The client is owned by the caller.
func (s *RedisStore) Close() error { return nil }

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"
)

// Key builds a compact cache key from a prefix and an arbitrary payload,
// typically the JSON encoding of a projection request.
func Key(prefix string, payload []byte) string {
	return fmt.Sprintf("%s:%016x", prefix, xxhash.Sum64(payload))
}

// LocalStore adapts an LRUCache to the Store interface.
type LocalStore struct {
	lru *LRUCache[[]byte]
}

// NewLocalStore creates an in-process store.
func NewLocalStore(maxSize int, ttl time.Duration) *LocalStore {
	return &LocalStore{lru: NewLRUCache[[]byte](maxSize, ttl)}
}

func (s *LocalStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := s.lru.Get(key)
	return v, ok, nil
}

func (s *LocalStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		s.lru.Set(key, value)
		return nil
	}
	s.lru.SetWithTTL(key, value, ttl)
	return nil
}

func (s *LocalStore) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		s.lru.Delete(k)
	}
	return nil
}

// CleanExpired implements Cleaner.
func (s *LocalStore) CleanExpired() int {
	return s.lru.CleanExpired()
}

// Size returns the number of cached entries.
func (s *LocalStore) Size() int {
	return s.lru.Size()
}

// RedisStore keeps cached projections in Redis so several server instances
// and the worker share them.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore connects to addr and verifies the connection.
func NewRedisStore(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return &RedisStore{client: client}, nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Ping reports whether Redis is reachable, for readiness checks.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

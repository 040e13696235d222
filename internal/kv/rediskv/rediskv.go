// Package rediskv implements kv.Store on Redis.
package rediskv

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/mmynk/debtbook/internal/kv"
)

// Ensure Store implements kv.Store
var _ kv.Store = (*Store)(nil)

// Store keeps key-value pairs in Redis with no expiry; guest session expiry
// is decided by the session manager, not by key TTLs.
type Store struct {
	client redis.UniversalClient
}

// New creates a Store connected to the Redis server at addr.
func New(addr string) *Store {
	return NewWithClient(redis.NewClient(&redis.Options{
		Addr: addr,
	}))
}

// NewWithClient wraps an existing client.
func NewWithClient(client redis.UniversalClient) *Store {
	return &Store{client: client}
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return val, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// MultiRemove deletes the keys in order, one command per key, so that the
// last key is only removed after all earlier ones.
func (s *Store) MultiRemove(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if err := s.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("failed to remove key %s: %w", key, err)
		}
	}
	return nil
}

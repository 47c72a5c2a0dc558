// Package redis stores cart state in Redis and relays cart changes between
// instances over Redis pub/sub.
package redis

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/trading-academy/internal/domain/cart"
)

// NewClient connects to the Redis server at url (redis://host:port/db) and
// checks the connection.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return client, nil
}

var _ cart.Storage = (*CartStorage)(nil)

// CartStorage implements cart.Storage with one string value per key. SET
// replaces the value atomically.
type CartStorage struct {
	client *redis.Client
	prefix string
}

// NewCartStorage returns a CartStorage namespacing keys with prefix.
func NewCartStorage(client *redis.Client, prefix string) *CartStorage {
	return &CartStorage{client: client, prefix: prefix}
}

func (s *CartStorage) redisKey(key string) string { return s.prefix + key }

// Load returns the blob stored under key or cart.ErrNoState.
func (s *CartStorage) Load(ctx context.Context, key string) ([]byte, error) {
	b, err := s.client.Get(ctx, s.redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, cart.ErrNoState
		}
		return nil, fmt.Errorf("loading cart %q: %w", key, err)
	}
	return b, nil
}

// Save replaces the blob stored under key.
func (s *CartStorage) Save(ctx context.Context, key string, blob []byte) error {
	if err := s.client.Set(ctx, s.redisKey(key), blob, 0).Err(); err != nil {
		return fmt.Errorf("saving cart %q: %w", key, err)
	}
	return nil
}

// Ping checks the connection.
func (s *CartStorage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

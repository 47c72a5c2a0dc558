// Package memory keeps cart state and orders in process memory. State is lost
// on restart.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/xenking/trading-academy/internal/domain/cart"
)

var _ cart.Storage = (*CartStorage)(nil)

// CartStorage implements cart.Storage with a map of blobs.
type CartStorage struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewCartStorage returns an empty CartStorage.
func NewCartStorage() *CartStorage {
	return &CartStorage{blobs: make(map[string][]byte)}
}

// Load returns a copy of the blob stored under key or cart.ErrNoState.
func (s *CartStorage) Load(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[key]
	if !ok {
		return nil, cart.ErrNoState
	}
	return slices.Clone(b), nil
}

// Save replaces the blob stored under key.
func (s *CartStorage) Save(_ context.Context, key string, blob []byte) error {
	s.mu.Lock()
	s.blobs[key] = slices.Clone(blob)
	s.mu.Unlock()
	return nil
}

// Ping always succeeds.
func (s *CartStorage) Ping(context.Context) error { return nil }

package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/trading-academy/internal/domain/cart"
)

const (
	loadCartSQL = `SELECT payload FROM cart_state WHERE key = $1`

	// A single-row upsert replaces the payload atomically.
	saveCartSQL = `INSERT INTO cart_state (key, payload, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`
)

var _ cart.Storage = (*CartStorage)(nil)

// CartStorage implements cart.Storage backed by the cart_state table.
type CartStorage struct {
	pool *pgxpool.Pool
}

// NewCartStorage returns a CartStorage that uses the given pool.
func NewCartStorage(pool *pgxpool.Pool) *CartStorage {
	return &CartStorage{pool: pool}
}

// Load returns the payload stored under key or cart.ErrNoState.
func (s *CartStorage) Load(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, loadCartSQL, key).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNoState
		}
		return nil, fmt.Errorf("loading cart %q: %w", key, err)
	}
	return payload, nil
}

// Save replaces the payload stored under key.
func (s *CartStorage) Save(ctx context.Context, key string, blob []byte) error {
	if _, err := s.pool.Exec(ctx, saveCartSQL, key, blob); err != nil {
		return fmt.Errorf("saving cart %q: %w", key, err)
	}
	return nil
}

// Ping checks the database connection.
func (s *CartStorage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/trading-academy/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders (id, session, items, subtotal, tax, total, currency, method, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	listOrdersBySessionSQL = `SELECT id, session, items, subtotal, tax, total, currency, method, status, created_at
		FROM orders WHERE session = $1 ORDER BY created_at DESC LIMIT $2`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. The order items are serialized to JSON for
// storage in the JSONB column.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}

	_, err = r.pool.Exec(ctx, createOrderSQL,
		o.ID, o.Session, itemsJSON, o.Subtotal, o.Tax, o.Total,
		o.Currency, o.Method, string(o.Status), o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	return nil
}

// ListBySession returns up to limit orders of session, newest first.
func (r *OrderRepository) ListBySession(ctx context.Context, session string, limit int) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersBySessionSQL, session, limit)
	if err != nil {
		return nil, fmt.Errorf("listing orders of %q: %w", session, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o         order.Order
		itemsJSON []byte
		status    string
	)
	if err := row.Scan(
		&o.ID, &o.Session, &itemsJSON, &o.Subtotal, &o.Tax, &o.Total,
		&o.Currency, &o.Method, &status, &o.CreatedAt,
	); err != nil {
		return order.Order{}, err
	}
	o.Status = order.Status(status)
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return order.Order{}, fmt.Errorf("unmarshaling items of order %s: %w", o.ID, err)
	}
	return o, nil
}

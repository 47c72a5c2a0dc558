package memory

import (
	"context"
	"sync"

	"github.com/xenking/trading-academy/internal/domain/order"
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository in memory.
type OrderRepository struct {
	mu     sync.RWMutex
	orders []order.Order
}

// NewOrderRepository returns an empty OrderRepository.
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{}
}

// Create appends a copy of o.
func (r *OrderRepository) Create(_ context.Context, o *order.Order) error {
	cp := *o
	cp.Items = append([]order.Item(nil), o.Items...)
	r.mu.Lock()
	r.orders = append(r.orders, cp)
	r.mu.Unlock()
	return nil
}

// ListBySession returns up to limit orders of session, newest first.
func (r *OrderRepository) ListBySession(_ context.Context, session string, limit int) ([]order.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]order.Order, 0, min(limit, len(r.orders)))
	for i := len(r.orders) - 1; i >= 0 && len(out) < limit; i-- {
		if r.orders[i].Session == session {
			out = append(out, r.orders[i])
		}
	}
	return out, nil
}

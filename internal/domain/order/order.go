package order

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the terminal outcome of a checkout attempt.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Order records one terminal checkout attempt with its pricing.
type Order struct {
	ID        uuid.UUID
	Session   string
	Items     []Item
	Subtotal  decimal.Decimal
	Tax       decimal.Decimal
	Total     decimal.Decimal
	Currency  string
	Method    string
	Status    Status
	CreatedAt time.Time
}

// Item is a purchased course as it was priced at checkout.
type Item struct {
	CourseID int             `json:"course_id"`
	Title    string          `json:"title"`
	Price    decimal.Decimal `json:"price"`
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, order *Order) error
	// ListBySession returns the session's orders, newest first.
	ListBySession(ctx context.Context, session string, limit int) ([]Order, error)
}

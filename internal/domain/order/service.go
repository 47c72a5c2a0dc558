package order

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/trading-academy/internal/domain/pricing"
)

// Sentinel errors for order validation.
var (
	ErrEmptyItems    = fmt.Errorf("items required")
	ErrInvalidStatus = fmt.Errorf("invalid order status")
)

// InvalidItemError indicates a line item that cannot be priced.
type InvalidItemError struct {
	CourseID int
}

func (e *InvalidItemError) Error() string {
	return fmt.Sprintf("invalid line item for course %d", e.CourseID)
}

// RecordRequest holds the input for recording an order.
type RecordRequest struct {
	Session  string
	Items    []Item
	Currency string
	Method   string
	Status   Status
}

// Service encapsulates order recording business logic.
type Service struct {
	orders Repository
	pricer *pricing.Calculator
	now    func() time.Time
}

// NewService creates an order Service. A nil pricer applies the default tax
// rate.
func NewService(orders Repository, pricer *pricing.Calculator) *Service {
	if pricer == nil {
		pricer, _ = pricing.NewCalculator(pricing.DefaultTaxRate)
	}
	return &Service{
		orders: orders,
		pricer: pricer,
		now:    time.Now,
	}
}

// Record validates items, prices them, assigns an id and persists the order.
func (s *Service) Record(ctx context.Context, req RecordRequest) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	switch req.Status {
	case StatusCompleted, StatusFailed:
	default:
		return nil, ErrInvalidStatus
	}

	prices := make([]decimal.Decimal, len(req.Items))
	for i, item := range req.Items {
		if item.CourseID <= 0 || item.Price.IsNegative() {
			return nil, &InvalidItemError{CourseID: item.CourseID}
		}
		prices[i] = item.Price
	}
	summary := s.pricer.Summarize(prices...)

	o := &Order{
		ID:        uuid.New(),
		Session:   req.Session,
		Items:     req.Items,
		Subtotal:  summary.Subtotal,
		Tax:       summary.Tax,
		Total:     summary.Total,
		Currency:  req.Currency,
		Method:    req.Method,
		Status:    req.Status,
		CreatedAt: s.now().UTC(),
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	return o, nil
}

// History returns the most recent orders of a session.
func (s *Service) History(ctx context.Context, session string, limit int) ([]Order, error) {
	if limit <= 0 {
		limit = 20
	}
	orders, err := s.orders.ListBySession(ctx, session, limit)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

package cart

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/trading-academy/internal/domain/course"
)

// DefaultKey is the well-known storage key of the default cart.
const DefaultKey = "cart"

var (
	// ErrAlreadyInCart is returned by Add when the course is already in the
	// cart. It is informational: the cart is left unchanged.
	ErrAlreadyInCart = errors.New("course already in cart")
	// ErrQuantityFixed is returned by UpdateQuantity. Each course can be
	// bought once, so the quantity of a line item is always 1.
	ErrQuantityFixed = errors.New("only one of each course can be purchased")
	// ErrNoState is returned by Storage.Load when nothing is stored under a key.
	ErrNoState = errors.New("no persisted cart state")
)

// IndexOutOfRangeError indicates a line item position outside the cart.
type IndexOutOfRangeError struct {
	Index int
	Len   int
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("cart index %d out of range [0, %d)", e.Index, e.Len)
}

// LineItem is a snapshot of a course's display fields taken when it was
// added. Quantity is always 1.
type LineItem struct {
	ID       int
	Title    string
	Level    course.Level
	Price    decimal.Decimal
	Currency string
	Duration string
	Lessons  int
	Image    string
}

// NewLineItem snapshots c.
func NewLineItem(c course.Course) LineItem {
	return LineItem{
		ID:       c.ID,
		Title:    c.Title,
		Level:    c.Level,
		Price:    c.Price,
		Currency: c.Currency,
		Duration: c.Duration,
		Lessons:  c.Lessons,
		Image:    c.Image,
	}
}

// Courses resolves course ids for Add.
type Courses interface {
	Get(id int) (course.Course, error)
}

// Storage persists the encoded cart under a key. Save must replace the whole
// blob atomically: a concurrent Load observes either the old or the new blob.
type Storage interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, blob []byte) error
}

// Total returns the sum of the item prices.
func Total(items []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.Price)
	}
	return sum
}

// Package view derives the data each page renders from the catalog, the cart
// and the payment simulator. Rendering itself happens elsewhere.
package view

import (
	"context"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/xenking/trading-academy/internal/domain/cart"
	"github.com/xenking/trading-academy/internal/domain/course"
	"github.com/xenking/trading-academy/internal/domain/payment"
	"github.com/xenking/trading-academy/internal/event"
)

// Cart is the cart store as seen by the pages.
type Cart interface {
	List() []cart.LineItem
	Len() int
	Contains(courseID int) bool
	Total() decimal.Decimal
	Add(ctx context.Context, courseID int) error
	Remove(ctx context.Context, index int) error
	UpdateQuantity(index, delta int) error
}

// Subscriber delivers cart change notifications.
type Subscriber interface {
	Subscribe(fn func()) (unsubscribe func())
}

// Payments is the payment simulator as seen by the checkout page.
type Payments interface {
	State() payment.State
	SelectMethod(method string) (payment.Method, error)
	Submit(ctx context.Context) (<-chan payment.Result, error)
}

var (
	_ Cart       = (*cart.Store)(nil)
	_ Payments   = (*payment.Simulator)(nil)
	_ Subscriber = (*event.Bus)(nil)
)

// Money formats an amount in rand: whole amounts without decimals ("R499"),
// others with two ("R209.70").
func Money(d decimal.Decimal) string {
	if d.Equal(d.Truncate(0)) {
		return "R" + d.StringFixed(0)
	}
	return "R" + d.StringFixed(2)
}

// Stars renders a 1-5 rating as filled and empty stars.
func Stars(rating int) string {
	rating = max(0, min(rating, 5))
	return strings.Repeat("★", rating) + strings.Repeat("☆", 5-rating)
}

// FeaturePreview is the number of features shown on a course card.
const FeaturePreview = 3

// Card is a course as listed on the catalog page and in related courses.
type Card struct {
	ID           int
	Title        string
	Description  string
	Level        course.Level
	LevelLabel   string
	Price        decimal.Decimal
	PriceLabel   string
	Duration     string
	Lessons      int
	Image        string
	Features     []string
	MoreFeatures int
	InCart       bool
}

func newCard(c *course.Course, inCart bool) Card {
	features := c.Features
	more := 0
	if len(features) > FeaturePreview {
		more = len(features) - FeaturePreview
		features = features[:FeaturePreview]
	}
	return Card{
		ID:           c.ID,
		Title:        c.Title,
		Description:  c.Description,
		Level:        c.Level,
		LevelLabel:   c.Level.Title(),
		Price:        c.Price,
		PriceLabel:   Money(c.Price),
		Duration:     c.Duration,
		Lessons:      c.Lessons,
		Image:        c.Image,
		Features:     append([]string(nil), features...),
		MoreFeatures: more,
		InCart:       inCart,
	}
}

// header is the cart badge every page shows. It subscribes once when the page
// is built and refreshes its count on every notification.
type header struct {
	cart        Cart
	unsubscribe func()

	mu        sync.Mutex
	count     int
	refreshes int
}

func (h *header) attach(c Cart, sub Subscriber) {
	h.cart = c
	h.count = c.Len()
	h.unsubscribe = sub.Subscribe(h.refresh)
}

func (h *header) refresh() {
	n := h.cart.Len()
	h.mu.Lock()
	h.count = n
	h.refreshes++
	h.mu.Unlock()
}

// Badge returns the cart item count shown in the header.
func (h *header) Badge() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Refreshes returns how many notifications the page has handled.
func (h *header) Refreshes() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.refreshes
}

// Close stops the page from receiving notifications.
func (h *header) Close() {
	if h.unsubscribe != nil {
		h.unsubscribe()
	}
}

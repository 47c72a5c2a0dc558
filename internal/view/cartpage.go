package view

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/xenking/trading-academy/internal/domain/payment"
)

// CartLine is one row of the cart page.
type CartLine struct {
	Index      int
	ID         int
	Title      string
	LevelLabel string
	Duration   string
	Lessons    int
	Image      string
	Price      decimal.Decimal
	PriceLabel string
}

// CartView is the cart page view model.
type CartView struct {
	Lines      []CartLine
	Total      decimal.Decimal
	TotalLabel string
	Empty      bool
	Badge      int
}

// CartPage lists the cart and edits it.
type CartPage struct {
	header
}

// NewCartPage builds the page and subscribes it to cart changes.
func NewCartPage(c Cart, sub Subscriber) *CartPage {
	p := &CartPage{}
	p.attach(c, sub)
	return p
}

// View returns the current cart lines and total.
func (p *CartPage) View() CartView {
	items := p.cart.List()
	v := CartView{
		Lines: make([]CartLine, len(items)),
		Empty: len(items) == 0,
		Badge: p.Badge(),
	}
	total := decimal.Zero
	for i, it := range items {
		v.Lines[i] = CartLine{
			Index:      i,
			ID:         it.ID,
			Title:      it.Title,
			LevelLabel: it.Level.Title(),
			Duration:   it.Duration,
			Lessons:    it.Lessons,
			Image:      it.Image,
			Price:      it.Price,
			PriceLabel: Money(it.Price),
		}
		total = total.Add(it.Price)
	}
	v.Total = total
	v.TotalLabel = Money(total)
	return v
}

// Remove deletes the line at index.
func (p *CartPage) Remove(ctx context.Context, index int) error {
	return p.cart.Remove(ctx, index)
}

// UpdateQuantity always fails with cart.ErrQuantityFixed for a valid index.
func (p *CartPage) UpdateQuantity(index, delta int) error {
	return p.cart.UpdateQuantity(index, delta)
}

// Checkout checks that there is something to pay for before moving to the
// checkout page.
func (p *CartPage) Checkout() error {
	if p.cart.Len() == 0 {
		return payment.ErrEmptyCart
	}
	return nil
}

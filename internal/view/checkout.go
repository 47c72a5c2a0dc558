package view

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/trading-academy/internal/domain/payment"
	"github.com/xenking/trading-academy/internal/domain/pricing"
)

// SummaryLine is one item of the order summary.
type SummaryLine struct {
	ID         int
	Title      string
	Price      decimal.Decimal
	PriceLabel string
}

// OrderSummary is the priced cart shown next to the payment form.
type OrderSummary struct {
	Lines         []SummaryLine
	Subtotal      decimal.Decimal
	Tax           decimal.Decimal
	Total         decimal.Decimal
	SubtotalLabel string
	TaxLabel      string
	TotalLabel    string
	Empty         bool
}

// MethodOption is a selectable payment method.
type MethodOption struct {
	Method   payment.Method
	Label    string
	Selected bool
}

// PaymentStatus is the state of the payment form.
type PaymentStatus struct {
	Phase   string
	Method  payment.Method
	Methods []MethodOption
	// CanSubmit is false while processing and before a method is chosen.
	CanSubmit bool
	Message   string
	OrderID   uuid.UUID
}

// CheckoutView is the checkout page view model.
type CheckoutView struct {
	Summary OrderSummary
	Payment PaymentStatus
	Badge   int
}

// CheckoutPage prices the cart and drives the payment simulator.
type CheckoutPage struct {
	header
	pricer   *pricing.Calculator
	payments Payments
}

// NewCheckoutPage builds the page and subscribes it to cart changes.
func NewCheckoutPage(c Cart, sub Subscriber, pricer *pricing.Calculator, payments Payments) *CheckoutPage {
	p := &CheckoutPage{pricer: pricer, payments: payments}
	p.attach(c, sub)
	return p
}

// Summary prices the current cart.
func (p *CheckoutPage) Summary() OrderSummary {
	items := p.cart.List()
	s := OrderSummary{
		Lines: make([]SummaryLine, len(items)),
		Empty: len(items) == 0,
	}
	prices := make([]decimal.Decimal, len(items))
	for i, it := range items {
		s.Lines[i] = SummaryLine{ID: it.ID, Title: it.Title, Price: it.Price, PriceLabel: Money(it.Price)}
		prices[i] = it.Price
	}
	sum := p.pricer.Summarize(prices...)
	s.Subtotal, s.Tax, s.Total = sum.Subtotal, sum.Tax, sum.Total
	s.SubtotalLabel = Money(sum.Subtotal)
	s.TaxLabel = Money(sum.Tax)
	s.TotalLabel = Money(sum.Total)
	return s
}

// Status describes the payment form.
func (p *CheckoutPage) Status() PaymentStatus {
	st := p.payments.State()
	ps := PaymentStatus{
		Phase:   st.Phase.String(),
		Method:  st.Method,
		Methods: make([]MethodOption, len(payment.Methods)),
	}
	for i, m := range payment.Methods {
		ps.Methods[i] = MethodOption{Method: m, Label: m.Label(), Selected: m == st.Method}
	}
	if st.Order != nil {
		ps.OrderID = st.Order.ID
	}

	switch st.Phase {
	case payment.PhaseIdle:
		ps.Message = "Select a payment method"
	case payment.PhaseSelecting:
		ps.CanSubmit = true
		ps.Message = "Pay with " + st.Method.Label()
	case payment.PhaseProcessing:
		ps.Message = "Processing..."
	case payment.PhaseSucceeded:
		ps.Message = "Payment successful!"
	case payment.PhaseFailed:
		ps.CanSubmit = true
		ps.Message = "Payment failed. Please try again."
	}
	return ps
}

// View returns the summary and the payment status.
func (p *CheckoutPage) View() CheckoutView {
	return CheckoutView{
		Summary: p.Summary(),
		Payment: p.Status(),
		Badge:   p.Badge(),
	}
}

// SelectMethod chooses the payment method.
func (p *CheckoutPage) SelectMethod(method string) (payment.Method, error) {
	return p.payments.SelectMethod(method)
}

// Submit starts a payment attempt.
func (p *CheckoutPage) Submit(ctx context.Context) (<-chan payment.Result, error) {
	return p.payments.Submit(ctx)
}

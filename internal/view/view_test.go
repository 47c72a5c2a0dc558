package view

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/trading-academy/internal/domain/cart"
	"github.com/xenking/trading-academy/internal/domain/course"
	"github.com/xenking/trading-academy/internal/domain/payment"
	"github.com/xenking/trading-academy/internal/domain/pricing"
	"github.com/xenking/trading-academy/internal/event"
	"github.com/xenking/trading-academy/internal/storage/memory"
)

// --- Helpers ---

type fixture struct {
	catalog *course.Catalog
	bus     *event.Bus
	cart    *cart.Store
	pay     *payment.Simulator
	pricer  *pricing.Calculator
}

func newFixture(t *testing.T, outcome payment.Outcome) *fixture {
	t.Helper()
	ctx := context.Background()

	catalog, err := course.NewCatalog([]course.Course{
		{
			ID: 1, Title: "AI Trading Fundamentals", Description: "Foundations of automated trading",
			Level: course.LevelBeginner, Price: decimal.NewFromInt(499), Currency: "ZAR",
			Features: []string{"Market basics", "Risk management", "Chart reading", "Bot setup"},
			Curriculum: []course.Module{
				{Title: "Getting started", Lessons: []string{"Welcome", "Tools"}},
				{Title: "Markets", Lessons: []string{"Forex"}},
			},
			Reviews: []course.Review{
				{Author: "Thabo", Rating: 4, Comment: "Solid", Date: time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)},
			},
			LastUpdated: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			ID: 2, Title: "Intermediate AI Trading Strategies", Description: "Strategy design",
			Level: course.LevelIntermediate, Price: decimal.NewFromInt(899), Currency: "ZAR",
			Features: []string{"Backtesting"},
		},
		{
			ID: 3, Title: "Advanced AI Trading Mastery", Description: "Portfolio level models",
			Level: course.LevelAdvanced, Price: decimal.NewFromInt(1499), Currency: "ZAR",
			Features: []string{"Neural networks", "Risk parity"},
		},
	})
	require.NoError(t, err)

	bus := event.NewBus(nil)
	store, err := cart.NewStore(ctx, cart.DefaultKey, catalog, memory.NewCartStorage(), bus)
	require.NoError(t, err)

	pricer, err := pricing.NewCalculator(pricing.DefaultTaxRate)
	require.NoError(t, err)

	immediate := func(time.Duration) <-chan time.Time {
		ch := make(chan time.Time, 1)
		ch <- time.Now()
		return ch
	}
	return &fixture{
		catalog: catalog,
		bus:     bus,
		cart:    store,
		pay:     payment.NewSimulator(store, payment.FixedDecider(outcome), payment.WithAfter(immediate)),
		pricer:  pricer,
	}
}

func cardIDs(cards []Card) []int {
	out := make([]int, len(cards))
	for i, c := range cards {
		out[i] = c.ID
	}
	return out
}

// --- Tests ---

func TestMoney(t *testing.T) {
	assert.Equal(t, "R499", Money(decimal.NewFromInt(499)))
	assert.Equal(t, "R209.70", Money(decimal.RequireFromString("209.7")))
	assert.Equal(t, "R0", Money(decimal.Zero))
	assert.Equal(t, "R1607.70", Money(decimal.RequireFromString("1607.70")))
}

func TestStars(t *testing.T) {
	assert.Equal(t, "★★★★☆", Stars(4))
	assert.Equal(t, "★★★★★", Stars(7))
	assert.Equal(t, "☆☆☆☆☆", Stars(-1))
}

func TestCatalogPage_Listing(t *testing.T) {
	f := newFixture(t, payment.OutcomeSucceeded)
	p := NewCatalogPage(f.catalog, f.cart, f.bus)
	defer p.Close()

	l := p.Listing()
	assert.Equal(t, []int{1, 2, 3}, cardIDs(l.Cards))
	assert.Equal(t, "all", l.Level)
	assert.False(t, l.Empty)

	first := l.Cards[0]
	assert.Equal(t, []string{"Market basics", "Risk management", "Chart reading"}, first.Features)
	assert.Equal(t, 1, first.MoreFeatures)
	assert.Equal(t, "R499", first.PriceLabel)
	assert.Equal(t, "Beginner", first.LevelLabel)
}

func TestCatalogPage_FilterAndSearch(t *testing.T) {
	f := newFixture(t, payment.OutcomeSucceeded)
	p := NewCatalogPage(f.catalog, f.cart, f.bus)
	defer p.Close()

	p.Filter("Advanced")
	assert.Equal(t, []int{3}, cardIDs(p.Listing().Cards))

	p.Filter("all")
	p.Search("risk")
	assert.Equal(t, []int{1, 3}, cardIDs(p.Listing().Cards))

	p.Filter("beginner")
	assert.Equal(t, []int{1}, cardIDs(p.Listing().Cards), "filter and query combine")

	p.Filter("guru")
	l := p.Listing()
	assert.Empty(t, l.Cards)
	assert.True(t, l.Empty)

	p.Filter("")
	p.Search("  ")
	assert.Equal(t, []int{1, 2, 3}, cardIDs(p.Listing().Cards))
}

func TestCatalogPage_BadgeFollowsCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, payment.OutcomeSucceeded)
	catalogPage := NewCatalogPage(f.catalog, f.cart, f.bus)
	cartPage := NewCartPage(f.cart, f.bus)
	defer cartPage.Close()

	require.NoError(t, catalogPage.AddToCart(ctx, 1))
	require.ErrorIs(t, catalogPage.AddToCart(ctx, 1), cart.ErrAlreadyInCart)
	require.NoError(t, catalogPage.AddToCart(ctx, 2))

	assert.Equal(t, 2, catalogPage.Badge())
	assert.Equal(t, 2, cartPage.Badge())
	assert.Equal(t, 2, catalogPage.Refreshes(), "one refresh per successful mutation")
	assert.True(t, catalogPage.Listing().Cards[0].InCart)

	catalogPage.Close()
	catalogPage.Close()
	require.NoError(t, cartPage.Remove(ctx, 0))
	assert.Equal(t, 2, catalogPage.Badge(), "closed page stops refreshing")
	assert.Equal(t, 1, cartPage.Badge())
	assert.Equal(t, 1, f.bus.Len())
}

func TestCoursePage_Show(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, payment.OutcomeSucceeded)
	p := NewCoursePage(f.catalog, f.cart, f.bus)
	defer p.Close()

	for _, raw := range []string{"", "abc", " "} {
		d, err := p.Show(raw)
		require.NoError(t, err)
		assert.Equal(t, 1, d.ID, "raw %q defaults to the first course", raw)
	}

	d, err := p.Show("1")
	require.NoError(t, err)
	require.Len(t, d.Curriculum, 2)
	assert.True(t, d.Curriculum[0].Expanded)
	assert.False(t, d.Curriculum[1].Expanded)
	assert.Equal(t, 2, d.Curriculum[1].Number)
	require.Len(t, d.Reviews, 1)
	assert.Equal(t, "★★★★☆", d.Reviews[0].Stars)
	assert.Equal(t, "2025-01-15", d.Reviews[0].Date)
	assert.Equal(t, "2025-01-01", d.LastUpdated)
	assert.Empty(t, d.NextUpdate)
	assert.Len(t, d.AllFeatures, 4)
	assert.Equal(t, []int{2, 3}, cardIDs(d.Related))
	assert.False(t, d.InCart)

	require.NoError(t, p.AddToCart(ctx, 3))
	d, err = p.Show("3")
	require.NoError(t, err)
	assert.True(t, d.InCart)
	assert.Equal(t, 1, d.Badge)

	_, err = p.ShowID(42)
	require.ErrorIs(t, err, course.ErrNotFound)
	d, err = p.ShowID(2)
	require.NoError(t, err)
	assert.Equal(t, 2, d.ID)
}

func TestCoursePage_Resolve(t *testing.T) {
	f := newFixture(t, payment.OutcomeSucceeded)
	p := NewCoursePage(f.catalog, f.cart, f.bus)
	defer p.Close()

	tests := []struct {
		raw  string
		want int
	}{
		{raw: "", want: 1},
		{raw: "abc", want: 1},
		{raw: "2", want: 2},
		{raw: " 3", want: 3},
		{raw: "2abc", want: 2},
		{raw: "3.9", want: 3},
		{raw: "0", want: 1},
		{raw: "42", want: 1},
		{raw: "-2", want: 1},
		{raw: "+2", want: 2},
		{raw: "99999999999999999999999", want: 1},
	}
	for _, tt := range tests {
		c, err := p.Resolve(tt.raw)
		require.NoError(t, err, "raw %q", tt.raw)
		assert.Equal(t, tt.want, c.ID, "raw %q", tt.raw)
	}
}

func TestCartPage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, payment.OutcomeSucceeded)
	p := NewCartPage(f.cart, f.bus)
	defer p.Close()

	v := p.View()
	assert.True(t, v.Empty)
	assert.Equal(t, "R0", v.TotalLabel)
	require.ErrorIs(t, p.Checkout(), payment.ErrEmptyCart)

	for _, id := range []int{1, 2, 3} {
		require.NoError(t, f.cart.Add(ctx, id))
	}
	require.NoError(t, p.Remove(ctx, 1))

	v = p.View()
	require.Len(t, v.Lines, 2)
	assert.Equal(t, 0, v.Lines[0].Index)
	assert.Equal(t, 3, v.Lines[1].ID)
	assert.Equal(t, 1, v.Lines[1].Index)
	assert.Equal(t, "R1998", v.TotalLabel)
	assert.Equal(t, 2, v.Badge)
	require.NoError(t, p.Checkout())

	require.ErrorIs(t, p.UpdateQuantity(0, 1), cart.ErrQuantityFixed)
	var oor *cart.IndexOutOfRangeError
	require.ErrorAs(t, p.Remove(ctx, 9), &oor)
}

func TestCheckoutPage_Succeeded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, payment.OutcomeSucceeded)
	p := NewCheckoutPage(f.cart, f.bus, f.pricer, f.pay)
	defer p.Close()

	require.NoError(t, f.cart.Add(ctx, 1))
	require.NoError(t, f.cart.Add(ctx, 2))

	s := p.Summary()
	assert.Equal(t, "R1398", s.SubtotalLabel)
	assert.Equal(t, "R209.70", s.TaxLabel)
	assert.Equal(t, "R1607.70", s.TotalLabel)

	st := p.Status()
	assert.Equal(t, "idle", st.Phase)
	assert.False(t, st.CanSubmit)
	require.Len(t, st.Methods, 2)

	_, err := p.SelectMethod("stripe")
	require.NoError(t, err)
	st = p.Status()
	assert.True(t, st.CanSubmit)
	assert.True(t, st.Methods[0].Selected)

	before := p.Refreshes()
	results, err := p.Submit(ctx)
	require.NoError(t, err)
	r := <-results
	require.NoError(t, r.Err)

	v := p.View()
	assert.Equal(t, "succeeded", v.Payment.Phase)
	assert.True(t, v.Summary.Empty)
	assert.Zero(t, v.Badge)
	assert.Equal(t, before+1, p.Refreshes(), "successful payment publishes exactly once")
}

func TestCheckoutPage_Failed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, payment.OutcomeFailed)
	p := NewCheckoutPage(f.cart, f.bus, f.pricer, f.pay)
	defer p.Close()

	require.NoError(t, f.cart.Add(ctx, 1))
	_, err := p.SelectMethod("payfast")
	require.NoError(t, err)

	results, err := p.Submit(ctx)
	require.NoError(t, err)
	r := <-results
	require.ErrorIs(t, r.Err, payment.ErrPaymentFailed)

	v := p.View()
	assert.Equal(t, "failed", v.Payment.Phase)
	assert.True(t, v.Payment.CanSubmit)
	assert.Equal(t, payment.MethodPayFast, v.Payment.Method)
	assert.Len(t, v.Summary.Lines, 1)
	assert.Equal(t, 1, v.Badge)
}

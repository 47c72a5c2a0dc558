// Package session binds one cart, one change bus, one payment simulator and
// the four pages into a session, and manages sessions by id.
package session

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/xenking/trading-academy/internal/domain/cart"
	"github.com/xenking/trading-academy/internal/domain/payment"
	"github.com/xenking/trading-academy/internal/event"
	"github.com/xenking/trading-academy/internal/view"
)

// Session is the server-side stand-in for one browser: everything the pages
// of one visitor share.
type Session struct {
	ID  string
	Key string

	Bus      *event.Bus
	Cart     *cart.Store
	Payments *payment.Simulator

	Catalog  *view.CatalogPage
	Course   *view.CoursePage
	CartPage *view.CartPage
	Checkout *view.CheckoutPage

	lastSeen atomic.Int64
}

// Key returns the cart storage key of a session id. The empty id is the
// default session stored under cart.DefaultKey.
func Key(id string) string {
	if id == "" {
		return cart.DefaultKey
	}
	return cart.DefaultKey + ":" + id
}

func (s *Session) touch(now time.Time) { s.lastSeen.Store(now.UnixNano()) }

// LastSeen returns when the session was last returned by Manager.Get.
func (s *Session) LastSeen() time.Time { return time.Unix(0, s.lastSeen.Load()) }

// Busy reports whether a payment attempt is processing.
func (s *Session) Busy() bool {
	return s.Payments.State().Phase == payment.PhaseProcessing
}

// Refresh reloads the cart from storage and notifies the pages. It is called
// when another instance changed the same key.
func (s *Session) Refresh(ctx context.Context) error {
	if err := s.Cart.Reload(ctx); err != nil {
		return err
	}
	s.Bus.Notify(ctx)
	return nil
}

// Close detaches the pages from the bus.
func (s *Session) Close() {
	s.Catalog.Close()
	s.Course.Close()
	s.CartPage.Close()
	s.Checkout.Close()
}

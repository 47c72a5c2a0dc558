// Package handler exposes the page view models and actions over JSON HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/xenking/trading-academy/internal/domain/order"
	"github.com/xenking/trading-academy/internal/session"
)

// SessionHeader selects the session of a request. Requests without it use
// the default session.
const SessionHeader = "X-Session-ID"

// Sessions resolves session ids.
type Sessions interface {
	Get(ctx context.Context, id string) (*session.Session, error)
}

var _ Sessions = (*session.Manager)(nil)

// Handler serves the /api routes.
type Handler struct {
	sessions Sessions
	orders   *order.Service
}

// NewHandler constructs a Handler with the required domain dependencies.
// orders may be nil, in which case order history is unavailable.
func NewHandler(sessions Sessions, orders *order.Service) *Handler {
	return &Handler{
		sessions: sessions,
		orders:   orders,
	}
}

// Register adds the API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/courses", h.ListCourses)
	mux.HandleFunc("GET /api/courses/{id}", h.GetCourse)
	mux.HandleFunc("GET /api/course", h.ShowCourse)

	mux.HandleFunc("GET /api/cart", h.GetCart)
	mux.HandleFunc("POST /api/cart/items", h.AddCartItem)
	mux.HandleFunc("DELETE /api/cart/items/{index}", h.RemoveCartItem)
	mux.HandleFunc("PATCH /api/cart/items/{index}", h.UpdateCartItem)
	mux.HandleFunc("DELETE /api/cart", h.ClearCart)

	mux.HandleFunc("GET /api/checkout", h.GetCheckout)
	mux.HandleFunc("PUT /api/checkout/method", h.SelectMethod)
	mux.HandleFunc("POST /api/checkout/submit", h.SubmitPayment)

	mux.HandleFunc("GET /api/orders", h.ListOrders)
}

func (h *Handler) session(r *http.Request) (*session.Session, error) {
	return h.sessions.Get(r.Context(), r.Header.Get(SessionHeader))
}

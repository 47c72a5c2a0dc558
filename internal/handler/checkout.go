package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// GetCheckout serves the checkout page. Clients poll it while a payment is
// processing.
func (h *Handler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, encodeCheckout(s.Checkout.View()))
}

// SelectMethod chooses {"method": "stripe"|"payfast"}.
func (h *Handler) SelectMethod(w http.ResponseWriter, r *http.Request) {
	var method string
	if err := decodeBody(r, func(d *jx.Decoder, key string) error {
		if key != "method" {
			return d.Skip()
		}
		v, err := d.Str()
		method = v
		return err
	}); err != nil {
		writeError(w, r, err)
		return
	}

	s, err := h.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := s.Checkout.SelectMethod(method); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, encodeCheckout(s.Checkout.View()))
}

// SubmitPayment starts a payment attempt and answers 202 with the
// processing state. The attempt outlives the request.
func (h *Handler) SubmitPayment(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := s.Checkout.Submit(context.WithoutCancel(r.Context())); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, encodeCheckout(s.Checkout.View()))
}

// ListOrders returns the session's recorded orders, newest first.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	if h.orders == nil {
		writeError(w, r, errors.New("order history is not configured"))
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			writeError(w, r, errors.Wrapf(errBadRequest, "invalid limit %q", raw))
			return
		}
		limit = v
	}

	s, err := h.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	orders, err := h.orders.History(r.Context(), s.Key, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, encodeOrders(orders))
}

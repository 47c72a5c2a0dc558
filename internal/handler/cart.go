package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// GetCart serves the cart page.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, encodeCart(s.CartPage.View()))
}

// AddCartItem adds {"courseId": n} to the cart.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	id := -1
	if err := decodeBody(r, func(d *jx.Decoder, key string) error {
		if key != "courseId" {
			return d.Skip()
		}
		v, err := d.Int()
		id = v
		return err
	}); err != nil {
		writeError(w, r, err)
		return
	}
	if id < 0 {
		writeError(w, r, errors.Wrap(errBadRequest, "courseId is required"))
		return
	}

	s, err := h.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.Catalog.AddToCart(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, encodeCart(s.CartPage.View()))
}

// RemoveCartItem removes the line at the index in the path.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	index, err := pathIndex(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s, err := h.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.CartPage.Remove(r.Context(), index); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, encodeCart(s.CartPage.View()))
}

// UpdateCartItem accepts {"delta": n}. Quantities are fixed at one, so a
// valid line always answers 422.
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	index, err := pathIndex(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var delta int
	if err := decodeBody(r, func(d *jx.Decoder, key string) error {
		if key != "delta" {
			return d.Skip()
		}
		v, err := d.Int()
		delta = v
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
	if err := s.CartPage.UpdateQuantity(index, delta); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, encodeCart(s.CartPage.View()))
}

// ClearCart empties the cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.Cart.Clear(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, encodeCart(s.CartPage.View()))
}

func pathIndex(r *http.Request) (int, error) {
	raw := r.PathValue("index")
	index, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Wrapf(errBadRequest, "invalid index %q", raw)
	}
	return index, nil
}

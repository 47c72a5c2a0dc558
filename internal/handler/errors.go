package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/trading-academy/internal/domain/cart"
	"github.com/xenking/trading-academy/internal/domain/course"
	"github.com/xenking/trading-academy/internal/domain/payment"
	"github.com/xenking/trading-academy/internal/session"
)

// errBadRequest marks malformed request bodies and parameters.
var errBadRequest = errors.New("bad request")

// statusOf maps domain errors to HTTP status codes. Unknown errors are 500.
func statusOf(err error) int {
	var oor *cart.IndexOutOfRangeError
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, session.ErrInvalidID):
		return http.StatusBadRequest
	case errors.Is(err, course.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, cart.ErrAlreadyInCart), errors.Is(err, payment.ErrPaymentInProgress):
		return http.StatusConflict
	case errors.As(err, &oor),
		errors.Is(err, cart.ErrQuantityFixed),
		errors.Is(err, payment.ErrInvalidMethod),
		errors.Is(err, payment.ErrEmptyCart),
		errors.Is(err, payment.ErrNoMethodSelected):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes {code, message}. Internal errors are logged and their
// message is not exposed.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusOf(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		msg = http.StatusText(code)
	}
	writeJSON(w, code, encodeError(code, msg))
}

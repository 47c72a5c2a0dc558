package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/trading-academy/internal/domain/course"
	"github.com/xenking/trading-academy/internal/domain/order"
	"github.com/xenking/trading-academy/internal/domain/payment"
	"github.com/xenking/trading-academy/internal/session"
	"github.com/xenking/trading-academy/internal/storage/memory"
	"github.com/xenking/trading-academy/internal/storage/static"
)

func immediate(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}

type testServer struct {
	mux *http.ServeMux
}

func newTestServer(t *testing.T, outcome payment.Outcome) *testServer {
	t.Helper()
	repo, err := static.NewSeedRepository()
	require.NoError(t, err)
	catalog, err := course.LoadCatalog(context.Background(), repo)
	require.NoError(t, err)

	orders := order.NewService(memory.NewOrderRepository(), nil)
	m := session.NewManager(session.Config{
		Catalog:        catalog,
		Storage:        memory.NewCartStorage(),
		Orders:         orders,
		Decider:        payment.FixedDecider(outcome),
		PaymentOptions: []payment.Option{payment.WithAfter(immediate)},
	})

	mux := http.NewServeMux()
	NewHandler(m, orders).Register(mux)
	return &testServer{mux: mux}
}

func (s *testServer) do(t *testing.T, method, target, body string) (int, jx.Raw) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	req.Header.Set(SessionHeader, "test")
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	return rec.Code, jx.Raw(rec.Body.Bytes())
}

// field extracts a top-level string or number as text.
func field(t *testing.T, raw jx.Raw, name string) string {
	t.Helper()
	var out string
	require.NoError(t, jx.DecodeBytes(raw).ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != name {
			return d.Skip()
		}
		switch d.Next() {
		case jx.String:
			v, err := d.Str()
			out = v
			return err
		default:
			v, err := d.Raw()
			out = v.String()
			return err
		}
	}))
	return out
}

func count(t *testing.T, raw jx.Raw, name string) int {
	t.Helper()
	n := 0
	require.NoError(t, jx.DecodeBytes(raw).ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != name {
			return d.Skip()
		}
		return d.Arr(func(d *jx.Decoder) error {
			n++
			return d.Skip()
		})
	}))
	return n
}

func TestHandler_ListCourses(t *testing.T) {
	s := newTestServer(t, payment.OutcomeSucceeded)

	code, body := s.do(t, http.MethodGet, "/api/courses", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 3, count(t, body, "courses"))
	assert.Equal(t, "all", field(t, body, "level"))

	code, body = s.do(t, http.MethodGet, "/api/courses?level=advanced", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, count(t, body, "courses"))

	// The filter sticks to the session until changed.
	_, body = s.do(t, http.MethodGet, "/api/courses?q=zzz-no-match", "")
	assert.Equal(t, "advanced", field(t, body, "level"))
	assert.Equal(t, "true", field(t, body, "empty"))
}

func TestHandler_Course(t *testing.T) {
	s := newTestServer(t, payment.OutcomeSucceeded)

	tests := []struct {
		name   string
		target string
		code   int
		id     string
	}{
		{"by path", "/api/courses/2", http.StatusOK, "2"},
		{"unknown path id", "/api/courses/42", http.StatusNotFound, ""},
		{"non-numeric path id", "/api/courses/abc", http.StatusNotFound, ""},
		{"query", "/api/course?course=3", http.StatusOK, "3"},
		{"no query", "/api/course", http.StatusOK, "1"},
		{"non-numeric query", "/api/course?course=abc", http.StatusOK, "1"},
		{"unknown query", "/api/course?course=9", http.StatusOK, "1"},
		{"zero query", "/api/course?course=0", http.StatusOK, "1"},
		{"numeric prefix query", "/api/course?course=2abc", http.StatusOK, "2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := s.do(t, http.MethodGet, tt.target, "")
			require.Equal(t, tt.code, code)
			if tt.id != "" {
				assert.Equal(t, tt.id, field(t, body, "id"))
				assert.Equal(t, 3, count(t, body, "curriculum"))
			} else {
				assert.Equal(t, "404", field(t, body, "code"))
			}
		})
	}
}

func TestHandler_Cart(t *testing.T) {
	s := newTestServer(t, payment.OutcomeSucceeded)

	code, body := s.do(t, http.MethodPost, "/api/cart/items", `{"courseId":1}`)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "1", field(t, body, "badge"))

	code, _ = s.do(t, http.MethodPost, "/api/cart/items", `{"courseId":1}`)
	assert.Equal(t, http.StatusConflict, code)

	code, body = s.do(t, http.MethodPost, "/api/cart/items", `{"courseId":2}`)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "1398", field(t, body, "total"))
	assert.Equal(t, "R1398", field(t, body, "totalLabel"))

	code, _ = s.do(t, http.MethodPost, "/api/cart/items", `{"courseId":99}`)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(t, http.MethodPost, "/api/cart/items", `{"courseId":"one"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodPost, "/api/cart/items", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodPatch, "/api/cart/items/0", `{"delta":1}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, _ = s.do(t, http.MethodDelete, "/api/cart/items/5", "")
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, _ = s.do(t, http.MethodDelete, "/api/cart/items/x", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = s.do(t, http.MethodDelete, "/api/cart/items/0", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, count(t, body, "lines"))
	assert.Equal(t, "899", field(t, body, "total"))

	code, body = s.do(t, http.MethodDelete, "/api/cart", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "true", field(t, body, "empty"))
}

func TestHandler_Checkout(t *testing.T) {
	s := newTestServer(t, payment.OutcomeSucceeded)

	code, _ := s.do(t, http.MethodPost, "/api/checkout/submit", "")
	assert.Equal(t, http.StatusUnprocessableEntity, code, "empty cart")

	code, _ = s.do(t, http.MethodPost, "/api/cart/items", `{"courseId":1}`)
	require.Equal(t, http.StatusCreated, code)

	code, _ = s.do(t, http.MethodPost, "/api/checkout/submit", "")
	assert.Equal(t, http.StatusUnprocessableEntity, code, "no method")

	code, _ = s.do(t, http.MethodPut, "/api/checkout/method", `{"method":"cash"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, _ = s.do(t, http.MethodPut, "/api/checkout/method", `{"method":"stripe"}`)
	require.Equal(t, http.StatusOK, code)

	code, _ = s.do(t, http.MethodPost, "/api/checkout/submit", "")
	require.Equal(t, http.StatusAccepted, code)

	assert.Eventually(t, func() bool {
		_, body := s.do(t, http.MethodGet, "/api/checkout", "")
		return strings.Contains(string(body), `"phase":"succeeded"`)
	}, time.Second, 5*time.Millisecond)

	_, body := s.do(t, http.MethodGet, "/api/cart", "")
	assert.Equal(t, "true", field(t, body, "empty"))

	_, body = s.do(t, http.MethodGet, "/api/orders", "")
	orders := 0
	require.NoError(t, jx.DecodeBytes(body).Arr(func(d *jx.Decoder) error {
		orders++
		return d.Skip()
	}))
	assert.Equal(t, 1, orders)
	assert.Contains(t, string(body), `"total":573.85`)
	assert.Contains(t, string(body), `"status":"completed"`)
}

func TestHandler_CheckoutFailed(t *testing.T) {
	s := newTestServer(t, payment.OutcomeFailed)

	s.do(t, http.MethodPost, "/api/cart/items", `{"courseId":3}`)
	s.do(t, http.MethodPut, "/api/checkout/method", `{"method":"payfast"}`)
	code, _ := s.do(t, http.MethodPost, "/api/checkout/submit", "")
	require.Equal(t, http.StatusAccepted, code)

	var body jx.Raw
	require.Eventually(t, func() bool {
		_, body = s.do(t, http.MethodGet, "/api/checkout", "")
		return strings.Contains(string(body), `"phase":"failed"`)
	}, time.Second, 5*time.Millisecond)
	assert.Contains(t, string(body), `"canSubmit":true`)
	assert.Contains(t, string(body), "Payment failed. Please try again.")

	_, cart := s.do(t, http.MethodGet, "/api/cart", "")
	assert.Equal(t, "false", field(t, cart, "empty"))
}

func TestHandler_InvalidSession(t *testing.T) {
	s := newTestServer(t, payment.OutcomeSucceeded)

	req := httptest.NewRequest(http.MethodGet, "/api/cart", http.NoBody)
	req.Header.Set(SessionHeader, "has space")
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

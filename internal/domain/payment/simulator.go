package payment

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/trading-academy/internal/domain/cart"
	"github.com/xenking/trading-academy/internal/domain/order"
)

// DefaultDelay is how long an attempt stays in PhaseProcessing.
const DefaultDelay = 2 * time.Second

// Cart is the part of the cart store the simulator needs.
type Cart interface {
	List() []cart.LineItem
	RemoveCourses(ctx context.Context, ids ...int) error
}

// Recorder stores terminal attempts.
type Recorder interface {
	Record(ctx context.Context, req order.RecordRequest) (*order.Order, error)
}

// Simulator drives one session through select, submit and a terminal outcome.
// The courses of an attempt leave the cart if and only if the outcome is
// OutcomeSucceeded. Courses added while it was processing stay.
type Simulator struct {
	session string
	cart    Cart
	decider Decider
	orders  Recorder
	delay   time.Duration
	after   func(time.Duration) <-chan time.Time
	lg      *zap.Logger
	tracer  trace.Tracer

	outcomes metric.Int64Counter

	mu    sync.Mutex
	state State
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithDelay sets the processing delay.
func WithDelay(d time.Duration) Option {
	return func(s *Simulator) { s.delay = d }
}

// WithAfter replaces time.After, mainly for tests.
func WithAfter(after func(time.Duration) <-chan time.Time) Option {
	return func(s *Simulator) { s.after = after }
}

// WithRecorder records every terminal attempt.
func WithRecorder(r Recorder) Option {
	return func(s *Simulator) { s.orders = r }
}

// WithSession names the session in recorded orders.
func WithSession(session string) Option {
	return func(s *Simulator) { s.session = session }
}

// WithLogger sets the logger.
func WithLogger(lg *zap.Logger) Option {
	return func(s *Simulator) { s.lg = lg }
}

// WithTelemetry traces attempts on tp and counts outcomes on mp.
func WithTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) Option {
	return func(s *Simulator) {
		if tp != nil {
			s.tracer = tp.Tracer("github.com/xenking/trading-academy/internal/domain/payment")
		}
		if mp == nil {
			return
		}
		c, err := mp.Meter("github.com/xenking/trading-academy/internal/domain/payment").Int64Counter(
			"academy.payment.outcomes",
			metric.WithDescription("Terminal payment attempts by outcome and method"),
		)
		if err == nil {
			s.outcomes = c
		}
	}
}

// NewSimulator returns a Simulator in PhaseIdle.
func NewSimulator(c Cart, decider Decider, opts ...Option) *Simulator {
	s := &Simulator{
		cart:    c,
		decider: decider,
		delay:   DefaultDelay,
		after:   time.After,
		lg:      zap.NewNop(),
		tracer:  tracenoop.NewTracerProvider().Tracer(""),
	}
	s.outcomes, _ = metricnoop.NewMeterProvider().Meter("").Int64Counter("")
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns a snapshot of the simulator.
func (s *Simulator) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SelectMethod validates method and moves to PhaseSelecting. It is rejected
// only while an attempt is processing; selecting after a terminal outcome
// starts a new checkout.
func (s *Simulator) SelectMethod(method string) (Method, error) {
	m, err := ParseMethod(method)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Phase == PhaseProcessing {
		return "", ErrPaymentInProgress
	}
	s.state = State{Phase: PhaseSelecting, Method: m, Order: s.state.Order}
	return m, nil
}

// Submit starts an attempt for the current cart. Validation errors are
// returned synchronously and leave the state unchanged. On success the
// simulator is in PhaseProcessing and the returned channel delivers exactly
// one Result once the attempt resolves.
//
// Cancelling ctx during the delay abandons the attempt and returns to
// PhaseSelecting with the same method.
func (s *Simulator) Submit(ctx context.Context) (<-chan Result, error) {
	s.mu.Lock()
	if s.state.Phase == PhaseProcessing {
		s.mu.Unlock()
		return nil, ErrPaymentInProgress
	}
	items := s.cart.List()
	if len(items) == 0 {
		s.mu.Unlock()
		return nil, ErrEmptyCart
	}
	if s.state.Phase == PhaseIdle || s.state.Phase == PhaseSucceeded {
		s.mu.Unlock()
		return nil, ErrNoMethodSelected
	}
	method := s.state.Method
	s.state = State{Phase: PhaseProcessing, Method: method, Order: s.state.Order}
	s.mu.Unlock()

	results := make(chan Result, 1)
	go s.process(ctx, method, items, results)
	return results, nil
}

func (s *Simulator) process(ctx context.Context, method Method, items []cart.LineItem, results chan<- Result) {
	defer close(results)

	ctx, span := s.tracer.Start(ctx, "payment.Process",
		trace.WithAttributes(
			attribute.String("payment.method", string(method)),
			attribute.Int("cart.items", len(items)),
		),
	)
	defer span.End()

	select {
	case <-ctx.Done():
		s.mu.Lock()
		s.state = State{Phase: PhaseSelecting, Method: method, Order: s.state.Order}
		s.mu.Unlock()
		span.SetStatus(codes.Error, "cancelled")
		results <- Result{Outcome: OutcomeFailed, Err: ctx.Err()}
		return
	case <-s.after(s.delay):
	}

	outcome := s.decider.Decide(ctx)
	var attemptErr error
	switch outcome {
	case OutcomeSucceeded:
		ids := make([]int, len(items))
		for i := range items {
			ids[i] = items[i].ID
		}
		if err := s.cart.RemoveCourses(ctx, ids...); err != nil {
			outcome = OutcomeFailed
			attemptErr = errors.Wrap(err, "remove paid courses")
		}
	default:
		attemptErr = ErrPaymentFailed
	}

	rec := s.record(ctx, method, items, outcome)

	next := State{Method: method, Order: rec}
	if outcome == OutcomeSucceeded {
		next.Phase = PhaseSucceeded
	} else {
		next.Phase = PhaseFailed
		next.Err = attemptErr
		span.RecordError(attemptErr)
		span.SetStatus(codes.Error, attemptErr.Error())
	}
	s.mu.Lock()
	if rec == nil {
		next.Order = s.state.Order
	}
	s.state = next
	s.mu.Unlock()

	s.outcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome.String()),
		attribute.String("method", string(method)),
	))
	s.lg.Info("Payment attempt resolved",
		zap.String("session", s.session),
		zap.String("method", string(method)),
		zap.Stringer("outcome", outcome),
		zap.Int("items", len(items)),
	)

	results <- Result{Outcome: outcome, Order: rec, Err: attemptErr}
}

// record stores the attempt. Failures are logged: the outcome stands either way.
func (s *Simulator) record(ctx context.Context, method Method, items []cart.LineItem, outcome Outcome) *order.Order {
	if s.orders == nil {
		return nil
	}

	req := order.RecordRequest{
		Session:  s.session,
		Items:    make([]order.Item, len(items)),
		Currency: "ZAR",
		Method:   string(method),
		Status:   order.StatusCompleted,
	}
	if outcome != OutcomeSucceeded {
		req.Status = order.StatusFailed
	}
	for i, it := range items {
		req.Items[i] = order.Item{CourseID: it.ID, Title: it.Title, Price: it.Price}
		if it.Currency != "" {
			req.Currency = it.Currency
		}
	}

	o, err := s.orders.Record(ctx, req)
	if err != nil {
		s.lg.Error("Failed to record order",
			zap.String("session", s.session),
			zap.Error(err),
		)
		return nil
	}
	return o
}

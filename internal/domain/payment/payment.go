// Package payment simulates the checkout payment flow.
package payment

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/go-faster/errors"

	"github.com/xenking/trading-academy/internal/domain/order"
)

var (
	// ErrInvalidMethod is returned by SelectMethod for an unknown method.
	ErrInvalidMethod = errors.New("invalid payment method")
	// ErrNoMethodSelected is returned by Submit before a method is selected.
	ErrNoMethodSelected = errors.New("no payment method selected")
	// ErrEmptyCart is returned by Submit when there is nothing to pay for.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrPaymentFailed is the error of a failed attempt.
	ErrPaymentFailed = errors.New("payment processing failed")
	// ErrPaymentInProgress is returned while an attempt is processing.
	ErrPaymentInProgress = errors.New("payment already in progress")
)

// Method is a supported payment provider.
type Method string

const (
	MethodStripe  Method = "stripe"
	MethodPayFast Method = "payfast"
)

// Methods lists the supported methods in display order.
var Methods = []Method{MethodStripe, MethodPayFast}

// ParseMethod validates s case-insensitively.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case MethodStripe, MethodPayFast:
		return m, nil
	default:
		return "", errors.Wrapf(ErrInvalidMethod, "%q", s)
	}
}

// Label returns the display name of the method.
func (m Method) Label() string {
	switch m {
	case MethodStripe:
		return "Stripe"
	case MethodPayFast:
		return "PayFast"
	default:
		return string(m)
	}
}

// Phase is the position of the simulator in its state machine.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSelecting
	PhaseProcessing
	PhaseSucceeded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSelecting:
		return "selecting"
	case PhaseProcessing:
		return "processing"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the decision taken at the end of processing.
type Outcome int

const (
	OutcomeSucceeded Outcome = iota
	OutcomeFailed
)

func (o Outcome) String() string {
	if o == OutcomeSucceeded {
		return "succeeded"
	}
	return "failed"
}

// Decider picks the outcome of a payment attempt.
type Decider interface {
	Decide(ctx context.Context) Outcome
}

// FixedDecider always returns the same outcome.
type FixedDecider Outcome

func (f FixedDecider) Decide(context.Context) Outcome { return Outcome(f) }

// DefaultSuccessRate is the share of attempts RandomDecider lets succeed.
const DefaultSuccessRate = 0.9

// RandomDecider succeeds with a fixed probability.
type RandomDecider struct {
	rate float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomDecider returns a decider succeeding with probability rate. A zero
// seed draws a random one.
func NewRandomDecider(rate float64, seed uint64) *RandomDecider {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &RandomDecider{
		rate: rate,
		rng:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (r *RandomDecider) Decide(context.Context) Outcome {
	r.mu.Lock()
	v := r.rng.Float64()
	r.mu.Unlock()
	if v < r.rate {
		return OutcomeSucceeded
	}
	return OutcomeFailed
}

// State is a snapshot of the simulator.
type State struct {
	Phase  Phase
	Method Method
	// Err is set in PhaseFailed.
	Err error
	// Order is the record of the last terminal attempt, if any.
	Order *order.Order
}

// Result is delivered once per submitted attempt.
type Result struct {
	Outcome Outcome
	Order   *order.Order
	// Err is ErrPaymentFailed for a declined attempt, the cause for an
	// attempt that could not complete, or the context error if cancelled.
	Err error
}

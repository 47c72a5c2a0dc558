package session

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xenking/trading-academy/internal/domain/cart"
	"github.com/xenking/trading-academy/internal/domain/course"
	"github.com/xenking/trading-academy/internal/domain/order"
	"github.com/xenking/trading-academy/internal/domain/payment"
	"github.com/xenking/trading-academy/internal/domain/pricing"
	"github.com/xenking/trading-academy/internal/event"
	"github.com/xenking/trading-academy/internal/view"
)

// MaxIDLength is the longest accepted session id.
const MaxIDLength = 64

// ErrInvalidID is returned for session ids that are too long or contain
// whitespace or non-printable characters.
var ErrInvalidID = errors.New("invalid session id")

// ValidateID accepts the empty id and up to MaxIDLength printable ASCII
// characters other than space.
func ValidateID(id string) error {
	if len(id) > MaxIDLength {
		return errors.Wrapf(ErrInvalidID, "longer than %d characters", MaxIDLength)
	}
	for i := 0; i < len(id); i++ {
		if c := id[i]; c <= ' ' || c > '~' {
			return errors.Wrapf(ErrInvalidID, "character %q at %d", c, i)
		}
	}
	return nil
}

// Broadcaster tells other instances that the cart under key changed.
type Broadcaster interface {
	Broadcast(ctx context.Context, key string) error
}

// Config holds the dependencies shared by every session.
type Config struct {
	Catalog  *course.Catalog
	Storage  cart.Storage
	Orders   *order.Service
	Pricer   *pricing.Calculator
	Decider  payment.Decider
	Logger   *zap.Logger
	TTL      time.Duration
	Interval time.Duration

	// Broadcaster is optional.
	Broadcaster Broadcaster
	// CartOptions and PaymentOptions are applied to every new session.
	CartOptions    []cart.Option
	PaymentOptions []payment.Option
}

// Manager creates sessions on first use and evicts idle ones.
type Manager struct {
	cfg   Config
	lg    *zap.Logger
	now   func() time.Time
	group singleflight.Group

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager returns a Manager. Zero TTL and Interval default to 30 and 1
// minutes.
func NewManager(cfg Config) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Minute
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Pricer == nil {
		cfg.Pricer, _ = pricing.NewCalculator(pricing.DefaultTaxRate)
	}
	if cfg.Decider == nil {
		cfg.Decider = payment.NewRandomDecider(payment.DefaultSuccessRate, 0)
	}
	return &Manager{
		cfg:      cfg,
		lg:       cfg.Logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Get returns the session with id, building it and loading its cart on first
// use. Sessions are touched under the lock Evict takes, so a session returned
// here is never one Evict has already dropped.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	if s, ok := m.lookup(id); ok {
		return s, nil
	}

	v, err, _ := m.group.Do(id, func() (any, error) {
		if existing, ok := m.lookup(id); ok {
			return existing, nil
		}

		created, err := m.build(ctx, id)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		created.touch(m.now())
		m.sessions[id] = created
		m.mu.Unlock()
		m.lg.Debug("Session created", zap.String("session", created.Key))
		return created, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

func (m *Manager) lookup(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if ok {
		s.touch(m.now())
	}
	return s, ok
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Refresh reloads the session stored under key, if it is live here.
func (m *Manager) Refresh(ctx context.Context, key string) error {
	m.mu.RLock()
	var target *Session
	for _, s := range m.sessions {
		if s.Key == key {
			target = s
			break
		}
	}
	m.mu.RUnlock()
	if target == nil {
		return nil
	}
	return target.Refresh(ctx)
}

// Evict closes and drops sessions idle for longer than the TTL. Sessions with
// a payment in progress are kept.
func (m *Manager) Evict() int {
	deadline := m.now().Add(-m.cfg.TTL)

	m.mu.Lock()
	var evicted []*Session
	for id, s := range m.sessions {
		if s.LastSeen().Before(deadline) && !s.Busy() {
			delete(m.sessions, id)
			evicted = append(evicted, s)
		}
	}
	m.mu.Unlock()

	for _, s := range evicted {
		s.Close()
	}
	if len(evicted) > 0 {
		m.lg.Debug("Evicted idle sessions", zap.Int("count", len(evicted)))
	}
	return len(evicted)
}

// Run evicts idle sessions every Interval until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Evict()
		}
	}
}

func (m *Manager) build(ctx context.Context, id string) (*Session, error) {
	key := Key(id)
	bus := event.NewBus(m.lg)

	notifier := event.Notifiers{bus}
	if b := m.cfg.Broadcaster; b != nil {
		notifier = append(notifier, event.NotifierFunc(func(ctx context.Context) {
			if err := b.Broadcast(ctx, key); err != nil {
				m.lg.Warn("Broadcast cart change",
					zap.String("key", key),
					zap.Error(err),
				)
			}
		}))
	}

	cartOpts := append([]cart.Option{cart.WithLogger(m.lg)}, m.cfg.CartOptions...)
	store, err := cart.NewStore(ctx, key, m.cfg.Catalog, m.cfg.Storage, notifier, cartOpts...)
	if err != nil {
		return nil, errors.Wrapf(err, "session %q", id)
	}

	payOpts := []payment.Option{
		payment.WithSession(key),
		payment.WithLogger(m.lg),
	}
	if m.cfg.Orders != nil {
		payOpts = append(payOpts, payment.WithRecorder(m.cfg.Orders))
	}
	payOpts = append(payOpts, m.cfg.PaymentOptions...)
	payments := payment.NewSimulator(store, m.cfg.Decider, payOpts...)

	return &Session{
		ID:       id,
		Key:      key,
		Bus:      bus,
		Cart:     store,
		Payments: payments,
		Catalog:  view.NewCatalogPage(m.cfg.Catalog, store, bus),
		Course:   view.NewCoursePage(m.cfg.Catalog, store, bus),
		CartPage: view.NewCartPage(store, bus),
		Checkout: view.NewCheckoutPage(store, bus, m.cfg.Pricer, payments),
	}, nil
}

package cart

import (
	"context"
	"slices"
	"sync"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/xenking/trading-academy/internal/event"
)

// Store is the cart of one session. Every mutation encodes the next state,
// saves it, swaps it in memory and then publishes exactly one notification.
// A failed save leaves the cart unchanged and publishes nothing.
//
// Two Stores sharing a key (for example in separate processes) each hold their
// own copy and the last write wins.
type Store struct {
	key      string
	courses  Courses
	storage  Storage
	notifier event.Notifier
	lg       *zap.Logger

	mutations metric.Int64Counter

	mu    sync.Mutex
	items []LineItem
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for repaired state.
func WithLogger(lg *zap.Logger) Option {
	return func(s *Store) { s.lg = lg }
}

// WithMeter counts successful mutations on m.
func WithMeter(m metric.Meter) Option {
	return func(s *Store) {
		if c, err := m.Int64Counter("academy.cart.mutations",
			metric.WithDescription("Successful cart mutations by operation"),
		); err == nil {
			s.mutations = c
		}
	}
}

// NewStore loads the cart stored under key. Absent or malformed state yields
// an empty cart; only storage failures are returned.
func NewStore(ctx context.Context, key string, courses Courses, storage Storage, notifier event.Notifier, opts ...Option) (*Store, error) {
	s := &Store{
		key:      key,
		courses:  courses,
		storage:  storage,
		notifier: notifier,
		lg:       zap.NewNop(),
	}
	s.mutations, _ = noop.NewMeterProvider().Meter("").Int64Counter("")
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier == nil {
		s.notifier = event.NotifierFunc(func(context.Context) {})
	}

	items, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	s.items = items
	return s, nil
}

// Key returns the storage key of the cart.
func (s *Store) Key() string { return s.key }

// Add appends a snapshot of the course to the cart. It returns
// course.ErrNotFound for an unknown id and ErrAlreadyInCart when the course
// is already present.
func (s *Store) Add(ctx context.Context, courseID int) error {
	c, err := s.courses.Get(courseID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.indexOf(courseID) >= 0 {
		s.mu.Unlock()
		return ErrAlreadyInCart
	}
	next := make([]LineItem, len(s.items), len(s.items)+1)
	copy(next, s.items)
	next = append(next, NewLineItem(c))
	err = s.commitLocked(ctx, next)
	s.mu.Unlock()

	return s.finish(ctx, "add", err)
}

// Remove deletes the item at index, shifting later items left.
func (s *Store) Remove(ctx context.Context, index int) error {
	s.mu.Lock()
	if index < 0 || index >= len(s.items) {
		n := len(s.items)
		s.mu.Unlock()
		return &IndexOutOfRangeError{Index: index, Len: n}
	}
	next := make([]LineItem, 0, len(s.items)-1)
	next = append(next, s.items[:index]...)
	next = append(next, s.items[index+1:]...)
	err := s.commitLocked(ctx, next)
	s.mu.Unlock()

	return s.finish(ctx, "remove", err)
}

// UpdateQuantity validates index and always returns ErrQuantityFixed.
func (s *Store) UpdateQuantity(index, _ int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.items) {
		return &IndexOutOfRangeError{Index: index, Len: len(s.items)}
	}
	return ErrQuantityFixed
}

// Clear empties the cart unconditionally.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	err := s.commitLocked(ctx, []LineItem{})
	s.mu.Unlock()

	return s.finish(ctx, "clear", err)
}

// RemoveCourses drops the listed courses in one commit, keeping the relative
// order of the rest. Ids not in the cart are ignored; the commit and its
// notification happen even if nothing matched.
func (s *Store) RemoveCourses(ctx context.Context, ids ...int) error {
	s.mu.Lock()
	next := make([]LineItem, 0, len(s.items))
	for _, it := range s.items {
		if !slices.Contains(ids, it.ID) {
			next = append(next, it)
		}
	}
	err := s.commitLocked(ctx, next)
	s.mu.Unlock()

	return s.finish(ctx, "remove_courses", err)
}

// List returns a copy of the line items in insertion order.
func (s *Store) List() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]LineItem, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of line items.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Contains reports whether the course is in the cart.
func (s *Store) Contains(courseID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexOf(courseID) >= 0
}

// Total returns the sum of the line item prices.
func (s *Store) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Total(s.items)
}

// Reload replaces the in-memory cart with the stored state. It does not
// publish; callers that learned about a remote change publish themselves.
func (s *Store) Reload(ctx context.Context) error {
	items, err := s.load(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.items = items
	s.mu.Unlock()
	return nil
}

func (s *Store) load(ctx context.Context) ([]LineItem, error) {
	blob, err := s.storage.Load(ctx, s.key)
	if errors.Is(err, ErrNoState) {
		return []LineItem{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load cart %q", s.key)
	}

	items, err := Decode(blob)
	if err != nil {
		s.lg.Warn("Discarding malformed cart state",
			zap.String("key", s.key),
			zap.Error(err),
		)
		return []LineItem{}, nil
	}
	return items, nil
}

// commitLocked persists next and swaps it in. Caller holds s.mu.
func (s *Store) commitLocked(ctx context.Context, next []LineItem) error {
	if err := s.storage.Save(ctx, s.key, Encode(next)); err != nil {
		return errors.Wrapf(err, "save cart %q", s.key)
	}
	s.items = next
	return nil
}

// finish publishes after a successful commit. It runs without s.mu held so
// subscribers can read the cart.
func (s *Store) finish(ctx context.Context, op string, err error) error {
	if err != nil {
		return err
	}
	s.mutations.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
	s.notifier.Notify(ctx)
	return nil
}

func (s *Store) indexOf(courseID int) int {
	for i := range s.items {
		if s.items[i].ID == courseID {
			return i
		}
	}
	return -1
}

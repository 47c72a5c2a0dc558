// Package event provides the payload-free change notification used to tell
// page controllers that cart state has changed. Subscribers re-read the state
// they need themselves.
package event

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Notifier publishes a change notification.
type Notifier interface {
	Notify(ctx context.Context)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context)

// Notify calls f(ctx).
func (f NotifierFunc) Notify(ctx context.Context) { f(ctx) }

// Notifiers fans a notification out to every Notifier in order.
type Notifiers []Notifier

// Notify calls Notify on each element.
func (ns Notifiers) Notify(ctx context.Context) {
	for _, n := range ns {
		n.Notify(ctx)
	}
}

// Bus is an in-process broadcast channel. Publish invokes every subscriber
// synchronously; no ordering between subscribers is guaranteed.
type Bus struct {
	lg *zap.Logger

	mu   sync.RWMutex
	subs map[uint64]func()
	next uint64
}

var _ Notifier = (*Bus)(nil)

// NewBus creates an empty Bus. Panicking subscribers are logged to lg.
func NewBus(lg *zap.Logger) *Bus {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Bus{lg: lg, subs: make(map[uint64]func())}
}

// Subscribe registers fn and returns a function that removes it. The returned
// function is idempotent.
func (b *Bus) Subscribe(fn func()) (unsubscribe func()) {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Publish notifies every current subscriber once.
func (b *Bus) Publish() {
	b.mu.RLock()
	subs := make([]func(), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.RUnlock()

	for _, fn := range subs {
		b.call(fn)
	}
}

// Notify implements Notifier.
func (b *Bus) Notify(context.Context) { b.Publish() }

// Len returns the number of subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Bus) call(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			b.lg.Error("Subscriber panicked", zap.Any("panic", rec), zap.Stack("stack"))
		}
	}()
	fn()
}

package queue

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// Publisher delivers reservation change events.
type Publisher interface {
	Publish(ctx context.Context, ev ReservationChanged) error
}

// Handler reacts to a published event.
type Handler func(ctx context.Context, ev ReservationChanged)

// Bus is an in-process publish/subscribe channel.  Publish calls every
// subscribed handler synchronously in subscription order; a panicking
// handler is logged and does not stop delivery to the others.
type Bus struct {
	mu       sync.RWMutex
	next     int
	handlers map[int]Handler
	order    []int
	logger   *zap.Logger
}

// NewBus returns an empty bus.  A nil logger is replaced by a no-op one.
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{handlers: map[int]Handler{}, logger: logger}
}

// Subscribe registers h and returns a function that removes it.  Calling
// the returned function more than once is harmless.
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.next
	b.next++
	b.handlers[id] = h
	b.order = append(b.order, id)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.handlers, id)
			for i, v := range b.order {
				if v == id {
					b.order = append(b.order[:i], b.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Publish delivers ev to every current subscriber.
func (b *Bus) Publish(ctx context.Context, ev ReservationChanged) error {
	b.mu.RLock()
	hs := make([]Handler, 0, len(b.order))
	for _, id := range b.order {
		hs = append(hs, b.handlers[id])
	}
	b.mu.RUnlock()

	for _, h := range hs {
		b.deliver(ctx, h, ev)
	}
	return nil
}

func (b *Bus) deliver(ctx context.Context, h Handler, ev ReservationChanged) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("reservation event handler panicked",
				zap.Any("recover", r),
				zap.String("kind", string(ev.Kind)),
				zap.String("reservation_id", ev.ReservationID))
		}
	}()
	h(ctx, ev)
}

// MultiPublisher publishes to each publisher in turn and joins the errors.
// Every publisher is attempted even when an earlier one fails.
type MultiPublisher []Publisher

// Publish implements Publisher.
func (m MultiPublisher) Publish(ctx context.Context, ev ReservationChanged) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

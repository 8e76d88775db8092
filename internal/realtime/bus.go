package realtime

import (
	"context"
	"errors"
	"sync"

	"github.com/anonto42/campus-connect/backend/pkg/logger"
)

// Observer reacts to writes on the instance that made them. Each event reaches an observer once.
type Observer interface {
	HandleEvent(ctx context.Context, ev Event) error
}

type ObserverFunc func(ctx context.Context, ev Event) error

func (f ObserverFunc) HandleEvent(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Bus is the write side of the change feed. Publish runs local observers
// before fanning the event out to live subscribers.
type Bus struct {
	feed Feed

	mu        sync.RWMutex
	observers []Observer
}

func NewBus(feed Feed) *Bus {
	return &Bus{feed: feed}
}

func (b *Bus) Observe(o Observer) {
	b.mu.Lock()
	b.observers = append(b.observers, o)
	b.mu.Unlock()
}

// Publish returns the joined observer and feed errors. The write that produced ev has already committed.
func (b *Bus) Publish(ctx context.Context, ev Event) error {
	b.mu.RLock()
	observers := make([]Observer, len(b.observers))
	copy(observers, b.observers)
	b.mu.RUnlock()

	var errs []error
	for _, o := range observers {
		if err := o.HandleEvent(ctx, ev); err != nil {
			logger.Error("Observer failed", "event", ev.Name(), "error", err)
			errs = append(errs, err)
		}
	}
	if err := b.feed.Publish(ctx, ev); err != nil {
		logger.Error("Failed to publish event", "event", ev.Name(), "error", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (b *Bus) Subscribe(ctx context.Context, relation Relation, filter Filter, handler Handler) (*Subscription, error) {
	return b.feed.Subscribe(ctx, relation, filter, handler)
}

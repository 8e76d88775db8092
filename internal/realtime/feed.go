package realtime

import (
	"context"
	"sync"

	"github.com/anonto42/campus-connect/backend/internal/metrics"
	apperrors "github.com/anonto42/campus-connect/backend/pkg/errors"
	"github.com/anonto42/campus-connect/backend/pkg/logger"
	"github.com/go-redis/redis/v8"
)

// Feed carries change events between writers and live subscribers
type Feed interface {
	Publish(ctx context.Context, ev Event) error
	Subscribe(ctx context.Context, relation Relation, filter Filter, handler Handler) (*Subscription, error)
}

const memoryBuffer = 256

// MemoryFeed delivers events inside a single process
type MemoryFeed struct {
	mu   sync.RWMutex
	subs map[Relation]map[string]*memorySubscriber
}

type memorySubscriber struct {
	sub    *Subscription
	filter Filter
	ch     chan []byte
}

func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{subs: make(map[Relation]map[string]*memorySubscriber)}
}

// Publish queues ev for every subscriber whose filter accepts it. A subscriber with a full
// queue is closed with ErrSubscriberOverflow instead of silently missing the event.
func (f *MemoryFeed) Publish(ctx context.Context, ev Event) error {
	data, err := Encode(ev)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to encode event")
	}
	metrics.EventsPublished.WithLabelValues(string(ev.Relation()), string(ev.Type())).Inc()

	var overflowed []*Subscription
	f.mu.RLock()
	for id, s := range f.subs[ev.Relation()] {
		if s.filter != nil && !s.filter(ev) {
			continue
		}
		select {
		case s.ch <- data:
		default:
			metrics.EventsDropped.WithLabelValues("slow_subscriber").Inc()
			logger.Warn("Closing slow subscriber", "subscription", id, "relation", ev.Relation())
			overflowed = append(overflowed, s.sub)
		}
	}
	f.mu.RUnlock()

	// teardown takes the write lock
	for _, sub := range overflowed {
		sub.closeWithError(ErrSubscriberOverflow)
	}
	return nil
}

func (f *MemoryFeed) Subscribe(ctx context.Context, relation Relation, filter Filter, handler Handler) (*Subscription, error) {
	ch := make(chan []byte, memoryBuffer)

	f.mu.Lock()
	sub := newSubscription(ctx, relation, func(id string) {
		f.mu.Lock()
		delete(f.subs[relation], id)
		f.mu.Unlock()
	})
	if f.subs[relation] == nil {
		f.subs[relation] = make(map[string]*memorySubscriber)
	}
	f.subs[relation][sub.ID()] = &memorySubscriber{sub: sub, filter: filter, ch: ch}
	f.mu.Unlock()

	go func() {
		for {
			select {
			case <-sub.Done():
				return
			case data := <-ch:
				// every subscriber decodes its own copy
				ev, err := Decode(data)
				if err != nil {
					metrics.EventsDropped.WithLabelValues("malformed").Inc()
					logger.Warn("Discarding malformed event", "error", err)
					continue
				}
				sub.deliver(ev, filter, handler)
			}
		}
	}()

	return sub, nil
}

// RedisFeed fans events out through Redis pub/sub so every instance sees every write
type RedisFeed struct {
	client *redis.Client
	prefix string
}

func NewRedisFeed(client *redis.Client, prefix string) *RedisFeed {
	return &RedisFeed{client: client, prefix: prefix}
}

func (f *RedisFeed) channel(relation Relation) string {
	return f.prefix + string(relation)
}

func (f *RedisFeed) Publish(ctx context.Context, ev Event) error {
	data, err := Encode(ev)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to encode event")
	}
	if err := f.client.Publish(ctx, f.channel(ev.Relation()), data).Err(); err != nil {
		return apperrors.DataAccess(err, "failed to publish event")
	}
	metrics.EventsPublished.WithLabelValues(string(ev.Relation()), string(ev.Type())).Inc()
	return nil
}

func (f *RedisFeed) Subscribe(ctx context.Context, relation Relation, filter Filter, handler Handler) (*Subscription, error) {
	ps := f.client.Subscribe(ctx, f.channel(relation))
	// wait for the subscribe confirmation so no event published after return is missed
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, apperrors.DataAccess(err, "failed to subscribe to change feed")
	}

	sub := newSubscription(ctx, relation, func(string) {
		if err := ps.Close(); err != nil {
			logger.Debug("Closing redis subscription", "error", err)
		}
	})

	msgs := ps.Channel()
	queue := make(chan Event, memoryBuffer)
	go func() {
		for {
			select {
			case <-sub.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					sub.Close()
					return
				}
				ev, err := Decode([]byte(msg.Payload))
				if err != nil {
					metrics.EventsDropped.WithLabelValues("malformed").Inc()
					logger.Warn("Discarding malformed event", "channel", msg.Channel, "error", err)
					continue
				}
				if filter != nil && !filter(ev) {
					continue
				}
				select {
				case queue <- ev:
				default:
					metrics.EventsDropped.WithLabelValues("slow_subscriber").Inc()
					logger.Warn("Closing slow subscriber", "subscription", sub.ID(), "channel", msg.Channel)
					sub.closeWithError(ErrSubscriberOverflow)
					return
				}
			}
		}
	}()
	// the handler runs apart from the reader so a slow handler never stalls the redis connection
	go func() {
		for {
			select {
			case <-sub.Done():
				return
			case ev := <-queue:
				sub.deliver(ev, nil, handler)
			}
		}
	}()

	return sub, nil
}

package realtime

import (
	"context"
	"errors"
	"sync"

	"github.com/anonto42/campus-connect/backend/internal/metrics"
	"github.com/google/uuid"
)

// ErrSubscriberOverflow closes a subscription that fell too far behind its feed. Events were
// lost, so the holder must reload state before subscribing again.
var ErrSubscriberOverflow = errors.New("subscriber fell behind the change feed")

// Filter selects the events a subscriber cares about. A nil Filter accepts everything.
type Filter func(Event) bool

type Handler func(Event)

// Subscription is a live interest in one relation. Close is safe to call any number of times.
type Subscription struct {
	id       string
	relation Relation
	ctx      context.Context
	cancel   context.CancelFunc

	once     sync.Once
	mu       sync.Mutex
	err      error
	onClose  []func()
	teardown func(id string)
}

func newSubscription(parent context.Context, relation Relation, teardown func(id string)) *Subscription {
	ctx, cancel := context.WithCancel(parent)
	s := &Subscription{
		id:       uuid.NewString(),
		relation: relation,
		ctx:      ctx,
		cancel:   cancel,
		teardown: teardown,
	}
	metrics.ActiveSubscriptions.WithLabelValues(string(relation)).Inc()
	// parent cancellation closes the subscription too
	go func() {
		<-ctx.Done()
		s.Close()
	}()
	return s
}

func (s *Subscription) ID() string { return s.id }

func (s *Subscription) Relation() Relation { return s.relation }

// Done is closed once the subscription stops delivering
func (s *Subscription) Done() <-chan struct{} { return s.ctx.Done() }

// OnClose registers fn to run when the subscription closes. If it is already closed fn runs immediately.
func (s *Subscription) OnClose(fn func()) {
	s.mu.Lock()
	if s.ctx.Err() == nil {
		s.onClose = append(s.onClose, fn)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	fn()
}

func (s *Subscription) Close() {
	s.closeWithError(nil)
}

// Err reports why the subscription closed. It is nil while open and after a plain Close.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subscription) closeWithError(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		s.cancel()
		hooks := s.onClose
		s.onClose = nil
		s.mu.Unlock()

		if s.teardown != nil {
			s.teardown(s.id)
		}
		for _, fn := range hooks {
			fn()
		}
		metrics.ActiveSubscriptions.WithLabelValues(string(s.relation)).Dec()
	})
}

func (s *Subscription) deliver(ev Event, filter Filter, handler Handler) {
	if s.ctx.Err() != nil {
		return
	}
	if filter != nil && !filter(ev) {
		return
	}
	handler(ev)
}

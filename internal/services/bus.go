package services

import (
	"context"
	"time"

	"github.com/anonto42/campus-connect/backend/internal/realtime"
)

// EventBus is the part of realtime.Bus the services depend on
type EventBus interface {
	Publish(ctx context.Context, ev realtime.Event) error
	Subscribe(ctx context.Context, relation realtime.Relation, filter realtime.Filter, handler realtime.Handler) (*realtime.Subscription, error)
}

// publish hands ev to the bus after the write committed. The bus logs failures and the
// write is not rolled back, so the error is dropped here.
func publish(ctx context.Context, bus EventBus, ev realtime.Event) {
	_ = bus.Publish(ctx, ev)
}

func utcNow() time.Time {
	return time.Now().UTC()
}

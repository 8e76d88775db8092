package realtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_ObserversRunOncePerPublish(t *testing.T) {
	bus := NewBus(NewMemoryFeed())
	calls := 0
	bus.Observe(ObserverFunc(func(ctx context.Context, ev Event) error {
		calls++
		return nil
	}))

	live := &collector{}
	for i := 0; i < 3; i++ {
		sub, err := bus.Subscribe(context.Background(), RelationMessages, nil, live.handle)
		require.NoError(t, err)
		defer sub.Close()
	}

	require.NoError(t, bus.Publish(context.Background(), message(1, "a", "b")))
	assert.Equal(t, 1, calls)
	assert.Eventually(t, func() bool { return live.len() == 3 }, time.Second, 10*time.Millisecond)
}

func TestBus_ObserverErrorStillPublishes(t *testing.T) {
	bus := NewBus(NewMemoryFeed())
	boom := errors.New("boom")
	bus.Observe(ObserverFunc(func(ctx context.Context, ev Event) error { return boom }))

	live := &collector{}
	sub, err := bus.Subscribe(context.Background(), RelationMessages, nil, live.handle)
	require.NoError(t, err)
	defer sub.Close()

	err = bus.Publish(context.Background(), message(1, "a", "b"))
	assert.ErrorIs(t, err, boom)
	assert.Eventually(t, func() bool { return live.len() == 1 }, time.Second, 10*time.Millisecond)
}

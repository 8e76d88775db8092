package realtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/anonto42/campus-connect/backend/internal/models"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *collector) handle(ev Event) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func newRedisFeed(t *testing.T) *RedisFeed {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisFeed(client, "test:")
}

func feeds(t *testing.T) map[string]Feed {
	return map[string]Feed{
		"memory": NewMemoryFeed(),
		"redis":  newRedisFeed(t),
	}
}

func message(id uint, from, to string) MessageInserted {
	return MessageInserted{Message: models.Message{ID: id, SenderID: from, ReceiverID: to, Content: "hello"}}
}

func TestFeed_DeliversFilteredEvents(t *testing.T) {
	for name, feed := range feeds(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			got := &collector{}
			sub, err := feed.Subscribe(ctx, RelationMessages, func(ev Event) bool {
				m, ok := ev.(MessageInserted)
				return ok && m.Message.Between("a", "b")
			}, got.handle)
			require.NoError(t, err)
			defer sub.Close()

			require.NoError(t, feed.Publish(ctx, message(1, "a", "b")))
			require.NoError(t, feed.Publish(ctx, message(2, "a", "c")))
			require.NoError(t, feed.Publish(ctx, message(3, "b", "a")))
			require.NoError(t, feed.Publish(ctx, TypingStatusChanged{Status: models.TypingStatus{UserID: "a", ReceiverID: "b"}}))

			assert.Eventually(t, func() bool { return got.len() == 2 }, time.Second, 10*time.Millisecond)
			time.Sleep(50 * time.Millisecond)
			assert.Equal(t, 2, got.len())
		})
	}
}

func TestFeed_NoDeliveryAfterClose(t *testing.T) {
	for name, feed := range feeds(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			got := &collector{}
			sub, err := feed.Subscribe(ctx, RelationMessages, nil, got.handle)
			require.NoError(t, err)

			require.NoError(t, feed.Publish(ctx, message(1, "a", "b")))
			assert.Eventually(t, func() bool { return got.len() == 1 }, time.Second, 10*time.Millisecond)

			sub.Close()
			sub.Close()
			<-sub.Done()

			require.NoError(t, feed.Publish(ctx, message(2, "a", "b")))
			time.Sleep(50 * time.Millisecond)
			assert.Equal(t, 1, got.len())
		})
	}
}

func TestFeed_ParentCancelClosesSubscription(t *testing.T) {
	feed := NewMemoryFeed()
	ctx, cancel := context.WithCancel(context.Background())

	closed := make(chan struct{})
	sub, err := feed.Subscribe(ctx, RelationNotifications, nil, func(Event) {})
	require.NoError(t, err)
	sub.OnClose(func() { close(closed) })

	cancel()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("subscription was not closed with its parent context")
	}

	ran := false
	sub.OnClose(func() { ran = true })
	assert.True(t, ran, "hooks registered after close run immediately")
}

func TestRedisFeed_DiscardsMalformedPayloads(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	feed := NewRedisFeed(client, "test:")

	ctx := context.Background()
	got := &collector{}
	sub, err := feed.Subscribe(ctx, RelationMessages, nil, got.handle)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, client.Publish(ctx, "test:messages", `{"relation":"messages","type":"INSERT","payload":{}}`).Err())
	require.NoError(t, feed.Publish(ctx, message(9, "a", "b")))

	assert.Eventually(t, func() bool { return got.len() == 1 }, time.Second, 10*time.Millisecond)
	got.mu.Lock()
	defer got.mu.Unlock()
	assert.Equal(t, uint(9), got.events[0].(MessageInserted).Message.ID)
}

func TestFeed_SlowSubscriberIsClosedWithOverflow(t *testing.T) {
	for name, feed := range feeds(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			release := make(chan struct{})
			defer close(release)

			sub, err := feed.Subscribe(ctx, RelationMessages, nil, func(Event) { <-release })
			require.NoError(t, err)
			defer sub.Close()

			for i := 0; i < 2*memoryBuffer; i++ {
				require.NoError(t, feed.Publish(ctx, message(uint(i+1), "a", "b")))
			}

			select {
			case <-sub.Done():
			case <-time.After(2 * time.Second):
				t.Fatal("slow subscriber was not closed")
			}
			assert.ErrorIs(t, sub.Err(), ErrSubscriberOverflow)
		})
	}
}

func TestFeed_FilteredEventsDoNotFillTheQueue(t *testing.T) {
	for name, feed := range feeds(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			release := make(chan struct{})
			got := &collector{}

			sub, err := feed.Subscribe(ctx, RelationMessages, func(ev Event) bool {
				m, ok := ev.(MessageInserted)
				return ok && m.Message.Between("a", "b")
			}, func(ev Event) {
				<-release
				got.handle(ev)
			})
			require.NoError(t, err)
			defer sub.Close()

			require.NoError(t, feed.Publish(ctx, message(1, "a", "b")))
			for i := 0; i < 2*memoryBuffer; i++ {
				require.NoError(t, feed.Publish(ctx, message(uint(i+2), "c", "d")))
			}
			close(release)

			assert.Eventually(t, func() bool { return got.len() == 1 }, 2*time.Second, 10*time.Millisecond)
			assert.NoError(t, sub.Err())
			select {
			case <-sub.Done():
				t.Fatal("subscription closed although it kept up with its own events")
			default:
			}
		})
	}
}

func TestSubscription_CloseLeavesNoError(t *testing.T) {
	sub, err := NewMemoryFeed().Subscribe(context.Background(), RelationMessages, nil, func(Event) {})
	require.NoError(t, err)
	sub.Close()
	assert.NoError(t, sub.Err())
}

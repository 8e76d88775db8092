package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/anonto42/campus-connect/backend/internal/models"
	"github.com/anonto42/campus-connect/backend/internal/realtime"
	"github.com/anonto42/campus-connect/backend/internal/repositories"
	"github.com/anonto42/campus-connect/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingTyping counts upserts on top of the SQLite repository
type countingTyping struct {
	repositories.TypingRepository
	mu      sync.Mutex
	upserts int
}

func (c *countingTyping) Upsert(ctx context.Context, status *models.TypingStatus) error {
	c.mu.Lock()
	c.upserts++
	c.mu.Unlock()
	return c.TypingRepository.Upsert(ctx, status)
}

func newPresence(t *testing.T, debounce, ttl time.Duration) (*PresenceService, *countingTyping, *fakeClock) {
	t.Helper()
	repo := &countingTyping{TypingRepository: repositories.NewPostgresTypingRepository(testutil.NewDB(t))}
	clock := newFakeClock()
	svc := NewPresenceService(repo, realtime.NewBus(realtime.NewMemoryFeed()), debounce, ttl)
	svc.now = clock.Now
	return svc, repo, clock
}

func TestPresenceService_Debounce(t *testing.T) {
	svc, repo, clock := newPresence(t, time.Second, 5*time.Second)
	ctx := context.Background()

	require.NoError(t, svc.SetTyping(ctx, "a", "b", true))
	clock.Advance(300 * time.Millisecond)
	require.NoError(t, svc.SetTyping(ctx, "a", "b", true))
	clock.Advance(300 * time.Millisecond)
	require.NoError(t, svc.SetTyping(ctx, "a", "b", true))
	assert.Equal(t, 1, repo.upserts, "repeated true inside the window is skipped")

	clock.Advance(time.Second)
	require.NoError(t, svc.SetTyping(ctx, "a", "b", true))
	assert.Equal(t, 2, repo.upserts, "a refresh after the window is written")

	require.NoError(t, svc.SetTyping(ctx, "a", "b", false))
	require.NoError(t, svc.SetTyping(ctx, "a", "b", false))
	assert.Equal(t, 4, repo.upserts, "false is never debounced")

	require.NoError(t, svc.SetTyping(ctx, "a", "b", true))
	assert.Equal(t, 5, repo.upserts, "a transition is always written")

	require.NoError(t, svc.SetTyping(ctx, "a", "c", true))
	assert.Equal(t, 6, repo.upserts, "pairs are debounced independently")
}

func TestPresenceService_Staleness(t *testing.T) {
	svc, _, clock := newPresence(t, time.Second, 5*time.Second)
	ctx := context.Background()

	typing, err := svc.PeerTyping(ctx, "b", "a")
	require.NoError(t, err)
	assert.False(t, typing, "no row means not typing")

	require.NoError(t, svc.SetTyping(ctx, "a", "b", true))
	typing, err = svc.PeerTyping(ctx, "b", "a")
	require.NoError(t, err)
	assert.True(t, typing)

	typing, err = svc.PeerTyping(ctx, "a", "b")
	require.NoError(t, err)
	assert.False(t, typing, "typing is directed")

	clock.Advance(6 * time.Second)
	typing, err = svc.PeerTyping(ctx, "b", "a")
	require.NoError(t, err)
	assert.False(t, typing, "a row older than the TTL is not typing")
}

func TestPresenceService_SubscribeToPeerTyping(t *testing.T) {
	svc, _, _ := newPresence(t, 0, 80*time.Millisecond)
	ctx := context.Background()

	var mu sync.Mutex
	var got []bool
	sub, err := svc.SubscribeToPeerTyping(ctx, "viewer", "peer", func(isTyping bool) {
		mu.Lock()
		got = append(got, isTyping)
		mu.Unlock()
	})
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, svc.SetTyping(ctx, "someone", "viewer", true))
	require.NoError(t, svc.SetTyping(ctx, "peer", "other", true))
	require.NoError(t, svc.SetTyping(ctx, "peer", "viewer", true))

	// no refresh arrives, so the subscription reports false on its own
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []bool{true, false}, got)
	mu.Unlock()
}

func TestPresenceService_SubscriptionCloseStopsTimer(t *testing.T) {
	svc, _, _ := newPresence(t, 0, 50*time.Millisecond)
	ctx := context.Background()

	calls := make(chan bool, 4)
	sub, err := svc.SubscribeToPeerTyping(ctx, "viewer", "peer", func(isTyping bool) { calls <- isTyping })
	require.NoError(t, err)

	require.NoError(t, svc.SetTyping(ctx, "peer", "viewer", true))
	select {
	case v := <-calls:
		assert.True(t, v)
	case <-time.After(time.Second):
		t.Fatal("typing change was not delivered")
	}

	sub.Close()
	time.Sleep(120 * time.Millisecond)
	assert.Empty(t, calls, "no synthetic false after close")
}

func TestPresenceService_PurgeStale(t *testing.T) {
	svc, _, clock := newPresence(t, time.Second, 5*time.Second)
	ctx := context.Background()

	require.NoError(t, svc.SetTyping(ctx, "a", "b", true))
	clock.Advance(2 * time.Hour)
	require.NoError(t, svc.SetTyping(ctx, "c", "b", true))

	purged, err := svc.PurgeStale(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
}

func TestPresenceService_StartJanitor(t *testing.T) {
	svc, _, _ := newPresence(t, time.Second, 5*time.Second)

	c, err := svc.StartJanitor("@every 1h", time.Hour)
	require.NoError(t, err)
	c.Stop()

	_, err = svc.StartJanitor("not a schedule", time.Hour)
	assert.Error(t, err)
}

// gatedTyping holds every typing=true upsert until release is closed
type gatedTyping struct {
	repositories.TypingRepository
	entered chan struct{}
	release chan struct{}
}

func (g *gatedTyping) Upsert(ctx context.Context, status *models.TypingStatus) error {
	if status.IsTyping {
		g.entered <- struct{}{}
		<-g.release
	}
	return g.TypingRepository.Upsert(ctx, status)
}

func TestPresenceService_ClearWaitsForInFlightKeystroke(t *testing.T) {
	repo := &gatedTyping{
		TypingRepository: repositories.NewPostgresTypingRepository(testutil.NewDB(t)),
		entered:          make(chan struct{}, 1),
		release:          make(chan struct{}),
	}
	svc := NewPresenceService(repo, realtime.NewBus(realtime.NewMemoryFeed()), 0, 5*time.Second)
	ctx := context.Background()

	typed := make(chan error, 1)
	go func() { typed <- svc.SetTyping(ctx, "a", "b", true) }()
	<-repo.entered

	cleared := make(chan error, 1)
	go func() { cleared <- svc.Clear(ctx, "a", "b") }()

	select {
	case <-cleared:
		t.Fatal("clear finished while the keystroke write was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(repo.release)
	require.NoError(t, <-typed)
	require.NoError(t, <-cleared)

	typing, err := svc.PeerTyping(ctx, "b", "a")
	require.NoError(t, err)
	assert.False(t, typing, "the clear is the last write for the pair")
}

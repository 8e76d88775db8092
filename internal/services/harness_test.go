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
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type harness struct {
	db            *gorm.DB
	bus           *realtime.Bus
	users         *UserService
	connections   *ConnectionService
	presence      *PresenceService
	conversations *ConversationService
	notifications *NotificationService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.NewDB(t)
	bus := realtime.NewBus(realtime.NewMemoryFeed())

	userRepo := repositories.NewPostgresUserRepository(db)
	connRepo := repositories.NewPostgresConnectionRepository(db)

	locker := NewLocalLocker()

	h := &harness{db: db, bus: bus}
	h.users = NewUserService(userRepo)
	h.connections = NewConnectionService(connRepo, userRepo, locker, bus, DefaultSearchLimit)
	h.presence = NewPresenceService(repositories.NewPostgresTypingRepository(db), bus, time.Second, 5*time.Second)
	h.conversations = NewConversationService(repositories.NewPostgresMessageRepository(db), h.connections, h.presence, bus)
	h.notifications = NewNotificationService(
		repositories.NewPostgresNotificationRepository(db),
		userRepo,
		connRepo,
		h.connections,
		locker,
		bus,
	)
	bus.Observe(h.notifications)
	return h
}

// connect makes a and b friends
func (h *harness) connect(t *testing.T, a, b string) {
	t.Helper()
	ctx := context.Background()
	req, err := h.connections.SendRequest(ctx, a, b)
	require.NoError(t, err)
	_, err = h.connections.RespondToRequest(ctx, b, req.ID, "accepted")
	require.NoError(t, err)
}

// fakeClock hands out strictly increasing times
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recorder struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (r *recorder) handle(ev realtime.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []realtime.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]realtime.Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func names(users []models.User) []string {
	out := make([]string, len(users))
	for i, u := range users {
		out[i] = u.ID
	}
	return out
}

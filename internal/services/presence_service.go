package services

import (
	"context"
	"sync"
	"time"

	"github.com/anonto42/campus-connect/backend/internal/metrics"
	"github.com/anonto42/campus-connect/backend/internal/models"
	"github.com/anonto42/campus-connect/backend/internal/realtime"
	"github.com/anonto42/campus-connect/backend/internal/repositories"
	apperrors "github.com/anonto42/campus-connect/backend/pkg/errors"
	"github.com/anonto42/campus-connect/backend/pkg/logger"
	"github.com/robfig/cron/v3"
)

type typingPair struct {
	userID, receiverID string
}

type typingWrite struct {
	isTyping bool
	at       time.Time
}

// PresenceService tracks who is typing to whom
type PresenceService struct {
	typing   repositories.TypingRepository
	bus      EventBus
	debounce time.Duration
	ttl      time.Duration
	now      func() time.Time

	// writes orders the writes of one pair so a clear never lands before an earlier keystroke
	writes    *LocalLocker
	mu        sync.Mutex
	lastWrite map[typingPair]typingWrite
}

func NewPresenceService(typing repositories.TypingRepository, bus EventBus, debounce, ttl time.Duration) *PresenceService {
	return &PresenceService{
		typing:    typing,
		bus:       bus,
		debounce:  debounce,
		ttl:       ttl,
		now:       utcNow,
		writes:    NewLocalLocker(),
		lastWrite: make(map[typingPair]typingWrite),
	}
}

// SetTyping records userID's typing state towards receiverID. A repeated true inside the
// debounce window is skipped; transitions and false are always written.
func (s *PresenceService) SetTyping(ctx context.Context, userID, receiverID string, isTyping bool) error {
	if userID == "" || receiverID == "" {
		return apperrors.ErrMissingIdentity
	}

	unlock, err := s.writes.Lock(ctx, userID+"\x00"+receiverID)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "typing update cancelled")
	}
	defer unlock()

	now := s.now()
	pair := typingPair{userID, receiverID}

	s.mu.Lock()
	last, ok := s.lastWrite[pair]
	if isTyping && ok && last.isTyping && now.Sub(last.at) < s.debounce {
		s.mu.Unlock()
		metrics.TypingWrites.WithLabelValues("debounced").Inc()
		return nil
	}
	s.lastWrite[pair] = typingWrite{isTyping: isTyping, at: now}
	if !isTyping {
		delete(s.lastWrite, pair)
	}
	s.mu.Unlock()

	status := models.TypingStatus{UserID: userID, ReceiverID: receiverID, IsTyping: isTyping, UpdatedAt: now}
	if err := s.typing.Upsert(ctx, &status); err != nil {
		s.forget(pair)
		return apperrors.DataAccess(err, "failed to update typing status")
	}
	metrics.TypingWrites.WithLabelValues("written").Inc()

	publish(ctx, s.bus, realtime.TypingStatusChanged{Status: status})
	return nil
}

// Clear marks userID as not typing to receiverID
func (s *PresenceService) Clear(ctx context.Context, userID, receiverID string) error {
	return s.SetTyping(ctx, userID, receiverID, false)
}

func (s *PresenceService) forget(pair typingPair) {
	s.mu.Lock()
	delete(s.lastWrite, pair)
	s.mu.Unlock()
}

// PeerTyping reports whether peerID is currently typing to viewerID. Rows older than the
// TTL count as not typing.
func (s *PresenceService) PeerTyping(ctx context.Context, viewerID, peerID string) (bool, error) {
	if viewerID == "" || peerID == "" {
		return false, apperrors.ErrMissingIdentity
	}
	status, err := s.typing.Get(ctx, peerID, viewerID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return false, nil
		}
		return false, apperrors.DataAccess(err, "failed to fetch typing status")
	}
	return status.ActiveAt(s.now(), s.ttl), nil
}

// SubscribeToPeerTyping calls onChange whenever peerID starts or stops typing to viewerID.
// A true that is not refreshed within the TTL is followed by a synthetic false.
func (s *PresenceService) SubscribeToPeerTyping(ctx context.Context, viewerID, peerID string, onChange func(isTyping bool)) (*realtime.Subscription, error) {
	if viewerID == "" || peerID == "" {
		return nil, apperrors.ErrMissingIdentity
	}

	var (
		mu      sync.Mutex
		timer   *time.Timer
		typing  bool
		stopped bool
	)

	filter := func(ev realtime.Event) bool {
		e, ok := ev.(realtime.TypingStatusChanged)
		return ok && e.Status.UserID == peerID && e.Status.ReceiverID == viewerID
	}
	handler := func(ev realtime.Event) {
		isTyping := ev.(realtime.TypingStatusChanged).Status.IsTyping

		mu.Lock()
		defer mu.Unlock()
		if stopped {
			return
		}
		if timer != nil {
			timer.Stop()
			timer = nil
		}
		typing = isTyping
		if isTyping {
			timer = time.AfterFunc(s.ttl, func() {
				mu.Lock()
				defer mu.Unlock()
				if stopped || !typing {
					return
				}
				typing = false
				onChange(false)
			})
		}
		onChange(isTyping)
	}

	sub, err := s.bus.Subscribe(ctx, realtime.RelationTypingStatus, filter, handler)
	if err != nil {
		return nil, err
	}
	sub.OnClose(func() {
		mu.Lock()
		defer mu.Unlock()
		stopped = true
		if timer != nil {
			timer.Stop()
		}
	})
	return sub, nil
}

// PurgeStale deletes typing rows not updated within retention
func (s *PresenceService) PurgeStale(ctx context.Context, retention time.Duration) (int64, error) {
	purged, err := s.typing.DeleteOlderThan(ctx, s.now().Add(-retention))
	if err != nil {
		return 0, apperrors.DataAccess(err, "failed to purge typing statuses")
	}

	// drop debounce entries that can no longer suppress a write
	cutoff := s.now().Add(-s.debounce)
	s.mu.Lock()
	for pair, w := range s.lastWrite {
		if w.at.Before(cutoff) {
			delete(s.lastWrite, pair)
		}
	}
	s.mu.Unlock()

	metrics.TypingRowsPurged.Add(float64(purged))
	return purged, nil
}

// StartJanitor schedules PurgeStale on a cron expression. Stop the returned cron on shutdown.
func (s *PresenceService) StartJanitor(schedule string, retention time.Duration) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		purged, err := s.PurgeStale(ctx, retention)
		if err != nil {
			logger.Error("Typing janitor failed", "error", err)
			return
		}
		logger.Debug("Typing janitor finished", "purged", purged)
	}); err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}

package services

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/anonto42/campus-connect/backend/internal/metrics"
	"github.com/anonto42/campus-connect/backend/internal/models"
	"github.com/anonto42/campus-connect/backend/internal/realtime"
	"github.com/anonto42/campus-connect/backend/internal/repositories"
	apperrors "github.com/anonto42/campus-connect/backend/pkg/errors"
)

// RequestResponder settles a friend request on behalf of its receiver
type RequestResponder interface {
	RespondToRequest(ctx context.Context, actorID string, requestID uint, decision string) (*models.ConnectionRequest, error)
}

// NotificationItem is a notification plus whether it still offers accept/decline
type NotificationItem struct {
	models.Notification
	Actionable bool `json:"actionable"`
}

// NotificationService derives notifications from message and friend-request writes
type NotificationService struct {
	notifications repositories.NotificationRepository
	users         repositories.UserRepository
	connections   repositories.ConnectionRepository
	responder     RequestResponder
	locker        Locker
	bus           EventBus
	now           func() time.Time

	mu      sync.RWMutex
	handled map[uint]struct{}
}

func NewNotificationService(
	notifications repositories.NotificationRepository,
	users repositories.UserRepository,
	connections repositories.ConnectionRepository,
	responder RequestResponder,
	locker Locker,
	bus EventBus,
) *NotificationService {
	return &NotificationService{
		notifications: notifications,
		users:         users,
		connections:   connections,
		responder:     responder,
		locker:        locker,
		bus:           bus,
		now:           utcNow,
		handled:       make(map[uint]struct{}),
	}
}

// HandleEvent is the bus observer entry point
func (s *NotificationService) HandleEvent(ctx context.Context, ev realtime.Event) error {
	switch e := ev.(type) {
	case realtime.MessageInserted:
		return s.OnMessageInserted(ctx, e.Message)
	case realtime.ConnectionRequestInserted:
		return s.OnConnectionRequestInserted(ctx, e.Request)
	}
	return nil
}

// OnMessageInserted collapses unread message notifications per sender into one counted row
func (s *NotificationService) OnMessageInserted(ctx context.Context, msg models.Message) error {
	recipient, sender := msg.ReceiverID, msg.SenderID
	unlock, err := s.locker.Lock(ctx, "notify:"+recipient+":"+sender)
	if err != nil {
		return err
	}
	defer unlock()

	name := s.displayName(ctx, sender)
	now := s.now()

	updated, err := s.notifications.IncrementUnreadMessage(ctx, recipient, sender, now, func(count int) string {
		return models.MessageNotificationContent(name, count)
	})
	if err == nil {
		metrics.NotificationsWritten.WithLabelValues(string(models.NotificationMessage), "merged").Inc()
		publish(ctx, s.bus, realtime.NotificationUpdated{Notification: *updated})
		return nil
	}
	if !repositories.IsNotFound(err) {
		return apperrors.DataAccess(err, "failed to update message notification")
	}

	n := &models.Notification{
		UserID:    recipient,
		SenderID:  sender,
		Type:      models.NotificationMessage,
		RelatedID: strconv.FormatUint(uint64(msg.ID), 10),
		Content:   models.MessageNotificationContent(name, 1),
		Count:     1,
		CreatedAt: now,
	}
	if err := s.notifications.Create(ctx, n); err != nil {
		return apperrors.DataAccess(err, "failed to create message notification")
	}
	metrics.NotificationsWritten.WithLabelValues(string(models.NotificationMessage), "created").Inc()
	publish(ctx, s.bus, realtime.NotificationInserted{Notification: *n})
	return nil
}

// OnConnectionRequestInserted notifies the receiver of a new friend request
func (s *NotificationService) OnConnectionRequestInserted(ctx context.Context, req models.ConnectionRequest) error {
	n := &models.Notification{
		UserID:    req.ReceiverID,
		SenderID:  req.SenderID,
		Type:      models.NotificationFriendRequest,
		RelatedID: strconv.FormatUint(uint64(req.ID), 10),
		Content:   models.FriendRequestNotificationContent(s.displayName(ctx, req.SenderID)),
		Count:     1,
		CreatedAt: s.now(),
	}
	if err := s.notifications.Create(ctx, n); err != nil {
		return apperrors.DataAccess(err, "failed to create friend request notification")
	}
	metrics.NotificationsWritten.WithLabelValues(string(models.NotificationFriendRequest), "created").Inc()
	publish(ctx, s.bus, realtime.NotificationInserted{Notification: *n})
	return nil
}

func (s *NotificationService) displayName(ctx context.Context, userID string) string {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return (&models.User{}).DisplayName()
	}
	return user.DisplayName()
}

func (s *NotificationService) ListUnread(ctx context.Context, userID string) ([]NotificationItem, error) {
	return s.list(ctx, userID, false)
}

func (s *NotificationService) ListRead(ctx context.Context, userID string) ([]NotificationItem, error) {
	return s.list(ctx, userID, true)
}

func (s *NotificationService) list(ctx context.Context, userID string, read bool) ([]NotificationItem, error) {
	if userID == "" {
		return nil, apperrors.ErrMissingIdentity
	}
	notifications, err := s.notifications.ListByReadState(ctx, userID, read)
	if err != nil {
		return nil, apperrors.DataAccess(err, "failed to fetch notifications")
	}

	var requestIDs []uint
	for _, n := range notifications {
		if id, ok := s.pendingCandidate(n); ok {
			requestIDs = append(requestIDs, id)
		}
	}
	pending := make(map[uint]bool, len(requestIDs))
	if len(requestIDs) > 0 {
		requests, err := s.connections.GetByIDs(ctx, requestIDs)
		if err != nil {
			return nil, apperrors.DataAccess(err, "failed to fetch friend requests")
		}
		for _, r := range requests {
			pending[r.ID] = r.Status == models.RequestStatusPending
		}
	}

	items := make([]NotificationItem, 0, len(notifications))
	for _, n := range notifications {
		id, ok := s.pendingCandidate(n)
		items = append(items, NotificationItem{Notification: n, Actionable: ok && pending[id]})
	}
	return items, nil
}

// pendingCandidate returns the request behind a friend-request notification that has not
// been handled yet
func (s *NotificationService) pendingCandidate(n models.Notification) (uint, bool) {
	if n.Type != models.NotificationFriendRequest || s.isHandled(n.ID) {
		return 0, false
	}
	id, err := strconv.ParseUint(n.RelatedID, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func (s *NotificationService) isHandled(id uint) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.handled[id]
	return ok
}

func (s *NotificationService) markHandled(id uint) {
	s.mu.Lock()
	s.handled[id] = struct{}{}
	s.mu.Unlock()
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, apperrors.ErrMissingIdentity
	}
	count, err := s.notifications.UnreadCount(ctx, userID)
	if err != nil {
		return 0, apperrors.DataAccess(err, "failed to count notifications")
	}
	return count, nil
}

// OpenPanel captures the timestamp the panel close will mark read up to
func (s *NotificationService) OpenPanel(ctx context.Context, userID string) (time.Time, error) {
	if userID == "" {
		return time.Time{}, apperrors.ErrMissingIdentity
	}
	return s.now(), nil
}

// ClosePanel marks read what was visible when the panel opened
func (s *NotificationService) ClosePanel(ctx context.Context, userID string, openedAt time.Time) (int64, error) {
	return s.MarkReadUpTo(ctx, userID, openedAt)
}

// MarkReadUpTo marks unread notifications created at or before ts as read. Later arrivals stay unread.
func (s *NotificationService) MarkReadUpTo(ctx context.Context, userID string, ts time.Time) (int64, error) {
	if userID == "" {
		return 0, apperrors.ErrMissingIdentity
	}
	if ts.IsZero() {
		return 0, apperrors.Validation("panel timestamp is required")
	}
	marked, err := s.notifications.MarkReadUpTo(ctx, userID, ts.UTC())
	if err != nil {
		return 0, apperrors.DataAccess(err, "failed to mark notifications as read")
	}
	return marked, nil
}

// MarkRead marks one of userID's notifications as read
func (s *NotificationService) MarkRead(ctx context.Context, userID string, notificationID uint) (*models.Notification, error) {
	n, err := s.owned(ctx, userID, notificationID)
	if err != nil {
		return nil, err
	}
	if n.IsRead {
		return n, nil
	}
	if err := s.notifications.MarkRead(ctx, n.ID); err != nil {
		return nil, apperrors.DataAccess(err, "failed to mark notification as read")
	}
	n.IsRead = true
	publish(ctx, s.bus, realtime.NotificationUpdated{Notification: *n})
	return n, nil
}

func (s *NotificationService) owned(ctx context.Context, userID string, notificationID uint) (*models.Notification, error) {
	if userID == "" {
		return nil, apperrors.ErrMissingIdentity
	}
	n, err := s.notifications.GetByID(ctx, notificationID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, apperrors.ErrNotificationNotFound
		}
		return nil, apperrors.DataAccess(err, "failed to fetch notification")
	}
	if n.UserID != userID {
		return nil, apperrors.ErrNotNotificationOwner
	}
	return n, nil
}

// RespondAndResolve accepts or declines the friend request behind a notification, then marks
// the notification read. senderID is used to find the request when the notification does not
// reference one.
func (s *NotificationService) RespondAndResolve(ctx context.Context, actorID string, notificationID uint, senderID, decision string) (*models.ConnectionRequest, error) {
	if _, ok := models.ParseDecision(decision); !ok {
		return nil, apperrors.ErrInvalidDecision
	}
	n, err := s.owned(ctx, actorID, notificationID)
	if err != nil {
		return nil, err
	}
	if n.Type != models.NotificationFriendRequest {
		return nil, apperrors.ErrNotFriendRequest
	}

	requestID, err := s.resolveRequest(ctx, n, actorID, senderID)
	if err != nil {
		return nil, err
	}

	req, err := s.responder.RespondToRequest(ctx, actorID, requestID, decision)
	if err != nil {
		return nil, err
	}

	if err := s.notifications.MarkRead(ctx, n.ID); err != nil {
		return nil, apperrors.DataAccess(err, "failed to mark notification as read")
	}
	s.markHandled(n.ID)
	n.IsRead = true
	publish(ctx, s.bus, realtime.NotificationUpdated{Notification: *n})
	return req, nil
}

func (s *NotificationService) resolveRequest(ctx context.Context, n *models.Notification, actorID, senderID string) (uint, error) {
	if id, err := strconv.ParseUint(n.RelatedID, 10, 64); err == nil && id > 0 {
		return uint(id), nil
	}

	if senderID == "" {
		senderID = n.SenderID
	}
	req, err := s.connections.FindPending(ctx, senderID, actorID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return 0, apperrors.ErrRequestNotFound
		}
		return 0, apperrors.DataAccess(err, "failed to fetch friend request")
	}
	return req.ID, nil
}

// SubscribeToNotifications delivers inserts and updates of userID's notifications
func (s *NotificationService) SubscribeToNotifications(ctx context.Context, userID string, handler realtime.Handler) (*realtime.Subscription, error) {
	if userID == "" {
		return nil, apperrors.ErrMissingIdentity
	}
	filter := func(ev realtime.Event) bool {
		switch e := ev.(type) {
		case realtime.NotificationInserted:
			return e.Notification.UserID == userID
		case realtime.NotificationUpdated:
			return e.Notification.UserID == userID
		}
		return false
	}
	return s.bus.Subscribe(ctx, realtime.RelationNotifications, filter, handler)
}

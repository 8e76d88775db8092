package services

import (
	"context"
	"strings"

	"github.com/anonto42/campus-connect/backend/internal/models"
	"github.com/anonto42/campus-connect/backend/internal/realtime"
	"github.com/anonto42/campus-connect/backend/internal/repositories"
	apperrors "github.com/anonto42/campus-connect/backend/pkg/errors"
	"github.com/anonto42/campus-connect/backend/pkg/security"
)

const (
	DefaultSearchLimit = 5
	MaxSearchLimit     = 7
)

// ConnectionService manages the friend-request graph
type ConnectionService struct {
	connections repositories.ConnectionRepository
	users       repositories.UserRepository
	locker      Locker
	bus         EventBus
	searchLimit int
}

// NewConnectionService builds the service. locker serializes request creation per unordered pair.
func NewConnectionService(connections repositories.ConnectionRepository, users repositories.UserRepository, locker Locker, bus EventBus, searchLimit int) *ConnectionService {
	if searchLimit <= 0 || searchLimit > MaxSearchLimit {
		searchLimit = DefaultSearchLimit
	}
	return &ConnectionService{
		connections: connections,
		users:       users,
		locker:      locker,
		bus:         bus,
		searchLimit: searchLimit,
	}
}

// ListConnections resolves the other party of every accepted request involving userID
func (s *ConnectionService) ListConnections(ctx context.Context, userID string) ([]models.User, error) {
	if userID == "" {
		return []models.User{}, nil
	}

	accepted, err := s.connections.ListAccepted(ctx, userID)
	if err != nil {
		return nil, apperrors.DataAccess(err, "failed to fetch connections")
	}

	seen := make(map[string]struct{}, len(accepted))
	ids := make([]string, 0, len(accepted))
	for i := range accepted {
		other := accepted[i].OtherParty(userID)
		if _, dup := seen[other]; dup {
			continue
		}
		seen[other] = struct{}{}
		ids = append(ids, other)
	}

	users, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, apperrors.DataAccess(err, "failed to fetch connections")
	}

	// keep the most recently accepted first
	byID := make(map[string]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	ordered := make([]models.User, 0, len(users))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			ordered = append(ordered, u)
		}
	}
	return ordered, nil
}

func (s *ConnectionService) ListIncomingRequests(ctx context.Context, userID string) ([]models.ConnectionRequest, error) {
	if userID == "" {
		return nil, apperrors.ErrMissingIdentity
	}
	requests, err := s.connections.ListIncomingPending(ctx, userID)
	if err != nil {
		return nil, apperrors.DataAccess(err, "failed to fetch friend requests")
	}
	return requests, nil
}

// ListSentPending returns the receivers of userID's pending requests
func (s *ConnectionService) ListSentPending(ctx context.Context, userID string) ([]string, error) {
	if userID == "" {
		return nil, apperrors.ErrMissingIdentity
	}
	requests, err := s.connections.ListSentPending(ctx, userID)
	if err != nil {
		return nil, apperrors.DataAccess(err, "failed to fetch sent requests")
	}
	receivers := make([]string, 0, len(requests))
	for _, r := range requests {
		receivers = append(receivers, r.ReceiverID)
	}
	return receivers, nil
}

func (s *ConnectionService) SendRequest(ctx context.Context, senderID, receiverID string) (*models.ConnectionRequest, error) {
	senderID, receiverID = strings.TrimSpace(senderID), strings.TrimSpace(receiverID)
	if senderID == "" || receiverID == "" {
		return nil, apperrors.ErrMissingIdentity
	}
	if senderID == receiverID {
		return nil, apperrors.ErrSelfRequest
	}

	if _, err := s.users.GetByID(ctx, receiverID); err != nil {
		if repositories.IsNotFound(err) {
			return nil, apperrors.ErrReceiverNotFound
		}
		return nil, apperrors.DataAccess(err, "failed to fetch receiver")
	}

	unlock, err := s.locker.Lock(ctx, pairLockKey(senderID, receiverID))
	if err != nil {
		return nil, apperrors.DataAccess(err, "failed to lock connection pair")
	}
	req := &models.ConnectionRequest{SenderID: senderID, ReceiverID: receiverID}
	created, err := s.connections.CreateIfNoActive(ctx, req)
	unlock()
	if err != nil {
		return nil, apperrors.DataAccess(err, "failed to create friend request")
	}
	if !created {
		return nil, apperrors.ErrActiveRequestExists
	}

	publish(ctx, s.bus, realtime.ConnectionRequestInserted{Request: *req})
	return req, nil
}

// RespondToRequest lets the receiver accept or decline a pending request
func (s *ConnectionService) RespondToRequest(ctx context.Context, actorID string, requestID uint, decision string) (*models.ConnectionRequest, error) {
	if actorID == "" {
		return nil, apperrors.ErrMissingIdentity
	}
	status, ok := models.ParseDecision(decision)
	if !ok {
		return nil, apperrors.ErrInvalidDecision
	}

	req, err := s.connections.GetByID(ctx, requestID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, apperrors.ErrRequestNotFound
		}
		return nil, apperrors.DataAccess(err, "failed to fetch friend request")
	}
	if req.ReceiverID != actorID {
		return nil, apperrors.ErrNotRequestReceiver
	}

	updated, err := s.connections.UpdateStatusIfPending(ctx, requestID, status)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, apperrors.ErrRequestNotFound
		}
		return nil, apperrors.DataAccess(err, "failed to update friend request")
	}
	if !updated {
		return nil, apperrors.ErrRequestNotPending
	}

	req.Status = status
	publish(ctx, s.bus, realtime.ConnectionRequestUpdated{Request: *req})
	return req, nil
}

// SearchUsers matches an email prefix, and optionally a first-name prefix, excluding the caller
func (s *ConnectionService) SearchUsers(ctx context.Context, query, excludeID string, limit int, includeFirstName bool) ([]models.User, error) {
	prefix := security.NormalizeQuery(query)
	if prefix == "" {
		return []models.User{}, nil
	}
	if limit <= 0 {
		limit = s.searchLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}

	users, err := s.users.SearchByPrefix(ctx, prefix, excludeID, includeFirstName, limit)
	if err != nil {
		return nil, apperrors.DataAccess(err, "failed to search users")
	}

	seen := make(map[string]struct{}, len(users))
	unique := users[:0]
	for _, u := range users {
		if u.ID == excludeID {
			continue
		}
		if _, dup := seen[u.ID]; dup {
			continue
		}
		seen[u.ID] = struct{}{}
		unique = append(unique, u)
	}
	return unique, nil
}

// AreConnected reports whether a and b share an accepted request
func (s *ConnectionService) AreConnected(ctx context.Context, a, b string) (bool, error) {
	req, err := s.connections.FindActiveBetween(ctx, a, b)
	if err != nil {
		if repositories.IsNotFound(err) {
			return false, nil
		}
		return false, apperrors.DataAccess(err, "failed to fetch connection")
	}
	return req.Status == models.RequestStatusAccepted, nil
}

// SubscribeToRequests delivers request inserts and updates in which userID takes part
func (s *ConnectionService) SubscribeToRequests(ctx context.Context, userID string, handler realtime.Handler) (*realtime.Subscription, error) {
	if userID == "" {
		return nil, apperrors.ErrMissingIdentity
	}
	filter := func(ev realtime.Event) bool {
		switch e := ev.(type) {
		case realtime.ConnectionRequestInserted:
			return e.Request.ReceiverID == userID || e.Request.SenderID == userID
		case realtime.ConnectionRequestUpdated:
			return e.Request.ReceiverID == userID || e.Request.SenderID == userID
		}
		return false
	}
	return s.bus.Subscribe(ctx, realtime.RelationConnectionRequests, filter, handler)
}

// pairLockKey names the unordered pair so A->B and B->A contend for one lock
func pairLockKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return "connection:" + a + ":" + b
}

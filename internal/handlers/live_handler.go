package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/anonto42/campus-connect/backend/internal/metrics"
	"github.com/anonto42/campus-connect/backend/internal/models"
	"github.com/anonto42/campus-connect/backend/internal/realtime"
	"github.com/anonto42/campus-connect/backend/internal/services"
	apperrors "github.com/anonto42/campus-connect/backend/pkg/errors"
	"github.com/anonto42/campus-connect/backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	liveReadDeadline = 90 * time.Second
	livePingInterval = 30 * time.Second
	liveWriteTimeout = 10 * time.Second
	liveReadLimit    = int64(16 << 10)
)

const (
	scopeNotifications = "notifications"
	scopeRequests      = "requests"
	scopeConversation  = "conversation"
	scopeTyping        = "typing"
)

// Client control frames
const (
	FrameOpenConversation  = "open_conversation"
	FrameCloseConversation = "close_conversation"
	FrameTyping            = "typing"
)

// ClientFrame is a control message sent by the browser
type ClientFrame struct {
	Type     string `json:"type"`
	PeerID   string `json:"peer_id,omitempty"`
	IsTyping *bool  `json:"is_typing,omitempty"`
}

// LiveHandler serves the websocket that pushes messages, typing and notifications.
// Sessions end when the base context passed to NewLiveHandler is cancelled.
type LiveHandler struct {
	base          context.Context
	sessions      sync.WaitGroup
	conversations *services.ConversationService
	presence      *services.PresenceService
	notifications *services.NotificationService
	connections   *services.ConnectionService
	upgrader      websocket.Upgrader
}

func NewLiveHandler(
	base context.Context,
	conversations *services.ConversationService,
	presence *services.PresenceService,
	notifications *services.NotificationService,
	connections *services.ConnectionService,
) *LiveHandler {
	return &LiveHandler{
		base:          base,
		conversations: conversations,
		presence:      presence,
		notifications: notifications,
		connections:   connections,
		upgrader: websocket.Upgrader{
			// origins are enforced by the CORS middleware
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *LiveHandler) RegisterLiveRoutes(g *echo.Group) {
	g.GET("/live", h.Connect)
}

// Connect upgrades the request and runs the session until the client goes away
func (h *LiveHandler) Connect(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	if h.base.Err() != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Server is shutting down")
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Warn("Websocket upgrade failed", "user_id", userID, "error", err)
		return nil
	}

	h.sessions.Add(1)
	defer h.sessions.Done()

	ctx, cancel := context.WithCancel(h.base)
	s := &liveSession{
		id:      uuid.NewString(),
		userID:  userID,
		conn:    conn,
		scopes:  realtime.NewScopes(),
		handler: h,
		ctx:     ctx,
		cancel:  cancel,
	}
	s.run()
	return nil
}

// Drain waits for every live session to finish closing. Call it after cancelling the base
// context and before the stores go away.
func (h *LiveHandler) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type liveSession struct {
	id      string
	userID  string
	conn    *websocket.Conn
	scopes  *realtime.Scopes
	handler *LiveHandler
	ctx     context.Context
	cancel  context.CancelFunc

	// opMu orders client frames, resyncs and shutdown
	opMu    sync.Mutex
	writeMu sync.Mutex

	peerMu sync.Mutex
	peerID string
}

func (s *liveSession) run() {
	metrics.LiveConnections.Inc()
	logger.Info("Live session opened", "session", s.id, "user_id", s.userID)
	defer func() {
		s.shutdown()
		metrics.LiveConnections.Dec()
		logger.Info("Live session closed", "session", s.id, "user_id", s.userID)
	}()

	s.opMu.Lock()
	err := s.subscribeInbox()
	s.opMu.Unlock()
	if err != nil {
		s.sendError(err)
		return
	}
	go s.keepAlive()

	s.conn.SetReadLimit(liveReadLimit)
	_ = s.conn.SetReadDeadline(time.Now().Add(liveReadDeadline))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(liveReadDeadline))
	})

	for {
		var frame ClientFrame
		if err := s.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("Live session read failed", "session", s.id, "error", err)
			}
			return
		}
		s.opMu.Lock()
		err := s.dispatch(frame)
		s.opMu.Unlock()
		if err != nil {
			s.sendError(err)
		}
	}
}

func (s *liveSession) dispatch(frame ClientFrame) error {
	switch frame.Type {
	case FrameOpenConversation:
		return s.openConversation(frame.PeerID)
	case FrameCloseConversation:
		s.closeConversation()
		return nil
	case FrameTyping:
		if frame.IsTyping == nil {
			return apperrors.Validation("is_typing is required")
		}
		peer := s.currentPeer()
		if peer == "" {
			return apperrors.FailedPrecondition("no conversation is open")
		}
		return s.handler.presence.SetTyping(s.ctx, s.userID, peer, *frame.IsTyping)
	default:
		return apperrors.Validation("unknown frame type " + frame.Type)
	}
}

// subscribeInbox follows the user's notifications and friend requests for the whole session
func (s *liveSession) subscribeInbox() error {
	if _, err := s.scopes.Acquire(scopeNotifications, func() (*realtime.Subscription, error) {
		return s.watch(scopeNotifications)(s.handler.notifications.SubscribeToNotifications(s.ctx, s.userID, s.pushEvent))
	}); err != nil {
		return err
	}
	_, err := s.scopes.Acquire(scopeRequests, func() (*realtime.Subscription, error) {
		return s.watch(scopeRequests)(s.handler.connections.SubscribeToRequests(s.ctx, s.userID, s.pushEvent))
	})
	return err
}

// watch arranges a resync of scope if its subscription is closed for falling behind
func (s *liveSession) watch(scope string) func(*realtime.Subscription, error) (*realtime.Subscription, error) {
	return func(sub *realtime.Subscription, err error) (*realtime.Subscription, error) {
		if err != nil {
			return nil, err
		}
		sub.OnClose(func() {
			if errors.Is(sub.Err(), realtime.ErrSubscriberOverflow) && s.ctx.Err() == nil {
				go s.resync(scope, sub)
			}
		})
		return sub, nil
	}
}

// resync replaces a subscription that missed events. The client is told to reload the
// scope; an open conversation is reloaded and sent again.
func (s *liveSession) resync(scope string, stale *realtime.Subscription) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if s.ctx.Err() != nil || !s.scopes.ReleaseIf(scope, stale) {
		return
	}
	logger.Warn("Live session fell behind, resyncing", "session", s.id, "user_id", s.userID, "scope", scope)
	metrics.LiveResyncs.WithLabelValues(scope).Inc()
	s.push(realtime.Frame{Event: "resync", Data: map[string]string{"scope": scope}})

	var err error
	switch scope {
	case scopeConversation, scopeTyping:
		// the user is still in the conversation so typing is kept
		s.peerMu.Lock()
		peer := s.peerID
		s.peerID = ""
		s.peerMu.Unlock()
		s.scopes.Release(scopeConversation)
		s.scopes.Release(scopeTyping)
		if peer != "" {
			err = s.openConversation(peer)
		}
	default:
		err = s.subscribeInbox()
	}
	if err != nil {
		s.sendError(err)
	}
}

// openConversation swaps the conversation and typing scopes to peerID. Re-opening the
// current peer does nothing.
func (s *liveSession) openConversation(peerID string) error {
	if peerID == "" {
		return apperrors.Validation("peer_id is required")
	}
	if peerID == s.currentPeer() && s.scopes.Held(scopeConversation) {
		return nil
	}
	s.closeConversation()

	var conv *services.Conversation
	if _, err := s.scopes.Acquire(scopeConversation, func() (*realtime.Subscription, error) {
		var err error
		conv, err = s.handler.conversations.Open(s.ctx, s.userID, peerID, func(ch services.Change) {
			s.push(realtime.Frame{Event: "message_" + string(ch.Kind), Data: ch.Message})
			if ch.Kind == services.ChangeAppended && ch.Message.SenderID == peerID && !ch.Message.Seen {
				s.markSeen(peerID)
			}
		})
		if err != nil {
			return nil, err
		}
		return s.watch(scopeConversation)(conv.Subscription(), nil)
	}); err != nil {
		return err
	}
	if conv == nil {
		return nil
	}

	if _, err := s.scopes.Acquire(scopeTyping, func() (*realtime.Subscription, error) {
		return s.watch(scopeTyping)(s.handler.presence.SubscribeToPeerTyping(s.ctx, s.userID, peerID, func(isTyping bool) {
			s.push(realtime.Frame{Event: "peer_typing", Data: typingPayload(peerID, isTyping)})
		}))
	}); err != nil {
		s.scopes.Release(scopeConversation)
		return err
	}

	s.peerMu.Lock()
	s.peerID = peerID
	s.peerMu.Unlock()

	s.markSeen(peerID)
	typing, err := s.handler.presence.PeerTyping(s.ctx, s.userID, peerID)
	if err != nil {
		logger.Warn("Failed to read peer typing", "session", s.id, "error", err)
	}
	s.push(realtime.Frame{Event: "conversation_opened", Data: conversationSnapshot{
		PeerID:     peerID,
		Messages:   conv.Messages(),
		PeerTyping: typing,
	}})
	return nil
}

// closeConversation releases the conversation scopes and clears the user's typing state
func (s *liveSession) closeConversation() {
	s.peerMu.Lock()
	peer := s.peerID
	s.peerID = ""
	s.peerMu.Unlock()

	s.scopes.Release(scopeConversation)
	s.scopes.Release(scopeTyping)
	if peer == "" {
		return
	}
	if err := s.handler.presence.Clear(context.Background(), s.userID, peer); err != nil {
		logger.Warn("Failed to clear typing on close", "session", s.id, "error", err)
	}
}

// markSeen acknowledges everything peerID sent while the user has the conversation open
func (s *liveSession) markSeen(peerID string) {
	if _, err := s.handler.conversations.MarkSeen(s.ctx, s.userID, peerID); err != nil && s.ctx.Err() == nil {
		logger.Warn("Failed to mark messages as seen", "session", s.id, "peer_id", peerID, "error", err)
	}
}

func (s *liveSession) currentPeer() string {
	s.peerMu.Lock()
	defer s.peerMu.Unlock()
	return s.peerID
}

func (s *liveSession) shutdown() {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.closeConversation()
	s.scopes.ReleaseAll()
	s.cancel()
	_ = s.conn.Close()
}

func (s *liveSession) keepAlive() {
	ticker := time.NewTicker(livePingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			// unblocks the read loop when the server shuts down
			s.writeMu.Lock()
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(time.Second))
			s.writeMu.Unlock()
			_ = s.conn.Close()
			return
		case <-ticker.C:
			s.writeMu.Lock()
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteTimeout))
			s.writeMu.Unlock()
			if err != nil {
				_ = s.conn.Close()
				return
			}
		}
	}
}

func (s *liveSession) pushEvent(ev realtime.Event) {
	s.push(realtime.FrameOf(ev))
}

// push serializes writes; gorilla connections allow one concurrent writer
func (s *liveSession) push(frame realtime.Frame) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
	if err := s.conn.WriteJSON(frame); err != nil {
		logger.Debug("Live push failed", "session", s.id, "event", frame.Event, "error", err)
	}
}

func (s *liveSession) sendError(err error) {
	s.push(realtime.Frame{Event: "error", Data: map[string]string{
		"code":    string(apperrors.CodeOf(err)),
		"message": errorMessage(err),
	}})
}

func errorMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal error"
}

type conversationSnapshot struct {
	PeerID     string           `json:"peer_id"`
	Messages   []models.Message `json:"messages"`
	PeerTyping bool             `json:"peer_typing"`
}

func typingPayload(peerID string, isTyping bool) map[string]interface{} {
	return map[string]interface{}{"peer_id": peerID, "is_typing": isTyping}
}

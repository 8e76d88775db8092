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
	"github.com/anonto42/campus-connect/backend/pkg/security"
)

// ConnectionChecker decides who may message whom
type ConnectionChecker interface {
	AreConnected(ctx context.Context, a, b string) (bool, error)
}

// TypingClearer resets a sender's typing state once a message goes out
type TypingClearer interface {
	Clear(ctx context.Context, userID, receiverID string) error
}

// ConversationService stores direct messages and their read receipts
type ConversationService struct {
	messages    repositories.MessageRepository
	connections ConnectionChecker
	typing      TypingClearer
	bus         EventBus
	now         func() time.Time
}

func NewConversationService(messages repositories.MessageRepository, connections ConnectionChecker, typing TypingClearer, bus EventBus) *ConversationService {
	return &ConversationService{
		messages:    messages,
		connections: connections,
		typing:      typing,
		bus:         bus,
		now:         utcNow,
	}
}

// LoadHistory returns the messages between a and b, oldest first
func (s *ConversationService) LoadHistory(ctx context.Context, a, b string) ([]models.Message, error) {
	if a == "" || b == "" {
		return nil, apperrors.ErrMissingIdentity
	}
	messages, err := s.messages.ListBetween(ctx, a, b)
	if err != nil {
		return nil, apperrors.DataAccess(err, "failed to fetch messages")
	}
	return messages, nil
}

// Subscribe delivers new messages and seen updates exchanged by a and b
func (s *ConversationService) Subscribe(ctx context.Context, a, b string, onInsert func(models.Message), onUpdate func(realtime.MessageUpdated)) (*realtime.Subscription, error) {
	if a == "" || b == "" {
		return nil, apperrors.ErrMissingIdentity
	}

	filter := func(ev realtime.Event) bool {
		switch e := ev.(type) {
		case realtime.MessageInserted:
			return e.Message.Between(a, b)
		case realtime.MessageUpdated:
			return (e.SenderID == a && e.ReceiverID == b) || (e.SenderID == b && e.ReceiverID == a)
		}
		return false
	}
	handler := func(ev realtime.Event) {
		switch e := ev.(type) {
		case realtime.MessageInserted:
			if onInsert != nil {
				onInsert(e.Message)
			}
		case realtime.MessageUpdated:
			if onUpdate != nil {
				onUpdate(e)
			}
		}
	}
	return s.bus.Subscribe(ctx, realtime.RelationMessages, filter, handler)
}

// SendMessage stores content for a connected pair. Content is kept as sent apart from NUL
// bytes and surrounding whitespace; over-long content is rejected.
func (s *ConversationService) SendMessage(ctx context.Context, senderID, receiverID, content string) (*models.Message, error) {
	if senderID == "" || receiverID == "" {
		return nil, apperrors.ErrMissingIdentity
	}
	content = security.NormalizeMessage(content)
	if content == "" {
		return nil, apperrors.ErrEmptyMessage
	}
	if security.MessageTooLong(content) {
		return nil, apperrors.ErrMessageTooLong
	}

	connected, err := s.connections.AreConnected(ctx, senderID, receiverID)
	if err != nil {
		return nil, err
	}
	if !connected {
		return nil, apperrors.ErrNotConnected
	}

	msg := &models.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  s.now(),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, apperrors.DataAccess(err, "failed to send message")
	}
	metrics.MessagesSent.Inc()

	if err := s.typing.Clear(ctx, senderID, receiverID); err != nil {
		logger.Warn("Failed to clear typing status after send", "sender", senderID, "error", err)
	}

	publish(ctx, s.bus, realtime.MessageInserted{Message: *msg})
	return msg, nil
}

// MarkSeen marks everything otherID sent to viewerID as seen and returns how many changed
func (s *ConversationService) MarkSeen(ctx context.Context, viewerID, otherID string) (int, error) {
	if viewerID == "" || otherID == "" {
		return 0, apperrors.ErrMissingIdentity
	}

	changed, err := s.messages.MarkSeen(ctx, otherID, viewerID, s.now())
	if err != nil {
		return 0, apperrors.DataAccess(err, "failed to mark messages as seen")
	}
	for _, m := range changed {
		publish(ctx, s.bus, realtime.MessageUpdated{
			ID:         m.ID,
			SenderID:   m.SenderID,
			ReceiverID: m.ReceiverID,
			Seen:       m.Seen,
			SeenAt:     m.SeenAt,
		})
	}
	return len(changed), nil
}

// Open loads the history between self and peer and keeps it current from the feed.
// onChange, if set, runs after each applied change.
func (s *ConversationService) Open(ctx context.Context, self, peer string, onChange func(Change)) (*Conversation, error) {
	if self == "" || peer == "" {
		return nil, apperrors.ErrMissingIdentity
	}

	c := &Conversation{
		Self:     self,
		Peer:     peer,
		index:    make(map[uint]int),
		onChange: onChange,
	}

	// hold the transcript while loading so events that race the load apply after it
	c.mu.Lock()
	sub, err := s.Subscribe(ctx, self, peer, c.append, c.merge)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	history, err := s.LoadHistory(ctx, self, peer)
	if err != nil {
		c.mu.Unlock()
		sub.Close()
		return nil, err
	}
	for _, m := range history {
		c.index[m.ID] = len(c.messages)
		c.messages = append(c.messages, m)
	}
	c.sub = sub
	c.mu.Unlock()

	return c, nil
}

type ChangeKind string

const (
	ChangeAppended ChangeKind = "appended"
	ChangeUpdated  ChangeKind = "updated"
)

type Change struct {
	Kind    ChangeKind
	Message models.Message
}

// Conversation is an open transcript between Self and Peer
type Conversation struct {
	Self string
	Peer string

	mu       sync.RWMutex
	messages []models.Message
	index    map[uint]int
	sub      *realtime.Subscription
	onChange func(Change)
}

// Messages returns a copy of the transcript
func (c *Conversation) Messages() []models.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Subscription is the live feed keeping the transcript current
func (c *Conversation) Subscription() *realtime.Subscription {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sub
}

func (c *Conversation) Close() {
	c.mu.RLock()
	sub := c.sub
	c.mu.RUnlock()
	if sub != nil {
		sub.Close()
	}
}

// append adds a live insert at the tail. Known ids are ignored.
func (c *Conversation) append(m models.Message) {
	c.mu.Lock()
	if _, ok := c.index[m.ID]; ok {
		c.mu.Unlock()
		return
	}
	c.index[m.ID] = len(c.messages)
	c.messages = append(c.messages, m)
	c.mu.Unlock()

	if c.onChange != nil {
		c.onChange(Change{Kind: ChangeAppended, Message: m})
	}
}

// merge applies a seen update to the cached message in place
func (c *Conversation) merge(u realtime.MessageUpdated) {
	c.mu.Lock()
	i, ok := c.index[u.ID]
	if !ok {
		c.mu.Unlock()
		return
	}
	c.messages[i].Seen = u.Seen
	c.messages[i].SeenAt = u.SeenAt
	m := c.messages[i]
	c.mu.Unlock()

	if c.onChange != nil {
		c.onChange(Change{Kind: ChangeUpdated, Message: m})
	}
}

package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/anonto42/campus-connect/backend/internal/models"
)

// Relation names a table whose changes are published on the feed
type Relation string

const (
	RelationMessages           Relation = "messages"
	RelationTypingStatus       Relation = "typing_status"
	RelationConnectionRequests Relation = "connection_requests"
	RelationNotifications      Relation = "notifications"
)

type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
)

var ErrMalformedEvent = errors.New("malformed change event")

// Event is a typed change on one relation
type Event interface {
	Relation() Relation
	Type() EventType
	// Name is the frame name pushed to live clients
	Name() string
	validate() error
}

type MessageInserted struct {
	Message models.Message
}

func (MessageInserted) Relation() Relation { return RelationMessages }
func (MessageInserted) Type() EventType    { return EventInsert }
func (MessageInserted) Name() string       { return "message_inserted" }
func (e MessageInserted) validate() error {
	if e.Message.ID == 0 || e.Message.SenderID == "" || e.Message.ReceiverID == "" {
		return fmt.Errorf("%w: message insert without id or participants", ErrMalformedEvent)
	}
	return nil
}

// MessageUpdated carries the seen-state of one message
type MessageUpdated struct {
	ID         uint       `json:"id"`
	SenderID   string     `json:"sender_id"`
	ReceiverID string     `json:"receiver_id"`
	Seen       bool       `json:"seen"`
	SeenAt     *time.Time `json:"seen_at"`
}

func (MessageUpdated) Relation() Relation { return RelationMessages }
func (MessageUpdated) Type() EventType    { return EventUpdate }
func (MessageUpdated) Name() string       { return "message_updated" }
func (e MessageUpdated) validate() error {
	if e.ID == 0 || e.SenderID == "" || e.ReceiverID == "" {
		return fmt.Errorf("%w: message update without id or participants", ErrMalformedEvent)
	}
	if e.Seen != (e.SeenAt != nil) {
		return fmt.Errorf("%w: seen and seen_at disagree", ErrMalformedEvent)
	}
	return nil
}

type TypingStatusChanged struct {
	Status models.TypingStatus
}

func (TypingStatusChanged) Relation() Relation { return RelationTypingStatus }
func (TypingStatusChanged) Type() EventType    { return EventUpdate }
func (TypingStatusChanged) Name() string       { return "typing_changed" }
func (e TypingStatusChanged) validate() error {
	if e.Status.UserID == "" || e.Status.ReceiverID == "" {
		return fmt.Errorf("%w: typing status without pair", ErrMalformedEvent)
	}
	return nil
}

type ConnectionRequestInserted struct {
	Request models.ConnectionRequest
}

func (ConnectionRequestInserted) Relation() Relation { return RelationConnectionRequests }
func (ConnectionRequestInserted) Type() EventType    { return EventInsert }
func (ConnectionRequestInserted) Name() string       { return "connection_request_inserted" }
func (e ConnectionRequestInserted) validate() error  { return validateRequest(e.Request) }

type ConnectionRequestUpdated struct {
	Request models.ConnectionRequest
}

func (ConnectionRequestUpdated) Relation() Relation { return RelationConnectionRequests }
func (ConnectionRequestUpdated) Type() EventType    { return EventUpdate }
func (ConnectionRequestUpdated) Name() string       { return "connection_request_updated" }
func (e ConnectionRequestUpdated) validate() error  { return validateRequest(e.Request) }

func validateRequest(r models.ConnectionRequest) error {
	if r.ID == 0 || r.SenderID == "" || r.ReceiverID == "" {
		return fmt.Errorf("%w: connection request without id or participants", ErrMalformedEvent)
	}
	return nil
}

type NotificationInserted struct {
	Notification models.Notification
}

func (NotificationInserted) Relation() Relation { return RelationNotifications }
func (NotificationInserted) Type() EventType    { return EventInsert }
func (NotificationInserted) Name() string       { return "notification_inserted" }
func (e NotificationInserted) validate() error  { return validateNotification(e.Notification) }

type NotificationUpdated struct {
	Notification models.Notification
}

func (NotificationUpdated) Relation() Relation { return RelationNotifications }
func (NotificationUpdated) Type() EventType    { return EventUpdate }
func (NotificationUpdated) Name() string       { return "notification_updated" }
func (e NotificationUpdated) validate() error  { return validateNotification(e.Notification) }

func validateNotification(n models.Notification) error {
	if n.ID == 0 || n.UserID == "" {
		return fmt.Errorf("%w: notification without id or recipient", ErrMalformedEvent)
	}
	return nil
}

// Envelope is the wire form of an Event
type Envelope struct {
	Relation Relation        `json:"relation"`
	Type     EventType       `json:"type"`
	Payload  json.RawMessage `json:"payload"`
}

func payloadOf(ev Event) interface{} {
	switch e := ev.(type) {
	case MessageInserted:
		return e.Message
	case MessageUpdated:
		return e
	case TypingStatusChanged:
		return e.Status
	case ConnectionRequestInserted:
		return e.Request
	case ConnectionRequestUpdated:
		return e.Request
	case NotificationInserted:
		return e.Notification
	case NotificationUpdated:
		return e.Notification
	}
	return nil
}

// Encode validates ev and serializes it into an envelope
func Encode(ev Event) ([]byte, error) {
	if err := ev.validate(); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(payloadOf(ev))
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Relation: ev.Relation(), Type: ev.Type(), Payload: payload})
}

// Decode parses an envelope into its typed event and validates it
func Decode(data []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	var ev Event
	var err error
	switch {
	case env.Relation == RelationMessages && env.Type == EventInsert:
		var e MessageInserted
		err = json.Unmarshal(env.Payload, &e.Message)
		ev = e
	case env.Relation == RelationMessages && env.Type == EventUpdate:
		var e MessageUpdated
		err = json.Unmarshal(env.Payload, &e)
		ev = e
	case env.Relation == RelationTypingStatus:
		var e TypingStatusChanged
		err = json.Unmarshal(env.Payload, &e.Status)
		ev = e
	case env.Relation == RelationConnectionRequests && env.Type == EventInsert:
		var e ConnectionRequestInserted
		err = json.Unmarshal(env.Payload, &e.Request)
		ev = e
	case env.Relation == RelationConnectionRequests && env.Type == EventUpdate:
		var e ConnectionRequestUpdated
		err = json.Unmarshal(env.Payload, &e.Request)
		ev = e
	case env.Relation == RelationNotifications && env.Type == EventInsert:
		var e NotificationInserted
		err = json.Unmarshal(env.Payload, &e.Notification)
		ev = e
	case env.Relation == RelationNotifications && env.Type == EventUpdate:
		var e NotificationUpdated
		err = json.Unmarshal(env.Payload, &e.Notification)
		ev = e
	default:
		return nil, fmt.Errorf("%w: unknown %s event on %q", ErrMalformedEvent, env.Type, env.Relation)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if err := ev.validate(); err != nil {
		return nil, err
	}
	return ev, nil
}

// Frame is what live clients receive
type Frame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

func FrameOf(ev Event) Frame {
	return Frame{Event: ev.Name(), Data: payloadOf(ev)}
}

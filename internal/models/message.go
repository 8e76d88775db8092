package models

import "time"

// Message is a direct message. SeenAt is set if and only if Seen is true.
type Message struct {
	ID         uint       `json:"id" gorm:"primaryKey"`
	SenderID   string     `json:"sender_id" gorm:"type:varchar(128);index:idx_message_pair;not null"`
	ReceiverID string     `json:"receiver_id" gorm:"type:varchar(128);index:idx_message_pair;not null"`
	Content    string     `json:"content" gorm:"type:text;not null"`
	Seen       bool       `json:"seen" gorm:"default:false;index"`
	SeenAt     *time.Time `json:"seen_at"`
	CreatedAt  time.Time  `json:"created_at" gorm:"index"`
}

// Between reports whether the message was exchanged by a and b in either direction
func (m *Message) Between(a, b string) bool {
	return (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a)
}

// SendMessageRequest defines the request body for sending a message
type SendMessageRequest struct {
	Content string `json:"content" validate:"required,max=4000"`
}

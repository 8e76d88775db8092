package models

import "time"

// TypingStatus holds one row per directed (typer, observer) pair
type TypingStatus struct {
	UserID     string    `json:"user_id" bson:"user_id" gorm:"primaryKey;type:varchar(128)"`
	ReceiverID string    `json:"receiver_id" bson:"receiver_id" gorm:"primaryKey;type:varchar(128)"`
	IsTyping   bool      `json:"is_typing" bson:"is_typing"`
	UpdatedAt  time.Time `json:"updated_at" bson:"updated_at" gorm:"index"`
}

func (TypingStatus) TableName() string {
	return "typing_statuses"
}

// ActiveAt reports whether the row still counts as typing at now, given the staleness ttl
func (s *TypingStatus) ActiveAt(now time.Time, ttl time.Duration) bool {
	return s.IsTyping && now.Sub(s.UpdatedAt) <= ttl
}

// SetTypingRequest defines the request body for updating typing state
type SetTypingRequest struct {
	IsTyping *bool `json:"is_typing" validate:"required"`
}

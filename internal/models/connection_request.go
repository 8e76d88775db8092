package models

import (
	"strings"
	"time"
)

type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusAccepted RequestStatus = "accepted"
	RequestStatusDeclined RequestStatus = "declined"
)

// ParseDecision accepts "accepted", "declined" and the legacy "rejected" alias
func ParseDecision(s string) (RequestStatus, bool) {
	switch RequestStatus(strings.ToLower(strings.TrimSpace(s))) {
	case RequestStatusAccepted:
		return RequestStatusAccepted, true
	case RequestStatusDeclined, "rejected":
		return RequestStatusDeclined, true
	}
	return "", false
}

// IsActive reports whether the status blocks a new request for the same pair
func (s RequestStatus) IsActive() bool {
	return s == RequestStatusPending || s == RequestStatusAccepted
}

// ConnectionRequest is a directed friend request. Rows are never deleted.
type ConnectionRequest struct {
	ID         uint          `json:"id" gorm:"primaryKey"`
	SenderID   string        `json:"sender_id" gorm:"type:varchar(128);index;not null"`
	ReceiverID string        `json:"receiver_id" gorm:"type:varchar(128);index;not null"`
	Status     RequestStatus `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// OtherParty returns the participant that is not userID
func (r *ConnectionRequest) OtherParty(userID string) string {
	if r.SenderID == userID {
		return r.ReceiverID
	}
	return r.SenderID
}

// CreateConnectionRequest defines the request body for sending a friend request
type CreateConnectionRequest struct {
	ReceiverID string `json:"receiver_id" validate:"required"`
}

// RespondConnectionRequest defines the request body for accepting/declining a friend request
type RespondConnectionRequest struct {
	Decision string `json:"decision" validate:"required,oneof=accepted declined rejected"`
}

package models

import (
	"fmt"
	"time"
)

type NotificationType string

const (
	NotificationMessage        NotificationType = "message"
	NotificationFriendRequest  NotificationType = "friend_request"
	NotificationJobApplication NotificationType = "job_application"
	NotificationOther          NotificationType = "other"
)

// Notification is a derived, user-facing event. Unread message notifications from the
// same sender collapse into one row whose Count grows.
type Notification struct {
	ID        uint             `json:"id" gorm:"primaryKey"`
	UserID    string           `json:"user_id" gorm:"type:varchar(128);index:idx_notification_lookup;not null"`
	SenderID  string           `json:"sender_id" gorm:"type:varchar(128);index:idx_notification_lookup"`
	Type      NotificationType `json:"type" gorm:"type:varchar(30);index:idx_notification_lookup"`
	RelatedID string           `json:"related_id"`
	Content   string           `json:"content"`
	Count     int              `json:"count" gorm:"not null;default:1"`
	IsRead    bool             `json:"is_read" gorm:"default:false;index:idx_notification_lookup"`
	CreatedAt time.Time        `json:"created_at" gorm:"index"`
}

// MessageNotificationContent renders the text for count messages from displayName
func MessageNotificationContent(displayName string, count int) string {
	if count <= 1 {
		return fmt.Sprintf("%s sent you a message", displayName)
	}
	return fmt.Sprintf("%s sent you %d messages", displayName, count)
}

func FriendRequestNotificationContent(displayName string) string {
	return fmt.Sprintf("%s sent you a friend request", displayName)
}

// RespondNotificationRequest defines the request body for resolving a friend request notification
type RespondNotificationRequest struct {
	SenderID string `json:"sender_id"`
	Decision string `json:"decision" validate:"required,oneof=accepted declined rejected"`
}

// ClosePanelRequest carries the timestamp captured when the notification panel was opened
type ClosePanelRequest struct {
	OpenedAt time.Time `json:"opened_at" validate:"required"`
}

package repositories

import (
	"context"
	"time"

	"github.com/anonto42/campus-connect/backend/internal/models"
	"gorm.io/gorm"
)

const notificationListLimit = 50

// NotificationRepository defines the interface for notification operations
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	GetByID(ctx context.Context, id uint) (*models.Notification, error)
	IncrementUnreadMessage(ctx context.Context, userID, senderID string, at time.Time, render func(count int) string) (*models.Notification, error)
	ListByReadState(ctx context.Context, userID string, read bool) ([]models.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, id uint) error
	MarkReadUpTo(ctx context.Context, userID string, ts time.Time) (int64, error)
}

type postgresNotificationRepository struct {
	db *gorm.DB
}

func NewPostgresNotificationRepository(db *gorm.DB) NotificationRepository {
	return &postgresNotificationRepository{db: db}
}

func (r *postgresNotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	if notification.Count < 1 {
		notification.Count = 1
	}
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *postgresNotificationRepository) GetByID(ctx context.Context, id uint) (*models.Notification, error) {
	var n models.Notification
	if err := r.db.WithContext(ctx).First(&n, id).Error; err != nil {
		return nil, translate(err)
	}
	return &n, nil
}

// IncrementUnreadMessage bumps the unread message notification from senderID to userID and
// rewrites its content for the new count. It returns ErrNotFound when there is none to bump.
// Callers serialize per (userID, senderID).
func (r *postgresNotificationRepository) IncrementUnreadMessage(ctx context.Context, userID, senderID string, at time.Time, render func(count int) string) (*models.Notification, error) {
	var updated models.Notification
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		unread := tx.Model(&models.Notification{}).
			Where("user_id = ? AND sender_id = ? AND type = ? AND is_read = ?", userID, senderID, models.NotificationMessage, false)

		result := unread.Updates(map[string]interface{}{
			"count":      gorm.Expr("count + 1"),
			"created_at": at,
		})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}

		if err := tx.Where("user_id = ? AND sender_id = ? AND type = ? AND is_read = ?", userID, senderID, models.NotificationMessage, false).
			Order("id DESC").
			First(&updated).Error; err != nil {
			return err
		}
		updated.Content = render(updated.Count)
		return tx.Model(&models.Notification{}).Where("id = ?", updated.ID).Update("content", updated.Content).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	return &updated, nil
}

// ListByReadState returns the newest notifications in one partition
func (r *postgresNotificationRepository) ListByReadState(ctx context.Context, userID string, read bool) ([]models.Notification, error) {
	notifications := []models.Notification{}
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_read = ?", userID, read).
		Order("created_at DESC, id DESC").
		Limit(notificationListLimit).
		Find(&notifications).Error
	return notifications, err
}

func (r *postgresNotificationRepository) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ? AND is_read = ?", userID, false).Count(&count).Error
	return count, err
}

func (r *postgresNotificationRepository) MarkRead(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&models.Notification{}).Where("id = ?", id).Update("is_read", true).Error
}

// MarkReadUpTo marks the user's unread notifications created at or before ts
func (r *postgresNotificationRepository) MarkReadUpTo(ctx context.Context, userID string, ts time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ? AND created_at <= ?", userID, false, ts).
		Update("is_read", true)
	return result.RowsAffected, result.Error
}

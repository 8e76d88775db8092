package repositories

import (
	"context"
	"time"

	"github.com/anonto42/campus-connect/backend/internal/models"
	"gorm.io/gorm"
)

// MessageRepository defines the interface for direct message data operations
type MessageRepository interface {
	Create(ctx context.Context, msg *models.Message) error
	ListBetween(ctx context.Context, a, b string) ([]models.Message, error)
	MarkSeen(ctx context.Context, senderID, receiverID string, at time.Time) ([]models.Message, error)
}

// PostgresMessageRepository implements MessageRepository for PostgreSQL
type PostgresMessageRepository struct {
	db *gorm.DB
}

// NewPostgresMessageRepository creates a new PostgresMessageRepository
func NewPostgresMessageRepository(db *gorm.DB) *PostgresMessageRepository {
	return &PostgresMessageRepository{db: db}
}

func (r *PostgresMessageRepository) Create(ctx context.Context, msg *models.Message) error {
	msg.Seen = false
	msg.SeenAt = nil
	return r.db.WithContext(ctx).Create(msg).Error
}

// ListBetween returns the pair's messages in both directions, oldest first
func (r *PostgresMessageRepository) ListBetween(ctx context.Context, a, b string) ([]models.Message, error) {
	messages := []models.Message{}
	err := betweenPair(r.db.WithContext(ctx), a, b).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	return messages, err
}

// MarkSeen flips every unseen message from senderID to receiverID and returns the rows it changed
func (r *PostgresMessageRepository) MarkSeen(ctx context.Context, senderID, receiverID string, at time.Time) ([]models.Message, error) {
	var changed []models.Message
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var unseen []models.Message
		if err := tx.Where("sender_id = ? AND receiver_id = ? AND seen = ?", senderID, receiverID, false).
			Order("created_at ASC, id ASC").
			Find(&unseen).Error; err != nil {
			return err
		}
		if len(unseen) == 0 {
			return nil
		}

		ids := make([]uint, len(unseen))
		for i := range unseen {
			ids[i] = unseen[i].ID
		}
		if err := tx.Model(&models.Message{}).
			Where("id IN ? AND seen = ?", ids, false).
			Updates(map[string]interface{}{"seen": true, "seen_at": at}).Error; err != nil {
			return err
		}

		for i := range unseen {
			unseen[i].Seen = true
			seenAt := at
			unseen[i].SeenAt = &seenAt
		}
		changed = unseen
		return nil
	})
	return changed, err
}

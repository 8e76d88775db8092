package repositories

import (
	"context"
	"time"

	"github.com/anonto42/campus-connect/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TypingRepository stores one typing row per directed (typer, observer) pair
type TypingRepository interface {
	Upsert(ctx context.Context, status *models.TypingStatus) error
	Get(ctx context.Context, userID, receiverID string) (*models.TypingStatus, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// PostgresTypingRepository implements TypingRepository for PostgreSQL
type PostgresTypingRepository struct {
	db *gorm.DB
}

// NewPostgresTypingRepository creates a new PostgresTypingRepository
func NewPostgresTypingRepository(db *gorm.DB) *PostgresTypingRepository {
	return &PostgresTypingRepository{db: db}
}

func (r *PostgresTypingRepository) Upsert(ctx context.Context, status *models.TypingStatus) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "receiver_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_typing", "updated_at"}),
	}).Create(status).Error
}

func (r *PostgresTypingRepository) Get(ctx context.Context, userID, receiverID string) (*models.TypingStatus, error) {
	var status models.TypingStatus
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND receiver_id = ?", userID, receiverID).
		First(&status).Error
	if err != nil {
		return nil, translate(err)
	}
	return &status, nil
}

func (r *PostgresTypingRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("updated_at < ?", cutoff).Delete(&models.TypingStatus{})
	return result.RowsAffected, result.Error
}

package repositories

import (
	"context"

	"github.com/anonto42/campus-connect/backend/internal/models"
	"gorm.io/gorm"
)

// ConnectionRepository defines the interface for connection request data operations
type ConnectionRepository interface {
	CreateIfNoActive(ctx context.Context, req *models.ConnectionRequest) (bool, error)
	GetByID(ctx context.Context, id uint) (*models.ConnectionRequest, error)
	GetByIDs(ctx context.Context, ids []uint) ([]models.ConnectionRequest, error)
	FindActiveBetween(ctx context.Context, a, b string) (*models.ConnectionRequest, error)
	FindPending(ctx context.Context, senderID, receiverID string) (*models.ConnectionRequest, error)
	ListAccepted(ctx context.Context, userID string) ([]models.ConnectionRequest, error)
	ListIncomingPending(ctx context.Context, userID string) ([]models.ConnectionRequest, error)
	ListSentPending(ctx context.Context, userID string) ([]models.ConnectionRequest, error)
	UpdateStatusIfPending(ctx context.Context, id uint, status models.RequestStatus) (bool, error)
}

// PostgresConnectionRepository implements ConnectionRepository for PostgreSQL
type PostgresConnectionRepository struct {
	db *gorm.DB
}

// NewPostgresConnectionRepository creates a new PostgresConnectionRepository
func NewPostgresConnectionRepository(db *gorm.DB) *PostgresConnectionRepository {
	return &PostgresConnectionRepository{db: db}
}

var activeStatuses = []models.RequestStatus{models.RequestStatusPending, models.RequestStatusAccepted}

func betweenPair(db *gorm.DB, a, b string) *gorm.DB {
	return db.Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", a, b, b, a)
}

// CreateIfNoActive inserts req as pending unless the unordered pair already has a pending or
// accepted request. It reports whether the row was created. The check and insert are not
// atomic under READ COMMITTED, so callers serialize creation per pair.
func (r *PostgresConnectionRepository) CreateIfNoActive(ctx context.Context, req *models.ConnectionRequest) (bool, error) {
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := betweenPair(tx.Model(&models.ConnectionRequest{}), req.SenderID, req.ReceiverID).
			Where("status IN ?", activeStatuses).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return nil
		}

		req.Status = models.RequestStatusPending
		if err := tx.Create(req).Error; err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, err
}

func (r *PostgresConnectionRepository) GetByID(ctx context.Context, id uint) (*models.ConnectionRequest, error) {
	var req models.ConnectionRequest
	if err := r.db.WithContext(ctx).First(&req, id).Error; err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

func (r *PostgresConnectionRepository) GetByIDs(ctx context.Context, ids []uint) ([]models.ConnectionRequest, error) {
	requests := []models.ConnectionRequest{}
	if len(ids) == 0 {
		return requests, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *PostgresConnectionRepository) FindActiveBetween(ctx context.Context, a, b string) (*models.ConnectionRequest, error) {
	var req models.ConnectionRequest
	err := betweenPair(r.db.WithContext(ctx), a, b).
		Where("status IN ?", activeStatuses).
		Order("id DESC").
		First(&req).Error
	if err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

// FindPending returns the newest pending request from senderID to receiverID
func (r *PostgresConnectionRepository) FindPending(ctx context.Context, senderID, receiverID string) (*models.ConnectionRequest, error) {
	var req models.ConnectionRequest
	err := r.db.WithContext(ctx).
		Where("sender_id = ? AND receiver_id = ? AND status = ?", senderID, receiverID, models.RequestStatusPending).
		Order("id DESC").
		First(&req).Error
	if err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

// ListAccepted retrieves accepted requests where the user is either party
func (r *PostgresConnectionRepository) ListAccepted(ctx context.Context, userID string) ([]models.ConnectionRequest, error) {
	requests := []models.ConnectionRequest{}
	err := r.db.WithContext(ctx).
		Where("(sender_id = ? OR receiver_id = ?) AND status = ?", userID, userID, models.RequestStatusAccepted).
		Order("updated_at DESC").
		Find(&requests).Error
	return requests, err
}

func (r *PostgresConnectionRepository) ListIncomingPending(ctx context.Context, userID string) ([]models.ConnectionRequest, error) {
	requests := []models.ConnectionRequest{}
	err := r.db.WithContext(ctx).
		Where("receiver_id = ? AND status = ?", userID, models.RequestStatusPending).
		Order("created_at DESC, id DESC").
		Find(&requests).Error
	return requests, err
}

func (r *PostgresConnectionRepository) ListSentPending(ctx context.Context, userID string) ([]models.ConnectionRequest, error) {
	requests := []models.ConnectionRequest{}
	err := r.db.WithContext(ctx).
		Where("sender_id = ? AND status = ?", userID, models.RequestStatusPending).
		Order("created_at DESC, id DESC").
		Find(&requests).Error
	return requests, err
}

// UpdateStatusIfPending transitions a pending request. It reports false when the request is
// no longer pending, and ErrNotFound when it does not exist.
func (r *PostgresConnectionRepository) UpdateStatusIfPending(ctx context.Context, id uint, status models.RequestStatus) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.ConnectionRequest{}).
		Where("id = ? AND status = ?", id, models.RequestStatusPending).
		Update("status", status)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected > 0 {
		return true, nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.ConnectionRequest{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	if count == 0 {
		return false, ErrNotFound
	}
	return false, nil
}

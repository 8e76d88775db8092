package repositories

import (
	"context"
	"strings"

	"github.com/anonto42/campus-connect/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]models.User, error)
	Upsert(ctx context.Context, user *models.User) error
	SearchByPrefix(ctx context.Context, prefix, excludeID string, includeFirstName bool, limit int) ([]models.User, error)
}

// PostgresUserRepository implements UserRepository for PostgreSQL
type PostgresUserRepository struct {
	db *gorm.DB
}

// NewPostgresUserRepository creates a new PostgresUserRepository
func NewPostgresUserRepository(db *gorm.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// GetByIDs returns the users that exist among ids, in no particular order
func (r *PostgresUserRepository) GetByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	users := []models.User{}
	if len(ids) == 0 {
		return users, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// Upsert creates the user or refreshes the profile fields mirrored from the identity provider.
// Empty fields never overwrite stored values.
func (r *PostgresUserRepository) Upsert(ctx context.Context, user *models.User) error {
	columns := []string{"updated_at"}
	if user.Email != "" {
		columns = append(columns, "email")
	}
	if user.FirstName != "" || user.LastName != "" {
		columns = append(columns, "first_name", "last_name")
	}
	if user.ImageURL != "" {
		columns = append(columns, "image_url")
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(user).Error
}

// likeEscaper makes %, _ and the escape character itself match literally
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// SearchByPrefix matches a lowercase prefix against email, and first name when asked.
// The prefix is matched literally.
func (r *PostgresUserRepository) SearchByPrefix(ctx context.Context, prefix, excludeID string, includeFirstName bool, limit int) ([]models.User, error) {
	users := []models.User{}
	pattern := likeEscaper.Replace(prefix) + "%"

	query := r.db.WithContext(ctx).Where("id <> ?", excludeID)
	if includeFirstName {
		query = query.Where(`LOWER(email) LIKE ? ESCAPE '\' OR LOWER(first_name) LIKE ? ESCAPE '\'`, pattern, pattern)
	} else {
		query = query.Where(`LOWER(email) LIKE ? ESCAPE '\'`, pattern)
	}
	if err := query.Order("email ASC").Limit(limit).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

package services

import (
	"context"
	"strings"

	"github.com/anonto42/campus-connect/backend/internal/models"
	"github.com/anonto42/campus-connect/backend/internal/repositories"
	apperrors "github.com/anonto42/campus-connect/backend/pkg/errors"
	"github.com/anonto42/campus-connect/backend/pkg/security"
)

// UserService mirrors identity-provider profiles into the users table
type UserService struct {
	users repositories.UserRepository
}

func NewUserService(users repositories.UserRepository) *UserService {
	return &UserService{users: users}
}

func (s *UserService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, apperrors.ErrMissingIdentity
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.DataAccess(err, "failed to fetch user")
	}
	return user, nil
}

// SyncProfile creates the user on first sight or refreshes the mirrored fields. displayName
// fills the name when the provider has no structured one.
func (s *UserService) SyncProfile(ctx context.Context, profile models.User, displayName string) (*models.User, error) {
	if profile.ID == "" {
		return nil, apperrors.ErrMissingIdentity
	}
	profile.Email = strings.ToLower(strings.TrimSpace(profile.Email))
	profile.FirstName = security.SanitizeDisplayName(profile.FirstName)
	profile.LastName = security.SanitizeDisplayName(profile.LastName)
	if profile.FirstName == "" && profile.LastName == "" {
		profile.FirstName, profile.LastName = splitDisplayName(security.SanitizeDisplayName(displayName))
	}
	if err := s.users.Upsert(ctx, &profile); err != nil {
		return nil, apperrors.DataAccess(err, "failed to sync user profile")
	}
	return &profile, nil
}

// splitDisplayName breaks a provider display name into first and last name
func splitDisplayName(name string) (string, string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ""
	}
	first, last, _ := strings.Cut(name, " ")
	return first, strings.TrimSpace(last)
}

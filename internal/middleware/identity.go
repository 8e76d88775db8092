package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/anonto42/campus-connect/backend/internal/models"
	"github.com/anonto42/campus-connect/backend/pkg/logger"
	"github.com/labstack/echo/v4"
)

// UserIDKey is the echo context key holding the authenticated user's id
const UserIDKey = "userID"

// ProfileSyncer mirrors an authenticated identity into the users table
type ProfileSyncer interface {
	SyncProfile(ctx context.Context, profile models.User, displayName string) (*models.User, error)
}

// bearerToken reads the token from the Authorization header, or from the token query
// parameter for websocket clients that cannot set headers
func bearerToken(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		if token := c.QueryParam("token"); token != "" {
			return token, nil
		}
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Authorization header is missing")
	}

	tokenParts := strings.Split(authHeader, " ")
	if len(tokenParts) != 2 || strings.ToLower(tokenParts[0]) != "bearer" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Authorization header must be in Bearer format")
	}
	return tokenParts[1], nil
}

// mirror syncs each uid once per process
type mirror struct {
	syncer ProfileSyncer
	seen   sync.Map
}

func (m *mirror) ensure(ctx context.Context, profile models.User, displayName string) error {
	if m.syncer == nil {
		return nil
	}
	if _, ok := m.seen.Load(profile.ID); ok {
		return nil
	}
	if _, err := m.syncer.SyncProfile(ctx, profile, displayName); err != nil {
		logger.Error("Failed to mirror user", "user_id", profile.ID, "error", err)
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Failed to load user profile")
	}
	m.seen.Store(profile.ID, struct{}{})
	return nil
}

// UserID returns the authenticated user's id, or "" outside the auth middleware
func UserID(c echo.Context) string {
	id, _ := c.Get(UserIDKey).(string)
	return id
}

package middleware

import (
	"context"
	"net/http"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/campus-connect/backend/internal/models"
	"github.com/anonto42/campus-connect/backend/pkg/logger"
	"github.com/labstack/echo/v4"
)

// TokenVerifier is satisfied by *auth.Client
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// FirebaseAuthMiddleware creates an Echo middleware to verify Firebase ID tokens. The first
// request from a uid mirrors its profile into users.
func FirebaseAuthMiddleware(verifier TokenVerifier, syncer ProfileSyncer) echo.MiddlewareFunc {
	m := &mirror{syncer: syncer}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			idToken, err := bearerToken(c)
			if err != nil {
				return err
			}

			token, err := verifier.VerifyIDToken(c.Request().Context(), idToken)
			if err != nil {
				logger.Debug("Rejected ID token", "error", err)
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired ID token")
			}

			profile := models.User{
				ID:       token.UID,
				Email:    claimString(token.Claims, "email"),
				ImageURL: claimString(token.Claims, "picture"),
			}
			if err := m.ensure(c.Request().Context(), profile, claimString(token.Claims, "name")); err != nil {
				return err
			}

			c.Set(UserIDKey, token.UID)
			c.Set("firebaseToken", token)
			return next(c)
		}
	}
}

func claimString(claims map[string]interface{}, key string) string {
	v, _ := claims[key].(string)
	return v
}

package middleware

import (
	"errors"
	"net/http"

	"github.com/anonto42/campus-connect/backend/internal/models"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

// JWTAuthMiddleware checks for a valid HS256 token signed with secret. It stands in for
// Firebase in local development.
func JWTAuthMiddleware(secret string, syncer ProfileSyncer) echo.MiddlewareFunc {
	m := &mirror{syncer: syncer}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString, err := bearerToken(c)
			if err != nil {
				return err
			}

			claims := &models.JwtCustomClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.NewHTTPError(http.StatusUnauthorized, "Unexpected signing method")
				}
				return []byte(secret), nil
			})
			if err != nil {
				if errors.Is(err, jwt.ErrSignatureInvalid) {
					return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token signature")
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
			}
			if !token.Valid || claims.UserID == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
			}

			if err := m.ensure(c.Request().Context(), models.User{ID: claims.UserID, Email: claims.Email}, ""); err != nil {
				return err
			}

			c.Set(UserIDKey, claims.UserID)
			c.Set("user", claims)
			return next(c)
		}
	}
}

package handlers

import (
	"net/http"
	"strconv"

	"github.com/anonto42/campus-connect/backend/internal/models"
	"github.com/anonto42/campus-connect/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// UserHandler handles HTTP requests related to users
type UserHandler struct {
	users       *services.UserService
	connections *services.ConnectionService
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(users *services.UserService, connections *services.ConnectionService) *UserHandler {
	return &UserHandler{users: users, connections: connections}
}

// RegisterUserRoutes registers profile and search routes
func (h *UserHandler) RegisterUserRoutes(g *echo.Group) {
	g.GET("/me", h.GetProfile)
	g.GET("/users/search", h.SearchUsers)
}

// GetProfile retrieves the authenticated user's profile
func (h *UserHandler) GetProfile(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	user, err := h.users.GetProfile(c.Request().Context(), userID)
	if err != nil {
		return httpError(c, err)
	}
	return success(c, http.StatusOK, echo.Map{"user": user, "tags": user.Tags()})
}

// SearchUsers matches an email prefix, and a first-name prefix when first_name=true
func (h *UserHandler) SearchUsers(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	includeFirstName, _ := strconv.ParseBool(c.QueryParam("first_name"))

	users, err := h.connections.SearchUsers(c.Request().Context(), c.QueryParam("q"), userID, limit, includeFirstName)
	if err != nil {
		return httpError(c, err)
	}

	results := make([]models.UserCompact, 0, len(users))
	for i := range users {
		results = append(results, users[i].ToCompact())
	}
	return success(c, http.StatusOK, echo.Map{"users": results})
}

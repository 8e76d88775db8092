package handlers

import (
	"net/http"

	"github.com/anonto42/campus-connect/backend/internal/models"
	"github.com/anonto42/campus-connect/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// NotificationHandler handles notification-related HTTP requests
type NotificationHandler struct {
	notifications *services.NotificationService
	users         *services.UserService
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notifications *services.NotificationService, users *services.UserService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, users: users}
}

// RegisterNotificationRoutes registers notification routes
func (h *NotificationHandler) RegisterNotificationRoutes(g *echo.Group) {
	g.GET("/notifications", h.GetNotifications)
	g.GET("/notifications/unread-count", h.GetUnreadCount)
	g.POST("/notifications/panel/open", h.OpenPanel)
	g.POST("/notifications/panel/close", h.ClosePanel)
	g.PUT("/notifications/:id/read", h.MarkAsRead)
	g.POST("/notifications/:id/respond", h.Respond)
}

// EnrichedNotification includes actor info
type EnrichedNotification struct {
	services.NotificationItem
	Actor *models.UserCompact `json:"actor,omitempty"`
}

func (h *NotificationHandler) enrichNotifications(c echo.Context, items []services.NotificationItem) []EnrichedNotification {
	enriched := make([]EnrichedNotification, len(items))
	userCache := make(map[string]*models.UserCompact)

	for i, n := range items {
		enriched[i] = EnrichedNotification{NotificationItem: n}
		if n.SenderID == "" {
			continue
		}
		actor, ok := userCache[n.SenderID]
		if !ok {
			if user, err := h.users.GetProfile(c.Request().Context(), n.SenderID); err == nil {
				compact := user.ToCompact()
				actor = &compact
			}
			userCache[n.SenderID] = actor
		}
		enriched[i].Actor = actor
	}
	return enriched
}

// GetNotifications returns one read partition, newest first. state defaults to unread.
func (h *NotificationHandler) GetNotifications(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	var items []services.NotificationItem
	switch c.QueryParam("state") {
	case "", "unread":
		items, err = h.notifications.ListUnread(c.Request().Context(), userID)
	case "read":
		items, err = h.notifications.ListRead(c.Request().Context(), userID)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "state must be unread or read")
	}
	if err != nil {
		return httpError(c, err)
	}
	return success(c, http.StatusOK, echo.Map{"notifications": h.enrichNotifications(c, items)})
}

// GetUnreadCount returns the unread notification count
func (h *NotificationHandler) GetUnreadCount(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	count, err := h.notifications.UnreadCount(c.Request().Context(), userID)
	if err != nil {
		return httpError(c, err)
	}
	return success(c, http.StatusOK, echo.Map{"count": count})
}

// OpenPanel returns the timestamp the client sends back when the panel closes
func (h *NotificationHandler) OpenPanel(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	openedAt, err := h.notifications.OpenPanel(c.Request().Context(), userID)
	if err != nil {
		return httpError(c, err)
	}
	return success(c, http.StatusOK, echo.Map{"opened_at": openedAt})
}

// ClosePanel marks read everything that was visible when the panel opened
func (h *NotificationHandler) ClosePanel(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	var req models.ClosePanelRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	marked, err := h.notifications.ClosePanel(c.Request().Context(), userID, req.OpenedAt)
	if err != nil {
		return httpError(c, err)
	}
	return success(c, http.StatusOK, echo.Map{"marked": marked})
}

// MarkAsRead marks a notification as read
func (h *NotificationHandler) MarkAsRead(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	notificationID, err := parseID(c, "id")
	if err != nil {
		return err
	}

	n, err := h.notifications.MarkRead(c.Request().Context(), userID, notificationID)
	if err != nil {
		return httpError(c, err)
	}
	return success(c, http.StatusOK, n)
}

// Respond accepts or declines the friend request behind a notification
func (h *NotificationHandler) Respond(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	notificationID, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var req models.RespondNotificationRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	resolved, err := h.notifications.RespondAndResolve(c.Request().Context(), userID, notificationID, req.SenderID, req.Decision)
	if err != nil {
		return httpError(c, err)
	}
	return success(c, http.StatusOK, resolved)
}

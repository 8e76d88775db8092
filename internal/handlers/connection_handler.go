package handlers

import (
	"net/http"

	"github.com/anonto42/campus-connect/backend/internal/models"
	"github.com/anonto42/campus-connect/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// ConnectionHandler handles HTTP requests related to friend requests and connections
type ConnectionHandler struct {
	connections *services.ConnectionService
}

// NewConnectionHandler creates a new ConnectionHandler
func NewConnectionHandler(connections *services.ConnectionService) *ConnectionHandler {
	return &ConnectionHandler{connections: connections}
}

// RegisterConnectionRoutes registers connection-related routes
func (h *ConnectionHandler) RegisterConnectionRoutes(g *echo.Group) {
	g.GET("/connections", h.GetConnections)
	g.GET("/connections/requests/incoming", h.GetIncomingRequests)
	g.GET("/connections/requests/sent", h.GetSentRequests)
	g.POST("/connections/requests", h.SendRequest)
	g.PUT("/connections/requests/:id", h.RespondToRequest)
}

// GetConnections lists the users the caller is connected to
func (h *ConnectionHandler) GetConnections(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	users, err := h.connections.ListConnections(c.Request().Context(), userID)
	if err != nil {
		return httpError(c, err)
	}
	compact := make([]models.UserCompact, 0, len(users))
	for i := range users {
		compact = append(compact, users[i].ToCompact())
	}
	return success(c, http.StatusOK, echo.Map{"connections": compact})
}

// GetIncomingRequests lists pending requests sent to the caller, newest first
func (h *ConnectionHandler) GetIncomingRequests(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	requests, err := h.connections.ListIncomingRequests(c.Request().Context(), userID)
	if err != nil {
		return httpError(c, err)
	}
	return success(c, http.StatusOK, echo.Map{"requests": requests})
}

// GetSentRequests lists the receivers of the caller's pending requests
func (h *ConnectionHandler) GetSentRequests(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	receivers, err := h.connections.ListSentPending(c.Request().Context(), userID)
	if err != nil {
		return httpError(c, err)
	}
	return success(c, http.StatusOK, echo.Map{"receiver_ids": receivers})
}

// SendRequest handles sending a friend request
func (h *ConnectionHandler) SendRequest(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	var req models.CreateConnectionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	created, err := h.connections.SendRequest(c.Request().Context(), userID, req.ReceiverID)
	if err != nil {
		return httpError(c, err)
	}
	return success(c, http.StatusCreated, created)
}

// RespondToRequest accepts or declines a request addressed to the caller
func (h *ConnectionHandler) RespondToRequest(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	requestID, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var req models.RespondConnectionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	updated, err := h.connections.RespondToRequest(c.Request().Context(), userID, requestID, req.Decision)
	if err != nil {
		return httpError(c, err)
	}
	return success(c, http.StatusOK, updated)
}

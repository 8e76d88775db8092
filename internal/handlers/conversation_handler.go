package handlers

import (
	"net/http"

	"github.com/anonto42/campus-connect/backend/internal/models"
	"github.com/anonto42/campus-connect/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// ConversationHandler handles direct messages and typing state
type ConversationHandler struct {
	conversations *services.ConversationService
	presence      *services.PresenceService
}

// NewConversationHandler creates a new ConversationHandler
func NewConversationHandler(conversations *services.ConversationService, presence *services.PresenceService) *ConversationHandler {
	return &ConversationHandler{conversations: conversations, presence: presence}
}

// RegisterConversationRoutes registers message and typing routes
func (h *ConversationHandler) RegisterConversationRoutes(g *echo.Group) {
	g.GET("/conversations/:peerID/messages", h.GetMessages)
	g.POST("/conversations/:peerID/messages", h.SendMessage)
	g.POST("/conversations/:peerID/seen", h.MarkSeen)
	g.PUT("/conversations/:peerID/typing", h.SetTyping)
	g.GET("/conversations/:peerID/typing", h.GetPeerTyping)
}

// GetMessages returns the history with a peer, oldest first
func (h *ConversationHandler) GetMessages(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	messages, err := h.conversations.LoadHistory(c.Request().Context(), userID, c.Param("peerID"))
	if err != nil {
		return httpError(c, err)
	}
	return success(c, http.StatusOK, echo.Map{"messages": messages})
}

func (h *ConversationHandler) SendMessage(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	var req models.SendMessageRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	msg, err := h.conversations.SendMessage(c.Request().Context(), userID, c.Param("peerID"), req.Content)
	if err != nil {
		return httpError(c, err)
	}
	return success(c, http.StatusCreated, msg)
}

// MarkSeen marks the peer's messages to the caller as seen
func (h *ConversationHandler) MarkSeen(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	affected, err := h.conversations.MarkSeen(c.Request().Context(), userID, c.Param("peerID"))
	if err != nil {
		return httpError(c, err)
	}
	return success(c, http.StatusOK, echo.Map{"affected": affected})
}

func (h *ConversationHandler) SetTyping(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	var req models.SetTypingRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.presence.SetTyping(c.Request().Context(), userID, c.Param("peerID"), *req.IsTyping); err != nil {
		return httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GetPeerTyping reports whether the peer is typing to the caller right now
func (h *ConversationHandler) GetPeerTyping(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	typing, err := h.presence.PeerTyping(c.Request().Context(), userID, c.Param("peerID"))
	if err != nil {
		return httpError(c, err)
	}
	return success(c, http.StatusOK, echo.Map{"is_typing": typing})
}

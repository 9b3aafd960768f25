package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/fathima-sithara/teamchat-service/internal/middleware"
	"github.com/fathima-sithara/teamchat-service/internal/models"
	"github.com/fathima-sithara/teamchat-service/internal/store"
	"github.com/fathima-sithara/teamchat-service/internal/ws"
)

type PresenceHandler struct {
	presence *store.PresenceStore
	hub      ws.Broadcaster
	log      *zap.SugaredLogger
}

func NewPresenceHandler(presence *store.PresenceStore, hub ws.Broadcaster, log *zap.SugaredLogger) *PresenceHandler {
	return &PresenceHandler{presence: presence, hub: hub, log: log}
}

func (h *PresenceHandler) SetPresence(c *fiber.Ctx) error {
	var req struct {
		Status     models.PresenceStatus `json:"status"`
		StatusText *string               `json:"status_text"`
	}
	if err := c.BodyParser(&req); err != nil || req.Status == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "status required"})
	}
	userID := middleware.UserID(c)
	presence, err := h.presence.SetPresence(c.Context(), userID, req.Status, req.StatusText)
	if err != nil {
		return respondErr(c, h.log, err)
	}

	statusText := ""
	if req.StatusText != nil {
		statusText = *req.StatusText
	}
	h.hub.BroadcastAll(ws.NewEnvelope(ws.EventPresence, ws.PresenceEvent{
		UserID:     userID,
		Status:     string(req.Status),
		StatusText: statusText,
	}))
	return c.JSON(presence)
}

func (h *PresenceHandler) GetPresence(c *fiber.Ctx) error {
	presence, err := h.presence.GetPresence(c.Context(), c.Params("userId"))
	if err != nil {
		return respondErr(c, h.log, err)
	}
	return c.JSON(presence)
}

package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/fathima-sithara/teamchat-service/internal/apperr"
	"github.com/fathima-sithara/teamchat-service/internal/events"
	"github.com/fathima-sithara/teamchat-service/internal/middleware"
	"github.com/fathima-sithara/teamchat-service/internal/models"
	"github.com/fathima-sithara/teamchat-service/internal/store"
	"github.com/fathima-sithara/teamchat-service/internal/ws"
)

type ChatHandler struct {
	chats    *store.ChatStore
	hub      ws.Broadcaster
	producer *events.Publisher
	log      *zap.SugaredLogger
}

func NewChatHandler(chats *store.ChatStore, hub ws.Broadcaster, producer *events.Publisher, log *zap.SugaredLogger) *ChatHandler {
	return &ChatHandler{chats: chats, hub: hub, producer: producer, log: log}
}

// respondErr maps the error taxonomy to transport status codes. Anything
// unknown is an upstream failure and stays generic.
func respondErr(c *fiber.Ctx, log *zap.SugaredLogger, err error) error {
	switch {
	case errors.Is(err, apperr.ErrInvalidInput):
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	case errors.Is(err, apperr.ErrForbidden):
		return c.Status(http.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
	case errors.Is(err, apperr.ErrNotFound):
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	default:
		log.Errorw("request failed", "path", c.Path(), "err", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
}

func (h *ChatHandler) ListChats(c *fiber.Ctx) error {
	chats, err := h.chats.ListChats(c.Context(), middleware.UserID(c))
	if err != nil {
		return respondErr(c, h.log, err)
	}
	return c.JSON(chats)
}

func (h *ChatHandler) GetChat(c *fiber.Ctx) error {
	chat, err := h.chats.GetChat(c.Context(), c.Params("chatId"), middleware.UserID(c))
	if err != nil {
		return respondErr(c, h.log, err)
	}
	return c.JSON(chat)
}

func (h *ChatHandler) CreateDirectChat(c *fiber.Ctx) error {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.UserID == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "user_id required"})
	}
	chat, err := h.chats.GetOrCreateDirectChat(c.Context(), middleware.UserID(c), req.UserID)
	if err != nil {
		return respondErr(c, h.log, err)
	}
	return c.Status(http.StatusCreated).JSON(chat)
}

func (h *ChatHandler) CreateGroupChat(c *fiber.Ctx) error {
	var req struct {
		Name        string   `json:"name"`
		MemberIDs   []string `json:"member_ids"`
		Description *string  `json:"description"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}
	chat, err := h.chats.CreateGroupChat(c.Context(), middleware.UserID(c), req.Name, req.MemberIDs, req.Description)
	if err != nil {
		return respondErr(c, h.log, err)
	}
	return c.Status(http.StatusCreated).JSON(chat)
}

func (h *ChatHandler) UpdateChat(c *fiber.Ctx) error {
	var upd store.ChatUpdate
	if err := c.BodyParser(&upd); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}
	chat, err := h.chats.UpdateChat(c.Context(), c.Params("chatId"), middleware.UserID(c), upd)
	if err != nil {
		return respondErr(c, h.log, err)
	}
	return c.JSON(chat)
}

func (h *ChatHandler) GetMembers(c *fiber.Ctx) error {
	chatID := c.Params("chatId")
	member, err := h.chats.IsMember(c.Context(), chatID, middleware.UserID(c))
	if err != nil {
		return respondErr(c, h.log, err)
	}
	if !member {
		return respondErr(c, h.log, apperr.ErrNotFound)
	}
	members, err := h.chats.GetChatMembers(c.Context(), chatID)
	if err != nil {
		return respondErr(c, h.log, err)
	}
	return c.JSON(members)
}

func (h *ChatHandler) AddMember(c *fiber.Ctx) error {
	var req struct {
		UserID string            `json:"user_id"`
		Role   models.MemberRole `json:"role"`
	}
	if err := c.BodyParser(&req); err != nil || req.UserID == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "user_id required"})
	}
	chatID := c.Params("chatId")
	actorID := middleware.UserID(c)
	if err := h.chats.AddMember(c.Context(), chatID, actorID, req.UserID, req.Role); err != nil {
		return respondErr(c, h.log, err)
	}
	h.producer.Publish(c.Context(), events.TypeMemberAdded, chatID, actorID, fiber.Map{"user_id": req.UserID})
	return c.JSON(fiber.Map{"ok": true})
}

func (h *ChatHandler) RemoveMember(c *fiber.Ctx) error {
	chatID := c.Params("chatId")
	actorID := middleware.UserID(c)
	removed, err := h.chats.RemoveMember(c.Context(), chatID, actorID, c.Params("userId"))
	if err != nil {
		return respondErr(c, h.log, err)
	}
	if removed {
		h.producer.Publish(c.Context(), events.TypeMemberRemoved, chatID, actorID, fiber.Map{"user_id": c.Params("userId")})
	}
	return c.JSON(fiber.Map{"removed": removed})
}

// LeaveChat is self-removal; always permitted.
func (h *ChatHandler) LeaveChat(c *fiber.Ctx) error {
	chatID := c.Params("chatId")
	userID := middleware.UserID(c)
	removed, err := h.chats.RemoveMember(c.Context(), chatID, userID, userID)
	if err != nil {
		return respondErr(c, h.log, err)
	}
	if removed {
		h.producer.Publish(c.Context(), events.TypeMemberRemoved, chatID, userID, fiber.Map{"user_id": userID})
	}
	return c.JSON(fiber.Map{"removed": removed})
}

func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	var before *string
	if raw := c.Query("before"); raw != "" {
		before = &raw
	}
	messages, err := h.chats.GetMessages(c.Context(), c.Params("chatId"), middleware.UserID(c), limit, before)
	if err != nil {
		return respondErr(c, h.log, err)
	}
	return c.JSON(messages)
}

func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	var req struct {
		Content     string                     `json:"content"`
		ContentType models.ContentType         `json:"content_type"`
		ReplyToID   *string                    `json:"reply_to_id"`
		Attachments []models.MessageAttachment `json:"attachments"`
	}
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Content) == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "content required"})
	}
	chatID := c.Params("chatId")
	senderID := middleware.UserID(c)

	msg, err := h.chats.SendMessage(c.Context(), chatID, senderID, strings.TrimSpace(req.Content), req.ContentType, req.ReplyToID, req.Attachments)
	if err != nil {
		return respondErr(c, h.log, err)
	}

	// REST-originated sends reach connected clients too
	if chat, err := h.chats.GetChat(c.Context(), chatID, senderID); err == nil {
		h.hub.BroadcastRoom(chatID, ws.NewEnvelope(ws.EventMessage, ws.MessageEvent{
			Message: msg,
			Chat:    ws.ChatRef{ID: chat.ID, Type: chat.Type},
		}))
	}
	h.producer.Publish(c.Context(), events.TypeMessageSent, chatID, senderID, msg)
	return c.Status(http.StatusCreated).JSON(msg)
}

func (h *ChatHandler) MarkAsRead(c *fiber.Ctx) error {
	var req struct {
		MessageID *string `json:"message_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}
	chatID := c.Params("chatId")
	userID := middleware.UserID(c)
	if err := h.chats.MarkAsRead(c.Context(), chatID, userID, req.MessageID); err != nil {
		return respondErr(c, h.log, err)
	}
	msgID := ""
	if req.MessageID != nil {
		msgID = *req.MessageID
	}
	h.hub.BroadcastRoom(chatID, ws.NewEnvelope(ws.EventRead, ws.ReadEvent{
		ChatID: chatID, UserID: userID, MessageID: msgID,
	}))
	return c.JSON(fiber.Map{"ok": true})
}

func (h *ChatHandler) EditMessage(c *fiber.Ctx) error {
	var req struct {
		Content string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil || req.Content == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "content required"})
	}
	msg, err := h.chats.EditMessage(c.Context(), c.Params("messageId"), middleware.UserID(c), req.Content)
	if err != nil {
		return respondErr(c, h.log, err)
	}
	return c.JSON(msg)
}

func (h *ChatHandler) DeleteMessage(c *fiber.Ctx) error {
	deleted, err := h.chats.DeleteMessage(c.Context(), c.Params("messageId"), middleware.UserID(c))
	if err != nil {
		return respondErr(c, h.log, err)
	}
	if !deleted {
		return respondErr(c, h.log, apperr.ErrNotFound)
	}
	return c.SendStatus(http.StatusNoContent)
}

func (h *ChatHandler) AddReaction(c *fiber.Ctx) error {
	var req struct {
		Emoji string `json:"emoji"`
	}
	if err := c.BodyParser(&req); err != nil || req.Emoji == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "emoji required"})
	}
	return h.updateReaction(c, c.Params("messageId"), req.Emoji, true)
}

func (h *ChatHandler) RemoveReaction(c *fiber.Ctx) error {
	return h.updateReaction(c, c.Params("messageId"), c.Params("emoji"), false)
}

func (h *ChatHandler) updateReaction(c *fiber.Ctx, messageID, emoji string, add bool) error {
	userID := middleware.UserID(c)
	var (
		groups []models.ReactionGroup
		err    error
	)
	if add {
		groups, err = h.chats.AddReaction(c.Context(), messageID, userID, emoji)
	} else {
		groups, err = h.chats.RemoveReaction(c.Context(), messageID, userID, emoji)
	}
	if err != nil {
		return respondErr(c, h.log, err)
	}
	return c.JSON(groups)
}

func (h *ChatHandler) GetReactionCatalog(c *fiber.Ctx) error {
	catalog, err := h.chats.GetReactionCatalog(c.Context())
	if err != nil {
		return respondErr(c, h.log, err)
	}
	return c.JSON(catalog)
}

func (h *ChatHandler) SearchUsers(c *fiber.Ctx) error {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	results, err := h.chats.SearchUsers(c.Context(), c.Query("q"), middleware.UserID(c), limit)
	if err != nil {
		return respondErr(c, h.log, err)
	}
	return c.JSON(results)
}

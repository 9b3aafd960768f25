package store

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fathima-sithara/teamchat-service/internal/apperr"
	"github.com/fathima-sithara/teamchat-service/internal/models"
)

const deletedPlaceholder = "[Nachricht gelöscht]"

// Mentioned user ids are extracted from raw text as @<uuid>. Candidates are
// not checked against the member list.
var mentionRe = regexp.MustCompile(`(?i)@([a-f0-9-]{36})`)

func extractMentions(content string) []string {
	matches := mentionRe.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m[1])
	}
	return ids
}

// GetMessages returns up to limit messages in chronological order,
// paginating strictly before the given message when set. Soft-deleted rows
// are excluded entirely.
func (s *ChatStore) GetMessages(ctx context.Context, chatID, userID string, limit int, beforeID *string) ([]models.MessageWithSender, error) {
	member, err := s.IsMember(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, apperr.ErrForbidden
	}

	if limit <= 0 || limit > 100 {
		limit = 50
	}

	q := s.db.WithContext(ctx).
		Where("chat_id = ? AND deleted_at IS NULL", chatID)
	if beforeID != nil && *beforeID != "" {
		q = q.Where("created_at < (?)",
			s.db.Model(&models.Message{}).Select("created_at").Where("id = ?", *beforeID))
	}

	var rows []models.Message
	if err := q.Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]models.MessageWithSender, 0, len(rows))
	for _, row := range rows {
		enriched, err := s.enrich(ctx, row, userID)
		if err != nil {
			return nil, err
		}
		out = append(out, enriched)
	}

	// newest-first from the store, chronological for the client
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *ChatStore) enrich(ctx context.Context, msg models.Message, userID string) (models.MessageWithSender, error) {
	reactions, err := s.messageReactions(ctx, msg.ID, userID)
	if err != nil {
		return models.MessageWithSender{}, err
	}
	readBy, err := s.readBy(ctx, msg.ID)
	if err != nil {
		return models.MessageWithSender{}, err
	}
	var sender *models.SenderInfo
	if msg.SenderID != nil {
		sender, err = s.senderInfo(ctx, *msg.SenderID)
		if err != nil {
			return models.MessageWithSender{}, err
		}
	}
	return models.MessageWithSender{Message: msg, Sender: sender, Reactions: reactions, ReadBy: readBy}, nil
}

func (s *ChatStore) senderInfo(ctx context.Context, userID string) (*models.SenderInfo, error) {
	var info models.SenderInfo
	err := s.db.WithContext(ctx).
		Table("users u").
		Select("u.email, p.display_name, p.avatar_url").
		Joins("LEFT JOIN profiles p ON p.user_id = u.id").
		Where("u.id = ?", userID).
		Scan(&info).Error
	if err != nil {
		return nil, err
	}
	if info.Email == "" {
		return nil, nil
	}
	return &info, nil
}

// SendMessage persists a message and bumps the chat's ordering key. The
// returned view carries no reactions; none can exist yet.
func (s *ChatStore) SendMessage(ctx context.Context, chatID, senderID, content string, contentType models.ContentType, replyToID *string, attachments []models.MessageAttachment) (*models.MessageWithSender, error) {
	member, err := s.IsMember(ctx, chatID, senderID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, apperr.ErrForbidden
	}

	if contentType == "" {
		contentType = models.ContentText
	}
	switch contentType {
	case models.ContentText, models.ContentImage, models.ContentFile:
	default:
		return nil, apperr.ErrInvalidInput
	}

	if replyToID != nil && *replyToID != "" {
		var parent models.Message
		if err := s.db.WithContext(ctx).Take(&parent, "id = ?", *replyToID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperr.ErrInvalidInput
			}
			return nil, err
		}
		if parent.ChatID != chatID {
			return nil, apperr.ErrInvalidInput
		}
	} else {
		replyToID = nil
	}

	msg := models.Message{
		ChatID:      chatID,
		SenderID:    &senderID,
		Content:     content,
		ContentType: contentType,
		ReplyToID:   replyToID,
	}
	if mentions := extractMentions(content); mentions != nil {
		b, _ := json.Marshal(mentions)
		msg.Mentions = b
	}
	if len(attachments) > 0 {
		b, _ := json.Marshal(attachments)
		msg.Attachments = b
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}
		return tx.Model(&models.Chat{}).Where("id = ?", chatID).
			Update("updated_at", time.Now()).Error
	})
	if err != nil {
		return nil, err
	}

	sender, err := s.senderInfo(ctx, senderID)
	if err != nil {
		return nil, err
	}
	return &models.MessageWithSender{Message: msg, Sender: sender, Reactions: []models.ReactionGroup{}}, nil
}

func (s *ChatStore) addSystemMessage(tx *gorm.DB, chatID, content string) error {
	msg := models.Message{
		ChatID:      chatID,
		Content:     content,
		ContentType: models.ContentSystem,
	}
	if err := tx.Create(&msg).Error; err != nil {
		return err
	}
	return tx.Model(&models.Chat{}).Where("id = ?", chatID).
		Update("updated_at", time.Now()).Error
}

// EditMessage updates content and stamps edited_at. Only the sender of a
// non-deleted message may edit.
func (s *ChatStore) EditMessage(ctx context.Context, messageID, userID, newContent string) (*models.Message, error) {
	now := time.Now()
	res := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ? AND sender_id = ? AND deleted_at IS NULL", messageID, userID).
		Updates(map[string]interface{}{"content": newContent, "edited_at": now})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, apperr.ErrNotFound
	}
	var msg models.Message
	if err := s.db.WithContext(ctx).Take(&msg, "id = ?", messageID).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

// DeleteMessage soft-deletes: the row keeps its id and reactions, content
// becomes a placeholder, and listing skips it from now on.
func (s *ChatStore) DeleteMessage(ctx context.Context, messageID, userID string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ? AND sender_id = ? AND deleted_at IS NULL", messageID, userID).
		Updates(map[string]interface{}{"deleted_at": time.Now(), "content": deletedPlaceholder})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// AddReaction is idempotent per (message, user, emoji). Returns the full
// grouped reaction state for the message.
func (s *ChatStore) AddReaction(ctx context.Context, messageID, userID, emoji string) ([]models.ReactionGroup, error) {
	if emoji == "" {
		return nil, apperr.ErrInvalidInput
	}
	if err := s.requireReactionAccess(ctx, messageID, userID); err != nil {
		return nil, err
	}
	reaction := models.MessageReaction{MessageID: messageID, UserID: userID, Emoji: emoji}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&reaction).Error; err != nil {
		return nil, err
	}
	return s.messageReactions(ctx, messageID, userID)
}

// RemoveReaction deletes the user's reaction; removing one that does not
// exist is a no-op.
func (s *ChatStore) RemoveReaction(ctx context.Context, messageID, userID, emoji string) ([]models.ReactionGroup, error) {
	if emoji == "" {
		return nil, apperr.ErrInvalidInput
	}
	if err := s.requireReactionAccess(ctx, messageID, userID); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).
		Where("message_id = ? AND user_id = ? AND emoji = ?", messageID, userID, emoji).
		Delete(&models.MessageReaction{}).Error; err != nil {
		return nil, err
	}
	return s.messageReactions(ctx, messageID, userID)
}

// requireReactionAccess resolves the message (deleted rows stay
// addressable) and checks the caller's membership in its chat.
func (s *ChatStore) requireReactionAccess(ctx context.Context, messageID, userID string) error {
	var msg models.Message
	if err := s.db.WithContext(ctx).Take(&msg, "id = ?", messageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.ErrNotFound
		}
		return err
	}
	member, err := s.IsMember(ctx, msg.ChatID, userID)
	if err != nil {
		return err
	}
	if !member {
		return apperr.ErrForbidden
	}
	return nil
}

// MessageReactions exposes the grouped reaction state for one message.
func (s *ChatStore) MessageReactions(ctx context.Context, messageID, userID string) ([]models.ReactionGroup, error) {
	return s.messageReactions(ctx, messageID, userID)
}

func (s *ChatStore) messageReactions(ctx context.Context, messageID, currentUserID string) ([]models.ReactionGroup, error) {
	var rows []models.MessageReaction
	err := s.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	groups := []models.ReactionGroup{}
	index := map[string]int{}
	for _, r := range rows {
		i, ok := index[r.Emoji]
		if !ok {
			index[r.Emoji] = len(groups)
			groups = append(groups, models.ReactionGroup{Emoji: r.Emoji, Users: []string{}})
			i = index[r.Emoji]
		}
		groups[i].Users = append(groups[i].Users, r.UserID)
		groups[i].Count++
		if r.UserID == currentUserID {
			groups[i].ReactedByMe = true
		}
	}
	return groups, nil
}

func (s *ChatStore) readBy(ctx context.Context, messageID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.MessageRead{}).
		Where("message_id = ?", messageID).
		Order("read_at ASC").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// MarkAsRead advances the member's read marker. With a message id the
// individual read entry is recorded too; without one the marker jumps to
// the chat's latest message.
func (s *ChatStore) MarkAsRead(ctx context.Context, chatID, userID string, messageID *string) error {
	member, err := s.IsMember(ctx, chatID, userID)
	if err != nil {
		return err
	}
	if !member {
		return apperr.ErrForbidden
	}

	now := time.Now()
	if messageID != nil && *messageID != "" {
		if err := s.db.WithContext(ctx).Model(&models.ChatMember{}).
			Where("chat_id = ? AND user_id = ?", chatID, userID).
			Updates(map[string]interface{}{"last_read_at": now, "last_read_message_id": *messageID}).Error; err != nil {
			return err
		}
		read := models.MessageRead{MessageID: *messageID, UserID: userID}
		return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
			Create(&read).Error
	}

	var latest models.Message
	err = s.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at DESC").
		Take(&latest).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	return s.db.WithContext(ctx).Model(&models.ChatMember{}).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Updates(map[string]interface{}{"last_read_at": now, "last_read_message_id": latest.ID}).Error
}

// unreadCount counts non-deleted messages from other users created after
// the member's read marker. A NULL sender (system message) never counts.
func (s *ChatStore) unreadCount(ctx context.Context, chatID, userID string) (int64, error) {
	var member models.ChatMember
	err := s.db.WithContext(ctx).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Take(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	lastRead := time.Unix(0, 0)
	if member.LastReadAt != nil {
		lastRead = *member.LastReadAt
	}

	var n int64
	err = s.db.WithContext(ctx).Model(&models.Message{}).
		Where("chat_id = ? AND deleted_at IS NULL AND sender_id <> ? AND created_at > ?",
			chatID, userID, lastRead).
		Count(&n).Error
	return n, err
}

// UnreadCount exposes the unread total for one member.
func (s *ChatStore) UnreadCount(ctx context.Context, chatID, userID string) (int64, error) {
	return s.unreadCount(ctx, chatID, userID)
}

func (s *ChatStore) lastMessage(ctx context.Context, chatID string) (*models.MessagePreview, error) {
	var msg models.Message
	err := s.db.WithContext(ctx).
		Where("chat_id = ? AND deleted_at IS NULL", chatID).
		Order("created_at DESC").
		Take(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	senderName := "Unbekannt"
	if msg.SenderID != nil {
		name, err := s.UserDisplayName(ctx, *msg.SenderID)
		if err != nil {
			return nil, err
		}
		senderName = name
	}
	return &models.MessagePreview{
		ID:          msg.ID,
		Content:     msg.Content,
		ContentType: msg.ContentType,
		SenderName:  senderName,
		CreatedAt:   msg.CreatedAt,
	}, nil
}

// GetReactionCatalog returns the static emoji lookup list.
func (s *ChatStore) GetReactionCatalog(ctx context.Context) ([]models.ReactionCatalogItem, error) {
	var items []models.ReactionCatalogItem
	err := s.db.WithContext(ctx).
		Order("sort_order ASC, name ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

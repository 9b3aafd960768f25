package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fathima-sithara/teamchat-service/internal/apperr"
	"github.com/fathima-sithara/teamchat-service/internal/models"
)

const (
	sysGroupCreated = "Gruppe wurde erstellt"
	sysMemberAdded  = " wurde hinzugefügt"
	sysMemberLeft   = " hat die Gruppe verlassen"
)

// ListChats returns every chat the user belongs to, most recently updated
// first, annotated with members, last message preview and unread count.
func (s *ChatStore) ListChats(ctx context.Context, userID string) ([]models.ChatSummary, error) {
	memberOf := s.db.WithContext(ctx).Model(&models.ChatMember{}).
		Select("chat_id").Where("user_id = ?", userID)

	var chats []models.Chat
	if err := s.db.WithContext(ctx).
		Where("id IN (?)", memberOf).
		Order("updated_at DESC").
		Find(&chats).Error; err != nil {
		return nil, err
	}

	summaries := make([]models.ChatSummary, 0, len(chats))
	for _, chat := range chats {
		summary, err := s.summarize(ctx, chat, userID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// GetChat returns the chat if the caller is a member. Non-members get
// ErrNotFound, never a membership hint.
func (s *ChatStore) GetChat(ctx context.Context, chatID, userID string) (*models.ChatSummary, error) {
	member, err := s.IsMember(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, apperr.ErrNotFound
	}

	var chat models.Chat
	if err := s.db.WithContext(ctx).Take(&chat, "id = ?", chatID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	summary, err := s.summarize(ctx, chat, userID)
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

func (s *ChatStore) summarize(ctx context.Context, chat models.Chat, userID string) (models.ChatSummary, error) {
	members, err := s.GetChatMembers(ctx, chat.ID)
	if err != nil {
		return models.ChatSummary{}, err
	}
	last, err := s.lastMessage(ctx, chat.ID)
	if err != nil {
		return models.ChatSummary{}, err
	}
	unread, err := s.unreadCount(ctx, chat.ID, userID)
	if err != nil {
		return models.ChatSummary{}, err
	}
	return models.ChatSummary{Chat: chat, Members: members, LastMessage: last, UnreadCount: unread}, nil
}

func directKey(userA, userB string) string {
	if userB < userA {
		userA, userB = userB, userA
	}
	return userA + ":" + userB
}

// GetOrCreateDirectChat finds the direct chat for the unordered user pair or
// creates it with both users as admins. The unique index on the pair key
// makes concurrent creates collapse to a single row.
func (s *ChatStore) GetOrCreateDirectChat(ctx context.Context, userID, otherID string) (*models.Chat, error) {
	if otherID == "" || userID == otherID {
		return nil, apperr.ErrInvalidInput
	}

	var n int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id IN ?", []string{userID, otherID}).Count(&n).Error; err != nil {
		return nil, err
	}
	if n != 2 {
		return nil, apperr.ErrNotFound
	}

	key := directKey(userID, otherID)

	var existing models.Chat
	err := s.db.WithContext(ctx).Take(&existing, "direct_key = ?", key).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	chat := models.Chat{
		Type:      models.ChatDirect,
		DirectKey: &key,
		CreatedBy: &userID,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&chat).Error; err != nil {
			return err
		}
		members := []models.ChatMember{
			{ChatID: chat.ID, UserID: userID, Role: models.RoleAdmin},
			{ChatID: chat.ID, UserID: otherID, Role: models.RoleAdmin},
		}
		return tx.Create(&members).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// lost the race, the winner's row is ours
			var winner models.Chat
			if err := s.db.WithContext(ctx).Take(&winner, "direct_key = ?", key).Error; err != nil {
				return nil, err
			}
			return &winner, nil
		}
		return nil, err
	}
	return &chat, nil
}

// CreateGroupChat creates a named group with the creator as sole admin.
// Duplicate member ids and the creator itself are ignored.
func (s *ChatStore) CreateGroupChat(ctx context.Context, creatorID, name string, memberIDs []string, description *string) (*models.Chat, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.ErrInvalidInput
	}

	chat := models.Chat{
		Type:        models.ChatGroup,
		Name:        &name,
		Description: description,
		CreatedBy:   &creatorID,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&chat).Error; err != nil {
			return err
		}
		if err := tx.Create(&models.ChatMember{
			ChatID: chat.ID, UserID: creatorID, Role: models.RoleAdmin,
		}).Error; err != nil {
			return err
		}
		seen := map[string]bool{creatorID: true}
		for _, id := range memberIDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			member := models.ChatMember{ChatID: chat.ID, UserID: id, Role: models.RoleMember}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&member).Error; err != nil {
				return err
			}
		}
		return s.addSystemMessage(tx, chat.ID, sysGroupCreated)
	})
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

type ChatUpdate struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	AvatarURL   *string `json:"avatar_url"`
}

// UpdateChat changes name/description/avatar. Admin only.
func (s *ChatStore) UpdateChat(ctx context.Context, chatID, userID string, upd ChatUpdate) (*models.Chat, error) {
	var chat models.Chat
	if err := s.db.WithContext(ctx).Take(&chat, "id = ?", chatID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	admin, err := s.isAdmin(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}
	if !admin {
		return nil, apperr.ErrForbidden
	}

	fields := map[string]interface{}{}
	if upd.Name != nil {
		fields["name"] = *upd.Name
	}
	if upd.Description != nil {
		fields["description"] = *upd.Description
	}
	if upd.AvatarURL != nil {
		fields["avatar_url"] = *upd.AvatarURL
	}
	if len(fields) == 0 {
		return &chat, nil
	}
	fields["updated_at"] = time.Now()

	if err := s.db.WithContext(ctx).Model(&models.Chat{}).
		Where("id = ?", chatID).Updates(fields).Error; err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Take(&chat, "id = ?", chatID).Error; err != nil {
		return nil, err
	}
	return &chat, nil
}

// GetChatMembers lists members with display info and live presence.
func (s *ChatStore) GetChatMembers(ctx context.Context, chatID string) ([]models.MemberInfo, error) {
	var members []models.MemberInfo
	err := s.db.WithContext(ctx).
		Table("chat_members cm").
		Select("cm.user_id, u.email, p.display_name, p.avatar_url, cm.role, COALESCE(up.status, 'offline') AS presence").
		Joins("JOIN users u ON u.id = cm.user_id").
		Joins("LEFT JOIN profiles p ON p.user_id = cm.user_id").
		Joins("LEFT JOIN user_presence up ON up.user_id = cm.user_id").
		Where("cm.chat_id = ?", chatID).
		Order("cm.role DESC, cm.joined_at ASC").
		Scan(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

// AddMember adds a user to a group chat. Caller must be an admin; direct
// chats never gain members. Adding an existing member is a no-op.
func (s *ChatStore) AddMember(ctx context.Context, chatID, adminID, newUserID string, role models.MemberRole) error {
	admin, err := s.isAdmin(ctx, chatID, adminID)
	if err != nil {
		return err
	}
	if !admin {
		return apperr.ErrForbidden
	}

	var chat models.Chat
	if err := s.db.WithContext(ctx).Take(&chat, "id = ?", chatID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.ErrNotFound
		}
		return err
	}
	if chat.Type != models.ChatGroup {
		return apperr.ErrInvalidInput
	}

	var n int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", newUserID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return apperr.ErrNotFound
	}

	if role == "" {
		role = models.RoleMember
	}
	member := models.ChatMember{ChatID: chatID, UserID: newUserID, Role: role}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&member)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return nil
	}

	name, err := s.UserDisplayName(ctx, newUserID)
	if err != nil {
		return err
	}
	return s.addSystemMessage(s.db.WithContext(ctx), chatID, name+sysMemberAdded)
}

// RemoveMember removes a user from a chat. Self-removal is always allowed;
// removing someone else requires admin. Reports whether a row was removed.
func (s *ChatStore) RemoveMember(ctx context.Context, chatID, callerID, targetID string) (bool, error) {
	if callerID != targetID {
		admin, err := s.isAdmin(ctx, chatID, callerID)
		if err != nil {
			return false, err
		}
		if !admin {
			return false, apperr.ErrForbidden
		}
	}

	res := s.db.WithContext(ctx).
		Where("chat_id = ? AND user_id = ?", chatID, targetID).
		Delete(&models.ChatMember{})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	name, err := s.UserDisplayName(ctx, targetID)
	if err != nil {
		return true, err
	}
	if err := s.addSystemMessage(s.db.WithContext(ctx), chatID, name+sysMemberLeft); err != nil {
		return true, err
	}
	return true, nil
}

// IsMember reports chat membership. Missing chats simply report false.
func (s *ChatStore) IsMember(ctx context.Context, chatID, userID string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.ChatMember{}).
		Where("chat_id = ? AND user_id = ?", chatID, userID).Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MemberChatIDs returns the ids of every chat the user belongs to. The
// gateway uses it to join rooms on connect.
func (s *ChatStore) MemberChatIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.ChatMember{}).
		Where("user_id = ?", userID).Pluck("chat_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *ChatStore) isAdmin(ctx context.Context, chatID, userID string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.ChatMember{}).
		Where("chat_id = ? AND user_id = ? AND role = ?", chatID, userID, models.RoleAdmin).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

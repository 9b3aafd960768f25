package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ChatType string

const (
	ChatDirect ChatType = "direct"
	ChatGroup  ChatType = "group"
)

type MemberRole string

const (
	RoleAdmin  MemberRole = "admin"
	RoleMember MemberRole = "member"
)

type ContentType string

const (
	ContentText   ContentType = "text"
	ContentImage  ContentType = "image"
	ContentFile   ContentType = "file"
	ContentSystem ContentType = "system"
)

type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceAway    PresenceStatus = "away"
	PresenceBusy    PresenceStatus = "busy"
	PresenceOffline PresenceStatus = "offline"
)

// User is the account entity owned by the auth collaborator. Only the
// columns this service reads are modelled.
type User struct {
	ID        string `gorm:"primaryKey;type:uuid"`
	Email     string `gorm:"uniqueIndex;not null"`
	CreatedAt time.Time
}

type Profile struct {
	UserID      string `gorm:"primaryKey;type:uuid"`
	DisplayName *string
	AvatarURL   *string
}

// Chat is a direct (two-person) or group conversation container.
// DirectKey is the normalized "min:max" user-id pair for direct chats; the
// unique index collapses concurrent creates for the same pair to one row.
type Chat struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	Type        ChatType  `gorm:"type:varchar(10);not null;index" json:"type"`
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	AvatarURL   *string   `json:"avatar_url"`
	DirectKey   *string   `gorm:"uniqueIndex" json:"-"`
	CreatedBy   *string   `gorm:"type:uuid" json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Members  []ChatMember `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Messages []Message    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

type ChatMember struct {
	ID                string     `gorm:"primaryKey;type:uuid" json:"id"`
	ChatID            string     `gorm:"type:uuid;not null;uniqueIndex:idx_chat_member,priority:1" json:"chat_id"`
	UserID            string     `gorm:"type:uuid;not null;uniqueIndex:idx_chat_member,priority:2;index" json:"user_id"`
	Role              MemberRole `gorm:"type:varchar(10);not null;default:'member'" json:"role"`
	JoinedAt          time.Time  `json:"joined_at"`
	LastReadAt        *time.Time `json:"last_read_at"`
	LastReadMessageID *string    `gorm:"type:uuid" json:"last_read_message_id"`
	MutedUntil        *time.Time `json:"muted_until"`
}

// Message rows are never hard-deleted: DeletedAt is a plain column (not
// gorm.DeletedAt) so deleted rows stay addressable for reaction lookups
// while listing filters them out explicitly.
type Message struct {
	ID          string         `gorm:"primaryKey;type:uuid" json:"id"`
	ChatID      string         `gorm:"type:uuid;not null;index" json:"chat_id"`
	SenderID    *string        `gorm:"type:uuid;index" json:"sender_id"`
	Content     string         `gorm:"type:text;not null" json:"content"`
	ContentType ContentType    `gorm:"type:varchar(10);not null;default:'text'" json:"content_type"`
	ReplyToID   *string        `gorm:"type:uuid" json:"reply_to_id"`
	Attachments datatypes.JSON `json:"attachments"`
	Mentions    datatypes.JSON `json:"mentions"`
	EditedAt    *time.Time     `json:"edited_at"`
	DeletedAt   *time.Time     `json:"deleted_at"`
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`

	Reactions []MessageReaction `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Reads     []MessageRead     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

type MessageAttachment struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

type MessageReaction struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	MessageID string    `gorm:"type:uuid;not null;uniqueIndex:idx_message_user_emoji,priority:1" json:"message_id"`
	UserID    string    `gorm:"type:uuid;not null;uniqueIndex:idx_message_user_emoji,priority:2" json:"user_id"`
	Emoji     string    `gorm:"type:varchar(32);not null;uniqueIndex:idx_message_user_emoji,priority:3" json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

type MessageRead struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	MessageID string    `gorm:"type:uuid;not null;uniqueIndex:idx_message_read,priority:1" json:"message_id"`
	UserID    string    `gorm:"type:uuid;not null;uniqueIndex:idx_message_read,priority:2" json:"user_id"`
	ReadAt    time.Time `json:"read_at"`
}

type UserPresence struct {
	UserID     string         `gorm:"primaryKey;type:uuid" json:"user_id"`
	Status     PresenceStatus `gorm:"type:varchar(10);not null;default:'offline'" json:"status"`
	StatusText *string        `json:"status_text"`
	LastSeenAt time.Time      `json:"last_seen_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func (UserPresence) TableName() string { return "user_presence" }

type ReactionCatalogItem struct {
	ID        string `gorm:"primaryKey;type:uuid" json:"id"`
	Emoji     string `gorm:"not null" json:"emoji"`
	Name      string `gorm:"not null" json:"name"`
	Category  string `json:"category"`
	SortOrder int    `json:"sort_order"`
}

func (ReactionCatalogItem) TableName() string { return "reaction_catalog" }

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

func (c *Chat) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

func (m *ChatMember) BeforeCreate(*gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now()
	}
	return nil
}

func (m *Message) BeforeCreate(*gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

func (r *MessageReaction) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

func (r *MessageRead) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.ReadAt.IsZero() {
		r.ReadAt = time.Now()
	}
	return nil
}

func (i *ReactionCatalogItem) BeforeCreate(*gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

package models

import "time"

// View types returned by the store and serialized to clients.

type MemberInfo struct {
	UserID      string         `json:"user_id"`
	Email       string         `json:"email"`
	DisplayName *string        `json:"display_name"`
	AvatarURL   *string        `json:"avatar_url"`
	Role        MemberRole     `json:"role"`
	Presence    PresenceStatus `json:"presence"`
}

type MessagePreview struct {
	ID          string      `json:"id"`
	Content     string      `json:"content"`
	ContentType ContentType `json:"content_type"`
	SenderName  string      `json:"sender_name"`
	CreatedAt   time.Time   `json:"created_at"`
}

type ChatSummary struct {
	Chat
	Members     []MemberInfo    `json:"members"`
	LastMessage *MessagePreview `json:"last_message"`
	UnreadCount int64           `json:"unread_count"`
}

type SenderInfo struct {
	Email       string  `json:"email"`
	DisplayName *string `json:"display_name"`
	AvatarURL   *string `json:"avatar_url"`
}

type ReactionGroup struct {
	Emoji       string   `json:"emoji"`
	Count       int      `json:"count"`
	Users       []string `json:"users"`
	ReactedByMe bool     `json:"reacted_by_me"`
}

type MessageWithSender struct {
	Message
	Sender    *SenderInfo     `json:"sender"`
	Reactions []ReactionGroup `json:"reactions"`
	ReadBy    []string        `json:"read_by,omitempty"`
}

type UserSearchResult struct {
	ID          string         `json:"id"`
	Email       string         `json:"email"`
	DisplayName *string        `json:"display_name"`
	AvatarURL   *string        `json:"avatar_url"`
	Presence    PresenceStatus `json:"presence"`
}

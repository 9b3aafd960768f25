package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fathima-sithara/teamchat-service/internal/apperr"
	"github.com/fathima-sithara/teamchat-service/internal/models"
)

func TestSendMessageMembershipAndMentions(t *testing.T) {
	chats, _, db := newTestStores(t)
	ctx := context.Background()
	alice := createUser(t, db, "alice@example.com", "Alice")
	bob := createUser(t, db, "bob@example.com", "Bob")
	eve := createUser(t, db, "eve@example.com", "Eve")

	chat, err := chats.CreateGroupChat(ctx, alice, "Team", []string{bob}, nil)
	require.NoError(t, err)

	_, err = chats.SendMessage(ctx, chat.ID, eve, "hi", models.ContentText, nil, nil)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	before, err := chats.GetChat(ctx, chat.ID, alice)
	require.NoError(t, err)

	msg, err := chats.SendMessage(ctx, chat.ID, alice, "hey @"+bob+" check this", models.ContentText, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, msg.Sender)
	assert.Equal(t, "alice@example.com", msg.Sender.Email)
	assert.Empty(t, msg.Reactions)

	var mentions []string
	require.NoError(t, json.Unmarshal(msg.Mentions, &mentions))
	assert.Equal(t, []string{bob}, mentions)

	// sending bumps the chat's ordering key
	after, err := chats.GetChat(ctx, chat.ID, alice)
	require.NoError(t, err)
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt) || after.UpdatedAt.Equal(before.UpdatedAt))
	require.NotNil(t, after.LastMessage)
	assert.Equal(t, msg.ID, after.LastMessage.ID)
}

func TestSendMessageReplyMustBeSameChat(t *testing.T) {
	chats, _, db := newTestStores(t)
	ctx := context.Background()
	alice := createUser(t, db, "alice@example.com", "")
	bob := createUser(t, db, "bob@example.com", "")

	chatA, err := chats.CreateGroupChat(ctx, alice, "A", []string{bob}, nil)
	require.NoError(t, err)
	chatB, err := chats.CreateGroupChat(ctx, alice, "B", []string{bob}, nil)
	require.NoError(t, err)

	parent, err := chats.SendMessage(ctx, chatA.ID, alice, "root", models.ContentText, nil, nil)
	require.NoError(t, err)

	_, err = chats.SendMessage(ctx, chatB.ID, alice, "cross-chat reply", models.ContentText, &parent.ID, nil)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	reply, err := chats.SendMessage(ctx, chatA.ID, bob, "in-chat reply", models.ContentText, &parent.ID, nil)
	require.NoError(t, err)
	require.NotNil(t, reply.ReplyToID)
	assert.Equal(t, parent.ID, *reply.ReplyToID)
}

func TestEditMessage(t *testing.T) {
	chats, _, db := newTestStores(t)
	ctx := context.Background()
	alice := createUser(t, db, "alice@example.com", "")
	bob := createUser(t, db, "bob@example.com", "")

	chat, err := chats.CreateGroupChat(ctx, alice, "Team", []string{bob}, nil)
	require.NoError(t, err)
	msg, err := chats.SendMessage(ctx, chat.ID, alice, "tpyo", models.ContentText, nil, nil)
	require.NoError(t, err)

	// only the sender may edit
	_, err = chats.EditMessage(ctx, msg.ID, bob, "fixed")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	edited, err := chats.EditMessage(ctx, msg.ID, alice, "typo")
	require.NoError(t, err)
	assert.Equal(t, "typo", edited.Content)
	assert.NotNil(t, edited.EditedAt)

	// deleted messages are not editable
	deleted, err := chats.DeleteMessage(ctx, msg.ID, alice)
	require.NoError(t, err)
	assert.True(t, deleted)
	_, err = chats.EditMessage(ctx, msg.ID, alice, "again")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDeleteMessageSoftDelete(t *testing.T) {
	chats, _, db := newTestStores(t)
	ctx := context.Background()
	alice := createUser(t, db, "alice@example.com", "")
	bob := createUser(t, db, "bob@example.com", "")

	chat, err := chats.CreateGroupChat(ctx, alice, "Team", []string{bob}, nil)
	require.NoError(t, err)
	msg, err := chats.SendMessage(ctx, chat.ID, alice, "secret", models.ContentText, nil, nil)
	require.NoError(t, err)

	_, err = chats.AddReaction(ctx, msg.ID, bob, "👍")
	require.NoError(t, err)

	// only the sender may delete
	deleted, err := chats.DeleteMessage(ctx, msg.ID, bob)
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = chats.DeleteMessage(ctx, msg.ID, alice)
	require.NoError(t, err)
	assert.True(t, deleted)

	// the row keeps its id, content becomes the placeholder
	var row models.Message
	require.NoError(t, db.Take(&row, "id = ?", msg.ID).Error)
	assert.Equal(t, "[Nachricht gelöscht]", row.Content)
	assert.NotNil(t, row.DeletedAt)

	// excluded from listing entirely
	messages, err := chats.GetMessages(ctx, chat.ID, bob, 50, nil)
	require.NoError(t, err)
	for _, m := range messages {
		assert.NotEqual(t, msg.ID, m.ID)
	}

	// reactions stay addressable by message id
	groups, err := chats.MessageReactions(ctx, msg.ID, bob)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "👍", groups[0].Emoji)

	// deleting twice reports no row touched
	deleted, err = chats.DeleteMessage(ctx, msg.ID, alice)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestReactionsIdempotent(t *testing.T) {
	chats, _, db := newTestStores(t)
	ctx := context.Background()
	alice := createUser(t, db, "alice@example.com", "")
	bob := createUser(t, db, "bob@example.com", "")
	eve := createUser(t, db, "eve@example.com", "")

	chat, err := chats.CreateGroupChat(ctx, alice, "Team", []string{bob}, nil)
	require.NoError(t, err)
	msg, err := chats.SendMessage(ctx, chat.ID, alice, "hello", models.ContentText, nil, nil)
	require.NoError(t, err)

	_, err = chats.AddReaction(ctx, msg.ID, bob, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = chats.AddReaction(ctx, msg.ID, eve, "👍")
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	once, err := chats.AddReaction(ctx, msg.ID, bob, "👍")
	require.NoError(t, err)
	twice, err := chats.AddReaction(ctx, msg.ID, bob, "👍")
	require.NoError(t, err)
	assert.Equal(t, once, twice)
	require.Len(t, twice, 1)
	assert.Equal(t, 1, twice[0].Count)
	assert.Equal(t, []string{bob}, twice[0].Users)
	assert.True(t, twice[0].ReactedByMe)

	// distinct emoji per user are allowed
	groups, err := chats.AddReaction(ctx, msg.ID, bob, "🚀")
	require.NoError(t, err)
	assert.Len(t, groups, 2)

	// removing a reaction that does not exist is a no-op
	groups, err = chats.RemoveReaction(ctx, msg.ID, alice, "👍")
	require.NoError(t, err)
	assert.Len(t, groups, 2)

	groups, err = chats.RemoveReaction(ctx, msg.ID, bob, "🚀")
	require.NoError(t, err)
	assert.Len(t, groups, 1)

	_, err = chats.AddReaction(ctx, "00000000-0000-0000-0000-000000000000", bob, "👍")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUnreadCountAndMarkAsRead(t *testing.T) {
	chats, _, db := newTestStores(t)
	ctx := context.Background()
	alice := createUser(t, db, "alice@example.com", "")
	bob := createUser(t, db, "bob@example.com", "")

	chat, err := chats.CreateGroupChat(ctx, alice, "Team", []string{bob}, nil)
	require.NoError(t, err)

	for _, content := range []string{"one", "two", "three"} {
		_, err := chats.SendMessage(ctx, chat.ID, alice, content, models.ContentText, nil, nil)
		require.NoError(t, err)
	}
	// own messages never count as unread
	_, err = chats.SendMessage(ctx, chat.ID, bob, "mine", models.ContentText, nil, nil)
	require.NoError(t, err)

	unread, err := chats.UnreadCount(ctx, chat.ID, bob)
	require.NoError(t, err)
	assert.EqualValues(t, 3, unread)

	// no explicit message id advances to the latest message
	require.NoError(t, chats.MarkAsRead(ctx, chat.ID, bob, nil))
	unread, err = chats.UnreadCount(ctx, chat.ID, bob)
	require.NoError(t, err)
	assert.EqualValues(t, 0, unread)

	msg, err := chats.SendMessage(ctx, chat.ID, alice, "four", models.ContentText, nil, nil)
	require.NoError(t, err)
	unread, err = chats.UnreadCount(ctx, chat.ID, bob)
	require.NoError(t, err)
	assert.EqualValues(t, 1, unread)

	// explicit message id records the individual read entry
	require.NoError(t, chats.MarkAsRead(ctx, chat.ID, bob, &msg.ID))
	messages, err := chats.GetMessages(ctx, chat.ID, alice, 50, nil)
	require.NoError(t, err)
	var readBy []string
	for _, m := range messages {
		if m.ID == msg.ID {
			readBy = m.ReadBy
		}
	}
	assert.Equal(t, []string{bob}, readBy)

	// non-member
	eve := createUser(t, db, "eve@example.com", "")
	err = chats.MarkAsRead(ctx, chat.ID, eve, nil)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestGetMessagesPagination(t *testing.T) {
	chats, _, db := newTestStores(t)
	ctx := context.Background()
	alice := createUser(t, db, "alice@example.com", "")
	bob := createUser(t, db, "bob@example.com", "")

	chat, err := chats.CreateGroupChat(ctx, alice, "Team", []string{bob}, nil)
	require.NoError(t, err)

	base := time.Now().Add(-time.Hour)
	ids := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		sender := alice
		msg := models.Message{
			ChatID:      chat.ID,
			SenderID:    &sender,
			Content:     "m",
			ContentType: models.ContentText,
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, db.Create(&msg).Error)
		ids = append(ids, msg.ID)
	}

	// full page comes back in chronological order
	all, err := chats.GetMessages(ctx, chat.ID, bob, 50, nil)
	require.NoError(t, err)
	// the group-creation system message sorts last (newest)
	require.GreaterOrEqual(t, len(all), 5)
	assert.Equal(t, ids[0], all[0].ID)

	// a page strictly before the third message
	page, err := chats.GetMessages(ctx, chat.ID, bob, 2, &ids[2])
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[0], page[0].ID)
	assert.Equal(t, ids[1], page[1].ID)
}

func TestScenarioSalesTeam(t *testing.T) {
	chats, _, db := newTestStores(t)
	ctx := context.Background()
	alice := createUser(t, db, "a@example.com", "A")
	bob := createUser(t, db, "b@example.com", "B")
	carol := createUser(t, db, "c@example.com", "C")

	group, err := chats.CreateGroupChat(ctx, alice, "Sales Team", []string{bob, carol}, nil)
	require.NoError(t, err)

	welcome, err := chats.SendMessage(ctx, group.ID, alice, "Welcome", models.ContentText, nil, nil)
	require.NoError(t, err)

	_, err = chats.AddReaction(ctx, welcome.ID, bob, "👍")
	require.NoError(t, err)

	list, err := chats.ListChats(ctx, bob)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].LastMessage)
	assert.Equal(t, "Welcome", list[0].LastMessage.Content)
	assert.EqualValues(t, 1, list[0].UnreadCount)

	require.NoError(t, chats.MarkAsRead(ctx, group.ID, bob, nil))
	list, err = chats.ListChats(ctx, bob)
	require.NoError(t, err)
	assert.EqualValues(t, 0, list[0].UnreadCount)

	messages, err := chats.GetMessages(ctx, group.ID, bob, 50, nil)
	require.NoError(t, err)
	var groups []models.ReactionGroup
	for _, m := range messages {
		if m.ID == welcome.ID {
			groups = m.Reactions
		}
	}
	require.Len(t, groups, 1)
	assert.Equal(t, "👍", groups[0].Emoji)
	assert.Equal(t, 1, groups[0].Count)
	assert.Equal(t, []string{bob}, groups[0].Users)
	assert.True(t, groups[0].ReactedByMe)
}

func TestExtractMentions(t *testing.T) {
	id1 := "2f1b0a9c-1111-4222-8333-444455556666"
	id2 := "AABBCCDD-0000-4000-8000-111122223333"

	assert.Nil(t, extractMentions("no mentions here"))
	assert.Equal(t, []string{id1}, extractMentions("hi @"+id1+"!"))
	assert.Equal(t, []string{id1, id2}, extractMentions("@"+id1+" and @"+id2))
	// pattern matching is permissive, nothing checks the id exists
	assert.Equal(t, []string{"00000000-0000-0000-0000-000000000000"},
		extractMentions("@00000000-0000-0000-0000-000000000000"))
}

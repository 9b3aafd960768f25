package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fathima-sithara/teamchat-service/internal/apperr"
	"github.com/fathima-sithara/teamchat-service/internal/models"
)

func TestGetOrCreateDirectChatIdempotent(t *testing.T) {
	chats, _, db := newTestStores(t)
	ctx := context.Background()
	alice := createUser(t, db, "alice@example.com", "Alice")
	bob := createUser(t, db, "bob@example.com", "Bob")

	first, err := chats.GetOrCreateDirectChat(ctx, alice, bob)
	require.NoError(t, err)
	assert.Equal(t, models.ChatDirect, first.Type)

	// repeated and order-swapped calls return the same chat
	second, err := chats.GetOrCreateDirectChat(ctx, alice, bob)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	swapped, err := chats.GetOrCreateDirectChat(ctx, bob, alice)
	require.NoError(t, err)
	assert.Equal(t, first.ID, swapped.ID)

	var n int64
	require.NoError(t, db.Model(&models.Chat{}).Where("type = ?", models.ChatDirect).Count(&n).Error)
	assert.EqualValues(t, 1, n)

	members, err := chats.GetChatMembers(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	for _, m := range members {
		assert.Equal(t, models.RoleAdmin, m.Role)
	}
}

func TestGetOrCreateDirectChatRejectsBadPairs(t *testing.T) {
	chats, _, db := newTestStores(t)
	ctx := context.Background()
	alice := createUser(t, db, "alice@example.com", "")

	_, err := chats.GetOrCreateDirectChat(ctx, alice, alice)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = chats.GetOrCreateDirectChat(ctx, alice, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCreateGroupChat(t *testing.T) {
	chats, _, db := newTestStores(t)
	ctx := context.Background()
	alice := createUser(t, db, "alice@example.com", "Alice")
	bob := createUser(t, db, "bob@example.com", "Bob")

	_, err := chats.CreateGroupChat(ctx, alice, "   ", nil, nil)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	// duplicates and the creator in the member list are ignored
	chat, err := chats.CreateGroupChat(ctx, alice, "Sales Team", []string{bob, bob, alice}, nil)
	require.NoError(t, err)
	require.NotNil(t, chat.Name)
	assert.Equal(t, "Sales Team", *chat.Name)

	members, err := chats.GetChatMembers(ctx, chat.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)

	roles := map[string]models.MemberRole{}
	for _, m := range members {
		roles[m.UserID] = m.Role
	}
	assert.Equal(t, models.RoleAdmin, roles[alice])
	assert.Equal(t, models.RoleMember, roles[bob])

	summary, err := chats.GetChat(ctx, chat.ID, bob)
	require.NoError(t, err)
	require.NotNil(t, summary.LastMessage)
	assert.Equal(t, "Gruppe wurde erstellt", summary.LastMessage.Content)
	assert.Equal(t, models.ContentSystem, summary.LastMessage.ContentType)
}

func TestGetChatHidesMembershipFromNonMembers(t *testing.T) {
	chats, _, db := newTestStores(t)
	ctx := context.Background()
	alice := createUser(t, db, "alice@example.com", "")
	bob := createUser(t, db, "bob@example.com", "")
	eve := createUser(t, db, "eve@example.com", "")

	chat, err := chats.CreateGroupChat(ctx, alice, "Private", []string{bob}, nil)
	require.NoError(t, err)

	_, err = chats.GetChat(ctx, chat.ID, eve)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = chats.GetChat(ctx, "00000000-0000-0000-0000-000000000000", alice)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateChatAdminOnly(t *testing.T) {
	chats, _, db := newTestStores(t)
	ctx := context.Background()
	alice := createUser(t, db, "alice@example.com", "")
	bob := createUser(t, db, "bob@example.com", "")

	chat, err := chats.CreateGroupChat(ctx, alice, "Old Name", []string{bob}, nil)
	require.NoError(t, err)

	newName := "New Name"
	_, err = chats.UpdateChat(ctx, chat.ID, bob, ChatUpdate{Name: &newName})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	updated, err := chats.UpdateChat(ctx, chat.ID, alice, ChatUpdate{Name: &newName})
	require.NoError(t, err)
	require.NotNil(t, updated.Name)
	assert.Equal(t, "New Name", *updated.Name)

	_, err = chats.UpdateChat(ctx, "00000000-0000-0000-0000-000000000000", alice, ChatUpdate{Name: &newName})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAddMember(t *testing.T) {
	chats, _, db := newTestStores(t)
	ctx := context.Background()
	alice := createUser(t, db, "alice@example.com", "Alice")
	bob := createUser(t, db, "bob@example.com", "Bob")
	carol := createUser(t, db, "carol@example.com", "Carol")

	group, err := chats.CreateGroupChat(ctx, alice, "Team", []string{bob}, nil)
	require.NoError(t, err)

	// non-admin may not add
	err = chats.AddMember(ctx, group.ID, bob, carol, "")
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	require.NoError(t, chats.AddMember(ctx, group.ID, alice, carol, ""))
	member, err := chats.IsMember(ctx, group.ID, carol)
	require.NoError(t, err)
	assert.True(t, member)

	// idempotent re-add, no duplicate system message
	require.NoError(t, chats.AddMember(ctx, group.ID, alice, carol, ""))
	var sysCount int64
	require.NoError(t, db.Model(&models.Message{}).
		Where("chat_id = ? AND content = ?", group.ID, "Carol wurde hinzugefügt").
		Count(&sysCount).Error)
	assert.EqualValues(t, 1, sysCount)

	// direct chats never gain members
	direct, err := chats.GetOrCreateDirectChat(ctx, alice, bob)
	require.NoError(t, err)
	err = chats.AddMember(ctx, direct.ID, alice, carol, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	// target must exist
	err = chats.AddMember(ctx, group.ID, alice, "00000000-0000-0000-0000-000000000000", "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRemoveMember(t *testing.T) {
	chats, _, db := newTestStores(t)
	ctx := context.Background()
	alice := createUser(t, db, "alice@example.com", "Alice")
	bob := createUser(t, db, "bob@example.com", "Bob")
	carol := createUser(t, db, "carol@example.com", "Carol")

	group, err := chats.CreateGroupChat(ctx, alice, "Team", []string{bob, carol}, nil)
	require.NoError(t, err)

	// non-admin removing someone else
	_, err = chats.RemoveMember(ctx, group.ID, bob, carol)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	// self-removal is always permitted
	removed, err := chats.RemoveMember(ctx, group.ID, carol, carol)
	require.NoError(t, err)
	assert.True(t, removed)

	// admin removes bob; bob loses access
	removed, err = chats.RemoveMember(ctx, group.ID, alice, bob)
	require.NoError(t, err)
	assert.True(t, removed)

	_, err = chats.GetMessages(ctx, group.ID, bob, 50, nil)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	// the leave message is visible to remaining members
	messages, err := chats.GetMessages(ctx, group.ID, alice, 50, nil)
	require.NoError(t, err)
	var contents []string
	for _, m := range messages {
		contents = append(contents, m.Content)
	}
	assert.Contains(t, contents, "Bob hat die Gruppe verlassen")

	// removing an absent member reports no row removed
	removed, err = chats.RemoveMember(ctx, group.ID, alice, bob)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestSearchUsers(t *testing.T) {
	chats, presence, db := newTestStores(t)
	ctx := context.Background()
	alice := createUser(t, db, "alice@example.com", "Alice Anderson")
	bob := createUser(t, db, "bob@corp.example", "Bob Baker")
	createUser(t, db, "carol@corp.example", "Carol")

	_, err := presence.GoOnline(ctx, bob)
	require.NoError(t, err)

	results, err := chats.SearchUsers(ctx, "CORP", alice, 20)
	require.NoError(t, err)
	require.Len(t, results, 2)

	results, err = chats.SearchUsers(ctx, "baker", alice, 20)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, bob, results[0].ID)
	assert.Equal(t, models.PresenceOnline, results[0].Presence)

	// the caller never shows up
	results, err = chats.SearchUsers(ctx, "alice", alice, 20)
	require.NoError(t, err)
	assert.Empty(t, results)
}

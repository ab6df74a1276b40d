package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FreshMag/CollaborativeRealTimeWhiteboard/internal/model"
)

func seedUser(t *testing.T, s *MemoryStore, username string) *model.User {
	t.Helper()
	user, err := s.CreateUser(context.Background(), &model.User{
		Username:  username,
		Password:  "hash",
		FirstName: username,
		LastName:  "Test",
	})
	require.NoError(t, err)
	return user
}

func TestMemoryStoreUsers(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	created := seedUser(t, s, "alice")
	assert.NotEmpty(t, created.ID)

	_, err := s.CreateUser(ctx, &model.User{Username: "alice"})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	found, err := s.FindUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	_, err = s.FindUser(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	updated, err := s.UpdateUserInfo(ctx, "alice", "alice2", "Alice", "Liddell")
	require.NoError(t, err)
	assert.Equal(t, "alice2", updated.Username)
	assert.Equal(t, created.ID, updated.ID, "renaming must keep the identity")

	_, err = s.FindUser(ctx, "alice")
	assert.ErrorIs(t, err, ErrNotFound)

	seedUser(t, s, "bob")
	_, err = s.UpdateUserInfo(ctx, "alice2", "bob", "", "")
	assert.ErrorIs(t, err, ErrAlreadyExists)

	require.NoError(t, s.UpdateUserPassword(ctx, "alice2", "newhash"))
	found, err = s.FindUser(ctx, "alice2")
	require.NoError(t, err)
	assert.Equal(t, "newhash", found.Password)
}

func TestMemoryStoreWhiteboardLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	owner := seedUser(t, s, "owner")
	member := seedUser(t, s, "member")
	seedUser(t, s, "outsider")

	whiteboard, err := s.CreateWhiteboard(ctx, "board", "owner")
	require.NoError(t, err)
	assert.Equal(t, owner.ID, whiteboard.OwnerID)
	assert.Equal(t, []string{owner.ID}, whiteboard.Users, "the owner starts on the access list")

	require.NoError(t, s.InviteUserToWhiteboard(ctx, "member", whiteboard.ID))
	// Inviting again must not duplicate the entry.
	require.NoError(t, s.InviteUserToWhiteboard(ctx, "member", whiteboard.ID))
	found, err := s.FindWhiteboard(ctx, whiteboard.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{owner.ID, member.ID}, found.Users)

	isOwner, err := s.IsOwner(ctx, "member", whiteboard.ID)
	require.NoError(t, err)
	assert.False(t, isOwner)
	isMember, err := s.IsMember(ctx, "member", whiteboard.ID)
	require.NoError(t, err)
	assert.True(t, isMember)
	isMember, err = s.IsMember(ctx, "outsider", whiteboard.ID)
	require.NoError(t, err)
	assert.False(t, isMember)

	boards, err := s.ListWhiteboards(ctx, "member")
	require.NoError(t, err)
	require.Len(t, boards, 1)
	boards, err = s.ListWhiteboards(ctx, "outsider")
	require.NoError(t, err)
	assert.Empty(t, boards)

	require.NoError(t, s.UpdateWhiteboard(ctx, whiteboard.ID, "renamed"))
	found, err = s.FindWhiteboard(ctx, whiteboard.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", found.Name)

	require.NoError(t, s.DeleteWhiteboard(ctx, whiteboard.ID))
	_, err = s.FindWhiteboard(ctx, whiteboard.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteWhiteboard(ctx, whiteboard.ID), ErrNotFound)
}

func TestMemoryStoreStrokes(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedUser(t, s, "owner")
	whiteboard, err := s.CreateWhiteboard(ctx, "board", "owner")
	require.NoError(t, err)

	strokeID, err := s.GenerateStrokeID(ctx, whiteboard.ID)
	require.NoError(t, err)
	require.NotEmpty(t, strokeID)

	line := model.Line{Points: []model.Point{{X: 0, Y: 0}}, Color: "#000", Stroke: 1}
	require.NoError(t, s.UpsertStroke(ctx, whiteboard.ID, strokeID, line))

	// Finalizing again overwrites in place.
	line.Color = "#fff"
	require.NoError(t, s.UpsertStroke(ctx, whiteboard.ID, strokeID, line))

	found, err := s.FindWhiteboard(ctx, whiteboard.ID)
	require.NoError(t, err)
	require.Len(t, found.Traits, 1)
	assert.Equal(t, "#fff", found.Traits[strokeID].Color)

	require.NoError(t, s.RemoveStroke(ctx, whiteboard.ID, strokeID))
	found, err = s.FindWhiteboard(ctx, whiteboard.ID)
	require.NoError(t, err)
	assert.Empty(t, found.Traits)

	assert.ErrorIs(t, s.UpsertStroke(ctx, "missing", strokeID, line), ErrNotFound)
}

func TestMemoryStoreSearchUsers(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	alice := seedUser(t, s, "alice")
	seedUser(t, s, "alina")
	seedUser(t, s, "bob")

	whiteboard, err := s.CreateWhiteboard(ctx, "board", "alice")
	require.NoError(t, err)

	matches, err := s.SearchUsers(ctx, UserFilter{Username: "ali", WhiteboardID: whiteboard.ID})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	for _, match := range matches {
		if match.ID == alice.ID {
			assert.True(t, match.AlreadyIn)
		} else {
			assert.False(t, match.AlreadyIn)
		}
	}

	matches, err = s.SearchUsers(ctx, UserFilter{Username: "ali", Excludes: "alice"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "alina", matches[0].FirstName)
}

func TestMemoryStoreNotifications(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedUser(t, s, "alice")

	require.NoError(t, s.AddNotification(ctx, "alice", model.Notification{Type: model.NotificationInvite, Body: "hi"}))
	require.NoError(t, s.AddNotification(ctx, "alice", model.Notification{Type: model.NotificationInfo, Body: "ho"}))

	notifications, err := s.Notifications(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, notifications, 2)

	count, err := s.UnreadNotificationCount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	require.NoError(t, s.MarkNotificationRead(ctx, notifications[0].ID))
	count, err = s.UnreadNotificationCount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, s.DeleteNotification(ctx, notifications[0].ID))
	require.NoError(t, s.DeleteNotification(ctx, notifications[1].ID))
	assert.ErrorIs(t, s.DeleteNotification(ctx, notifications[1].ID), ErrNotFound)

	count, err = s.UnreadNotificationCount(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, count)
}

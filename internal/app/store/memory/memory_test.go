package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomhub/internal/app/store"
)

func seedRoom(t *testing.T, s *Store, members ...string) (*store.Room, *store.Conversation) {
	t.Helper()
	ctx := context.Background()

	conv := &store.Conversation{ID: "conv-1", RoomID: "room-1", Participants: members}
	require.NoError(t, s.CreateConversation(ctx, conv))

	room := &store.Room{ID: "room-1", Name: "general", CreatorID: members[0], Members: members}
	require.NoError(t, s.CreateRoom(ctx, room))
	return room, conv
}

func TestCreateRoom_Conflict(t *testing.T) {
	s := New()
	seedRoom(t, s, "u1")

	err := s.CreateRoom(context.Background(), &store.Room{ID: "room-1"})
	assert.ErrorIs(t, err, store.ErrConflict)

	err = s.CreateConversation(context.Background(), &store.Conversation{ID: "conv-2", RoomID: "room-1"})
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	s := New()
	seedRoom(t, s, "u1", "u2")

	room, err := s.GetRoom(context.Background(), "room-1")
	require.NoError(t, err)
	room.Members[0] = "mallory"

	again, err := s.GetRoom(context.Background(), "room-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, again.Members)
}

func TestMembers_IdempotentByIdentity(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedRoom(t, s, "u1", "u2", "u3")

	changed, err := s.AddMember(ctx, "room-1", "u2")
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = s.RemoveMember(ctx, "room-1", "u2")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = s.RemoveMember(ctx, "room-1", "u2")
	require.NoError(t, err)
	assert.False(t, changed)

	room, err := s.GetRoom(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u3"}, room.Members)

	_, err = s.AddMember(ctx, "missing", "u1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestParticipants_IdempotentByIdentity(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedRoom(t, s, "u1")

	changed, err := s.AddParticipant(ctx, "conv-1", "u4")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = s.AddParticipant(ctx, "conv-1", "u4")
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = s.RemoveParticipant(ctx, "conv-1", "u9")
	require.NoError(t, err)
	assert.False(t, changed)

	conv, err := s.GetConversationByRoom(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u4"}, conv.Participants)
}

func TestUpdateRoom(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedRoom(t, s, "u1")

	name, public := "renamed", true
	room, err := s.UpdateRoom(ctx, "room-1", store.RoomPatch{Name: &name, IsPublic: &public})
	require.NoError(t, err)
	assert.Equal(t, "renamed", room.Name)
	assert.True(t, room.IsPublic)
	assert.Equal(t, []string{"u1"}, room.Members)

	_, err = s.UpdateRoom(ctx, "missing", store.RoomPatch{Name: &name})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAppendMessage_RequiresParticipant(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedRoom(t, s, "u1")

	err := s.AppendMessage(ctx, &store.Message{ID: "m1", ConversationID: "conv-1", SenderID: "u2", Content: "hi"})
	assert.ErrorIs(t, err, store.ErrNotParticipant)

	err = s.AppendMessage(ctx, &store.Message{ID: "m1", ConversationID: "nope", SenderID: "u1", Content: "hi"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	msg := &store.Message{ID: "m1", ConversationID: "conv-1", SenderID: "u1", Content: "hi"}
	require.NoError(t, s.AppendMessage(ctx, msg))
	assert.False(t, msg.CreatedAt.IsZero())
}

func TestListMessages_ReturnsTailInOrder(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedRoom(t, s, "u1")

	for i := range 5 {
		require.NoError(t, s.AppendMessage(ctx, &store.Message{
			ID: fmt.Sprintf("m%d", i), ConversationID: "conv-1", SenderID: "u1", Content: "x",
		}))
	}

	msgs, err := s.ListMessages(ctx, "conv-1", 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m3", msgs[0].ID)
	assert.Equal(t, "m4", msgs[1].ID)

	all, err := s.ListMessages(ctx, "conv-1", 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestDeleteConversation_DropsMessages(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedRoom(t, s, "u1")
	require.NoError(t, s.AppendMessage(ctx, &store.Message{ID: "m1", ConversationID: "conv-1", SenderID: "u1", Content: "x"}))

	require.NoError(t, s.DeleteConversation(ctx, "conv-1"))
	require.NoError(t, s.DeleteRoom(ctx, "room-1"))

	_, err := s.GetConversationByRoom(ctx, "room-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.ListMessages(ctx, "conv-1", 10)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteRoom(ctx, "room-1"), store.ErrNotFound)
}

func TestCanceledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.GetRoom(ctx, "room-1")
	assert.ErrorIs(t, err, context.Canceled)
}

package chat

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomhub/internal/pkg/errs"
)

func TestAppend_Validation(t *testing.T) {
	f := newFixture(t)
	room := f.createRoom(t, false, "u2")
	pic := Attachment{Key: room.ID + "/a.png", Name: "a.png", MimeType: "image/png", Size: 10}

	tests := []struct {
		name   string
		params AppendParams
		code   int
	}{
		{name: "empty", params: AppendParams{SenderID: "u1", Content: "   "}, code: errs.ErrMessageContentEmpty},
		{name: "too long", params: AppendParams{SenderID: "u1", Content: strings.Repeat("x", MaxContentBytes+1)}, code: errs.ErrMessageContentTooLong},
		{name: "too many attachments", params: AppendParams{SenderID: "u1", Attachments: []Attachment{pic, pic, pic, pic}}, code: errs.ErrAttachmentCountInvalid},
		{name: "unknown sender", params: AppendParams{SenderID: "ghost", Content: "hi"}, code: errs.ErrUserNotFound},
		{name: "not a participant", params: AppendParams{SenderID: "u3", Content: "hi"}, code: errs.ErrNotParticipant},
		{name: "foreign attachment", params: AppendParams{SenderID: "u1", Attachments: []Attachment{{Key: "other/a.png", Name: "a.png", MimeType: "image/png", Size: 1}}}, code: errs.ErrAttachmentKeyInvalid},
		{name: "unknown conversation", params: AppendParams{ConversationID: "nope", SenderID: "u1", Content: "hi"}, code: errs.ErrConversationNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.params
			if p.ConversationID == "" {
				p.ConversationID = room.ConversationID
			}

			_, err := f.manager.Conversations.Append(context.Background(), p)
			customErr, ok := errs.As(err)
			require.True(t, ok, "want CustomError, got %v", err)
			assert.Equal(t, tt.code, customErr.Code)
		})
	}
}

func TestAppend_ExactlyMaxContentIsAccepted(t *testing.T) {
	f := newFixture(t)
	room := f.createRoom(t, false)

	msg, err := f.manager.Conversations.Append(context.Background(), AppendParams{
		ConversationID: room.ConversationID,
		SenderID:       "u1",
		Content:        strings.Repeat("x", MaxContentBytes),
	})
	require.NoError(t, err)
	assert.Equal(t, room.ID, msg.RoomID)
	assert.False(t, msg.CreatedAt.IsZero())
}

func TestHistory_LimitAndOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.createRoom(t, false, "u2")

	for i := range 5 {
		_, err := f.manager.PostMessage(ctx, room.ID, "u1", fmt.Sprintf("m%d", i), nil)
		require.NoError(t, err)
	}

	msgs, err := f.manager.History(ctx, room.ID, "u2", 3)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "m2", msgs[0].Content)
	assert.Equal(t, "m4", msgs[2].Content)

	all, err := f.manager.History(ctx, room.ID, "u1", 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	_, err = f.manager.History(ctx, room.ID, "u3", 0)
	assert.True(t, errs.Is(err, errs.KindForbidden))
}

func TestRemovedParticipantCannotPost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.createRoom(t, false, "u2")

	_, err := f.manager.Membership.Update(ctx, room.ID, []MembershipChange{{UserID: "u2", Op: OpRemove}})
	require.NoError(t, err)

	_, err = f.manager.PostMessage(ctx, room.ID, "u2", "hello?", nil)
	customErr, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.ErrNotParticipant, customErr.Code)
	assert.Equal(t, errs.KindForbidden, customErr.Kind)
}

func TestDeleteConversation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.createRoom(t, false, "u2")

	_, err := f.manager.PostMessage(ctx, room.ID, "u1", "bye", nil)
	require.NoError(t, err)

	require.NoError(t, f.manager.Conversations.Delete(ctx, room.ConversationID))
	_, err = f.manager.Conversations.Get(ctx, room.ConversationID)
	assert.True(t, errs.Is(err, errs.KindNotFound))

	err = f.manager.Conversations.Delete(ctx, room.ConversationID)
	customErr, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.ErrConversationNotFound, customErr.Code)
}

func TestDeleteConversation_DetachedIgnoresCancellation(t *testing.T) {
	f := newFixture(t)
	room := f.createRoom(t, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, f.manager.Conversations.deleteDetached(ctx, room.ConversationID))
	_, err := f.manager.Conversations.Get(context.Background(), room.ConversationID)
	assert.True(t, errs.Is(err, errs.KindNotFound))
}

package chat

import (
	"context"
	"strings"

	"roomhub/internal/app/store"
	"roomhub/internal/pkg/errs"
	"roomhub/internal/pkg/randx"
)

const (
	// MaxContentBytes is the maximum allowed size (in bytes) of message text.
	MaxContentBytes = 5000

	// DefaultHistoryLimit and MaxHistoryLimit bound History.
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

// AppendParams is a message to add to a conversation.
type AppendParams struct {
	ConversationID string
	SenderID       string
	Content        string
	Attachments    []Attachment
}

// ConversationStore is the append-only message log of each room.
type ConversationStore struct {
	*backend
}

// Create persists a conversation for roomID with the given participants.
func (c *ConversationStore) Create(ctx context.Context, roomID string, participants []string) (*store.Conversation, error) {
	conv := &store.Conversation{
		ID:           randx.RecordID(),
		RoomID:       roomID,
		Participants: participants,
	}

	sctx, cancel := c.storeCtx(ctx)
	defer cancel()

	if err := c.store.CreateConversation(sctx, conv); err != nil {
		return nil, storeError(err, errs.ErrConversationNotFound)
	}
	return conv, nil
}

// Get loads a conversation by id.
func (c *ConversationStore) Get(ctx context.Context, conversationID string) (*store.Conversation, error) {
	sctx, cancel := c.storeCtx(ctx)
	defer cancel()

	conv, err := c.store.GetConversation(sctx, conversationID)
	if err != nil {
		return nil, storeError(err, errs.ErrConversationNotFound)
	}
	return conv, nil
}

// byRoom loads the conversation of a room. A missing conversation means a missing room.
func (c *ConversationStore) byRoom(ctx context.Context, roomID string) (*store.Conversation, error) {
	sctx, cancel := c.storeCtx(ctx)
	defer cancel()

	conv, err := c.store.GetConversationByRoom(sctx, roomID)
	if err != nil {
		return nil, storeError(err, errs.ErrRoomNotFound)
	}
	return conv, nil
}

// AddParticipant adds userID to the participant set; adding twice is a no-op.
func (c *ConversationStore) AddParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	sctx, cancel := c.storeCtx(ctx)
	defer cancel()

	changed, err := c.store.AddParticipant(sctx, conversationID, userID)
	if err != nil {
		return false, storeError(err, errs.ErrConversationNotFound)
	}
	return changed, nil
}

// RemoveParticipant removes userID from the participant set; removing a non-participant is a no-op.
func (c *ConversationStore) RemoveParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	sctx, cancel := c.storeCtx(ctx)
	defer cancel()

	changed, err := c.store.RemoveParticipant(sctx, conversationID, userID)
	if err != nil {
		return false, storeError(err, errs.ErrConversationNotFound)
	}
	return changed, nil
}

// Append stores a message. The participant check happens in the same store write,
// so a sender removed concurrently cannot slip a message in.
func (c *ConversationStore) Append(ctx context.Context, p AppendParams) (*Message, error) {
	content := strings.TrimSpace(p.Content)
	if content == "" && len(p.Attachments) == 0 {
		return nil, errs.NewError(errs.ErrMessageContentEmpty)
	}
	if len(content) > MaxContentBytes {
		return nil, errs.NewError(errs.ErrMessageContentTooLong)
	}
	if len(p.Attachments) > MaxAttachmentsCount {
		return nil, errs.NewError(errs.ErrAttachmentCountInvalid, MaxAttachmentsCount)
	}

	conv, err := c.Get(ctx, p.ConversationID)
	if err != nil {
		return nil, err
	}

	if err := c.userExists(ctx, p.SenderID); err != nil {
		return nil, err
	}

	if err := ValidateAttachments(conv.RoomID, p.Attachments); err != nil {
		return nil, err
	}

	msg := &store.Message{
		ID:             randx.RecordID(),
		ConversationID: conv.ID,
		SenderID:       p.SenderID,
		Content:        content,
		Attachments:    p.Attachments,
	}

	sctx, cancel := c.storeCtx(ctx)
	defer cancel()

	if err := c.store.AppendMessage(sctx, msg); err != nil {
		return nil, storeError(err, errs.ErrConversationNotFound)
	}

	view := messageView(msg, conv.RoomID)
	return &view, nil
}

// History returns the most recent messages in creation order. limit <= 0 means the
// default; values above MaxHistoryLimit are clamped.
func (c *ConversationStore) History(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	limit = min(limit, MaxHistoryLimit)

	conv, err := c.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	sctx, cancel := c.storeCtx(ctx)
	defer cancel()

	msgs, err := c.store.ListMessages(sctx, conversationID, limit)
	if err != nil {
		return nil, storeError(err, errs.ErrConversationNotFound)
	}

	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = messageView(m, conv.RoomID)
	}
	return out, nil
}

// Delete removes a conversation and all its messages.
func (c *ConversationStore) Delete(ctx context.Context, conversationID string) error {
	sctx, cancel := c.storeCtx(ctx)
	defer cancel()

	if err := c.store.DeleteConversation(sctx, conversationID); err != nil {
		return storeError(err, errs.ErrConversationNotFound)
	}
	return nil
}

// deleteDetached runs Delete even when ctx has already ended.
func (c *ConversationStore) deleteDetached(ctx context.Context, conversationID string) error {
	return c.Delete(context.WithoutCancel(ctx), conversationID)
}

package chat

import (
	"time"

	"roomhub/internal/app/store"
)

// Room is the client-facing view of a room. The password hash never leaves the core.
type Room struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	CreatorID      string    `json:"creatorId"`
	IsPublic       bool      `json:"isPublic"`
	HasPassword    bool      `json:"hasPassword"`
	Members        []string  `json:"members"`
	ConversationID string    `json:"conversationId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// IsMember reports whether userID is in the member set.
func (r *Room) IsMember(userID string) bool {
	for _, m := range r.Members {
		if m == userID {
			return true
		}
	}
	return false
}

func roomView(r *store.Room, conversationID string) *Room {
	members := r.Members
	if members == nil {
		members = []string{}
	}
	return &Room{
		ID:             r.ID,
		Name:           r.Name,
		Description:    r.Description,
		CreatorID:      r.CreatorID,
		IsPublic:       r.IsPublic,
		HasPassword:    r.PasswordHash != "",
		Members:        members,
		ConversationID: conversationID,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

// Message is the client-facing view of a conversation entry.
type Message struct {
	ID             string       `json:"id"`
	ConversationID string       `json:"conversationId"`
	RoomID         string       `json:"roomId"`
	SenderID       string       `json:"senderId"`
	Content        string       `json:"content"`
	Attachments    []Attachment `json:"attachments,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
}

func messageView(m *store.Message, roomID string) Message {
	return Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		RoomID:         roomID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		Attachments:    m.Attachments,
		CreatedAt:      m.CreatedAt,
	}
}

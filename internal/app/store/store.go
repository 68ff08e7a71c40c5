/*
Package store defines the persistence boundary of the chat core: the records it
keeps and the per-record operations it relies on.

Implementations guarantee that every single call is atomic and durable on its own.
No operation spans two records, so callers needing two writes to agree (room members
and conversation participants) must coordinate and compensate themselves.
*/
package store

import (
	"context"
	"errors"
	"slices"
	"time"
)

var (
	// ErrNotFound is returned when the addressed record does not exist.
	ErrNotFound = errors.New("store: record not found")

	// ErrConflict is returned when a record with the same identity already exists.
	ErrConflict = errors.New("store: record already exists")

	// ErrNotParticipant is returned by AppendMessage when the sender is not a participant.
	ErrNotParticipant = errors.New("store: sender is not a participant")
)

// Room is the persisted room record.
type Room struct {
	ID           string
	Name         string
	Description  string
	CreatorID    string
	PasswordHash string
	IsPublic     bool
	Members      []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasMember reports whether userID is in the member set.
func (r *Room) HasMember(userID string) bool {
	return slices.Contains(r.Members, userID)
}

// Clone returns a deep copy.
func (r *Room) Clone() *Room {
	c := *r
	c.Members = slices.Clone(r.Members)
	return &c
}

// RoomPatch carries the metadata fields to change; nil fields are left alone.
type RoomPatch struct {
	Name         *string
	Description  *string
	IsPublic     *bool
	PasswordHash *string
}

// Empty reports whether the patch changes nothing.
func (p RoomPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.IsPublic == nil && p.PasswordHash == nil
}

// Conversation is the persisted message log header of a room.
type Conversation struct {
	ID           string
	RoomID       string
	Participants []string
	CreatedAt    time.Time
}

// HasParticipant reports whether userID is in the participant set.
func (c *Conversation) HasParticipant(userID string) bool {
	return slices.Contains(c.Participants, userID)
}

// Clone returns a deep copy.
func (c *Conversation) Clone() *Conversation {
	out := *c
	out.Participants = slices.Clone(c.Participants)
	return &out
}

// Attachment references an uploaded object.
type Attachment struct {
	Key      string `json:"fileKey"`
	Name     string `json:"fileName"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"fileSize"`
}

// Message is an immutable conversation entry.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	Content        string
	Attachments    []Attachment
	CreatedAt      time.Time
}

// Rooms persists room records and their member sets.
type Rooms interface {
	CreateRoom(ctx context.Context, room *Room) error
	GetRoom(ctx context.Context, id string) (*Room, error)
	ListRooms(ctx context.Context) ([]*Room, error)
	UpdateRoom(ctx context.Context, id string, patch RoomPatch) (*Room, error)
	DeleteRoom(ctx context.Context, id string) error

	// AddMember and RemoveMember address members by identity and report whether the set changed.
	AddMember(ctx context.Context, roomID, userID string) (bool, error)
	RemoveMember(ctx context.Context, roomID, userID string) (bool, error)
}

// Conversations persists conversations, their participant sets and messages.
type Conversations interface {
	CreateConversation(ctx context.Context, conv *Conversation) error
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	GetConversationByRoom(ctx context.Context, roomID string) (*Conversation, error)
	DeleteConversation(ctx context.Context, id string) error

	AddParticipant(ctx context.Context, conversationID, userID string) (bool, error)
	RemoveParticipant(ctx context.Context, conversationID, userID string) (bool, error)

	// AppendMessage stores msg only if its sender is a participant at the time of the write.
	AppendMessage(ctx context.Context, msg *Message) error

	// ListMessages returns up to limit most recent messages, oldest first.
	ListMessages(ctx context.Context, conversationID string, limit int) ([]*Message, error)
}

// Store is the full persistence contract.
type Store interface {
	Rooms
	Conversations
}

// Package memory is an in-process store.Store.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"roomhub/internal/app/store"
)

// Store keeps every record in maps guarded by one mutex. Records are copied on the way
// in and out so callers never share memory with the store.
type Store struct {
	mu            sync.RWMutex
	rooms         map[string]*store.Room
	conversations map[string]*store.Conversation
	byRoom        map[string]string
	messages      map[string][]*store.Message
	now           func() time.Time
}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		rooms:         make(map[string]*store.Room),
		conversations: make(map[string]*store.Conversation),
		byRoom:        make(map[string]string),
		messages:      make(map[string][]*store.Message),
		now:           time.Now,
	}
}

func (s *Store) CreateRoom(ctx context.Context, room *store.Room) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[room.ID]; ok {
		return store.ErrConflict
	}

	c := room.Clone()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	c.UpdatedAt = c.CreatedAt
	s.rooms[c.ID] = c

	room.CreatedAt, room.UpdatedAt = c.CreatedAt, c.UpdatedAt
	return nil
}

func (s *Store) GetRoom(ctx context.Context, id string) (*store.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return room.Clone(), nil
}

func (s *Store) ListRooms(ctx context.Context) ([]*store.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*store.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		out = append(out, room.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) UpdateRoom(ctx context.Context, id string, patch store.RoomPatch) (*store.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[id]
	if !ok {
		return nil, store.ErrNotFound
	}

	if patch.Name != nil {
		room.Name = *patch.Name
	}
	if patch.Description != nil {
		room.Description = *patch.Description
	}
	if patch.IsPublic != nil {
		room.IsPublic = *patch.IsPublic
	}
	if patch.PasswordHash != nil {
		room.PasswordHash = *patch.PasswordHash
	}
	room.UpdatedAt = s.now()

	return room.Clone(), nil
}

func (s *Store) DeleteRoom(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.rooms, id)
	return nil
}

func (s *Store) AddMember(ctx context.Context, roomID, userID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return false, store.ErrNotFound
	}
	if room.HasMember(userID) {
		return false, nil
	}
	room.Members = append(room.Members, userID)
	return true, nil
}

func (s *Store) RemoveMember(ctx context.Context, roomID, userID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return false, store.ErrNotFound
	}

	before := len(room.Members)
	room.Members = slices.DeleteFunc(room.Members, func(id string) bool { return id == userID })
	return len(room.Members) != before, nil
}

func (s *Store) CreateConversation(ctx context.Context, conv *store.Conversation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[conv.ID]; ok {
		return store.ErrConflict
	}
	if _, ok := s.byRoom[conv.RoomID]; ok {
		return store.ErrConflict
	}

	c := conv.Clone()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	s.conversations[c.ID] = c
	s.byRoom[c.RoomID] = c.ID

	conv.CreatedAt = c.CreatedAt
	return nil
}

func (s *Store) GetConversation(ctx context.Context, id string) (*store.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return conv.Clone(), nil
}

func (s *Store) GetConversationByRoom(ctx context.Context, roomID string) (*store.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byRoom[roomID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s.conversations[id].Clone(), nil
}

func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return store.ErrNotFound
	}
	delete(s.conversations, id)
	delete(s.byRoom, conv.RoomID)
	delete(s.messages, id)
	return nil
}

func (s *Store) AddParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return false, store.ErrNotFound
	}
	if conv.HasParticipant(userID) {
		return false, nil
	}
	conv.Participants = append(conv.Participants, userID)
	return true, nil
}

func (s *Store) RemoveParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return false, store.ErrNotFound
	}

	before := len(conv.Participants)
	conv.Participants = slices.DeleteFunc(conv.Participants, func(id string) bool { return id == userID })
	return len(conv.Participants) != before, nil
}

func (s *Store) AppendMessage(ctx context.Context, msg *store.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[msg.ConversationID]
	if !ok {
		return store.ErrNotFound
	}
	if !conv.HasParticipant(msg.SenderID) {
		return store.ErrNotParticipant
	}

	stored := *msg
	stored.Attachments = slices.Clone(msg.Attachments)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now()
	}
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], &stored)

	msg.CreatedAt = stored.CreatedAt
	return nil
}

func (s *Store) ListMessages(ctx context.Context, conversationID string, limit int) ([]*store.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.conversations[conversationID]; !ok {
		return nil, store.ErrNotFound
	}

	all := s.messages[conversationID]
	if limit <= 0 || limit > len(all) {
		limit = len(all)
	}

	tail := all[len(all)-limit:]
	out := make([]*store.Message, len(tail))
	for i, m := range tail {
		c := *m
		c.Attachments = slices.Clone(m.Attachments)
		out[i] = &c
	}
	return out, nil
}

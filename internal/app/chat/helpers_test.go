package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"roomhub/internal/app/store"
	"roomhub/internal/app/store/memory"
	"roomhub/internal/app/user"
	"roomhub/internal/pkg/logx"
)

func TestMain(m *testing.M) {
	logx.Discard()
	m.Run()
}

var testTimeouts = Timeouts{Store: time.Second, Delivery: 200 * time.Millisecond, Lock: time.Second}

type fixture struct {
	store   *faultyStore
	users   *user.MemoryDirectory
	relay   *recordingRelay
	files   *recordingCleaner
	manager *Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store: &faultyStore{Store: memory.New()},
		users: user.NewMemoryDirectory(
			user.User{ID: "u1", Username: "alice"},
			user.User{ID: "u2", Username: "bob"},
			user.User{ID: "u3", Username: "carol"},
			user.User{ID: "u4", Username: "dave"},
		),
		relay: &recordingRelay{},
		files: &recordingCleaner{},
	}
	f.manager = NewManager(Options{
		Store:    f.store,
		Users:    f.users,
		Relay:    f.relay,
		Files:    f.files,
		Timeouts: testTimeouts,
	})
	return f
}

// createRoom makes a room owned by u1 with the given extra members.
func (f *fixture) createRoom(t *testing.T, public bool, members ...string) *Room {
	t.Helper()
	room, err := f.manager.CreateRoom(context.Background(), CreateRoomParams{
		Name:      "general",
		CreatorID: "u1",
		Members:   members,
		IsPublic:  public,
	})
	require.NoError(t, err)
	return room
}

// requireConsistent asserts that a room's members equal its conversation's participants.
func (f *fixture) requireConsistent(t *testing.T, roomID string) []string {
	t.Helper()
	ctx := context.Background()

	room, err := f.store.GetRoom(ctx, roomID)
	require.NoError(t, err)
	conv, err := f.store.GetConversationByRoom(ctx, roomID)
	require.NoError(t, err)

	require.ElementsMatch(t, room.Members, conv.Participants)
	return room.Members
}

// faultyStore injects failures into selected store calls.
type faultyStore struct {
	store.Store

	mu                    sync.Mutex
	failCreateRoom        error
	failAddParticipant    error
	failRemoveParticipant error
	blockGetRoom          bool
	createdConversations  []string
}

func (s *faultyStore) CreateRoom(ctx context.Context, room *store.Room) error {
	s.mu.Lock()
	err := s.failCreateRoom
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.Store.CreateRoom(ctx, room)
}

func (s *faultyStore) CreateConversation(ctx context.Context, conv *store.Conversation) error {
	if err := s.Store.CreateConversation(ctx, conv); err != nil {
		return err
	}
	s.mu.Lock()
	s.createdConversations = append(s.createdConversations, conv.ID)
	s.mu.Unlock()
	return nil
}

func (s *faultyStore) AddParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	s.mu.Lock()
	err := s.failAddParticipant
	s.mu.Unlock()
	if err != nil {
		return false, err
	}
	return s.Store.AddParticipant(ctx, conversationID, userID)
}

func (s *faultyStore) RemoveParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	s.mu.Lock()
	err := s.failRemoveParticipant
	s.mu.Unlock()
	if err != nil {
		return false, err
	}
	return s.Store.RemoveParticipant(ctx, conversationID, userID)
}

func (s *faultyStore) GetRoom(ctx context.Context, id string) (*store.Room, error) {
	s.mu.Lock()
	block := s.blockGetRoom
	s.mu.Unlock()
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.Store.GetRoom(ctx, id)
}

func (s *faultyStore) set(fn func(s *faultyStore)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

// recordingSink collects delivered events. A strict sink refuses delivery on an
// ended context.
type recordingSink struct {
	mu     sync.Mutex
	events []Event
	closed bool
	strict bool
	delay  time.Duration
}

func (s *recordingSink) Deliver(ctx context.Context, ev Event) error {
	if s.strict && ctx.Err() != nil {
		return ctx.Err()
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *recordingSink) types() []EventType {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]EventType, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.Type
	}
	return out
}

func (s *recordingSink) ids() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.ID
	}
	return out
}

type recordingRelay struct {
	mu       sync.Mutex
	messages []RelayMessage
}

func (r *recordingRelay) Forward(_ context.Context, msg RelayMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	return nil
}

func (r *recordingRelay) kinds() []RelayKind {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]RelayKind, len(r.messages))
	for i, m := range r.messages {
		out[i] = m.Kind
	}
	return out
}

type recordingCleaner struct {
	mu       sync.Mutex
	prefixes []string
}

func (c *recordingCleaner) DeletePrefix(_ context.Context, prefix string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prefixes = append(c.prefixes, prefix)
	return 0, nil
}

func (c *recordingCleaner) seen() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.prefixes...)
}

package chat

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"roomhub/internal/app/store"
	"roomhub/internal/app/user"
	"roomhub/internal/pkg/errs"
	"roomhub/internal/pkg/logx"
)

// AttachmentCleaner removes stored objects under a key prefix.
type AttachmentCleaner interface {
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// Options wires a Manager. Relay and Files are optional.
type Options struct {
	Store    store.Store
	Users    user.Directory
	Relay    Relay
	Files    AttachmentCleaner
	Timeouts Timeouts
}

// RoomUpdate is a PATCH of a room: metadata, membership changes, or both.
type RoomUpdate struct {
	Metadata MetadataPatch
	Members  []MembershipChange
}

// Manager is the entry point for the HTTP and WebSocket adapters. It composes the
// registry, ledger, conversation store, membership protocol and router.
type Manager struct {
	Registry      *RoomRegistry
	Ledger        *MembershipLedger
	Conversations *ConversationStore
	Membership    *MembershipProtocol
	Router        *Router

	users  user.Directory
	files  AttachmentCleaner
	wg     sync.WaitGroup
	logger zerolog.Logger
}

// NewManager constructs and returns a new Manager instance.
func NewManager(opts Options) *Manager {
	if opts.Timeouts == (Timeouts{}) {
		opts.Timeouts = DefaultTimeouts()
	}

	b := &backend{
		store:    opts.Store,
		users:    opts.Users,
		locks:    newRoomLocks(),
		timeouts: opts.Timeouts,
		logger:   logx.Component("chat"),
	}

	convs := &ConversationStore{backend: b}
	ledger := &MembershipLedger{backend: b}
	registry := &RoomRegistry{backend: b, convs: convs}
	router := NewRouter(registry, opts.Relay, opts.Timeouts.Delivery)

	return &Manager{
		Registry:      registry,
		Ledger:        ledger,
		Conversations: convs,
		Membership:    &MembershipProtocol{backend: b, ledger: ledger, convs: convs, listener: router},
		Router:        router,
		users:         opts.Users,
		files:         opts.Files,
		logger:        logx.Component("Manager"),
	}
}

// CreateRoom creates a room with its conversation.
func (m *Manager) CreateRoom(ctx context.Context, p CreateRoomParams) (*Room, error) {
	return m.Registry.Create(ctx, p)
}

// GetRoom returns a room with a consistent member set.
func (m *Manager) GetRoom(ctx context.Context, roomID string) (*Room, error) {
	return m.Registry.Get(ctx, roomID)
}

// ListRooms lists rooms, split by membership when userID is set.
func (m *Manager) ListRooms(ctx context.Context, userID string) (*RoomListing, error) {
	return m.Registry.List(ctx, userID)
}

// UpdateRoom applies metadata first and membership changes second. When the membership
// batch fails the metadata change stays applied and the BatchResult says how far the
// batch got.
func (m *Manager) UpdateRoom(ctx context.Context, roomID string, u RoomUpdate) (*Room, *BatchResult, error) {
	if u.Metadata.Empty() && len(u.Members) == 0 {
		return nil, nil, errs.NewError(errs.ErrInvalidParams)
	}

	if len(u.Members) > 0 {
		members, err := normalizeBatch(u.Members)
		if err != nil {
			return nil, nil, err
		}
		u.Members = members
	}

	if !u.Metadata.Empty() {
		room, err := m.Registry.UpdateMetadata(ctx, roomID, u.Metadata)
		if err != nil {
			return nil, nil, err
		}
		if u.Metadata.IsPublic != nil && !room.IsPublic {
			m.Router.RestrictRoom(ctx, roomID, room.Members)
		}
		m.Router.Publish(ctx, roomID, mustEvent(EventRoomUpdated, roomID, room))
	}

	var batch *BatchResult
	if len(u.Members) > 0 {
		var err error
		batch, err = m.Membership.Update(ctx, roomID, u.Members)
		if err != nil {
			return nil, batch, err
		}
	}

	room, err := m.Registry.Get(ctx, roomID)
	if err != nil {
		return nil, batch, err
	}
	return room, batch, nil
}

// DeleteRoom deletes the room and its conversation, evicts live subscribers and
// schedules removal of the room's attachments.
func (m *Manager) DeleteRoom(ctx context.Context, roomID string) error {
	room, err := m.Registry.Delete(ctx, roomID)
	if err != nil {
		return err
	}

	m.Router.EvictRoom(ctx, roomID, mustEvent(EventRoomDeleted, roomID, room))

	if m.files != nil {
		m.wg.Add(1)
		go m.cleanupAttachments(context.WithoutCancel(ctx), roomID)
	}
	return nil
}

func (m *Manager) cleanupAttachments(ctx context.Context, roomID string) {
	defer m.wg.Done()

	n, err := m.files.DeletePrefix(ctx, KeyPrefix(roomID))
	if err != nil {
		m.logger.Error().Err(err).Str("room_id", roomID).Msg("Failed to delete attachments of deleted room.")
		return
	}
	m.logger.Info().Str("room_id", roomID).Int("objects", n).Msg("Deleted attachments of deleted room.")
}

// Members resolves a room's members through the user directory.
func (m *Manager) Members(ctx context.Context, roomID string) ([]user.User, error) {
	ids, err := m.Ledger.Members(ctx, roomID)
	if err != nil {
		return nil, err
	}

	sctx, cancel := m.Registry.storeCtx(ctx)
	defer cancel()

	users, err := m.users.Lookup(sctx, ids)
	if err != nil {
		return nil, errs.Wrap(err)
	}
	return users, nil
}

// PostMessage appends a message to the room's conversation and fans it out.
func (m *Manager) PostMessage(ctx context.Context, roomID, senderID, content string, attachments []Attachment) (*Message, error) {
	if senderID == "" {
		return nil, errs.NewError(errs.ErrUnauthorized)
	}

	conv, err := m.Conversations.byRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	msg, err := m.Conversations.Append(ctx, AppendParams{
		ConversationID: conv.ID,
		SenderID:       senderID,
		Content:        content,
		Attachments:    attachments,
	})
	if err != nil {
		return nil, err
	}

	ev, err := NewEvent(EventMessageCreated, roomID, msg)
	if err != nil {
		m.logger.Error().Err(err).Str("message_id", msg.ID).Msg("Failed to build message event.")
		return msg, nil
	}
	res := m.Router.Publish(ctx, roomID, ev)

	m.logger.Debug().
		Str("room_id", roomID).
		Str("message_id", msg.ID).
		Int("delivered", res.Delivered).
		Int("dropped", res.Dropped).
		Msg("Message fanned out.")
	return msg, nil
}

// History returns recent messages of a room. Private rooms are readable by members only.
func (m *Manager) History(ctx context.Context, roomID, userID string, limit int) ([]Message, error) {
	conv, err := m.Conversations.byRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	room, err := m.Registry.load(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.IsPublic {
		ok, err := m.Ledger.IsMember(ctx, roomID, userID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errs.NewError(errs.ErrNotParticipant)
		}
	}

	return m.Conversations.History(ctx, conv.ID, limit)
}

// RequireParticipant fails unless userID currently takes part in the room's conversation.
func (m *Manager) RequireParticipant(ctx context.Context, roomID, userID string) error {
	if userID == "" {
		return errs.NewError(errs.ErrUnauthorized)
	}

	conv, err := m.Conversations.byRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(userID) {
		return errs.NewError(errs.ErrNotParticipant)
	}
	return nil
}

// Shutdown waits for background attachment cleanups to finish or ctx to end.
func (m *Manager) Shutdown(ctx context.Context) {
	m.logger.Info().Msg("Shutting down Manager...")

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info().Msg("Manager shutdown complete.")
	case <-ctx.Done():
		m.logger.Warn().Msg("Manager shutdown timed out with cleanups still running.")
	}
}

package chat

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"roomhub/internal/app/store"
	"roomhub/internal/pkg/errs"
	"roomhub/internal/pkg/randx"
)

// MaxRoomNameLength bounds room names in bytes.
const MaxRoomNameLength = 100

// CreateRoomParams describes a new room. CreatorID is always made a member.
type CreateRoomParams struct {
	Name        string
	Description string
	CreatorID   string
	Members     []string
	IsPublic    bool
	Password    string
}

// MetadataPatch changes non-membership room fields; nil fields are left alone.
// An empty Password clears it.
type MetadataPatch struct {
	Name        *string
	Description *string
	IsPublic    *bool
	Password    *string
}

// Empty reports whether the patch changes nothing.
func (p MetadataPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.IsPublic == nil && p.Password == nil
}

// RoomListing partitions rooms by the caller's membership.
type RoomListing struct {
	Result  []*Room `json:"result"`
	MyRooms []*Room `json:"myRooms,omitempty"`
}

// RoomRegistry owns room lifecycle and metadata.
type RoomRegistry struct {
	*backend
	convs *ConversationStore
}

// Create persists the conversation first and the room second, so any visible room
// already has its conversation. A failed room write removes the conversation again.
func (r *RoomRegistry) Create(ctx context.Context, p CreateRoomParams) (*Room, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, errs.NewError(errs.ErrRoomNameRequired)
	}
	if len(name) > MaxRoomNameLength {
		return nil, errs.NewError(errs.ErrInvalidParams)
	}
	if strings.TrimSpace(p.CreatorID) == "" {
		return nil, errs.NewError(errs.ErrUnauthorized)
	}

	members := dedupe(append([]string{p.CreatorID}, p.Members...))
	for _, id := range members {
		if err := r.userExists(ctx, id); err != nil {
			return nil, err
		}
	}

	var hash string
	if p.Password != "" {
		b, err := bcrypt.GenerateFromPassword([]byte(p.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, errs.NewError(errs.ErrUnknown, err)
		}
		hash = string(b)
	}

	roomID := randx.RecordID()

	conv, err := r.convs.Create(ctx, roomID, members)
	if err != nil {
		return nil, err
	}

	room := &store.Room{
		ID:           roomID,
		Name:         name,
		Description:  strings.TrimSpace(p.Description),
		CreatorID:    p.CreatorID,
		PasswordHash: hash,
		IsPublic:     p.IsPublic,
		Members:      members,
	}

	sctx, cancel := r.storeCtx(ctx)
	err = r.store.CreateRoom(sctx, room)
	cancel()
	if err != nil {
		r.logger.Error().Err(err).Str("room_id", roomID).Msg("Room write failed, removing its conversation.")
		if derr := r.convs.deleteDetached(ctx, conv.ID); derr != nil {
			r.logger.Error().Err(derr).Str("conversation_id", conv.ID).Msg("Failed to remove orphaned conversation.")
		}
		return nil, storeError(err, errs.ErrRoomNotFound)
	}

	r.logger.Info().
		Str("room_id", roomID).
		Str("creator_id", p.CreatorID).
		Int("members", len(members)).
		Bool("public", p.IsPublic).
		Msg("Room created.")

	return roomView(room, conv.ID), nil
}

// Get reads a room under its lock so members and participants are observed together.
func (r *RoomRegistry) Get(ctx context.Context, roomID string) (*Room, error) {
	release, err := r.lockRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	defer release()

	return r.get(ctx, roomID)
}

func (r *RoomRegistry) get(ctx context.Context, roomID string) (*Room, error) {
	room, err := r.load(ctx, roomID)
	if err != nil {
		return nil, err
	}

	conv, err := r.convs.byRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return roomView(room, conv.ID), nil
}

func (r *RoomRegistry) load(ctx context.Context, roomID string) (*store.Room, error) {
	sctx, cancel := r.storeCtx(ctx)
	defer cancel()

	room, err := r.store.GetRoom(sctx, roomID)
	if err != nil {
		return nil, storeError(err, errs.ErrRoomNotFound)
	}
	return room, nil
}

// List returns every room. With a userID, rooms the user belongs to are moved to MyRooms.
func (r *RoomRegistry) List(ctx context.Context, userID string) (*RoomListing, error) {
	sctx, cancel := r.storeCtx(ctx)
	defer cancel()

	rooms, err := r.store.ListRooms(sctx)
	if err != nil {
		return nil, storeError(err, errs.ErrRoomNotFound)
	}

	listing := &RoomListing{Result: []*Room{}}
	if userID != "" {
		listing.MyRooms = []*Room{}
	}

	for _, room := range rooms {
		view := roomView(room, "")
		if userID != "" && room.HasMember(userID) {
			listing.MyRooms = append(listing.MyRooms, view)
			continue
		}
		listing.Result = append(listing.Result, view)
	}
	return listing, nil
}

// UpdateMetadata changes name, description, visibility or password. Membership is
// never touched here.
func (r *RoomRegistry) UpdateMetadata(ctx context.Context, roomID string, p MetadataPatch) (*Room, error) {
	patch := store.RoomPatch{Description: p.Description, IsPublic: p.IsPublic}

	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return nil, errs.NewError(errs.ErrRoomNameRequired)
		}
		if len(name) > MaxRoomNameLength {
			return nil, errs.NewError(errs.ErrInvalidParams)
		}
		patch.Name = &name
	}

	if p.Password != nil {
		hash := ""
		if *p.Password != "" {
			b, err := bcrypt.GenerateFromPassword([]byte(*p.Password), bcrypt.DefaultCost)
			if err != nil {
				return nil, errs.NewError(errs.ErrUnknown, err)
			}
			hash = string(b)
		}
		patch.PasswordHash = &hash
	}

	release, err := r.lockRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	defer release()

	if patch.Empty() {
		return r.get(ctx, roomID)
	}

	sctx, cancel := r.storeCtx(ctx)
	room, err := r.store.UpdateRoom(sctx, roomID, patch)
	cancel()
	if err != nil {
		return nil, storeError(err, errs.ErrRoomNotFound)
	}

	conv, err := r.convs.byRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return roomView(room, conv.ID), nil
}

// Delete removes the room and then its conversation with every message.
func (r *RoomRegistry) Delete(ctx context.Context, roomID string) (*Room, error) {
	release, err := r.lockRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	defer release()

	room, err := r.get(ctx, roomID)
	if err != nil {
		return nil, err
	}

	sctx, cancel := r.storeCtx(ctx)
	err = r.store.DeleteRoom(sctx, roomID)
	cancel()
	if err != nil {
		return nil, storeError(err, errs.ErrRoomNotFound)
	}

	// The room is gone at this point; a leftover conversation is unreachable.
	if err := r.convs.deleteDetached(ctx, room.ConversationID); err != nil && !errors.Is(err, store.ErrNotFound) {
		r.logger.Error().Err(err).Str("conversation_id", room.ConversationID).Msg("Failed to delete conversation of deleted room.")
	}

	r.logger.Info().Str("room_id", roomID).Msg("Room deleted.")
	return room, nil
}

// AuthorizeSubscribe admits userID to a room's live events when the room is public or
// the user is a member. admit runs while the room lock is held, so a concurrent removal
// is applied either before the check or after the subscription exists.
func (r *RoomRegistry) AuthorizeSubscribe(ctx context.Context, roomID, userID string, admit func() error) error {
	release, err := r.lockRoom(ctx, roomID)
	if err != nil {
		return err
	}
	defer release()

	room, err := r.load(ctx, roomID)
	if err != nil {
		return err
	}

	if !room.IsPublic && (userID == "" || !room.HasMember(userID)) {
		return errs.NewError(errs.ErrRoomPrivate)
	}
	return admit()
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

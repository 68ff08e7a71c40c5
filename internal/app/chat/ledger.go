package chat

import (
	"context"

	"roomhub/internal/pkg/errs"
)

// MembershipLedger is the authoritative member set of each room.
//
// add and remove are the raw idempotent writes used by the membership protocol, which
// already holds the room lock. The exported readers take the lock themselves.
type MembershipLedger struct {
	*backend
}

func (l *MembershipLedger) add(ctx context.Context, roomID, userID string) (bool, error) {
	sctx, cancel := l.storeCtx(ctx)
	defer cancel()

	changed, err := l.store.AddMember(sctx, roomID, userID)
	if err != nil {
		return false, storeError(err, errs.ErrRoomNotFound)
	}
	return changed, nil
}

func (l *MembershipLedger) remove(ctx context.Context, roomID, userID string) (bool, error) {
	sctx, cancel := l.storeCtx(ctx)
	defer cancel()

	changed, err := l.store.RemoveMember(sctx, roomID, userID)
	if err != nil {
		return false, storeError(err, errs.ErrRoomNotFound)
	}
	return changed, nil
}

// Members returns the room's member ids.
func (l *MembershipLedger) Members(ctx context.Context, roomID string) ([]string, error) {
	release, err := l.lockRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	defer release()

	sctx, cancel := l.storeCtx(ctx)
	defer cancel()

	room, err := l.store.GetRoom(sctx, roomID)
	if err != nil {
		return nil, storeError(err, errs.ErrRoomNotFound)
	}
	return room.Members, nil
}

// IsMember reports whether userID belongs to the room.
func (l *MembershipLedger) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	members, err := l.Members(ctx, roomID)
	if err != nil {
		return false, err
	}
	for _, m := range members {
		if m == userID {
			return true, nil
		}
	}
	return false, nil
}

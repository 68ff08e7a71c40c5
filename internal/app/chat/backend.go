/*
Package chat is the room-membership and message-fanout core.

A room owns a member set (the membership ledger) and exactly one conversation whose
participant set mirrors it. Membership batches are applied under an exclusive per-room
lock, and live sessions receive events through the Router.
*/
package chat

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"roomhub/internal/app/store"
	"roomhub/internal/app/user"
	"roomhub/internal/pkg/errs"
)

// Timeouts bounds every call the core makes to a collaborator.
type Timeouts struct {
	Store    time.Duration
	Delivery time.Duration
	Lock     time.Duration
}

// DefaultTimeouts returns the production defaults.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Store:    3 * time.Second,
		Delivery: 2 * time.Second,
		Lock:     5 * time.Second,
	}
}

// backend is the state shared by the registry, ledger, conversation store and protocol.
type backend struct {
	store    store.Store
	users    user.Directory
	locks    *roomLocks
	timeouts Timeouts
	logger   zerolog.Logger
}

// storeCtx bounds a single persistence call.
func (b *backend) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, b.timeouts.Store)
}

// detachedCtx is used for compensating writes, which must run even if the caller gave up.
func (b *backend) detachedCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), b.timeouts.Store)
}

// lockRoom acquires the exclusive room lock, waiting at most the lock timeout.
func (b *backend) lockRoom(ctx context.Context, roomID string) (func(), error) {
	lctx, cancel := context.WithTimeout(ctx, b.timeouts.Lock)
	defer cancel()

	release, err := b.locks.Lock(lctx, roomID)
	if err != nil {
		b.logger.Warn().Err(err).Str("room_id", roomID).Msg("Timed out waiting for room lock.")
		return nil, errs.NewError(errs.ErrTimeout).WithCause(err)
	}
	return release, nil
}

// userExists asks the directory about id, mapping an unknown user to ErrUserNotFound.
func (b *backend) userExists(ctx context.Context, id string) error {
	sctx, cancel := b.storeCtx(ctx)
	defer cancel()

	ok, err := b.users.Exists(sctx, id)
	if err != nil {
		return errs.Wrap(err)
	}
	if !ok {
		return errs.NewError(errs.ErrUserNotFound)
	}
	return nil
}

// storeError maps store sentinels to application errors. notFound is the code used
// for store.ErrNotFound, which depends on what the caller was addressing.
func storeError(err error, notFound int) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return errs.NewError(notFound).WithCause(err)
	case errors.Is(err, store.ErrConflict):
		return errs.NewError(errs.ErrRoomExists).WithCause(err)
	case errors.Is(err, store.ErrNotParticipant):
		return errs.NewError(errs.ErrNotParticipant).WithCause(err)
	default:
		return errs.Wrap(err)
	}
}

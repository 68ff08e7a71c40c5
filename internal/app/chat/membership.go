package chat

import (
	"context"
	"strings"
	"sync"

	"roomhub/internal/pkg/errs"
)

// MaxBatchSize bounds the number of changes in one membership batch.
const MaxBatchSize = 100

// Op is a membership operation.
type Op string

const (
	OpAdd    Op = "add"
	OpRemove Op = "remove"
)

// MembershipChange adds or removes one user.
type MembershipChange struct {
	UserID string `json:"userId"`
	Op     Op     `json:"op"`
}

// AppliedChange is a change that was carried out; Changed is false for no-ops.
type AppliedChange struct {
	MembershipChange
	Changed bool `json:"changed"`
}

// FailedChange is the change that aborted a batch.
type FailedChange struct {
	Index   int              `json:"index"`
	Change  MembershipChange `json:"change"`
	Code    int              `json:"code"`
	Message string           `json:"message"`
}

// BatchResult reports how far a batch got.
type BatchResult struct {
	Applied []AppliedChange    `json:"applied"`
	Failed  *FailedChange      `json:"failed,omitempty"`
	Pending []MembershipChange `json:"pending"`
}

// membershipListener is told about applied changes once the room lock is released.
type membershipListener interface {
	OnMembershipChanged(ctx context.Context, roomID, userID string, op Op)
	Publish(ctx context.Context, roomID string, ev Event) PublishResult
}

// MembershipProtocol applies ordered membership batches to a room's ledger and
// conversation so both sets change together.
type MembershipProtocol struct {
	*backend
	ledger   *MembershipLedger
	convs    *ConversationStore
	listener membershipListener
}

// Update validates the whole batch, then applies it in order under the room lock.
// Each change is all-or-nothing across ledger and conversation; the first failure stops
// the batch and is returned along with what was applied and what was never attempted.
func (p *MembershipProtocol) Update(ctx context.Context, roomID string, changes []MembershipChange) (*BatchResult, error) {
	changes, err := normalizeBatch(changes)
	if err != nil {
		return nil, err
	}

	release, err := p.lockRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	unlock := sync.OnceFunc(release)
	defer unlock()

	conv, err := p.convs.byRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{Applied: []AppliedChange{}, Pending: []MembershipChange{}}

	var failure error
	for i, change := range changes {
		changed, err := p.apply(ctx, roomID, conv.ID, change)
		if err != nil {
			customErr := errs.Wrap(err)
			result.Failed = &FailedChange{Index: i, Change: change, Code: customErr.Code, Message: customErr.Message}
			result.Pending = append(result.Pending, changes[i+1:]...)
			failure = customErr

			p.logger.Warn().
				Err(err).
				Str("room_id", roomID).
				Int("index", i).
				Str("user_id", change.UserID).
				Str("op", string(change.Op)).
				Msg("Membership batch aborted.")
			break
		}
		result.Applied = append(result.Applied, AppliedChange{MembershipChange: change, Changed: changed})
	}

	unlock()
	p.notify(ctx, roomID, result.Applied)

	if failure != nil {
		return result, failure
	}
	return result, nil
}

// normalizeBatch checks every change and returns a copy with user ids trimmed.
func normalizeBatch(changes []MembershipChange) ([]MembershipChange, error) {
	if len(changes) == 0 {
		return nil, errs.NewError(errs.ErrMembershipBatchEmpty)
	}
	if len(changes) > MaxBatchSize {
		return nil, errs.NewError(errs.ErrMembershipBatchTooLarge, MaxBatchSize)
	}

	out := make([]MembershipChange, len(changes))
	for i, c := range changes {
		if c.Op != OpAdd && c.Op != OpRemove {
			return nil, errs.NewError(errs.ErrMembershipOpInvalid, string(c.Op))
		}
		c.UserID = strings.TrimSpace(c.UserID)
		if c.UserID == "" {
			return nil, errs.NewError(errs.ErrMembershipUserMissing, i)
		}
		out[i] = c
	}
	return out, nil
}

func (p *MembershipProtocol) apply(ctx context.Context, roomID, conversationID string, c MembershipChange) (bool, error) {
	if c.Op == OpAdd {
		return p.add(ctx, roomID, conversationID, c.UserID)
	}
	return p.remove(ctx, roomID, conversationID, c.UserID)
}

func (p *MembershipProtocol) add(ctx context.Context, roomID, conversationID, userID string) (bool, error) {
	if err := p.userExists(ctx, userID); err != nil {
		return false, err
	}

	changed, err := p.ledger.add(ctx, roomID, userID)
	if err != nil {
		return false, err
	}

	if _, err := p.convs.AddParticipant(ctx, conversationID, userID); err != nil {
		if changed {
			p.compensate(ctx, roomID, userID, OpRemove)
		}
		return false, err
	}
	return changed, nil
}

func (p *MembershipProtocol) remove(ctx context.Context, roomID, conversationID, userID string) (bool, error) {
	changed, err := p.ledger.remove(ctx, roomID, userID)
	if err != nil {
		return false, err
	}

	if _, err := p.convs.RemoveParticipant(ctx, conversationID, userID); err != nil {
		if changed {
			p.compensate(ctx, roomID, userID, OpAdd)
		}
		return false, err
	}
	return changed, nil
}

// compensate reverts a ledger write whose conversation counterpart failed.
func (p *MembershipProtocol) compensate(ctx context.Context, roomID, userID string, op Op) {
	dctx, cancel := p.detachedCtx(ctx)
	defer cancel()

	var err error
	if op == OpAdd {
		_, err = p.ledger.add(dctx, roomID, userID)
	} else {
		_, err = p.ledger.remove(dctx, roomID, userID)
	}

	if err != nil {
		p.logger.Error().
			Err(err).
			Str("room_id", roomID).
			Str("user_id", userID).
			Str("op", string(op)).
			Msg("Compensation failed, ledger and conversation disagree.")
		return
	}
	p.logger.Info().Str("room_id", roomID).Str("user_id", userID).Str("op", string(op)).Msg("Ledger write compensated.")
}

func (p *MembershipProtocol) notify(ctx context.Context, roomID string, applied []AppliedChange) {
	if p.listener == nil {
		return
	}

	for _, a := range applied {
		if !a.Changed {
			continue
		}

		p.listener.OnMembershipChanged(ctx, roomID, a.UserID, a.Op)

		eventType := EventMemberAdded
		if a.Op == OpRemove {
			eventType = EventMemberRemoved
		}
		p.listener.Publish(ctx, roomID, mustEvent(eventType, roomID, MemberPayload{UserID: a.UserID}))
	}
}

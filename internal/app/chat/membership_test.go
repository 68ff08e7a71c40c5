package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomhub/internal/pkg/errs"
)

func TestUpdateMembership_AppliesInOrder(t *testing.T) {
	f := newFixture(t)
	room := f.createRoom(t, false, "u2", "u3")

	res, err := f.manager.Membership.Update(context.Background(), room.ID, []MembershipChange{
		{UserID: "u4", Op: OpAdd},
		{UserID: "u2", Op: OpRemove},
	})
	require.NoError(t, err)
	require.Len(t, res.Applied, 2)
	assert.True(t, res.Applied[0].Changed)
	assert.True(t, res.Applied[1].Changed)
	assert.Nil(t, res.Failed)
	assert.Empty(t, res.Pending)

	members := f.requireConsistent(t, room.ID)
	assert.ElementsMatch(t, []string{"u1", "u3", "u4"}, members)
}

func TestUpdateMembership_MissingUserAbortsBeforeLaterChanges(t *testing.T) {
	f := newFixture(t)
	room := f.createRoom(t, false, "u2", "u3")
	f.users.Delete("u4")

	res, err := f.manager.Membership.Update(context.Background(), room.ID, []MembershipChange{
		{UserID: "u4", Op: OpAdd},
		{UserID: "u2", Op: OpRemove},
	})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindNotFound))

	require.NotNil(t, res)
	assert.Empty(t, res.Applied)
	require.NotNil(t, res.Failed)
	assert.Equal(t, 0, res.Failed.Index)
	assert.Equal(t, errs.ErrUserNotFound, res.Failed.Code)
	assert.Equal(t, []MembershipChange{{UserID: "u2", Op: OpRemove}}, res.Pending)

	members := f.requireConsistent(t, room.ID)
	assert.ElementsMatch(t, []string{"u1", "u2", "u3"}, members)
}

func TestUpdateMembership_Idempotent(t *testing.T) {
	f := newFixture(t)
	room := f.createRoom(t, false, "u2")

	res, err := f.manager.Membership.Update(context.Background(), room.ID, []MembershipChange{
		{UserID: "u2", Op: OpAdd},
		{UserID: "u3", Op: OpRemove},
		{UserID: "u4", Op: OpAdd},
		{UserID: "u4", Op: OpAdd},
	})
	require.NoError(t, err)

	changed := make([]bool, len(res.Applied))
	for i, a := range res.Applied {
		changed[i] = a.Changed
	}
	assert.Equal(t, []bool{false, false, true, false}, changed)

	members := f.requireConsistent(t, room.ID)
	assert.ElementsMatch(t, []string{"u1", "u2", "u4"}, members)
}

func TestUpdateMembership_InvalidBatchAppliesNothing(t *testing.T) {
	tests := []struct {
		name    string
		changes []MembershipChange
		code    int
	}{
		{name: "empty", changes: nil, code: errs.ErrMembershipBatchEmpty},
		{name: "unknown op", changes: []MembershipChange{{UserID: "u4", Op: OpAdd}, {UserID: "u2", Op: "promote"}}, code: errs.ErrMembershipOpInvalid},
		{name: "missing user", changes: []MembershipChange{{UserID: "u4", Op: OpAdd}, {Op: OpRemove}}, code: errs.ErrMembershipUserMissing},
		{name: "too large", changes: make([]MembershipChange, MaxBatchSize+1), code: errs.ErrMembershipBatchTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			room := f.createRoom(t, false, "u2")

			res, err := f.manager.Membership.Update(context.Background(), room.ID, tt.changes)
			assert.Nil(t, res)
			customErr, ok := errs.As(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, customErr.Code)
			assert.Equal(t, errs.KindInvalid, customErr.Kind)

			members := f.requireConsistent(t, room.ID)
			assert.ElementsMatch(t, []string{"u1", "u2"}, members)
		})
	}
}

func TestUpdateMembership_UnknownRoom(t *testing.T) {
	f := newFixture(t)

	_, err := f.manager.Membership.Update(context.Background(), "nope", []MembershipChange{{UserID: "u2", Op: OpAdd}})
	customErr, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.ErrRoomNotFound, customErr.Code)
}

func TestUpdateMembership_CompensatesFailedParticipantWrite(t *testing.T) {
	f := newFixture(t)
	room := f.createRoom(t, false, "u2")

	f.store.set(func(s *faultyStore) { s.failAddParticipant = errors.New("conversation shard down") })
	res, err := f.manager.Membership.Update(context.Background(), room.ID, []MembershipChange{{UserID: "u3", Op: OpAdd}})
	require.Error(t, err)
	require.NotNil(t, res.Failed)
	assert.Empty(t, res.Applied)
	assert.ElementsMatch(t, []string{"u1", "u2"}, f.requireConsistent(t, room.ID))

	f.store.set(func(s *faultyStore) {
		s.failAddParticipant = nil
		s.failRemoveParticipant = errors.New("conversation shard down")
	})
	_, err = f.manager.Membership.Update(context.Background(), room.ID, []MembershipChange{{UserID: "u2", Op: OpRemove}})
	require.Error(t, err)
	assert.ElementsMatch(t, []string{"u1", "u2"}, f.requireConsistent(t, room.ID))
}

func TestUpdateMembership_CreatorCanBeRemoved(t *testing.T) {
	f := newFixture(t)
	room := f.createRoom(t, false, "u2")

	_, err := f.manager.Membership.Update(context.Background(), room.ID, []MembershipChange{{UserID: "u1", Op: OpRemove}})
	require.NoError(t, err)

	got, err := f.manager.GetRoom(context.Background(), room.ID)
	require.NoError(t, err)
	assert.Equal(t, "u1", got.CreatorID)
	assert.Equal(t, []string{"u2"}, got.Members)
}

func TestUpdateMembership_ConcurrentBatchesStayConsistent(t *testing.T) {
	f := newFixture(t)
	room := f.createRoom(t, false)

	users := []string{"u2", "u3", "u4"}
	var wg sync.WaitGroup
	for i := range 30 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			op := OpAdd
			if i%3 == 0 {
				op = OpRemove
			}
			_, err := f.manager.Membership.Update(context.Background(), room.ID, []MembershipChange{
				{UserID: users[i%len(users)], Op: op},
				{UserID: users[(i+1)%len(users)], Op: OpAdd},
			})
			assert.NoError(t, err, fmt.Sprintf("batch %d", i))
		}()
	}
	wg.Wait()

	f.requireConsistent(t, room.ID)
	assert.Zero(t, f.manager.Registry.locks.Len())
}

func TestUpdateMembership_NotifiesAfterApplying(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.createRoom(t, false, "u2")

	watcher := &recordingSink{}
	require.NoError(t, f.manager.Router.Connect("s1", "u1", watcher))
	require.NoError(t, f.manager.Router.Subscribe(ctx, "s1", room.ID))

	_, err := f.manager.Membership.Update(ctx, room.ID, []MembershipChange{
		{UserID: "u3", Op: OpAdd},
		{UserID: "u3", Op: OpAdd},
		{UserID: "u2", Op: OpRemove},
	})
	require.NoError(t, err)

	// The no-op second add produces no event.
	assert.Equal(t, []EventType{EventMemberAdded, EventMemberRemoved}, watcher.types())
}

func TestUpdateMembership_TrimsUserIDs(t *testing.T) {
	f := newFixture(t)
	room := f.createRoom(t, false, "u2")

	res, err := f.manager.Membership.Update(context.Background(), room.ID, []MembershipChange{
		{UserID: " u2 ", Op: OpRemove},
		{UserID: "\tu3", Op: OpAdd},
	})
	require.NoError(t, err)
	require.Len(t, res.Applied, 2)
	assert.Equal(t, "u2", res.Applied[0].UserID)
	assert.True(t, res.Applied[0].Changed)
	assert.Equal(t, "u3", res.Applied[1].UserID)
	assert.True(t, res.Applied[1].Changed)

	members := f.requireConsistent(t, room.ID)
	assert.ElementsMatch(t, []string{"u1", "u3"}, members)
}

func TestLedger_IsMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.createRoom(t, false, "u2")

	for userID, want := range map[string]bool{"u1": true, "u2": true, "u3": false, "": false} {
		got, err := f.manager.Ledger.IsMember(ctx, room.ID, userID)
		require.NoError(t, err)
		assert.Equal(t, want, got, "user %q", userID)
	}

	_, err := f.manager.Membership.Update(ctx, room.ID, []MembershipChange{{UserID: "u2", Op: OpRemove}})
	require.NoError(t, err)
	got, err := f.manager.Ledger.IsMember(ctx, room.ID, "u2")
	require.NoError(t, err)
	assert.False(t, got)

	_, err = f.manager.Ledger.IsMember(ctx, "no-such-room", "u1")
	assert.True(t, errs.Is(err, errs.KindNotFound))
}

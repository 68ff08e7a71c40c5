package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomLocks_ExclusivePerRoom(t *testing.T) {
	locks := newRoomLocks()
	ctx := context.Background()

	release, err := locks.Lock(ctx, "a")
	require.NoError(t, err)

	// Another room is independent.
	releaseB, err := locks.Lock(ctx, "b")
	require.NoError(t, err)
	releaseB()

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = locks.Lock(waitCtx, "a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	acquired := make(chan func())
	go func() {
		r, err := locks.Lock(ctx, "a")
		assert.NoError(t, err)
		acquired <- r
	}()

	select {
	case <-acquired:
		t.Fatal("lock acquired while held")
	case <-time.After(20 * time.Millisecond):
	}

	release()
	release() // second call is a no-op

	select {
	case r := <-acquired:
		r()
	case <-time.After(time.Second):
		t.Fatal("lock not handed over")
	}

	assert.Zero(t, locks.Len())
}

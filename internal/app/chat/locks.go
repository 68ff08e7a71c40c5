package chat

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// roomLocks hands out one exclusive lock per room id. Entries are reference counted
// and dropped when nobody holds or waits for them.
type roomLocks struct {
	mu    sync.Mutex
	locks map[string]*roomLock
}

type roomLock struct {
	sem  *semaphore.Weighted
	refs int
}

func newRoomLocks() *roomLocks {
	return &roomLocks{locks: make(map[string]*roomLock)}
}

// Lock blocks until the room lock is held or ctx is done. The returned func releases it.
func (l *roomLocks) Lock(ctx context.Context, roomID string) (func(), error) {
	l.mu.Lock()
	lk, ok := l.locks[roomID]
	if !ok {
		lk = &roomLock{sem: semaphore.NewWeighted(1)}
		l.locks[roomID] = lk
	}
	lk.refs++
	l.mu.Unlock()

	if err := lk.sem.Acquire(ctx, 1); err != nil {
		l.unref(roomID, lk)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			lk.sem.Release(1)
			l.unref(roomID, lk)
		})
	}, nil
}

func (l *roomLocks) unref(roomID string, lk *roomLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, roomID)
	}
}

// Len reports how many rooms currently have a holder or waiter.
func (l *roomLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

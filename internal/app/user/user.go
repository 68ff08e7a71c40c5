/*
Package user describes chat users as seen by this server and the read-only
directory used to resolve them.

Users are created and authenticated elsewhere; the chat core only asks whether an
id exists and, for display, what its name is.
*/
package user

import (
	"context"
	"sort"
	"sync"
)

// User is the public identity of a chat participant.
type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Firstname string `json:"firstname,omitempty"`
}

// Directory resolves user identities.
type Directory interface {
	// Exists reports whether id is a known user.
	Exists(ctx context.Context, id string) (bool, error)

	// Lookup returns the known users among ids, in the order of ids. Unknown ids are skipped.
	Lookup(ctx context.Context, ids []string) ([]User, error)
}

// MemoryDirectory is an in-process Directory used by tests and the memory store driver.
type MemoryDirectory struct {
	mu    sync.RWMutex
	users map[string]User
}

// NewMemoryDirectory returns a directory seeded with users.
func NewMemoryDirectory(users ...User) *MemoryDirectory {
	d := &MemoryDirectory{users: make(map[string]User, len(users))}
	d.Put(users...)
	return d
}

// Put adds or replaces users.
func (d *MemoryDirectory) Put(users ...User) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, u := range users {
		d.users[u.ID] = u
	}
}

// Delete forgets a user.
func (d *MemoryDirectory) Delete(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.users, id)
}

func (d *MemoryDirectory) Exists(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	_, ok := d.users[id]
	return ok, nil
}

func (d *MemoryDirectory) Lookup(ctx context.Context, ids []string) ([]User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]User, 0, len(ids))
	for _, id := range ids {
		if u, ok := d.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

// IDs lists every known user id, sorted.
func (d *MemoryDirectory) IDs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := make([]string, 0, len(d.users))
	for id := range d.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

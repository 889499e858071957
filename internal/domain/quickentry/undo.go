package quickentry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUndoExpired   = errors.New("undo window has expired")
	ErrUndoNotFound  = errors.New("no undoable entry with that id")
	ErrNothingToUndo = errors.New("nothing to undo")
)

// Deleter removes a stored transaction.
type Deleter interface {
	Delete(ctx context.Context, id uuid.UUID) error
}

// UndoTracker remembers recently created entries until their undo window
// closes. It never touches storage on expiry.
type UndoTracker struct {
	mu      sync.Mutex
	window  time.Duration
	clock   func() time.Time
	entries map[uuid.UUID]time.Time
	last    uuid.UUID
}

func NewUndoTracker(window time.Duration) *UndoTracker {
	return &UndoTracker{
		window:  window,
		clock:   time.Now,
		entries: make(map[uuid.UUID]time.Time),
	}
}

// WithClock overrides the wall clock, for tests.
func (u *UndoTracker) WithClock(clock func() time.Time) *UndoTracker {
	u.clock = clock
	return u
}

// Record opens the undo window for id, starting at createdAt, and returns
// when it closes.
func (u *UndoTracker) Record(id uuid.UUID, createdAt time.Time) time.Time {
	u.mu.Lock()
	defer u.mu.Unlock()
	expires := createdAt.Add(u.window)
	u.entries[id] = expires
	u.last = id
	return expires
}

// Undo deletes id if its window is still open.
func (u *UndoTracker) Undo(ctx context.Context, repo Deleter, id uuid.UUID) error {
	u.mu.Lock()
	expires, ok := u.entries[id]
	if !ok {
		u.mu.Unlock()
		return ErrUndoNotFound
	}
	delete(u.entries, id)
	if u.last == id {
		u.last = uuid.Nil
	}
	u.mu.Unlock()

	if u.clock().After(expires) {
		return ErrUndoExpired
	}
	return repo.Delete(ctx, id)
}

// UndoLast undoes the most recent entry.
func (u *UndoTracker) UndoLast(ctx context.Context, repo Deleter) (uuid.UUID, error) {
	u.mu.Lock()
	id := u.last
	u.mu.Unlock()
	if id == uuid.Nil {
		return uuid.Nil, ErrNothingToUndo
	}
	return id, u.Undo(ctx, repo, id)
}

// ExpireUndo drops every entry whose window has closed and returns how many
// were dropped.
func (u *UndoTracker) ExpireUndo() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	now := u.clock()
	n := 0
	for id, expires := range u.entries {
		if now.After(expires) {
			delete(u.entries, id)
			if u.last == id {
				u.last = uuid.Nil
			}
			n++
		}
	}
	return n
}

// Pending returns the number of entries that can still be undone or have yet
// to be pruned.
func (u *UndoTracker) Pending() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.entries)
}

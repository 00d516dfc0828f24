package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ownerLocks serializes finalization per shopper within this process. The
// Redis lock in the service covers other instances; this avoids burning
// Redis round-trips on the common single-instance contention.
type ownerLocks struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newOwnerLocks() *ownerLocks {
	return &ownerLocks{entries: make(map[uuid.UUID]*lockEntry)}
}

// Acquire blocks until the owner's lock is held and returns the release
// function. Entries are reference-counted so the map does not grow with
// every shopper ever seen.
func (l *ownerLocks) Acquire(owner uuid.UUID) func() {
	l.mu.Lock()
	entry, ok := l.entries[owner]
	if !ok {
		entry = &lockEntry{}
		l.entries[owner] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, owner)
		}
		l.mu.Unlock()
	}
}

type distributedLocker interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	CheckoutLockKey(userID string) string
}

// acquireRedisLock takes the cross-instance per-shopper lock. The returned
// release is safe to call when acquisition failed.
func acquireRedisLock(ctx context.Context, locker distributedLocker, owner uuid.UUID, ttl time.Duration) (bool, func()) {
	if locker == nil {
		return true, func() {}
	}
	key := locker.CheckoutLockKey(owner.String())
	ok, err := locker.SetNX(ctx, key, "1", ttl)
	if err != nil || !ok {
		return false, func() {}
	}
	return true, func() { _ = locker.Del(context.WithoutCancel(ctx), key) }
}

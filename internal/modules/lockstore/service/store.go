package service

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"botfleet/internal/models"
)

// Store is a TTL-keyed store with redis semantics: atomic
// set-if-absent for locks plus plain get/set/delete for caches.
type Store interface {
	// TryAcquire succeeds iff key is absent, setting it with the TTL
	// in one atomic operation. A non-nil error means the store was
	// unreachable - callers must treat that as "already locked"
	// (fail closed), never as a free lock.
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release drops the key. Idempotent: releasing an expired or
	// never-held key is not an error.
	Release(ctx context.Context, key string) error

	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
}

// Guard couples an acquired lock with its release so every exit path
// of a pipeline run frees it exactly once.
type Guard struct {
	store    Store
	key      string
	released bool
}

// Acquire returns a guard for key, or ok=false when the lock is held
// elsewhere or the store is unreachable (err reports the latter as
// models.ErrLockUnavailable).
func Acquire(ctx context.Context, s Store, key string, ttl time.Duration) (*Guard, bool, error) {
	ok, err := s.TryAcquire(ctx, key, ttl)
	if err != nil {
		return nil, false, errors.Wrap(models.ErrLockUnavailable, err.Error())
	}
	if !ok {
		return nil, false, nil
	}
	return &Guard{store: s, key: key}, true, nil
}

// Release frees the lock. Safe to call multiple times; meant for defer.
func (g *Guard) Release(ctx context.Context) {
	if g == nil || g.released {
		return
	}
	g.released = true
	_ = g.store.Release(ctx, g.key)
}

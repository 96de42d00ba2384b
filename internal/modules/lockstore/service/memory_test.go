package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botfleet/internal/models"
)

func TestTryAcquireMutualExclusion(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	const goroutines = 32
	var wins int64
	var mu sync.Mutex
	var wg sync.WaitGroup

	start := make(chan struct{})
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			ok, err := s.TryAcquire(ctx, "processing:42", time.Minute)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.EqualValues(t, 1, wins, "exactly one concurrent acquirer must win")
}

func TestTryAcquireExpiry(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	now := time.Now()
	s.SetClock(func() time.Time { return now })

	ok, err := s.TryAcquire(ctx, "processing:7", 30*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.TryAcquire(ctx, "processing:7", 30*time.Second)
	require.NoError(t, err)
	assert.False(t, ok, "held lock must not be re-acquired")

	// Crash scenario: the holder never releases, TTL lapses.
	now = now.Add(31 * time.Second)

	ok, err = s.TryAcquire(ctx, "processing:7", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "expired lock must be acquirable")
}

func TestReleaseIdempotent(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Release(ctx, "processing:1"))

	ok, err := s.TryAcquire(ctx, "processing:1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, s.Release(ctx, "processing:1"))
	require.NoError(t, s.Release(ctx, "processing:1"))

	ok, err = s.TryAcquire(ctx, "processing:1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGuardReleasesOnce(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	g, ok, err := Acquire(ctx, s, "processing:9", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = Acquire(ctx, s, "processing:9", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	g.Release(ctx)
	g.Release(ctx) // deferred double release is fine

	_, ok, err = Acquire(ctx, s, "processing:9", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

type downStore struct{ *MemoryStore }

func (downStore) TryAcquire(context.Context, string, time.Duration) (bool, error) {
	return false, errors.New("connection refused")
}

func TestAcquireClassifiesStoreErrors(t *testing.T) {
	t.Parallel()

	_, ok, err := Acquire(context.Background(), downStore{NewMemoryStore()}, "processing:3", time.Minute)
	assert.False(t, ok)
	assert.ErrorIs(t, err, models.ErrLockUnavailable)
}

func TestCacheGetExpiry(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	now := time.Now()
	s.SetClock(func() time.Time { return now })

	require.NoError(t, s.SetWithTTL(ctx, "positions:broker", []byte(`[]`), time.Minute))

	v, ok, err := s.Get(ctx, "positions:broker")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte(`[]`), v)

	now = now.Add(2 * time.Minute)

	_, ok, err = s.Get(ctx, "positions:broker")
	require.NoError(t, err)
	assert.False(t, ok)
}

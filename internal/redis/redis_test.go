package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carpool/internal/domain"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

// ────────────────────────────────────────────────────────────────
// 1. RIDE LOCK
// ────────────────────────────────────────────────────────────────

func TestRideLocker_AcquireRelease(t *testing.T) {
	t.Parallel()
	mr, client := newTestClient(t)
	locker := NewRideLocker(client, time.Second)
	ctx := context.Background()

	unlock, err := locker.LockRide(ctx, "ride-1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("lock:ride:ride-1"))

	unlock()
	assert.False(t, mr.Exists("lock:ride:ride-1"))

	// A second call is a no-op.
	unlock()
}

func TestRideLocker_WaitsForHolder(t *testing.T) {
	t.Parallel()
	_, client := newTestClient(t)
	locker := NewRideLocker(client, time.Second)
	ctx := context.Background()

	unlock, err := locker.LockRide(ctx, "ride-1")
	require.NoError(t, err)

	shortCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	_, err = locker.LockRide(shortCtx, "ride-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()

	unlock2, err := locker.LockRide(ctx, "ride-1")
	require.NoError(t, err)
	unlock2()
}

func TestRideLocker_DoesNotReleaseForeignLock(t *testing.T) {
	t.Parallel()
	mr, client := newTestClient(t)
	locker := NewRideLocker(client, time.Second)

	unlock, err := locker.LockRide(context.Background(), "ride-1")
	require.NoError(t, err)

	// The lock expires and another holder takes it.
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set("lock:ride:ride-1", "someone-else"))

	unlock()
	got, err := mr.Get("lock:ride:ride-1")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestRideLocker_MutualExclusion(t *testing.T) {
	t.Parallel()
	_, client := newTestClient(t)
	locker := NewRideLocker(client, 5*time.Second)

	var (
		wg       sync.WaitGroup
		inside   int32
		overlaps int32
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			unlock, err := locker.LockRide(ctx, "ride-1")
			if err != nil {
				t.Errorf("lock: %v", err)
				return
			}
			if atomic.AddInt32(&inside, 1) > 1 {
				atomic.AddInt32(&overlaps, 1)
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Zero(t, atomic.LoadInt32(&overlaps))
}

// ────────────────────────────────────────────────────────────────
// 2. RIDE CACHE
// ────────────────────────────────────────────────────────────────

func TestCacheStore_Ride(t *testing.T) {
	t.Parallel()
	mr, client := newTestClient(t)
	cache := NewCacheStore(client, time.Minute)
	ctx := context.Background()

	miss, err := cache.GetRide(ctx, "ride-1")
	require.NoError(t, err)
	assert.Nil(t, miss)

	departure := time.Date(2030, 1, 2, 8, 30, 0, 0, time.UTC)
	ride := &domain.Ride{
		ID:             "ride-1",
		DriverID:       "driver-1",
		StartLocation:  "Manila City",
		EndLocation:    "Quezon City",
		DepartureTime:  departure,
		TotalSeats:     3,
		AvailableSeats: 2,
		Distance:       10,
		Duration:       20,
		Price:          180,
		Status:         domain.RideStatusActive,
	}
	require.NoError(t, cache.SetRide(ctx, ride))
	assert.Equal(t, time.Minute, mr.TTL("cache:ride:ride-1"))

	got, err := cache.GetRide(ctx, "ride-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Manila City", got.StartLocation)
	assert.Equal(t, 2, got.AvailableSeats)
	assert.True(t, departure.Equal(got.DepartureTime))
	assert.Equal(t, domain.RideStatusActive, got.Status)

	require.NoError(t, cache.InvalidateRide(ctx, "ride-1"))
	miss, err = cache.GetRide(ctx, "ride-1")
	require.NoError(t, err)
	assert.Nil(t, miss)
}

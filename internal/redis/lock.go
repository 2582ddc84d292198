package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultLockTTL bounds how long a crashed holder can block a ride.
	DefaultLockTTL = 10 * time.Second

	lockRetryInterval = 25 * time.Millisecond
	unlockTimeout     = 2 * time.Second
)

// releaseScript deletes the lock only if it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RideLocker is a distributed per-ride lock shared by every service instance.
type RideLocker struct {
	client        *redis.Client
	ttl           time.Duration
	retryInterval time.Duration
}

// NewRideLocker creates a new RideLocker.
func NewRideLocker(client *redis.Client, ttl time.Duration) *RideLocker {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &RideLocker{
		client:        client,
		ttl:           ttl,
		retryInterval: lockRetryInterval,
	}
}

func rideLockKey(rideID string) string {
	return fmt.Sprintf("lock:ride:%s", rideID)
}

// LockRide polls SET NX until the lock is held or ctx is done.
func (l *RideLocker) LockRide(ctx context.Context, rideID string) (func(), error) {
	key := rideLockKey(rideID)
	token := uuid.New().String()

	ticker := time.NewTicker(l.retryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			return l.unlockFunc(ctx, key, token), nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// unlockFunc releases the lock even when the caller's context has ended.
func (l *RideLocker) unlockFunc(ctx context.Context, key, token string) func() {
	released := false
	return func() {
		if released {
			return
		}
		released = true

		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), unlockTimeout)
		defer cancel()

		if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
			log.Printf("[LOCK] release %s failed: %v", key, err)
		}
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// DefaultLockWait bounds how long an operation waits for a ride lock.
const DefaultLockWait = 5 * time.Second

// RideLocker serializes read-check-write sequences on a single ride.
type RideLocker interface {
	// LockRide blocks until the lock for rideID is held or ctx is done.
	// The returned function releases the lock.
	LockRide(ctx context.Context, rideID string) (unlock func(), err error)
}

// LocalRideLocker is an in-process RideLocker keyed by ride ID.
type LocalRideLocker struct {
	mu    sync.Mutex
	locks map[string]*rideLock
}

type rideLock struct {
	sem  chan struct{}
	refs int
}

// NewLocalRideLocker creates a new LocalRideLocker.
func NewLocalRideLocker() *LocalRideLocker {
	return &LocalRideLocker{locks: make(map[string]*rideLock)}
}

// LockRide acquires the lock for rideID.
func (l *LocalRideLocker) LockRide(ctx context.Context, rideID string) (func(), error) {
	l.mu.Lock()
	lk, ok := l.locks[rideID]
	if !ok {
		lk = &rideLock{sem: make(chan struct{}, 1)}
		l.locks[rideID] = lk
	}
	lk.refs++
	l.mu.Unlock()

	select {
	case lk.sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-lk.sem
				l.release(rideID, lk)
			})
		}, nil
	case <-ctx.Done():
		l.release(rideID, lk)
		return nil, ctx.Err()
	}
}

// release drops a reference and forgets idle keys.
func (l *LocalRideLocker) release(rideID string, lk *rideLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, rideID)
	}
}

var _ RideLocker = (*LocalRideLocker)(nil)

// acquireRideLock waits at most wait for the ride lock.
func acquireRideLock(ctx context.Context, locker RideLocker, wait time.Duration, rideID string) (func(), error) {
	if locker == nil {
		return func() {}, nil
	}
	if wait <= 0 {
		wait = DefaultLockWait
	}

	lockCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	unlock, err := locker.LockRide(lockCtx, rideID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			log.Printf("[LOCK] timed out after %s waiting for ride %s", wait, rideID)
			return nil, ErrRideBusy
		}
		return nil, fmt.Errorf("lock ride %s: %w", rideID, err)
	}
	return unlock, nil
}

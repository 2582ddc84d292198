// Package memory provides in-process implementations of the repository interfaces.
// Units of work are serialized and their writes are staged until commit.
package memory

import (
	"context"
	"sync"

	"carpool/internal/domain"
	"carpool/internal/repository"
)

// Store is an in-memory implementation of repository.Store.
type Store struct {
	txMu sync.Mutex   // serializes writers
	mu   sync.RWMutex // guards the committed maps

	rides    map[string]*domain.Ride
	bookings map[string]*domain.Booking
	payments map[string]*domain.Payment
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		rides:    make(map[string]*domain.Ride),
		bookings: make(map[string]*domain.Booking),
		payments: make(map[string]*domain.Payment),
	}
}

// Repositories returns repositories whose writes commit immediately.
func (s *Store) Repositories() repository.Repositories {
	return s.repositories(nil)
}

// WithinTx runs fn with repositories that stage writes, then applies them
// atomically if fn succeeds. Units of work do not overlap.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := newStaging()
	if err := fn(ctx, s.repositories(tx)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range tx.rides {
		s.rides[id] = r
	}
	for id, b := range tx.bookings {
		s.bookings[id] = b
	}
	for id, p := range tx.payments {
		s.payments[id] = p
	}
	return nil
}

func (s *Store) repositories(tx *staging) repository.Repositories {
	return repository.Repositories{
		Rides:    &RideRepository{s: s, tx: tx},
		Bookings: &BookingRepository{s: s, tx: tx},
		Payments: &PaymentRepository{s: s, tx: tx},
	}
}

// staging holds the uncommitted writes of one unit of work.
type staging struct {
	rides    map[string]*domain.Ride
	bookings map[string]*domain.Booking
	payments map[string]*domain.Payment
}

func newStaging() *staging {
	return &staging{
		rides:    make(map[string]*domain.Ride),
		bookings: make(map[string]*domain.Booking),
		payments: make(map[string]*domain.Payment),
	}
}

// commit applies a single write outside a unit of work.
func (s *Store) commit(apply func()) {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	apply()
}

var _ repository.Store = (*Store)(nil)

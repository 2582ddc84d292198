package memory

import (
	"context"
	"sort"

	"carpool/internal/domain"
	"carpool/internal/repository"
)

// BookingRepository is an in-memory implementation of repository.BookingRepository.
type BookingRepository struct {
	s  *Store
	tx *staging
}

// Create persists a new booking.
func (r *BookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	r.put(booking)
	return nil
}

// GetByID retrieves a booking by ID.
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	if r.tx != nil {
		if booking, ok := r.tx.bookings[id]; ok {
			c := *booking
			return &c, nil
		}
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	booking, ok := r.s.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *booking
	return &c, nil
}

// GetByIDForUpdate retrieves a booking by ID. Units of work are already serialized.
func (r *BookingRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Booking, error) {
	return r.GetByID(ctx, id)
}

// GetByPassenger retrieves all bookings made by a passenger, newest first.
func (r *BookingRepository) GetByPassenger(ctx context.Context, passengerID string) ([]*domain.Booking, error) {
	bookings := r.filter(func(b *domain.Booking) bool { return b.PassengerID == passengerID })
	sort.SliceStable(bookings, func(i, j int) bool { return bookings[i].BookedAt.After(bookings[j].BookedAt) })
	return bookings, nil
}

// GetByRide retrieves all bookings on a ride, oldest first.
func (r *BookingRepository) GetByRide(ctx context.Context, rideID string) ([]*domain.Booking, error) {
	bookings := r.filter(func(b *domain.Booking) bool { return b.RideID == rideID })
	sort.SliceStable(bookings, func(i, j int) bool { return bookings[i].BookedAt.Before(bookings[j].BookedAt) })
	return bookings, nil
}

// GetByDriver retrieves all bookings on rides owned by a driver, newest first.
func (r *BookingRepository) GetByDriver(ctx context.Context, driverID string) ([]*domain.Booking, error) {
	rides := &RideRepository{s: r.s, tx: r.tx}
	owned, err := rides.GetByDriver(ctx, driverID)
	if err != nil {
		return nil, err
	}

	rideIDs := make(map[string]struct{}, len(owned))
	for _, ride := range owned {
		rideIDs[ride.ID] = struct{}{}
	}

	bookings := r.filter(func(b *domain.Booking) bool {
		_, ok := rideIDs[b.RideID]
		return ok
	})
	sort.SliceStable(bookings, func(i, j int) bool { return bookings[i].BookedAt.After(bookings[j].BookedAt) })
	return bookings, nil
}

// Update updates an existing booking.
func (r *BookingRepository) Update(ctx context.Context, booking *domain.Booking) error {
	if _, err := r.GetByID(ctx, booking.ID); err != nil {
		return err
	}
	r.put(booking)
	return nil
}

func (r *BookingRepository) put(booking *domain.Booking) {
	c := *booking
	if r.tx != nil {
		r.tx.bookings[c.ID] = &c
		return
	}
	r.s.commit(func() { r.s.bookings[c.ID] = &c })
}

func (r *BookingRepository) filter(keep func(*domain.Booking) bool) []*domain.Booking {
	r.s.mu.RLock()
	visible := make(map[string]*domain.Booking, len(r.s.bookings))
	for id, b := range r.s.bookings {
		visible[id] = b
	}
	r.s.mu.RUnlock()

	if r.tx != nil {
		for id, b := range r.tx.bookings {
			visible[id] = b
		}
	}

	var result []*domain.Booking
	for _, b := range visible {
		if keep(b) {
			c := *b
			result = append(result, &c)
		}
	}
	return result
}

var _ repository.BookingRepository = (*BookingRepository)(nil)

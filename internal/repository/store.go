package repository

import "context"

// Repositories groups the repositories bound to one unit of work.
type Repositories struct {
	Rides    RideRepository
	Bookings BookingRepository
	Payments PaymentRepository
}

// Store is the record store for rides, bookings and payments.
type Store interface {
	// Repositories returns repositories that operate outside any unit of work.
	Repositories() Repositories

	// WithinTx runs fn in a single unit of work. Writes made through repos are
	// committed together when fn returns nil and discarded otherwise.
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

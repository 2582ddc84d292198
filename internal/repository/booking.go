package repository

import (
	"context"

	"carpool/internal/domain"
)

// BookingRepository defines the persistence operations for bookings.
type BookingRepository interface {
	// Create persists a new booking.
	Create(ctx context.Context, booking *domain.Booking) error

	// GetByID retrieves a booking by ID.
	GetByID(ctx context.Context, id string) (*domain.Booking, error)

	// GetByIDForUpdate retrieves a booking by ID and locks it for the rest of the unit of work.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Booking, error)

	// GetByPassenger retrieves all bookings made by a passenger.
	GetByPassenger(ctx context.Context, passengerID string) ([]*domain.Booking, error)

	// GetByRide retrieves all bookings on a ride.
	GetByRide(ctx context.Context, rideID string) ([]*domain.Booking, error)

	// GetByDriver retrieves all bookings on rides published by a driver.
	// The driver relation is joined through rides at query time.
	GetByDriver(ctx context.Context, driverID string) ([]*domain.Booking, error)

	// Update updates an existing booking.
	Update(ctx context.Context, booking *domain.Booking) error
}

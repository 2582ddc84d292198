package repository

import (
	"context"
	"time"

	"carpool/internal/domain"
)

// RideFilter narrows a ride search. Zero-valued fields do not filter.
type RideFilter struct {
	From           string     // case-insensitive substring of StartLocation
	To             string     // case-insensitive substring of EndLocation
	Date           *time.Time // same calendar day as DepartureTime, in Date's location
	MinPrice       *float64   // inclusive
	MaxPrice       *float64   // inclusive
	DepartingAfter time.Time  // strict lower bound on DepartureTime
}

// DayBounds returns the half-open interval [start, end) covering the filter date.
func (f RideFilter) DayBounds() (time.Time, time.Time) {
	d := *f.Date
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
	return start, start.AddDate(0, 0, 1)
}

// RideRepository defines the persistence operations for rides.
type RideRepository interface {
	// Create persists a new ride.
	Create(ctx context.Context, ride *domain.Ride) error

	// GetByID retrieves a ride by ID.
	GetByID(ctx context.Context, id string) (*domain.Ride, error)

	// GetByIDForUpdate retrieves a ride by ID and locks it for the rest of the unit of work.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Ride, error)

	// GetByDriver retrieves all rides published by a driver.
	GetByDriver(ctx context.Context, driverID string) ([]*domain.Ride, error)

	// Search retrieves ACTIVE rides with free seats that match the filter,
	// ordered by departure time ascending.
	Search(ctx context.Context, filter RideFilter) ([]*domain.Ride, error)

	// Update updates an existing ride.
	Update(ctx context.Context, ride *domain.Ride) error
}

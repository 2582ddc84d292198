package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"carpool/internal/domain"
	"carpool/internal/repository"
)

const rideColumns = `id, driver_id, start_location, end_location, departure_time, total_seats, available_seats, distance, duration, notes, price, status, created_at, updated_at, cancelled_at`

// RideRepository is a PostgreSQL implementation of repository.RideRepository.
type RideRepository struct {
	q Querier
}

// NewRideRepository creates a new PostgreSQL ride repository.
func NewRideRepository(db *sql.DB) *RideRepository {
	return &RideRepository{q: db}
}

// NewRideRepositoryWithTx creates a ride repository using a transaction.
func NewRideRepositoryWithTx(tx *sql.Tx) *RideRepository {
	return &RideRepository{q: tx}
}

// Create persists a new ride.
func (r *RideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	query := `
		INSERT INTO rides (` + rideColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.q.ExecContext(ctx, query,
		ride.ID,
		ride.DriverID,
		ride.StartLocation,
		ride.EndLocation,
		ride.DepartureTime,
		ride.TotalSeats,
		ride.AvailableSeats,
		ride.Distance,
		ride.Duration,
		ride.Notes,
		ride.Price,
		ride.Status,
		ride.CreatedAt,
		nullTime(ride.UpdatedAt),
		nullTime(ride.CancelledAt),
	)

	return err
}

// GetByID retrieves a ride by ID.
func (r *RideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1`
	return scanRide(r.q.QueryRowContext(ctx, query, id))
}

// GetByIDForUpdate retrieves a ride by ID and holds a row lock until the transaction ends.
func (r *RideRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1 FOR UPDATE`
	return scanRide(r.q.QueryRowContext(ctx, query, id))
}

// GetByDriver retrieves all rides published by a driver, newest first.
func (r *RideRepository) GetByDriver(ctx context.Context, driverID string) ([]*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE driver_id = $1 ORDER BY created_at DESC`

	rows, err := r.q.QueryContext(ctx, query, driverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRides(rows)
}

// Search retrieves bookable rides matching the filter, earliest departure first.
func (r *RideRepository) Search(ctx context.Context, filter repository.RideFilter) ([]*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE status = $1 AND available_seats > 0 AND departure_time > $2`
	args := []any{domain.RideStatusActive, filter.DepartingAfter}

	if filter.From != "" {
		args = append(args, containsPattern(filter.From))
		query += fmt.Sprintf(" AND start_location ILIKE $%d", len(args))
	}
	if filter.To != "" {
		args = append(args, containsPattern(filter.To))
		query += fmt.Sprintf(" AND end_location ILIKE $%d", len(args))
	}
	if filter.Date != nil {
		start, end := filter.DayBounds()
		args = append(args, start, end)
		query += fmt.Sprintf(" AND departure_time >= $%d AND departure_time < $%d", len(args)-1, len(args))
	}
	if filter.MinPrice != nil {
		args = append(args, *filter.MinPrice)
		query += fmt.Sprintf(" AND price >= $%d", len(args))
	}
	if filter.MaxPrice != nil {
		args = append(args, *filter.MaxPrice)
		query += fmt.Sprintf(" AND price <= $%d", len(args))
	}
	query += " ORDER BY departure_time ASC"

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRides(rows)
}

// Update updates an existing ride.
func (r *RideRepository) Update(ctx context.Context, ride *domain.Ride) error {
	query := `
		UPDATE rides
		SET start_location = $1, end_location = $2, departure_time = $3, total_seats = $4, available_seats = $5,
		    distance = $6, duration = $7, notes = $8, price = $9, status = $10, updated_at = $11, cancelled_at = $12
		WHERE id = $13
	`

	result, err := r.q.ExecContext(ctx, query,
		ride.StartLocation,
		ride.EndLocation,
		ride.DepartureTime,
		ride.TotalSeats,
		ride.AvailableSeats,
		ride.Distance,
		ride.Duration,
		ride.Notes,
		ride.Price,
		ride.Status,
		nullTime(ride.UpdatedAt),
		nullTime(ride.CancelledAt),
		ride.ID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func scanRide(row rowScanner) (*domain.Ride, error) {
	var ride domain.Ride
	var updatedAt, cancelledAt sql.NullTime

	err := row.Scan(
		&ride.ID,
		&ride.DriverID,
		&ride.StartLocation,
		&ride.EndLocation,
		&ride.DepartureTime,
		&ride.TotalSeats,
		&ride.AvailableSeats,
		&ride.Distance,
		&ride.Duration,
		&ride.Notes,
		&ride.Price,
		&ride.Status,
		&ride.CreatedAt,
		&updatedAt,
		&cancelledAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	if updatedAt.Valid {
		ride.UpdatedAt = updatedAt.Time
	}
	if cancelledAt.Valid {
		ride.CancelledAt = cancelledAt.Time
	}

	return &ride, nil
}

func scanRides(rows *sql.Rows) ([]*domain.Ride, error) {
	var rides []*domain.Ride
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		rides = append(rides, ride)
	}
	return rides, rows.Err()
}

var _ repository.RideRepository = (*RideRepository)(nil)

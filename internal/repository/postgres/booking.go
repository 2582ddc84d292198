package postgres

import (
	"context"
	"database/sql"
	"errors"

	"carpool/internal/domain"
	"carpool/internal/repository"
)

const bookingColumns = `id, ride_id, passenger_id, number_of_seats, notes, fare, status, rejected_by_driver, booked_at, confirmed_at, cancelled_at`

const qualifiedBookingColumns = `b.id, b.ride_id, b.passenger_id, b.number_of_seats, b.notes, b.fare, b.status, b.rejected_by_driver, b.booked_at, b.confirmed_at, b.cancelled_at`

// BookingRepository is a PostgreSQL implementation of repository.BookingRepository.
type BookingRepository struct {
	q Querier
}

// NewBookingRepository creates a new PostgreSQL booking repository.
func NewBookingRepository(db *sql.DB) *BookingRepository {
	return &BookingRepository{q: db}
}

// NewBookingRepositoryWithTx creates a booking repository using a transaction.
func NewBookingRepositoryWithTx(tx *sql.Tx) *BookingRepository {
	return &BookingRepository{q: tx}
}

// Create persists a new booking.
func (r *BookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	query := `
		INSERT INTO bookings (` + bookingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.q.ExecContext(ctx, query,
		booking.ID,
		booking.RideID,
		booking.PassengerID,
		booking.NumberOfSeats,
		booking.Notes,
		booking.Fare,
		booking.Status,
		booking.RejectedByDriver,
		booking.BookedAt,
		nullTime(booking.ConfirmedAt),
		nullTime(booking.CancelledAt),
	)

	return err
}

// GetByID retrieves a booking by ID.
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	return scanBooking(r.q.QueryRowContext(ctx, query, id))
}

// GetByIDForUpdate retrieves a booking by ID and holds a row lock until the transaction ends.
func (r *BookingRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1 FOR UPDATE`
	return scanBooking(r.q.QueryRowContext(ctx, query, id))
}

// GetByPassenger retrieves all bookings made by a passenger, newest first.
func (r *BookingRepository) GetByPassenger(ctx context.Context, passengerID string) ([]*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE passenger_id = $1 ORDER BY booked_at DESC`
	return r.list(ctx, query, passengerID)
}

// GetByRide retrieves all bookings on a ride, oldest first.
func (r *BookingRepository) GetByRide(ctx context.Context, rideID string) ([]*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE ride_id = $1 ORDER BY booked_at ASC`
	return r.list(ctx, query, rideID)
}

// GetByDriver retrieves all bookings on rides owned by a driver, newest first.
func (r *BookingRepository) GetByDriver(ctx context.Context, driverID string) ([]*domain.Booking, error) {
	query := `
		SELECT ` + qualifiedBookingColumns + `
		FROM bookings b
		JOIN rides r ON r.id = b.ride_id
		WHERE r.driver_id = $1
		ORDER BY b.booked_at DESC
	`
	return r.list(ctx, query, driverID)
}

// Update updates the mutable fields of a booking.
func (r *BookingRepository) Update(ctx context.Context, booking *domain.Booking) error {
	query := `
		UPDATE bookings
		SET status = $1, rejected_by_driver = $2, confirmed_at = $3, cancelled_at = $4
		WHERE id = $5
	`

	result, err := r.q.ExecContext(ctx, query,
		booking.Status,
		booking.RejectedByDriver,
		nullTime(booking.ConfirmedAt),
		nullTime(booking.CancelledAt),
		booking.ID,
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

func (r *BookingRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Booking, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []*domain.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}
	return bookings, rows.Err()
}

func scanBooking(row rowScanner) (*domain.Booking, error) {
	var booking domain.Booking
	var confirmedAt, cancelledAt sql.NullTime

	err := row.Scan(
		&booking.ID,
		&booking.RideID,
		&booking.PassengerID,
		&booking.NumberOfSeats,
		&booking.Notes,
		&booking.Fare,
		&booking.Status,
		&booking.RejectedByDriver,
		&booking.BookedAt,
		&confirmedAt,
		&cancelledAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	if confirmedAt.Valid {
		booking.ConfirmedAt = confirmedAt.Time
	}
	if cancelledAt.Valid {
		booking.CancelledAt = cancelledAt.Time
	}

	return &booking, nil
}

var _ repository.BookingRepository = (*BookingRepository)(nil)

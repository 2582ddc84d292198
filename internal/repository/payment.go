package repository

import (
	"context"
	"time"

	"carpool/internal/domain"
)

// PaymentRepository defines the persistence operations for payments.
type PaymentRepository interface {
	// Create persists a new payment.
	Create(ctx context.Context, payment *domain.Payment) error

	// GetByID retrieves a payment by ID.
	GetByID(ctx context.Context, id string) (*domain.Payment, error)

	// GetByBookingID retrieves the payment linked to a booking.
	GetByBookingID(ctx context.Context, bookingID string) (*domain.Payment, error)

	// UpdateStatus updates the status of a payment. changedAt is recorded as the
	// refund time when status is REFUNDED.
	UpdateStatus(ctx context.Context, id string, status domain.PaymentStatus, changedAt time.Time) error
}

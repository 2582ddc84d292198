package domain

import "time"

// PaymentStatus represents the current status of a payment.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
)

// Payment is the ledger entry linked one-to-one with a booking.
type Payment struct {
	ID          string
	BookingID   string
	RideID      string
	PassengerID string
	Amount      float64
	Status      PaymentStatus
	CreatedAt   time.Time
	RefundedAt  time.Time
}

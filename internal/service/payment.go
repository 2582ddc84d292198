package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"carpool/internal/domain"
	"carpool/internal/repository"
)

// PaymentService keeps the payment ledger. Payments are opened and refunded only
// as steps of a booking unit of work.
type PaymentService struct {
	store repository.Store
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(store repository.Store) *PaymentService {
	return &PaymentService{store: store}
}

// open records a PENDING payment for a freshly created booking.
func (s *PaymentService) open(ctx context.Context, payments repository.PaymentRepository, booking *domain.Booking) (*domain.Payment, error) {
	payment := &domain.Payment{
		ID:          uuid.New().String(),
		BookingID:   booking.ID,
		RideID:      booking.RideID,
		PassengerID: booking.PassengerID,
		Amount:      booking.Fare,
		Status:      domain.PaymentStatusPending,
		CreatedAt:   booking.BookedAt,
	}

	if err := payments.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("open payment for booking %s: %w", booking.ID, err)
	}
	return payment, nil
}

// refund moves the booking's payment to REFUNDED. A booking without a payment is
// skipped; a payment that is already refunded is a StateError.
func (s *PaymentService) refund(ctx context.Context, payments repository.PaymentRepository, bookingID string, at time.Time) (*domain.Payment, error) {
	payment, err := payments.GetByBookingID(ctx, bookingID)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("load payment for booking %s: %w", bookingID, err)
	}

	if payment.Status == domain.PaymentStatusRefunded {
		return nil, &StateError{
			Entity:    "payment",
			ID:        payment.ID,
			Status:    string(payment.Status),
			Operation: "refund",
			Message:   "payment has already been refunded",
		}
	}

	if err := payments.UpdateStatus(ctx, payment.ID, domain.PaymentStatusRefunded, at); err != nil {
		return nil, fmt.Errorf("refund payment %s: %w", payment.ID, err)
	}

	payment.Status = domain.PaymentStatusRefunded
	payment.RefundedAt = at
	return payment, nil
}

// GetPayment retrieves a payment by ID.
func (s *PaymentService) GetPayment(ctx context.Context, paymentID string) (*domain.Payment, error) {
	if err := requireID("paymentId", paymentID); err != nil {
		return nil, err
	}

	payment, err := s.store.Repositories().Payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, notFound(err, "payment", paymentID)
	}
	return payment, nil
}

// GetPaymentByBooking retrieves the payment linked to a booking.
func (s *PaymentService) GetPaymentByBooking(ctx context.Context, bookingID string) (*domain.Payment, error) {
	if err := requireID("bookingId", bookingID); err != nil {
		return nil, err
	}

	payment, err := s.store.Repositories().Payments.GetByBookingID(ctx, bookingID)
	if err != nil {
		return nil, notFound(err, "payment", bookingID)
	}
	return payment, nil
}

// GetPaymentForUser retrieves a payment visible to userID: the paying passenger
// or the driver of the ride.
func (s *PaymentService) GetPaymentForUser(ctx context.Context, paymentID, userID string) (*domain.Payment, error) {
	payment, err := s.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if payment.PassengerID == userID {
		return payment, nil
	}

	ride, err := s.store.Repositories().Rides.GetByID(ctx, payment.RideID)
	if err != nil {
		return nil, notFound(err, "ride", payment.RideID)
	}
	if ride.DriverID != userID {
		return nil, &AuthorizationError{Entity: "payment", ID: payment.ID, ActorID: userID, Message: "you do not have access to this payment"}
	}
	return payment, nil
}

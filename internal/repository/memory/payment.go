package memory

import (
	"context"
	"time"

	"carpool/internal/domain"
	"carpool/internal/repository"
)

// PaymentRepository is an in-memory implementation of repository.PaymentRepository.
type PaymentRepository struct {
	s  *Store
	tx *staging
}

// Create persists a new payment. At most one payment may exist per booking.
func (r *PaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	if _, err := r.GetByBookingID(ctx, payment.BookingID); err == nil {
		return repository.ErrDuplicate
	}
	r.put(payment)
	return nil
}

// GetByID retrieves a payment by ID.
func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	if r.tx != nil {
		if payment, ok := r.tx.payments[id]; ok {
			c := *payment
			return &c, nil
		}
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	payment, ok := r.s.payments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *payment
	return &c, nil
}

// GetByBookingID retrieves the payment linked to a booking.
func (r *PaymentRepository) GetByBookingID(ctx context.Context, bookingID string) (*domain.Payment, error) {
	if r.tx != nil {
		for _, payment := range r.tx.payments {
			if payment.BookingID == bookingID {
				c := *payment
				return &c, nil
			}
		}
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, payment := range r.s.payments {
		if payment.BookingID == bookingID {
			c := *payment
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

// UpdateStatus updates the status of a payment.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, id string, status domain.PaymentStatus, changedAt time.Time) error {
	payment, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	payment.Status = status
	if status == domain.PaymentStatusRefunded {
		payment.RefundedAt = changedAt
	}
	r.put(payment)
	return nil
}

func (r *PaymentRepository) put(payment *domain.Payment) {
	c := *payment
	if r.tx != nil {
		r.tx.payments[c.ID] = &c
		return
	}
	r.s.commit(func() { r.s.payments[c.ID] = &c })
}

var _ repository.PaymentRepository = (*PaymentRepository)(nil)

package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"carpool/internal/domain"
	"carpool/internal/pricing"
	"carpool/internal/repository"
)

// BookingService owns the booking state machine and the seat and payment side
// effects of every transition.
type BookingService struct {
	store               repository.Store
	rideService         *RideService
	paymentService      *PaymentService
	notificationService *NotificationService
}

// NewBookingService creates a new BookingService. notificationService may be nil.
func NewBookingService(
	store repository.Store,
	rideService *RideService,
	paymentService *PaymentService,
	notificationService *NotificationService,
) *BookingService {
	return &BookingService{
		store:               store,
		rideService:         rideService,
		paymentService:      paymentService,
		notificationService: notificationService,
	}
}

// CreateBookingRequest contains the parameters for booking seats on a ride.
type CreateBookingRequest struct {
	RideID        string `validate:"required"`
	PassengerID   string `validate:"required"`
	NumberOfSeats int    `validate:"min=1"`
	Notes         string `validate:"max=500"`
}

// CreateBookingResponse contains the created booking and its payment.
type CreateBookingResponse struct {
	Booking *domain.Booking
	Payment *domain.Payment
}

// CreateBooking reserves seats on an ACTIVE ride. The booking, its payment and the
// seat decrement are committed together or not at all.
func (s *BookingService) CreateBooking(ctx context.Context, req CreateBookingRequest) (*CreateBookingResponse, error) {
	req.Notes = strings.TrimSpace(req.Notes)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	unlock, err := s.rideService.lock(ctx, req.RideID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		resp *CreateBookingResponse
		ride *domain.Ride
	)
	err = s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		ride, err = repos.Rides.GetByIDForUpdate(ctx, req.RideID)
		if err != nil {
			return notFound(err, "ride", req.RideID)
		}

		if !ride.IsBookable() {
			return &StateError{
				Entity:    "ride",
				ID:        ride.ID,
				Status:    string(ride.Status),
				Operation: "book",
				Message:   "ride is not active",
			}
		}

		if ride.AvailableSeats < req.NumberOfSeats {
			return &CapacityError{
				RideID:    ride.ID,
				Available: ride.AvailableSeats,
				Total:     ride.TotalSeats,
				Requested: -req.NumberOfSeats,
			}
		}

		perSeat, err := pricing.FarePerSeat(ride.Price, ride.TotalSeats)
		if err != nil {
			return &InternalError{Op: "fare for ride " + ride.ID, Err: err}
		}

		booking := &domain.Booking{
			ID:            uuid.New().String(),
			RideID:        ride.ID,
			PassengerID:   req.PassengerID,
			NumberOfSeats: req.NumberOfSeats,
			Notes:         req.Notes,
			Fare:          perSeat * float64(req.NumberOfSeats),
			Status:        domain.BookingStatusPending,
			BookedAt:      time.Now(),
		}

		if err := repos.Bookings.Create(ctx, booking); err != nil {
			return fmt.Errorf("create booking: %w", err)
		}

		payment, err := s.paymentService.open(ctx, repos.Payments, booking)
		if err != nil {
			return err
		}

		ride, err = s.rideService.adjustSeats(ctx, repos.Rides, ride.ID, -booking.NumberOfSeats)
		if err != nil {
			return err
		}

		resp = &CreateBookingResponse{Booking: booking, Payment: payment}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.rideService.invalidate(ctx, ride.ID)
	log.Printf("[BOOKING] created booking=%s ride=%s passenger=%s seats=%d fare=%.2f remaining=%d",
		resp.Booking.ID, ride.ID, resp.Booking.PassengerID, resp.Booking.NumberOfSeats, resp.Booking.Fare, ride.AvailableSeats)

	if s.notificationService != nil {
		_ = s.notificationService.NotifyBookingRequested(ctx, ride, resp.Booking)
	}

	return resp, nil
}

// ConfirmBooking accepts a PENDING booking on the driver's ride.
func (s *BookingService) ConfirmBooking(ctx context.Context, bookingID, driverID string) (*domain.Booking, error) {
	booking, _, err := s.transition(ctx, bookingID, "confirm",
		func(ctx context.Context, repos repository.Repositories, ride *domain.Ride, booking *domain.Booking, now time.Time) error {
			if ride.DriverID != driverID {
				return &AuthorizationError{Entity: "booking", ID: booking.ID, ActorID: driverID, Message: "only the ride's driver can confirm bookings"}
			}
			if booking.Status != domain.BookingStatusPending {
				return bookingStateError(booking, "confirm", "only pending bookings can be confirmed")
			}

			booking.Status = domain.BookingStatusConfirmed
			booking.ConfirmedAt = now
			return nil
		})
	if err != nil {
		return nil, err
	}

	log.Printf("[BOOKING] confirmed booking=%s ride=%s", booking.ID, booking.RideID)
	if s.notificationService != nil {
		_ = s.notificationService.NotifyBookingConfirmed(ctx, booking)
	}
	return booking, nil
}

// RejectBooking declines a PENDING booking, refunds its payment and restores its seats.
func (s *BookingService) RejectBooking(ctx context.Context, bookingID, driverID string) (*domain.Booking, error) {
	booking, _, err := s.transition(ctx, bookingID, "reject",
		func(ctx context.Context, repos repository.Repositories, ride *domain.Ride, booking *domain.Booking, now time.Time) error {
			if ride.DriverID != driverID {
				return &AuthorizationError{Entity: "booking", ID: booking.ID, ActorID: driverID, Message: "only the ride's driver can reject bookings"}
			}
			if booking.Status != domain.BookingStatusPending {
				return bookingStateError(booking, "reject", "only pending bookings can be rejected")
			}

			booking.Status = domain.BookingStatusCancelled
			booking.RejectedByDriver = true
			booking.CancelledAt = now
			return s.release(ctx, repos, booking, now)
		})
	if err != nil {
		return nil, err
	}

	log.Printf("[BOOKING] rejected booking=%s ride=%s seats_restored=%d", booking.ID, booking.RideID, booking.NumberOfSeats)
	if s.notificationService != nil {
		_ = s.notificationService.NotifyBookingRejected(ctx, booking)
	}
	return booking, nil
}

// CancelBooking cancels the passenger's PENDING or CONFIRMED booking, refunds its
// payment and restores its seats.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID, passengerID string) (*domain.Booking, error) {
	booking, ride, err := s.transition(ctx, bookingID, "cancel",
		func(ctx context.Context, repos repository.Repositories, ride *domain.Ride, booking *domain.Booking, now time.Time) error {
			if booking.PassengerID != passengerID {
				return &AuthorizationError{Entity: "booking", ID: booking.ID, ActorID: passengerID, Message: "you can only cancel your own bookings"}
			}
			if booking.Status.IsTerminal() {
				return bookingStateError(booking, "cancel", fmt.Sprintf("booking is already %s", strings.ToLower(string(booking.Status))))
			}

			booking.Status = domain.BookingStatusCancelled
			booking.CancelledAt = now
			return s.release(ctx, repos, booking, now)
		})
	if err != nil {
		return nil, err
	}

	log.Printf("[BOOKING] cancelled booking=%s ride=%s seats_restored=%d", booking.ID, booking.RideID, booking.NumberOfSeats)
	if s.notificationService != nil {
		_ = s.notificationService.NotifyBookingCancelled(ctx, ride, booking)
	}
	return booking, nil
}

// transitionFunc checks and mutates a locked booking. The booking is persisted
// when it returns nil.
type transitionFunc func(ctx context.Context, repos repository.Repositories, ride *domain.Ride, booking *domain.Booking, now time.Time) error

// transition runs fn under the booking's ride lock in one unit of work.
func (s *BookingService) transition(ctx context.Context, bookingID, op string, fn transitionFunc) (*domain.Booking, *domain.Ride, error) {
	if err := requireID("bookingId", bookingID); err != nil {
		return nil, nil, err
	}

	// The ride ID never changes, so it is safe to read it before locking.
	current, err := s.store.Repositories().Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, nil, notFound(err, "booking", bookingID)
	}

	unlock, err := s.rideService.lock(ctx, current.RideID)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	var (
		booking *domain.Booking
		ride    *domain.Ride
	)
	err = s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		booking, err = repos.Bookings.GetByIDForUpdate(ctx, bookingID)
		if err != nil {
			return notFound(err, "booking", bookingID)
		}

		ride, err = repos.Rides.GetByIDForUpdate(ctx, booking.RideID)
		if err != nil {
			return &InternalError{Op: op + " booking " + bookingID, Err: err}
		}

		if err := fn(ctx, repos, ride, booking, time.Now()); err != nil {
			return err
		}

		if err := repos.Bookings.Update(ctx, booking); err != nil {
			return fmt.Errorf("%s booking %s: %w", op, bookingID, err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.rideService.invalidate(ctx, booking.RideID)
	return booking, ride, nil
}

// release refunds the booking's payment and returns its seats to the ride.
func (s *BookingService) release(ctx context.Context, repos repository.Repositories, booking *domain.Booking, now time.Time) error {
	if _, err := s.paymentService.refund(ctx, repos.Payments, booking.ID, now); err != nil {
		return err
	}
	_, err := s.rideService.adjustSeats(ctx, repos.Rides, booking.RideID, booking.NumberOfSeats)
	return err
}

func bookingStateError(booking *domain.Booking, op, msg string) error {
	return &StateError{
		Entity:    "booking",
		ID:        booking.ID,
		Status:    string(booking.Status),
		Operation: op,
		Message:   msg,
	}
}

// GetBookingByID retrieves a booking by ID.
func (s *BookingService) GetBookingByID(ctx context.Context, bookingID string) (*domain.Booking, error) {
	if err := requireID("bookingId", bookingID); err != nil {
		return nil, err
	}

	booking, err := s.store.Repositories().Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, notFound(err, "booking", bookingID)
	}
	return booking, nil
}

// GetBookingForUser retrieves a booking visible to userID: its passenger or the
// driver of its ride.
func (s *BookingService) GetBookingForUser(ctx context.Context, bookingID, userID string) (*domain.Booking, error) {
	booking, err := s.GetBookingByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if booking.PassengerID == userID {
		return booking, nil
	}

	ride, err := s.store.Repositories().Rides.GetByID(ctx, booking.RideID)
	if err != nil {
		return nil, notFound(err, "ride", booking.RideID)
	}
	if ride.DriverID != userID {
		return nil, &AuthorizationError{Entity: "booking", ID: booking.ID, ActorID: userID, Message: "you do not have access to this booking"}
	}
	return booking, nil
}

// GetBookingsByPassenger retrieves all bookings made by a passenger.
func (s *BookingService) GetBookingsByPassenger(ctx context.Context, passengerID string) ([]*domain.Booking, error) {
	if err := requireID("passengerId", passengerID); err != nil {
		return nil, err
	}

	bookings, err := s.store.Repositories().Bookings.GetByPassenger(ctx, passengerID)
	if err != nil {
		return nil, fmt.Errorf("list bookings for passenger %s: %w", passengerID, err)
	}
	return bookings, nil
}

// GetBookingsByRide retrieves all bookings on a ride.
func (s *BookingService) GetBookingsByRide(ctx context.Context, rideID string) ([]*domain.Booking, error) {
	if err := requireID("rideId", rideID); err != nil {
		return nil, err
	}

	bookings, err := s.store.Repositories().Bookings.GetByRide(ctx, rideID)
	if err != nil {
		return nil, fmt.Errorf("list bookings for ride %s: %w", rideID, err)
	}
	return bookings, nil
}

// GetBookingsForRideOwner retrieves the bookings on a ride after checking that
// driverID published it.
func (s *BookingService) GetBookingsForRideOwner(ctx context.Context, rideID, driverID string) ([]*domain.Booking, error) {
	ride, err := s.rideService.GetRideByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.DriverID != driverID {
		return nil, &AuthorizationError{Entity: "ride", ID: ride.ID, ActorID: driverID, Message: "you can only view bookings on your own rides"}
	}
	return s.GetBookingsByRide(ctx, rideID)
}

// GetBookingsForDriver retrieves all bookings on rides published by a driver.
func (s *BookingService) GetBookingsForDriver(ctx context.Context, driverID string) ([]*domain.Booking, error) {
	if err := requireID("driverId", driverID); err != nil {
		return nil, err
	}

	bookings, err := s.store.Repositories().Bookings.GetByDriver(ctx, driverID)
	if err != nil {
		return nil, fmt.Errorf("list bookings for driver %s: %w", driverID, err)
	}
	return bookings, nil
}

// DriverSummary aggregates a driver's dashboard figures.
type DriverSummary struct {
	ActiveRides     int     // ACTIVE rides that have not departed
	TotalEarnings   float64 // sum of fares over CONFIRMED bookings
	TotalPassengers int     // seats held by CONFIRMED bookings
}

// GetDriverSummary reports a driver's upcoming rides and confirmed income.
func (s *BookingService) GetDriverSummary(ctx context.Context, driverID string) (*DriverSummary, error) {
	rides, err := s.rideService.GetRidesByDriver(ctx, driverID)
	if err != nil {
		return nil, err
	}
	bookings, err := s.GetBookingsForDriver(ctx, driverID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	summary := &DriverSummary{}
	for _, r := range rides {
		if r.Status == domain.RideStatusActive && r.DepartureTime.After(now) {
			summary.ActiveRides++
		}
	}
	for _, b := range bookings {
		if b.Status != domain.BookingStatusConfirmed {
			continue
		}
		summary.TotalEarnings += b.Fare
		summary.TotalPassengers += b.NumberOfSeats
	}
	return summary, nil
}

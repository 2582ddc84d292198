package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"carpool/internal/domain"
	"carpool/internal/pricing"
	"carpool/internal/repository"
)

// ReceiptService builds fare receipts for bookings.
type ReceiptService struct {
	store          repository.Store
	bookingService *BookingService
}

// NewReceiptService creates a new ReceiptService.
func NewReceiptService(store repository.Store, bookingService *BookingService) *ReceiptService {
	return &ReceiptService{
		store:          store,
		bookingService: bookingService,
	}
}

// GetReceipt returns the receipt for a booking visible to userID.
func (s *ReceiptService) GetReceipt(ctx context.Context, bookingID, userID string) (*domain.Receipt, error) {
	booking, err := s.bookingService.GetBookingForUser(ctx, bookingID, userID)
	if err != nil {
		return nil, err
	}

	repos := s.store.Repositories()
	ride, err := repos.Rides.GetByID(ctx, booking.RideID)
	if err != nil {
		return nil, &InternalError{Op: "receipt for booking " + booking.ID, Err: err}
	}

	paymentStatus := domain.PaymentStatusPending
	var refundedAt time.Time
	payment, err := repos.Payments.GetByBookingID(ctx, booking.ID)
	switch {
	case err == nil:
		paymentStatus = payment.Status
		refundedAt = payment.RefundedAt
	case !isNotFound(err):
		return nil, fmt.Errorf("load payment for booking %s: %w", booking.ID, err)
	}

	perSeat, err := pricing.FarePerSeat(ride.Price, ride.TotalSeats)
	if err != nil {
		return nil, &InternalError{Op: "fare for ride " + ride.ID, Err: err}
	}

	return &domain.Receipt{
		BookingID:      booking.ID,
		RideID:         ride.ID,
		DriverID:       ride.DriverID,
		PassengerID:    booking.PassengerID,
		StartLocation:  ride.StartLocation,
		EndLocation:    ride.EndLocation,
		DepartureTime:  ride.DepartureTime,
		Distance:       ride.Distance,
		Duration:       ride.Duration,
		BaseFare:       pricing.BaseFare,
		DistanceCharge: ride.Distance * pricing.DistanceRate,
		DurationCharge: float64(ride.Duration) * pricing.DurationRate,
		RidePrice:      ride.Price,
		TotalSeats:     ride.TotalSeats,
		PerSeat:        perSeat,
		Seats:          booking.NumberOfSeats,
		Fare:           booking.Fare,
		BookingStatus:  booking.Status,
		PaymentStatus:  paymentStatus,
		RefundedAt:     refundedAt,
		IssuedAt:       time.Now(),
	}, nil
}

// FormatReceipt renders a receipt as plain text for email or print.
func FormatReceipt(r *domain.Receipt) string {
	var b strings.Builder

	line := strings.Repeat("=", 37)
	rule := strings.Repeat("-", 37)

	fmt.Fprintln(&b, line)
	fmt.Fprintln(&b, "          CARPOOL RECEIPT")
	fmt.Fprintln(&b, line)
	fmt.Fprintf(&b, "Booking: %s\n", r.BookingID)
	fmt.Fprintf(&b, "Issued:  %s\n\n", r.IssuedAt.Format("Jan 02, 2006 3:04 PM"))

	fmt.Fprintln(&b, "RIDE")
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "From:      %s\n", r.StartLocation)
	fmt.Fprintf(&b, "To:        %s\n", r.EndLocation)
	fmt.Fprintf(&b, "Departure: %s\n", r.DepartureTime.Format("Jan 02, 2006 3:04 PM"))
	fmt.Fprintf(&b, "Distance:  %.2f km\n", r.Distance)
	fmt.Fprintf(&b, "Duration:  %d min\n\n", r.Duration)

	fmt.Fprintln(&b, "FARE BREAKDOWN")
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "Base fare:        %8.2f\n", r.BaseFare)
	fmt.Fprintf(&b, "Distance charge:  %8.2f\n", r.DistanceCharge)
	fmt.Fprintf(&b, "Duration charge:  %8.2f\n", r.DurationCharge)
	fmt.Fprintf(&b, "Ride price:       %8.2f\n", r.RidePrice)
	fmt.Fprintf(&b, "Per seat (/%d):    %8.2f\n", r.TotalSeats, pricing.Round2(r.PerSeat))
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "TOTAL (%d seat(s)): %7.2f\n\n", r.Seats, pricing.Round2(r.Fare))

	fmt.Fprintln(&b, "STATUS")
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "Booking: %s\n", r.BookingStatus)
	fmt.Fprintf(&b, "Payment: %s\n", r.PaymentStatus)
	if !r.RefundedAt.IsZero() {
		fmt.Fprintf(&b, "Refunded: %s\n", r.RefundedAt.Format("Jan 02, 2006 3:04 PM"))
	}
	fmt.Fprintln(&b, line)

	return b.String()
}

package tests

import (
	"context"
	"errors"
	"strings"
	"testing"

	"carpool/internal/domain"
	"carpool/internal/repository"
	"carpool/internal/repository/memory"
	"carpool/internal/service"
)

// ──────────────────────────────────────────────
// 1. BOOKING CREATION
// ──────────────────────────────────────────────

func TestCreateBooking_FareSeatsAndPayment(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ride := env.mustCreateRide(t, "driver-1", 2)

	resp := env.mustBook(t, ride.ID, "passenger-1", 1)

	if resp.Booking.Status != domain.BookingStatusPending {
		t.Errorf("expected PENDING booking, got %s", resp.Booking.Status)
	}
	if resp.Booking.Fare != 90.0 {
		t.Errorf("expected fare 90.0, got %.2f", resp.Booking.Fare)
	}
	if resp.Payment.Status != domain.PaymentStatusPending || resp.Payment.Amount != 90.0 {
		t.Errorf("expected PENDING payment of 90.0, got %s %.2f", resp.Payment.Status, resp.Payment.Amount)
	}
	if resp.Payment.BookingID != resp.Booking.ID {
		t.Errorf("payment linked to %s, want %s", resp.Payment.BookingID, resp.Booking.ID)
	}
	if got := env.ride(t, ride.ID); got.AvailableSeats != 1 {
		t.Errorf("expected 1 seat left, got %d", got.AvailableSeats)
	}

	keys := env.Publisher.RoutingKeys()
	if len(keys) != 1 || keys[0] != "booking.requested" {
		t.Errorf("expected booking.requested event, got %v", keys)
	}
	if r := env.Publisher.Recipients("booking.requested"); len(r) != 1 || r[0] != "driver-1" {
		t.Errorf("expected driver notified, got %v", r)
	}
}

func TestCreateBooking_MultipleSeatsFare(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ride := env.mustCreateRide(t, "driver-1", 3)

	resp := env.mustBook(t, ride.ID, "passenger-1", 2)

	// 180 / 3 * 2
	if resp.Booking.Fare != 120.0 {
		t.Errorf("expected fare 120.0, got %.2f", resp.Booking.Fare)
	}
}

func TestCreateBooking_InsufficientSeatsHasNoSideEffects(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ride := env.mustCreateRide(t, "driver-1", 2)
	ctx := context.Background()

	_, err := env.Bookings.CreateBooking(ctx, service.CreateBookingRequest{
		RideID: ride.ID, PassengerID: "passenger-1", NumberOfSeats: 3,
	})

	var ce *service.CapacityError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CapacityError, got %v", err)
	}
	if ce.Available != 2 {
		t.Errorf("expected Available=2 in error, got %d", ce.Available)
	}
	if !strings.Contains(err.Error(), "only 2 seat(s) available") {
		t.Errorf("unexpected message: %s", err.Error())
	}

	if got := env.ride(t, ride.ID); got.AvailableSeats != 2 {
		t.Errorf("expected seats untouched, got %d", got.AvailableSeats)
	}
	bookings, _ := env.Bookings.GetBookingsByPassenger(ctx, "passenger-1")
	if len(bookings) != 0 {
		t.Errorf("expected no booking stored, got %d", len(bookings))
	}
	if keys := env.Publisher.RoutingKeys(); len(keys) != 0 {
		t.Errorf("expected no notifications, got %v", keys)
	}
}

func TestCreateBooking_Preconditions(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ride := env.mustCreateRide(t, "driver-1", 2)
	ctx := context.Background()

	testCases := []struct {
		name string
		req  service.CreateBookingRequest
		kind error
	}{
		{"zero seats", service.CreateBookingRequest{RideID: ride.ID, PassengerID: "p", NumberOfSeats: 0}, service.ErrValidation},
		{"long notes", service.CreateBookingRequest{RideID: ride.ID, PassengerID: "p", NumberOfSeats: 1, Notes: strings.Repeat("x", domain.MaxBookingNotesLength+1)}, service.ErrValidation},
		{"missing ride id", service.CreateBookingRequest{PassengerID: "p", NumberOfSeats: 1}, service.ErrValidation},
		{"unknown ride", service.CreateBookingRequest{RideID: "missing", PassengerID: "p", NumberOfSeats: 1}, service.ErrNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.Bookings.CreateBooking(ctx, tc.req)
			expectKind(t, err, tc.kind)
		})
	}

	// Exactly 500 characters is accepted.
	_, err := env.Bookings.CreateBooking(ctx, service.CreateBookingRequest{
		RideID: ride.ID, PassengerID: "p", NumberOfSeats: 1, Notes: strings.Repeat("x", domain.MaxBookingNotesLength),
	})
	if err != nil {
		t.Errorf("expected 500-character notes to be accepted, got %v", err)
	}
}

func TestCreateBooking_AllOrNothing(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, withStore(func(m *memory.Store) repository.Store {
		return &FaultyStore{Store: m, PaymentCreateError: errors.New("payments table unavailable")}
	}))
	ride := env.mustCreateRide(t, "driver-1", 2)

	_, err := env.Bookings.CreateBooking(context.Background(), service.CreateBookingRequest{
		RideID: ride.ID, PassengerID: "passenger-1", NumberOfSeats: 1,
	})
	if err == nil {
		t.Fatal("expected payment failure to abort the booking")
	}

	if got := env.ride(t, ride.ID); got.AvailableSeats != 2 {
		t.Errorf("expected seats untouched, got %d", got.AvailableSeats)
	}
	bookings, _ := env.Store.Repositories().Bookings.GetByRide(context.Background(), ride.ID)
	if len(bookings) != 0 {
		t.Errorf("expected booking rolled back, found %d", len(bookings))
	}
}

// ──────────────────────────────────────────────
// 2. DRIVER DECISIONS
// ──────────────────────────────────────────────

func TestConfirmBooking(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ride := env.mustCreateRide(t, "driver-1", 2)
	resp := env.mustBook(t, ride.ID, "passenger-1", 1)
	ctx := context.Background()

	_, err := env.Bookings.ConfirmBooking(ctx, resp.Booking.ID, "driver-2")
	expectKind(t, err, service.ErrAuthorization)

	confirmed, err := env.Bookings.ConfirmBooking(ctx, resp.Booking.ID, "driver-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if confirmed.Status != domain.BookingStatusConfirmed || confirmed.ConfirmedAt.IsZero() {
		t.Errorf("expected CONFIRMED with timestamp, got %s", confirmed.Status)
	}
	if got := env.ride(t, ride.ID); got.AvailableSeats != 1 {
		t.Errorf("confirm must not change seats, got %d", got.AvailableSeats)
	}

	_, err = env.Bookings.ConfirmBooking(ctx, resp.Booking.ID, "driver-1")
	expectKind(t, err, service.ErrState)

	_, err = env.Bookings.ConfirmBooking(ctx, "missing", "driver-1")
	expectKind(t, err, service.ErrNotFound)
}

func TestRejectBooking_RefundsAndRestoresSeats(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ride := env.mustCreateRide(t, "driver-1", 3)
	resp := env.mustBook(t, ride.ID, "passenger-1", 2)

	rejected, err := env.Bookings.RejectBooking(context.Background(), resp.Booking.ID, "driver-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rejected.Status != domain.BookingStatusCancelled || !rejected.RejectedByDriver {
		t.Errorf("expected CANCELLED and rejected by driver, got %s %v", rejected.Status, rejected.RejectedByDriver)
	}
	if got := env.payment(t, resp.Booking.ID); got.Status != domain.PaymentStatusRefunded || got.RefundedAt.IsZero() {
		t.Errorf("expected REFUNDED payment, got %s", got.Status)
	}
	if got := env.ride(t, ride.ID); got.AvailableSeats != 3 {
		t.Errorf("expected 3 seats restored, got %d", got.AvailableSeats)
	}
	if r := env.Publisher.Recipients("booking.rejected"); len(r) != 1 || r[0] != "passenger-1" {
		t.Errorf("expected passenger notified of rejection, got %v", r)
	}
}

func TestRejectBooking_ConfirmedIsStateErrorWithoutMutation(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ride := env.mustCreateRide(t, "driver-1", 2)
	resp := env.mustBook(t, ride.ID, "passenger-1", 1)
	ctx := context.Background()

	if _, err := env.Bookings.ConfirmBooking(ctx, resp.Booking.ID, "driver-1"); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	_, err := env.Bookings.RejectBooking(ctx, resp.Booking.ID, "driver-1")
	var se *service.StateError
	if !errors.As(err, &se) {
		t.Fatalf("expected StateError, got %v", err)
	}
	if se.Status != string(domain.BookingStatusConfirmed) || se.Operation != "reject" {
		t.Errorf("unexpected state context: %+v", se)
	}

	if got := env.booking(t, resp.Booking.ID); got.Status != domain.BookingStatusConfirmed || got.RejectedByDriver {
		t.Errorf("expected booking untouched, got %s rejected=%v", got.Status, got.RejectedByDriver)
	}
	if got := env.payment(t, resp.Booking.ID); got.Status != domain.PaymentStatusPending {
		t.Errorf("expected payment untouched, got %s", got.Status)
	}
	if got := env.ride(t, ride.ID); got.AvailableSeats != 1 {
		t.Errorf("expected seats untouched, got %d", got.AvailableSeats)
	}
}

// ──────────────────────────────────────────────
// 3. PASSENGER CANCELLATION
// ──────────────────────────────────────────────

func TestCancelBooking_RestoresExactlyAndRefundsOnce(t *testing.T) {
	t.Parallel()

	for _, confirmFirst := range []bool{false, true} {
		name := "pending"
		if confirmFirst {
			name = "confirmed"
		}
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t)
			ride := env.mustCreateRide(t, "driver-1", 3)
			env.mustBook(t, ride.ID, "passenger-2", 1)
			resp := env.mustBook(t, ride.ID, "passenger-1", 2)
			ctx := context.Background()

			if confirmFirst {
				if _, err := env.Bookings.ConfirmBooking(ctx, resp.Booking.ID, "driver-1"); err != nil {
					t.Fatalf("confirm: %v", err)
				}
			}

			cancelled, err := env.Bookings.CancelBooking(ctx, resp.Booking.ID, "passenger-1")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cancelled.Status != domain.BookingStatusCancelled || cancelled.RejectedByDriver {
				t.Errorf("expected passenger cancellation, got %s rejected=%v", cancelled.Status, cancelled.RejectedByDriver)
			}
			if got := env.ride(t, ride.ID); got.AvailableSeats != 2 {
				t.Errorf("expected exactly 2 seats restored (2 available), got %d", got.AvailableSeats)
			}
			if got := env.payment(t, resp.Booking.ID); got.Status != domain.PaymentStatusRefunded {
				t.Errorf("expected REFUNDED, got %s", got.Status)
			}

			_, err = env.Bookings.CancelBooking(ctx, resp.Booking.ID, "passenger-1")
			expectKind(t, err, service.ErrState)
			if got := env.ride(t, ride.ID); got.AvailableSeats != 2 {
				t.Errorf("second cancel must not restore seats again, got %d", got.AvailableSeats)
			}
		})
	}
}

func TestCancelBooking_OnlyOwner(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ride := env.mustCreateRide(t, "driver-1", 2)
	resp := env.mustBook(t, ride.ID, "passenger-1", 1)

	_, err := env.Bookings.CancelBooking(context.Background(), resp.Booking.ID, "passenger-2")
	expectKind(t, err, service.ErrAuthorization)

	if got := env.booking(t, resp.Booking.ID); got.Status != domain.BookingStatusPending {
		t.Errorf("expected booking untouched, got %s", got.Status)
	}
}

func TestCancelBooking_AlreadyRefundedPaymentAborts(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ride := env.mustCreateRide(t, "driver-1", 2)
	resp := env.mustBook(t, ride.ID, "passenger-1", 1)
	ctx := context.Background()

	// Corrupt the ledger: the payment is refunded while the booking is live.
	if err := env.Store.Repositories().Payments.UpdateStatus(ctx, resp.Payment.ID, domain.PaymentStatusRefunded, resp.Booking.BookedAt); err != nil {
		t.Fatalf("seed refund: %v", err)
	}

	_, err := env.Bookings.CancelBooking(ctx, resp.Booking.ID, "passenger-1")
	expectKind(t, err, service.ErrState)

	if got := env.booking(t, resp.Booking.ID); got.Status != domain.BookingStatusPending {
		t.Errorf("expected booking untouched, got %s", got.Status)
	}
	if got := env.ride(t, ride.ID); got.AvailableSeats != 1 {
		t.Errorf("expected seats untouched, got %d", got.AvailableSeats)
	}
}

// ──────────────────────────────────────────────
// 4. READS
// ──────────────────────────────────────────────

func TestBookingReads(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	rideA := env.mustCreateRide(t, "driver-1", 3)
	rideB := env.mustCreateRide(t, "driver-1", 2)
	rideC := env.mustCreateRide(t, "driver-2", 2)
	a := env.mustBook(t, rideA.ID, "passenger-1", 1)
	env.mustBook(t, rideB.ID, "passenger-2", 1)
	env.mustBook(t, rideC.ID, "passenger-1", 1)

	forDriver, err := env.Bookings.GetBookingsForDriver(ctx, "driver-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(forDriver) != 2 {
		t.Errorf("expected 2 bookings across driver-1's rides, got %d", len(forDriver))
	}

	byPassenger, _ := env.Bookings.GetBookingsByPassenger(ctx, "passenger-1")
	if len(byPassenger) != 2 {
		t.Errorf("expected 2 bookings for passenger-1, got %d", len(byPassenger))
	}

	byRide, _ := env.Bookings.GetBookingsByRide(ctx, rideA.ID)
	if len(byRide) != 1 || byRide[0].ID != a.Booking.ID {
		t.Errorf("expected only booking %s on ride A, got %v", a.Booking.ID, byRide)
	}

	_, err = env.Bookings.GetBookingsForRideOwner(ctx, rideA.ID, "driver-2")
	expectKind(t, err, service.ErrAuthorization)

	// Visible to the passenger and the ride's driver only.
	if _, err := env.Bookings.GetBookingForUser(ctx, a.Booking.ID, "passenger-1"); err != nil {
		t.Errorf("passenger should see own booking: %v", err)
	}
	if _, err := env.Bookings.GetBookingForUser(ctx, a.Booking.ID, "driver-1"); err != nil {
		t.Errorf("driver should see booking on own ride: %v", err)
	}
	_, err = env.Bookings.GetBookingForUser(ctx, a.Booking.ID, "passenger-2")
	expectKind(t, err, service.ErrAuthorization)

	payment, err := env.Payments.GetPaymentByBooking(ctx, a.Booking.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := env.Payments.GetPaymentForUser(ctx, payment.ID, "driver-1"); err != nil {
		t.Errorf("driver should see payment on own ride: %v", err)
	}
	_, err = env.Payments.GetPaymentForUser(ctx, payment.ID, "driver-2")
	expectKind(t, err, service.ErrAuthorization)

	_, err = env.Payments.GetPayment(ctx, "missing")
	expectKind(t, err, service.ErrNotFound)
}

// ──────────────────────────────────────────────
// 5. RECEIPTS
// ──────────────────────────────────────────────

func TestReceipt_BreakdownAndVisibility(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	receipts := service.NewReceiptService(env.Store, env.Bookings)
	ride := env.mustCreateRide(t, "driver-1", 3)
	resp := env.mustBook(t, ride.ID, "passenger-1", 2)
	ctx := context.Background()

	receipt, err := receipts.GetReceipt(ctx, resp.Booking.ID, "passenger-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.BaseFare+receipt.DistanceCharge+receipt.DurationCharge != receipt.RidePrice {
		t.Errorf("breakdown %.2f+%.2f+%.2f does not add up to %.2f",
			receipt.BaseFare, receipt.DistanceCharge, receipt.DurationCharge, receipt.RidePrice)
	}
	if receipt.PerSeat != 60.0 || receipt.Fare != 120.0 || receipt.Seats != 2 {
		t.Errorf("unexpected fare: per seat %.2f x %d = %.2f", receipt.PerSeat, receipt.Seats, receipt.Fare)
	}
	if receipt.PaymentStatus != domain.PaymentStatusPending {
		t.Errorf("expected PENDING payment, got %s", receipt.PaymentStatus)
	}

	text := service.FormatReceipt(receipt)
	if !strings.Contains(text, "Manila City") || !strings.Contains(text, "120.00") {
		t.Errorf("formatted receipt missing route or total:\n%s", text)
	}

	if _, err := receipts.GetReceipt(ctx, resp.Booking.ID, "driver-1"); err != nil {
		t.Errorf("driver should see receipt: %v", err)
	}
	_, err = receipts.GetReceipt(ctx, resp.Booking.ID, "passenger-2")
	expectKind(t, err, service.ErrAuthorization)
}

// ──────────────────────────────────────────────
// 6. TERMINAL STATES
// ──────────────────────────────────────────────

func TestCompletedBooking_IsTerminal(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ride := env.mustCreateRide(t, "driver-1", 2)
	resp := env.mustBook(t, ride.ID, "passenger-1", 1)
	ctx := context.Background()

	err := env.Store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		b, err := repos.Bookings.GetByIDForUpdate(ctx, resp.Booking.ID)
		if err != nil {
			return err
		}
		b.Status = domain.BookingStatusCompleted
		return repos.Bookings.Update(ctx, b)
	})
	if err != nil {
		t.Fatalf("seed completed booking: %v", err)
	}

	testCases := []struct {
		name string
		call func() error
	}{
		{"cancel", func() error {
			_, err := env.Bookings.CancelBooking(ctx, resp.Booking.ID, "passenger-1")
			return err
		}},
		{"confirm", func() error {
			_, err := env.Bookings.ConfirmBooking(ctx, resp.Booking.ID, "driver-1")
			return err
		}},
		{"reject", func() error {
			_, err := env.Bookings.RejectBooking(ctx, resp.Booking.ID, "driver-1")
			return err
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.call()
			var se *service.StateError
			if !errors.As(err, &se) {
				t.Fatalf("expected StateError, got %v", err)
			}
			if se.Status != string(domain.BookingStatusCompleted) {
				t.Errorf("expected COMPLETED in error context, got %s", se.Status)
			}
		})
	}

	if got := env.booking(t, resp.Booking.ID); got.Status != domain.BookingStatusCompleted {
		t.Errorf("expected booking to stay COMPLETED, got %s", got.Status)
	}
	if got := env.ride(t, ride.ID); got.AvailableSeats != 1 {
		t.Errorf("expected seats untouched, got %d", got.AvailableSeats)
	}
	if got := env.payment(t, resp.Booking.ID); got.Status != domain.PaymentStatusPending {
		t.Errorf("expected payment untouched, got %s", got.Status)
	}
}

// ──────────────────────────────────────────────
// 7. DRIVER SUMMARY
// ──────────────────────────────────────────────

func TestGetDriverSummary(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	rideA := env.mustCreateRide(t, "driver-1", 3)
	rideB := env.mustCreateRide(t, "driver-1", 2)
	cancelledRide := env.mustCreateRide(t, "driver-1", 2)
	other := env.mustCreateRide(t, "driver-2", 3)

	confirmedA := env.mustBook(t, rideA.ID, "passenger-1", 2) // 120
	env.mustBook(t, rideA.ID, "passenger-2", 1)               // stays PENDING
	confirmedB := env.mustBook(t, rideB.ID, "passenger-3", 1) // 90
	rejected := env.mustBook(t, rideB.ID, "passenger-4", 1)
	otherBooking := env.mustBook(t, other.ID, "passenger-5", 3)

	for _, id := range []string{confirmedA.Booking.ID, confirmedB.Booking.ID} {
		if _, err := env.Bookings.ConfirmBooking(ctx, id, "driver-1"); err != nil {
			t.Fatalf("confirm %s: %v", id, err)
		}
	}
	if _, err := env.Bookings.RejectBooking(ctx, rejected.Booking.ID, "driver-1"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if _, err := env.Bookings.ConfirmBooking(ctx, otherBooking.Booking.ID, "driver-2"); err != nil {
		t.Fatalf("confirm other driver's booking: %v", err)
	}
	if _, err := env.Rides.DeleteRide(ctx, cancelledRide.ID, "driver-1"); err != nil {
		t.Fatalf("delete ride: %v", err)
	}

	summary, err := env.Bookings.GetDriverSummary(ctx, "driver-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.ActiveRides != 2 {
		t.Errorf("expected 2 active rides, got %d", summary.ActiveRides)
	}
	if summary.TotalEarnings != 210.0 {
		t.Errorf("expected earnings 210.0 from confirmed bookings, got %.2f", summary.TotalEarnings)
	}
	if summary.TotalPassengers != 3 {
		t.Errorf("expected 3 confirmed passengers, got %d", summary.TotalPassengers)
	}

	empty, err := env.Bookings.GetDriverSummary(ctx, "driver-without-rides")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *empty != (service.DriverSummary{}) {
		t.Errorf("expected zero summary, got %+v", *empty)
	}

	_, err = env.Bookings.GetDriverSummary(ctx, "")
	expectKind(t, err, service.ErrValidation)
}

package domain

import "time"

// BookingStatus represents the current status of a booking.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
	BookingStatusCompleted BookingStatus = "COMPLETED"
)

// MaxBookingNotesLength is the maximum number of characters allowed in booking notes.
const MaxBookingNotesLength = 500

// IsTerminal reports whether no further transitions are allowed from s.
func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusCancelled || s == BookingStatusCompleted
}

// Booking represents a passenger's reservation of seats on a ride.
type Booking struct {
	ID               string
	RideID           string
	PassengerID      string
	NumberOfSeats    int
	Notes            string
	Fare             float64 // frozen at booking time
	Status           BookingStatus
	RejectedByDriver bool
	BookedAt         time.Time
	ConfirmedAt      time.Time
	CancelledAt      time.Time
}

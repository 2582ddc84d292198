package domain

import "time"

// RideStatus represents the current status of a ride.
type RideStatus string

const (
	RideStatusActive    RideStatus = "ACTIVE"
	RideStatusCancelled RideStatus = "CANCELLED"
)

// MaxSeatsPerRide is the largest seat count a driver may offer.
const MaxSeatsPerRide = 3

// Ride represents a driver-published trip offer.
type Ride struct {
	ID             string
	DriverID       string
	StartLocation  string
	EndLocation    string
	DepartureTime  time.Time
	TotalSeats     int     // seats offered at creation or last edit
	AvailableSeats int     // 0 <= AvailableSeats <= TotalSeats
	Distance       float64 // kilometres
	Duration       int     // minutes
	Notes          string
	Price          float64 // total price of the ride, split across TotalSeats
	Status         RideStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CancelledAt    time.Time
}

// IsBookable reports whether the ride can accept new bookings.
func (r *Ride) IsBookable() bool {
	return r.Status == RideStatusActive
}

// ConsumedSeats returns the number of seats currently held by bookings.
func (r *Ride) ConsumedSeats() int {
	return r.TotalSeats - r.AvailableSeats
}

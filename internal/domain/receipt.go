package domain

import "time"

// Receipt summarizes what a passenger was charged for a booking.
type Receipt struct {
	BookingID     string
	RideID        string
	DriverID      string
	PassengerID   string
	StartLocation string
	EndLocation   string
	DepartureTime time.Time
	Distance      float64 // km
	Duration      int     // minutes

	// Ride price breakdown, shared by all seats.
	BaseFare       float64
	DistanceCharge float64
	DurationCharge float64
	RidePrice      float64
	TotalSeats     int

	PerSeat       float64
	Seats         int
	Fare          float64
	BookingStatus BookingStatus
	PaymentStatus PaymentStatus
	RefundedAt    time.Time
	IssuedAt      time.Time
}

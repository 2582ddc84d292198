// Package pricing computes ride prices and per-seat fares.
package pricing

import (
	"errors"
	"math"
)

// Fare constants.
const (
	BaseFare     = 30.0 // flat charge per ride
	DistanceRate = 12.0 // per kilometre
	DurationRate = 1.50 // per minute
)

// ErrInvalidSeatCount is returned when a fare is split across zero or fewer seats.
var ErrInvalidSeatCount = errors.New("pricing: seat count must be positive")

// CalculatePrice returns the total price of a ride.
// Callers validate that distance and duration are positive.
func CalculatePrice(distance float64, duration int) float64 {
	return BaseFare + distance*DistanceRate + float64(duration)*DurationRate
}

// FarePerSeat splits a ride's total price across its seats.
func FarePerSeat(totalPrice float64, totalSeats int) (float64, error) {
	if totalSeats <= 0 {
		return 0, ErrInvalidSeatCount
	}
	return totalPrice / float64(totalSeats), nil
}

// Breakdown itemizes a ride price.
type Breakdown struct {
	BaseFare       float64
	DistanceCharge float64
	DurationCharge float64
	Total          float64
	PerSeat        float64
	Seats          int
}

// Quote itemizes the price of a ride with the given distance, duration and seats.
func Quote(distance float64, duration int, seats int) (Breakdown, error) {
	perSeat, err := FarePerSeat(CalculatePrice(distance, duration), seats)
	if err != nil {
		return Breakdown{}, err
	}
	return Breakdown{
		BaseFare:       BaseFare,
		DistanceCharge: distance * DistanceRate,
		DurationCharge: float64(duration) * DurationRate,
		Total:          CalculatePrice(distance, duration),
		PerSeat:        perSeat,
		Seats:          seats,
	}, nil
}

// Round2 rounds an amount to two decimal places for display.
func Round2(amount float64) float64 {
	return math.Round(amount*100) / 100
}

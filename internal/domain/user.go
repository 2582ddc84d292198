package domain

import "time"

// UserType distinguishes drivers from passengers.
type UserType string

const (
	UserTypeDriver    UserType = "DRIVER"
	UserTypePassenger UserType = "PASSENGER"
)

// User represents a registered driver or passenger.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	UserType     UserType
	CreatedAt    time.Time
}

package service

import (
	"errors"
	"fmt"

	"carpool/internal/repository"
)

// Error kinds. Every typed error below matches exactly one of these through errors.Is.
var (
	ErrValidation    = errors.New("validation failed")
	ErrNotFound      = errors.New("not found")
	ErrAuthorization = errors.New("not authorized")
	ErrState         = errors.New("invalid state")
	ErrCapacity      = errors.New("insufficient capacity")
	ErrInternal      = errors.New("internal consistency error")
)

var (
	// ErrRideBusy is returned when the per-ride lock cannot be acquired in time.
	ErrRideBusy = errors.New("ride is busy, try again")

	// ErrEmailTaken is returned when registering an email that already exists.
	ErrEmailTaken = errors.New("user with this email already exists")

	// ErrInvalidCredentials is returned when login fails for any reason.
	ErrInvalidCredentials = &AuthorizationError{Message: "invalid email or password"}
)

// ValidationError reports malformed or out-of-range input for one field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError reports that a referenced entity does not exist.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s not found", e.Entity) }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func (e *NotFoundError) Unwrap() error { return repository.ErrNotFound }

// AuthorizationError reports that the actor does not own the resource.
type AuthorizationError struct {
	Entity  string
	ID      string
	ActorID string
	Message string
}

func (e *AuthorizationError) Error() string { return e.Message }

func (e *AuthorizationError) Is(target error) bool { return target == ErrAuthorization }

// StateError reports an operation that is illegal for the entity's current state.
type StateError struct {
	Entity    string
	ID        string
	Status    string
	Operation string
	Message   string
}

func (e *StateError) Error() string { return e.Message }

func (e *StateError) Is(target error) bool { return target == ErrState }

// CapacityError reports seat arithmetic that would leave a ride out of bounds.
type CapacityError struct {
	RideID    string
	Available int
	Total     int
	Requested int // signed seat delta
	Message   string
}

func (e *CapacityError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Requested > 0 {
		return fmt.Sprintf("cannot restore %d seat(s): ride already has %d of %d seat(s) available", e.Requested, e.Available, e.Total)
	}
	return fmt.Sprintf("only %d seat(s) available", e.Available)
}

func (e *CapacityError) Is(target error) bool { return target == ErrCapacity }

// InternalError reports a broken invariant in stored data.
type InternalError struct {
	Op  string
	Err error
}

func (e *InternalError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *InternalError) Is(target error) bool { return target == ErrInternal }

func (e *InternalError) Unwrap() error { return e.Err }

// notFound converts repository.ErrNotFound into a NotFoundError and wraps anything else.
func notFound(err error, entity, id string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return &NotFoundError{Entity: entity, ID: id}
	}
	return fmt.Errorf("load %s %s: %w", entity, id, err)
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}

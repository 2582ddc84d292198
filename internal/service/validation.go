package service

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"carpool/internal/domain"
)

var validate = newValidator()

// newValidator registers the "seats" alias so every request that carries a
// seat count shares one bound.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterAlias("seats", fmt.Sprintf("min=1,max=%d", domain.MaxSeatsPerRide))
	return v
}

// validateStruct checks v against its validate tags and reports the first
// failing field as a ValidationError.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("validate request: %w", err)
	}

	fe := fieldErrs[0]
	field := lowerFirst(fe.Field())
	return &ValidationError{Field: field, Reason: describe(field, fe)}
}

func describe(field string, fe validator.FieldError) string {
	isString := fe.Kind() == reflect.String

	switch fe.ActualTag() {
	case "required":
		return field + " is required"
	case "min":
		if isString {
			return fmt.Sprintf("%s must be at least %s characters long", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if isString {
			return fmt.Sprintf("%s cannot exceed %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s cannot exceed %s", field, fe.Param())
	case "gt":
		if fe.Param() == "0" {
			return field + " must be positive"
		}
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "email":
		return field + " must be a valid email address"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// validateDeparture requires departure to be set and strictly after now.
func validateDeparture(departure, now time.Time) error {
	if departure.IsZero() {
		return &ValidationError{Field: "departureTime", Reason: "departureTime is required"}
	}
	if !departure.After(now) {
		return &ValidationError{Field: "departureTime", Reason: "departure time must be in the future"}
	}
	return nil
}

// validatePrice rejects NaN, infinite and negative price bounds.
func validatePrice(field string, v *float64) error {
	if v == nil {
		return nil
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) || *v < 0 {
		return &ValidationError{Field: field, Reason: field + " must be a non-negative number"}
	}
	return nil
}

func requireID(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Reason: field + " is required"}
	}
	return nil
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

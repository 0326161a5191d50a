package leads

import "errors"

var (
	// ErrMissingRequired is returned when name or phone is absent
	ErrMissingRequired = errors.New("name and phone are required")

	// ErrInvalidPhone is returned when the phone does not reduce to 10 digits
	ErrInvalidPhone = errors.New("phone must be a valid 10-digit number")

	// ErrInvalidEmail is returned when a non-empty email is malformed
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrLeadNotFound is returned when a lead is not found
	ErrLeadNotFound = errors.New("lead not found")

	// ErrPrimaryUnavailable is returned when no primary store is configured
	ErrPrimaryUnavailable = errors.New("leads: primary store not configured")
)

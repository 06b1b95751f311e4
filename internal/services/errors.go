package services

import (
	"errors"
	"fmt"
)

var (
	// ErrForbidden is returned when the access-control gate rejects a mutation.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidCredentials is returned by Authenticate and password changes
	// for unknown usernames or wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ValidationError reports a missing or invalid input field.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalidf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

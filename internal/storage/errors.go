package storage

import "errors"

var (
	// ErrUserNotFound is returned when a user row does not exist
	ErrUserNotFound = errors.New("user not found")

	// ErrDuplicateEmail is returned when an email is already registered
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrInsufficientCredits is returned when a conditional debit matches no row
	ErrInsufficientCredits = errors.New("insufficient credits")
)

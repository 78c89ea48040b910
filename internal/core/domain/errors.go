package domain

import "errors"

// Validation errors surfaced by domain constructors. Services translate
// these into apperror.ErrInvalidInput with caller-facing detail.
var (
	ErrEmptyIdentity      = errors.New("identity must not be empty")
	ErrMalformedIdentity  = errors.New("identity is malformed")
	ErrNoExecutives       = errors.New("executive set must not be empty")
	ErrDuplicateExecutive = errors.New("duplicate executive identity")
	ErrEmptyName          = errors.New("account name must not be empty")
	ErrNonPositiveAmount  = errors.New("amount must be positive")
)

package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrOperationFailed    = errors.New("storage operation failed")

	// Discount code lifecycle errors
	ErrConflict            = errors.New("conflict")
	ErrCodeNotFound        = errors.New("discount code not found")
	ErrCodeAlreadyUsed     = errors.New("discount code already used")
	ErrGenerationExhausted = errors.New("could not generate an unused discount code")
)

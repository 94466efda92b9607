package rewards

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAmount is returned by ComputePoints for a non-numeric, NaN,
	// infinite or negative amount.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidInput is returned by the batch operations when the
	// transaction sequence itself is missing.
	ErrInvalidInput = errors.New("invalid input: transactions must be a sequence")
)

// AmountError carries the offending value of a rejected amount.
// It matches ErrInvalidAmount with errors.Is.
type AmountError struct {
	Value any
}

func (e *AmountError) Error() string {
	return fmt.Sprintf("invalid amount: %v", e.Value)
}

func (e *AmountError) Is(target error) bool {
	return target == ErrInvalidAmount
}

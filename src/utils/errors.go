package utils

import (
	"errors"
	"fmt"
)

var (
	ErrValidation            = errors.New("validation error")
	ErrNotFound              = errors.New("not found")
	ErrPriceUnavailable      = errors.New("price unavailable")
	ErrInsufficientHoldings  = errors.New("insufficient holdings")
	ErrPersistence           = errors.New("persistence error")
	ErrTransactionNotPending = errors.New("transaction is not pending")
	ErrEmptyAllocation       = errors.New("allocation produced no tradable quantity")
	ErrBufferChanged         = errors.New("round-up buffer changed while consuming")
)

// ValidationError reports a malformed field. It matches ErrValidation with errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// PriceUnavailableError names the assets that had no usable price.
type PriceUnavailableError struct {
	AssetIDs []string
}

func (e *PriceUnavailableError) Error() string {
	return fmt.Sprintf("price unavailable for %v", e.AssetIDs)
}

func (e *PriceUnavailableError) Is(target error) bool {
	return target == ErrPriceUnavailable
}

// Persistence wraps a storage failure so callers can match ErrPersistence
// while keeping the driver error in the chain. ErrNotFound passes through.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrPersistence) || errors.Is(err, ErrNotFound) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}

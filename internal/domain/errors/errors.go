package errors

import (
	"errors"
	"fmt"
)

var (
	// Pricing snapshot errors
	ErrSnapshotNotFound          = errors.New("pricing snapshot not found")
	ErrSnapshotAlreadyConsumed   = errors.New("pricing snapshot already consumed")
	ErrSnapshotExpired           = errors.New("pricing snapshot has expired")
	ErrListingMismatch           = errors.New("pricing snapshot belongs to a different listing")
	ErrPaymentMethodNotAvailable = errors.New("payment method not available in pricing snapshot")

	// Listing errors
	ErrListingNotFound   = errors.New("listing not found")
	ErrUnitsNotOnListing = errors.New("ticket units do not belong to listing")
	ErrUnitsUnavailable  = errors.New("ticket units no longer available")

	// Transaction errors
	ErrTransactionNotFound    = errors.New("transaction not found")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrOptimisticLockFailed   = errors.New("optimistic lock conflict")

	// Payment confirmation errors
	ErrConfirmationNotFound        = errors.New("payment confirmation not found")
	ErrConfirmationAlreadyReviewed = errors.New("payment confirmation already reviewed")
	ErrConfirmationExists          = errors.New("transaction already has an active payment confirmation")
	ErrNotManualPaymentMethod      = errors.New("payment method does not accept uploaded confirmations")
	ErrManualSettlementRequired    = errors.New("manual payment settles through confirmation review")

	// Dispute errors
	ErrDisputeNotFound   = errors.New("dispute not found")
	ErrOpenDisputeExists = errors.New("transaction already has an open dispute")
	ErrDisputeNotOpen    = errors.New("dispute is not open")
	ErrInvalidResolution = errors.New("invalid dispute resolution")

	// Money errors
	ErrCurrencyMismatch = errors.New("currency mismatch")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Storage errors
	ErrBlobNotFound = errors.New("stored file not found")

	// Lock errors
	ErrLockAcquisitionFailed = errors.New("failed to acquire lock")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
	ErrInvalidInput     = errors.New("invalid input")
)

// DomainError wraps errors with a stable machine-readable code.
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

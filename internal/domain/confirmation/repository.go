package confirmation

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for payment confirmation persistence.
type Repository interface {
	// Create persists a new confirmation.
	Create(ctx context.Context, c *Confirmation) error

	// GetByID retrieves a confirmation by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*Confirmation, error)

	// GetActiveByTransaction returns the pending or accepted confirmation
	// for a transaction, or ErrConfirmationNotFound when none exists.
	GetActiveByTransaction(ctx context.Context, transactionID uuid.UUID) (*Confirmation, error)

	// UpdateReview persists the review decision conditionally on the stored
	// status still being pending; returns ErrConfirmationAlreadyReviewed
	// when a concurrent reviewer won the race.
	UpdateReview(ctx context.Context, c *Confirmation) error

	// RevertReview clears the review fields, returning the confirmation to
	// pending. Used only to compensate a review whose transaction update
	// failed, so an accepted proof is never left beside an unadvanced
	// transaction.
	RevertReview(ctx context.Context, id uuid.UUID) error

	// ListPending lists confirmations awaiting review, oldest first.
	ListPending(ctx context.Context, limit, offset int) ([]*Confirmation, error)
}

package dispute

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for dispute persistence.
type Repository interface {
	// Create persists a new dispute. The store enforces at most one open
	// dispute per transaction (partial unique index); a lost race returns
	// ErrOpenDisputeExists.
	Create(ctx context.Context, d *Dispute) error

	// GetByID retrieves a dispute by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*Dispute, error)

	// GetOpenByTransaction returns the open dispute for a transaction, or
	// ErrDisputeNotFound when none exists.
	GetOpenByTransaction(ctx context.Context, transactionID uuid.UUID) (*Dispute, error)

	// UpdateResolution persists the verdict conditionally on the dispute
	// still being open; returns ErrDisputeNotOpen when it is not.
	UpdateResolution(ctx context.Context, d *Dispute) error

	// RevertResolution clears the verdict fields, returning the dispute to
	// open. Used only to compensate a resolution whose money movement
	// failed.
	RevertResolution(ctx context.Context, id uuid.UUID) error

	// Close closes a ticket without a verdict. Used to compensate a
	// dispute whose transaction could not be flagged.
	Close(ctx context.Context, id uuid.UUID) error

	// ListOpen lists unresolved disputes, oldest first.
	ListOpen(ctx context.Context, limit, offset int) ([]*Dispute, error)
}

package escrow

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for transaction persistence.
type Repository interface {
	// Create creates a new transaction.
	Create(ctx context.Context, tx *Transaction) error

	// GetByID retrieves a transaction by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)

	// Update persists a transaction conditionally on its version being
	// unchanged since the read, and bumps the version. Returns
	// ErrOptimisticLockFailed when a concurrent writer won the race, so
	// two mutually exclusive transitions can never both succeed.
	Update(ctx context.Context, tx *Transaction) error

	// List lists transactions with filters.
	List(ctx context.Context, filter ListFilter) ([]*Transaction, error)

	// ListDueForAutoRelease returns transferred transactions whose
	// deemed-accepted deadline has passed.
	ListDueForAutoRelease(ctx context.Context, now time.Time, limit int) ([]*Transaction, error)
}

// ListFilter defines filters for listing transactions.
type ListFilter struct {
	BuyerID   *string
	SellerID  *string
	ListingID *uuid.UUID
	Status    *Status
	Limit     int
	Offset    int
}

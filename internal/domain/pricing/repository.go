package pricing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for pricing snapshot persistence.
type Repository interface {
	// Create persists a new snapshot.
	Create(ctx context.Context, snapshot *Snapshot) error

	// GetByID retrieves a snapshot by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*Snapshot, error)

	// Consume writes the consumption fields. The write must be conditional
	// on the stored record not already being consumed and return
	// ErrSnapshotAlreadyConsumed when the condition fails, so that two
	// racing purchases can never both spend the same quote.
	Consume(ctx context.Context, snapshot *Snapshot) error

	// Reopen clears the consumption fields. Used only to compensate a
	// purchase that failed after the snapshot was consumed.
	Reopen(ctx context.Context, id uuid.UUID) error

	// DeleteExpiredUnconsumed removes snapshots that are both expired and
	// were never consumed. Consumed snapshots are retained as the audit
	// trail of their transaction.
	DeleteExpiredUnconsumed(ctx context.Context, before time.Time) (int64, error)
}

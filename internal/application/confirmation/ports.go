package confirmation

import (
	"context"

	"github.com/google/uuid"
	"github.com/seatswap/escrow/internal/domain/directory"
	"github.com/seatswap/escrow/internal/domain/escrow"
)

// BlobStorage is the file storage collaborator for uploaded proofs.
type BlobStorage interface {
	Store(ctx context.Context, key string, data []byte, metadata map[string]string) error
	Retrieve(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// EscrowTransactions is the bridge back into the escrow service. The
// confirmation service depends on escrow, never the other way around.
type EscrowTransactions interface {
	// ApproveManualPayment settles or terminally rejects a manual payment.
	ApproveManualPayment(ctx context.Context, transactionID uuid.UUID, adminID string, approved bool, rejectionNote string) (*escrow.Transaction, error)

	// AttachConfirmation links the active confirmation to its transaction.
	AttachConfirmation(ctx context.Context, transactionID, confirmationID uuid.UUID) error
}

// UserDirectory resolves user display names. Lookups are best-effort and
// never authorization-critical.
type UserDirectory interface {
	FindByID(ctx context.Context, id string) (*directory.User, error)
}

// Locker serializes work per key across concurrent callers.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

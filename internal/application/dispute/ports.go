package dispute

import (
	"context"

	"github.com/google/uuid"
	"github.com/seatswap/escrow/internal/domain/escrow"
)

// EscrowTransactions is the dispute coordinator's handle on the escrow
// service: flagging a transaction and forcing its terminal outcome.
type EscrowTransactions interface {
	MarkDisputed(ctx context.Context, transactionID, disputeID uuid.UUID) (*escrow.Transaction, error)
	RefundTransaction(ctx context.Context, transactionID uuid.UUID, adminID string) (*escrow.Transaction, error)
	ReleaseToSeller(ctx context.Context, transactionID uuid.UUID, adminID string) (*escrow.Transaction, error)
}

// Locker serializes work per key across concurrent callers.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

package escrow

import (
	"context"

	"github.com/google/uuid"
	pricingApp "github.com/seatswap/escrow/internal/application/pricing"
	"github.com/seatswap/escrow/internal/domain/catalog"
)

// ListingCatalog is the listing collaborator. ReserveUnits must be atomic
// against concurrent reservation of the same units: two buyers racing for a
// unit must not both succeed.
type ListingCatalog interface {
	GetListingByID(ctx context.Context, id uuid.UUID) (*catalog.Listing, error)

	// ReserveUnits moves the units from available to reserved with a
	// check-then-set write; returns ErrUnitsUnavailable when any unit was
	// already taken.
	ReserveUnits(ctx context.Context, listingID uuid.UUID, unitIDs []uuid.UUID) error

	// ReleaseUnits returns reserved units to available (cancel/refund).
	ReleaseUnits(ctx context.Context, listingID uuid.UUID, unitIDs []uuid.UUID) error

	// MarkUnitsSold finalizes reserved units once escrow is released.
	MarkUnitsSold(ctx context.Context, listingID uuid.UUID, unitIDs []uuid.UUID) error
}

// PricingQuotes is the quote consumption side of the pricing service. The
// escrow service depends on pricing, never the other way around.
type PricingQuotes interface {
	ValidateAndConsume(ctx context.Context, snapshotID, listingID, paymentMethodID, transactionID uuid.UUID) (*pricingApp.ConsumeResult, error)
	ReopenSnapshot(ctx context.Context, snapshotID uuid.UUID) error
}

// TransactionManager defines the interface for transaction management.
// This is an application-layer port, not a domain concern.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Locker serializes work per key across concurrent callers.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

package pricing

import (
	"context"

	"github.com/seatswap/escrow/internal/domain/catalog"
	"github.com/shopspring/decimal"
)

// PaymentMethodCatalog lists the currently enabled payment methods. It is
// read once per quote; the result is frozen into the snapshot.
type PaymentMethodCatalog interface {
	ListEnabled(ctx context.Context) ([]catalog.PaymentMethod, error)
}

// PlatformConfig exposes the platform-wide fee percentages as they are at
// call time. Snapshots copy the values so later config drift cannot change
// an outstanding quote.
type PlatformConfig interface {
	BuyerFeePercent(ctx context.Context) (decimal.Decimal, error)
	SellerFeePercent(ctx context.Context) (decimal.Decimal, error)
}

// Locker serializes work per key across concurrent callers.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

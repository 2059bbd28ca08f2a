package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// SettingsRepository reads the platform-wide fee configuration. Values are
// read fresh on every quote and frozen into the snapshot there.
type SettingsRepository struct {
	pool *pgxpool.Pool
}

// NewSettingsRepository creates a new PostgreSQL settings repository.
func NewSettingsRepository(pool *pgxpool.Pool) *SettingsRepository {
	return &SettingsRepository{pool: pool}
}

func (r *SettingsRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

func (r *SettingsRepository) BuyerFeePercent(ctx context.Context) (decimal.Decimal, error) {
	return r.percentSetting(ctx, "buyer_fee_percent")
}

func (r *SettingsRepository) SellerFeePercent(ctx context.Context) (decimal.Decimal, error) {
	return r.percentSetting(ctx, "seller_fee_percent")
}

func (r *SettingsRepository) percentSetting(ctx context.Context, key string) (decimal.Decimal, error) {
	var value string
	err := r.db(ctx).QueryRow(ctx,
		`SELECT value::text FROM platform_settings WHERE key = $1`, key,
	).Scan(&value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return parsePercent(value)
}

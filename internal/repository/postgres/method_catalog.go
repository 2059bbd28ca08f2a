package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/seatswap/escrow/internal/domain/catalog"
)

// MethodCatalog reads the payment-method catalog. The pricing service copies
// the result into each snapshot, so catalog edits never touch open quotes.
type MethodCatalog struct {
	pool *pgxpool.Pool
}

// NewMethodCatalog creates a new PostgreSQL-backed payment method catalog.
func NewMethodCatalog(pool *pgxpool.Pool) *MethodCatalog {
	return &MethodCatalog{pool: pool}
}

func (r *MethodCatalog) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

func (r *MethodCatalog) ListEnabled(ctx context.Context) ([]catalog.PaymentMethod, error) {
	query := `
		SELECT id, name, commission_percent::text, manual, enabled
		FROM payment_methods
		WHERE enabled = TRUE
		ORDER BY name`

	rows, err := r.db(ctx).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment methods: %w", err)
	}
	defer rows.Close()

	var methods []catalog.PaymentMethod
	for rows.Next() {
		var (
			m   catalog.PaymentMethod
			pct *string
		)
		if err := rows.Scan(&m.ID, &m.Name, &pct, &m.Manual, &m.Enabled); err != nil {
			return nil, fmt.Errorf("failed to scan payment method: %w", err)
		}
		if m.CommissionPercent, err = parseNullablePercent(pct); err != nil {
			return nil, err
		}
		methods = append(methods, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payment methods: %w", err)
	}
	return methods, nil
}

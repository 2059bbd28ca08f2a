package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	domainErrors "github.com/seatswap/escrow/internal/domain/errors"
	"github.com/seatswap/escrow/internal/domain/money"
	"github.com/seatswap/escrow/internal/domain/pricing"
)

// SnapshotRepository implements pricing.Repository using PostgreSQL.
type SnapshotRepository struct {
	pool *pgxpool.Pool
}

// NewSnapshotRepository creates a new PostgreSQL snapshot repository.
func NewSnapshotRepository(pool *pgxpool.Pool) *SnapshotRepository {
	return &SnapshotRepository{pool: pool}
}

func (r *SnapshotRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// methodRecord is the JSONB shape of a frozen payment method entry.
type methodRecord struct {
	PaymentMethodID   uuid.UUID `json:"payment_method_id"`
	PaymentMethodName string    `json:"payment_method_name"`
	CommissionPercent *string   `json:"commission_percent,omitempty"`
	Manual            bool      `json:"manual"`
}

const snapshotColumns = `
	id, listing_id, price_per_ticket, currency,
	buyer_fee_percent::text, seller_fee_percent::text,
	payment_methods, pricing_model,
	created_at, expires_at,
	consumed_at, consumed_by_transaction_id, selected_payment_method_id`

func (r *SnapshotRepository) Create(ctx context.Context, snapshot *pricing.Snapshot) error {
	methods, err := marshalMethods(snapshot.PaymentMethods)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO pricing_snapshots (
			id, listing_id, price_per_ticket, currency,
			buyer_fee_percent, seller_fee_percent,
			payment_methods, pricing_model,
			created_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = r.db(ctx).Exec(ctx, query,
		snapshot.ID,
		snapshot.ListingID,
		snapshot.PricePerTicket.Amount,
		snapshot.PricePerTicket.Currency,
		snapshot.BuyerFeePercent.String(),
		snapshot.SellerFeePercent.String(),
		methods,
		string(snapshot.Model),
		snapshot.CreatedAt,
		snapshot.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create pricing snapshot: %w", err)
	}
	return nil
}

func (r *SnapshotRepository) GetByID(ctx context.Context, id uuid.UUID) (*pricing.Snapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM pricing_snapshots WHERE id = $1`

	snapshot, err := scanSnapshot(r.db(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to get pricing snapshot: %w", err)
	}
	return snapshot, nil
}

// Consume writes the consumption fields conditionally on the stored row not
// already being consumed. Two racing purchases hit this same guard; exactly
// one sees RowsAffected() == 1.
func (r *SnapshotRepository) Consume(ctx context.Context, snapshot *pricing.Snapshot) error {
	query := `
		UPDATE pricing_snapshots
		SET consumed_at = $2,
		    consumed_by_transaction_id = $3,
		    selected_payment_method_id = $4
		WHERE id = $1 AND consumed_by_transaction_id IS NULL`

	tag, err := r.db(ctx).Exec(ctx, query,
		snapshot.ID,
		snapshot.ConsumedAt,
		snapshot.ConsumedByTransactionID,
		snapshot.SelectedPaymentMethodID,
	)
	if err != nil {
		return fmt.Errorf("failed to consume pricing snapshot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrSnapshotAlreadyConsumed
	}
	return nil
}

func (r *SnapshotRepository) Reopen(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE pricing_snapshots
		SET consumed_at = NULL,
		    consumed_by_transaction_id = NULL,
		    selected_payment_method_id = NULL
		WHERE id = $1`

	tag, err := r.db(ctx).Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to reopen pricing snapshot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrSnapshotNotFound
	}
	return nil
}

func (r *SnapshotRepository) DeleteExpiredUnconsumed(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM pricing_snapshots
		WHERE expires_at < $1 AND consumed_by_transaction_id IS NULL`

	tag, err := r.db(ctx).Exec(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired snapshots: %w", err)
	}
	return tag.RowsAffected(), nil
}

func marshalMethods(methods []pricing.MethodCommission) ([]byte, error) {
	records := make([]methodRecord, 0, len(methods))
	for _, m := range methods {
		rec := methodRecord{
			PaymentMethodID:   m.PaymentMethodID,
			PaymentMethodName: m.PaymentMethodName,
			Manual:            m.Manual,
		}
		if m.CommissionPercent != nil {
			s := m.CommissionPercent.String()
			rec.CommissionPercent = &s
		}
		records = append(records, rec)
	}
	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payment methods: %w", err)
	}
	return data, nil
}

func unmarshalMethods(data []byte) ([]pricing.MethodCommission, error) {
	var records []methodRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payment methods: %w", err)
	}
	methods := make([]pricing.MethodCommission, 0, len(records))
	for _, rec := range records {
		pct, err := parseNullablePercent(rec.CommissionPercent)
		if err != nil {
			return nil, err
		}
		methods = append(methods, pricing.MethodCommission{
			PaymentMethodID:   rec.PaymentMethodID,
			PaymentMethodName: rec.PaymentMethodName,
			CommissionPercent: pct,
			Manual:            rec.Manual,
		})
	}
	return methods, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scanner) (*pricing.Snapshot, error) {
	var (
		s              pricing.Snapshot
		amount         int64
		currency       string
		buyerPct       string
		sellerPct      string
		methodsJSON    []byte
		model          string
	)

	err := row.Scan(
		&s.ID, &s.ListingID, &amount, &currency,
		&buyerPct, &sellerPct,
		&methodsJSON, &model,
		&s.CreatedAt, &s.ExpiresAt,
		&s.ConsumedAt, &s.ConsumedByTransactionID, &s.SelectedPaymentMethodID,
	)
	if err != nil {
		return nil, err
	}

	s.PricePerTicket = money.Money{Amount: amount, Currency: currency}
	s.Model = pricing.Model(model)

	if s.BuyerFeePercent, err = parsePercent(buyerPct); err != nil {
		return nil, err
	}
	if s.SellerFeePercent, err = parsePercent(sellerPct); err != nil {
		return nil, err
	}
	if s.PaymentMethods, err = unmarshalMethods(methodsJSON); err != nil {
		return nil, err
	}
	return &s, nil
}

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
	"github.com/seatswap/escrow/internal/domain/escrow"
	"github.com/seatswap/escrow/internal/domain/money"
)

// TransactionRepository implements escrow.Repository using PostgreSQL.
type TransactionRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository creates a new PostgreSQL transaction repository.
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

func (r *TransactionRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

const transactionColumns = `
	id, listing_id, buyer_id, seller_id, ticket_unit_ids, quantity,
	ticket_price, buyer_platform_fee, seller_platform_fee,
	payment_method_commission, total_paid, seller_receives, currency,
	pricing_snapshot_id, payment_method_id, manual_payment, status, version,
	dispute_id, payment_confirmation_id, payment_approved_by, payment_approved_at,
	event_starts_at, auto_release_at,
	created_at, updated_at,
	payment_received_at, transferred_at, completed_at,
	cancelled_at, refunded_at, disputed_at`

func (r *TransactionRepository) Create(ctx context.Context, tx *escrow.Transaction) error {
	unitIDs, err := json.Marshal(tx.TicketUnitIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal ticket unit ids: %w", err)
	}

	query := `
		INSERT INTO transactions (
			id, listing_id, buyer_id, seller_id, ticket_unit_ids, quantity,
			ticket_price, buyer_platform_fee, seller_platform_fee,
			payment_method_commission, total_paid, seller_receives, currency,
			pricing_snapshot_id, payment_method_id, manual_payment, status, version,
			event_starts_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16, $17, $18, $19, $20, $21
		)`

	_, err = r.db(ctx).Exec(ctx, query,
		tx.ID, tx.ListingID, tx.BuyerID, tx.SellerID, unitIDs, tx.Quantity,
		tx.Breakdown.TicketPrice.Amount,
		tx.Breakdown.BuyerPlatformFee.Amount,
		tx.Breakdown.SellerPlatformFee.Amount,
		tx.Breakdown.PaymentMethodCommission.Amount,
		tx.Breakdown.TotalPaid.Amount,
		tx.Breakdown.SellerReceives.Amount,
		tx.Breakdown.TicketPrice.Currency,
		tx.PricingSnapshotID, tx.PaymentMethodID, tx.ManualPayment,
		string(tx.Status), tx.Version,
		tx.EventStartsAt, tx.CreatedAt, tx.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*escrow.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	tx, err := scanTransaction(r.db(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return tx, nil
}

// Update persists the mutable fields guarded by the version column. A
// concurrent writer bumps the stored version, the WHERE clause then matches
// nothing and the loser gets ErrOptimisticLockFailed.
func (r *TransactionRepository) Update(ctx context.Context, tx *escrow.Transaction) error {
	query := `
		UPDATE transactions
		SET status = $3,
		    version = version + 1,
		    dispute_id = $4,
		    payment_confirmation_id = $5,
		    payment_approved_by = $6,
		    payment_approved_at = $7,
		    auto_release_at = $8,
		    updated_at = $9,
		    payment_received_at = $10,
		    transferred_at = $11,
		    completed_at = $12,
		    cancelled_at = $13,
		    refunded_at = $14,
		    disputed_at = $15
		WHERE id = $1 AND version = $2`

	tag, err := r.db(ctx).Exec(ctx, query,
		tx.ID, tx.Version,
		string(tx.Status),
		tx.DisputeID, tx.PaymentConfirmationID,
		tx.PaymentApprovedBy, tx.PaymentApprovedAt,
		tx.AutoReleaseAt, tx.UpdatedAt,
		tx.PaymentReceivedAt, tx.TransferredAt, tx.CompletedAt,
		tx.CancelledAt, tx.RefundedAt, tx.DisputedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrOptimisticLockFailed
	}

	tx.Version++
	return nil
}

func (r *TransactionRepository) List(ctx context.Context, filter escrow.ListFilter) ([]*escrow.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE 1=1`
	args := []any{}
	argIdx := 1

	if filter.BuyerID != nil {
		query += fmt.Sprintf(" AND buyer_id = $%d", argIdx)
		args = append(args, *filter.BuyerID)
		argIdx++
	}
	if filter.SellerID != nil {
		query += fmt.Sprintf(" AND seller_id = $%d", argIdx)
		args = append(args, *filter.SellerID)
		argIdx++
	}
	if filter.ListingID != nil {
		query += fmt.Sprintf(" AND listing_id = $%d", argIdx)
		args = append(args, *filter.ListingID)
		argIdx++
	}
	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, string(*filter.Status))
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, filter.Limit)
		argIdx++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func (r *TransactionRepository) ListDueForAutoRelease(ctx context.Context, now time.Time, limit int) ([]*escrow.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE status = $1 AND auto_release_at IS NOT NULL AND auto_release_at < $2
		ORDER BY auto_release_at ASC
		LIMIT $3`

	rows, err := r.db(ctx).Query(ctx, query, string(escrow.StatusTicketTransferred), now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions due for auto release: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func scanTransactions(rows pgx.Rows) ([]*escrow.Transaction, error) {
	var transactions []*escrow.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return transactions, nil
}

func scanTransaction(row scanner) (*escrow.Transaction, error) {
	var (
		tx          escrow.Transaction
		unitIDsJSON []byte
		currency    string
		status      string
		ticketPrice, buyerFee, sellerFee, commission, totalPaid, sellerReceives int64
	)

	err := row.Scan(
		&tx.ID, &tx.ListingID, &tx.BuyerID, &tx.SellerID, &unitIDsJSON, &tx.Quantity,
		&ticketPrice, &buyerFee, &sellerFee,
		&commission, &totalPaid, &sellerReceives, &currency,
		&tx.PricingSnapshotID, &tx.PaymentMethodID, &tx.ManualPayment, &status, &tx.Version,
		&tx.DisputeID, &tx.PaymentConfirmationID, &tx.PaymentApprovedBy, &tx.PaymentApprovedAt,
		&tx.EventStartsAt, &tx.AutoReleaseAt,
		&tx.CreatedAt, &tx.UpdatedAt,
		&tx.PaymentReceivedAt, &tx.TransferredAt, &tx.CompletedAt,
		&tx.CancelledAt, &tx.RefundedAt, &tx.DisputedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(unitIDsJSON, &tx.TicketUnitIDs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ticket unit ids: %w", err)
	}

	tx.Status = escrow.Status(status)
	tx.Breakdown = escrow.Breakdown{
		TicketPrice:             money.Money{Amount: ticketPrice, Currency: currency},
		BuyerPlatformFee:        money.Money{Amount: buyerFee, Currency: currency},
		SellerPlatformFee:       money.Money{Amount: sellerFee, Currency: currency},
		PaymentMethodCommission: money.Money{Amount: commission, Currency: currency},
		TotalPaid:               money.Money{Amount: totalPaid, Currency: currency},
		SellerReceives:          money.Money{Amount: sellerReceives, Currency: currency},
	}
	return &tx, nil
}

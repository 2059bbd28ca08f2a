package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/seatswap/escrow/internal/domain/confirmation"
	domainErrors "github.com/seatswap/escrow/internal/domain/errors"
)

// ConfirmationRepository implements confirmation.Repository using PostgreSQL.
type ConfirmationRepository struct {
	pool *pgxpool.Pool
}

// NewConfirmationRepository creates a new PostgreSQL confirmation repository.
func NewConfirmationRepository(pool *pgxpool.Pool) *ConfirmationRepository {
	return &ConfirmationRepository{pool: pool}
}

func (r *ConfirmationRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

const confirmationColumns = `
	id, transaction_id, uploaded_by, storage_key, original_filename,
	content_type, size_bytes, status, admin_notes, reviewed_by,
	created_at, reviewed_at`

// Create inserts a pending confirmation. A partial unique index on
// transaction_id over active rows backs the one-active-proof rule; losing
// that race surfaces as ErrConfirmationExists.
func (r *ConfirmationRepository) Create(ctx context.Context, c *confirmation.Confirmation) error {
	query := `
		INSERT INTO payment_confirmations (
			id, transaction_id, uploaded_by, storage_key, original_filename,
			content_type, size_bytes, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db(ctx).Exec(ctx, query,
		c.ID, c.TransactionID, c.UploadedBy, c.StorageKey, c.OriginalFilename,
		c.ContentType, c.SizeBytes, string(c.Status), c.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domainErrors.ErrConfirmationExists
		}
		return fmt.Errorf("failed to create payment confirmation: %w", err)
	}
	return nil
}

func (r *ConfirmationRepository) GetByID(ctx context.Context, id uuid.UUID) (*confirmation.Confirmation, error) {
	query := `SELECT ` + confirmationColumns + ` FROM payment_confirmations WHERE id = $1`

	c, err := scanConfirmation(r.db(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrConfirmationNotFound
		}
		return nil, fmt.Errorf("failed to get payment confirmation: %w", err)
	}
	return c, nil
}

func (r *ConfirmationRepository) GetActiveByTransaction(ctx context.Context, transactionID uuid.UUID) (*confirmation.Confirmation, error) {
	query := `SELECT ` + confirmationColumns + `
		FROM payment_confirmations
		WHERE transaction_id = $1 AND status IN ($2, $3)
		ORDER BY created_at DESC
		LIMIT 1`

	c, err := scanConfirmation(r.db(ctx).QueryRow(ctx, query, transactionID,
		string(confirmation.StatusPending), string(confirmation.StatusAccepted)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrConfirmationNotFound
		}
		return nil, fmt.Errorf("failed to get active payment confirmation: %w", err)
	}
	return c, nil
}

// UpdateReview persists the decision guarded on the stored row still being
// pending, so two admins can never both record a review.
func (r *ConfirmationRepository) UpdateReview(ctx context.Context, c *confirmation.Confirmation) error {
	query := `
		UPDATE payment_confirmations
		SET status = $2, admin_notes = $3, reviewed_by = $4, reviewed_at = $5
		WHERE id = $1 AND status = $6`

	tag, err := r.db(ctx).Exec(ctx, query,
		c.ID, string(c.Status), c.AdminNotes, c.ReviewedBy, c.ReviewedAt,
		string(confirmation.StatusPending),
	)
	if err != nil {
		return fmt.Errorf("failed to update payment confirmation review: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrConfirmationAlreadyReviewed
	}
	return nil
}

func (r *ConfirmationRepository) RevertReview(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE payment_confirmations
		SET status = $2, admin_notes = NULL, reviewed_by = NULL, reviewed_at = NULL
		WHERE id = $1`

	tag, err := r.db(ctx).Exec(ctx, query, id, string(confirmation.StatusPending))
	if err != nil {
		return fmt.Errorf("failed to revert payment confirmation review: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrConfirmationNotFound
	}
	return nil
}

func (r *ConfirmationRepository) ListPending(ctx context.Context, limit, offset int) ([]*confirmation.Confirmation, error) {
	query := `SELECT ` + confirmationColumns + `
		FROM payment_confirmations
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3`

	rows, err := r.db(ctx).Query(ctx, query, string(confirmation.StatusPending), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending confirmations: %w", err)
	}
	defer rows.Close()

	var confirmations []*confirmation.Confirmation
	for rows.Next() {
		c, err := scanConfirmation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment confirmation: %w", err)
		}
		confirmations = append(confirmations, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate confirmations: %w", err)
	}
	return confirmations, nil
}

func scanConfirmation(row scanner) (*confirmation.Confirmation, error) {
	var (
		c      confirmation.Confirmation
		status string
	)
	err := row.Scan(
		&c.ID, &c.TransactionID, &c.UploadedBy, &c.StorageKey, &c.OriginalFilename,
		&c.ContentType, &c.SizeBytes, &status, &c.AdminNotes, &c.ReviewedBy,
		&c.CreatedAt, &c.ReviewedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Status = confirmation.Status(status)
	return &c, nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/seatswap/escrow/internal/domain/dispute"
	domainErrors "github.com/seatswap/escrow/internal/domain/errors"
)

// DisputeRepository implements dispute.Repository using PostgreSQL.
type DisputeRepository struct {
	pool *pgxpool.Pool
}

// NewDisputeRepository creates a new PostgreSQL dispute repository.
func NewDisputeRepository(pool *pgxpool.Pool) *DisputeRepository {
	return &DisputeRepository{pool: pool}
}

func (r *DisputeRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

const disputeColumns = `
	id, transaction_id, opened_by, reason, status, resolution,
	admin_notes, resolved_by, created_at, resolved_at`

// Create inserts an open dispute. A partial unique index on transaction_id
// over open rows enforces one open dispute per transaction.
func (r *DisputeRepository) Create(ctx context.Context, d *dispute.Dispute) error {
	query := `
		INSERT INTO disputes (
			id, transaction_id, opened_by, reason, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db(ctx).Exec(ctx, query,
		d.ID, d.TransactionID, d.OpenedBy, d.Reason, string(d.Status), d.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domainErrors.ErrOpenDisputeExists
		}
		return fmt.Errorf("failed to create dispute: %w", err)
	}
	return nil
}

func (r *DisputeRepository) GetByID(ctx context.Context, id uuid.UUID) (*dispute.Dispute, error) {
	query := `SELECT ` + disputeColumns + ` FROM disputes WHERE id = $1`

	d, err := scanDispute(r.db(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrDisputeNotFound
		}
		return nil, fmt.Errorf("failed to get dispute: %w", err)
	}
	return d, nil
}

func (r *DisputeRepository) GetOpenByTransaction(ctx context.Context, transactionID uuid.UUID) (*dispute.Dispute, error) {
	query := `SELECT ` + disputeColumns + `
		FROM disputes
		WHERE transaction_id = $1 AND status IN ($2, $3)
		LIMIT 1`

	d, err := scanDispute(r.db(ctx).QueryRow(ctx, query, transactionID,
		string(dispute.StatusOpen), string(dispute.StatusUnderReview)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrDisputeNotFound
		}
		return nil, fmt.Errorf("failed to get open dispute: %w", err)
	}
	return d, nil
}

// UpdateResolution persists the verdict guarded on the row still being open.
func (r *DisputeRepository) UpdateResolution(ctx context.Context, d *dispute.Dispute) error {
	query := `
		UPDATE disputes
		SET status = $2, resolution = $3, admin_notes = $4, resolved_by = $5, resolved_at = $6
		WHERE id = $1 AND status IN ($7, $8)`

	var resolution *string
	if d.Resolution != nil {
		s := string(*d.Resolution)
		resolution = &s
	}

	tag, err := r.db(ctx).Exec(ctx, query,
		d.ID, string(d.Status), resolution, d.AdminNotes, d.ResolvedBy, d.ResolvedAt,
		string(dispute.StatusOpen), string(dispute.StatusUnderReview),
	)
	if err != nil {
		return fmt.Errorf("failed to update dispute resolution: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrDisputeNotOpen
	}
	return nil
}

func (r *DisputeRepository) RevertResolution(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE disputes
		SET status = $2, resolution = NULL, admin_notes = NULL, resolved_by = NULL, resolved_at = NULL
		WHERE id = $1`

	tag, err := r.db(ctx).Exec(ctx, query, id, string(dispute.StatusOpen))
	if err != nil {
		return fmt.Errorf("failed to revert dispute resolution: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrDisputeNotFound
	}
	return nil
}

func (r *DisputeRepository) Close(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE disputes SET status = $2 WHERE id = $1`

	tag, err := r.db(ctx).Exec(ctx, query, id, string(dispute.StatusClosed))
	if err != nil {
		return fmt.Errorf("failed to close dispute: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrDisputeNotFound
	}
	return nil
}

func (r *DisputeRepository) ListOpen(ctx context.Context, limit, offset int) ([]*dispute.Dispute, error) {
	query := `SELECT ` + disputeColumns + `
		FROM disputes
		WHERE status IN ($1, $2)
		ORDER BY created_at ASC
		LIMIT $3 OFFSET $4`

	rows, err := r.db(ctx).Query(ctx, query,
		string(dispute.StatusOpen), string(dispute.StatusUnderReview), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list open disputes: %w", err)
	}
	defer rows.Close()

	var disputes []*dispute.Dispute
	for rows.Next() {
		d, err := scanDispute(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dispute: %w", err)
		}
		disputes = append(disputes, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate disputes: %w", err)
	}
	return disputes, nil
}

func scanDispute(row scanner) (*dispute.Dispute, error) {
	var (
		d          dispute.Dispute
		status     string
		resolution *string
	)
	err := row.Scan(
		&d.ID, &d.TransactionID, &d.OpenedBy, &d.Reason, &status, &resolution,
		&d.AdminNotes, &d.ResolvedBy, &d.CreatedAt, &d.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	d.Status = dispute.Status(status)
	if resolution != nil {
		res := dispute.Resolution(*resolution)
		d.Resolution = &res
	}
	return &d, nil
}

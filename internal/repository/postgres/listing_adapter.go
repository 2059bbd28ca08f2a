package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/seatswap/escrow/internal/domain/catalog"
	domainErrors "github.com/seatswap/escrow/internal/domain/errors"
	"github.com/seatswap/escrow/internal/domain/money"
)

// ListingCatalog reads listings and drives ticket unit state for the escrow
// service. The listing service owns these tables; this adapter only performs
// the reads and the reserve/release/sold unit flips escrow needs.
type ListingCatalog struct {
	pool *pgxpool.Pool
}

// NewListingCatalog creates a new PostgreSQL-backed listing catalog adapter.
func NewListingCatalog(pool *pgxpool.Pool) *ListingCatalog {
	return &ListingCatalog{pool: pool}
}

func (r *ListingCatalog) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

func (r *ListingCatalog) GetListingByID(ctx context.Context, id uuid.UUID) (*catalog.Listing, error) {
	query := `
		SELECT id, seller_id, event_id, event_starts_at, price_per_ticket, currency
		FROM listings WHERE id = $1`

	var (
		l        catalog.Listing
		amount   int64
		currency string
	)
	err := r.db(ctx).QueryRow(ctx, query, id).Scan(
		&l.ID, &l.SellerID, &l.EventID, &l.EventStartsAt, &amount, &currency,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrListingNotFound
		}
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	l.PricePerTicket = money.Money{Amount: amount, Currency: currency}

	rows, err := r.db(ctx).Query(ctx,
		`SELECT id, listing_id, status FROM ticket_units WHERE listing_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket units: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			u      catalog.TicketUnit
			status string
		)
		if err := rows.Scan(&u.ID, &u.ListingID, &status); err != nil {
			return nil, fmt.Errorf("failed to scan ticket unit: %w", err)
		}
		u.Status = catalog.UnitStatus(status)
		l.Units = append(l.Units, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ticket units: %w", err)
	}
	return &l, nil
}

// ReserveUnits flips the units from available to reserved in one conditional
// statement inside its own transaction. If any unit is missing from the
// listing or already taken the affected count falls short and nothing is kept.
func (r *ListingCatalog) ReserveUnits(ctx context.Context, listingID uuid.UUID, unitIDs []uuid.UUID) error {
	return r.flipUnits(ctx, listingID, unitIDs,
		catalog.UnitAvailable, catalog.UnitReserved, domainErrors.ErrUnitsUnavailable)
}

func (r *ListingCatalog) ReleaseUnits(ctx context.Context, listingID uuid.UUID, unitIDs []uuid.UUID) error {
	return r.flipUnits(ctx, listingID, unitIDs,
		catalog.UnitReserved, catalog.UnitAvailable, domainErrors.ErrUnitsNotOnListing)
}

func (r *ListingCatalog) MarkUnitsSold(ctx context.Context, listingID uuid.UUID, unitIDs []uuid.UUID) error {
	return r.flipUnits(ctx, listingID, unitIDs,
		catalog.UnitReserved, catalog.UnitSold, domainErrors.ErrUnitsNotOnListing)
}

func (r *ListingCatalog) flipUnits(ctx context.Context, listingID uuid.UUID, unitIDs []uuid.UUID, from, to catalog.UnitStatus, shortfallErr error) error {
	if len(unitIDs) == 0 {
		return domainErrors.ErrUnitsNotOnListing
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin unit update: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE ticket_units SET status = $1
		 WHERE listing_id = $2 AND id = ANY($3) AND status = $4`,
		string(to), listingID, unitIDs, string(from),
	)
	if err != nil {
		return fmt.Errorf("failed to update ticket units: %w", err)
	}
	if tag.RowsAffected() != int64(len(unitIDs)) {
		return shortfallErr
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit unit update: %w", err)
	}
	return nil
}

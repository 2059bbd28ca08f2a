package testutil

import (
	"time"

	"github.com/google/uuid"
	"github.com/seatswap/escrow/internal/domain/catalog"
	"github.com/seatswap/escrow/internal/domain/escrow"
	"github.com/seatswap/escrow/internal/domain/money"
	"github.com/seatswap/escrow/internal/domain/pricing"
	"github.com/shopspring/decimal"
)

// NewTestListing builds a listing with the given number of available units.
// The event starts far enough out that quotes and purchases built on it are
// valid by default.
func NewTestListing(sellerID string, units int, pricePerTicketCents int64) *catalog.Listing {
	l := &catalog.Listing{
		ID:             uuid.New(),
		SellerID:       sellerID,
		EventID:        uuid.New(),
		EventStartsAt:  time.Now().Add(30 * 24 * time.Hour),
		PricePerTicket: money.New(pricePerTicketCents, "BRL"),
	}
	for i := 0; i < units; i++ {
		l.Units = append(l.Units, catalog.TicketUnit{
			ID:        uuid.New(),
			ListingID: l.ID,
			Status:    catalog.UnitAvailable,
		})
	}
	return l
}

// UnitIDs returns the IDs of the first n units of the listing.
func UnitIDs(l *catalog.Listing, n int) []uuid.UUID {
	ids := make([]uuid.UUID, 0, n)
	for i := 0; i < n && i < len(l.Units); i++ {
		ids = append(ids, l.Units[i].ID)
	}
	return ids
}

// NewTestMethod builds an enabled payment method.
func NewTestMethod(name string, commissionPercent *float64, manual bool) catalog.PaymentMethod {
	pm := catalog.PaymentMethod{
		ID:      uuid.New(),
		Name:    name,
		Manual:  manual,
		Enabled: true,
	}
	if commissionPercent != nil {
		pct := decimal.NewFromFloat(*commissionPercent)
		pm.CommissionPercent = &pct
	}
	return pm
}

// NewTestSnapshot builds an unconsumed snapshot quoting the listing, with
// 10%/5% platform fees and the given methods frozen in.
func NewTestSnapshot(listing *catalog.Listing, methods []catalog.PaymentMethod, ttl time.Duration) *pricing.Snapshot {
	frozen := make([]pricing.MethodCommission, 0, len(methods))
	for _, pm := range methods {
		frozen = append(frozen, pricing.MethodCommission{
			PaymentMethodID:   pm.ID,
			PaymentMethodName: pm.Name,
			CommissionPercent: pm.CommissionPercent,
			Manual:            pm.Manual,
		})
	}
	now := time.Now()
	return &pricing.Snapshot{
		ID:               uuid.New(),
		ListingID:        listing.ID,
		PricePerTicket:   listing.PricePerTicket,
		BuyerFeePercent:  decimal.NewFromInt(10),
		SellerFeePercent: decimal.NewFromInt(5),
		PaymentMethods:   frozen,
		Model:            pricing.ModelFixed,
		CreatedAt:        now,
		ExpiresAt:        now.Add(ttl),
	}
}

// NewTestTransaction builds a transaction in the given status against the
// listing's first n units, stamping the timestamps a real transition would.
func NewTestTransaction(listing *catalog.Listing, buyerID string, n int, status escrow.Status, manual bool) *escrow.Transaction {
	breakdown, _ := escrow.NewBreakdown(
		listing.PricePerTicket, n,
		decimal.NewFromInt(10), decimal.NewFromInt(5), decimal.Zero,
	)
	tx, _ := escrow.NewTransaction(
		uuid.New(), listing.ID, buyerID, listing.SellerID,
		UnitIDs(listing, n), breakdown, uuid.New(), uuid.New(), manual,
		listing.EventStartsAt,
	)

	now := time.Now()
	switch status {
	case escrow.StatusPaymentReceived:
		tx.Status = status
		tx.PaymentReceivedAt = &now
	case escrow.StatusTicketTransferred:
		tx.Status = status
		tx.PaymentReceivedAt = &now
		tx.TransferredAt = &now
	case escrow.StatusCompleted:
		tx.Status = status
		tx.PaymentReceivedAt = &now
		tx.TransferredAt = &now
		tx.CompletedAt = &now
	case escrow.StatusDisputed:
		tx.Status = status
		tx.PaymentReceivedAt = &now
		tx.DisputedAt = &now
	case escrow.StatusCancelled:
		tx.Status = status
		tx.CancelledAt = &now
	case escrow.StatusRefunded:
		tx.Status = status
		tx.PaymentReceivedAt = &now
		tx.RefundedAt = &now
	}
	return tx
}

func UUIDPtr(id uuid.UUID) *uuid.UUID {
	return &id
}

func StrPtr(s string) *string {
	return &s
}

func FloatPtr(f float64) *float64 {
	return &f
}

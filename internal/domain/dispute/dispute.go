package dispute

import (
	"time"

	"github.com/google/uuid"
	"github.com/seatswap/escrow/internal/domain/errors"
)

// Status represents the lifecycle of a dispute ticket.
type Status string

const (
	StatusOpen        Status = "open"
	StatusUnderReview Status = "under_review"
	StatusResolved    Status = "resolved"
	StatusClosed      Status = "closed"
)

// Resolution is the admin's verdict on a dispute.
type Resolution string

const (
	ResolutionBuyerWins  Resolution = "buyer_wins"
	ResolutionSellerWins Resolution = "seller_wins"
	ResolutionSplit      Resolution = "split"
	ResolutionNone       Resolution = "no_resolution"
)

// ValidResolution reports whether r is a known verdict.
func ValidResolution(r Resolution) bool {
	switch r {
	case ResolutionBuyerWins, ResolutionSellerWins, ResolutionSplit, ResolutionNone:
		return true
	}
	return false
}

// Dispute is a support ticket raised against an escrow transaction. Its
// resolution can force the transaction to Refunded or Completed outside the
// normal buyer/seller-driven flow.
type Dispute struct {
	ID            uuid.UUID
	TransactionID uuid.UUID
	OpenedBy      string
	Reason        string
	Status        Status
	Resolution    *Resolution
	AdminNotes    *string
	ResolvedBy    *string
	CreatedAt     time.Time
	ResolvedAt    *time.Time
}

// New opens a dispute against a transaction.
func New(transactionID uuid.UUID, openedBy, reason string) (*Dispute, error) {
	if openedBy == "" {
		return nil, errors.NewValidationError("opened_by", "cannot be empty")
	}
	if reason == "" {
		return nil, errors.NewValidationError("reason", "cannot be empty")
	}

	return &Dispute{
		ID:            uuid.New(),
		TransactionID: transactionID,
		OpenedBy:      openedBy,
		Reason:        reason,
		Status:        StatusOpen,
		CreatedAt:     time.Now(),
	}, nil
}

// IsOpen reports whether the dispute still blocks a second dispute on the
// same transaction.
func (d *Dispute) IsOpen() bool {
	return d.Status == StatusOpen || d.Status == StatusUnderReview
}

// Resolve records the verdict and stamps the resolver. The money movement
// for the verdict is the coordinator's responsibility, but the ticket always
// moves to Resolved with resolution, resolvedBy and resolvedAt recorded.
func (d *Dispute) Resolve(resolvedBy string, resolution Resolution, notes string) error {
	if !d.IsOpen() {
		return errors.ErrDisputeNotOpen
	}
	if resolvedBy == "" {
		return errors.NewValidationError("resolved_by", "cannot be empty")
	}
	if !ValidResolution(resolution) {
		return errors.ErrInvalidResolution
	}

	now := time.Now()
	d.Status = StatusResolved
	d.Resolution = &resolution
	if notes != "" {
		d.AdminNotes = &notes
	}
	d.ResolvedBy = &resolvedBy
	d.ResolvedAt = &now
	return nil
}

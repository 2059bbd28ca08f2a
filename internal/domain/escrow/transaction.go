package escrow

import (
	"time"

	"github.com/google/uuid"
	"github.com/seatswap/escrow/internal/domain/errors"
	"github.com/seatswap/escrow/internal/domain/money"
	"github.com/shopspring/decimal"
)

// Status represents the transaction status in the escrow state machine.
type Status string

const (
	StatusPendingPayment    Status = "pending_payment"
	StatusPaymentReceived   Status = "payment_received"
	StatusTicketTransferred Status = "ticket_transferred"
	StatusCompleted         Status = "completed"
	StatusDisputed          Status = "disputed"
	StatusCancelled         Status = "cancelled"
	StatusRefunded          Status = "refunded"
)

// Breakdown is the pricing of a transaction, fixed at creation from the
// consumed snapshot. Amounts are never recomputed afterwards.
type Breakdown struct {
	TicketPrice             money.Money
	BuyerPlatformFee        money.Money
	SellerPlatformFee       money.Money
	PaymentMethodCommission money.Money
	TotalPaid               money.Money
	SellerReceives          money.Money
}

// NewBreakdown derives the full pricing of a purchase from the per-ticket
// price and the fee percentages frozen in a pricing snapshot.
func NewBreakdown(
	pricePerTicket money.Money,
	quantity int,
	buyerFeePercent decimal.Decimal,
	sellerFeePercent decimal.Decimal,
	commissionPercent decimal.Decimal,
) (Breakdown, error) {
	ticketPrice := pricePerTicket.Mul(int64(quantity))
	buyerFee := ticketPrice.Percent(buyerFeePercent)
	sellerFee := ticketPrice.Percent(sellerFeePercent)
	commission := ticketPrice.Percent(commissionPercent)

	totalPaid, err := ticketPrice.Add(buyerFee)
	if err != nil {
		return Breakdown{}, err
	}
	totalPaid, err = totalPaid.Add(commission)
	if err != nil {
		return Breakdown{}, err
	}
	sellerReceives, err := ticketPrice.Sub(sellerFee)
	if err != nil {
		return Breakdown{}, err
	}

	return Breakdown{
		TicketPrice:             ticketPrice,
		BuyerPlatformFee:        buyerFee,
		SellerPlatformFee:       sellerFee,
		PaymentMethodCommission: commission,
		TotalPaid:               totalPaid,
		SellerReceives:          sellerReceives,
	}, nil
}

// Validate checks the internal consistency of the breakdown.
func (b Breakdown) Validate() error {
	for _, m := range []money.Money{
		b.TicketPrice, b.BuyerPlatformFee, b.SellerPlatformFee,
		b.PaymentMethodCommission, b.TotalPaid, b.SellerReceives,
	} {
		if err := m.Validate(); err != nil {
			return err
		}
	}
	if b.TotalPaid.Amount != b.TicketPrice.Amount+b.BuyerPlatformFee.Amount+b.PaymentMethodCommission.Amount {
		return errors.NewValidationError("total_paid", "inconsistent with ticket price, buyer fee and commission")
	}
	if b.SellerReceives.Amount != b.TicketPrice.Amount-b.SellerPlatformFee.Amount {
		return errors.NewValidationError("seller_receives", "inconsistent with ticket price and seller fee")
	}
	return nil
}

// Transaction is one escrow purchase record. The breakdown amounts are
// immutable after creation; only the status and its companion stamps move.
type Transaction struct {
	ID                uuid.UUID
	ListingID         uuid.UUID
	BuyerID           string
	SellerID          string
	TicketUnitIDs     []uuid.UUID
	Quantity          int
	Breakdown         Breakdown
	PricingSnapshotID uuid.UUID
	PaymentMethodID   uuid.UUID
	// ManualPayment is copied from the snapshot's method entry at creation,
	// so a later catalog change cannot reclassify an in-flight transaction.
	ManualPayment bool
	Status        Status
	Version       int // Optimistic locking

	DisputeID             *uuid.UUID
	PaymentConfirmationID *uuid.UUID
	PaymentApprovedBy     *string
	PaymentApprovedAt     *time.Time

	// EventStartsAt is copied from the listing at creation; AutoReleaseAt is
	// the deemed-accepted deadline derived from it when the seller transfers
	// the tickets. Past it, a transferred ticket completes without explicit
	// buyer confirmation.
	EventStartsAt time.Time
	AutoReleaseAt *time.Time

	CreatedAt         time.Time
	UpdatedAt         time.Time
	PaymentReceivedAt *time.Time
	TransferredAt     *time.Time
	CompletedAt       *time.Time
	CancelledAt       *time.Time
	RefundedAt        *time.Time
	DisputedAt        *time.Time
}

// NewTransaction creates a transaction in PendingPayment. The caller supplies
// the ID because it must exist before the pricing snapshot is consumed.
func NewTransaction(
	id uuid.UUID,
	listingID uuid.UUID,
	buyerID string,
	sellerID string,
	ticketUnitIDs []uuid.UUID,
	breakdown Breakdown,
	pricingSnapshotID uuid.UUID,
	paymentMethodID uuid.UUID,
	manualPayment bool,
	eventStartsAt time.Time,
) (*Transaction, error) {
	if buyerID == "" {
		return nil, errors.NewValidationError("buyer_id", "cannot be empty")
	}
	if sellerID == "" {
		return nil, errors.NewValidationError("seller_id", "cannot be empty")
	}
	if buyerID == sellerID {
		return nil, errors.NewValidationError("buyer_id", "buyer cannot purchase own listing")
	}
	if len(ticketUnitIDs) == 0 {
		return nil, errors.NewValidationError("ticket_unit_ids", "cannot be empty")
	}
	seen := make(map[uuid.UUID]struct{}, len(ticketUnitIDs))
	for _, unitID := range ticketUnitIDs {
		if _, dup := seen[unitID]; dup {
			return nil, errors.NewValidationError("ticket_unit_ids", "contains duplicate unit")
		}
		seen[unitID] = struct{}{}
	}
	if err := breakdown.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	return &Transaction{
		ID:                id,
		ListingID:         listingID,
		BuyerID:           buyerID,
		SellerID:          sellerID,
		TicketUnitIDs:     ticketUnitIDs,
		Quantity:          len(ticketUnitIDs),
		Breakdown:         breakdown,
		PricingSnapshotID: pricingSnapshotID,
		PaymentMethodID:   paymentMethodID,
		ManualPayment:     manualPayment,
		EventStartsAt:     eventStartsAt,
		Status:            StatusPendingPayment,
		Version:           0,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// transitions is the escrow state graph. Anything absent here is illegal.
var transitions = map[Status][]Status{
	StatusPendingPayment: {
		StatusPaymentReceived,
		StatusCancelled,
	},
	StatusPaymentReceived: {
		StatusTicketTransferred,
		StatusDisputed,
		StatusRefunded, // direct admin refund
	},
	StatusTicketTransferred: {
		StatusCompleted,
		StatusDisputed,
	},
	StatusDisputed: {
		StatusRefunded,
		StatusCompleted, // dispute resolved in the seller's favour
	},
	StatusCompleted: {},
	StatusCancelled: {},
	StatusRefunded:  {},
}

// CanTransitionTo checks whether moving to newStatus is legal from the
// current status.
func (t *Transaction) CanTransitionTo(newStatus Status) bool {
	allowed, exists := transitions[t.Status]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == newStatus {
			return true
		}
	}
	return false
}

// TransitionTo advances the status and stamps the transition time. It
// rejects anything not on the state graph; transitions never silently no-op.
func (t *Transaction) TransitionTo(newStatus Status) error {
	if !t.CanTransitionTo(newStatus) {
		return errors.NewDomainError(
			"invalid_transition",
			"cannot transition from "+string(t.Status)+" to "+string(newStatus),
			errors.ErrInvalidStateTransition,
		)
	}

	now := time.Now()
	t.Status = newStatus
	t.UpdatedAt = now

	switch newStatus {
	case StatusPaymentReceived:
		t.PaymentReceivedAt = &now
	case StatusTicketTransferred:
		t.TransferredAt = &now
	case StatusCompleted:
		t.CompletedAt = &now
	case StatusCancelled:
		t.CancelledAt = &now
	case StatusRefunded:
		t.RefundedAt = &now
	case StatusDisputed:
		t.DisputedAt = &now
	}

	return nil
}

// MarkPaymentReceived records settlement of the buyer's payment. For manual
// methods approvedBy carries the reviewing admin.
func (t *Transaction) MarkPaymentReceived(approvedBy string) error {
	if err := t.TransitionTo(StatusPaymentReceived); err != nil {
		return err
	}
	if approvedBy != "" {
		now := time.Now()
		t.PaymentApprovedBy = &approvedBy
		t.PaymentApprovedAt = &now
	}
	return nil
}

// MarkTransferred records the seller handing the tickets over.
func (t *Transaction) MarkTransferred(autoReleaseAt *time.Time) error {
	if err := t.TransitionTo(StatusTicketTransferred); err != nil {
		return err
	}
	t.AutoReleaseAt = autoReleaseAt
	return nil
}

// MarkCompleted releases the escrow to the seller.
func (t *Transaction) MarkCompleted() error {
	return t.TransitionTo(StatusCompleted)
}

// MarkCancelled voids a purchase that was never paid.
func (t *Transaction) MarkCancelled() error {
	return t.TransitionTo(StatusCancelled)
}

// MarkDisputed flags the transaction while a dispute is worked.
func (t *Transaction) MarkDisputed(disputeID uuid.UUID) error {
	if err := t.TransitionTo(StatusDisputed); err != nil {
		return err
	}
	t.DisputeID = &disputeID
	return nil
}

// MarkRefunded reverses the full totalPaid to the buyer.
func (t *Transaction) MarkRefunded() error {
	return t.TransitionTo(StatusRefunded)
}

// AttachConfirmation links the active payment confirmation.
func (t *Transaction) AttachConfirmation(confirmationID uuid.UUID) {
	t.PaymentConfirmationID = &confirmationID
	t.UpdatedAt = time.Now()
}

// IsTerminal checks if the transaction is in a terminal state.
func (t *Transaction) IsTerminal() bool {
	return t.Status == StatusCompleted ||
		t.Status == StatusCancelled ||
		t.Status == StatusRefunded
}

// DueForAutoRelease reports whether a transferred ticket has passed its
// deemed-accepted deadline.
func (t *Transaction) DueForAutoRelease(now time.Time) bool {
	return t.Status == StatusTicketTransferred &&
		t.AutoReleaseAt != nil &&
		now.After(*t.AutoReleaseAt)
}

package pricing

import (
	"time"

	"github.com/google/uuid"
	"github.com/seatswap/escrow/internal/domain/errors"
	"github.com/seatswap/escrow/internal/domain/money"
	"github.com/shopspring/decimal"
)

// Model identifies how the quoted price was derived.
type Model string

const (
	ModelFixed Model = "fixed"
)

// MethodCommission is a payment method frozen into a snapshot at quote time.
// A nil CommissionPercent means the method carries no commission.
type MethodCommission struct {
	PaymentMethodID   uuid.UUID
	PaymentMethodName string
	CommissionPercent *decimal.Decimal
	Manual            bool
}

// Snapshot is an immutable, time-boxed price quote. Platform fees and the
// enabled payment methods are copied in at creation so later config changes
// cannot alter an outstanding quote. Once consumed it never changes again.
type Snapshot struct {
	ID                      uuid.UUID
	ListingID               uuid.UUID
	PricePerTicket          money.Money
	BuyerFeePercent         decimal.Decimal
	SellerFeePercent        decimal.Decimal
	PaymentMethods          []MethodCommission
	Model                   Model
	CreatedAt               time.Time
	ExpiresAt               time.Time
	ConsumedAt              *time.Time
	ConsumedByTransactionID *uuid.UUID
	SelectedPaymentMethodID *uuid.UUID
}

// NewSnapshot creates a quote valid for ttl from now.
func NewSnapshot(
	listingID uuid.UUID,
	pricePerTicket money.Money,
	buyerFeePercent decimal.Decimal,
	sellerFeePercent decimal.Decimal,
	methods []MethodCommission,
	ttl time.Duration,
) (*Snapshot, error) {
	if err := pricePerTicket.Validate(); err != nil {
		return nil, err
	}
	if !pricePerTicket.IsPositive() {
		return nil, errors.NewValidationError("price_per_ticket", "must be greater than 0")
	}
	if buyerFeePercent.IsNegative() || sellerFeePercent.IsNegative() {
		return nil, errors.NewValidationError("fee_percent", "cannot be negative")
	}

	now := time.Now()
	return &Snapshot{
		ID:               uuid.New(),
		ListingID:        listingID,
		PricePerTicket:   pricePerTicket,
		BuyerFeePercent:  buyerFeePercent,
		SellerFeePercent: sellerFeePercent,
		PaymentMethods:   methods,
		Model:            ModelFixed,
		CreatedAt:        now,
		ExpiresAt:        now.Add(ttl),
	}, nil
}

// IsConsumed reports whether the snapshot has already funded a transaction.
func (s *Snapshot) IsConsumed() bool {
	return s.ConsumedByTransactionID != nil
}

// IsExpired reports whether the quote is past its expiry at the given instant.
func (s *Snapshot) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// MethodByID looks a payment method up in the frozen commission list.
func (s *Snapshot) MethodByID(paymentMethodID uuid.UUID) (MethodCommission, bool) {
	for _, m := range s.PaymentMethods {
		if m.PaymentMethodID == paymentMethodID {
			return m, true
		}
	}
	return MethodCommission{}, false
}

// CanConsume runs the consumption checks in order, stopping at the first
// failure. The order matters: an expired but already-consumed snapshot must
// report ALREADY_CONSUMED, not EXPIRED.
func (s *Snapshot) CanConsume(listingID, paymentMethodID uuid.UUID, now time.Time) error {
	if s.IsConsumed() {
		return errors.ErrSnapshotAlreadyConsumed
	}
	if s.IsExpired(now) {
		return errors.ErrSnapshotExpired
	}
	if s.ListingID != listingID {
		return errors.ErrListingMismatch
	}
	if _, ok := s.MethodByID(paymentMethodID); !ok {
		return errors.ErrPaymentMethodNotAvailable
	}
	return nil
}

// Consume marks the snapshot as spent by the given transaction and returns
// the commission percent of the selected method (zero when the method has
// no commission). This is the only legal mutation of a snapshot.
func (s *Snapshot) Consume(transactionID, paymentMethodID uuid.UUID, now time.Time) (decimal.Decimal, error) {
	if err := s.CanConsume(s.ListingID, paymentMethodID, now); err != nil {
		return decimal.Zero, err
	}

	method, _ := s.MethodByID(paymentMethodID)

	consumedAt := now
	s.ConsumedAt = &consumedAt
	s.ConsumedByTransactionID = &transactionID
	s.SelectedPaymentMethodID = &paymentMethodID

	if method.CommissionPercent == nil {
		return decimal.Zero, nil
	}
	return *method.CommissionPercent, nil
}

package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/seatswap/escrow/internal/domain/money"
	"github.com/shopspring/decimal"
)

// The listing catalog and payment-method catalog are external collaborators;
// this package defines only the value types the escrow core exchanges with
// them.

// UnitStatus is the sale status of a single ticket unit on a listing.
type UnitStatus string

const (
	UnitAvailable UnitStatus = "available"
	UnitReserved  UnitStatus = "reserved"
	UnitSold      UnitStatus = "sold"
)

// TicketUnit is one individually sellable ticket on a listing.
type TicketUnit struct {
	ID        uuid.UUID
	ListingID uuid.UUID
	Status    UnitStatus
}

// Listing is the catalog's view of a resale listing.
type Listing struct {
	ID             uuid.UUID
	SellerID       string
	EventID        uuid.UUID
	EventStartsAt  time.Time
	PricePerTicket money.Money
	Units          []TicketUnit
}

// Unit returns the unit with the given ID, if it belongs to the listing.
func (l *Listing) Unit(unitID uuid.UUID) (TicketUnit, bool) {
	for _, u := range l.Units {
		if u.ID == unitID {
			return u, true
		}
	}
	return TicketUnit{}, false
}

// PaymentMethod is an entry of the payment-method catalog. Manual methods
// (bank transfer) settle through human review of an uploaded proof instead
// of a gateway webhook. A nil CommissionPercent means no commission.
type PaymentMethod struct {
	ID                uuid.UUID
	Name              string
	CommissionPercent *decimal.Decimal
	Manual            bool
	Enabled           bool
}

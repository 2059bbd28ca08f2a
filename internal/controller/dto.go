package controller

import (
	"time"

	"github.com/google/uuid"
	"github.com/seatswap/escrow/internal/domain/confirmation"
	"github.com/seatswap/escrow/internal/domain/dispute"
	"github.com/seatswap/escrow/internal/domain/escrow"
	"github.com/seatswap/escrow/internal/domain/money"
	"github.com/seatswap/escrow/internal/domain/pricing"
)

// --- Request DTOs ---
// These DTOs handle HTTP/JSON concerns (string IDs, validation tags).
// Controllers convert them to service-layer inputs before calling business
// logic. Money travels as integer minor units end to end.

// CreateQuoteRequest holds the input for quoting a listing.
type CreateQuoteRequest struct {
	ListingID string `json:"listing_id" validate:"required,uuid"`
}

// InitiatePurchaseRequest holds the input for starting a purchase.
type InitiatePurchaseRequest struct {
	ListingID       string   `json:"listing_id" validate:"required,uuid"`
	TicketUnitIDs   []string `json:"ticket_unit_ids" validate:"required,min=1,dive,uuid"`
	SnapshotID      string   `json:"snapshot_id" validate:"required,uuid"`
	PaymentMethodID string   `json:"payment_method_id" validate:"required,uuid"`
}

// ReviewConfirmationRequest holds an admin decision on a payment proof.
type ReviewConfirmationRequest struct {
	Accept bool   `json:"accept"`
	Notes  string `json:"notes"`
}

// OpenDisputeRequest holds the input for raising a dispute.
type OpenDisputeRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// ResolveDisputeRequest holds the admin verdict on a dispute.
type ResolveDisputeRequest struct {
	Resolution string `json:"resolution" validate:"required,oneof=buyer_wins seller_wins split no_resolution"`
	Notes      string `json:"notes"`
}

// PaymentWebhookRequest is the gateway settlement callback for automatic
// payment methods.
type PaymentWebhookRequest struct {
	TransactionID string `json:"transaction_id" validate:"required,uuid"`
	Status        string `json:"status" validate:"required,oneof=succeeded failed"`
}

// --- Response DTOs ---

// MoneyResponse is an amount in minor units with its currency.
type MoneyResponse struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// MethodCommissionResponse is a payment method frozen into a quote.
type MethodCommissionResponse struct {
	PaymentMethodID   string  `json:"payment_method_id"`
	PaymentMethodName string  `json:"payment_method_name"`
	CommissionPercent *string `json:"commission_percent,omitempty"`
	Manual            bool    `json:"manual"`
}

// QuoteResponse represents a pricing snapshot in API responses.
type QuoteResponse struct {
	ID               string                     `json:"id"`
	ListingID        string                     `json:"listing_id"`
	PricePerTicket   MoneyResponse              `json:"price_per_ticket"`
	BuyerFeePercent  string                     `json:"buyer_fee_percent"`
	SellerFeePercent string                     `json:"seller_fee_percent"`
	PaymentMethods   []MethodCommissionResponse `json:"payment_methods"`
	PricingModel     string                     `json:"pricing_model"`
	CreatedAt        time.Time                  `json:"created_at"`
	ExpiresAt        time.Time                  `json:"expires_at"`
	Consumed         bool                       `json:"consumed"`
}

// BreakdownResponse is the fixed pricing of a transaction.
type BreakdownResponse struct {
	TicketPrice             MoneyResponse `json:"ticket_price"`
	BuyerPlatformFee        MoneyResponse `json:"buyer_platform_fee"`
	SellerPlatformFee       MoneyResponse `json:"seller_platform_fee"`
	PaymentMethodCommission MoneyResponse `json:"payment_method_commission"`
	TotalPaid               MoneyResponse `json:"total_paid"`
	SellerReceives          MoneyResponse `json:"seller_receives"`
}

// TransactionResponse represents an escrow transaction in API responses.
type TransactionResponse struct {
	ID                    string            `json:"id"`
	ListingID             string            `json:"listing_id"`
	BuyerID               string            `json:"buyer_id"`
	SellerID              string            `json:"seller_id"`
	TicketUnitIDs         []string          `json:"ticket_unit_ids"`
	Quantity              int               `json:"quantity"`
	Breakdown             BreakdownResponse `json:"breakdown"`
	PricingSnapshotID     string            `json:"pricing_snapshot_id"`
	PaymentMethodID       string            `json:"payment_method_id"`
	ManualPayment         bool              `json:"manual_payment"`
	Status                string            `json:"status"`
	Version               int               `json:"version"`
	DisputeID             *string           `json:"dispute_id,omitempty"`
	PaymentConfirmationID *string           `json:"payment_confirmation_id,omitempty"`
	EventStartsAt         time.Time         `json:"event_starts_at"`
	AutoReleaseAt         *time.Time        `json:"auto_release_at,omitempty"`
	CreatedAt             time.Time         `json:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at"`
	PaymentReceivedAt     *time.Time        `json:"payment_received_at,omitempty"`
	TransferredAt         *time.Time        `json:"transferred_at,omitempty"`
	CompletedAt           *time.Time        `json:"completed_at,omitempty"`
	CancelledAt           *time.Time        `json:"cancelled_at,omitempty"`
	RefundedAt            *time.Time        `json:"refunded_at,omitempty"`
	DisputedAt            *time.Time        `json:"disputed_at,omitempty"`
}

// ConfirmationResponse represents a payment confirmation in API responses.
// The storage key stays internal; clients fetch the file through the proof
// endpoint.
type ConfirmationResponse struct {
	ID               string     `json:"id"`
	TransactionID    string     `json:"transaction_id"`
	UploadedBy       string     `json:"uploaded_by"`
	UploaderName     string     `json:"uploader_name,omitempty"`
	OriginalFilename string     `json:"original_filename"`
	ContentType      string     `json:"content_type"`
	SizeBytes        int64      `json:"size_bytes"`
	Status           string     `json:"status"`
	AdminNotes       *string    `json:"admin_notes,omitempty"`
	ReviewedBy       *string    `json:"reviewed_by,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	ReviewedAt       *time.Time `json:"reviewed_at,omitempty"`
}

// DisputeResponse represents a dispute in API responses.
type DisputeResponse struct {
	ID            string     `json:"id"`
	TransactionID string     `json:"transaction_id"`
	OpenedBy      string     `json:"opened_by"`
	Reason        string     `json:"reason"`
	Status        string     `json:"status"`
	Resolution    *string    `json:"resolution,omitempty"`
	AdminNotes    *string    `json:"admin_notes,omitempty"`
	ResolvedBy    *string    `json:"resolved_by,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// --- Conversion helpers ---

func fromMoney(m money.Money) MoneyResponse {
	return MoneyResponse{Amount: m.Amount, Currency: m.Currency}
}

// FromSnapshot converts a pricing snapshot to API response.
func FromSnapshot(s *pricing.Snapshot) *QuoteResponse {
	methods := make([]MethodCommissionResponse, 0, len(s.PaymentMethods))
	for _, m := range s.PaymentMethods {
		mr := MethodCommissionResponse{
			PaymentMethodID:   m.PaymentMethodID.String(),
			PaymentMethodName: m.PaymentMethodName,
			Manual:            m.Manual,
		}
		if m.CommissionPercent != nil {
			pct := m.CommissionPercent.String()
			mr.CommissionPercent = &pct
		}
		methods = append(methods, mr)
	}

	return &QuoteResponse{
		ID:               s.ID.String(),
		ListingID:        s.ListingID.String(),
		PricePerTicket:   fromMoney(s.PricePerTicket),
		BuyerFeePercent:  s.BuyerFeePercent.String(),
		SellerFeePercent: s.SellerFeePercent.String(),
		PaymentMethods:   methods,
		PricingModel:     string(s.Model),
		CreatedAt:        s.CreatedAt,
		ExpiresAt:        s.ExpiresAt,
		Consumed:         s.IsConsumed(),
	}
}

// FromTransaction converts a domain transaction to API response.
func FromTransaction(t *escrow.Transaction) *TransactionResponse {
	unitIDs := make([]string, 0, len(t.TicketUnitIDs))
	for _, id := range t.TicketUnitIDs {
		unitIDs = append(unitIDs, id.String())
	}

	resp := &TransactionResponse{
		ID:            t.ID.String(),
		ListingID:     t.ListingID.String(),
		BuyerID:       t.BuyerID,
		SellerID:      t.SellerID,
		TicketUnitIDs: unitIDs,
		Quantity:      t.Quantity,
		Breakdown: BreakdownResponse{
			TicketPrice:             fromMoney(t.Breakdown.TicketPrice),
			BuyerPlatformFee:        fromMoney(t.Breakdown.BuyerPlatformFee),
			SellerPlatformFee:       fromMoney(t.Breakdown.SellerPlatformFee),
			PaymentMethodCommission: fromMoney(t.Breakdown.PaymentMethodCommission),
			TotalPaid:               fromMoney(t.Breakdown.TotalPaid),
			SellerReceives:          fromMoney(t.Breakdown.SellerReceives),
		},
		PricingSnapshotID: t.PricingSnapshotID.String(),
		PaymentMethodID:   t.PaymentMethodID.String(),
		ManualPayment:     t.ManualPayment,
		Status:            string(t.Status),
		Version:           t.Version,
		EventStartsAt:     t.EventStartsAt,
		AutoReleaseAt:     t.AutoReleaseAt,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
		PaymentReceivedAt: t.PaymentReceivedAt,
		TransferredAt:     t.TransferredAt,
		CompletedAt:       t.CompletedAt,
		CancelledAt:       t.CancelledAt,
		RefundedAt:        t.RefundedAt,
		DisputedAt:        t.DisputedAt,
	}
	if t.DisputeID != nil {
		did := t.DisputeID.String()
		resp.DisputeID = &did
	}
	if t.PaymentConfirmationID != nil {
		cid := t.PaymentConfirmationID.String()
		resp.PaymentConfirmationID = &cid
	}
	return resp
}

// FromConfirmation converts a domain confirmation to API response.
func FromConfirmation(c *confirmation.Confirmation) *ConfirmationResponse {
	return &ConfirmationResponse{
		ID:               c.ID.String(),
		TransactionID:    c.TransactionID.String(),
		UploadedBy:       c.UploadedBy,
		OriginalFilename: c.OriginalFilename,
		ContentType:      c.ContentType,
		SizeBytes:        c.SizeBytes,
		Status:           string(c.Status),
		AdminNotes:       c.AdminNotes,
		ReviewedBy:       c.ReviewedBy,
		CreatedAt:        c.CreatedAt,
		ReviewedAt:       c.ReviewedAt,
	}
}

// FromDispute converts a domain dispute to API response.
func FromDispute(d *dispute.Dispute) *DisputeResponse {
	resp := &DisputeResponse{
		ID:            d.ID.String(),
		TransactionID: d.TransactionID.String(),
		OpenedBy:      d.OpenedBy,
		Reason:        d.Reason,
		Status:        string(d.Status),
		AdminNotes:    d.AdminNotes,
		ResolvedBy:    d.ResolvedBy,
		CreatedAt:     d.CreatedAt,
		ResolvedAt:    d.ResolvedAt,
	}
	if d.Resolution != nil {
		res := string(*d.Resolution)
		resp.Resolution = &res
	}
	return resp
}

// parseUUID parses a UUID string, returning nil if invalid.
func parseUUID(s string) *uuid.UUID {
	if s == "" {
		return nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil
	}
	return &id
}

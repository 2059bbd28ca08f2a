package controller

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	escrowApp "github.com/seatswap/escrow/internal/application/escrow"
	domainErrors "github.com/seatswap/escrow/internal/domain/errors"
	"github.com/seatswap/escrow/internal/domain/escrow"
	"github.com/seatswap/escrow/internal/middleware"
)

// EscrowController handles transaction-related HTTP requests.
type EscrowController struct {
	escrowService *escrowApp.Service
}

// NewEscrowController creates a new EscrowController.
func NewEscrowController(escrowService *escrowApp.Service) *EscrowController {
	return &EscrowController{escrowService: escrowService}
}

// InitiatePurchase handles POST /api/v1/transactions
func (h *EscrowController) InitiatePurchase(w http.ResponseWriter, r *http.Request) {
	buyerID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, domainErrors.ErrUnauthorized)
		return
	}

	var req InitiatePurchaseRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	listingID := parseUUID(req.ListingID)
	snapshotID := parseUUID(req.SnapshotID)
	methodID := parseUUID(req.PaymentMethodID)
	if listingID == nil || snapshotID == nil || methodID == nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid id in request", Code: "invalid_id"})
		return
	}

	unitIDs := make([]uuid.UUID, 0, len(req.TicketUnitIDs))
	for _, s := range req.TicketUnitIDs {
		id := parseUUID(s)
		if id == nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid ticket_unit_id", Code: "invalid_id"})
			return
		}
		unitIDs = append(unitIDs, *id)
	}

	tx, err := h.escrowService.InitiatePurchase(r.Context(), escrowApp.InitiatePurchaseRequest{
		ListingID:       *listingID,
		TicketUnitIDs:   unitIDs,
		BuyerID:         buyerID,
		SnapshotID:      *snapshotID,
		PaymentMethodID: *methodID,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, FromTransaction(tx))
}

// GetTransaction handles GET /api/v1/transactions/{id}
func (h *EscrowController) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid transaction id", Code: "invalid_id"})
		return
	}

	userID, _ := middleware.GetUserID(r.Context())
	tx, err := h.escrowService.GetTransaction(r.Context(), id, userID, middleware.IsAdmin(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FromTransaction(tx))
}

// ListTransactions handles GET /api/v1/transactions
func (h *EscrowController) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, domainErrors.ErrUnauthorized)
		return
	}

	filter := escrow.ListFilter{}

	// Non-admins only see their own side of the market.
	role := r.URL.Query().Get("role")
	if middleware.IsAdmin(r.Context()) {
		if s := r.URL.Query().Get("buyer_id"); s != "" {
			filter.BuyerID = &s
		}
		if s := r.URL.Query().Get("seller_id"); s != "" {
			filter.SellerID = &s
		}
	} else if role == "seller" {
		filter.SellerID = &userID
	} else {
		filter.BuyerID = &userID
	}

	if s := r.URL.Query().Get("listing_id"); s != "" {
		if id := parseUUID(s); id != nil {
			filter.ListingID = id
		}
	}
	if s := r.URL.Query().Get("status"); s != "" {
		status := escrow.Status(s)
		filter.Status = &status
	}
	filter.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	filter.Offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 50
	}

	transactions, err := h.escrowService.ListTransactions(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]*TransactionResponse, 0, len(transactions))
	for _, tx := range transactions {
		resp = append(resp, FromTransaction(tx))
	}
	writeJSON(w, http.StatusOK, resp)
}

// ConfirmTransfer handles POST /api/v1/transactions/{id}/transfer
func (h *EscrowController) ConfirmTransfer(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid transaction id", Code: "invalid_id"})
		return
	}

	userID, _ := middleware.GetUserID(r.Context())
	tx, err := h.escrowService.ConfirmTransfer(r.Context(), id, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FromTransaction(tx))
}

// ConfirmReceipt handles POST /api/v1/transactions/{id}/receipt
func (h *EscrowController) ConfirmReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid transaction id", Code: "invalid_id"})
		return
	}

	userID, _ := middleware.GetUserID(r.Context())
	tx, err := h.escrowService.ConfirmReceipt(r.Context(), id, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FromTransaction(tx))
}

// CancelTransaction handles POST /api/v1/transactions/{id}/cancel
func (h *EscrowController) CancelTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid transaction id", Code: "invalid_id"})
		return
	}

	userID, _ := middleware.GetUserID(r.Context())
	tx, err := h.escrowService.CancelTransaction(r.Context(), id, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FromTransaction(tx))
}

// RefundTransaction handles POST /api/v1/admin/transactions/{id}/refund
func (h *EscrowController) RefundTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid transaction id", Code: "invalid_id"})
		return
	}

	adminID, _ := middleware.GetUserID(r.Context())
	tx, err := h.escrowService.RefundTransaction(r.Context(), id, adminID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FromTransaction(tx))
}

// PaymentWebhook handles POST /api/v1/webhooks/payments. Automatic methods
// settle through here; manual methods go through the confirmation review
// flow instead.
func (h *EscrowController) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	var req PaymentWebhookRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	id := parseUUID(req.TransactionID)
	if id == nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid transaction_id", Code: "invalid_id"})
		return
	}

	if req.Status != "succeeded" {
		// Failed settlements leave the transaction awaiting payment; the
		// buyer may retry or cancel.
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	tx, err := h.escrowService.MarkPaymentReceived(r.Context(), *id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FromTransaction(tx))
}

package controller

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	disputeApp "github.com/seatswap/escrow/internal/application/dispute"
	"github.com/seatswap/escrow/internal/domain/dispute"
	domainErrors "github.com/seatswap/escrow/internal/domain/errors"
	"github.com/seatswap/escrow/internal/middleware"
)

// DisputeController handles dispute-related HTTP requests.
type DisputeController struct {
	disputeService *disputeApp.Service
}

// NewDisputeController creates a new DisputeController.
func NewDisputeController(disputeService *disputeApp.Service) *DisputeController {
	return &DisputeController{disputeService: disputeService}
}

// Open handles POST /api/v1/transactions/{id}/disputes
func (h *DisputeController) Open(w http.ResponseWriter, r *http.Request) {
	txID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid transaction id", Code: "invalid_id"})
		return
	}

	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, domainErrors.ErrUnauthorized)
		return
	}

	var req OpenDisputeRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	d, err := h.disputeService.Open(r.Context(), txID, userID, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, FromDispute(d))
}

// Get handles GET /api/v1/disputes/{id}
func (h *DisputeController) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid dispute id", Code: "invalid_id"})
		return
	}

	userID, _ := middleware.GetUserID(r.Context())
	d, err := h.disputeService.Get(r.Context(), id, userID, middleware.IsAdmin(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FromDispute(d))
}

// ListOpen handles GET /api/v1/admin/disputes
func (h *DisputeController) ListOpen(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	disputes, err := h.disputeService.ListOpen(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]*DisputeResponse, 0, len(disputes))
	for _, d := range disputes {
		resp = append(resp, FromDispute(d))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Resolve handles POST /api/v1/admin/disputes/{id}/resolve
func (h *DisputeController) Resolve(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid dispute id", Code: "invalid_id"})
		return
	}

	adminID, _ := middleware.GetUserID(r.Context())

	var req ResolveDisputeRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	d, err := h.disputeService.Resolve(r.Context(), id, adminID, dispute.Resolution(req.Resolution), req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FromDispute(d))
}

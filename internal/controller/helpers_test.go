package controller

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	domainErrors "github.com/seatswap/escrow/internal/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestWriteError_SentinelMappings(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"snapshot not found", domainErrors.ErrSnapshotNotFound, http.StatusNotFound, "not_found"},
		{"transaction not found", domainErrors.ErrTransactionNotFound, http.StatusNotFound, "not_found"},
		{"snapshot already consumed", domainErrors.ErrSnapshotAlreadyConsumed, http.StatusConflict, "snapshot_already_consumed"},
		{"snapshot expired", domainErrors.ErrSnapshotExpired, http.StatusUnprocessableEntity, "snapshot_expired"},
		{"listing mismatch", domainErrors.ErrListingMismatch, http.StatusUnprocessableEntity, "listing_mismatch"},
		{"units unavailable", domainErrors.ErrUnitsUnavailable, http.StatusConflict, "units_unavailable"},
		{"invalid transition", domainErrors.ErrInvalidStateTransition, http.StatusConflict, "invalid_state_transition"},
		{"optimistic lock", domainErrors.ErrOptimisticLockFailed, http.StatusConflict, "conflict"},
		{"already reviewed", domainErrors.ErrConfirmationAlreadyReviewed, http.StatusConflict, "already_reviewed"},
		{"confirmation exists", domainErrors.ErrConfirmationExists, http.StatusConflict, "confirmation_exists"},
		{"open dispute exists", domainErrors.ErrOpenDisputeExists, http.StatusConflict, "open_dispute_exists"},
		{"dispute not open", domainErrors.ErrDisputeNotOpen, http.StatusConflict, "dispute_not_open"},
		{"invalid resolution", domainErrors.ErrInvalidResolution, http.StatusBadRequest, "invalid_resolution"},
		{"manual settlement required", domainErrors.ErrManualSettlementRequired, http.StatusUnprocessableEntity, "manual_settlement_required"},
		{"lock acquisition failed", domainErrors.ErrLockAcquisitionFailed, http.StatusServiceUnavailable, "busy"},
		{"forbidden", domainErrors.ErrForbidden, http.StatusForbidden, "forbidden"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeError(w, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, decodeErrorBody(t, w).Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		})
	}
}

func TestWriteError_WrappedSentinel(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, fmt.Errorf("failed to consume snapshot: %w", domainErrors.ErrSnapshotAlreadyConsumed))

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "snapshot_already_consumed", decodeErrorBody(t, w).Code)
}

func TestWriteError_OptimisticLockMessage(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, domainErrors.ErrOptimisticLockFailed)

	resp := decodeErrorBody(t, w)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "concurrent modification, please retry", resp.Error)
}

func TestWriteError_ValidationError(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, domainErrors.NewValidationError("reason", "is required"))

	resp := decodeErrorBody(t, w)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", resp.Code)
	assert.Contains(t, resp.Error, "reason")
}

func TestWriteError_DomainError(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, domainErrors.NewDomainError("quantity_exceeded", "too many units requested", nil))

	resp := decodeErrorBody(t, w)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "quantity_exceeded", resp.Code)
}

func TestWriteError_UnknownError(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, fmt.Errorf("pgx: connection refused"))

	resp := decodeErrorBody(t, w)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal_error", resp.Code)
	// Internal details must not leak to clients.
	assert.Equal(t, "internal server error", resp.Error)
}

func TestDecodeAndValidate_OK(t *testing.T) {
	body := `{"listing_id":"7f8a1f6e-26de-4b4f-8f8d-94f54a14e1af"}`
	r := httptest.NewRequest("POST", "/quotes", strings.NewReader(body))

	var req CreateQuoteRequest
	require.NoError(t, decodeAndValidate(r, &req))
	assert.Equal(t, "7f8a1f6e-26de-4b4f-8f8d-94f54a14e1af", req.ListingID)
}

func TestDecodeAndValidate_InvalidJSON(t *testing.T) {
	r := httptest.NewRequest("POST", "/quotes", strings.NewReader("{not json"))

	var req CreateQuoteRequest
	err := decodeAndValidate(r, &req)
	require.Error(t, err)

	var ve *domainErrors.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestDecodeAndValidate_MissingField(t *testing.T) {
	r := httptest.NewRequest("POST", "/quotes", strings.NewReader(`{}`))

	var req CreateQuoteRequest
	err := decodeAndValidate(r, &req)
	require.Error(t, err)

	var ve *domainErrors.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "ListingID", ve.Field)
}

func TestDecodeAndValidate_BadUUIDInSlice(t *testing.T) {
	body := `{
		"listing_id": "7f8a1f6e-26de-4b4f-8f8d-94f54a14e1af",
		"ticket_unit_ids": ["not-a-uuid"],
		"snapshot_id": "3b9e2d44-0c15-4a2e-9a31-17d6f4c0b9aa",
		"payment_method_id": "9d2c5a8e-6f31-4e0b-8c44-2a7f90d1e3bb"
	}`
	r := httptest.NewRequest("POST", "/transactions", strings.NewReader(body))

	var req InitiatePurchaseRequest
	err := decodeAndValidate(r, &req)
	require.Error(t, err)

	var ve *domainErrors.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestDecodeAndValidate_ResolutionOneOf(t *testing.T) {
	r := httptest.NewRequest("POST", "/resolve", strings.NewReader(`{"resolution":"coin_flip"}`))

	var req ResolveDisputeRequest
	err := decodeAndValidate(r, &req)
	require.Error(t, err)

	var ve *domainErrors.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "Resolution", ve.Field)
}

package controller

import (
	"encoding/json"
	"errors"
	"net/http"

	domainErrors "github.com/seatswap/escrow/internal/domain/errors"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

var validate = validator.New()

type errorMapping struct {
	err    error
	status int
	code   string
}

// Conflicts (lost races, already-spent quotes) map to 409 so clients retry
// with fresh state; unmet preconditions map to 422; bad input to 400.
var errorMappings = []errorMapping{
	{domainErrors.ErrSnapshotNotFound, http.StatusNotFound, "not_found"},
	{domainErrors.ErrTransactionNotFound, http.StatusNotFound, "not_found"},
	{domainErrors.ErrListingNotFound, http.StatusNotFound, "not_found"},
	{domainErrors.ErrConfirmationNotFound, http.StatusNotFound, "not_found"},
	{domainErrors.ErrDisputeNotFound, http.StatusNotFound, "not_found"},
	{domainErrors.ErrBlobNotFound, http.StatusNotFound, "not_found"},
	{domainErrors.ErrSnapshotAlreadyConsumed, http.StatusConflict, "snapshot_already_consumed"},
	{domainErrors.ErrSnapshotExpired, http.StatusUnprocessableEntity, "snapshot_expired"},
	{domainErrors.ErrListingMismatch, http.StatusUnprocessableEntity, "listing_mismatch"},
	{domainErrors.ErrPaymentMethodNotAvailable, http.StatusUnprocessableEntity, "payment_method_not_available"},
	{domainErrors.ErrUnitsNotOnListing, http.StatusUnprocessableEntity, "units_not_on_listing"},
	{domainErrors.ErrUnitsUnavailable, http.StatusConflict, "units_unavailable"},
	{domainErrors.ErrNotManualPaymentMethod, http.StatusUnprocessableEntity, "not_manual_payment_method"},
	{domainErrors.ErrManualSettlementRequired, http.StatusUnprocessableEntity, "manual_settlement_required"},
	{domainErrors.ErrConfirmationAlreadyReviewed, http.StatusConflict, "already_reviewed"},
	{domainErrors.ErrConfirmationExists, http.StatusConflict, "confirmation_exists"},
	{domainErrors.ErrOpenDisputeExists, http.StatusConflict, "open_dispute_exists"},
	{domainErrors.ErrDisputeNotOpen, http.StatusConflict, "dispute_not_open"},
	{domainErrors.ErrInvalidResolution, http.StatusBadRequest, "invalid_resolution"},
	{domainErrors.ErrCurrencyMismatch, http.StatusBadRequest, "currency_mismatch"},
	{domainErrors.ErrInvalidStateTransition, http.StatusConflict, "invalid_state_transition"},
	{domainErrors.ErrOptimisticLockFailed, http.StatusConflict, "conflict"},
	{domainErrors.ErrLockAcquisitionFailed, http.StatusServiceUnavailable, "busy"},
	{domainErrors.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{domainErrors.ErrForbidden, http.StatusForbidden, "forbidden"},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error()}

	var validationErr *domainErrors.ValidationError
	if errors.As(err, &validationErr) {
		resp.Code = "validation_error"
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			resp.Code = m.code
			if m.err == domainErrors.ErrOptimisticLockFailed {
				resp.Error = "concurrent modification, please retry"
			}
			writeJSON(w, m.status, resp)
			return
		}
	}

	var domainErr *domainErrors.DomainError
	if errors.As(err, &domainErr) {
		resp.Code = domainErr.Code
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	log.Error().Err(err).Msg("unhandled error in handler")
	resp.Code = "internal_error"
	resp.Error = "internal server error"
	writeJSON(w, http.StatusInternalServerError, resp)
}

func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domainErrors.NewValidationError("body", "invalid JSON: "+err.Error())
	}
	if err := validate.Struct(dst); err != nil {
		if ve, ok := err.(validator.ValidationErrors); ok && len(ve) > 0 {
			return domainErrors.NewValidationError(ve[0].Field(), ve[0].Tag()+" validation failed")
		}
		return domainErrors.NewValidationError("body", err.Error())
	}
	return nil
}

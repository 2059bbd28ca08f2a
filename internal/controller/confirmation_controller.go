package controller

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	confirmationApp "github.com/seatswap/escrow/internal/application/confirmation"
	"github.com/seatswap/escrow/internal/domain/confirmation"
	domainErrors "github.com/seatswap/escrow/internal/domain/errors"
	"github.com/seatswap/escrow/internal/middleware"
)

// ConfirmationController handles payment-proof HTTP requests.
type ConfirmationController struct {
	confirmationService *confirmationApp.Service
}

// NewConfirmationController creates a new ConfirmationController.
func NewConfirmationController(confirmationService *confirmationApp.Service) *ConfirmationController {
	return &ConfirmationController{confirmationService: confirmationService}
}

// Upload handles POST /api/v1/transactions/{id}/confirmation as a multipart
// upload with the proof in the "file" part.
func (h *ConfirmationController) Upload(w http.ResponseWriter, r *http.Request) {
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

	// Cap the whole form slightly above the file limit so oversized uploads
	// fail the size guard with a clear error instead of a broken stream.
	r.Body = http.MaxBytesReader(w, r.Body, confirmation.MaxFileSize+(1<<20))
	if err := r.ParseMultipartForm(confirmation.MaxFileSize); err != nil {
		writeError(w, domainErrors.NewValidationError("file", "multipart form too large or malformed"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, domainErrors.NewValidationError("file", "missing file part"))
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, domainErrors.NewValidationError("file", "failed to read file"))
		return
	}

	contentType := header.Header.Get("Content-Type")

	conf, err := h.confirmationService.Upload(r.Context(), confirmationApp.UploadRequest{
		TransactionID: txID,
		UploaderID:    userID,
		Filename:      header.Filename,
		ContentType:   contentType,
		Content:       content,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, FromConfirmation(conf))
}

// GetByTransaction handles GET /api/v1/transactions/{id}/confirmation
func (h *ConfirmationController) GetByTransaction(w http.ResponseWriter, r *http.Request) {
	txID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid transaction id", Code: "invalid_id"})
		return
	}

	userID, _ := middleware.GetUserID(r.Context())
	conf, err := h.confirmationService.GetByTransaction(r.Context(), txID, userID, middleware.IsAdmin(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FromConfirmation(conf))
}

// DownloadProof handles GET /api/v1/transactions/{id}/confirmation/file
func (h *ConfirmationController) DownloadProof(w http.ResponseWriter, r *http.Request) {
	txID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid transaction id", Code: "invalid_id"})
		return
	}

	userID, _ := middleware.GetUserID(r.Context())
	data, conf, err := h.confirmationService.RetrieveProof(r.Context(), txID, userID, middleware.IsAdmin(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", conf.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+conf.OriginalFilename+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// ListPending handles GET /api/v1/admin/confirmations
func (h *ConfirmationController) ListPending(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	pending, err := h.confirmationService.ListPending(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]*ConfirmationResponse, 0, len(pending))
	for _, p := range pending {
		cr := FromConfirmation(p.Confirmation)
		cr.UploaderName = p.UploaderName
		resp = append(resp, cr)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Review handles POST /api/v1/admin/confirmations/{id}/review
func (h *ConfirmationController) Review(w http.ResponseWriter, r *http.Request) {
	confID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid confirmation id", Code: "invalid_id"})
		return
	}

	adminID, _ := middleware.GetUserID(r.Context())

	var req ReviewConfirmationRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	conf, err := h.confirmationService.Review(r.Context(), confirmationApp.ReviewRequest{
		ConfirmationID:    confID,
		AdminID:           adminID,
		Accept:            req.Accept,
		Notes:             req.Notes,
		UpdateTransaction: true,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FromConfirmation(conf))
}

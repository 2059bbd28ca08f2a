package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	escrowApp "github.com/seatswap/escrow/internal/application/escrow"
	pricingApp "github.com/seatswap/escrow/internal/application/pricing"
)

// PricingController handles quote-related HTTP requests.
type PricingController struct {
	pricingService *pricingApp.Service
	listings       escrowApp.ListingCatalog
}

// NewPricingController creates a new PricingController.
func NewPricingController(pricingService *pricingApp.Service, listings escrowApp.ListingCatalog) *PricingController {
	return &PricingController{
		pricingService: pricingService,
		listings:       listings,
	}
}

// CreateQuote handles POST /api/v1/quotes
func (h *PricingController) CreateQuote(w http.ResponseWriter, r *http.Request) {
	var req CreateQuoteRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	listingID := parseUUID(req.ListingID)
	if listingID == nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid listing_id", Code: "invalid_id"})
		return
	}

	// The listing's current asking price is what gets frozen into the quote.
	listing, err := h.listings.GetListingByID(r.Context(), *listingID)
	if err != nil {
		writeError(w, err)
		return
	}

	snapshot, err := h.pricingService.CreateSnapshot(r.Context(), listing.ID, listing.PricePerTicket)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, FromSnapshot(snapshot))
}

// GetQuote handles GET /api/v1/quotes/{id}
func (h *PricingController) GetQuote(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid quote id", Code: "invalid_id"})
		return
	}

	snapshot, err := h.pricingService.GetSnapshot(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FromSnapshot(snapshot))
}

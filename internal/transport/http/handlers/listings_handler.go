package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	authsvc "github.com/ebuka-odih/nyem-backend/internal/services/auth"
	listingssvc "github.com/ebuka-odih/nyem-backend/internal/services/listings"
	"github.com/ebuka-odih/nyem-backend/internal/transport/http/dto"
	httperrors "github.com/ebuka-odih/nyem-backend/internal/transport/http/errors"
)

type ListingsHandler struct {
	service *listingssvc.Service
}

func NewListingsHandler(service *listingssvc.Service) *ListingsHandler {
	return &ListingsHandler{service: service}
}

func (h *ListingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if _, ok := authsvc.IdentityFromContext(r.Context()); !ok {
		writeUnauthorized(w, "UNAUTHENTICATED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "LISTINGS_SERVICE_UNAVAILABLE", "listings service is unavailable")
		return
	}

	listingID, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid listing id")
		return
	}

	listing, err := h.service.Get(r.Context(), listingID)
	if err != nil {
		if errors.Is(err, listingssvc.ErrListingNotFound) {
			writeNotFound(w, "NOT_FOUND", "listing not found")
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "failed to load listing")
		return
	}

	httperrors.Write(w, http.StatusOK, toListingResponse(listing))
}

func (h *ListingsHandler) Mine(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHENTICATED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "LISTINGS_SERVICE_UNAVAILABLE", "listings service is unavailable")
		return
	}

	items, err := h.service.ListByOwner(r.Context(), identity.UserID)
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to load listings")
		return
	}

	responseItems := make([]dto.ListingResponse, 0, len(items))
	for _, item := range items {
		responseItems = append(responseItems, toListingResponse(item))
	}

	httperrors.Write(w, http.StatusOK, dto.ListingsResponse{Items: responseItems})
}

func toListingResponse(listing listingssvc.Listing) dto.ListingResponse {
	return dto.ListingResponse{
		ID:          listing.ID,
		OwnerUserID: listing.OwnerUserID,
		Title:       listing.Title,
		PriceMinor:  listing.PriceMinor,
		Currency:    listing.Currency,
		ImageURL:    listing.ImageURL,
		CreatedAt:   listing.CreatedAt,
	}
}

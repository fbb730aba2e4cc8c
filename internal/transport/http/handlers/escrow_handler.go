package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	pgrepo "github.com/ebuka-odih/nyem-backend/internal/repo/postgres"
	authsvc "github.com/ebuka-odih/nyem-backend/internal/services/auth"
	escrowsvc "github.com/ebuka-odih/nyem-backend/internal/services/escrow"
	"github.com/ebuka-odih/nyem-backend/internal/transport/http/dto"
	httperrors "github.com/ebuka-odih/nyem-backend/internal/transport/http/errors"
)

type EscrowHandler struct {
	service *escrowsvc.Service
}

func NewEscrowHandler(service *escrowsvc.Service) *EscrowHandler {
	return &EscrowHandler{service: service}
}

func (h *EscrowHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, conversationID, ok := h.escrowScope(w, r)
	if !ok {
		return
	}

	rec, err := h.service.Get(r.Context(), conversationID, identity.UserID)
	if err != nil {
		handleEscrowError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, toEscrowResponse(rec))
}

func (h *EscrowHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	identity, conversationID, ok := h.escrowScope(w, r)
	if !ok {
		return
	}

	var req dto.SetEscrowActiveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	rec, err := h.service.SetActive(r.Context(), conversationID, identity.UserID, req.Active)
	if err != nil {
		handleEscrowError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, toEscrowResponse(rec))
}

func (h *EscrowHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.BeginCheckout)
}

func (h *EscrowHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Cancel)
}

func (h *EscrowHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.ConfirmPayment)
}

func (h *EscrowHandler) transition(w http.ResponseWriter, r *http.Request, move func(context.Context, int64, int64) (pgrepo.EscrowRecord, error)) {
	identity, conversationID, ok := h.escrowScope(w, r)
	if !ok {
		return
	}

	rec, err := move(r.Context(), conversationID, identity.UserID)
	if err != nil {
		handleEscrowError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, toEscrowResponse(rec))
}

func (h *EscrowHandler) escrowScope(w http.ResponseWriter, r *http.Request) (authsvc.Identity, int64, bool) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHENTICATED", "authentication required")
		return authsvc.Identity{}, 0, false
	}
	if h.service == nil {
		writeInternal(w, "ESCROW_SERVICE_UNAVAILABLE", "escrow service is unavailable")
		return authsvc.Identity{}, 0, false
	}

	conversationID, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid conversation id")
		return authsvc.Identity{}, 0, false
	}

	return identity, conversationID, true
}

func handleEscrowError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, escrowsvc.ErrNotFound):
		writeNotFound(w, "NOT_FOUND", "escrow session not found")
	case errors.Is(err, escrowsvc.ErrNotParticipant):
		writeForbidden(w, "NOT_AUTHORIZED", "not a participant of this conversation")
	case errors.Is(err, escrowsvc.ErrEscrowNotActive):
		httperrors.Write(w, http.StatusConflict, httperrors.APIError{Code: "ESCROW_NOT_ACTIVE", Message: "escrow must be active to begin checkout"})
	case errors.Is(err, escrowsvc.ErrNotInCheckout):
		httperrors.Write(w, http.StatusConflict, httperrors.APIError{Code: "NOT_IN_CHECKOUT", Message: "escrow is not in checkout"})
	case errors.Is(err, escrowsvc.ErrEscrowClosed):
		httperrors.Write(w, http.StatusConflict, httperrors.APIError{Code: "ESCROW_CLOSED", Message: "escrow session can no longer be toggled"})
	case errors.Is(err, escrowsvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "invalid escrow request")
	default:
		writeInternal(w, "INTERNAL_ERROR", "failed to process escrow request")
	}
}

func toEscrowResponse(rec pgrepo.EscrowRecord) dto.EscrowResponse {
	return dto.EscrowResponse{
		ConversationID: rec.ConversationID,
		ListingID:      rec.ListingID,
		Status:         rec.Status,
		PriceSnapshot:  rec.PriceSnapshot,
		Currency:       rec.Currency,
		UpdatedAt:      rec.UpdatedAt,
	}
}

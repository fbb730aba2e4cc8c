package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	authsvc "github.com/ebuka-odih/nyem-backend/internal/services/auth"
	convsvc "github.com/ebuka-odih/nyem-backend/internal/services/conversations"
	lifecyclesvc "github.com/ebuka-odih/nyem-backend/internal/services/lifecycle"
	"github.com/ebuka-odih/nyem-backend/internal/transport/http/dto"
	httperrors "github.com/ebuka-odih/nyem-backend/internal/transport/http/errors"
)

type LifecycleHandler struct {
	service *lifecyclesvc.Service
}

func NewLifecycleHandler(service *lifecyclesvc.Service) *LifecycleHandler {
	return &LifecycleHandler{service: service}
}

// Open brings a conversation into focus for the caller's session and
// returns the state the client rebuilds its view from.
func (h *LifecycleHandler) Open(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHENTICATED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "LIFECYCLE_SERVICE_UNAVAILABLE", "lifecycle service is unavailable")
		return
	}

	conversationID, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid conversation id")
		return
	}

	var req dto.OpenConversationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	state, err := h.service.Open(r.Context(), identity.UserID, req.SessionScope, conversationID)
	if err != nil {
		handleLifecycleError(w, err)
		return
	}

	response := dto.OpenStateResponse{
		Conversation: toConversationResponse(state.Conversation),
	}
	if state.Escrow != nil {
		escrow := toEscrowResponse(*state.Escrow)
		response.Escrow = &escrow
	}

	httperrors.Write(w, http.StatusOK, response)
}

func (h *LifecycleHandler) Close(w http.ResponseWriter, r *http.Request) {
	if _, ok := authsvc.IdentityFromContext(r.Context()); !ok {
		writeUnauthorized(w, "UNAUTHENTICATED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "LIFECYCLE_SERVICE_UNAVAILABLE", "lifecycle service is unavailable")
		return
	}

	var req dto.CloseConversationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	if err := h.service.Close(r.Context(), req.SessionScope); err != nil {
		handleLifecycleError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.OKResponse{OK: true})
}

// Refresh is the polling snapshot endpoint: pending requests, conversation
// summaries and the new-message counter in one round trip.
func (h *LifecycleHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHENTICATED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "LIFECYCLE_SERVICE_UNAVAILABLE", "lifecycle service is unavailable")
		return
	}

	snap, err := h.service.Refresh(r.Context(), identity.UserID)
	if err != nil {
		handleLifecycleError(w, err)
		return
	}

	pending := make([]dto.RequestItemResponse, 0, len(snap.PendingRequests))
	for _, item := range snap.PendingRequests {
		pending = append(pending, dto.RequestItemResponse{
			RequestResponse: toRequestResponse(item.RequestRecord),
			SenderName:      item.SenderName,
			SenderAvatarKey: item.SenderAvatarKey,
			ListingTitle:    item.ListingTitle,
			ListingPrice:    item.ListingPrice,
		})
	}
	convs := make([]dto.ConversationSummaryResponse, 0, len(snap.Conversations))
	for _, item := range snap.Conversations {
		convs = append(convs, toConversationSummaryResponse(item))
	}

	httperrors.Write(w, http.StatusOK, dto.RefreshSnapshotResponse{
		PendingRequests: pending,
		Conversations:   convs,
		NewMessages:     snap.NewMessages,
	})
}

func handleLifecycleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, convsvc.ErrConversationNotFound):
		writeNotFound(w, "NOT_FOUND", "conversation not found")
	case errors.Is(err, convsvc.ErrNotParticipant):
		writeForbidden(w, "NOT_AUTHORIZED", "not a participant of this conversation")
	case errors.Is(err, lifecyclesvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "invalid lifecycle request")
	default:
		writeInternal(w, "INTERNAL_ERROR", "failed to process lifecycle request")
	}
}

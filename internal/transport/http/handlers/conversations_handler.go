package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	pgrepo "github.com/ebuka-odih/nyem-backend/internal/repo/postgres"
	authsvc "github.com/ebuka-odih/nyem-backend/internal/services/auth"
	convsvc "github.com/ebuka-odih/nyem-backend/internal/services/conversations"
	"github.com/ebuka-odih/nyem-backend/internal/transport/http/dto"
	httperrors "github.com/ebuka-odih/nyem-backend/internal/transport/http/errors"
)

type ConversationsHandler struct {
	service *convsvc.Service
}

func NewConversationsHandler(service *convsvc.Service) *ConversationsHandler {
	return &ConversationsHandler{service: service}
}

func (h *ConversationsHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHENTICATED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "CONVERSATIONS_SERVICE_UNAVAILABLE", "conversations service is unavailable")
		return
	}

	items, err := h.service.List(r.Context(), identity.UserID, parseIntOrDefault(r.URL.Query().Get("limit"), 100))
	if err != nil {
		if errors.Is(err, convsvc.ErrValidation) {
			writeBadRequest(w, "VALIDATION_ERROR", "invalid list request")
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "failed to load conversations")
		return
	}

	responseItems := make([]dto.ConversationSummaryResponse, 0, len(items))
	for _, item := range items {
		responseItems = append(responseItems, toConversationSummaryResponse(item))
	}

	httperrors.Write(w, http.StatusOK, dto.ConversationsResponse{Items: responseItems})
}

func (h *ConversationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, conversationID, ok := h.conversationScope(w, r)
	if !ok {
		return
	}

	rec, err := h.service.Get(r.Context(), conversationID, identity.UserID)
	if err != nil {
		handleConversationError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, toConversationResponse(rec))
}

func (h *ConversationsHandler) Leave(w http.ResponseWriter, r *http.Request) {
	identity, conversationID, ok := h.conversationScope(w, r)
	if !ok {
		return
	}

	if err := h.service.Leave(r.Context(), conversationID, identity.UserID); err != nil {
		handleConversationError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.OKResponse{OK: true})
}

func (h *ConversationsHandler) conversationScope(w http.ResponseWriter, r *http.Request) (authsvc.Identity, int64, bool) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHENTICATED", "authentication required")
		return authsvc.Identity{}, 0, false
	}
	if h.service == nil {
		writeInternal(w, "CONVERSATIONS_SERVICE_UNAVAILABLE", "conversations service is unavailable")
		return authsvc.Identity{}, 0, false
	}

	conversationID, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid conversation id")
		return authsvc.Identity{}, 0, false
	}

	return identity, conversationID, true
}

func handleConversationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, convsvc.ErrConversationNotFound):
		writeNotFound(w, "NOT_FOUND", "conversation not found")
	case errors.Is(err, convsvc.ErrNotParticipant):
		writeForbidden(w, "NOT_AUTHORIZED", "not a participant of this conversation")
	case errors.Is(err, convsvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "invalid conversation request")
	default:
		writeInternal(w, "INTERNAL_ERROR", "failed to load conversation")
	}
}

func toConversationResponse(rec pgrepo.ConversationRecord) dto.ConversationResponse {
	return dto.ConversationResponse{
		ID:        rec.ID,
		UserAID:   rec.UserAID,
		UserBID:   rec.UserBID,
		ListingID: rec.ListingID,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}

func toConversationResponsePtr(rec *pgrepo.ConversationRecord) *dto.ConversationResponse {
	if rec == nil {
		return nil
	}
	resp := toConversationResponse(*rec)
	return &resp
}

func toConversationSummaryResponse(item pgrepo.ConversationSummary) dto.ConversationSummaryResponse {
	return dto.ConversationSummaryResponse{
		ID:                item.ID,
		ListingID:         item.ListingID,
		OtherUserID:       item.OtherUserID,
		OtherName:         item.OtherName,
		ListingTitle:      item.ListingTitle,
		LastMessageText:   item.LastMessageText,
		LastMessageAt:     item.LastMessageAt,
		LastMessageSender: item.LastMessageSender,
		UnreadCount:       item.UnreadCount,
		UpdatedAt:         item.UpdatedAt,
	}
}

package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pgrepo "github.com/ebuka-odih/nyem-backend/internal/repo/postgres"
	authsvc "github.com/ebuka-odih/nyem-backend/internal/services/auth"
	messagessvc "github.com/ebuka-odih/nyem-backend/internal/services/messages"
	"github.com/ebuka-odih/nyem-backend/internal/transport/http/dto"
	httperrors "github.com/ebuka-odih/nyem-backend/internal/transport/http/errors"
)

type MessagesHandler struct {
	service *messagessvc.Service
}

func NewMessagesHandler(service *messagessvc.Service) *MessagesHandler {
	return &MessagesHandler{service: service}
}

func (h *MessagesHandler) Send(w http.ResponseWriter, r *http.Request) {
	identity, conversationID, ok := h.messageScope(w, r)
	if !ok {
		return
	}

	var req dto.SendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	clientRef, err := uuid.Parse(req.ClientRef)
	if err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "client_ref must be a uuid")
		return
	}

	res, err := h.service.Send(r.Context(), conversationID, identity.UserID, clientRef, req.Text)
	if err != nil {
		if tf, ok := messagessvc.IsTooFast(err); ok {
			httperrors.Write(w, http.StatusTooManyRequests, httperrors.RateLimitError{
				Code:          "TOO_FAST",
				Message:       "sending too fast",
				RetryAfterSec: tf.RetryAfter(),
			})
			return
		}
		handleMessageError(w, err)
		return
	}

	status := http.StatusCreated
	if res.Replay {
		status = http.StatusOK
	}
	httperrors.Write(w, status, dto.SendMessageResponse{
		Message: toMessageResponse(res.Message),
		Replay:  res.Replay,
	})
}

func (h *MessagesHandler) History(w http.ResponseWriter, r *http.Request) {
	identity, conversationID, ok := h.messageScope(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	var cursor *messagessvc.HistoryCursor
	if rawTS := query.Get("before_ts"); rawTS != "" {
		beforeTS, err := time.Parse(time.RFC3339Nano, rawTS)
		if err != nil {
			writeBadRequest(w, "VALIDATION_ERROR", "before_ts must be RFC3339")
			return
		}
		beforeID, ok := parseID(query.Get("before_id"))
		if !ok {
			writeBadRequest(w, "VALIDATION_ERROR", "before_id is required with before_ts")
			return
		}
		cursor = &messagessvc.HistoryCursor{BeforeCreatedAt: beforeTS, BeforeID: beforeID}
	}

	items, err := h.service.History(r.Context(), conversationID, identity.UserID, cursor, parseIntOrDefault(query.Get("limit"), 0))
	if err != nil {
		handleMessageError(w, err)
		return
	}

	responseItems := make([]dto.MessageResponse, 0, len(items))
	for _, item := range items {
		responseItems = append(responseItems, toMessageResponse(item))
	}

	httperrors.Write(w, http.StatusOK, dto.MessagesResponse{Items: responseItems})
}

func (h *MessagesHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	identity, conversationID, ok := h.messageScope(w, r)
	if !ok {
		return
	}

	if err := h.service.MarkRead(r.Context(), conversationID, identity.UserID); err != nil {
		handleMessageError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.OKResponse{OK: true})
}

// Signal is the cheap "anything new?" poll; it carries no conversation
// scope on purpose.
func (h *MessagesHandler) Signal(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHENTICATED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "MESSAGES_SERVICE_UNAVAILABLE", "messages service is unavailable")
		return
	}

	count, err := h.service.Signal(r.Context(), identity.UserID)
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to read signal")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.SignalResponse{NewMessages: count})
}

func (h *MessagesHandler) messageScope(w http.ResponseWriter, r *http.Request) (authsvc.Identity, int64, bool) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHENTICATED", "authentication required")
		return authsvc.Identity{}, 0, false
	}
	if h.service == nil {
		writeInternal(w, "MESSAGES_SERVICE_UNAVAILABLE", "messages service is unavailable")
		return authsvc.Identity{}, 0, false
	}

	conversationID, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid conversation id")
		return authsvc.Identity{}, 0, false
	}

	return identity, conversationID, true
}

func handleMessageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, messagessvc.ErrEmptyMessage):
		writeBadRequest(w, "EMPTY_MESSAGE", "message text is empty")
	case errors.Is(err, messagessvc.ErrConversationNotFound):
		writeNotFound(w, "NOT_FOUND", "conversation not found")
	case errors.Is(err, messagessvc.ErrNotParticipant):
		writeForbidden(w, "NOT_AUTHORIZED", "not a participant of this conversation")
	case errors.Is(err, messagessvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "invalid message request")
	default:
		writeInternal(w, "INTERNAL_ERROR", "failed to process message request")
	}
}

func toMessageResponse(rec pgrepo.MessageRecord) dto.MessageResponse {
	return dto.MessageResponse{
		ID:             rec.ID,
		ConversationID: rec.ConversationID,
		SenderID:       rec.SenderID,
		ClientRef:      rec.ClientRef.String(),
		Text:           rec.Text,
		DeliveryState:  rec.DeliveryState,
		CreatedAt:      rec.CreatedAt,
	}
}

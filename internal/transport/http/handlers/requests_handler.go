package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ebuka-odih/nyem-backend/internal/domain/enums"
	pgrepo "github.com/ebuka-odih/nyem-backend/internal/repo/postgres"
	authsvc "github.com/ebuka-odih/nyem-backend/internal/services/auth"
	lifecyclesvc "github.com/ebuka-odih/nyem-backend/internal/services/lifecycle"
	requestssvc "github.com/ebuka-odih/nyem-backend/internal/services/requests"
	"github.com/ebuka-odih/nyem-backend/internal/transport/http/dto"
	httperrors "github.com/ebuka-odih/nyem-backend/internal/transport/http/errors"
)

type RequestsHandler struct {
	service   *requestssvc.Service
	lifecycle *lifecyclesvc.Service
}

func NewRequestsHandler(service *requestssvc.Service, lifecycle *lifecyclesvc.Service) *RequestsHandler {
	return &RequestsHandler{service: service, lifecycle: lifecycle}
}

func (h *RequestsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHENTICATED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "REQUESTS_SERVICE_UNAVAILABLE", "requests service is unavailable")
		return
	}

	var req dto.SubmitRequestRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	rec, err := h.service.Submit(r.Context(), identity.UserID, req.ListingID, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, requestssvc.ErrDuplicatePending):
			// The existing pending request rides along with the conflict.
			httperrors.Write(w, http.StatusConflict, struct {
				httperrors.APIError
				Existing dto.RequestResponse `json:"existing"`
			}{
				APIError: httperrors.APIError{Code: "DUPLICATE_PENDING", Message: "a pending request already exists for this listing"},
				Existing: toRequestResponse(rec),
			})
		case errors.Is(err, requestssvc.ErrSelfRequest):
			writeBadRequest(w, "VALIDATION_ERROR", "cannot request your own listing")
		case errors.Is(err, requestssvc.ErrListingNotFound):
			writeNotFound(w, "NOT_FOUND", "listing not found")
		case errors.Is(err, requestssvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid submit request")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to submit request")
		}
		return
	}

	httperrors.Write(w, http.StatusCreated, toRequestResponse(rec))
}

func (h *RequestsHandler) Pending(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, func(req *http.Request, userID int64, limit int) ([]pgrepo.PendingRequestItem, error) {
		return h.service.ListPending(req.Context(), userID, limit)
	})
}

func (h *RequestsHandler) Sent(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, func(req *http.Request, userID int64, limit int) ([]pgrepo.PendingRequestItem, error) {
		return h.service.ListSent(req.Context(), userID, limit)
	})
}

func (h *RequestsHandler) list(w http.ResponseWriter, r *http.Request, load func(*http.Request, int64, int) ([]pgrepo.PendingRequestItem, error)) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHENTICATED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "REQUESTS_SERVICE_UNAVAILABLE", "requests service is unavailable")
		return
	}

	items, err := load(r, identity.UserID, parseIntOrDefault(r.URL.Query().Get("limit"), 100))
	if err != nil {
		if errors.Is(err, requestssvc.ErrValidation) {
			writeBadRequest(w, "VALIDATION_ERROR", "invalid list request")
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "failed to load requests")
		return
	}

	responseItems := make([]dto.RequestItemResponse, 0, len(items))
	for _, item := range items {
		responseItems = append(responseItems, dto.RequestItemResponse{
			RequestResponse: toRequestResponse(item.RequestRecord),
			SenderName:      item.SenderName,
			SenderAvatarKey: item.SenderAvatarKey,
			ListingTitle:    item.ListingTitle,
			ListingPrice:    item.ListingPrice,
		})
	}

	httperrors.Write(w, http.StatusOK, dto.RequestsResponse{Items: responseItems})
}

// Resolve flips a pending request. Accepts with a session scope go through
// the lifecycle controller so the new conversation comes back already in
// focus.
func (h *RequestsHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHENTICATED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "REQUESTS_SERVICE_UNAVAILABLE", "requests service is unavailable")
		return
	}

	requestID, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request id")
		return
	}

	var req dto.ResolveRequestRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	decision := enums.Decision(req.Decision)
	if decision != enums.DecisionAccept && decision != enums.DecisionDecline {
		writeBadRequest(w, "VALIDATION_ERROR", "decision must be accept or decline")
		return
	}

	if decision == enums.DecisionAccept && req.SessionScope != "" && h.lifecycle != nil {
		state, err := h.lifecycle.AcceptAndOpen(r.Context(), requestID, identity.UserID, req.SessionScope, req.Reply)
		if err != nil {
			handleResolveError(w, err)
			return
		}

		response := dto.ResolveRequestResponse{
			Conversation: toConversationResponsePtr(&state.Conversation),
		}
		if state.Request != nil {
			response.Request = toRequestResponse(*state.Request)
		}
		if state.FirstMessage != nil {
			msg := toMessageResponse(*state.FirstMessage)
			response.FirstMessage = &msg
		}
		if state.Escrow != nil {
			escrow := toEscrowResponse(*state.Escrow)
			response.Escrow = &escrow
		}
		httperrors.Write(w, http.StatusOK, response)
		return
	}

	res, err := h.service.Resolve(r.Context(), requestID, identity.UserID, decision, req.Reply)
	if err != nil {
		handleResolveError(w, err)
		return
	}

	response := dto.ResolveRequestResponse{
		Request:      toRequestResponse(res.Request),
		Conversation: toConversationResponsePtr(res.Conversation),
		Replayed:     res.Replayed,
	}
	if res.FirstMessage != nil {
		msg := toMessageResponse(*res.FirstMessage)
		response.FirstMessage = &msg
	}

	httperrors.Write(w, http.StatusOK, response)
}

func handleResolveError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, requestssvc.ErrRequestNotFound):
		writeNotFound(w, "NOT_FOUND", "request not found")
	case errors.Is(err, requestssvc.ErrNotAuthorized):
		writeForbidden(w, "NOT_AUTHORIZED", "only the listing owner can resolve this request")
	case errors.Is(err, requestssvc.ErrAlreadyResolved):
		httperrors.Write(w, http.StatusConflict, httperrors.APIError{Code: "ALREADY_RESOLVED", Message: "request was already resolved"})
	case errors.Is(err, requestssvc.ErrValidation), errors.Is(err, lifecyclesvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "invalid resolve request")
	default:
		writeInternal(w, "INTERNAL_ERROR", "failed to resolve request")
	}
}

func toRequestResponse(rec pgrepo.RequestRecord) dto.RequestResponse {
	return dto.RequestResponse{
		ID:          rec.ID,
		FromUserID:  rec.FromUserID,
		ToUserID:    rec.ToUserID,
		ListingID:   rec.ListingID,
		MessageText: rec.MessageText,
		Status:      rec.Status,
		CreatedAt:   rec.CreatedAt,
		ResolvedAt:  rec.ResolvedAt,
	}
}

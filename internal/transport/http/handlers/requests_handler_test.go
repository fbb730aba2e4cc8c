package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	pgrepo "github.com/ebuka-odih/nyem-backend/internal/repo/postgres"
	requestssvc "github.com/ebuka-odih/nyem-backend/internal/services/requests"
)

func TestSubmitRejectsOwnListing(t *testing.T) {
	h := NewRequestsHandler(newRequestsService(), nil)

	rr := httptest.NewRecorder()
	h.Submit(rr, submitRequest(t, 2, map[string]any{
		"listing_id": 10,
		"message":    "still available?",
	}))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusBadRequest)
	}
	assertErrorCode(t, rr, "VALIDATION_ERROR")
}

func TestSubmitUnknownListingReturnsNotFound(t *testing.T) {
	h := NewRequestsHandler(newRequestsService(), nil)

	rr := httptest.NewRecorder()
	h.Submit(rr, submitRequest(t, 1, map[string]any{
		"listing_id": 404,
		"message":    "still available?",
	}))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusNotFound)
	}
	assertErrorCode(t, rr, "NOT_FOUND")
}

func TestResolveRejectsUnknownDecision(t *testing.T) {
	h := NewRequestsHandler(newRequestsService(), nil)

	body, err := json.Marshal(map[string]any{"decision": "maybe"})
	if err != nil {
		t.Fatalf("marshal request body: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/requests/5/resolve", bytes.NewReader(body))
	req = withIdentityAndParam(req, 2, "5")

	rr := httptest.NewRecorder()
	h.Resolve(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusBadRequest)
	}
	assertErrorCode(t, rr, "VALIDATION_ERROR")
}

func TestSubmitRequiresAuth(t *testing.T) {
	h := NewRequestsHandler(newRequestsService(), nil)

	req := httptest.NewRequest(http.MethodPost, "/requests", bytes.NewReader(nil))
	rr := httptest.NewRecorder()
	h.Submit(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusUnauthorized)
	}
	assertErrorCode(t, rr, "UNAUTHENTICATED")
}

func newRequestsService() *requestssvc.Service {
	return requestssvc.NewService(requestssvc.Dependencies{
		RequestStore: requestStoreStub{},
		Listings:     listingStoreStub{ownerID: 2},
	}, 0)
}

func submitRequest(t *testing.T, userID int64, body map[string]any) *http.Request {
	t.Helper()

	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request body: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/requests", bytes.NewReader(raw))
	return withIdentityAndParam(req, userID, "")
}

// listingStoreStub serves listing 10 and reports every other id as missing.
type listingStoreStub struct {
	ownerID int64
}

func (s listingStoreStub) GetByID(_ context.Context, listingID int64) (pgrepo.ListingRecord, error) {
	if listingID != 10 {
		return pgrepo.ListingRecord{}, pgrepo.ErrListingNotFound
	}
	return pgrepo.ListingRecord{
		ID:          listingID,
		OwnerUserID: s.ownerID,
		Title:       "Road bike",
		PriceMinor:  250_000,
		Currency:    "NGN",
	}, nil
}

type requestStoreStub struct{}

func (requestStoreStub) Create(context.Context, pgx.Tx, int64, int64, int64, string, time.Time) (pgrepo.RequestRecord, error) {
	return pgrepo.RequestRecord{}, nil
}

func (requestStoreStub) GetForUpdate(context.Context, pgx.Tx, int64) (pgrepo.RequestRecord, error) {
	return pgrepo.RequestRecord{}, pgrepo.ErrRequestNotFound
}

func (requestStoreStub) Resolve(context.Context, pgx.Tx, int64, string, time.Time) (bool, error) {
	return false, nil
}

func (requestStoreStub) ListPendingForOwner(context.Context, int64, int) ([]pgrepo.PendingRequestItem, error) {
	return nil, nil
}

func (requestStoreStub) ListSentByUser(context.Context, int64, int) ([]pgrepo.PendingRequestItem, error) {
	return nil, nil
}

package apiapp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	redrepo "github.com/ebuka-odih/nyem-backend/internal/repo/redis"
	authsvc "github.com/ebuka-odih/nyem-backend/internal/services/auth"
)

func TestAuthMiddlewareRejectsMissingBearer(t *testing.T) {
	mw := AuthMiddleware(newAuthService(t), nil)

	req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
	rr := httptest.NewRecorder()

	mw(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatalf("handler must not be called without a token")
	})).ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestAuthMiddlewareRejectsGarbageToken(t *testing.T) {
	mw := AuthMiddleware(newAuthService(t), nil)

	req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rr := httptest.NewRecorder()

	mw(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatalf("handler must not be called with a garbage token")
	})).ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestAuthMiddlewareInjectsIdentity(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redrepo.NewClient(mr.Addr(), "", 0)
	sessions := redrepo.NewSessionRepo(client)

	manager := authsvc.NewJWTManager("test-secret", 15*time.Minute)
	svc := authsvc.NewService(manager, sessions, nil, 24*time.Hour)

	expiresAt := time.Now().Add(time.Hour).UTC()
	if err := sessions.Create(context.Background(), authsvc.SessionRecord{
		SID:       "sid-42",
		UserID:    42,
		Role:      "user",
		ExpiresAt: expiresAt,
	}, "refresh-42"); err != nil {
		t.Fatalf("create session: %v", err)
	}

	token, _, err := manager.GenerateAccessToken(42, "sid-42", "user")
	if err != nil {
		t.Fatalf("generate access token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()

	var got authsvc.Identity
	AuthMiddleware(svc, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := authsvc.IdentityFromContext(r.Context())
		if !ok {
			t.Fatalf("identity missing in context")
		}
		got = identity
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusNoContent)
	}
	if got.UserID != 42 || got.SID != "sid-42" || got.Role != "user" {
		t.Fatalf("unexpected identity: %+v", got)
	}
}

func TestExtractBearerToken(t *testing.T) {
	if _, ok := extractBearerToken(""); ok {
		t.Fatalf("empty header must not yield a token")
	}
	if _, ok := extractBearerToken("Token abc"); ok {
		t.Fatalf("non-bearer scheme must not yield a token")
	}
	if token, ok := extractBearerToken("bearer abc"); !ok || token != "abc" {
		t.Fatalf("scheme must be case insensitive, got %q ok=%v", token, ok)
	}
}

func newAuthService(t *testing.T) *authsvc.Service {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redrepo.NewClient(mr.Addr(), "", 0)
	return authsvc.NewService(authsvc.NewJWTManager("test-secret", 15*time.Minute), redrepo.NewSessionRepo(client), nil, 24*time.Hour)
}

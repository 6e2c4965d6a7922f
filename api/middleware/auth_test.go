package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/dailycart-backend/pkg/auth"
	"github.com/angelmondragon/dailycart-backend/pkg/config"
	"github.com/angelmondragon/dailycart-backend/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "dailycart-identity", ExpirationMinutes: 60}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthRejectsMissingToken(t *testing.T) {
	handler := Auth(testJWTConfig(), nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	cfg := testJWTConfig()
	handler := Auth(cfg, nil)(okHandler())

	other := cfg
	other.Secret = "another-secret"
	forged, err := auth.MintAccessToken(other, time.Now(), uuid.New(), enums.RoleAdmin)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	for _, header := range []string{"Bearer invalid", "Bearer ", "Bearer " + forged} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", header)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401 got %d", header, resp.Code)
		}
	}
}

func TestAuthRejectsExpiredToken(t *testing.T) {
	cfg := testJWTConfig()
	token, err := auth.MintAccessToken(cfg, time.Now().Add(-2*time.Hour), uuid.New(), enums.RoleCustomer)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	Auth(cfg, nil)(okHandler()).ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token got %d", resp.Code)
	}
}

func TestAuthAllowsValidToken(t *testing.T) {
	cfg := testJWTConfig()
	userID := uuid.New()
	token, err := auth.MintAccessToken(cfg, time.Now(), userID, enums.RoleCustomer)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	var captured auth.Actor
	handler := Auth(cfg, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		if !ok {
			t.Fatalf("expected actor in context")
		}
		captured = actor
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if captured.UserID != userID || captured.Role != enums.RoleCustomer {
		t.Fatalf("unexpected actor %+v", captured)
	}
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole(nil, enums.RoleStaff, enums.RoleAdmin)(okHandler())

	cases := []struct {
		name   string
		actor  *auth.Actor
		status int
	}{
		{name: "anonymous", status: http.StatusUnauthorized},
		{name: "customer", actor: &auth.Actor{UserID: uuid.New(), Role: enums.RoleCustomer}, status: http.StatusForbidden},
		{name: "rider", actor: &auth.Actor{UserID: uuid.New(), Role: enums.RoleDeliveryPartner}, status: http.StatusForbidden},
		{name: "staff", actor: &auth.Actor{UserID: uuid.New(), Role: enums.RoleStaff}, status: http.StatusOK},
		{name: "admin", actor: &auth.Actor{UserID: uuid.New(), Role: enums.RoleAdmin}, status: http.StatusOK},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.actor != nil {
			req = req.WithContext(WithActor(req.Context(), *tc.actor))
		}
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != tc.status {
			t.Fatalf("%s: expected %d got %d", tc.name, tc.status, resp.Code)
		}
	}
}

package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/dailycart-backend/pkg/auth"
	"github.com/angelmondragon/dailycart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/dailycart-backend/pkg/errors"
)

type fakeStore struct {
	data map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string)}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	str, _ := value.(string)
	f.data[key] = str
	return true, nil
}

func (f *fakeStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	f.data[key], _ = value.(string)
	return nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

const checkoutPattern = "/api/v1/checkout"

func requestWithPattern(method, url, pattern string, body io.Reader, userID uuid.UUID) *http.Request {
	req := httptest.NewRequest(method, url, body)
	rc := chi.NewRouteContext()
	rc.RoutePatterns = []string{pattern}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rc)
	ctx = WithActor(ctx, auth.Actor{UserID: userID, Role: enums.RoleCustomer})
	return req.WithContext(ctx)
}

func TestRouteTTLSelection(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		pattern string
		want    time.Duration
		ok      bool
	}{
		{"checkout", http.MethodPost, "/api/v1/checkout", criticalIdempotencyTTL, true},
		{"order cancel", http.MethodPost, "/api/v1/orders/{orderId}/cancel", criticalIdempotencyTTL, true},
		{"deliver", http.MethodPost, "/api/v1/delivery/orders/{orderId}/deliver", criticalIdempotencyTTL, true},
		{"admin status", http.MethodPost, "/api/v1/admin/orders/{orderId}/status", defaultIdempotencyTTL, true},
		{"admin restock", http.MethodPost, "/api/v1/admin/inventory/{variantId}/restock", defaultIdempotencyTTL, true},
		{"cart add", http.MethodPost, "/api/v1/cart/items", 0, false},
		{"order read", http.MethodGet, "/api/v1/orders/{orderId}", 0, false},
	}

	for _, tt := range tests {
		ttl, ok := routeTTL(tt.method, tt.pattern)
		if ok != tt.ok {
			t.Fatalf("%s: expected ok=%v got %v", tt.name, tt.ok, ok)
		}
		if ok && ttl != tt.want {
			t.Fatalf("%s: expected ttl=%v got %v", tt.name, tt.want, ttl)
		}
	}
}

func TestIdempotencyMiddlewareRequiresHeader(t *testing.T) {
	mw := Idempotency(newFakeStore(), nil)
	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusCreated)
	})

	req := requestWithPattern(http.MethodPost, checkoutPattern, checkoutPattern, strings.NewReader(`{"payment_method":"upi"}`), uuid.New())
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if handlerCalled {
		t.Fatalf("handler should not run without idempotency key")
	}
}

func TestIdempotencyMiddlewareReplaysStoredResponse(t *testing.T) {
	mw := Idempotency(newFakeStore(), nil)
	userID := uuid.New()
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"payment_method":"upi"}` {
			t.Fatalf("handler saw unexpected body %s", body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"order_number":"DC1"}}`))
	})

	for i := 0; i < 2; i++ {
		req := requestWithPattern(http.MethodPost, checkoutPattern, checkoutPattern, strings.NewReader(`{"payment_method":"upi"}`), userID)
		req.Header.Set("Idempotency-Key", "abc")
		rec := httptest.NewRecorder()
		mw(handler).ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("attempt %d: expected 201 got %d", i, rec.Code)
		}
		if rec.Header().Get("Content-Type") != "application/json" {
			t.Fatalf("attempt %d: expected content-type header preserved", i)
		}
		if strings.TrimSpace(rec.Body.String()) != `{"data":{"order_number":"DC1"}}` {
			t.Fatalf("attempt %d: unexpected body %s", i, rec.Body.String())
		}
		if i == 1 && rec.Header().Get("Idempotent-Replay") != "true" {
			t.Fatalf("expected replay marker on second attempt")
		}
	}
	if calls != 1 {
		t.Fatalf("handler executed %d times, expected 1", calls)
	}
}

func TestIdempotencyKeysAreScopedPerUser(t *testing.T) {
	mw := Idempotency(newFakeStore(), nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	})

	for _, user := range []uuid.UUID{uuid.New(), uuid.New()} {
		req := requestWithPattern(http.MethodPost, checkoutPattern, checkoutPattern, strings.NewReader(`{}`), user)
		req.Header.Set("Idempotency-Key", "same-key")
		mw(handler).ServeHTTP(httptest.NewRecorder(), req)
	}
	if calls != 2 {
		t.Fatalf("expected each user to execute once, got %d calls", calls)
	}
}

func TestIdempotencyMiddlewareDetectsBodyChange(t *testing.T) {
	mw := Idempotency(newFakeStore(), nil)
	userID := uuid.New()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := requestWithPattern(http.MethodPost, checkoutPattern, checkoutPattern, strings.NewReader(`{"payment_method":"upi"}`), userID)
	req.Header.Set("Idempotency-Key", "xyz")
	mw(handler).ServeHTTP(httptest.NewRecorder(), req)

	replay := requestWithPattern(http.MethodPost, checkoutPattern, checkoutPattern, strings.NewReader(`{"payment_method":"cod"}`), userID)
	replay.Header.Set("Idempotency-Key", "xyz")
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, replay)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse error response: %v", err)
	}
	if payload.Error.Code != string(pkgerrors.CodeIdempotency) {
		t.Fatalf("expected error code %s got %s", pkgerrors.CodeIdempotency, payload.Error.Code)
	}
}

func TestIdempotencyDoesNotStoreServerErrors(t *testing.T) {
	mw := Idempotency(newFakeStore(), nil)
	userID := uuid.New()
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	})

	for i := 0; i < 2; i++ {
		req := requestWithPattern(http.MethodPost, checkoutPattern, checkoutPattern, strings.NewReader(`{}`), userID)
		req.Header.Set("Idempotency-Key", "retry-me")
		mw(handler).ServeHTTP(httptest.NewRecorder(), req)
	}
	if calls != 2 {
		t.Fatalf("expected retry after 503 to reach handler, got %d calls", calls)
	}
}

func TestIdempotencyRejectsConcurrentDuplicate(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	userID := uuid.New()
	body := `{"payment_method":"cash_on_delivery"}`

	var inner *httptest.ResponseRecorder
	var outerCalls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		outerCalls++
		if outerCalls == 1 {
			dup := requestWithPattern(http.MethodPost, checkoutPattern, checkoutPattern, strings.NewReader(body), userID)
			dup.Header.Set("Idempotency-Key", "double-tap")
			inner = httptest.NewRecorder()
			mw(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { outerCalls++ })).ServeHTTP(inner, dup)
		}
		w.WriteHeader(http.StatusCreated)
	})

	req := requestWithPattern(http.MethodPost, checkoutPattern, checkoutPattern, strings.NewReader(body), userID)
	req.Header.Set("Idempotency-Key", "double-tap")
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected first request to complete, got %d", resp.Code)
	}
	if inner == nil || inner.Code != http.StatusConflict {
		t.Fatalf("expected duplicate to conflict while first is in flight")
	}
	if !strings.Contains(inner.Body.String(), "in progress") {
		t.Fatalf("expected in-progress message, got %s", inner.Body.String())
	}
	if outerCalls != 1 {
		t.Fatalf("duplicate must not reach the handler, got %d calls", outerCalls)
	}

	var stored storedResponse
	for _, raw := range store.data {
		if err := json.Unmarshal([]byte(raw), &stored); err != nil {
			t.Fatalf("decode stored record: %v", err)
		}
	}
	if stored.InFlight || stored.Status != http.StatusCreated {
		t.Fatalf("expected settled record after completion, got %+v", stored)
	}
}

func TestServerErrorReleasesReservation(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	req := requestWithPattern(http.MethodPost, checkoutPattern, checkoutPattern, strings.NewReader(`{}`), uuid.New())
	req.Header.Set("Idempotency-Key", "boom")
	mw(handler).ServeHTTP(httptest.NewRecorder(), req)

	if len(store.data) != 0 {
		t.Fatalf("expected key released after 5xx, store=%v", store.data)
	}
}

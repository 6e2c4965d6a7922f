package responses

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/dailycart-backend/pkg/errors"
)

func TestWriteSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccessStatus(w, http.StatusCreated, map[string]string{"order_number": "DC20260309ABCDEF12"})

	if got := w.Code; got != http.StatusCreated {
		t.Fatalf("expected status 201 but got %d", got)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}

	var body SuccessEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode success envelope: %v", err)
	}
	if body.Data.(map[string]any)["order_number"] != "DC20260309ABCDEF12" {
		t.Fatalf("unexpected payload %v", body.Data)
	}
}

func TestWriteErrorMapsTypedErrors(t *testing.T) {
	variantID := uuid.New()
	tests := []struct {
		name        string
		err         error
		status      int
		message     string
		wantDetails bool
	}{
		{
			name:        "validation",
			err:         pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").WithDetails(map[string]string{"field": "quantity"}),
			status:      http.StatusBadRequest,
			message:     "quantity must be positive",
			wantDetails: true,
		},
		{
			name:        "insufficient stock",
			err:         pkgerrors.New(pkgerrors.CodeInsufficientStock, "not enough stock").WithDetails(map[string]any{"variant_id": variantID, "available": 1}),
			status:      http.StatusConflict,
			message:     "not enough stock",
			wantDetails: true,
		},
		{
			name:        "coupon ineligible wrapped",
			err:         fmt.Errorf("checkout: %w", pkgerrors.New(pkgerrors.CodeCouponIneligible, "coupon expired").WithDetails(map[string]string{"reason": "expired"})),
			status:      http.StatusUnprocessableEntity,
			message:     "coupon expired",
			wantDetails: true,
		},
		{
			name:    "rate limit hides details",
			err:     pkgerrors.New(pkgerrors.CodeRateLimit, "slow down").WithDetails(map[string]int{"limit": 10}),
			status:  http.StatusTooManyRequests,
			message: "slow down",
		},
		{
			name:    "dependency uses public message",
			err:     pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("dial tcp"), "redis unavailable"),
			status:  http.StatusServiceUnavailable,
			message: "dependency unavailable",
		},
	}

	for _, tc := range tests {
		w := httptest.NewRecorder()
		WriteError(context.Background(), nil, w, tc.err)

		if w.Code != tc.status {
			t.Fatalf("%s: expected status %d but got %d", tc.name, tc.status, w.Code)
		}
		var body ErrorEnvelope
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("%s: decode error envelope: %v", tc.name, err)
		}
		if body.Error.Message != tc.message {
			t.Fatalf("%s: expected message %q got %q", tc.name, tc.message, body.Error.Message)
		}
		if (body.Error.Details != nil) != tc.wantDetails {
			t.Fatalf("%s: details presence = %v, want %v", tc.name, body.Error.Details != nil, tc.wantDetails)
		}
	}
}

func TestWriteErrorDefaultsToInternalForUntypedErrors(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(context.Background(), nil, w, errors.New("pq: connection reset"))

	if got := w.Code; got != http.StatusInternalServerError {
		t.Fatalf("expected status 500 but got %d", got)
	}

	var body ErrorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error envelope: %v", err)
	}
	if body.Error.Code != string(pkgerrors.CodeInternal) {
		t.Fatalf("unexpected code %s", body.Error.Code)
	}
	if body.Error.Message != "internal server error" {
		t.Fatalf("internal message leaked: %q", body.Error.Message)
	}
	if body.Error.Details != nil {
		t.Fatalf("details should be omitted for internal errors")
	}
}

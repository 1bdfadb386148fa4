package wallet_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/ficore/wallet-api/internal/domain/wallet"
	"github.com/ficore/wallet-api/internal/middleware"
)

// No database: every request below must be rejected by input validation
// before the handler touches storage.
func newBareHandler() *wallet.Handler {
	return wallet.NewHandler(wallet.NewService(nil, nil, nil, "FICORE"))
}

func authedRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	ctx := context.WithValue(req.Context(), middleware.UserIDKey, uuid.New())
	return req.WithContext(ctx)
}

func TestDebitRejectsInvalidInput(t *testing.T) {
	h := newBareHandler()

	tests := []struct {
		name string
		body string
	}{
		{"missing pin", `{"amount": 4000, "reference": "order-1"}`},
		{"zero amount", `{"amount": 0, "reference": "order-1", "pin": "8207"}`},
		{"missing reference", `{"amount": 4000, "pin": "8207"}`},
		{"non-numeric pin", `{"amount": 4000, "reference": "order-1", "pin": "82a7"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.Debit(w, authedRequest(http.MethodPost, "/debit", tt.body))
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestSetupPINRejectsMalformedPIN(t *testing.T) {
	h := newBareHandler()

	for _, pin := range []string{"", "12", "12345", "ab12"} {
		w := httptest.NewRecorder()
		h.SetupPIN(w, authedRequest(http.MethodPost, "/pin", `{"pin": "`+pin+`"}`))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("pin %q: expected 400, got %d", pin, w.Code)
		}
	}
}

func TestSetupPINRejectsWeakPIN(t *testing.T) {
	h := newBareHandler()

	w := httptest.NewRecorder()
	h.SetupPIN(w, authedRequest(http.MethodPost, "/pin", `{"pin": "1111"}`))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for weak pin, got %d", w.Code)
	}
}

func TestCreditRejectsInvalidInput(t *testing.T) {
	h := newBareHandler()

	tests := []struct {
		name string
		body string
	}{
		{"bad user id", `{"user_id": "not-a-uuid", "amount": 5000, "reference": "adj-1"}`},
		{"zero amount", `{"user_id": "` + uuid.NewString() + `", "amount": 0, "reference": "adj-1"}`},
		{"missing reference", `{"user_id": "` + uuid.NewString() + `", "amount": 5000}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.Credit(w, authedRequest(http.MethodPost, "/credit", tt.body))
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

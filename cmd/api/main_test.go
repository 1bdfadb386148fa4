package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTokenFromQuery_PromotesQueryTokenToBearerHeader(t *testing.T) {
	var gotAuth string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	})

	t.Run("query token becomes bearer header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/stream?token=abc123", nil)
		rr := httptest.NewRecorder()
		tokenFromQuery(next).ServeHTTP(rr, req)
		if gotAuth != "Bearer abc123" {
			t.Fatalf("expected Authorization 'Bearer abc123', got %q", gotAuth)
		}
	})

	t.Run("existing header wins over query", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/stream?token=fromquery", nil)
		req.Header.Set("Authorization", "Bearer fromheader")
		rr := httptest.NewRecorder()
		tokenFromQuery(next).ServeHTTP(rr, req)
		if gotAuth != "Bearer fromheader" {
			t.Fatalf("expected header token to win, got %q", gotAuth)
		}
	})

	t.Run("no token leaves header empty", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/stream", nil)
		rr := httptest.NewRecorder()
		tokenFromQuery(next).ServeHTTP(rr, req)
		if gotAuth != "" {
			t.Fatalf("expected empty Authorization, got %q", gotAuth)
		}
	})
}

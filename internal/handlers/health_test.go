package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestHealthReportsPersistence(t *testing.T) {
	tests := []struct {
		name  string
		store Pinger
		want  string
	}{
		{name: "database-free", store: nil, want: PersistenceDisabled},
		{name: "reachable", store: stubPinger{}, want: PersistenceEnabled},
		{name: "unreachable", store: stubPinger{err: errors.New("refused")}, want: PersistenceUnavailable},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			Health(tc.store)(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			if w.Code != http.StatusOK {
				t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
			}

			var body HealthResponse
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decoding response body: %v", err)
			}
			if body.Status != "healthy" {
				t.Fatalf("expected status %q, got %q", "healthy", body.Status)
			}
			if body.Persistence != tc.want {
				t.Fatalf("expected persistence %q, got %q", tc.want, body.Persistence)
			}
		})
	}
}

func TestRootDescribesVariant(t *testing.T) {
	w := httptest.NewRecorder()
	Root("1.2.3", false)(w, httptest.NewRequest(http.MethodGet, "/", nil))

	var body RootResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response body: %v", err)
	}

	if body.Message != "Calculator API" {
		t.Fatalf("expected message %q, got %q", "Calculator API", body.Message)
	}
	if body.Version != "1.2.3" {
		t.Fatalf("expected version %q, got %q", "1.2.3", body.Version)
	}
	if body.Persistence != PersistenceDisabled || body.Note == "" {
		t.Fatalf("expected database-free metadata, got %+v", body)
	}
}

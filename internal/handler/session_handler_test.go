package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"lisst-auth/internal/backend"
	"lisst-auth/internal/config"
	"lisst-auth/internal/session"
	"lisst-auth/internal/storage"
)

// fixture wires a handler against an httptest finance backend.
func fixture(t *testing.T, backendHandler http.Handler) (chi.Router, *session.Store) {
	t.Helper()
	server := httptest.NewServer(backendHandler)
	t.Cleanup(server.Close)

	cfg := &config.Config{
		Backend: config.BackendConfig{
			BaseURL:        server.URL + "/api",
			RequestTimeout: 5 * time.Second,
			DLTTemplateID:  "1407160787155250027",
		},
		Session: config.SessionConfig{
			StorageKey:     "lisst_in_user",
			RefreshTimeout: 2 * time.Second,
		},
	}

	logger := zap.NewNop()
	client := backend.NewClient(cfg, logger)
	sessions := session.New(client, storage.NewMemoryStore(), nil, cfg, logger)
	sessions.Restore(context.Background())

	h := NewSessionHandler(sessions, client, nil, logger)
	router := chi.NewRouter()
	h.RegisterRoutes(router)
	return router, sessions
}

func post(router chi.Router, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)
	return rec
}

func TestSignupRejectsInvalidPhoneLocally(t *testing.T) {
	backendHit := false
	router, _ := fixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		backendHit = true
	}))

	rec := post(router, "/auth/signup", `{"phoneNumber":"5812345678","name":"Asha","email":"a@x.com"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if backendHit {
		t.Fatalf("invalid phone number reached the backend")
	}
}

func TestSignupRequiresProfileFields(t *testing.T) {
	router, _ := fixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := post(router, "/auth/signup", `{"phoneNumber":"9812345678"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestVerifyOTPStartsSession(t *testing.T) {
	router, sessions := fixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/verify-otp":
			w.Write([]byte(`{"success":true,"user":{"phoneNumber":"9812345678","name":"Asha","phoneVerified":true,"isFIconnect":false}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	rec := post(router, "/auth/verify-otp", `{"phoneNumber":"9812345678","otp":"123456"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success {
		t.Fatalf("expected success response")
	}

	record := sessions.Current()
	if record == nil || record.PhoneNumber != "9812345678" {
		t.Fatalf("session not started: %+v", record)
	}
	if sessions.Authenticated() {
		t.Fatalf("verified-but-unlinked session reported authenticated")
	}
}

func TestVerifyOTPSurfacesBackendError(t *testing.T) {
	router, sessions := fixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"Invalid OTP"}`))
	}))

	rec := post(router, "/auth/verify-otp", `{"phoneNumber":"9812345678","otp":"000000"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error != "Invalid OTP" {
		t.Fatalf("error = %q, want backend message verbatim", resp.Error)
	}
	if sessions.Current() != nil {
		t.Fatalf("failed verification started a session")
	}
}

func TestUpdateProfileWithoutSessionIsUnauthorized(t *testing.T) {
	router, _ := fixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/session/profile", strings.NewReader(`{"name":"X"}`))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

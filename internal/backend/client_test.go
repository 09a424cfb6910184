package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"lisst-auth/internal/config"
)

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.Config{
		Backend: config.BackendConfig{
			BaseURL:        server.URL + "/api",
			RequestTimeout: 5 * time.Second,
			DLTTemplateID:  "1407160787155250027",
		},
	}
	return NewClient(cfg, zap.NewNop()), server
}

func TestErrorMessageCollapsing(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
		want    string
		contain bool
	}{
		{
			name: "json error field",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error":"X"}`))
			},
			want: "X",
		},
		{
			name: "plain text body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte("oops"))
			},
			want: "oops",
		},
		{
			name: "empty body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
			},
			want:    "400",
			contain: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, _ := testClient(t, tc.handler)

			err := client.SubmitUserData(context.Background(), "9812345678", nil, true)
			if err == nil {
				t.Fatalf("expected error")
			}
			if tc.contain {
				if !strings.Contains(err.Error(), tc.want) {
					t.Fatalf("error %q does not contain %q", err.Error(), tc.want)
				}
			} else if err.Error() != tc.want {
				t.Fatalf("error = %q, want %q", err.Error(), tc.want)
			}
		})
	}
}

func TestSubmitUserDataWireShape(t *testing.T) {
	var got map[string]interface{}
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/submit-user-data" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(`{"success":true}`))
	}))

	userData := map[string]string{"name": "Asha", "email": "a@x.com"}
	if err := client.SubmitUserData(context.Background(), "9812345678", userData, false); err != nil {
		t.Fatalf("SubmitUserData: %v", err)
	}

	if got["phoneNumber"] != "9812345678" {
		t.Errorf("phoneNumber = %v", got["phoneNumber"])
	}
	if got["isLogin"] != false {
		t.Errorf("isLogin = %v", got["isLogin"])
	}
	if got["DLT_TE_ID"] != "1407160787155250027" {
		t.Errorf("DLT_TE_ID = %v", got["DLT_TE_ID"])
	}
	if data, ok := got["userData"].(map[string]interface{}); !ok || data["name"] != "Asha" {
		t.Errorf("userData = %v", got["userData"])
	}
}

func TestVerifyOTPReturnsUser(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/verify-otp" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"success":true,"user":{"phoneNumber":"9812345678","name":"Asha","phoneVerified":true,"isFIconnect":false}}`))
	}))

	user, err := client.VerifyOTP(context.Background(), "9812345678", "123456")
	if err != nil {
		t.Fatalf("VerifyOTP: %v", err)
	}
	if user.PhoneNumber != "9812345678" || !user.PhoneVerified || user.IsFIconnect {
		t.Fatalf("unexpected record: %+v", user)
	}
}

func TestVerifyOTPMissingUserIsAnError(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true}`))
	}))

	if _, err := client.VerifyOTP(context.Background(), "9812345678", "123456"); err != ErrMissingUser {
		t.Fatalf("expected ErrMissingUser, got %v", err)
	}
}

func TestHealthEndpointStripsAPISuffix(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("health probe hit %s, want /health", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"status":"up"}`))
	}))

	if !client.TestConnection(context.Background()) {
		t.Fatalf("TestConnection = false, want true")
	}
}

func TestTestConnectionSwallowsErrors(t *testing.T) {
	client, server := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	if client.TestConnection(context.Background()) {
		t.Fatalf("TestConnection = true against a failing backend")
	}

	server.Close()
	if client.TestConnection(context.Background()) {
		t.Fatalf("TestConnection = true against a dead backend")
	}
}

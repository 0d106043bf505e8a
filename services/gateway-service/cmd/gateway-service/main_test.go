package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/lexconnect/lexconnect/libs/auth"
)

func signed(t *testing.T, secret string, claims auth.Claims) string {
	t.Helper()
	token, err := auth.SignHS256(claims, secret)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	return token
}

func lawyerClaims() auth.Claims {
	return auth.Claims{
		Role:  auth.RoleLawyer,
		Email: "l1@example.com",
		Name:  "Ada Counsel",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "L1",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestRequireAuthForwardsIdentity(t *testing.T) {
	secret := "test-secret"
	var got http.Header
	h := requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}), auth.NewVerifier(secret, nil))

	req := httptest.NewRequest(http.MethodGet, "http://example.com/api/v1/appointments", nil)
	req.Header.Set("Authorization", "Bearer "+signed(t, secret, lawyerClaims()))
	req.Header.Set(headerRole, "admin")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	if got.Get(headerUserID) != "L1" || got.Get(headerRole) != "lawyer" || got.Get(headerUserEmail) != "l1@example.com" || got.Get(headerUserName) != "Ada Counsel" {
		t.Fatalf("unexpected forwarded identity %v", got)
	}
	if got.Get("Authorization") != "" {
		t.Fatalf("Authorization should not be forwarded")
	}
}

func TestRequireAuthRejects(t *testing.T) {
	h := requireAuth(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), auth.NewVerifier("test-secret", nil))

	for _, header := range []string{"", "Bearer ", "Bearer badtoken", "Basic abc", "Bearer " + signed(t, "other-secret", lawyerClaims())} {
		req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rw := httptest.NewRecorder()
		h.ServeHTTP(rw, req)
		if rw.Code != http.StatusUnauthorized {
			t.Fatalf("%q: expected 401, got %d", header, rw.Code)
		}
	}
}

func TestRoutesProxyToUpstreams(t *testing.T) {
	secret := "test-secret"
	appointments := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Upstream", "appointments")
		w.Header().Set("X-Seen-User", r.Header.Get(headerUserID))
		w.WriteHeader(http.StatusOK)
	}))
	defer appointments.Close()
	directory := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-Upstream", "directory")
		w.WriteHeader(http.StatusOK)
	}))
	defer directory.Close()

	mux := http.NewServeMux()
	registerRoutes(mux, upstreams{Appointments: appointments.URL, Directory: directory.URL}, auth.NewVerifier(secret, nil))
	token := signed(t, secret, lawyerClaims())

	cases := map[string]string{
		"/api/v1/appointments":         "appointments",
		"/api/v1/appointments/summary": "appointments",
		"/api/v1/lawyers/L1":           "directory",
	}
	for path, upstream := range cases {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rw := httptest.NewRecorder()
		mux.ServeHTTP(rw, req)
		if rw.Code != http.StatusOK || rw.Header().Get("X-Upstream") != upstream {
			t.Fatalf("%s: got %d from %q, want %s", path, rw.Code, rw.Header().Get("X-Upstream"), upstream)
		}
		if upstream == "appointments" && rw.Header().Get("X-Seen-User") != "L1" {
			t.Fatalf("%s: upstream saw user %q", path, rw.Header().Get("X-Seen-User"))
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/appointments", nil)
	rw := httptest.NewRecorder()
	mux.ServeHTTP(rw, req)
	if rw.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rw.Code)
	}
}

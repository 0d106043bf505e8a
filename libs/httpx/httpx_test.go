package httpx

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { order = append(order, "h") }),
		mark("a"), nil, mark("b"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if got := strings.Join(order, ","); got != "a,b,h" {
		t.Fatalf("unexpected order %q", got)
	}
}

func TestRequestIDPropagation(t *testing.T) {
	var seen string
	h := WithRequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	rw := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	h.ServeHTTP(rw, req)
	if seen != "abc-123" || rw.Header().Get(RequestIDHeader) != "abc-123" {
		t.Fatalf("expected inbound id to be kept, got ctx=%q header=%q", seen, rw.Header().Get(RequestIDHeader))
	}

	rw = httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || seen != rw.Header().Get(RequestIDHeader) {
		t.Fatalf("expected generated id, got %q", seen)
	}
}

func TestWriteErrorAndDecode(t *testing.T) {
	rw := httptest.NewRecorder()
	WriteError(rw, http.StatusConflict, "conflict", "slot taken")
	if rw.Code != http.StatusConflict || rw.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("unexpected response %d %q", rw.Code, rw.Header().Get("Content-Type"))
	}
	var body ErrorBody
	if err := json.Unmarshal(rw.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "conflict" || body.Message != "slot taken" {
		t.Fatalf("unexpected body %+v", body)
	}

	var dst struct {
		Notes string `json:"notes"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"notes":"x","bogus":1}`))
	if err := DecodeJSON(req, &dst); err == nil {
		t.Fatal("expected unknown field to be rejected")
	}
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	if err := DecodeJSON(req, &dst); err == nil {
		t.Fatal("expected empty body to be rejected")
	}
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"notes":"ok"}`))
	if err := DecodeJSON(req, &dst); err != nil || dst.Notes != "ok" {
		t.Fatalf("decode failed: %v %+v", err, dst)
	}
}

func TestRateLimiterFixedWindow(t *testing.T) {
	now := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }
	h := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }))

	call := func(user string) *httptest.ResponseRecorder {
		rw := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-User-Id", user)
		h.ServeHTTP(rw, req)
		return rw
	}

	for i := 0; i < 2; i++ {
		if rw := call("u1"); rw.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rw.Code)
		}
	}
	rw := call("u1")
	if rw.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rw.Code)
	}
	if rw.Header().Get("Retry-After") != "60" {
		t.Fatalf("unexpected Retry-After %q", rw.Header().Get("Retry-After"))
	}
	if rw := call("u2"); rw.Code != http.StatusOK {
		t.Fatalf("other caller should have its own bucket, got %d", rw.Code)
	}

	now = now.Add(61 * time.Second)
	if rw := call("u1"); rw.Code != http.StatusOK {
		t.Fatalf("expected window reset, got %d", rw.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	mw := WithCORS(CORSPolicy{
		AllowedOrigins: []string{"https://app.example.com"},
		AllowedMethods: []string{"GET", "PATCH"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         10 * time.Minute,
	})
	called := false
	h := mw(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/appointments", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "PATCH")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusNoContent || called {
		t.Fatalf("expected preflight short-circuit, got %d called=%v", rw.Code, called)
	}
	if rw.Header().Get("Access-Control-Allow-Methods") != "GET, PATCH" || rw.Header().Get("Access-Control-Max-Age") != "600" {
		t.Fatalf("unexpected headers %v", rw.Header())
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rw = httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Header().Get("Access-Control-Allow-Origin") != "" || !called {
		t.Fatal("unlisted origin must pass through without CORS headers")
	}

	if WithCORS(CORSPolicy{}) != nil {
		t.Fatal("empty policy should disable the middleware")
	}
}

func TestRecover(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := WithRecover(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/", nil))
	if rw.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rw.Code)
	}
}

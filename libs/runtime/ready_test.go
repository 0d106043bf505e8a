package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func readyz(t *testing.T, checks ...ReadyCheck) (int, readiness) {
	t.Helper()
	rw := httptest.NewRecorder()
	NewBaseMuxWithReady(checks...).ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	var body readiness
	if err := json.Unmarshal(rw.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %q: %v", rw.Body.String(), err)
	}
	return rw.Code, body
}

func TestReadyz(t *testing.T) {
	ok := ReadyCheck{Name: "db", Check: func(context.Context) error { return nil }}
	down := ReadyCheck{Name: "kafka", Check: func(context.Context) error { return errors.New("dial failed") }}

	code, body := readyz(t, ok)
	if code != http.StatusOK || body.Status != "ready" {
		t.Fatalf("expected ready, got %d %+v", code, body)
	}

	code, body = readyz(t, ok, ReadyCheck{Name: down.Name, Check: down.Check, Optional: true})
	if code != http.StatusOK || body.Status != "degraded" {
		t.Fatalf("optional failure should degrade, got %d %+v", code, body)
	}

	code, body = readyz(t, ok, down)
	if code != http.StatusServiceUnavailable || body.Status != "unavailable" {
		t.Fatalf("expected 503 unavailable, got %d %+v", code, body)
	}
	if len(body.Checks) != 2 || body.Checks[1].Name != "kafka" || body.Checks[1].Error != "dial failed" {
		t.Fatalf("unexpected checks %+v", body.Checks)
	}
}

package runtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

const checkTimeout = 2 * time.Second

// ReadyCheck is a named dependency check for /readyz.
// Optional checks are reported but never fail readiness.
type ReadyCheck struct {
	Name     string
	Check    func(context.Context) error
	Optional bool
}

type checkResult struct {
	Name     string `json:"name"`
	OK       bool   `json:"ok"`
	Optional bool   `json:"optional,omitempty"`
	Error    string `json:"error,omitempty"`
}

type readiness struct {
	Status string        `json:"status"`
	Checks []checkResult `json:"checks,omitempty"`
}

// NewBaseMuxWithReady returns a mux serving /healthz and a JSON /readyz. The
// readiness status is "ready", "degraded" when only optional checks fail, or
// "unavailable" with a 503.
func NewBaseMuxWithReady(checks ...ReadyCheck) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		body := runChecks(r.Context(), checks)
		code := http.StatusOK
		if body.Status == "unavailable" {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(body)
	})
	return mux
}

func runChecks(ctx context.Context, checks []ReadyCheck) readiness {
	out := readiness{Status: "ready"}
	for _, check := range checks {
		if check.Check == nil {
			continue
		}
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := check.Check(checkCtx)
		cancel()

		res := checkResult{Name: check.Name, OK: err == nil, Optional: check.Optional}
		if res.Name == "" {
			res.Name = "dependency"
		}
		if err != nil {
			res.Error = err.Error()
			switch {
			case !check.Optional:
				out.Status = "unavailable"
			case out.Status == "ready":
				out.Status = "degraded"
			}
		}
		out.Checks = append(out.Checks, res)
	}
	return out
}

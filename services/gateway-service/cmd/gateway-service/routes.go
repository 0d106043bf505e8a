package main

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/lexconnect/lexconnect/libs/auth"
	"github.com/lexconnect/lexconnect/libs/httpx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Identity headers trusted by the services behind the gateway.
const (
	headerUserID    = "X-User-Id"
	headerRole      = "X-Role"
	headerUserEmail = "X-User-Email"
	headerUserName  = "X-User-Name"
)

var identityHeaders = []string{headerUserID, headerRole, headerUserEmail, headerUserName}

type upstreams struct {
	Appointments string
	Directory    string
}

type tokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

func registerRoutes(mux *http.ServeMux, up upstreams, verifier tokenVerifier) {
	appointmentProxy := newProxy(mustParseURL(up.Appointments))
	directoryProxy := newProxy(mustParseURL(up.Directory))

	registerProxy(mux, "/api/v1/appointments", requireAuth(appointmentProxy, verifier))
	registerProxy(mux, "/api/v1/lawyers", requireAuth(directoryProxy, verifier))
}

func newProxy(target *url.URL) *httputil.ReverseProxy {
	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.Transport = otelhttp.NewTransport(http.DefaultTransport)
	proxy.ErrorHandler = func(w http.ResponseWriter, _ *http.Request, _ error) {
		httpx.WriteError(w, http.StatusBadGateway, "unavailable", "upstream service unavailable")
	}
	return proxy
}

func registerProxy(mux *http.ServeMux, prefix string, handler http.Handler) {
	mux.Handle(prefix, handler)
	mux.Handle(prefix+"/", handler)
}

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		panic(err)
	}
	return u
}

// requireAuth verifies the bearer token and replaces any client-supplied
// identity headers with the token's claims.
func requireAuth(next http.Handler, verifier tokenVerifier) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, h := range identityHeaders {
			r.Header.Del(h)
		}

		authHeader := r.Header.Get("Authorization")
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if !strings.HasPrefix(authHeader, "Bearer ") || token == "" {
			httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid Authorization header")
			return
		}
		claims, err := verifier.Verify(token)
		if err != nil {
			httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}

		r.Header.Set(headerUserID, claims.Subject)
		r.Header.Set(headerRole, claims.Role)
		if claims.Email != "" {
			r.Header.Set(headerUserEmail, claims.Email)
		}
		if claims.Name != "" {
			r.Header.Set(headerUserName, claims.Name)
		}
		r.Header.Del("Authorization")
		next.ServeHTTP(w, r)
	})
}

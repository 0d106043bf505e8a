// Package identity reads the caller the gateway authenticated.
package identity

import (
	"errors"
	"net/http"
	"strings"

	"github.com/lexconnect/lexconnect/services/appointment-service/internal/model"
)

const (
	HeaderUserID    = "X-User-Id"
	HeaderRole      = "X-Role"
	HeaderUserEmail = "X-User-Email"
	HeaderUserName  = "X-User-Name"
)

var ErrMissingIdentity = errors.New("caller identity missing")

// Caller is the authenticated principal behind a request.
type Caller struct {
	ID    string
	Role  model.Role
	Email string
	Name  string
}

func (c Caller) IsAdmin() bool { return c.Role == model.RoleAdmin }

// ClientRef describes the caller as a booking client.
func (c Caller) ClientRef() model.ClientRef {
	return model.ClientRef{ID: c.ID, Name: c.Name, Email: c.Email}
}

// FromRequest trusts the gateway-populated identity headers.
func FromRequest(r *http.Request) (Caller, error) {
	id := strings.TrimSpace(r.Header.Get(HeaderUserID))
	rawRole := strings.TrimSpace(r.Header.Get(HeaderRole))
	if id == "" || rawRole == "" {
		return Caller{}, ErrMissingIdentity
	}
	role, err := model.ParseRole(rawRole)
	if err != nil {
		return Caller{}, ErrMissingIdentity
	}
	return Caller{
		ID:    id,
		Role:  role,
		Email: strings.TrimSpace(r.Header.Get(HeaderUserEmail)),
		Name:  strings.TrimSpace(r.Header.Get(HeaderUserName)),
	}, nil
}

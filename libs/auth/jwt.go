package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

var ErrInvalidToken = errors.New("invalid token")

// Roles carried in the "role" claim.
const (
	RoleClient = "client"
	RoleLawyer = "lawyer"
	RoleAdmin  = "admin"
)

// Claims is the token payload issued by the identity provider. Subject holds
// the client or lawyer account id.
type Claims struct {
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) Valid() error {
	if err := c.RegisteredClaims.Valid(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Subject) == "" {
		return errors.New("missing subject")
	}
	switch c.Role {
	case RoleClient, RoleLawyer, RoleAdmin:
		return nil
	default:
		return fmt.Errorf("unknown role %q", c.Role)
	}
}

type Header struct {
	Alg string
	Kid string
}

// ParseHeader reads the unverified JOSE header; used to pick a verification key.
func ParseHeader(token string) (*Header, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, &Claims{})
	if err != nil {
		return nil, ErrInvalidToken
	}
	h := &Header{}
	h.Alg, _ = parsed.Header["alg"].(string)
	h.Kid, _ = parsed.Header["kid"].(string)
	return h, nil
}

func SignHS256(claims Claims, secret string) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, &claims).SignedString([]byte(secret))
}

func ParseAndVerifyHS256(token, secret string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func VerifyRS256(token string, pubKey *rsa.PublicKey) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return pubKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Verifier checks RS256 tokens against a JWKS when one is configured and falls
// back to the shared HS256 secret otherwise.
type Verifier struct {
	secret string
	jwks   *JWKSClient
}

func NewVerifier(secret string, jwks *JWKSClient) *Verifier {
	return &Verifier{secret: secret, jwks: jwks}
}

func (v *Verifier) Verify(token string) (*Claims, error) {
	if v.jwks != nil {
		header, err := ParseHeader(token)
		if err != nil {
			return nil, err
		}
		if header.Alg == jwt.SigningMethodRS256.Alg() && header.Kid != "" {
			pub, err := v.jwks.Get(header.Kid)
			if err != nil {
				return nil, ErrInvalidToken
			}
			return VerifyRS256(token, pub)
		}
	}
	if v.secret == "" {
		return nil, ErrInvalidToken
	}
	return ParseAndVerifyHS256(token, v.secret)
}

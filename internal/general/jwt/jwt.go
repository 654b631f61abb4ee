package jwt

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"ride-dispatch/internal/domain/user"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoToken            = errors.New("missing or malformed Authorization")
	ErrInvalidSigningAlgo = errors.New("unexpected signing method")
	ErrInvalidToken       = errors.New("invalid token")
	ErrRoleForbidden      = errors.New("role not allowed")
)

// Claims is the canonical JWT payload: a subject (actor id) plus a role.
type Claims struct {
	Role user.Role `json:"role"`
	jwtlib.RegisteredClaims
}

var _ jwtlib.Claims = (*Claims)(nil)

// ActorID returns the authenticated actor id carried in the subject claim.
func (c *Claims) ActorID() string {
	return c.Subject
}

// Manager handles HS256 token creation and validation.
type Manager struct {
	secret    []byte
	accessTTL time.Duration
}

// NewManager creates a token manager. Panics on an empty secret because no
// service can run without one.
func NewManager(secret string, accessTTL time.Duration) *Manager {
	s := strings.TrimSpace(secret)
	if s == "" {
		panic("jwt: empty secret key")
	}
	return &Manager{secret: []byte(s), accessTTL: accessTTL}
}

// Issue returns a signed access token for an actor with the given role.
func (m *Manager) Issue(actorID string, role user.Role) (string, *Claims, error) {
	if !role.Valid() {
		return "", nil, user.ErrInvalidRole
	}

	now := time.Now().UTC()
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   actorID,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(m.accessTTL)),
		},
	}

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	return signed, claims, err
}

// ParseAndValidate verifies the signature and standard claims.
func (m *Manager) ParseAndValidate(tokenString string) (*Claims, error) {
	parser := jwtlib.NewParser(jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}))

	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(t *jwtlib.Token) (any, error) {
		if t.Method != jwtlib.SigningMethodHS256 {
			return nil, ErrInvalidSigningAlgo
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// FromAuthorization reads the bearer token from the Authorization header, or
// from the query string for WebSocket clients that cannot set headers.
func FromAuthorization(r *http.Request) (string, error) {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer "), nil
	}
	if q := r.URL.Query().Get("token"); q != "" {
		return q, nil
	}
	return "", ErrNoToken
}

// RoleAllowed asserts the claims' role is one of the allowed.
func RoleAllowed(c *Claims, allowed ...user.Role) error {
	if slices.Contains(allowed, c.Role) {
		return nil
	}
	return ErrRoleForbidden
}

// ----- context wiring (used by middleware) -----

type ctxKey string

const claimsCtxKey ctxKey = "jwtClaims"

// InjectClaims adds JWT claims to the context.
func InjectClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsCtxKey, c)
}

// FromContext extracts JWT claims from the context.
func FromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsCtxKey).(*Claims)
	return c, ok
}

// Middleware validates tokens and injects claims into the request context.
// Suitable for chi router chains.
func Middleware(mgr *Manager, allowedRoles ...user.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := FromAuthorization(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			claims, err := mgr.ParseAndValidate(raw)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			if err := RoleAllowed(claims, allowedRoles...); err != nil {
				http.Error(w, err.Error(), http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r.WithContext(InjectClaims(r.Context(), claims)))
		})
	}
}

// Package identity resolves the acting user. The engine never checks
// credentials itself; it consumes an Actor produced by a Provider.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles understood by authorization checks.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Actor is the authenticated user performing an operation.
type Actor struct {
	ID          uint   `json:"id"`
	Role        string `json:"role"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

// IsAdmin reports whether the actor holds the admin role.
func (a *Actor) IsAdmin() bool {
	return a != nil && a.Role == RoleAdmin
}

// Provider resolves a credential into an Actor.
type Provider interface {
	Resolve(ctx context.Context, credential string) (*Actor, error)
}

type ctxKey struct{}

// WithActor returns a context carrying a.
func WithActor(ctx context.Context, a *Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// FromContext returns the actor stored in ctx, or nil.
func FromContext(ctx context.Context) *Actor {
	a, _ := ctx.Value(ctxKey{}).(*Actor)
	return a
}

// ErrInvalidToken is returned for malformed, expired or badly signed tokens.
var ErrInvalidToken = errors.New("identity: invalid token")

// Claims are the JWT claims carrying an actor. The subject is the user ID.
type Claims struct {
	Role  string `json:"role"`
	Name  string `json:"name"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// JWTProvider resolves HS256 bearer tokens signed with a shared secret.
type JWTProvider struct {
	Secret []byte
	Issuer string
}

// NewJWTProvider returns a provider for tokens signed with secret.
func NewJWTProvider(secret string) *JWTProvider {
	return &JWTProvider{Secret: []byte(secret), Issuer: "docket"}
}

// Resolve validates token and returns the actor it names.
func (p *JWTProvider) Resolve(_ context.Context, token string) (*Actor, error) {
	var claims Claims
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if p.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.Issuer))
	}
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return p.Secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return nil, fmt.Errorf("%w: subject %q is not a user id", ErrInvalidToken, claims.Subject)
	}
	role := claims.Role
	if role == "" {
		role = RoleUser
	}
	return &Actor{ID: uint(id), Role: role, DisplayName: claims.Name, Email: claims.Email}, nil
}

// Issue signs a token for a valid for ttl.
func (p *JWTProvider) Issue(a Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role:  a.Role,
		Name:  a.DisplayName,
		Email: a.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(a.ID), 10),
			Issuer:    p.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.Secret)
	if err != nil {
		return "", fmt.Errorf("identity: sign token: %w", err)
	}
	return signed, nil
}

// Package principal resolves a bearer credential into the caller identity.
//
// Resolution has three outcomes: Authenticated with a Principal, Anonymous
// when no credential was presented, or Rejected with a reason. The resolver
// only reads account data and holds no mutable state, so one instance
// serves all requests concurrently.
package principal

import (
	"context"
	"errors"
	"strings"

	"github.com/MahdiBaghbani/huddle-go/internal/components/identity"
	"github.com/MahdiBaghbani/huddle-go/internal/components/token"
)

// Principal is the resolved caller. Never persisted.
type Principal struct {
	ID     string `json:"id"`
	Role   string `json:"role"`
	Status string `json:"status"`
}

// HasRole reports whether the principal's role is in roles.
func (p *Principal) HasRole(roles ...string) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

// Outcome is the kind of a Resolution.
type Outcome int

const (
	Anonymous Outcome = iota
	Authenticated
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case Authenticated:
		return "authenticated"
	case Rejected:
		return "rejected"
	default:
		return "anonymous"
	}
}

// Rejection reasons.
const (
	ReasonMalformed       = "malformed"
	ReasonExpired         = "expired"
	ReasonSubjectNotFound = "subject_not_found"
	ReasonAccountInactive = "account_inactive"
	ReasonAccountBanned   = "account_banned"
)

// Resolution is the result of resolving one credential.
type Resolution struct {
	Outcome   Outcome
	Principal *Principal // set only when Authenticated
	Reason    string     // set only when Rejected
}

// TokenVerifier verifies a raw bearer token.
type TokenVerifier interface {
	Verify(raw string) (*token.Claims, error)
}

// AccountReader is the read path to account data.
type AccountReader interface {
	Get(ctx context.Context, id string) (*identity.User, error)
}

// Resolver turns Authorization header values into Resolutions.
type Resolver struct {
	tokens   TokenVerifier
	accounts AccountReader
}

func NewResolver(tokens TokenVerifier, accounts AccountReader) *Resolver {
	return &Resolver{tokens: tokens, accounts: accounts}
}

// Resolve inspects an Authorization header value. An empty value is
// Anonymous; anything present that is not a well-formed bearer token is
// Rejected(malformed). The returned error is non-nil only when the account
// lookup itself fails, and ctx cancellation is propagated to that lookup.
func (r *Resolver) Resolve(ctx context.Context, authorization string) (Resolution, error) {
	if authorization == "" {
		return Resolution{Outcome: Anonymous}, nil
	}

	raw, ok := bearerToken(authorization)
	if !ok {
		return rejected(ReasonMalformed), nil
	}

	claims, err := r.tokens.Verify(raw)
	switch {
	case errors.Is(err, token.ErrExpired):
		return rejected(ReasonExpired), nil
	case err != nil:
		return rejected(ReasonMalformed), nil
	}

	user, err := r.accounts.Get(ctx, claims.Subject)
	if errors.Is(err, identity.ErrUserNotFound) {
		return rejected(ReasonSubjectNotFound), nil
	}
	if err != nil {
		return Resolution{}, err
	}

	switch status := user.EffectiveStatus(); status {
	case identity.StatusActive:
	case identity.StatusBanned:
		return rejected(ReasonAccountBanned), nil
	default:
		return rejected(ReasonAccountInactive), nil
	}

	return Resolution{
		Outcome: Authenticated,
		Principal: &Principal{
			ID:     user.ID,
			Role:   user.EffectiveRole(),
			Status: user.EffectiveStatus(),
		},
	}, nil
}

func rejected(reason string) Resolution {
	return Resolution{Outcome: Rejected, Reason: reason}
}

// bearerToken extracts the token from "Bearer <token>". The scheme is
// case-insensitive; the token must be non-empty and contain no spaces.
func bearerToken(header string) (string, bool) {
	scheme, rest, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	raw := strings.TrimSpace(rest)
	if raw == "" || strings.ContainsAny(raw, " \t") {
		return "", false
	}
	return raw, true
}

type contextKey struct{}

// WithPrincipal binds p to ctx.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// FromContext returns the bound principal, if any.
func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(*Principal)
	return p, ok && p != nil
}

// RoleFrom returns the bound principal's role, or "" when none is bound.
func RoleFrom(ctx context.Context) string {
	if p, ok := FromContext(ctx); ok {
		return p.Role
	}
	return ""
}

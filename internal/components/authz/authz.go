// Package authz composes credential resolution, account gating, role gating
// and ownership gating into ordered guard chains.
//
// A Guard either returns an enriched context to continue with or a typed
// *apperr.Error. A Chain runs its guards in order and stops at the first
// failure. Guards never mutate state beyond the returned context, so a
// retried or abandoned authorization attempt is harmless.
package authz

import (
	"context"

	"github.com/MahdiBaghbani/huddle-go/internal/components/apperr"
	"github.com/MahdiBaghbani/huddle-go/internal/components/principal"
)

// Request is what guards see of an inbound call.
type Request struct {
	// Authorization is the raw Authorization header value ("" when absent).
	Authorization string

	// Resource identifies the target of ownership checks, e.g. a post id.
	Resource string
}

// Guard is one authorization step.
type Guard func(ctx context.Context, req *Request) (context.Context, error)

// Chain is an ordered list of guards.
type Chain []Guard

// Run applies the guards in order. On failure the original ctx is returned
// alongside the error.
func (c Chain) Run(ctx context.Context, req *Request) (context.Context, error) {
	cur := ctx
	for _, g := range c {
		next, err := g(cur, req)
		if err != nil {
			return ctx, err
		}
		cur = next
	}
	return cur, nil
}

// Resolver resolves an Authorization header value.
type Resolver interface {
	Resolve(ctx context.Context, authorization string) (principal.Resolution, error)
}

// OwnerLookup maps a resource reference to its owner. found is false when
// the resource does not exist.
type OwnerLookup interface {
	OwnerOf(ctx context.Context, ref string) (ownerID string, found bool, err error)
}

// OwnerLookupFunc adapts a function to OwnerLookup.
type OwnerLookupFunc func(ctx context.Context, ref string) (string, bool, error)

func (f OwnerLookupFunc) OwnerOf(ctx context.Context, ref string) (string, bool, error) {
	return f(ctx, ref)
}

// Required binds an authenticated principal or fails with a 401-class error.
func Required(res Resolver) Guard {
	return func(ctx context.Context, req *Request) (context.Context, error) {
		r, err := res.Resolve(ctx, req.Authorization)
		if err != nil {
			return ctx, apperr.Internal(err)
		}
		switch r.Outcome {
		case principal.Authenticated:
			return principal.WithPrincipal(ctx, r.Principal), nil
		case principal.Rejected:
			return ctx, rejection(r.Reason)
		default:
			return ctx, apperr.Authentication(apperr.CodeUnauthenticated, "authentication required")
		}
	}
}

// Optional binds a principal when the credential resolves and otherwise
// continues anonymously. It fails only when the account lookup itself fails.
func Optional(res Resolver) Guard {
	return func(ctx context.Context, req *Request) (context.Context, error) {
		r, err := res.Resolve(ctx, req.Authorization)
		if err != nil {
			return ctx, apperr.Internal(err)
		}
		if r.Outcome == principal.Authenticated {
			return principal.WithPrincipal(ctx, r.Principal), nil
		}
		return ctx, nil
	}
}

// OwnerOrRole passes when the bound principal owns req.Resource or holds one
// of the elevated roles. It must run after Required.
func OwnerOrRole(lookup OwnerLookup, elevated ...string) Guard {
	return func(ctx context.Context, req *Request) (context.Context, error) {
		p, ok := principal.FromContext(ctx)
		if !ok {
			return ctx, apperr.Authentication(apperr.CodeUnauthenticated, "authentication required")
		}

		ownerID, found, err := lookup.OwnerOf(ctx, req.Resource)
		if err != nil {
			return ctx, apperr.Internal(err)
		}
		if !found {
			return ctx, apperr.NotFound("resource")
		}
		if p.HasRole(elevated...) || ownerID == p.ID {
			return ctx, nil
		}
		return ctx, apperr.Forbidden(apperr.CodeNotOwner, "only the owner may perform this action", p.Role)
	}
}

// RequireRole passes when the bound principal's role is in allowed.
// It must run after Required.
func RequireRole(allowed ...string) Guard {
	return func(ctx context.Context, req *Request) (context.Context, error) {
		p, ok := principal.FromContext(ctx)
		if !ok {
			return ctx, apperr.Authentication(apperr.CodeUnauthenticated, "authentication required")
		}
		if !p.HasRole(allowed...) {
			return ctx, apperr.RoleRequired(p.Role, allowed)
		}
		return ctx, nil
	}
}

func rejection(reason string) *apperr.Error {
	switch reason {
	case principal.ReasonExpired:
		return apperr.Authentication(apperr.CodeExpired, "credential has expired")
	case principal.ReasonSubjectNotFound:
		return apperr.Authentication(apperr.CodeSubjectNotFound, "credential subject does not exist")
	case principal.ReasonAccountInactive:
		return apperr.Authentication(apperr.CodeAccountInactive, "account is inactive")
	case principal.ReasonAccountBanned:
		return apperr.Authentication(apperr.CodeAccountBanned, "account is banned")
	default:
		return apperr.Authentication(apperr.CodeMalformed, "malformed credential")
	}
}

// Package auth adapts authorization guard chains to HTTP middleware.
package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MahdiBaghbani/huddle-go/internal/components/api"
	"github.com/MahdiBaghbani/huddle-go/internal/components/authz"
	"github.com/MahdiBaghbani/huddle-go/internal/components/principal"
	"github.com/MahdiBaghbani/huddle-go/internal/platform/appctx"
)

// Guard returns a middleware that runs chain before the handler.
//
// resourceParam names the chi URL parameter that identifies the target of
// ownership checks; it may be empty for routes without one. On failure the
// typed error is written through the JSON envelope and the handler is not
// invoked. On success the principal (if any) is bound to the request context
// and the request logger gains user_id.
func Guard(chain authz.Chain, resourceParam string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req := &authz.Request{Authorization: r.Header.Get("Authorization")}
			if resourceParam != "" {
				req.Resource = chi.URLParam(r, resourceParam)
			}

			ctx, err := chain.Run(r.Context(), req)
			if err != nil {
				api.WriteAppError(w, r, err)
				return
			}

			if p, ok := principal.FromContext(ctx); ok {
				ctx = appctx.With(ctx, "user_id", p.ID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFrom returns the principal bound by Guard, if any.
func PrincipalFrom(r *http.Request) (*principal.Principal, bool) {
	return principal.FromContext(r.Context())
}

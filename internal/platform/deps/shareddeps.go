// Package deps provides shared dependencies for all services.
package deps

import (
	"sync"

	"github.com/MahdiBaghbani/huddle-go/internal/components/identity"
	"github.com/MahdiBaghbani/huddle-go/internal/components/joinrequest"
	"github.com/MahdiBaghbani/huddle-go/internal/components/meetup"
	"github.com/MahdiBaghbani/huddle-go/internal/components/notifications"
	"github.com/MahdiBaghbani/huddle-go/internal/components/principal"
	"github.com/MahdiBaghbani/huddle-go/internal/components/ratelimit"
	"github.com/MahdiBaghbani/huddle-go/internal/components/token"
	"github.com/MahdiBaghbani/huddle-go/internal/platform/config"
	"github.com/MahdiBaghbani/huddle-go/internal/platform/http/realip"
)

var (
	sharedDeps     *Deps
	sharedDepsOnce sync.Once
)

// Deps holds shared dependencies for all services.
// This is the huddle-go equivalent of Reva's sharedconf,
// adapted for a monolith where services share repos and domain services.
type Deps struct {
	// Identity
	PartyRepo identity.PartyRepo
	Accounts  *identity.Accounts
	Tokens    *token.Issuer
	Resolver  *principal.Resolver

	// Domain
	Tracker  *meetup.Tracker
	Workflow *joinrequest.Workflow
	Inbox    *notifications.Inbox

	// Limiter holds the sliding-window rules installed by ratelimit interceptors.
	Limiter *ratelimit.Limiter

	// Config (for handlers that need config values)
	Config *config.Config

	// RealIP provides trusted-proxy-aware client IP extraction.
	// This is the single source of truth for client identity in logging and rate limiting.
	RealIP *realip.TrustedProxies
}

// SetDeps sets the shared dependencies. Must be called once at startup
// before any services are constructed.
func SetDeps(d *Deps) {
	sharedDepsOnce.Do(func() {
		sharedDeps = d
	})
}

// GetDeps returns the shared dependencies.
// Returns nil if SetDeps has not been called.
func GetDeps() *Deps {
	return sharedDeps
}

// ResetDeps is for testing only. Resets the singleton.
func ResetDeps() {
	sharedDeps = nil
	sharedDepsOnce = sync.Once{}
}

// Package api provides the /api/* endpoints.
package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/MahdiBaghbani/huddle-go/internal/components/api"
	"github.com/MahdiBaghbani/huddle-go/internal/components/authz"
	"github.com/MahdiBaghbani/huddle-go/internal/components/identity"
	"github.com/MahdiBaghbani/huddle-go/internal/frameworks/service"
	svccfg "github.com/MahdiBaghbani/huddle-go/internal/frameworks/service/cfg"
	"github.com/MahdiBaghbani/huddle-go/internal/frameworks/service/httpwrap"
	"github.com/MahdiBaghbani/huddle-go/internal/interceptors"
	"github.com/MahdiBaghbani/huddle-go/internal/platform/deps"
	"github.com/MahdiBaghbani/huddle-go/internal/platform/http/auth"
	"github.com/MahdiBaghbani/huddle-go/internal/platform/logutil"
)

func init() {
	service.MustRegister("api", New)
}

// Rate-limited actions.
const (
	ActionSignup     = "signup"
	ActionLogin      = "login"
	ActionCreatePost = "create_post"
	ActionJoin       = "join"
	ActionBlock      = "block"
)

// defaultLimits apply to actions without a configured profile.
var defaultLimits = map[string]map[string]any{
	ActionSignup:     {"requests_per_window": 5, "window_seconds": 3600, "key_by": "ip"},
	ActionLogin:      {"requests_per_window": 10, "window_seconds": 900, "key_by": "ip"},
	ActionCreatePost: {"requests_per_window": 10, "window_seconds": 3600, "key_by": "principal"},
	ActionJoin:       {"requests_per_window": 30, "window_seconds": 3600, "key_by": "principal"},
	ActionBlock:      {"requests_per_window": 20, "window_seconds": 3600, "key_by": "principal"},
}

// Config holds api service configuration.
type Config struct {
	// Ratelimit maps an action to the name of a profile under
	// [http.interceptors.ratelimit.profiles.<name>].
	Ratelimit map[string]string `mapstructure:"ratelimit"`
}

// ApplyDefaults implements cfg.Setter.
func (c *Config) ApplyDefaults() {
	if c.Ratelimit == nil {
		c.Ratelimit = map[string]string{}
	}
}

// Service is the API service.
type Service struct {
	router chi.Router
	conf   *Config
	log    *slog.Logger
}

// New creates a new API service.
func New(m map[string]any, log *slog.Logger) (service.Service, error) {
	log = logutil.NoopIfNil(log)

	var c Config
	unused, err := svccfg.DecodeWithUnused(m, &c)
	if err != nil {
		return nil, err
	}
	if len(unused) > 0 {
		log.Warn("unused config keys", "service", "api", "unused_keys", unused)
	}

	d := deps.GetDeps()
	if d == nil {
		return nil, errors.New("shared deps not initialized")
	}

	limits, err := buildLimits(&c, d, log)
	if err != nil {
		return nil, err
	}

	authHandler := api.NewAuthHandler(d.Accounts, d.Tokens)
	usersHandler := api.NewUsersHandler(d.Accounts)
	postsHandler := api.NewPostsHandler(d.Tracker, d.Workflow)
	requestsHandler := api.NewRequestsHandler(d.Workflow)
	notificationsHandler := api.NewNotificationsHandler(d.Inbox)

	required := authz.Required(d.Resolver)
	optional := auth.Guard(authz.Chain{authz.Optional(d.Resolver)}, "")
	authed := auth.Guard(authz.Chain{required}, "")

	r := chi.NewRouter()

	// Health endpoint (public)
	r.Get("/healthz", api.HealthHandler)

	r.Route("/auth", func(r chi.Router) {
		r.With(limits[ActionSignup]).Post("/signup", authHandler.Signup)
		r.With(limits[ActionLogin]).Post("/login", authHandler.Login)
		r.With(authed).Get("/me", authHandler.Me)
	})

	r.Route("/admin/users/{userId}", func(r chi.Router) {
		r.With(auth.Guard(authz.Chain{required, authz.RequireRole(identity.RoleModerator, identity.RoleAdmin)}, "")).
			Put("/status", usersHandler.SetStatus)
		r.With(auth.Guard(authz.Chain{required, authz.RequireRole(identity.RoleAdmin)}, "")).
			Put("/role", usersHandler.SetRole)
	})

	r.Route("/users/{userId}/block", func(r chi.Router) {
		r.With(authed, limits[ActionBlock]).Post("/", usersHandler.Block)
		r.With(authed).Delete("/", usersHandler.Unblock)
	})

	r.Route("/posts", func(r chi.Router) {
		r.With(authed, limits[ActionCreatePost]).Post("/", postsHandler.Create)
		r.With(optional).Get("/", postsHandler.List)
		r.With(optional).Get("/nearby", postsHandler.Nearby)

		r.Route("/{postId}", func(r chi.Router) {
			r.With(optional).Get("/", postsHandler.Get)
			r.With(auth.Guard(authz.Chain{required, authz.OwnerOrRole(d.Tracker, identity.RoleAdmin)}, "postId")).
				Patch("/", postsHandler.Edit)
			r.With(auth.Guard(authz.Chain{required, authz.OwnerOrRole(d.Tracker, identity.RoleAdmin, identity.RoleModerator)}, "postId")).
				Delete("/", postsHandler.Delete)

			r.With(authed, limits[ActionJoin]).Post("/join", postsHandler.Join)
			r.With(authed).Post("/leave", postsHandler.Leave)

			r.With(authed, limits[ActionJoin]).Post("/requests", postsHandler.SubmitRequest)
			r.With(auth.Guard(authz.Chain{required, authz.OwnerOrRole(d.Tracker, identity.RoleAdmin)}, "postId")).
				Get("/requests", postsHandler.ListRequests)
		})
	})

	r.Route("/requests", func(r chi.Router) {
		r.With(authed).Get("/mine", requestsHandler.Mine)
		hostOnly := auth.Guard(authz.Chain{required, authz.OwnerOrRole(d.Workflow)}, "requestId")
		r.With(hostOnly).Post("/{requestId}/accept", requestsHandler.Accept)
		r.With(hostOnly).Post("/{requestId}/reject", requestsHandler.Reject)
	})

	r.Route("/notifications", func(r chi.Router) {
		r.With(authed).Get("/", notificationsHandler.List)
		r.With(auth.Guard(authz.Chain{required, authz.OwnerOrRole(d.Inbox)}, "notificationId")).
			Post("/{notificationId}/read", notificationsHandler.MarkRead)
	})

	return &Service{router: r, conf: &c, log: log}, nil
}

// buildLimits constructs one ratelimit interceptor per action. A configured
// profile replaces the action's defaults; key_by falls back to the default.
func buildLimits(c *Config, d *deps.Deps, log *slog.Logger) (map[string]func(http.Handler) http.Handler, error) {
	for action := range c.Ratelimit {
		if _, known := defaultLimits[action]; !known {
			return nil, fmt.Errorf("api: unknown rate-limited action %q (known: %v)", action, knownActions())
		}
	}

	var interceptorsCfg map[string]map[string]any
	if d.Config != nil {
		interceptorsCfg = d.Config.HTTP.Interceptors
	}

	out := make(map[string]func(http.Handler) http.Handler, len(defaultLimits))
	for action, defaults := range defaultLimits {
		conf := make(map[string]any, len(defaults)+1)
		if profile := c.Ratelimit[action]; profile != "" {
			p, err := interceptors.Profile(interceptorsCfg, "ratelimit", profile)
			if err != nil {
				return nil, fmt.Errorf("api: %w", err)
			}
			conf = p
			if _, set := conf["key_by"]; !set {
				conf["key_by"] = defaults["key_by"]
			}
		} else {
			for k, v := range defaults {
				conf[k] = v
			}
		}
		conf["action"] = action

		mw, err := interceptors.New("ratelimit", conf, log)
		if err != nil {
			return nil, fmt.Errorf("api: failed to create ratelimit interceptor for %s: %w", action, err)
		}
		out[action] = mw
	}
	return out, nil
}

func knownActions() []string {
	names := make([]string, 0, len(defaultLimits))
	for name := range defaultLimits {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Handler returns the service's HTTP handler with RawPath clearing.
func (s *Service) Handler() http.Handler {
	return httpwrap.ClearRawPath(s.router)
}

// Prefix returns the URL prefix for this service.
func (s *Service) Prefix() string {
	return "api"
}

// Close releases any resources held by the service.
func (s *Service) Close() error {
	return nil
}

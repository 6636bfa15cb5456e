// Package ratelimit provides the per-action rate limiting interceptor backed
// by the shared sliding-window limiter.
package ratelimit

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/MahdiBaghbani/huddle-go/internal/components/api"
	"github.com/MahdiBaghbani/huddle-go/internal/components/principal"
	limiter "github.com/MahdiBaghbani/huddle-go/internal/components/ratelimit"
	svccfg "github.com/MahdiBaghbani/huddle-go/internal/frameworks/service/cfg"
	"github.com/MahdiBaghbani/huddle-go/internal/interceptors"
	"github.com/MahdiBaghbani/huddle-go/internal/platform/deps"
	"github.com/MahdiBaghbani/huddle-go/internal/platform/logutil"
)

func init() {
	interceptors.MustRegister("ratelimit", New)
}

// Key strategies.
const (
	KeyByPrincipal = "principal"
	KeyByIP        = "ip"
)

// Config is one action's rate limit, decoded from a profile under
// [http.interceptors.ratelimit.profiles.<name>] plus the action binding.
type Config struct {
	Action            string `mapstructure:"action"`
	KeyBy             string `mapstructure:"key_by"`
	RequestsPerWindow int    `mapstructure:"requests_per_window"`
	WindowSeconds     int    `mapstructure:"window_seconds"`
}

// ApplyDefaults sets reasonable defaults for unconfigured fields.
func (c *Config) ApplyDefaults() {
	if c.KeyBy == "" {
		c.KeyBy = KeyByPrincipal
	}
	if c.RequestsPerWindow == 0 {
		c.RequestsPerWindow = 100
	}
	if c.WindowSeconds == 0 {
		c.WindowSeconds = 60
	}
}

// Interceptor admits or rejects requests for one action.
type Interceptor struct {
	limiter *limiter.Limiter
	action  string
	keyBy   string
	ipFunc  func(*http.Request) string
	log     *slog.Logger
}

// New creates a ratelimit interceptor from the given config and installs its
// rule on the shared limiter.
func New(conf map[string]any, log *slog.Logger) (interceptors.Middleware, error) {
	var c Config
	if err := svccfg.DecodeStrict(conf, &c); err != nil {
		return nil, err
	}
	if c.Action == "" {
		return nil, errors.New("ratelimit: action is required")
	}
	if c.KeyBy != KeyByPrincipal && c.KeyBy != KeyByIP {
		return nil, fmt.Errorf("ratelimit: key_by must be %q or %q, got %q", KeyByPrincipal, KeyByIP, c.KeyBy)
	}

	d := deps.GetDeps()
	if d == nil || d.Limiter == nil {
		return nil, errors.New("ratelimit: shared limiter is not configured")
	}

	rule := limiter.Rule{
		MaxRequests: c.RequestsPerWindow,
		Window:      time.Duration(c.WindowSeconds) * time.Second,
	}
	if err := d.Limiter.SetRule(c.Action, rule); err != nil {
		return nil, err
	}

	i := &Interceptor{
		limiter: d.Limiter,
		action:  c.Action,
		keyBy:   c.KeyBy,
		ipFunc:  d.RealIP.GetClientIPString,
		log:     logutil.NoopIfNil(log),
	}
	return i.Wrap, nil
}

// Wrap is the middleware function that applies rate limiting.
func (i *Interceptor) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := i.key(r)
		err := i.limiter.Allow(i.action, key)
		if rule, ok := i.limiter.Rule(i.action); ok {
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rule.MaxRequests))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(i.limiter.Remaining(i.action, key)))
		}
		if err != nil {
			i.log.Info("rate limited", "action", i.action, "key", key)
			api.WriteAppError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// key identifies the caller: the bound principal when keying by principal,
// otherwise the trusted-proxy-aware client address.
func (i *Interceptor) key(r *http.Request) string {
	if i.keyBy == KeyByPrincipal {
		if p, ok := principal.FromContext(r.Context()); ok {
			return "user:" + p.ID
		}
	}
	return "ip:" + i.ipFunc(r)
}

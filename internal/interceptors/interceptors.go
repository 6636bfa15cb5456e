// Package interceptors holds named HTTP middleware constructors. Each
// interceptor package registers itself from init() and services build
// per-route instances from a config map.
package interceptors

import (
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
)

// Middleware wraps a handler.
type Middleware func(http.Handler) http.Handler

// NewInterceptor builds one middleware instance from its config map.
type NewInterceptor func(conf map[string]any, log *slog.Logger) (Middleware, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]NewInterceptor)
)

// Register adds a constructor under name. Registering a name twice fails.
func Register(name string, fn NewInterceptor) error {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[name]; exists {
		return fmt.Errorf("interceptor %q already registered", name)
	}
	registry[name] = fn
	return nil
}

// MustRegister is Register for init() functions.
func MustRegister(name string, fn NewInterceptor) {
	if err := Register(name, fn); err != nil {
		panic(err)
	}
}

// Get returns the constructor registered under name.
func Get(name string) (NewInterceptor, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	fn, ok := registry[name]
	return fn, ok
}

// New constructs the interceptor registered under name.
func New(name string, conf map[string]any, log *slog.Logger) (Middleware, error) {
	fn, ok := Get(name)
	if !ok {
		return nil, fmt.Errorf("interceptor %q not registered (have %v)", name, Names())
	}
	return fn(conf, log)
}

// Names returns the registered interceptor names, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

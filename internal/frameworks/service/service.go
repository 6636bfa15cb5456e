// Package service defines mountable HTTP services and the registry they are
// constructed from. Service packages register from init(); main builds the
// CoreServices with their [http.services.<name>] config maps.
package service

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"

	"github.com/MahdiBaghbani/huddle-go/internal/platform/logutil"
)

// Service is an HTTP surface mounted under /<Prefix>.
type Service interface {
	Handler() http.Handler
	// Prefix is the mount path segment without slashes, e.g. "api".
	Prefix() string
	Close() error
}

// NewService is the constructor function type for services.
type NewService func(conf map[string]any, log *slog.Logger) (Service, error)

// CoreServices are constructed whether or not they appear in config, in
// mount order.
var CoreServices = []string{"api"}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]NewService)
)

// Register adds a constructor under name. Registering a name twice fails.
func Register(name string, newFunc NewService) error {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[name]; exists {
		return fmt.Errorf("service %q already registered", name)
	}
	registry[name] = newFunc
	return nil
}

// MustRegister is Register for init() functions.
func MustRegister(name string, newFunc NewService) {
	if err := Register(name, newFunc); err != nil {
		panic(err)
	}
}

// Get returns the constructor for name, or nil.
func Get(name string) NewService {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registry[name]
}

// RegisteredServices returns the registered names, sorted.
func RegisteredServices() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Build constructs each named service with confFor(name). If any constructor
// fails, the services already built are closed and the errors are joined.
func Build(names []string, confFor func(name string) map[string]any, log *slog.Logger) (map[string]Service, error) {
	log = logutil.NoopIfNil(log)
	built := make(map[string]Service, len(names))
	var order []Service

	for _, name := range names {
		newFunc := Get(name)
		if newFunc == nil {
			err := fmt.Errorf("service %q not registered", name)
			return nil, closeAll(order, err)
		}
		svc, err := newFunc(confFor(name), log.With("service", name))
		if err != nil {
			return nil, closeAll(order, fmt.Errorf("service %q: %w", name, err))
		}
		built[name] = svc
		order = append(order, svc)
	}
	return built, nil
}

func closeAll(svcs []Service, cause error) error {
	errs := []error{cause}
	for i := len(svcs) - 1; i >= 0; i-- {
		if err := svcs[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// resetRegistry clears the registry. Tests only.
func resetRegistry() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]NewService)
}

// Package store provides the persistence driver abstraction. A driver hands
// out one repository per aggregate; domain packages define the repository
// interfaces and drivers implement them.
package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/MahdiBaghbani/huddle-go/internal/components/identity"
	"github.com/MahdiBaghbani/huddle-go/internal/components/joinrequest"
	"github.com/MahdiBaghbani/huddle-go/internal/components/meetup"
	"github.com/MahdiBaghbani/huddle-go/internal/components/notifications"
)

// Driver defines the interface for a persistence backend.
// Implementations must be safe for concurrent use.
type Driver interface {
	// Init prepares the backend (open files, migrate schema).
	Init(ctx context.Context) error

	// Close releases resources held by the driver.
	Close() error

	// Name returns the driver name (memory, sqlite).
	Name() string

	// Repos returns the driver's repositories. Valid only after Init.
	Repos() Repos
}

// Repos bundles every repository a driver provides.
type Repos struct {
	Users         identity.PartyRepo
	Blocks        identity.BlockRepo
	Posts         meetup.Store
	Requests      joinrequest.Store
	Notifications notifications.Repo
}

// DriverConfig holds configuration for driver selection and initialization.
type DriverConfig struct {
	// Driver is the driver name: memory, sqlite
	Driver string `json:"driver"`

	// DataDir is the directory for the sqlite database file.
	DataDir string `json:"data_dir"`
}

// DriverFactory is a function that creates a driver instance.
type DriverFactory func(cfg *DriverConfig) (Driver, error)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]DriverFactory)
)

// Register registers a driver factory by name. Called from init() in driver
// packages.
func Register(name string, factory DriverFactory) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[name] = factory
}

// New creates a driver instance based on the configuration.
func New(cfg *DriverConfig) (Driver, error) {
	driversMu.RLock()
	factory, ok := drivers[cfg.Driver]
	driversMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown driver: %s", cfg.Driver)
	}
	return factory(cfg)
}

// AvailableDrivers returns the registered driver names, sorted.
func AvailableDrivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()

	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

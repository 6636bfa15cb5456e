// Package memory implements the in-process persistence driver. Nothing
// survives a restart.
package memory

import (
	"context"

	"github.com/MahdiBaghbani/huddle-go/internal/components/identity"
	"github.com/MahdiBaghbani/huddle-go/internal/components/joinrequest"
	"github.com/MahdiBaghbani/huddle-go/internal/components/meetup"
	"github.com/MahdiBaghbani/huddle-go/internal/components/notifications"
	"github.com/MahdiBaghbani/huddle-go/internal/platform/store"
)

func init() {
	store.Register("memory", NewDriver)
}

type Driver struct {
	repos store.Repos
}

func NewDriver(cfg *store.DriverConfig) (store.Driver, error) {
	return &Driver{}, nil
}

func (d *Driver) Name() string { return "memory" }

func (d *Driver) Init(ctx context.Context) error {
	d.repos = store.Repos{
		Users:         identity.NewMemoryPartyRepo(),
		Blocks:        identity.NewMemoryBlockRepo(),
		Posts:         meetup.NewMemoryStore(),
		Requests:      joinrequest.NewMemoryStore(),
		Notifications: notifications.NewMemoryRepo(),
	}
	return nil
}

func (d *Driver) Close() error { return nil }

func (d *Driver) Repos() store.Repos { return d.repos }

// Package sqlite implements a SQLite-based persistence driver using GORM.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/MahdiBaghbani/huddle-go/internal/components/identity"
	"github.com/MahdiBaghbani/huddle-go/internal/components/joinrequest"
	"github.com/MahdiBaghbani/huddle-go/internal/components/meetup"
	"github.com/MahdiBaghbani/huddle-go/internal/components/notifications"
	"github.com/MahdiBaghbani/huddle-go/internal/platform/store"
)

func init() {
	store.Register("sqlite", NewDriver)
}

const dbFile = "huddle.db"

// pendingPairIndex enforces at most one pending request per (post, requester).
const pendingPairIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_join_requests_pending_pair
	ON join_requests(post_id, requester_id) WHERE status = 'pending'`

// Driver implements store.Driver using SQLite via GORM.
type Driver struct {
	dataDir string
	db      *gorm.DB
	repos   store.Repos
}

// NewDriver creates a new SQLite driver instance.
func NewDriver(cfg *store.DriverConfig) (store.Driver, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data_dir is required for sqlite driver")
	}
	return &Driver{dataDir: cfg.DataDir}, nil
}

func (d *Driver) Name() string {
	return "sqlite"
}

// Init opens the database, runs AutoMigrate and creates the partial index.
func (d *Driver) Init(ctx context.Context) error {
	if err := os.MkdirAll(d.dataDir, 0o750); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	dsn := filepath.Join(d.dataDir, dbFile) + "?_busy_timeout=5000&_journal_mode=WAL"

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to access database handle: %w", err)
	}
	// SQLite allows one writer; a single connection keeps writers queued in
	// process instead of failing with SQLITE_BUSY.
	sqlDB.SetMaxOpenConns(1)

	d.db = db
	mdb := db.WithContext(ctx)
	if err := mdb.AutoMigrate(
		&identity.User{},
		&identity.Block{},
		&meetup.Post{},
		&joinrequest.JoinRequest{},
		&notifications.Notification{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	if err := mdb.Exec(pendingPairIndex).Error; err != nil {
		return fmt.Errorf("failed to create pending index: %w", err)
	}

	d.repos = store.Repos{
		Users:         &userRepo{db: db},
		Blocks:        &blockRepo{db: db},
		Posts:         &postStore{db: db},
		Requests:      &requestStore{db: db},
		Notifications: &notificationRepo{db: db},
	}
	return nil
}

// Close closes the database connection.
func (d *Driver) Close() error {
	if d.db == nil {
		return nil
	}
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (d *Driver) Repos() store.Repos { return d.repos }

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

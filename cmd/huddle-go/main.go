// Package main is the entrypoint for the huddle-go server.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MahdiBaghbani/huddle-go/internal/components/identity"
	"github.com/MahdiBaghbani/huddle-go/internal/components/joinrequest"
	"github.com/MahdiBaghbani/huddle-go/internal/components/meetup"
	"github.com/MahdiBaghbani/huddle-go/internal/components/notifications"
	"github.com/MahdiBaghbani/huddle-go/internal/components/principal"
	"github.com/MahdiBaghbani/huddle-go/internal/components/ratelimit"
	"github.com/MahdiBaghbani/huddle-go/internal/components/token"
	"github.com/MahdiBaghbani/huddle-go/internal/frameworks/service"
	"github.com/MahdiBaghbani/huddle-go/internal/platform/config"
	"github.com/MahdiBaghbani/huddle-go/internal/platform/deps"
	"github.com/MahdiBaghbani/huddle-go/internal/platform/http/realip"
	"github.com/MahdiBaghbani/huddle-go/internal/platform/http/server"
	"github.com/MahdiBaghbani/huddle-go/internal/platform/logutil"
	"github.com/MahdiBaghbani/huddle-go/internal/platform/store"

	// Register services, interceptors and storage drivers
	_ "github.com/MahdiBaghbani/huddle-go/internal/platform/store/memory"
	_ "github.com/MahdiBaghbani/huddle-go/internal/platform/store/sqlite"
	_ "github.com/MahdiBaghbani/huddle-go/internal/services/loader"
)

// sweepInterval is how often idle rate-limit windows are discarded.
const sweepInterval = time.Minute

func main() {
	configPath := flag.String("config", "", "Path to TOML config file (optional)")
	modeFlag := flag.String("mode", "", "Operating mode: strict or dev (overrides config)")
	listenAddr := flag.String("listen", "", "Listen address (overrides config)")
	adminUsername := flag.String("admin-username", "", "Bootstrap admin username (overrides config)")
	adminPassword := flag.String("admin-password", "", "Bootstrap admin password (overrides config)")
	loggingLevel := flag.String("logging-level", "", "Log level: trace, debug, info, warn, error (overrides config)")
	storeDriver := flag.String("store-driver", "", "Persistence driver: memory or sqlite (overrides config)")
	dataDir := flag.String("data-dir", "", "Data directory for the sqlite driver (overrides config)")
	flag.Parse()

	// Bootstrap logger for config loading errors (uses default level)
	bootstrapLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load(config.LoaderOptions{
		ConfigPath: *configPath,
		ModeFlag:   *modeFlag,
		FlagOverrides: config.FlagOverrides{
			ListenAddr:    setFlag(listenAddr),
			AdminUsername: setFlag(adminUsername),
			AdminPassword: setFlag(adminPassword),
			LoggingLevel:  setFlag(loggingLevel),
			StoreDriver:   setFlag(storeDriver),
			DataDir:       setFlag(dataDir),
		},
		Logger: bootstrapLogger,
	})
	if err != nil {
		bootstrapLogger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logutil.ParseLevel(cfg.Logging.Level),
	}))
	slog.SetDefault(logger)

	// Log effective config with secrets redacted
	logger.Info("effective configuration", "config", cfg.Redacted())

	if err := run(cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	driver, err := store.New(&store.DriverConfig{Driver: cfg.Store.Driver, DataDir: cfg.Store.DataDir})
	if err != nil {
		return err
	}
	if err := driver.Init(ctx); err != nil {
		return err
	}
	defer func() {
		if err := driver.Close(); err != nil {
			logger.Warn("failed to close store", "driver", driver.Name(), "error", err)
		}
	}()
	repos := driver.Repos()
	logger.Info("store initialized", "driver", driver.Name())

	hasher := identity.NewPasswordHasher()
	accounts := identity.NewAccounts(repos.Users, repos.Blocks, hasher, logger)

	bootstrap := identity.NewBootstrap(repos.Users, hasher, logger)
	explicitPasswordSet := cfg.Server.BootstrapAdmin.Password != ""
	if err := bootstrap.EnsureAdmin(ctx,
		cfg.Server.BootstrapAdmin.Username,
		cfg.Server.BootstrapAdmin.Password,
		explicitPasswordSet,
	); err != nil {
		return err
	}

	tokens, err := token.NewIssuer([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer, cfg.Auth.TokenTTL())
	if err != nil {
		return err
	}

	emitter := notifications.NewAsyncEmitter(repos.Notifications, cfg.Notifications.QueueSize, logger)
	tracker := meetup.NewTracker(repos.Posts, accounts, emitter, logger)
	limiter := ratelimit.New(ratelimit.WithLogger(logger))

	deps.SetDeps(&deps.Deps{
		PartyRepo: repos.Users,
		Accounts:  accounts,
		Tokens:    tokens,
		Resolver:  principal.NewResolver(tokens, repos.Users),
		Tracker:   tracker,
		Workflow:  joinrequest.NewWorkflow(repos.Requests, tracker, emitter, logger),
		Inbox:     notifications.NewInbox(repos.Notifications),
		Limiter:   limiter,
		Config:    cfg,
		RealIP:    realip.NewTrustedProxies(cfg.Server.TrustedProxies),
	})

	services, err := service.Build(service.CoreServices, cfg.BuildServiceConfig, logger)
	if err != nil {
		return err
	}

	srv, err := server.New(cfg, logger, services)
	if err != nil {
		return err
	}

	// The emitter outlives the signal: requests still draining during
	// Shutdown may commit transitions whose notifications must be kept.
	emitCtx, stopEmitter := context.WithCancel(context.WithoutCancel(ctx))
	defer stopEmitter()
	srv.AfterShutdown(stopEmitter)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return emitter.Run(emitCtx) })
	g.Go(func() error { return limiter.Run(gctx, sweepInterval) })
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	logger.Info("server started, press Ctrl+C to stop", "addr", cfg.ListenAddr)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// setFlag returns nil for flags left empty so they do not override config.
func setFlag(v *string) *string {
	if v == nil || *v == "" {
		return nil
	}
	return v
}

package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	"github.com/MahdiBaghbani/huddle-go/internal/interceptors"
)

// Mode represents the server operating mode.
type Mode string

const (
	ModeStrict Mode = "strict"
	ModeDev    Mode = "dev"
)

// MinSecretLength is the minimum JWT secret length in strict mode.
const MinSecretLength = 32

// ParseMode parses a mode string, returning an error for invalid values.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict", "":
		return ModeStrict, nil
	case "dev":
		return ModeDev, nil
	default:
		return "", fmt.Errorf("invalid mode %q: must be one of strict, dev", s)
	}
}

// LoaderOptions controls how configuration is loaded.
type LoaderOptions struct {
	// ConfigPath is the path to a TOML config file (optional).
	// If provided but file is missing or invalid, loading fails.
	ConfigPath string

	// ModeFlag is the --mode flag value (overrides env and config file mode).
	ModeFlag string

	// FlagOverrides are CLI flag values that override config file values.
	FlagOverrides FlagOverrides

	// Env replaces the process environment for HUDDLE_* lookups.
	// If nil, os.Environ() is used.
	Env map[string]string

	// Logger is used for warning messages (e.g., undecoded keys).
	// If nil, slog.Default() is used.
	Logger *slog.Logger
}

// FlagOverrides holds CLI flag values that override config file values.
type FlagOverrides struct {
	ListenAddr    *string
	AdminUsername *string
	AdminPassword *string
	LoggingLevel  *string
	StoreDriver   *string
	DataDir       *string
}

// fileConfig mirrors Config but with pointer fields to detect presence.
type fileConfig struct {
	Mode       string        `toml:"mode"`
	ListenAddr string        `toml:"listen_addr"`
	Server     *serverConfig `toml:"server"`

	Auth          *authConfig          `toml:"auth"`
	Store         *StoreConfig         `toml:"store"`
	Notifications *NotificationsConfig `toml:"notifications"`
	Logging       *loggingConfig       `toml:"logging"`
	HTTP          *httpFileConfig      `toml:"http"`
}

type serverConfig struct {
	TrustedProxies []string              `toml:"trusted_proxies"`
	BootstrapAdmin *BootstrapAdminConfig `toml:"bootstrap_admin"`
}

type authConfig struct {
	JWTSecret       string `toml:"jwt_secret"`
	TokenTTLSeconds int    `toml:"token_ttl_seconds"`
	Issuer          string `toml:"issuer"`
}

// httpFileConfig holds per-service HTTP configuration from TOML.
type httpFileConfig struct {
	Services     map[string]map[string]any `toml:"services"`
	Interceptors map[string]map[string]any `toml:"interceptors"`
}

// loggingConfig holds logging settings from TOML.
type loggingConfig struct {
	Level          string `toml:"level"`
	AllowSensitive *bool  `toml:"allow_sensitive"`
}

// envConfig is the HUDDLE_* environment overlay. Empty strings and nil
// pointers mean unset.
type envConfig struct {
	Mode              string   `env:"HUDDLE_MODE"`
	ListenAddr        string   `env:"HUDDLE_LISTEN_ADDR"`
	TrustedProxies    []string `env:"HUDDLE_TRUSTED_PROXIES" envSeparator:","`
	AdminUsername     string   `env:"HUDDLE_ADMIN_USERNAME"`
	AdminPassword     string   `env:"HUDDLE_ADMIN_PASSWORD"`
	JWTSecret         string   `env:"HUDDLE_JWT_SECRET"`
	TokenTTLSeconds   *int     `env:"HUDDLE_TOKEN_TTL_SECONDS"`
	TokenIssuer       string   `env:"HUDDLE_TOKEN_ISSUER"`
	StoreDriver       string   `env:"HUDDLE_STORE_DRIVER"`
	DataDir           string   `env:"HUDDLE_DATA_DIR"`
	NotificationQueue *int     `env:"HUDDLE_NOTIFICATION_QUEUE_SIZE"`
	LogLevel          string   `env:"HUDDLE_LOG_LEVEL"`
}

// Load loads configuration with the following precedence:
//  1. Determine mode: flag > HUDDLE_MODE > config file > default (strict)
//  2. Start from mode preset
//  3. Overlay TOML config file values
//  4. Overlay HUDDLE_* environment values
//  5. Overlay CLI flags
//  6. Fill the dev-mode ephemeral secret
//  7. Validate
//
// If ConfigPath is provided but the file is missing, unreadable, or invalid TOML,
// Load returns an error (fail fast). Unknown/undecoded TOML keys produce a warning
// but do not fail the load.
func Load(opts LoaderOptions) (*Config, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var fc fileConfig

	// Step 1: Load TOML file if provided
	if opts.ConfigPath != "" {
		data, err := os.ReadFile(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", opts.ConfigPath, err)
		}
		md, err := toml.Decode(string(data), &fc)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", opts.ConfigPath, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			logger.Warn("config file contains undecoded keys", "path", opts.ConfigPath, "keys", keys)
		}
	}

	var ec envConfig
	if err := env.ParseWithOptions(&ec, env.Options{Environment: opts.Env}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	// Step 2: Determine effective mode
	modeStr := "strict"
	if fc.Mode != "" {
		modeStr = fc.Mode
	}
	if ec.Mode != "" {
		modeStr = ec.Mode
	}
	if opts.ModeFlag != "" {
		modeStr = opts.ModeFlag
	}

	mode, err := ParseMode(modeStr)
	if err != nil {
		return nil, err
	}

	cfg := presetForMode(mode)

	if opts.ConfigPath != "" {
		overlayFileConfig(cfg, &fc)
	}
	overlayEnv(cfg, &ec)
	overlayFlags(cfg, opts.FlagOverrides)

	if mode == ModeDev && cfg.Auth.JWTSecret == "" {
		secret, err := ephemeralSecret()
		if err != nil {
			return nil, fmt.Errorf("failed to generate ephemeral jwt secret: %w", err)
		}
		cfg.Auth.JWTSecret = secret
		cfg.Auth.EphemeralSecret = true
		logger.Warn("no jwt_secret configured; using an ephemeral secret, credentials will not survive a restart")
	}

	if err := validateEnums(cfg); err != nil {
		return nil, err
	}
	if err := validateAuth(cfg, mode); err != nil {
		return nil, err
	}
	if err := validateRatelimitConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// presetForMode returns the base config for a given mode.
func presetForMode(mode Mode) *Config {
	if mode == ModeDev {
		return DevConfig()
	}
	return StrictConfig()
}

// StrictConfig returns the production preset.
func StrictConfig() *Config {
	return &Config{
		Mode:       string(ModeStrict),
		ListenAddr: ":8080",
		Server: ServerConfig{
			TrustedProxies: []string{"127.0.0.0/8", "::1/128"},
		},
		Auth: AuthConfig{
			TokenTTLSeconds: 86400,
			Issuer:          "huddle-go",
		},
		Store: StoreConfig{
			Driver:  "sqlite",
			DataDir: ".huddle/data",
		},
		Notifications: NotificationsConfig{QueueSize: 256},
		Logging:       LoggingConfig{Level: "info"},
	}
}

// DevConfig returns the local development preset: in-memory store and
// verbose logging.
func DevConfig() *Config {
	cfg := StrictConfig()
	cfg.Mode = string(ModeDev)
	cfg.Store.Driver = "memory"
	cfg.Store.DataDir = ""
	cfg.Logging.Level = "debug"
	return cfg
}

func overlayFileConfig(cfg *Config, fc *fileConfig) {
	if fc.ListenAddr != "" {
		cfg.ListenAddr = fc.ListenAddr
	}

	if fc.Server != nil {
		if fc.Server.TrustedProxies != nil {
			cfg.Server.TrustedProxies = fc.Server.TrustedProxies
		}
		if ba := fc.Server.BootstrapAdmin; ba != nil {
			if ba.Username != "" {
				cfg.Server.BootstrapAdmin.Username = ba.Username
			}
			if ba.Password != "" {
				cfg.Server.BootstrapAdmin.Password = ba.Password
			}
		}
	}

	if fc.Auth != nil {
		if fc.Auth.JWTSecret != "" {
			cfg.Auth.JWTSecret = fc.Auth.JWTSecret
		}
		if fc.Auth.TokenTTLSeconds != 0 {
			cfg.Auth.TokenTTLSeconds = fc.Auth.TokenTTLSeconds
		}
		if fc.Auth.Issuer != "" {
			cfg.Auth.Issuer = fc.Auth.Issuer
		}
	}

	if fc.Store != nil {
		if fc.Store.Driver != "" {
			cfg.Store.Driver = fc.Store.Driver
		}
		if fc.Store.DataDir != "" {
			cfg.Store.DataDir = fc.Store.DataDir
		}
	}

	if fc.Notifications != nil && fc.Notifications.QueueSize != 0 {
		cfg.Notifications.QueueSize = fc.Notifications.QueueSize
	}

	if fc.Logging != nil {
		if fc.Logging.Level != "" {
			cfg.Logging.Level = fc.Logging.Level
		}
		if fc.Logging.AllowSensitive != nil {
			cfg.Logging.AllowSensitive = *fc.Logging.AllowSensitive
		}
	}

	if fc.HTTP != nil {
		if fc.HTTP.Services != nil {
			cfg.HTTP.Services = fc.HTTP.Services
		}
		if fc.HTTP.Interceptors != nil {
			cfg.HTTP.Interceptors = fc.HTTP.Interceptors
		}
	}
}

func overlayEnv(cfg *Config, ec *envConfig) {
	if ec.ListenAddr != "" {
		cfg.ListenAddr = ec.ListenAddr
	}
	if len(ec.TrustedProxies) > 0 {
		proxies := make([]string, 0, len(ec.TrustedProxies))
		for _, p := range ec.TrustedProxies {
			if p = strings.TrimSpace(p); p != "" {
				proxies = append(proxies, p)
			}
		}
		cfg.Server.TrustedProxies = proxies
	}
	if ec.AdminUsername != "" {
		cfg.Server.BootstrapAdmin.Username = ec.AdminUsername
	}
	if ec.AdminPassword != "" {
		cfg.Server.BootstrapAdmin.Password = ec.AdminPassword
	}
	if ec.JWTSecret != "" {
		cfg.Auth.JWTSecret = ec.JWTSecret
	}
	if ec.TokenTTLSeconds != nil {
		cfg.Auth.TokenTTLSeconds = *ec.TokenTTLSeconds
	}
	if ec.TokenIssuer != "" {
		cfg.Auth.Issuer = ec.TokenIssuer
	}
	if ec.StoreDriver != "" {
		cfg.Store.Driver = ec.StoreDriver
	}
	if ec.DataDir != "" {
		cfg.Store.DataDir = ec.DataDir
	}
	if ec.NotificationQueue != nil {
		cfg.Notifications.QueueSize = *ec.NotificationQueue
	}
	if ec.LogLevel != "" {
		cfg.Logging.Level = ec.LogLevel
	}
}

func overlayFlags(cfg *Config, f FlagOverrides) {
	if f.ListenAddr != nil && *f.ListenAddr != "" {
		cfg.ListenAddr = *f.ListenAddr
	}
	if f.AdminUsername != nil && *f.AdminUsername != "" {
		cfg.Server.BootstrapAdmin.Username = *f.AdminUsername
	}
	if f.AdminPassword != nil && *f.AdminPassword != "" {
		cfg.Server.BootstrapAdmin.Password = *f.AdminPassword
	}
	if f.LoggingLevel != nil && *f.LoggingLevel != "" {
		cfg.Logging.Level = *f.LoggingLevel
	}
	if f.StoreDriver != nil && *f.StoreDriver != "" {
		cfg.Store.Driver = *f.StoreDriver
	}
	if f.DataDir != nil && *f.DataDir != "" {
		cfg.Store.DataDir = *f.DataDir
	}
}

func ephemeralSecret() (string, error) {
	b := make([]byte, MinSecretLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// validateEnums checks enum-like fields and fails fast on invalid values.
func validateEnums(cfg *Config) error {
	switch cfg.Store.Driver {
	case "memory":
	case "sqlite":
		if cfg.Store.DataDir == "" {
			return fmt.Errorf("store.data_dir is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("invalid store.driver %q: must be one of memory, sqlite", cfg.Store.Driver)
	}

	switch strings.ToLower(cfg.Logging.Level) {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level %q: must be one of trace, debug, info, warn, error", cfg.Logging.Level)
	}

	if cfg.Notifications.QueueSize <= 0 {
		return fmt.Errorf("notifications.queue_size must be positive, got %d", cfg.Notifications.QueueSize)
	}
	return nil
}

func validateAuth(cfg *Config, mode Mode) error {
	if cfg.Auth.TokenTTLSeconds <= 0 {
		return fmt.Errorf("auth.token_ttl_seconds must be positive, got %d", cfg.Auth.TokenTTLSeconds)
	}
	if mode == ModeStrict && len(cfg.Auth.JWTSecret) < MinSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d bytes in strict mode", MinSecretLength)
	}
	return nil
}

// validateRatelimitConfig checks that profiles are maps and that every
// action binding under [http.services.<svc>.ratelimit] names a defined profile.
func validateRatelimitConfig(cfg *Config) error {
	profiles, err := interceptors.Profiles(cfg.HTTP.Interceptors, "ratelimit")
	if err != nil {
		return err
	}

	for svcName, svcCfg := range cfg.HTTP.Services {
		rlCfg, ok := svcCfg["ratelimit"]
		if !ok {
			continue
		}
		rlMap, ok := rlCfg.(map[string]any)
		if !ok {
			return fmt.Errorf("http.services.%s.ratelimit must be a map", svcName)
		}
		for action, ref := range rlMap {
			name, ok := ref.(string)
			if !ok {
				return fmt.Errorf("http.services.%s.ratelimit.%s must be a profile name", svcName, action)
			}
			if _, defined := profiles[name]; !defined {
				return fmt.Errorf("http.services.%s.ratelimit.%s references undefined profile %q", svcName, action, name)
			}
		}
	}
	return nil
}

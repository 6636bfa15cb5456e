// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Config holds the server configuration.
type Config struct {
	// Mode is the operating mode: strict or dev.
	Mode string `toml:"mode"`

	// ListenAddr is the address to listen on.
	// Example: ":8080"
	ListenAddr string `toml:"listen_addr"`

	// Server holds server-level settings.
	Server ServerConfig `toml:"server"`

	// Auth holds bearer credential settings.
	Auth AuthConfig `toml:"auth"`

	// Store selects the persistence driver.
	Store StoreConfig `toml:"store"`

	// Notifications configures the asynchronous emitter.
	Notifications NotificationsConfig `toml:"notifications"`

	// Logging configuration
	Logging LoggingConfig `toml:"logging"`

	// HTTP holds per-service HTTP configuration (Reva-style).
	HTTP HTTPConfig `toml:"http"`
}

// ServerConfig holds server-level settings.
type ServerConfig struct {
	// TrustedProxies lists CIDRs whose forwarding headers are honored when
	// deriving the client address.
	TrustedProxies []string `toml:"trusted_proxies"`

	// BootstrapAdmin is created (or rotated) at startup when Username is set.
	BootstrapAdmin BootstrapAdminConfig `toml:"bootstrap_admin"`
}

// BootstrapAdminConfig holds initial admin credentials.
type BootstrapAdminConfig struct {
	Username string `toml:"username"`
	// Password may be empty; a random one is generated and logged once.
	Password string `toml:"password"`
}

// AuthConfig holds bearer credential settings.
type AuthConfig struct {
	// JWTSecret signs and verifies HS256 credentials. At least 32 bytes in
	// strict mode. Dev mode generates an ephemeral secret when empty.
	JWTSecret string `toml:"jwt_secret"`

	// TokenTTLSeconds is the credential lifetime. Default: 86400.
	TokenTTLSeconds int `toml:"token_ttl_seconds"`

	// Issuer is the iss claim. Default: "huddle-go".
	Issuer string `toml:"issuer"`

	// EphemeralSecret is set when JWTSecret was generated at load time.
	EphemeralSecret bool `toml:"-"`
}

// TokenTTL returns TokenTTLSeconds as a duration.
func (a AuthConfig) TokenTTL() time.Duration {
	return time.Duration(a.TokenTTLSeconds) * time.Second
}

// StoreConfig selects the persistence driver.
type StoreConfig struct {
	// Driver is memory or sqlite.
	Driver string `toml:"driver"`

	// DataDir holds the sqlite database. Required for sqlite.
	DataDir string `toml:"data_dir"`
}

// NotificationsConfig configures the asynchronous emitter.
type NotificationsConfig struct {
	// QueueSize bounds pending notifications; overflow is dropped. Default: 256.
	QueueSize int `toml:"queue_size"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Default: info in strict mode, debug in dev mode.
	Level string `toml:"level"`

	// AllowSensitive permits logging of sensitive values (tokens, secrets).
	// Default: false. Use only for debugging.
	AllowSensitive bool `toml:"allow_sensitive"`
}

// HTTPConfig holds per-service HTTP configuration.
// Services are configured under [http.services.<svcname>].
// Interceptors are configured under [http.interceptors.<name>].
type HTTPConfig struct {
	// Services maps service names to their raw config maps.
	// Each service decodes its own config via cfg.Decode() with Setter interface.
	Services map[string]map[string]any `toml:"services"`

	// Interceptors maps interceptor names to their raw config maps.
	// Ratelimit profiles live at [http.interceptors.ratelimit.profiles.<name>].
	// The api service binds actions to profiles under [http.services.api.ratelimit].
	Interceptors map[string]map[string]any `toml:"interceptors"`
}

// BuildServiceConfig returns the raw service config map for a given service name.
// Returns nil if the service is not configured in [http.services.<name>].
func (c *Config) BuildServiceConfig(serviceName string) map[string]any {
	if c.HTTP.Services == nil {
		return nil
	}
	svcCfg, ok := c.HTTP.Services[serviceName]
	if !ok {
		return nil
	}
	// Return a copy to prevent mutation
	result := make(map[string]any, len(svcCfg))
	for k, v := range svcCfg {
		result[k] = v
	}
	return result
}

// Redacted returns a string representation of the config with secrets redacted.
func (c *Config) Redacted() string {
	var sb strings.Builder
	sb.WriteString("Config{\n")
	fmt.Fprintf(&sb, "  Mode: %q,\n", c.Mode)
	fmt.Fprintf(&sb, "  ListenAddr: %q,\n", c.ListenAddr)
	sb.WriteString("  Server: {\n")
	fmt.Fprintf(&sb, "    TrustedProxies: %v,\n", c.Server.TrustedProxies)
	sb.WriteString("    BootstrapAdmin: {\n")
	fmt.Fprintf(&sb, "      Username: %q,\n", c.Server.BootstrapAdmin.Username)
	sb.WriteString("      Password: [REDACTED],\n")
	sb.WriteString("    },\n")
	sb.WriteString("  },\n")
	sb.WriteString("  Auth: {\n")
	sb.WriteString("    JWTSecret: [REDACTED],\n")
	fmt.Fprintf(&sb, "    EphemeralSecret: %v,\n", c.Auth.EphemeralSecret)
	fmt.Fprintf(&sb, "    TokenTTLSeconds: %d,\n", c.Auth.TokenTTLSeconds)
	fmt.Fprintf(&sb, "    Issuer: %q,\n", c.Auth.Issuer)
	sb.WriteString("  },\n")
	sb.WriteString("  Store: {\n")
	fmt.Fprintf(&sb, "    Driver: %q,\n", c.Store.Driver)
	fmt.Fprintf(&sb, "    DataDir: %q,\n", c.Store.DataDir)
	sb.WriteString("  },\n")
	fmt.Fprintf(&sb, "  Notifications: { QueueSize: %d },\n", c.Notifications.QueueSize)
	sb.WriteString("  Logging: {\n")
	fmt.Fprintf(&sb, "    Level: %q,\n", c.Logging.Level)
	fmt.Fprintf(&sb, "    AllowSensitive: %v,\n", c.Logging.AllowSensitive)
	sb.WriteString("  },\n")
	sb.WriteString("  HTTP: {\n")
	fmt.Fprintf(&sb, "    Services: %v,\n", sortedKeys(c.HTTP.Services))
	fmt.Fprintf(&sb, "    Interceptors: %v,\n", sortedKeys(c.HTTP.Interceptors))
	sb.WriteString("  },\n")
	sb.WriteString("}")
	return sb.String()
}

func sortedKeys(m map[string]map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

// secretEnv isolates tests from the process environment.
func secretEnv() map[string]string {
	return map[string]string{"HUDDLE_JWT_SECRET": testSecret}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Mode
		wantErr bool
	}{
		{"strict", "strict", ModeStrict, false},
		{"dev", "dev", ModeDev, false},
		{"empty defaults to strict", "", ModeStrict, false},
		{"uppercase", "STRICT", ModeStrict, false},
		{"whitespace", "  dev  ", ModeDev, false},
		{"interop is gone", "interop", "", true},
		{"invalid", "invalid", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMode(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseMode(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("ParseMode(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoad_StrictDefaults(t *testing.T) {
	cfg, err := Load(LoaderOptions{Env: secretEnv()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Mode != "strict" {
		t.Errorf("expected mode strict, got %s", cfg.Mode)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("expected listen :8080, got %s", cfg.ListenAddr)
	}
	if cfg.Store.Driver != "sqlite" || cfg.Store.DataDir == "" {
		t.Errorf("expected sqlite with a data dir, got %+v", cfg.Store)
	}
	if cfg.Auth.TokenTTLSeconds != 86400 {
		t.Errorf("expected ttl 86400, got %d", cfg.Auth.TokenTTLSeconds)
	}
	if cfg.Auth.EphemeralSecret {
		t.Error("strict mode must not generate a secret")
	}
	if cfg.Notifications.QueueSize != 256 {
		t.Errorf("expected queue size 256, got %d", cfg.Notifications.QueueSize)
	}
}

func TestLoad_StrictRequiresSecret(t *testing.T) {
	_, err := Load(LoaderOptions{Env: map[string]string{}})
	if err == nil || !strings.Contains(err.Error(), "jwt_secret") {
		t.Fatalf("expected jwt_secret error, got %v", err)
	}

	_, err = Load(LoaderOptions{Env: map[string]string{"HUDDLE_JWT_SECRET": "short"}})
	if err == nil {
		t.Fatal("expected short secret to be rejected")
	}
}

func TestLoad_DevGeneratesEphemeralSecret(t *testing.T) {
	cfg, err := Load(LoaderOptions{ModeFlag: "dev", Env: map[string]string{}})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Auth.EphemeralSecret {
		t.Error("expected ephemeral secret flag")
	}
	if len(cfg.Auth.JWTSecret) < MinSecretLength {
		t.Errorf("ephemeral secret too short: %d", len(cfg.Auth.JWTSecret))
	}
	if cfg.Store.Driver != "memory" {
		t.Errorf("expected memory driver in dev, got %s", cfg.Store.Driver)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug level in dev, got %s", cfg.Logging.Level)
	}
}

func TestLoad_ModePrecedence(t *testing.T) {
	path := writeConfig(t, `mode = "dev"`)

	tests := []struct {
		name string
		flag string
		env  string
		want string
	}{
		{"file only", "", "", "dev"},
		{"env beats file", "", "strict", "strict"},
		{"flag beats env", "dev", "strict", "dev"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := secretEnv()
			if tt.env != "" {
				e["HUDDLE_MODE"] = tt.env
			}
			cfg, err := Load(LoaderOptions{ConfigPath: path, ModeFlag: tt.flag, Env: e})
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if cfg.Mode != tt.want {
				t.Errorf("mode = %s, want %s", cfg.Mode, tt.want)
			}
		})
	}
}

func TestLoad_FileOverlay(t *testing.T) {
	path := writeConfig(t, `
listen_addr = ":9999"

[server]
trusted_proxies = ["10.0.0.0/8"]

[server.bootstrap_admin]
username = "root"
password = "hunter22"

[auth]
jwt_secret = "`+testSecret+`"
token_ttl_seconds = 600
issuer = "meetups"

[store]
driver = "memory"

[notifications]
queue_size = 16

[logging]
level = "warn"
allow_sensitive = true
`)

	cfg, err := Load(LoaderOptions{ConfigPath: path, Env: map[string]string{}})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ListenAddr != ":9999" {
		t.Errorf("listen = %s", cfg.ListenAddr)
	}
	if len(cfg.Server.TrustedProxies) != 1 || cfg.Server.TrustedProxies[0] != "10.0.0.0/8" {
		t.Errorf("trusted proxies = %v", cfg.Server.TrustedProxies)
	}
	if cfg.Server.BootstrapAdmin.Username != "root" || cfg.Server.BootstrapAdmin.Password != "hunter22" {
		t.Errorf("bootstrap admin = %+v", cfg.Server.BootstrapAdmin)
	}
	if cfg.Auth.TokenTTL().Seconds() != 600 || cfg.Auth.Issuer != "meetups" {
		t.Errorf("auth = %+v", cfg.Auth)
	}
	if cfg.Store.Driver != "memory" {
		t.Errorf("driver = %s", cfg.Store.Driver)
	}
	if cfg.Notifications.QueueSize != 16 {
		t.Errorf("queue = %d", cfg.Notifications.QueueSize)
	}
	if cfg.Logging.Level != "warn" || !cfg.Logging.AllowSensitive {
		t.Errorf("logging = %+v", cfg.Logging)
	}
}

func TestLoad_EnvBeatsFileAndFlagsBeatEnv(t *testing.T) {
	path := writeConfig(t, `
listen_addr = ":7000"

[logging]
level = "warn"
`)
	e := secretEnv()
	e["HUDDLE_LISTEN_ADDR"] = ":7001"
	e["HUDDLE_LOG_LEVEL"] = "error"
	e["HUDDLE_TRUSTED_PROXIES"] = "10.0.0.0/8, 192.168.0.0/16"
	e["HUDDLE_TOKEN_TTL_SECONDS"] = "60"
	e["HUDDLE_NOTIFICATION_QUEUE_SIZE"] = "8"

	level := "debug"
	cfg, err := Load(LoaderOptions{
		ConfigPath:    path,
		Env:           e,
		FlagOverrides: FlagOverrides{LoggingLevel: &level},
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ListenAddr != ":7001" {
		t.Errorf("listen = %s, want env value", cfg.ListenAddr)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %s, want flag value", cfg.Logging.Level)
	}
	if len(cfg.Server.TrustedProxies) != 2 || cfg.Server.TrustedProxies[1] != "192.168.0.0/16" {
		t.Errorf("trusted proxies = %v", cfg.Server.TrustedProxies)
	}
	if cfg.Auth.TokenTTLSeconds != 60 {
		t.Errorf("ttl = %d", cfg.Auth.TokenTTLSeconds)
	}
	if cfg.Notifications.QueueSize != 8 {
		t.Errorf("queue = %d", cfg.Notifications.QueueSize)
	}
}

func TestLoad_InvalidEnvNumber(t *testing.T) {
	e := secretEnv()
	e["HUDDLE_TOKEN_TTL_SECONDS"] = "soon"
	if _, err := Load(LoaderOptions{Env: e}); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad driver", "[store]\ndriver = \"postgres\"", "store.driver"},
		{"bad level", "[logging]\nlevel = \"loud\"", "logging.level"},
		{"negative ttl", "[auth]\ntoken_ttl_seconds = -1", "token_ttl_seconds"},
		{"negative queue", "[notifications]\nqueue_size = -4", "queue_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(LoaderOptions{ConfigPath: writeConfig(t, tt.content), Env: secretEnv()})
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoad_SqliteRequiresDataDir(t *testing.T) {
	cfg := StrictConfig()
	cfg.Store.DataDir = ""
	if err := validateEnums(cfg); err == nil {
		t.Fatal("expected data_dir error")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(LoaderOptions{ConfigPath: "/nonexistent/config.toml", Env: secretEnv()})
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_InvalidTOML(t *testing.T) {
	_, err := Load(LoaderOptions{ConfigPath: writeConfig(t, "listen_addr = "), Env: secretEnv()})
	if err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoad_RatelimitProfiles(t *testing.T) {
	valid := `
[http.interceptors.ratelimit.profiles.strict]
requests_per_window = 5
window_seconds = 3600

[http.services.api.ratelimit]
signup = "strict"
`
	cfg, err := Load(LoaderOptions{ConfigPath: writeConfig(t, valid), Env: secretEnv()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	api := cfg.BuildServiceConfig("api")
	if api == nil {
		t.Fatal("expected api service config")
	}
	api["mutated"] = true
	if _, ok := cfg.HTTP.Services["api"]["mutated"]; ok {
		t.Error("BuildServiceConfig must return a copy")
	}

	undefined := `
[http.services.api.ratelimit]
signup = "missing"
`
	_, err = Load(LoaderOptions{ConfigPath: writeConfig(t, undefined), Env: secretEnv()})
	if err == nil || !strings.Contains(err.Error(), "undefined profile") {
		t.Fatalf("expected undefined profile error, got %v", err)
	}

	notAName := `
[http.interceptors.ratelimit.profiles.strict]
requests_per_window = 5

[http.services.api.ratelimit]
signup = 5
`
	_, err = Load(LoaderOptions{ConfigPath: writeConfig(t, notAName), Env: secretEnv()})
	if err == nil || !strings.Contains(err.Error(), "profile name") {
		t.Fatalf("expected profile name error, got %v", err)
	}
}

func TestBuildServiceConfig_Unconfigured(t *testing.T) {
	cfg := StrictConfig()
	if cfg.BuildServiceConfig("api") != nil {
		t.Error("expected nil for unconfigured service")
	}
}

func TestRedacted(t *testing.T) {
	cfg := StrictConfig()
	cfg.Auth.JWTSecret = testSecret
	cfg.Server.BootstrapAdmin.Password = "hunter22"

	out := cfg.Redacted()
	if strings.Contains(out, testSecret) || strings.Contains(out, "hunter22") {
		t.Errorf("Redacted() leaked a secret:\n%s", out)
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Error("expected redaction marker")
	}
}

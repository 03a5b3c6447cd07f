package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/datafetch/pkg/cache"
	"github.com/Sternrassler/datafetch/pkg/logging"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "datafetch.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Server.Port)
	}
	if cfg.Cache.Namespace != cache.DefaultNamespace {
		t.Errorf("Namespace = %q, want %q", cfg.Cache.Namespace, cache.DefaultNamespace)
	}
	if cfg.Fetch.BackoffUnit.Duration != time.Second {
		t.Errorf("BackoffUnit = %v, want 1s", cfg.Fetch.BackoffUnit.Duration)
	}
	if cfg.Redis.Addr != "" {
		t.Errorf("Redis.Addr = %q, want empty", cfg.Redis.Addr)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
[server]
port = "9090"

[redis]
addr = "redis:6379"
db = 2
retain = "48h"

[cache]
namespace = "swapi"

[fetch]
backoff_unit = "250ms"
retry = 3

[transport]
user_agent = "swapi-proxy/1.0"
timeout = "10s"

[log]
level = "debug"
pretty = true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Server.Port)
	}
	if cfg.Redis.Addr != "redis:6379" || cfg.Redis.DB != 2 {
		t.Errorf("Redis = %+v", cfg.Redis)
	}
	if cfg.Redis.Retain.Duration != 48*time.Hour {
		t.Errorf("Retain = %v, want 48h", cfg.Redis.Retain.Duration)
	}
	if cfg.Cache.Namespace != "swapi" {
		t.Errorf("Namespace = %q, want swapi", cfg.Cache.Namespace)
	}
	if cfg.Fetch.BackoffUnit.Duration != 250*time.Millisecond {
		t.Errorf("BackoffUnit = %v, want 250ms", cfg.Fetch.BackoffUnit.Duration)
	}
	if cfg.Fetch.Retry != 3 {
		t.Errorf("Retry = %d, want 3", cfg.Fetch.Retry)
	}
	if cfg.Transport.UserAgent != "swapi-proxy/1.0" || cfg.Transport.Timeout.Duration != 10*time.Second {
		t.Errorf("Transport = %+v", cfg.Transport)
	}
	if cfg.Log.Level != "debug" || !cfg.Log.Pretty {
		t.Errorf("Log = %+v", cfg.Log)
	}
}

func TestLoad_KeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
[cache]
namespace = "partial"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Cache.Namespace != "partial" {
		t.Errorf("Namespace = %q, want partial", cfg.Cache.Namespace)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("Port = %q, want default 8080", cfg.Server.Port)
	}
	if cfg.Fetch.BackoffUnit.Duration != time.Second {
		t.Errorf("BackoffUnit = %v, want default 1s", cfg.Fetch.BackoffUnit.Duration)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		contains string
	}{
		{
			name:     "invalid toml",
			content:  "[server\nport = 1",
			contains: "parse config",
		},
		{
			name:     "invalid duration",
			content:  "[fetch]\nbackoff_unit = \"soon\"",
			contains: "parse config",
		},
		{
			name:     "unknown key",
			content:  "[server]\nhost = \"0.0.0.0\"",
			contains: "unknown key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("Error %q does not contain %q", err.Error(), tt.contains)
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://cache:6379/1")
	t.Setenv("REDIS_PASSWORD", "secret")
	t.Setenv("PORT", "9999")
	t.Setenv("CACHE_NAMESPACE", "env-ns")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LOG_PRETTY", "true")
	t.Setenv("USER_AGENT", "env-agent/2.0")
	t.Setenv("BACKOFF_UNIT", "2s")

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}

	if cfg.Redis.Addr != "redis://cache:6379/1" || cfg.Redis.Password != "secret" {
		t.Errorf("Redis = %+v", cfg.Redis)
	}
	if cfg.Server.Port != "9999" {
		t.Errorf("Port = %q", cfg.Server.Port)
	}
	if cfg.Cache.Namespace != "env-ns" {
		t.Errorf("Namespace = %q", cfg.Cache.Namespace)
	}
	if cfg.Log.Level != "warn" || !cfg.Log.Pretty {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if cfg.Transport.UserAgent != "env-agent/2.0" {
		t.Errorf("UserAgent = %q", cfg.Transport.UserAgent)
	}
	if cfg.Fetch.BackoffUnit.Duration != 2*time.Second {
		t.Errorf("BackoffUnit = %v", cfg.Fetch.BackoffUnit.Duration)
	}

	opts, err := cfg.RedisOptions()
	if err != nil {
		t.Fatalf("RedisOptions failed: %v", err)
	}
	if opts.Addr != "cache:6379" || opts.DB != 1 || opts.Password != "secret" {
		t.Errorf("RedisOptions = addr %q db %d password %q", opts.Addr, opts.DB, opts.Password)
	}
}

func TestApplyEnv_Invalid(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"LOG_PRETTY", "sometimes"},
		{"BACKOFF_UNIT", "fast"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			cfg := DefaultConfig()
			err := cfg.ApplyEnv()
			if err == nil || !strings.Contains(err.Error(), tt.key) {
				t.Errorf("Expected %s error, got %v", tt.key, err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		modify   func(c *Config)
		contains string
	}{
		{
			name:     "empty port",
			modify:   func(c *Config) { c.Server.Port = "" },
			contains: "server port is required",
		},
		{
			name:     "non numeric port",
			modify:   func(c *Config) { c.Server.Port = "http" },
			contains: "invalid server port",
		},
		{
			name:     "empty namespace",
			modify:   func(c *Config) { c.Cache.Namespace = "" },
			contains: "cache namespace is required",
		},
		{
			name:     "zero backoff",
			modify:   func(c *Config) { c.Fetch.BackoffUnit = Duration{} },
			contains: "backoff unit must be positive",
		},
		{
			name:     "negative retry",
			modify:   func(c *Config) { c.Fetch.Retry = -1 },
			contains: "retry must be >= 0",
		},
		{
			name:     "empty user agent",
			modify:   func(c *Config) { c.Transport.UserAgent = "" },
			contains: "user agent is required",
		},
		{
			name:     "unknown log level",
			modify:   func(c *Config) { c.Log.Level = "verbose" },
			contains: "unknown log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("Error %q does not contain %q", err.Error(), tt.contains)
			}
		})
	}
}

func TestLogging(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Log.Level = "debug"
	cfg.Log.Pretty = true

	logCfg := cfg.Logging("fetchctl")
	if logCfg.Level != logging.LevelDebug || !logCfg.Pretty || logCfg.Service != "fetchctl" {
		t.Errorf("Logging = %+v", logCfg)
	}

	cfg.Log.Level = "bogus"
	if got := cfg.Logging("fetchctl").Level; got != logging.LevelInfo {
		t.Errorf("Unknown level should fall back to info, got %q", got)
	}
}

func TestOpenStore_Memory(t *testing.T) {
	store, closeStore, err := DefaultConfig().OpenStore(context.Background())
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	defer closeStore()

	if _, ok := store.(*cache.MemoryStore); !ok {
		t.Errorf("Expected *cache.MemoryStore, got %T", store)
	}
}

func TestOpenStore_RedisUnavailable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Redis.Addr = "127.0.0.1:1"

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, _, err := cfg.OpenStore(ctx); err == nil {
		t.Error("Expected connection error")
	}
}

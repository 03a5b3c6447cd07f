// Package config loads the settings shared by the datafetch commands from a
// TOML file and the environment.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/redis/go-redis/v9"

	"github.com/Sternrassler/datafetch/pkg/cache"
	"github.com/Sternrassler/datafetch/pkg/logging"
	"github.com/Sternrassler/datafetch/pkg/transport"
)

// Config holds the settings of fetch-proxy and fetchctl.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Redis     RedisConfig     `toml:"redis"`
	Cache     CacheConfig     `toml:"cache"`
	Fetch     FetchConfig     `toml:"fetch"`
	Transport TransportConfig `toml:"transport"`
	Log       LogConfig       `toml:"log"`
}

// ServerConfig configures the fetch-proxy listener.
type ServerConfig struct {
	Port string `toml:"port"`
}

// RedisConfig configures the shared cache. An empty Addr selects the
// in-memory store.
type RedisConfig struct {
	Addr     string   `toml:"addr"`
	Password string   `toml:"password"`
	DB       int      `toml:"db"`
	Retain   Duration `toml:"retain"`
}

// CacheConfig configures the cache namespace.
type CacheConfig struct {
	Namespace string `toml:"namespace"`
}

// FetchConfig configures orchestrator defaults.
type FetchConfig struct {
	BackoffUnit Duration `toml:"backoff_unit"`
	Retry       int      `toml:"retry"`
}

// TransportConfig configures the HTTP transport.
type TransportConfig struct {
	UserAgent string   `toml:"user_agent"`
	Timeout   Duration `toml:"timeout"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `toml:"level"`
	Pretty bool   `toml:"pretty"`
}

// Duration is a time.Duration written as a Go duration string ("1s", "250ms").
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{Port: "8080"},
		Cache:  CacheConfig{Namespace: cache.DefaultNamespace},
		Fetch:  FetchConfig{BackoffUnit: Duration{time.Second}},
		Transport: TransportConfig{
			UserAgent: transport.DefaultConfig().UserAgent,
		},
		Log: LogConfig{Level: string(logging.LevelInfo)},
	}
}

// Load reads a TOML file over the defaults. Keys missing from the file keep
// their default value.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, fmt.Errorf("parse config %s: unknown key %q", path, undecoded[0].String())
	}

	return cfg, nil
}

// ApplyEnv overrides settings from the environment:
// REDIS_URL, REDIS_PASSWORD, PORT, CACHE_NAMESPACE, LOG_LEVEL, LOG_PRETTY,
// USER_AGENT and BACKOFF_UNIT.
func (c *Config) ApplyEnv() error {
	if v, ok := lookupEnv("REDIS_URL"); ok {
		c.Redis.Addr = v
	}
	if v, ok := lookupEnv("REDIS_PASSWORD"); ok {
		c.Redis.Password = v
	}
	if v, ok := lookupEnv("PORT"); ok {
		c.Server.Port = v
	}
	if v, ok := lookupEnv("CACHE_NAMESPACE"); ok {
		c.Cache.Namespace = v
	}
	if v, ok := lookupEnv("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := lookupEnv("LOG_PRETTY"); ok {
		pretty, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("LOG_PRETTY: %w", err)
		}
		c.Log.Pretty = pretty
	}
	if v, ok := lookupEnv("USER_AGENT"); ok {
		c.Transport.UserAgent = v
	}
	if v, ok := lookupEnv("BACKOFF_UNIT"); ok {
		unit, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("BACKOFF_UNIT: %w", err)
		}
		c.Fetch.BackoffUnit = Duration{unit}
	}
	return nil
}

// Validate checks the settings for values the commands cannot run with.
func (c Config) Validate() error {
	var errs []error

	if c.Server.Port == "" {
		errs = append(errs, errors.New("server port is required"))
	} else if port, err := strconv.Atoi(c.Server.Port); err != nil || port < 0 || port > 65535 {
		errs = append(errs, fmt.Errorf("invalid server port %q", c.Server.Port))
	}
	if c.Cache.Namespace == "" {
		errs = append(errs, errors.New("cache namespace is required"))
	}
	if c.Fetch.BackoffUnit.Duration <= 0 {
		errs = append(errs, errors.New("backoff unit must be positive"))
	}
	if c.Fetch.Retry < 0 {
		errs = append(errs, errors.New("retry must be >= 0"))
	}
	if c.Transport.UserAgent == "" {
		errs = append(errs, errors.New("user agent is required"))
	}
	if c.Transport.Timeout.Duration < 0 {
		errs = append(errs, errors.New("transport timeout must be >= 0"))
	}
	if c.Redis.Retain.Duration < 0 {
		errs = append(errs, errors.New("redis retain must be >= 0"))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Logging returns the logger configuration. Validate first; unknown levels
// fall back to info.
func (c Config) Logging(service string) logging.Config {
	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		level = logging.LevelInfo
	}

	cfg := logging.DefaultConfig()
	cfg.Level = level
	cfg.Pretty = c.Log.Pretty
	cfg.Service = service
	return cfg
}

// HTTPTransport returns the HTTP transport configuration.
func (c Config) HTTPTransport() transport.Config {
	return transport.Config{
		UserAgent: c.Transport.UserAgent,
		Timeout:   c.Transport.Timeout.Duration,
	}
}

// RedisOptions returns client options for the configured address, which may be
// host:port or a redis:// URL.
func (c Config) RedisOptions() (*redis.Options, error) {
	if strings.HasPrefix(c.Redis.Addr, "redis://") || strings.HasPrefix(c.Redis.Addr, "rediss://") {
		opts, err := redis.ParseURL(c.Redis.Addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		if c.Redis.Password != "" {
			opts.Password = c.Redis.Password
		}
		return opts, nil
	}

	return &redis.Options{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	}, nil
}

// OpenStore connects the configured cache store. Without a Redis address the
// store is process local. The returned close function releases the client.
func (c Config) OpenStore(ctx context.Context) (cache.Store, func() error, error) {
	if c.Redis.Addr == "" {
		return cache.NewMemoryStore(), func() error { return nil }, nil
	}

	opts, err := c.RedisOptions()
	if err != nil {
		return nil, nil, err
	}

	client := redis.NewClient(opts)
	store := cache.NewRedisStore(client, cache.RedisConfig{Retain: c.Redis.Retain.Duration})
	if err := store.Ping(ctx); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}

	return store, client.Close, nil
}

func lookupEnv(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

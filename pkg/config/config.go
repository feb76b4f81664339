package config

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-inventory-cache/cache"
	"github.com/goliatone/go-inventory-cache/catalog"
	"github.com/goliatone/go-inventory-cache/query"
)

// Config is the inventory server configuration.
type Config struct {
	Server     ServerConfig   `yaml:"server"`
	Database   DatabaseConfig `yaml:"database"`
	Cache      CacheConfig    `yaml:"cache"`
	Pagination query.Policy   `yaml:"pagination"`
	Log        LogConfig      `yaml:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string   `yaml:"addr"`
	RequestTimeout  Duration `yaml:"request_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig selects the storage backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// CacheConfig sizes the response store and the relation cache.
type CacheConfig struct {
	Capacity      int             `yaml:"capacity"`
	SweepInterval Duration        `yaml:"sweep_interval"`
	ListingTTL    Duration        `yaml:"listing_ttl"`
	ReferenceTTL  Duration        `yaml:"reference_ttl"`
	Relations     RelationsConfig `yaml:"relations"`
}

// RelationsConfig mirrors cache.RelationConfig.
type RelationsConfig struct {
	Capacity           int      `yaml:"capacity"`
	Shards             int      `yaml:"shards"`
	TTL                Duration `yaml:"ttl"`
	EvictionPercentage int      `yaml:"eviction_percentage"`
}

// LogConfig selects the zap preset and level.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Duration is a time.Duration read from strings such as "90s", "10m" or "1d".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ParseDuration(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return str2duration.String(time.Duration(d)), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// ParseDuration accepts Go durations plus day and week units.
func ParseDuration(s string) (Duration, error) {
	v, err := str2duration.ParseDuration(s)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid duration %q", s)
	}
	return Duration(v), nil
}

// Defaults.
const (
	DefaultAddr            = ":8080"
	DefaultRequestTimeout  = 15 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultListingTTL      = 10 * time.Minute
	DefaultReferenceTTL    = 30 * time.Minute
)

// Default returns the configuration used when no file or env override is given.
func Default() Config {
	store := cache.DefaultConfig()
	return Config{
		Server: ServerConfig{
			Addr:            DefaultAddr,
			RequestTimeout:  Duration(DefaultRequestTimeout),
			ShutdownTimeout: Duration(DefaultShutdownTimeout),
		},
		Database: DatabaseConfig{
			Driver: catalog.DriverSQLite,
			DSN:    "file:inventory.db?cache=shared",
		},
		Cache: CacheConfig{
			Capacity:      store.Capacity,
			SweepInterval: Duration(store.SweepInterval),
			ListingTTL:    Duration(DefaultListingTTL),
			ReferenceTTL:  Duration(DefaultReferenceTTL),
			Relations: RelationsConfig{
				Capacity:           store.Relations.Capacity,
				Shards:             store.Relations.NumShards,
				TTL:                Duration(store.Relations.TTL),
				EvictionPercentage: store.Relations.EvictionPercentage,
			},
		},
		Pagination: query.DefaultPolicy(),
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// ConfigError reports an invalid configuration field.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}

// Validate checks the values the server cannot run without.
func (c Config) Validate() error {
	switch {
	case c.Server.Addr == "":
		return &ConfigError{Field: "server.addr", Message: "must not be empty"}
	case c.Server.RequestTimeout <= 0:
		return &ConfigError{Field: "server.request_timeout", Message: "must be greater than 0"}
	case c.Server.ShutdownTimeout < 0:
		return &ConfigError{Field: "server.shutdown_timeout", Message: "must be non-negative"}
	case c.Database.Driver != catalog.DriverPostgres && c.Database.Driver != catalog.DriverSQLite:
		return &ConfigError{Field: "database.driver", Message: "must be postgres or sqlite3"}
	case c.Database.DSN == "":
		return &ConfigError{Field: "database.dsn", Message: "must not be empty"}
	case c.Cache.ListingTTL <= 0:
		return &ConfigError{Field: "cache.listing_ttl", Message: "must be greater than 0"}
	case c.Cache.ReferenceTTL <= 0:
		return &ConfigError{Field: "cache.reference_ttl", Message: "must be greater than 0"}
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return &ConfigError{Field: "log.level", Message: "must be one of debug, info, warn, error"}
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return &ConfigError{Field: "log.format", Message: "must be json or console"}
	}

	if err := c.StoreConfig().Validate(); err != nil {
		return errors.Wrap(err, "cache")
	}
	if err := c.Pagination.Validate(); err != nil {
		return errors.Wrap(err, "pagination")
	}
	return nil
}

// StoreConfig converts the cache section to cache.Config.
func (c Config) StoreConfig() cache.Config {
	cfg := cache.DefaultConfig()
	cfg.Capacity = c.Cache.Capacity
	cfg.TTL = c.Cache.ListingTTL.Std()
	cfg.SweepInterval = c.Cache.SweepInterval.Std()
	cfg.Relations.Capacity = c.Cache.Relations.Capacity
	cfg.Relations.NumShards = c.Cache.Relations.Shards
	cfg.Relations.TTL = c.Cache.Relations.TTL.Std()
	cfg.Relations.EvictionPercentage = c.Cache.Relations.EvictionPercentage
	return cfg
}

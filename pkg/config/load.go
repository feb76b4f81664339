package config

import (
	"os"
	"strconv"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Environment variables read by Load.
const (
	EnvConfig        = "INVENTORY_CONFIG"
	EnvAddr          = "INVENTORY_ADDR"
	EnvDBDriver      = "INVENTORY_DB_DRIVER"
	EnvDBDSN         = "INVENTORY_DB_DSN"
	EnvLogLevel      = "INVENTORY_LOG_LEVEL"
	EnvListingTTL    = "INVENTORY_LISTING_TTL"
	EnvCacheCapacity = "INVENTORY_CACHE_CAPACITY"
)

// Load builds the configuration with this precedence: defaults, the YAML
// file at path (or $INVENTORY_CONFIG when path is empty), then environment
// overrides. The result is validated.
func Load(path string) (Config, error) {
	return LoadWithEnv(path, os.Getenv)
}

// LoadWithEnv is Load reading the environment through getenv.
func LoadWithEnv(path string, getenv func(string) string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = getenv(EnvConfig)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "parse config %s", path)
		}
	}

	if err := applyEnv(&cfg, getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	if v := getenv(EnvAddr); v != "" {
		cfg.Server.Addr = v
	}
	if v := getenv(EnvDBDriver); v != "" {
		cfg.Database.Driver = v
	}
	if v := getenv(EnvDBDSN); v != "" {
		cfg.Database.DSN = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
	if v := getenv(EnvListingTTL); v != "" {
		d, err := ParseDuration(v)
		if err != nil {
			return &ConfigError{Field: EnvListingTTL, Message: err.Error()}
		}
		cfg.Cache.ListingTTL = d
	}
	if v := getenv(EnvCacheCapacity); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &ConfigError{Field: EnvCacheCapacity, Message: "must be an integer"}
		}
		cfg.Cache.Capacity = n
	}
	return nil
}

// Package daemon holds the node configuration, loaded from
// $BAEKYA_HOME/config.toml (default ~/.baekya/config.toml).
package daemon

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/baekya-protocol/baekya/internal/app/issuance"
	"github.com/baekya-protocol/baekya/internal/app/protocol"
	"github.com/baekya-protocol/baekya/internal/domain"
	"github.com/baekya-protocol/baekya/internal/infra/emission"
)

// ConfigFile is the config file name inside the home directory.
const ConfigFile = "config.toml"

// Config is the full node configuration.
type Config struct {
	API       APIConfig               `toml:"api"`
	Storage   StorageConfig           `toml:"storage"`
	Log       LogConfig               `toml:"log"`
	Emission  emission.LifeExpectancy `toml:"emission"`
	Issuance  IssuanceConfig          `toml:"issuance"`
	Bootstrap BootstrapConfig         `toml:"bootstrap"`
}

// APIConfig controls the operational HTTP listener.
type APIConfig struct {
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	Metrics bool   `toml:"metrics"`
}

// StorageConfig locates the SQLite store. An empty Dir means <home>/data.
type StorageConfig struct {
	Dir string `toml:"dir"`
}

// LogConfig controls the logrus root logger.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "text" or "json"
}

// IssuanceConfig controls periodic P-token issuance.
type IssuanceConfig struct {
	Enabled      bool    `toml:"enabled"`
	Schedule     string  `toml:"schedule"`      // cron spec with seconds, or "@daily" style descriptor
	MinGuarantee float64 `toml:"min_guarantee"` // P paid to the last rank
	Window       string  `toml:"window"`        // first window length, e.g. "24h"
}

// BootstrapConfig controls the default DAOs created at startup.
type BootstrapConfig struct {
	DefaultDAOs     bool   `toml:"default_daos"`
	InitialOperator string `toml:"initial_operator"` // empty keeps the system identity
}

// DefaultConfig returns the out-of-the-box configuration.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host:    "127.0.0.1",
			Port:    3000,
			Metrics: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Emission: emission.DefaultConfig().LifeExpectancy,
		Issuance: IssuanceConfig{
			Enabled:      true,
			Schedule:     "@daily",
			MinGuarantee: 1,
			Window:       "24h",
		},
		Bootstrap: BootstrapConfig{
			DefaultDAOs: true,
		},
	}
}

// Home returns the node home directory: $BAEKYA_HOME, else ~/.baekya.
func Home() string {
	if h := os.Getenv("BAEKYA_HOME"); h != "" {
		return h
	}
	dir, err := os.UserHomeDir()
	if err != nil {
		return ".baekya"
	}
	return filepath.Join(dir, ".baekya")
}

// DefaultPath is the config file inside Home.
func DefaultPath() string {
	return filepath.Join(Home(), ConfigFile)
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path as TOML, creating parent directories.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

// Validate checks ranges and formats.
func (c Config) Validate() error {
	if c.API.Port < 1 || c.API.Port > 65535 {
		return fmt.Errorf("api.port %d out of range", c.API.Port)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format %q: want text or json", c.Log.Format)
	}
	le := c.Emission
	if le.Default <= 0 || le.Male <= 0 || le.Female <= 0 {
		return fmt.Errorf("emission life expectancies must be positive, got %+v", le)
	}
	if c.Issuance.MinGuarantee < 0 {
		return fmt.Errorf("issuance.min_guarantee must not be negative, got %v", c.Issuance.MinGuarantee)
	}
	if c.Issuance.Enabled {
		sched, err := c.IssuanceSchedule()
		if err != nil {
			return err
		}
		if err := sched.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Addr is the API listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}

// DataDir is the SQLite directory.
func (c Config) DataDir() string {
	if c.Storage.Dir != "" {
		return c.Storage.Dir
	}
	return filepath.Join(Home(), "data")
}

// Protocol converts the config into protocol service settings.
func (c Config) Protocol() protocol.Config {
	pc := protocol.DefaultConfig()
	pc.Emission = emission.Config{LifeExpectancy: c.Emission}
	pc.MinGuarantee = domain.AmountFromFloat(c.Issuance.MinGuarantee)
	return pc
}

// IssuanceSchedule converts the [issuance] section into scheduler settings.
func (c Config) IssuanceSchedule() (issuance.Config, error) {
	window, err := time.ParseDuration(c.Issuance.Window)
	if err != nil {
		return issuance.Config{}, fmt.Errorf("issuance.window %q: %w", c.Issuance.Window, err)
	}
	return issuance.Config{Schedule: c.Issuance.Schedule, Window: window}, nil
}

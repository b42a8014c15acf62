package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Compiled-in defaults. Only the device path is meant to be tuned; speed is
// accepted from the file for compatibility but must match DefaultSpeed.
const (
	DefaultDevice  = "/dev/ttyS1"
	DefaultSpeed   = 9600
	DefaultRefresh = "@every 1s"
	DefaultLevel   = "info"
)

// Config is the top-level application configuration.
type Config struct {
	// Device is the serial device the display is attached to.
	Device string `yaml:"device" json:"device"`

	// Speed is the baud rate. The panel only talks 9600; anything else is
	// reported and replaced at session init.
	Speed int `yaml:"speed" json:"speed"`

	// RefreshCron is a cron-style schedule (robfig/cron syntax, "@every"
	// descriptors allowed) driving status-screen redraws.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Device:      DefaultDevice,
		Speed:       DefaultSpeed,
		RefreshCron: DefaultRefresh,
		LogLevel:    DefaultLevel,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly. Speed is left alone when
// set so the session can warn about it.
func (c *Config) Normalize() {
	if c.Device == "" {
		c.Device = DefaultDevice
	}
	if c.Speed <= 0 {
		c.Speed = DefaultSpeed
	}
	if c.RefreshCron == "" {
		c.RefreshCron = DefaultRefresh
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLevel
	}
}

// DevicePath returns the configured serial device.
func (c *Config) DevicePath() string {
	return c.Device
}

// BaudRate returns the configured line speed.
func (c *Config) BaudRate() int {
	return c.Speed
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".axlcd-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

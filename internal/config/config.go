// Package config handles configuration loading, validation, and management for vnime.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"vnime/internal/logging"
)

// Version is the current configuration schema version.
const Version = 2

// Input method names accepted in configuration files.
const (
	MethodTelex = "telex"
	MethodVNI   = "vni"
)

// Config holds the complete input method configuration.
type Config struct {
	// Version is the configuration schema version for migrations.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Input controls the composition engine.
	Input InputConfig `toml:"input" json:"input" yaml:"input"`

	// Apps maps an application ID to the method used while it has focus.
	Apps map[string]string `toml:"apps" json:"apps" yaml:"apps"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// Storage configuration for per-application preferences and stats.
	Storage StorageConfig `toml:"storage" json:"storage" yaml:"storage"`

	// IBus host configuration.
	IBus IBusConfig `toml:"ibus" json:"ibus" yaml:"ibus"`

	mu sync.RWMutex `toml:"-" json:"-" yaml:"-"`
}

// InputConfig holds engine settings.
type InputConfig struct {
	// Method is "telex" or "vni".
	Method string `toml:"method" json:"method" yaml:"method"`

	// Enabled starts the engine in Vietnamese mode.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// AutoRestore replaces invalid words with the typed keys at a boundary.
	AutoRestore bool `toml:"auto_restore" json:"auto_restore" yaml:"auto_restore"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is "stdout", "stderr" or "file".
	Output string `toml:"output" json:"output" yaml:"output"`

	FilePath   string `toml:"file_path" json:"file_path" yaml:"file_path"`
	MaxSizeMB  int    `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" json:"max_backups" yaml:"max_backups"`
	Compress   bool   `toml:"compress" json:"compress" yaml:"compress"`
}

// StorageConfig holds persistence configuration.
type StorageConfig struct {
	// Path is the SQLite database file.
	Path string `toml:"path" json:"path" yaml:"path"`

	// BusyTimeoutMs is the SQLite busy timeout in milliseconds.
	BusyTimeoutMs int `toml:"busy_timeout_ms" json:"busy_timeout_ms" yaml:"busy_timeout_ms"`

	// RecordStats enables daily commit statistics.
	RecordStats bool `toml:"record_stats" json:"record_stats" yaml:"record_stats"`
}

// IBusConfig holds IBus host configuration.
type IBusConfig struct {
	// PerAppMethod applies the stored method when an application gains focus.
	PerAppMethod bool `toml:"per_app_method" json:"per_app_method" yaml:"per_app_method"`

	// SurroundingText allows DeleteSurroundingText when the client supports it.
	SurroundingText bool `toml:"surrounding_text" json:"surrounding_text" yaml:"surrounding_text"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dir := VnimeDir()

	return &Config{
		Version: Version,
		Input: InputConfig{
			Method:      MethodTelex,
			Enabled:     true,
			AutoRestore: true,
		},
		Apps: map[string]string{},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "file",
			FilePath:   filepath.Join(PlatformLogDir(), "vnime.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
			Compress:   true,
		},
		Storage: StorageConfig{
			Path:          filepath.Join(dir, "vnime.db"),
			BusyTimeoutMs: 5000,
			RecordStats:   true,
		},
		IBus: IBusConfig{
			PerAppMethod:    true,
			SurroundingText: true,
		},
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(PlatformConfigDir(), "config.toml")
}

// Load reads configuration from the specified path.
// If the file doesn't exist, returns default configuration.
// Supports TOML, JSON, and YAML formats based on file extension.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}
	cfg, err := loadConfigFromFile(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// MethodFor returns the method configured for app, falling back to the
// global input method.
func (c *Config) MethodFor(app string) string {
	if m, ok := c.AppOverride(app); ok {
		return m
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Input.Method
}

// AppOverride returns the method pinned to app in the apps section.
func (c *Config) AppOverride(app string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.Apps[app]
	return m, ok
}

// LoggerConfig converts the logging section for the named component.
func (c *Config) LoggerConfig(component string) (*logging.Config, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(c.Logging.Format)
	if err != nil {
		return nil, err
	}
	return &logging.Config{
		Level:      level,
		Format:     format,
		Output:     c.Logging.Output,
		FilePath:   c.Logging.FilePath,
		MaxSize:    int64(c.Logging.MaxSizeMB),
		MaxBackups: c.Logging.MaxBackups,
		Compress:   c.Logging.Compress,
		Component:  component,
	}, nil
}

// EnsureDirectories creates the directories the hosts write to.
func (c *Config) EnsureDirectories() error {
	dirs := []string{filepath.Dir(c.Storage.Path)}
	if c.Logging.Output == "file" {
		dirs = append(dirs, filepath.Dir(c.Logging.FilePath))
	}
	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// VnimeDir returns the base data directory.
// VNIME_DATA_DIR overrides the platform default.
func VnimeDir() string {
	if envDir := os.Getenv("VNIME_DATA_DIR"); envDir != "" {
		return envDir
	}
	return PlatformDataDir()
}

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables are prefixed with VNIME_.
func (c *Config) ApplyEnvOverrides() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v := os.Getenv("VNIME_METHOD"); v != "" {
		c.Input.Method = strings.ToLower(v)
	}
	if v, ok := envBool("VNIME_ENABLED"); ok {
		c.Input.Enabled = v
	}
	if v, ok := envBool("VNIME_AUTO_RESTORE"); ok {
		c.Input.AutoRestore = v
	}
	if v := os.Getenv("VNIME_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("VNIME_DB"); v != "" {
		c.Storage.Path = v
	}
}

func envBool(name string) (bool, bool) {
	v := os.Getenv(name)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	clone := &Config{
		Version: c.Version,
		Input:   c.Input,
		Apps:    make(map[string]string, len(c.Apps)),
		Logging: c.Logging,
		Storage: c.Storage,
		IBus:    c.IBus,
	}
	for app, m := range c.Apps {
		clone.Apps[app] = m
	}
	return clone
}

// Encode writes the configuration in the named format: toml, yaml or json.
func (c *Config) Encode(format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "toml", "":
		return encodeToTOML(c)
	case "yaml", "yml":
		return encodeToYAML(c)
	case "json":
		return encodeToJSON(c)
	default:
		return nil, fmt.Errorf("unknown config format %q", format)
	}
}

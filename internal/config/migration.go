package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// MigrationResult contains the result of a configuration migration.
type MigrationResult struct {
	FromVersion int
	ToVersion   int
	Backup      string
	Changes     []string
}

// MigrateConfig migrates a configuration from an older version to the current version.
// A backup of configPath is written first when configPath is set.
func MigrateConfig(cfg *Config, configPath string) (*MigrationResult, error) {
	if cfg.Version >= Version {
		return nil, nil
	}

	result := &MigrationResult{
		FromVersion: cfg.Version,
		ToVersion:   Version,
	}

	if configPath != "" {
		if backup, err := backupConfig(configPath); err == nil {
			result.Backup = backup
		}
	}

	for cfg.Version < Version {
		changes, err := applyMigration(cfg)
		if err != nil {
			return result, fmt.Errorf("migration from v%d to v%d failed: %w", cfg.Version, cfg.Version+1, err)
		}
		result.Changes = append(result.Changes, changes...)
	}
	return result, nil
}

func applyMigration(cfg *Config) ([]string, error) {
	var changes []string
	switch cfg.Version {
	case 0, 1:
		changes = migrateV1ToV2(cfg)
		cfg.Version = 2
	default:
		return nil, fmt.Errorf("unknown version %d", cfg.Version)
	}
	return changes, nil
}

// migrateV1ToV2 normalizes method names. Version 1 stored the method as
// the numeric menu index (0 Telex, 1 VNI) and allowed any case.
func migrateV1ToV2(cfg *Config) []string {
	var changes []string
	if m := legacyMethod(cfg.Input.Method); m != cfg.Input.Method {
		changes = append(changes, fmt.Sprintf("input.method %q -> %q", cfg.Input.Method, m))
		cfg.Input.Method = m
	}
	for app, method := range cfg.Apps {
		if m := legacyMethod(method); m != method {
			changes = append(changes, fmt.Sprintf("apps.%s %q -> %q", app, method, m))
			cfg.Apps[app] = m
		}
	}
	return changes
}

func legacyMethod(m string) string {
	switch strings.ToLower(strings.TrimSpace(m)) {
	case "0", "", MethodTelex:
		return MethodTelex
	case "1", MethodVNI:
		return MethodVNI
	default:
		return m
	}
}

func backupConfig(configPath string) (string, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", err
	}
	backup := fmt.Sprintf("%s.bak.%s", configPath, time.Now().Format("20060102-150405"))
	if err := os.WriteFile(backup, data, 0600); err != nil {
		return "", err
	}
	return backup, nil
}

// SaveConfig saves the configuration to a file. The format follows the
// file extension and defaults to TOML.
func SaveConfig(cfg *Config, path string) error {
	var format string
	switch filepath.Ext(path) {
	case ".json":
		format = "json"
	case ".yaml", ".yml":
		format = "yaml"
	default:
		format = "toml"
	}

	data, err := cfg.Encode(format)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func encodeToTOML(cfg *Config) ([]byte, error) {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	var buf bytes.Buffer
	buf.WriteString("# vnime configuration\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeToYAML(cfg *Config) ([]byte, error) {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()
	return yaml.Marshal(cfg)
}

func encodeToJSON(cfg *Config) ([]byte, error) {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()
	return json.MarshalIndent(cfg, "", "  ")
}

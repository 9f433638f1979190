package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

const reloadDelay = 100 * time.Millisecond

type decodeFunc func(data []byte, cfg *Config) error

var decoders = map[string]decodeFunc{
	".toml": func(data []byte, cfg *Config) error {
		_, err := toml.Decode(string(data), cfg)
		return err
	},
	".json": func(data []byte, cfg *Config) error { return json.Unmarshal(data, cfg) },
	".yaml": func(data []byte, cfg *Config) error { return yaml.Unmarshal(data, cfg) },
	".yml":  func(data []byte, cfg *Config) error { return yaml.Unmarshal(data, cfg) },
}

// Loader owns the configuration file of a long-running host. It keeps the
// last good configuration and, once Watch is called, reloads it whenever
// the file changes on disk.
type Loader struct {
	path string

	mu       sync.RWMutex
	current  *Config
	raw      []byte
	onChange []func(*Config)

	watcher *fsnotify.Watcher
	done    chan struct{}
	errs    chan error
}

// NewLoader returns a loader for path, or for ConfigPath() if path is empty.
func NewLoader(path string) *Loader {
	if path == "" {
		path = ConfigPath()
	}
	return &Loader{
		path: path,
		done: make(chan struct{}),
		errs: make(chan error, 1),
	}
}

// Path returns the configuration file.
func (l *Loader) Path() string { return l.path }

// Load reads, migrates and validates the file and makes it current.
func (l *Loader) Load() (*Config, error) {
	cfg, raw, err := l.read(true)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.current, l.raw = cfg, raw
	l.mu.Unlock()
	return cfg, nil
}

// read parses the file. Migration backups are only written on the initial
// load; a reload triggered by our own backup would loop.
func (l *Loader) read(backup bool) (*Config, []byte, error) {
	raw, err := os.ReadFile(l.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := decode(l.path, raw)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Version < Version {
		target := ""
		if backup {
			target = l.path
		}
		if _, err := MigrateConfig(cfg, target); err != nil {
			return nil, nil, fmt.Errorf("migration failed: %w", err)
		}
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("validation failed: %w", err)
	}
	return cfg, raw, nil
}

// Config returns the current configuration.
func (l *Loader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// OnChange registers cb to run after every successful reload.
func (l *Loader) OnChange(cb func(*Config)) {
	l.mu.Lock()
	l.onChange = append(l.onChange, cb)
	l.mu.Unlock()
}

// Errors delivers reload failures. Only the oldest undelivered error is
// kept.
func (l *Loader) Errors() <-chan error { return l.errs }

// Watch starts reloading the file when it changes. The directory is watched
// rather than the file because editors save by replacing it.
func (l *Loader) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		w.Close()
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	l.watcher = w
	go l.watch()
	return nil
}

func (l *Loader) watch() {
	name := filepath.Base(l.path)
	timer := time.NewTimer(reloadDelay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-l.done:
			return
		case ev, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) == name && ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				// Saves often arrive as several events; settle first.
				timer.Reset(reloadDelay)
			}
		case <-timer.C:
			l.reload()
		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			l.report(err)
		}
	}
}

func (l *Loader) reload() {
	cfg, raw, err := l.read(false)
	if err != nil {
		// The previous configuration stays in force.
		l.report(fmt.Errorf("reload %s: %w", l.path, err))
		return
	}

	l.mu.Lock()
	if bytes.Equal(raw, l.raw) && l.current != nil {
		l.mu.Unlock()
		return
	}
	l.current, l.raw = cfg, raw
	callbacks := append([]func(*Config){}, l.onChange...)
	l.mu.Unlock()

	for _, cb := range callbacks {
		cb(cfg)
	}
}

func (l *Loader) report(err error) {
	select {
	case l.errs <- err:
	default:
	}
}

// Close stops watching.
func (l *Loader) Close() error {
	select {
	case <-l.done:
		return nil
	default:
		close(l.done)
	}
	if l.watcher != nil {
		return l.watcher.Close()
	}
	return nil
}

// loadConfigFromFile reads path, returning defaults when it does not exist.
func loadConfigFromFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return decode(path, raw)
}

// decode layers raw over the defaults. The format follows the extension;
// unknown extensions try TOML, JSON and YAML in turn. Empty input yields the
// defaults.
func decode(path string, raw []byte) (cfg *Config, err error) {
	cfg = DefaultConfig()
	if len(raw) > 0 {
		ext := strings.ToLower(filepath.Ext(path))
		if dec, ok := decoders[ext]; ok {
			if err := dec(raw, cfg); err != nil {
				return nil, fmt.Errorf("decode %s: %w", strings.TrimPrefix(ext, "."), err)
			}
		} else if cfg, err = sniff(raw); err != nil {
			return nil, err
		}
	}
	if cfg.Apps == nil {
		cfg.Apps = map[string]string{}
	}
	return cfg, nil
}

func sniff(raw []byte) (*Config, error) {
	for _, ext := range []string{".toml", ".json", ".yaml"} {
		cfg := DefaultConfig()
		if decoders[ext](raw, cfg) == nil {
			return cfg, nil
		}
	}
	return nil, errors.New("unable to parse config file (tried TOML, JSON, YAML)")
}

// LoadOrCreate loads path, first writing the defaults there if the file
// does not exist. The boolean reports whether the file was created.
func LoadOrCreate(path string) (*Config, bool, error) {
	if path == "" {
		path = ConfigPath()
	}
	created := false
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := SaveConfig(DefaultConfig(), path); err != nil {
			return nil, false, fmt.Errorf("create default config: %w", err)
		}
		created = true
	}
	cfg, err := NewLoader(path).Load()
	if err != nil {
		return nil, false, err
	}
	return cfg, created, nil
}

//go:build linux

package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"vnime/internal/config"
	"vnime/internal/ime"
	"vnime/internal/logging"
	"vnime/internal/metrics"
	"vnime/internal/store"
)

const statsRetentionDays = 365

// appPrefs resolves the method for a focused application: the config's
// apps section wins over methods remembered in the store.
type appPrefs struct {
	mu     sync.RWMutex
	cfg    *config.Config
	db     *store.Store
	perApp bool
}

func (p *appPrefs) set(c *config.Config) {
	p.mu.Lock()
	p.cfg = c
	p.perApp = c.IBus.PerAppMethod
	p.mu.Unlock()
}

func (p *appPrefs) AppMethod(app string) (int, bool, error) {
	p.mu.RLock()
	cfg, perApp := p.cfg, p.perApp
	p.mu.RUnlock()

	if !perApp || app == "" {
		return 0, false, nil
	}
	if m, ok := cfg.AppOverride(app); ok {
		scheme, err := ime.ParseScheme(m)
		if err != nil {
			return 0, false, err
		}
		return int(scheme), true, nil
	}
	if p.db == nil {
		return 0, false, nil
	}
	return p.db.AppMethod(app)
}

// statsSink drops commits when statistics are disabled.
type statsSink struct {
	db      *store.Store
	enabled bool
}

func (s statsSink) RecordCommit(app, text string, restored bool) error {
	if !s.enabled {
		return nil
	}
	return s.db.RecordCommit(app, text, restored)
}

func hostConfig(cfg *config.Config, db *store.Store, logger *slog.Logger) (ime.IBusConfig, *appPrefs) {
	prefs := &appPrefs{db: db}
	prefs.set(cfg)

	hc := ime.DefaultIBusConfig()
	if scheme, err := ime.ParseScheme(cfg.Input.Method); err == nil {
		hc.Method = int(scheme)
	}
	hc.Enabled = cfg.Input.Enabled
	hc.AutoRestore = cfg.Input.AutoRestore
	hc.NoSurroundingText = !cfg.IBus.SurroundingText
	hc.Preferences = prefs
	hc.Commits = statsSink{db: db, enabled: cfg.Storage.RecordStats}
	hc.Logger = logger
	return hc, prefs
}

func newLogger(cfg *config.Config) (*logging.Logger, error) {
	lc, err := cfg.LoggerConfig("ibus")
	if err != nil {
		return nil, err
	}
	return logging.New(lc)
}

func msDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

const metricsInterval = 30 * time.Second

// exportMetrics rewrites the metrics file until ctx is done.
func exportMetrics(ctx context.Context, r *metrics.Registry, path string, logger *slog.Logger) {
	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.WriteFile(path); err != nil {
				logger.Warn("failed to write metrics", "path", path, "error", err)
			}
		}
	}
}

// keyP99 estimates the 99th percentile key handling time.
func keyP99(m *metrics.HostMetrics) time.Duration {
	if m.KeyLatency.Count() == 0 {
		return 0
	}
	return time.Duration(m.KeyLatency.Quantile(0.99) * float64(time.Second))
}

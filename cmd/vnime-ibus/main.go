//go:build linux

// vnime-ibus is the Linux IBus engine for Vietnamese Telex/VNI input.
//
// Installation:
//  1. Copy the binary to ~/.local/bin/vnime-ibus
//  2. Run: vnime-ibus -install
//  3. Enable via ibus-setup or GNOME Settings > Keyboard > Input Sources
//
// IBus launches the binary with --ibus; it then claims the bus name and
// serves one engine per input context until terminated.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"vnime/internal/config"
	"vnime/internal/ime"
	"vnime/internal/logging"
	"vnime/internal/metrics"
	"vnime/internal/store"
)

var version = "dev"

func main() {
	installFlag := flag.Bool("install", false, "Install IBus component")
	uninstallFlag := flag.Bool("uninstall", false, "Uninstall IBus component")
	statusFlag := flag.Bool("status", false, "Show installation status")
	configPath := flag.String("config", "", "path to config file")
	metricsPath := flag.String("metrics", "", "write Prometheus metrics to this file periodically")
	flag.Bool("ibus", false, "Started by IBus")
	flag.Parse()

	if *installFlag || *uninstallFlag || *statusFlag {
		if err := manage(*installFlag, *uninstallFlag); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*configPath, *metricsPath); err != nil {
		fmt.Fprintf(os.Stderr, "vnime-ibus: %v\n", err)
		os.Exit(1)
	}
}

func manage(install, uninstall bool) error {
	pcfg := ime.DefaultPlatformConfig()
	pcfg.Version = version
	if exe, err := os.Executable(); err == nil {
		pcfg.EnginePath = exe
	}
	platform := ime.NewPlatform(pcfg)

	switch {
	case install:
		if !platform.Available() {
			return fmt.Errorf("IBus not found")
		}
		if err := platform.Install(); err != nil {
			return err
		}
		fmt.Println("Installed. Select \"Vietnamese (vnime)\" in your input sources.")
	case uninstall:
		if err := platform.Uninstall(); err != nil {
			return err
		}
		fmt.Println("Uninstalled.")
	default:
		fmt.Printf("Installed: %v\nActive:    %v\n", platform.IsInstalled(), platform.IsActive())
	}
	return nil
}

func run(configPath, metricsPath string) error {
	loader := config.NewLoader(configPath)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Close()
	logging.SetDefault(logger)

	crash := logging.NewCrashHandler(&logging.CrashHandlerConfig{
		Version:   version,
		Component: "ibus",
		Logger:    logger.Logger,
	})

	db, err := store.Open(cfg.Storage.Path, store.WithBusyTimeout(msDuration(cfg.Storage.BusyTimeoutMs)))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	if n, err := db.PruneStats(statsRetentionDays); err != nil {
		logger.Warn("failed to prune stats", "error", err)
	} else if n > 0 {
		logger.Info("pruned old stats", "rows", n)
	}

	hostCfg, prefs := hostConfig(cfg, db, logger.Logger)
	hostCfg.Focus = ime.NewFocusTracker()
	hostCfg.OnPanic = crash.HandlePanic
	hostCfg.Metrics = metrics.NewHostMetrics(nil)
	host := ime.NewIBusHost(hostCfg, nil)

	loader.OnChange(func(c *config.Config) {
		method, err := ime.ParseScheme(c.Input.Method)
		if err != nil {
			logger.Warn("ignoring method from config", "error", err)
			return
		}
		prefs.set(c)
		host.ApplySettings(int(method), c.Input.Enabled, c.Input.AutoRestore)
	})
	if err := loader.Watch(); err != nil {
		logger.Warn("config hot reload unavailable", "error", err)
	}
	defer loader.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := host.Start(ctx); err != nil {
		return err
	}
	defer host.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-loader.Errors():
				logger.Error("config reload failed", "error", err)
			}
		}
	}()

	if metricsPath != "" {
		go exportMetrics(ctx, hostCfg.Metrics.Registry(), metricsPath, logger.Logger)
	}

	<-ctx.Done()
	stats := host.Stats()
	logger.Info("shutting down",
		"keys", stats.KeysProcessed,
		"commits", stats.Commits,
		"restores", stats.Restores,
		"key_p99", keyP99(hostCfg.Metrics))
	if metricsPath != "" {
		if err := hostCfg.Metrics.Registry().WriteFile(metricsPath); err != nil {
			logger.Warn("failed to write metrics", "error", err)
		}
	}
	return nil
}

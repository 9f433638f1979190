// vnime-tui is a terminal scratch pad for trying the vnime engine.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"

	"vnime/internal/config"
	"vnime/internal/ime"
	"vnime/internal/logging"
	"vnime/internal/store"
)

// appID names this host in the word statistics.
const appID = "vnime-tui"

var (
	configPath = flag.String("config", "", "path to config file")
	method     = flag.String("method", "", "input method (telex|vni); defaults to the configured one")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "vnime-tui: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	name := cfg.Input.Method
	if *method != "" {
		name = *method
	}
	scheme, err := ime.ParseScheme(name)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Close()

	opts := []ime.Option{
		ime.WithScheme(scheme),
		ime.WithAutoRestore(cfg.Input.AutoRestore),
		ime.WithLogger(logger.Logger),
	}
	if cfg.Storage.RecordStats {
		timeout := time.Duration(cfg.Storage.BusyTimeoutMs) * time.Millisecond
		db, err := store.Open(cfg.Storage.Path, store.WithBusyTimeout(timeout))
		if err != nil {
			return err
		}
		defer db.Close()
		opts = append(opts, ime.WithCommitObserver(recordCommits(db, logger.Logger)))
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()

	NewPad(screen, ime.NewEngine(opts...)).run()
	return nil
}

// newLogger keeps log lines off the terminal; only file output survives.
func newLogger(cfg *config.Config) (*logging.Logger, error) {
	lc, err := cfg.LoggerConfig("tui")
	if err != nil {
		return nil, err
	}
	lc.Writer = io.Discard
	return logging.New(lc)
}

func recordCommits(db *store.Store, logger *slog.Logger) func(ime.Commit) {
	return func(c ime.Commit) {
		if err := db.RecordCommit(appID, c.Text, c.Restored); err != nil {
			logger.Warn("record commit failed", "error", err)
		}
	}
}

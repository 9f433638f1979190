// vnimectl is the control CLI for vnime.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"vnime/internal/config"
	"vnime/internal/ime"
	"vnime/internal/store"
)

var (
	configPath = flag.String("config", "", "path to config file")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}

	cmd, args := flag.Arg(0), flag.Args()[1:]
	var err error
	switch cmd {
	case "type":
		err = cmdType(os.Stdout, args)
	case "stats":
		err = cmdStats(os.Stdout, args)
	case "apps":
		err = cmdApps(os.Stdout)
	case "set-app":
		if len(args) != 2 {
			fmt.Fprintln(os.Stderr, "Usage: vnimectl set-app <app> <telex|vni>")
			os.Exit(1)
		}
		err = cmdSetApp(args[0], args[1])
	case "unset-app":
		if len(args) != 1 {
			fmt.Fprintln(os.Stderr, "Usage: vnimectl unset-app <app>")
			os.Exit(1)
		}
		err = cmdUnsetApp(args[0])
	case "config":
		err = cmdConfig(os.Stdout, args)
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `vnimectl - control utility for vnime

Usage: vnimectl [-config path] <command> [arguments]

Commands:
  type [-method m] [-no-restore] [-trace] <keys>
                       Type keys through the engine and print the text.
                       '<' stands for backspace.
  stats [-days N]      Show committed word statistics
  apps                 List per-application input methods
  set-app <app> <m>    Remember input method m (telex|vni) for app
  unset-app <app>      Forget the input method for app
  config [-format f]   Print the effective configuration (toml|yaml|json)
  help                 Show this help

Examples:
  vnimectl type "vieejt nam"
  vnimectl type -method vni "vie65t nam"
  vnimectl set-app code telex
`)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func openStore(cfg *config.Config) (*store.Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	timeout := time.Duration(cfg.Storage.BusyTimeoutMs) * time.Millisecond
	return store.Open(cfg.Storage.Path, store.WithBusyTimeout(timeout))
}

func cmdType(w io.Writer, args []string) error {
	fs := flag.NewFlagSet("type", flag.ContinueOnError)
	method := fs.String("method", "", "input method (telex|vni); defaults to the configured one")
	noRestore := fs.Bool("no-restore", false, "disable auto-restore of invalid words")
	trace := fs.Bool("trace", false, "print the edit produced by every key")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("no keys given")
	}

	name := *method
	autoRestore := !*noRestore
	if name == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		name = cfg.Input.Method
		autoRestore = autoRestore && cfg.Input.AutoRestore
	}
	scheme, err := ime.ParseScheme(name)
	if err != nil {
		return err
	}

	e := ime.NewEngine(ime.WithScheme(scheme), ime.WithAutoRestore(autoRestore))
	var (
		tw *tabwriter.Writer
		fn func(rune, ime.EditResult)
	)
	if *trace {
		tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "KEY\tACTION\tDELETE\tINSERT\tFORWARD")
		fn = func(r rune, res ime.EditResult) {
			fmt.Fprintf(tw, "%q\t%s\t%d\t%q\t%t\n", r, res.Action, res.Backspace, res.Text(), res.Forward)
		}
	}
	out, err := ime.Simulate(e, strings.Join(fs.Args(), " "), fn)
	if tw != nil {
		tw.Flush()
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(w, out)
	return nil
}

func cmdStats(w io.Writer, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	days := fs.Int("days", 7, "number of days to report")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := db.Stats(*days)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats []store.DailyStat) {
	if len(stats) == 0 {
		fmt.Fprintln(w, "No words committed yet.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DAY\tAPP\tWORDS\tRESTORED\tCHARS")
	for _, s := range stats {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\n", s.Day, s.App, s.Commits, s.Restores, s.Chars)
	}
	t := store.Sum(stats)
	fmt.Fprintf(tw, "total\t\t%d\t%d\t%d\n", t.Commits, t.Restores, t.Chars)
	tw.Flush()
}

func cmdApps(w io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	apps, err := db.ListApps()
	if err != nil {
		return err
	}
	printApps(w, cfg, apps)
	return nil
}

func printApps(w io.Writer, cfg *config.Config, apps []store.AppMethod) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()
	fmt.Fprintln(tw, "APP\tMETHOD\tSOURCE")
	seen := make(map[string]bool)
	for _, a := range apps {
		source := "remembered"
		method := methodName(a.Method)
		if m, ok := cfg.AppOverride(a.App); ok {
			source, method = "config", m
		}
		seen[a.App] = true
		fmt.Fprintf(tw, "%s\t%s\t%s\n", a.App, method, source)
	}
	for app, m := range cfg.Apps {
		if !seen[app] {
			fmt.Fprintf(tw, "%s\t%s\tconfig\n", app, m)
		}
	}
}

func methodName(m int) string {
	return ime.Scheme(m).String()
}

func cmdSetApp(app, method string) error {
	scheme, err := ime.ParseScheme(method)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.SetAppMethod(app, int(scheme)); err != nil {
		return err
	}
	if m, ok := cfg.AppOverride(app); ok {
		fmt.Fprintf(os.Stderr, "Note: config file sets %s to %s, which takes precedence.\n", app, m)
	}
	return nil
}

func cmdUnsetApp(app string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.DeleteAppMethod(app)
}

func cmdConfig(w io.Writer, args []string) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	format := fs.String("format", "toml", "output format (toml|yaml|json)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	data, err := cfg.Encode(*format)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Package main is the entry point for fdbtool.
//
// fdbtool builds, inspects and edits fdb tables stored as snapshots in a data
// directory. Tables are defined in YAML, every created row is journaled as an
// SQL statement and snapshots are optionally versioned in git. Configuration
// is read from CLI flags and fdbtool.json in the data directory.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "fdbtool: %v\n", err)
		os.Exit(1)
	}
}

const usage = `usage: fdbtool [flags] <command> [args]

Commands:
  build <def.yaml>                  build a table from a definition and save it
  dump <table>                      print every row, slot by slot
  seek <table> <key>                print the row with this key
  create <table> [key] [name=value] add a row; without key, the lowest free one
  remove <table> <key>              remove the row with this key
  recalculate <table> [hint]        rebuild the bucket array; -1 sizes to keys
  hash <string>...                  print the legacy hash and key of strings
  sql [table]                       print journaled INSERT statements
  history <table>                   print snapshot commits
  schema                            print the JSON Schema of definitions
  watch <def.yaml>                  rebuild whenever the definition changes

Flags:
`

func mainImpl() error {
	version := flag.Bool("version", false, "Print version and exit")
	dataDir := flag.String("data-dir", "./data", "Data directory")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *version {
		printVersion()
		return nil
	}
	if flag.NArg() == 0 {
		flag.Usage()
		return errors.New("missing command")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	ll := &slog.LevelVar{}
	switch *logLevel {
	case "debug":
		ll.Set(slog.LevelDebug)
	case "info":
		ll.Set(slog.LevelInfo)
	case "warn":
		ll.Set(slog.LevelWarn)
	case "error":
		ll.Set(slog.LevelError)
	default:
		return fmt.Errorf("invalid log level: %s", *logLevel)
	}
	slog.SetDefault(newLogger(os.Stderr, ll))

	a, err := newApp(*dataDir, os.Stdout)
	if err != nil {
		return err
	}
	return a.run(ctx, flag.Arg(0), flag.Args()[1:])
}

func newLogger(w *os.File, level slog.Leveler) *slog.Logger {
	// Skip timestamps when running under systemd (it adds its own).
	underSystemd := os.Getenv("JOURNAL_STREAM") != ""
	return slog.New(tint.NewHandler(colorable.NewColorable(w), &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000", // Like time.TimeOnly plus milliseconds.
		NoColor:    !isatty.IsTerminal(w.Fd()),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if underSystemd && a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			skip := false
			switch t := a.Value.Any().(type) {
			case string:
				skip = t == ""
			case bool:
				skip = !t
			case uint64:
				skip = t == 0
			case int64:
				skip = t == 0
			case float64:
				skip = t == 0
			case time.Time:
				skip = t.IsZero()
			case time.Duration:
				skip = t == 0
			case nil:
				skip = true
			}
			if skip {
				return slog.Attr{}
			}
			return a
		},
	}))
}

func printVersion() {
	version, goVersion, revision, dirty := getBuildInfo()
	fmt.Printf("fdbtool %s\n", version)
	fmt.Printf("  Go version: %s\n", goVersion)
	fmt.Printf("  Revision:   %s\n", revision)
	if dirty {
		fmt.Printf("  Modified:   true\n")
	}
}

func getBuildInfo() (version, goVersion, revision string, dirty bool) {
	version = "unknown"
	goVersion = "unknown"
	revision = "unknown"
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	version = info.Main.Version
	if version == "" || version == "(devel)" {
		version = "dev"
	}
	goVersion = info.GoVersion
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	return
}

// Implements the fdbtool commands.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/maruel/fdb/internal/fdb"
	"github.com/maruel/fdb/internal/snapshot"
	"github.com/maruel/fdb/internal/sqlmirror"
	"github.com/maruel/fdb/internal/tabledef"
)

// app holds the state shared by all commands.
type app struct {
	dir     string
	cfg     *Config
	journal *sqlmirror.Journal
	repo    *snapshot.Repo
	out     io.Writer
}

func newApp(dataDir string, out io.Writer) (*app, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	cfg, err := LoadConfig(dataDir)
	if err != nil {
		return nil, err
	}
	a := &app{dir: dataDir, cfg: cfg, out: out}
	if cfg.Journal != "" {
		if a.journal, err = sqlmirror.Open(filepath.Join(dataDir, cfg.Journal)); err != nil {
			return nil, err
		}
	}
	if cfg.Git.Enabled {
		author := snapshot.Author{Name: cfg.Git.Name, Email: cfg.Git.Email}
		if a.repo, err = snapshot.OpenRepo(a.tablesDir(), author); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "build":
		if len(args) != 1 {
			return errors.New("usage: build <def.yaml>")
		}
		return a.build(ctx, args[0])
	case "dump":
		if len(args) != 1 {
			return errors.New("usage: dump <table>")
		}
		return a.dump(args[0])
	case "seek":
		if len(args) != 2 {
			return errors.New("usage: seek <table> <key>")
		}
		return a.seek(args[0], args[1])
	case "create":
		if len(args) < 1 {
			return errors.New("usage: create <table> [key] [name=value...]")
		}
		return a.create(ctx, args[0], args[1:])
	case "remove":
		if len(args) != 2 {
			return errors.New("usage: remove <table> <key>")
		}
		return a.remove(ctx, args[0], args[1])
	case "recalculate":
		if len(args) < 1 || len(args) > 2 {
			return errors.New("usage: recalculate <table> [hint]")
		}
		return a.recalculate(ctx, args[0], args[1:])
	case "hash":
		return a.hash(args)
	case "sql":
		if len(args) > 1 {
			return errors.New("usage: sql [table]")
		}
		return a.sql(args)
	case "history":
		if len(args) != 1 {
			return errors.New("usage: history <table>")
		}
		return a.history(args[0])
	case "schema":
		return a.schema()
	case "watch":
		if len(args) != 1 {
			return errors.New("usage: watch <def.yaml>")
		}
		return a.watch(ctx, args[0])
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *app) tablesDir() string {
	return filepath.Join(a.dir, "tables")
}

func (a *app) sink(table string) fdb.SQLSink {
	if a.journal == nil {
		return nil
	}
	return a.journal.Sink(table)
}

func (a *app) load(table string) (*fdb.Table, error) {
	return snapshot.Load(filepath.Join(a.tablesDir(), snapshot.FileName(table)), a.sink(table))
}

func (a *app) save(ctx context.Context, t *fdb.Table, msg string) error {
	if a.repo != nil {
		_, err := a.repo.Commit(ctx, t, msg)
		return err
	}
	return snapshot.Save(filepath.Join(a.tablesDir(), snapshot.FileName(t.Name())), t)
}

func (a *app) build(ctx context.Context, path string) error {
	def, err := tabledef.Parse(path)
	if err != nil {
		return err
	}
	t, err := def.Build(a.sink(def.Name))
	if err != nil {
		return err
	}
	if err := a.save(ctx, t, "build "+def.Name); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s: %d rows in %d buckets\n", t.Name(), t.Len(), t.BucketCount())
	return nil
}

func (a *app) dump(table string) error {
	t, err := a.load(table)
	if err != nil {
		return err
	}
	schema := t.Schema()
	for slot := range t.BucketCount() {
		for c := range t.Chain(slot) {
			fmt.Fprintf(a.out, "[%d] %s\n", slot, formatRow(schema, c.Fields()))
		}
	}
	return nil
}

func (a *app) seek(table, key string) error {
	t, err := a.load(table)
	if err != nil {
		return err
	}
	c, err := seekString(t, key)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, formatRow(t.Schema(), c.Fields()))
	return nil
}

func (a *app) create(ctx context.Context, table string, args []string) error {
	t, err := a.load(table)
	if err != nil {
		return err
	}
	var key any
	if len(args) > 0 && !strings.Contains(args[0], "=") {
		if key, err = parseKey(t.KeyType(), args[0]); err != nil {
			return err
		}
		args = args[1:]
	}
	schema := t.Schema()
	values := make(map[string]any, len(args))
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		if !ok {
			return fmt.Errorf("expected name=value, got %q", arg)
		}
		i := schema.Index(name)
		if i < 0 {
			return fmt.Errorf("%s has no field %q", table, name)
		}
		if values[name], err = parseValue(schema[i].Type, raw); err != nil {
			return err
		}
	}

	var c *fdb.Column
	if key == nil {
		if c, err = t.Create(); err != nil {
			return err
		}
		for name, v := range values {
			if err := c.SetByName(name, v); err != nil {
				return err
			}
		}
	} else if c, err = t.CreateWithValues(key, values); err != nil {
		return err
	}
	if err := a.save(ctx, t, fmt.Sprintf("create %s %v", table, c.Key())); err != nil {
		return err
	}
	fmt.Fprintln(a.out, formatRow(schema, c.Fields()))
	return nil
}

func (a *app) remove(ctx context.Context, table, key string) error {
	t, err := a.load(table)
	if err != nil {
		return err
	}
	c, err := seekString(t, key)
	if err != nil {
		return err
	}
	t.Remove(c)
	return a.save(ctx, t, fmt.Sprintf("remove %s %s", table, key))
}

func (a *app) recalculate(ctx context.Context, table string, args []string) error {
	t, err := a.load(table)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		err = t.Recalculate()
	} else {
		hint, perr := strconv.Atoi(args[0])
		if perr != nil {
			return fmt.Errorf("invalid hint: %w", perr)
		}
		err = t.Resize(hint)
	}
	if err != nil {
		return err
	}
	if err := a.save(ctx, t, fmt.Sprintf("recalculate %s", table)); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s: %d rows in %d buckets\n", t.Name(), t.Len(), t.BucketCount())
	return nil
}

func (a *app) hash(args []string) error {
	for _, s := range args {
		k, err := fdb.DeriveKey(s)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "%08x\t%d\t%s\n", fdb.HashString(s), k, s)
	}
	return nil
}

func (a *app) sql(args []string) error {
	if a.journal == nil {
		return errors.New("journal is disabled in " + configFile)
	}
	table := ""
	if len(args) == 1 {
		table = args[0]
	}
	_, err := a.journal.WriteScript(a.out, table)
	return err
}

func (a *app) history(table string) error {
	if a.repo == nil {
		return errors.New("git is disabled in " + configFile)
	}
	commits, err := a.repo.History(table, 0)
	if err != nil {
		return err
	}
	for _, c := range commits {
		fmt.Fprintf(a.out, "%.12s %s %s\n", c.Hash, c.When.Format("2006-01-02 15:04:05"), c.Message)
	}
	return nil
}

func (a *app) schema() error {
	b, err := tabledef.JSONSchema()
	if err != nil {
		return err
	}
	_, err = a.out.Write(append(b, '\n'))
	return err
}

// watch rebuilds the definition at path on every change until ctx is done.
//
// The parent directory is watched since editors often replace files by
// renaming a new one over them.
func (a *app) watch(ctx context.Context, path string) error {
	path, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()
	if err := w.Add(filepath.Dir(path)); err != nil {
		return err
	}
	limit := rate.Inf
	if d := a.cfg.WatchInterval(); d > 0 {
		limit = rate.Every(d)
	}
	limiter := rate.NewLimiter(limit, 1)

	rebuild := func() {
		if err := a.build(ctx, path); err != nil {
			slog.ErrorContext(ctx, "Rebuild failed", "path", path, "err", err)
		}
	}
	slog.InfoContext(ctx, "Watching", "path", path, "interval", a.cfg.WatchInterval())
	rebuild()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
			// Coalesce the events of one save.
			for drained := false; !drained; {
				select {
				case <-w.Events:
				default:
					drained = true
				}
			}
			slog.DebugContext(ctx, "Definition changed", "op", event.Op.String())
			rebuild()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.WarnContext(ctx, "Error watching definition", "err", err)
		}
	}
}

// parseScalar decodes a command line value the way YAML would.
func parseScalar(s string) (any, error) {
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil {
		return nil, fmt.Errorf("invalid value %q: %w", s, err)
	}
	return v, nil
}

func parseKey(t fdb.DataType, s string) (any, error) {
	if t == fdb.Text || t == fdb.Varchar {
		return s, nil
	}
	v, err := parseScalar(s)
	if err != nil {
		return nil, err
	}
	return tabledef.ConvertKey(t, v)
}

func parseValue(t fdb.DataType, s string) (any, error) {
	if t == fdb.Text || t == fdb.Varchar {
		return fdb.StringValue{Value: s}, nil
	}
	if s == "" || s == "null" {
		return nil, nil
	}
	v, err := parseScalar(s)
	if err != nil {
		return nil, err
	}
	return tabledef.Convert(t, v)
}

func seekString(t *fdb.Table, key string) (*fdb.Column, error) {
	k, err := parseKey(t.KeyType(), key)
	if err != nil {
		return nil, err
	}
	c, err := t.Seek(k)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%s: key %s not found", t.Name(), key)
	}
	return c, nil
}

func formatRow(schema fdb.Schema, fields []fdb.Field) string {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(schema[i].Name)
		b.WriteByte('=')
		switch v := f.Value.(type) {
		case fdb.StringValue:
			b.WriteString(strconv.Quote(v.Value))
		case string:
			b.WriteString(strconv.Quote(v))
		default:
			if f.Type == fdb.Nothing {
				b.WriteString("null")
			} else {
				fmt.Fprint(&b, v)
			}
		}
	}
	return b.String()
}

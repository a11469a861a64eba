package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/hashicorp/go-multierror"
	"github.com/jessevdk/go-flags"

	"github.com/umputun/litedrv/pkg/driver"
	_ "github.com/umputun/litedrv/pkg/engine/sqlite" // local engine
)

type options struct {
	PositionalArgs struct {
		SQL string `positional-arg-name:"sql" description:"run ad-hoc sql and exit"`
	} `positional-args:"yes" positional-optional:"yes"`

	Database   string        `short:"d" long:"db" env:"LITEDRV_DB" description:"database file, :memory: or remote url" default:":memory:"`
	ScriptFile string        `short:"f" long:"file" description:"execute sql script from file"`
	Isolation  string        `long:"isolation" env:"LITEDRV_ISOLATION" description:"isolation level for implicit transactions" default:"DEFERRED"`
	Autocommit int           `long:"autocommit" description:"autocommit mode, -1 legacy, 0 off, 1 on" default:"-1"`
	Timeout    time.Duration `long:"timeout" env:"LITEDRV_TIMEOUT" description:"busy timeout" default:"5s"`

	// remote and synced databases
	SyncURL   string        `long:"sync-url" env:"LITEDRV_SYNC_URL" description:"remote replica url for synced database"`
	SyncEvery time.Duration `long:"sync-every" description:"periodic replica sync interval"`
	AuthToken string        `long:"token" env:"LITEDRV_TOKEN" description:"auth token for remote database"`
	EncKey    string        `long:"encryption-key" env:"LITEDRV_ENCRYPTION_KEY" description:"at-rest encryption key"`

	// profiles
	ProfilesFile string `long:"profiles" env:"LITEDRV_PROFILES" description:"profiles file" default:"litedrv.yml"`
	Profile      string `short:"P" long:"profile" env:"LITEDRV_PROFILE" description:"profile name from profiles file"`

	Version bool `long:"version" description:"show version"`
	Dbg     bool `long:"dbg" description:"debug mode"`
}

var revision = "latest"

func main() {
	var opts options
	p := flags.NewParser(&opts, flags.PrintErrors|flags.PassDoubleDash|flags.HelpFlag)
	if _, err := p.Parse(); err != nil {
		os.Exit(1)
	}
	if opts.Version {
		fmt.Printf("litedrv %s (driver %s)\n", revision, driver.Version)
		os.Exit(0)
	}
	setupLog(opts.Dbg)

	if err := run(opts); err != nil {
		if opts.Dbg {
			log.Panicf("[ERROR] %v", err)
		}
		fmt.Printf("failed, %v\n", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := makeConfig(opts)
	if err != nil {
		return err
	}

	conn, err := driver.Connect(ctx, cfg)
	if err != nil {
		return fmt.Errorf("can't connect to %q: %w", cfg.Target, err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Printf("[WARN] close failed: %v", err)
		}
	}()

	if opts.ScriptFile != "" {
		return runScript(ctx, conn, opts.ScriptFile)
	}
	if opts.PositionalArgs.SQL != "" {
		return runAdHoc(ctx, conn, os.Stdout, opts.PositionalArgs.SQL)
	}
	return repl(ctx, conn, os.Stdin, os.Stdout)
}

// makeConfig builds the connection configuration from flags, with the named
// profile, if any, providing the base values.
func makeConfig(opts options) (driver.Config, error) {
	cfg := driver.DefaultConfig(opts.Database)
	cfg.IsolationLevel = opts.Isolation
	cfg.BusyTimeout = opts.Timeout
	cfg.SyncURL = opts.SyncURL
	cfg.SyncInterval = opts.SyncEvery
	cfg.AuthToken = opts.AuthToken
	cfg.EncryptionKey = opts.EncKey

	mode, err := driver.AutocommitFromInt(opts.Autocommit)
	if err != nil {
		return cfg, err
	}
	cfg.Autocommit = mode

	if opts.Profile != "" {
		prof, err := loadProfile(opts.ProfilesFile, opts.Profile)
		if err != nil {
			return cfg, fmt.Errorf("can't load profile %q: %w", opts.Profile, err)
		}
		if cfg, err = prof.apply(cfg); err != nil {
			return cfg, fmt.Errorf("can't apply profile %q: %w", opts.Profile, err)
		}
		log.Printf("[INFO] using profile %q from %s", opts.Profile, opts.ProfilesFile)
	}
	return cfg, nil
}

// runScript feeds a whole file to the engine as a single batch.
func runScript(ctx context.Context, conn *driver.Connection, path string) error {
	body, err := os.ReadFile(path) // nolint gosec // path from the user running the tool
	if err != nil {
		return fmt.Errorf("can't read script %q: %w", path, err)
	}
	if _, err := conn.ExecuteScript(ctx, string(body)); err != nil {
		return fmt.Errorf("can't execute script %q: %w", path, err)
	}
	log.Printf("[INFO] executed script %s (%d bytes)", path, len(body))
	return nil
}

// runAdHoc executes semicolon-separated statements and prints each result.
// Failures don't stop the batch, all errors are collected and reported
// together. Splitting is textual, semicolons inside string literals will
// confuse it; use -f for scripts that need exact parsing.
func runAdHoc(ctx context.Context, conn *driver.Connection, w io.Writer, sql string) error {
	errs := new(multierror.Error)
	for _, stmt := range splitStatements(sql) {
		if err := execAndPrint(ctx, conn, w, stmt); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if err := conn.Commit(ctx); err != nil {
		errs = multierror.Append(errs, err)
	}
	return errs.ErrorOrNil()
}

func splitStatements(sql string) []string {
	var out []string
	for _, s := range strings.Split(sql, ";") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// execAndPrint runs one statement and renders its result: a column-aligned
// table for queries, an affected-rows summary for everything else.
func execAndPrint(ctx context.Context, conn *driver.Connection, w io.Writer, stmt string) error {
	cur, err := conn.Execute(ctx, stmt)
	if err != nil {
		return fmt.Errorf("can't execute %q: %w", stmt, err)
	}
	defer cur.Close()

	desc := cur.Description()
	if desc == nil {
		fmt.Fprintf(w, "ok, %d row(s) affected\n", cur.RowCount())
		return nil
	}

	rows, err := cur.FetchAll(ctx)
	if err != nil {
		return fmt.Errorf("can't fetch rows: %w", err)
	}

	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	headers := make([]string, len(desc))
	for i, c := range desc {
		headers[i] = color.New(color.FgCyan).Sprint(c.Name)
	}
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = renderValue(v)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("can't flush output: %w", err)
	}
	fmt.Fprintf(w, "%d row(s)\n", len(rows))
	return nil
}

func renderValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return fmt.Sprintf("x'%x'", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func setupLog(dbg bool) {
	logOpts := []lgr.Option{lgr.Out(io.Discard), lgr.Err(io.Discard)} // default to discard
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))

	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}

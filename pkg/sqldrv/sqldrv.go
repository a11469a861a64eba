// Package sqldrv adapts the driver to database/sql. Importing it registers
// the "litedrv" driver:
//
//	import _ "github.com/umputun/litedrv/pkg/sqldrv"
//	db, err := sql.Open("litedrv", "file.db?isolation=DEFERRED")
//
// The DSN is the database target, optionally followed by ?key=value options:
// isolation, autocommit (-1, 0 or 1), busy_timeout (duration), sync_url,
// sync_interval, auth_token, encryption_key and offline.
package sqldrv

import (
	"context"
	"database/sql"
	sqldriver "database/sql/driver"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/umputun/litedrv/pkg/driver"
)

func init() {
	sql.Register("litedrv", &Driver{})
}

// Driver implements database/sql/driver.Driver on top of the core driver.
type Driver struct{}

// Open parses the DSN and establishes a connection. database/sql pools these,
// each pooled connection is one physical engine connection.
func (d *Driver) Open(dsn string) (sqldriver.Conn, error) {
	cfg, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	c, err := driver.Connect(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	return &conn{c: c}, nil
}

// ParseDSN converts a DSN string to a connection configuration. The part
// before '?' is the target, the rest is url-encoded options. Unlike the core
// defaults the adapter starts in autocommit, matching what database/sql users
// expect from a driver; pass isolation= to get implicit transaction grouping.
func ParseDSN(dsn string) (driver.Config, error) {
	target, query, _ := strings.Cut(dsn, "?")
	cfg := driver.DefaultConfig(target)
	cfg.IsolationLevel = "" // autocommit unless asked otherwise
	if query == "" {
		return cfg, nil
	}

	vals, err := url.ParseQuery(query)
	if err != nil {
		return cfg, fmt.Errorf("can't parse dsn options: %w", err)
	}
	for key, vv := range vals {
		v := vv[len(vv)-1] // last one wins
		switch key {
		case "isolation":
			cfg.IsolationLevel = v
		case "autocommit":
			n, err := strconv.Atoi(v)
			if err != nil {
				return cfg, fmt.Errorf("invalid autocommit option %q: %w", v, err)
			}
			mode, err := driver.AutocommitFromInt(n)
			if err != nil {
				return cfg, err
			}
			cfg.Autocommit = mode
		case "busy_timeout":
			d, err := time.ParseDuration(v)
			if err != nil {
				return cfg, fmt.Errorf("invalid busy_timeout option %q: %w", v, err)
			}
			cfg.BusyTimeout = d
		case "sync_url":
			cfg.SyncURL = v
		case "sync_interval":
			d, err := time.ParseDuration(v)
			if err != nil {
				return cfg, fmt.Errorf("invalid sync_interval option %q: %w", v, err)
			}
			cfg.SyncInterval = d
		case "auth_token":
			cfg.AuthToken = v
		case "encryption_key":
			cfg.EncryptionKey = v
		case "offline":
			b, err := strconv.ParseBool(v)
			if err != nil {
				return cfg, fmt.Errorf("invalid offline option %q: %w", v, err)
			}
			cfg.Offline = b
		default:
			return cfg, fmt.Errorf("unknown dsn option %q", key)
		}
	}
	return cfg, nil
}

type conn struct {
	c *driver.Connection
}

// Prepare implements driver.Conn. Statements are compiled at execution time
// by the engine, so the adapter statement just captures the query text.
func (c *conn) Prepare(query string) (sqldriver.Stmt, error) {
	return &stmt{conn: c, query: query}, nil
}

func (c *conn) Close() error { return c.c.Close() }

// Begin implements driver.Conn with the default transaction options.
func (c *conn) Begin() (sqldriver.Tx, error) {
	return c.BeginTx(context.Background(), sqldriver.TxOptions{})
}

// BeginTx opens an explicit transaction. Isolation levels other than the
// default are not supported, sqlite transactions are always serializable.
func (c *conn) BeginTx(ctx context.Context, opts sqldriver.TxOptions) (sqldriver.Tx, error) {
	if opts.ReadOnly {
		return nil, fmt.Errorf("read-only transactions are not supported")
	}
	if sql.IsolationLevel(opts.Isolation) != sql.LevelDefault {
		return nil, fmt.Errorf("isolation level %v is not supported", sql.IsolationLevel(opts.Isolation))
	}
	cur, err := c.c.Execute(ctx, "BEGIN")
	if err != nil {
		return nil, err
	}
	_ = cur.Close()
	return &tx{conn: c, ctx: ctx}, nil
}

// ExecContext runs a statement without returning rows.
func (c *conn) ExecContext(ctx context.Context, query string, args []sqldriver.NamedValue) (sqldriver.Result, error) {
	params, err := namedToArgs(args)
	if err != nil {
		return nil, err
	}
	cur, err := c.c.Execute(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	res := result{lastID: cur.LastRowID(), affected: cur.RowCount()}
	_ = cur.Close()
	return res, nil
}

// QueryContext runs a row-producing statement.
func (c *conn) QueryContext(ctx context.Context, query string, args []sqldriver.NamedValue) (sqldriver.Rows, error) {
	params, err := namedToArgs(args)
	if err != nil {
		return nil, err
	}
	cur, err := c.c.Execute(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	return &rows{cur: cur}, nil
}

// Ping verifies the connection is still usable.
func (c *conn) Ping(ctx context.Context) error {
	cur, err := c.c.Execute(ctx, "SELECT 1")
	if err != nil {
		return err
	}
	return cur.Close()
}

// CheckNamedValue validates and converts parameters before execution.
// Positional parameters only; time values are rendered in the sqlite text
// format, anything the engine can't represent is rejected instead of being
// silently bound as null.
func (c *conn) CheckNamedValue(nv *sqldriver.NamedValue) error {
	if nv.Name != "" {
		return fmt.Errorf("named parameters are not supported: %w", driver.ErrParamType)
	}
	switch v := nv.Value.(type) {
	case nil, int64, float64, bool, []byte, string:
		return nil
	case time.Time:
		nv.Value = v.Format("2006-01-02 15:04:05.999999999-07:00")
		return nil
	default:
		return fmt.Errorf("parameter type %T: %w", nv.Value, driver.ErrParamType)
	}
}

type stmt struct {
	conn  *conn
	query string
}

func (s *stmt) Close() error { return nil }

// NumInput reports -1, the engine checks parameter counts at execution.
func (s *stmt) NumInput() int { return -1 }

func (s *stmt) Exec(args []sqldriver.Value) (sqldriver.Result, error) {
	return s.ExecContext(context.Background(), plainToNamed(args))
}

func (s *stmt) Query(args []sqldriver.Value) (sqldriver.Rows, error) {
	return s.QueryContext(context.Background(), plainToNamed(args))
}

func (s *stmt) ExecContext(ctx context.Context, args []sqldriver.NamedValue) (sqldriver.Result, error) {
	return s.conn.ExecContext(ctx, s.query, args)
}

func (s *stmt) QueryContext(ctx context.Context, args []sqldriver.NamedValue) (sqldriver.Rows, error) {
	return s.conn.QueryContext(ctx, s.query, args)
}

type tx struct {
	conn *conn
	ctx  context.Context
}

func (t *tx) Commit() error { return t.conn.c.Commit(t.ctx) }

func (t *tx) Rollback() error { return t.conn.c.Rollback(t.ctx) }

type rows struct {
	cur *driver.Cursor
}

func (r *rows) Columns() []string {
	desc := r.cur.Description()
	cols := make([]string, len(desc))
	for i, d := range desc {
		cols[i] = d.Name
	}
	return cols
}

func (r *rows) Next(dest []sqldriver.Value) error {
	row, err := r.cur.FetchOne(context.Background())
	if err != nil {
		return err
	}
	if row == nil {
		return io.EOF
	}
	for i := range dest {
		dest[i] = row[i]
	}
	return nil
}

func (r *rows) Close() error { return r.cur.Close() }

type result struct {
	lastID   int64
	affected int64
}

func (r result) LastInsertId() (int64, error) { return r.lastID, nil }
func (r result) RowsAffected() (int64, error) { return r.affected, nil }

func namedToArgs(args []sqldriver.NamedValue) ([]any, error) {
	out := make([]any, len(args))
	for i, a := range args {
		if a.Name != "" {
			return nil, fmt.Errorf("named parameters are not supported: %w", driver.ErrParamType)
		}
		out[i] = a.Value
	}
	return out, nil
}

func plainToNamed(args []sqldriver.Value) []sqldriver.NamedValue {
	out := make([]sqldriver.NamedValue, len(args))
	for i, a := range args {
		out[i] = sqldriver.NamedValue{Ordinal: i + 1, Value: a}
	}
	return out
}

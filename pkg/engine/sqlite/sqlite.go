// Package sqlite provides the local embedded engine, backed by
// zombiezen.com/go/sqlite. It registers itself as the "local" engine on
// import; open a local database by importing this package for side effects
// and dialing through the driver.
package sqlite

import (
	"context"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/umputun/litedrv/pkg/engine"
)

func init() {
	engine.Register(engine.Local, Open)
}

// Open creates a database handle for a local file or ":memory:".
// Connections are opened lazily by Connect.
func Open(cfg engine.Config) (engine.Database, error) {
	if cfg.EncryptionKey != "" {
		return nil, fmt.Errorf("at-rest encryption is not supported by the local engine")
	}
	return &Database{path: cfg.Target}, nil
}

// Database is a local embedded database. It holds no resources itself,
// the path is opened on each Connect.
type Database struct {
	path string
}

// Connect opens a new physical connection to the database file.
func (d *Database) Connect() (engine.Conn, error) {
	c, err := sqlite.OpenConn(d.path)
	if err != nil {
		return nil, fmt.Errorf("can't open sqlite database %q: %w", d.path, err)
	}
	return &Conn{conn: c}, nil
}

// Sync is not available for local databases, there is no replica to sync with.
func (d *Database) Sync(context.Context) error {
	return fmt.Errorf("sync is not supported for local databases")
}

// Close releases the database handle. Local databases hold nothing here.
func (d *Database) Close() error { return nil }

// Conn wraps a single sqlite connection.
type Conn struct {
	conn *sqlite.Conn
}

// SetBusyTimeout sets the busy handler wait duration.
func (c *Conn) SetBusyTimeout(d time.Duration) error {
	c.conn.SetBusyTimeout(d)
	return nil
}

// IsAutocommit reports whether the connection has no open transaction.
func (c *Conn) IsAutocommit() bool { return c.conn.AutocommitEnabled() }

// Prepare compiles a single statement. The statement is transient, i.e. not
// cached on the connection, because the driver layer replaces it on every
// execute and finalizes the old one.
func (c *Conn) Prepare(ctx context.Context, query string) (engine.Stmt, error) {
	defer c.interrupt(ctx)()
	st, _, err := c.conn.PrepareTransient(query)
	if err != nil {
		return nil, fmt.Errorf("can't prepare %q: %w", query, err)
	}
	return &Stmt{conn: c, stmt: st}, nil
}

// ExecuteBatch runs a multi-statement script.
func (c *Conn) ExecuteBatch(ctx context.Context, script string) error {
	defer c.interrupt(ctx)()
	if err := sqlitex.ExecuteScript(c.conn, script, nil); err != nil {
		return fmt.Errorf("can't execute script: %w", err)
	}
	return nil
}

// Changes reports rows affected by the most recent statement.
func (c *Conn) Changes() int64 { return int64(c.conn.Changes()) }

// LastInsertRowID reports the rowid of the most recent insert.
func (c *Conn) LastInsertRowID() int64 { return c.conn.LastInsertRowID() }

// Close closes the sqlite connection.
func (c *Conn) Close() error { return c.conn.Close() }

// interrupt wires the context cancellation into the sqlite interrupt
// mechanism for the duration of a call. The returned func restores the
// previous interrupt channel.
func (c *Conn) interrupt(ctx context.Context) func() {
	old := c.conn.SetInterrupt(ctx.Done())
	return func() { c.conn.SetInterrupt(old) }
}

// Stmt is a prepared sqlite statement.
type Stmt struct {
	conn *Conn
	stmt *sqlite.Stmt
}

// ColumnCount reports the declared result width.
func (s *Stmt) ColumnCount() int { return s.stmt.ColumnCount() }

// Columns reports the declared result column names.
func (s *Stmt) Columns() []string {
	cols := make([]string, s.stmt.ColumnCount())
	for i := range cols {
		cols[i] = s.stmt.ColumnName(i)
	}
	return cols
}

// Execute binds parameters and steps a no-result statement to completion.
func (s *Stmt) Execute(ctx context.Context, params []engine.Value) error {
	defer s.conn.interrupt(ctx)()
	if err := s.bind(params); err != nil {
		return err
	}
	for {
		hasRow, err := s.stmt.Step()
		if err != nil {
			return fmt.Errorf("can't execute statement: %w", err)
		}
		if !hasRow {
			return nil
		}
	}
}

// Query binds parameters and returns the statement's row stream. The stream
// shares the statement handle; closing the statement invalidates the stream.
func (s *Stmt) Query(_ context.Context, params []engine.Value) (engine.Rows, error) {
	if err := s.bind(params); err != nil {
		return nil, err
	}
	return &rows{stmt: s}, nil
}

// Close finalizes the statement.
func (s *Stmt) Close() error { return s.stmt.Finalize() }

func (s *Stmt) bind(params []engine.Value) error {
	if err := s.stmt.Reset(); err != nil {
		return fmt.Errorf("can't reset statement: %w", err)
	}
	for i, p := range params {
		pos := i + 1 // sqlite parameters are 1-based
		switch p.Type {
		case engine.TypeNull:
			s.stmt.BindNull(pos)
		case engine.TypeInteger:
			s.stmt.BindInt64(pos, p.Int)
		case engine.TypeReal:
			s.stmt.BindFloat(pos, p.Real)
		case engine.TypeText:
			s.stmt.BindText(pos, p.Text)
		case engine.TypeBlob:
			s.stmt.BindBytes(pos, p.Blob)
		default:
			return fmt.Errorf("unsupported parameter type %d at position %d", int(p.Type), i)
		}
	}
	return nil
}

// rows streams result rows by stepping the underlying statement.
type rows struct {
	stmt *Stmt
}

// Next steps once and materializes the current row, nil when exhausted.
func (r *rows) Next(ctx context.Context) ([]engine.Value, error) {
	defer r.stmt.conn.interrupt(ctx)()
	hasRow, err := r.stmt.stmt.Step()
	if err != nil {
		return nil, fmt.Errorf("can't fetch row: %w", err)
	}
	if !hasRow {
		return nil, nil
	}
	row := make([]engine.Value, r.stmt.stmt.ColumnCount())
	for i := range row {
		switch r.stmt.stmt.ColumnType(i) {
		case sqlite.TypeInteger:
			row[i] = engine.Int(r.stmt.stmt.ColumnInt64(i))
		case sqlite.TypeFloat:
			row[i] = engine.Real(r.stmt.stmt.ColumnFloat(i))
		case sqlite.TypeText:
			row[i] = engine.Text(r.stmt.stmt.ColumnText(i))
		case sqlite.TypeBlob:
			buf := make([]byte, r.stmt.stmt.ColumnLen(i))
			r.stmt.stmt.ColumnBytes(i, buf)
			row[i] = engine.Blob(buf)
		default:
			row[i] = engine.Null()
		}
	}
	return row, nil
}

// ColumnCount reports the number of values per row.
func (r *rows) ColumnCount() int { return r.stmt.stmt.ColumnCount() }

// Close resets the underlying statement so it can be re-queried or finalized.
func (r *rows) Close() error { return r.stmt.stmt.Reset() }

package driver

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/umputun/litedrv/pkg/engine"
)

// Column describes one result column of the last executed statement.
type Column struct {
	Name string
}

// Cursor executes statements on its connection and pages through results.
// A cursor holds at most one prepared statement and one result stream; each
// Execute replaces them. Every engine call, row fetches included, runs inside
// the connection's exclusive section, so cursors sharing one connection are
// safe to use from multiple goroutines. Lock order is connection then cursor.
type Cursor struct {
	// Arraysize is the default page size for FetchMany, 1 by default.
	Arraysize int

	conn *Connection

	mu        sync.Mutex
	stmt      engine.Stmt
	rows      engine.Rows
	done      bool
	rowcount  int64
	lastrowid int64
}

// Execute runs a single statement and positions the cursor over its result.
func (c *Cursor) Execute(ctx context.Context, query string, args ...any) error {
	return c.conn.runStatement(ctx, c, query, args)
}

// ExecuteMany runs the statement once per parameter set, sequentially.
// RowCount accumulates the affected rows across all sets and LastRowID
// reflects the final set. Fails on the first failing set.
func (c *Cursor) ExecuteMany(ctx context.Context, query string, sets [][]any) error {
	return c.conn.runMany(ctx, c, query, sets)
}

// ExecuteScript runs a multi-statement script as one opaque unit. The cursor
// produces no rows and its counters are not updated.
func (c *Cursor) ExecuteScript(ctx context.Context, script string) error {
	return c.conn.runScript(ctx, script)
}

// FetchOne returns the next row, or nil when the result is exhausted or the
// statement produced no rows. Once exhaustion is observed, subsequent fetches
// return nil without touching the engine.
func (c *Cursor) FetchOne(ctx context.Context) ([]any, error) {
	c.conn.mu.Lock()
	defer c.conn.mu.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn.eng == nil {
		return nil, ErrClosed
	}
	if c.done || c.rows == nil {
		return nil, nil
	}
	row, err := c.rows.Next(ctx)
	if err != nil {
		return nil, &EngineError{Op: "fetch", Err: err}
	}
	if row == nil {
		c.done = true
		return nil, nil
	}
	return decodeRow(row), nil
}

// FetchMany returns up to size rows, or up to Arraysize when size <= 0.
// A short or empty page means the result is exhausted.
func (c *Cursor) FetchMany(ctx context.Context, size int) ([][]any, error) {
	c.conn.mu.Lock()
	defer c.conn.mu.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn.eng == nil {
		return nil, ErrClosed
	}
	if size <= 0 {
		size = c.Arraysize
	}
	out := [][]any{}
	if c.done || c.rows == nil {
		return out, nil
	}
	for len(out) < size {
		row, err := c.rows.Next(ctx)
		if err != nil {
			return nil, &EngineError{Op: "fetch", Err: err}
		}
		if row == nil {
			c.done = true
			break
		}
		out = append(out, decodeRow(row))
	}
	return out, nil
}

// FetchAll drains the remaining rows.
func (c *Cursor) FetchAll(ctx context.Context) ([][]any, error) {
	c.conn.mu.Lock()
	defer c.conn.mu.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn.eng == nil {
		return nil, ErrClosed
	}
	out := [][]any{}
	if c.done || c.rows == nil {
		return out, nil
	}
	for {
		row, err := c.rows.Next(ctx)
		if err != nil {
			return nil, &EngineError{Op: "fetch", Err: err}
		}
		if row == nil {
			c.done = true
			return out, nil
		}
		out = append(out, decodeRow(row))
	}
}

// Description returns the result columns of the last executed statement,
// nil when nothing was executed yet or the statement produced no columns.
func (c *Cursor) Description() []Column {
	c.conn.mu.Lock()
	defer c.conn.mu.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stmt == nil || c.conn.eng == nil || c.stmt.ColumnCount() == 0 {
		return nil
	}
	names := c.stmt.Columns()
	cols := make([]Column, len(names))
	for i, n := range names {
		cols[i] = Column{Name: n}
	}
	return cols
}

// RowCount reports the rows affected by the last execution.
func (c *Cursor) RowCount() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rowcount
}

// LastRowID reports the rowid of the last successful insert on the
// connection, as observed after the last execution.
func (c *Cursor) LastRowID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastrowid
}

// Close releases the cursor's statement and result stream. The connection
// stays usable; other cursors are not affected. Idempotent. After the
// connection itself was closed the handles are gone already and the slots
// are just dropped.
func (c *Cursor) Close() error {
	c.conn.mu.Lock()
	defer c.conn.mu.Unlock()
	c.conn.dropCursor(c)
	if c.conn.eng == nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.rows, c.stmt, c.done = nil, nil, false
		return nil
	}
	return c.release()
}

// release finalizes the statement and result stream slots. Caller holds the
// connection lock.
func (c *Cursor) release() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	errs := new(multierror.Error)
	if c.rows != nil {
		if err := c.rows.Close(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("can't close rows: %w", err))
		}
		c.rows = nil
	}
	if c.stmt != nil {
		if err := c.stmt.Close(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("can't close statement: %w", err))
		}
		c.stmt = nil
	}
	c.done = false
	return errs.ErrorOrNil()
}

// installStmt makes stmt the cursor's current statement, releasing whatever
// the cursor held before and resetting the exhaustion flag.
func (c *Cursor) installStmt(stmt engine.Stmt) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rows != nil {
		_ = c.rows.Close()
		c.rows = nil
	}
	if c.stmt != nil {
		_ = c.stmt.Close()
	}
	c.stmt = stmt
	c.done = false
}

// installRows sets the current result stream, nil for no-result statements.
func (c *Cursor) installRows(rows engine.Rows) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows = rows
}

func (c *Cursor) setResult(changes, lastID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rowcount = changes
	c.lastrowid = lastID
}

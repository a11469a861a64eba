package driver

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/umputun/litedrv/pkg/engine"
)

// Connection is a single logical database connection. It owns one physical
// engine connection and serializes all statement execution on it; cursors
// created from the connection share the physical connection and are safe to
// use from multiple goroutines.
type Connection struct {
	mu         sync.Mutex
	db         engine.Database
	eng        engine.Conn
	isolation  string
	autocommit AutocommitMode
	cursors    []*Cursor // open cursors, their handles are finalized on Close
}

// Connect opens a database for the configuration and establishes a physical
// connection to it. The engine is picked by the target: local paths and
// ":memory:" get the embedded engine, remote URLs and sync settings get the
// engines registered for them.
func Connect(ctx context.Context, cfg Config) (*Connection, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	db, err := engine.Open(cfg.engineConfig())
	if err != nil {
		return nil, fmt.Errorf("can't open database %q: %w", cfg.Target, err)
	}
	eng, err := db.Connect()
	if err != nil {
		_ = db.Close()
		return nil, &EngineError{Op: "connect", Err: err}
	}
	if cfg.BusyTimeout > 0 {
		if err := eng.SetBusyTimeout(cfg.BusyTimeout); err != nil {
			_ = eng.Close()
			_ = db.Close()
			return nil, fmt.Errorf("can't set busy timeout: %w", err)
		}
	}

	log.Printf("[DEBUG] connected to %q, isolation %q, autocommit %d", cfg.Target, cfg.IsolationLevel, int(cfg.Autocommit))
	return &Connection{db: db, eng: eng, isolation: cfg.IsolationLevel, autocommit: cfg.Autocommit}, nil
}

// Cursor creates a cursor over this connection. The cursor shares the
// connection's physical handle and transaction state.
func (c *Connection) Cursor() *Cursor {
	cur := &Cursor{conn: c, Arraysize: 1}
	c.mu.Lock()
	c.cursors = append(c.cursors, cur)
	c.mu.Unlock()
	return cur
}

// dropCursor removes a closed cursor from the registry. Caller holds c.mu.
func (c *Connection) dropCursor(cur *Cursor) {
	for i, cc := range c.cursors {
		if cc == cur {
			c.cursors = append(c.cursors[:i], c.cursors[i+1:]...)
			return
		}
	}
}

// Execute runs a single statement on a fresh cursor and returns the cursor
// positioned over the result.
func (c *Connection) Execute(ctx context.Context, query string, args ...any) (*Cursor, error) {
	cur := c.Cursor()
	if err := cur.Execute(ctx, query, args...); err != nil {
		return nil, err
	}
	return cur, nil
}

// ExecuteMany runs the statement once per parameter set on a fresh cursor.
func (c *Connection) ExecuteMany(ctx context.Context, query string, sets [][]any) (*Cursor, error) {
	cur := c.Cursor()
	if err := cur.ExecuteMany(ctx, query, sets); err != nil {
		return nil, err
	}
	return cur, nil
}

// ExecuteScript runs a multi-statement script on a fresh cursor.
func (c *Connection) ExecuteScript(ctx context.Context, script string) (*Cursor, error) {
	cur := c.Cursor()
	if err := cur.ExecuteScript(ctx, script); err != nil {
		return nil, err
	}
	return cur, nil
}

// Commit commits the open transaction. A no-op when the connection is closed
// or the engine is already in autocommit mode, so calling it without an open
// transaction is always safe.
func (c *Connection) Commit(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.eng == nil || c.eng.IsAutocommit() {
		return nil
	}
	if err := c.execPlain(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("can't commit: %w", err)
	}
	return nil
}

// Rollback discards the open transaction. Same no-op rules as Commit.
func (c *Connection) Rollback(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.eng == nil || c.eng.IsAutocommit() {
		return nil
	}
	if err := c.execPlain(ctx, "ROLLBACK"); err != nil {
		return fmt.Errorf("can't rollback: %w", err)
	}
	return nil
}

// Sync synchronizes the database with its remote replica. Local databases
// without a replica report an error. Operates on the database handle, not the
// physical connection, so it doesn't block statement execution.
func (c *Connection) Sync(ctx context.Context) error {
	if err := c.db.Sync(ctx); err != nil {
		return &EngineError{Op: "sync", Err: err}
	}
	return nil
}

// Close releases the physical connection and the database handle, finalizing
// the statements still held by open cursors first. Idempotent; operations
// after Close return ErrClosed.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.eng == nil {
		return nil
	}
	eng := c.eng
	c.eng = nil

	errs := new(multierror.Error)
	for _, cur := range c.cursors {
		if err := cur.release(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("can't release cursor: %w", err))
		}
	}
	c.cursors = nil
	if err := eng.Close(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("can't close connection: %w", err))
	}
	if err := c.db.Close(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("can't close database: %w", err))
	}
	return errs.ErrorOrNil()
}

// IsolationLevel returns the configured isolation level, empty when the
// connection defaults to autocommit.
func (c *Connection) IsolationLevel() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isolation
}

// Autocommit returns the configured autocommit mode.
func (c *Connection) Autocommit() AutocommitMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.autocommit
}

// SetAutocommit switches the autocommit mode for subsequent statements.
// Statements already grouped in an open transaction are not affected; commit
// or roll back explicitly before switching if that matters.
func (c *Connection) SetAutocommit(mode AutocommitMode) error {
	switch mode {
	case AutocommitLegacy, AutocommitOff, AutocommitOn:
	default:
		return configErrorf("invalid autocommit mode %d", int(mode))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autocommit = mode
	return nil
}

// InTransaction reports whether a transaction is open or the next
// data-modifying statement would open one. Always false on a closed
// connection.
func (c *Connection) InTransaction() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.eng == nil {
		return false
	}
	return !c.eng.IsAutocommit() || !c.policy().autocommit()
}

// WithTransaction runs fn and commits on success. On failure the transaction
// is rolled back and the rollback error, if any, is chained to fn's error.
func (c *Connection) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := fn(ctx); err != nil {
		if rbErr := c.Rollback(ctx); rbErr != nil {
			log.Printf("[WARN] rollback failed: %v", rbErr)
			return multierror.Append(err, rbErr)
		}
		return err
	}
	return c.Commit(ctx)
}

// policy returns the transaction policy for the current settings.
// Caller holds c.mu.
func (c *Connection) policy() txPolicy {
	return txPolicy{mode: c.autocommit, isolation: c.isolation}
}

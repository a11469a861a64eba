// Package engine defines the contract between the driver layer and the SQL
// storage engine. The driver talks to the engine only through these interfaces;
// concrete engines (local embedded, remote, synced replica) register themselves
// with Register and are selected by Open based on the connection target.
package engine

import (
	"context"
	"time"
)

// Database is an opened database handle. One Database may produce multiple
// connections, and owns the replica sync operation for synced databases.
type Database interface {
	// Connect creates a new physical connection to the database.
	Connect() (Conn, error)
	// Sync synchronizes the database with its remote replica. Engines without
	// a replica return an error.
	Sync(ctx context.Context) error
	// Close releases the database handle.
	Close() error
}

// Conn is a single physical connection. A Conn executes at most one statement
// at a time; serialization is the caller's responsibility.
type Conn interface {
	// SetBusyTimeout sets how long the engine waits on a locked database
	// before failing a statement.
	SetBusyTimeout(d time.Duration) error
	// IsAutocommit reports whether the connection is currently in autocommit
	// mode, i.e. no transaction is open on the engine side.
	IsAutocommit() bool
	// Prepare compiles a single statement. The returned statement knows its
	// result shape (column count) before execution.
	Prepare(ctx context.Context, sql string) (Stmt, error)
	// ExecuteBatch runs a multi-statement script as one opaque unit.
	ExecuteBatch(ctx context.Context, script string) error
	// Changes reports the number of rows affected by the most recent statement.
	Changes() int64
	// LastInsertRowID reports the rowid of the most recent successful insert.
	LastInsertRowID() int64
	// Close releases the connection.
	Close() error
}

// Stmt is a prepared statement bound to its connection.
type Stmt interface {
	// ColumnCount reports the number of result columns the statement declares.
	// Zero means the statement produces no rows (DML, DDL, pragmas).
	ColumnCount() int
	// Columns reports the declared result column names, in order.
	Columns() []string
	// Execute runs a statement that produces no rows.
	Execute(ctx context.Context, params []Value) error
	// Query runs a row-producing statement and returns its result stream.
	Query(ctx context.Context, params []Value) (Rows, error)
	// Close finalizes the statement.
	Close() error
}

// Rows is a forward-only, at-most-once result stream.
type Rows interface {
	// Next returns the next row, or a nil row when the stream is exhausted.
	Next(ctx context.Context) ([]Value, error)
	// ColumnCount reports the number of values per row.
	ColumnCount() int
	// Close releases the stream.
	Close() error
}

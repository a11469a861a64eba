package driver

import (
	"context"
	"log"
)

// runStatement is the single-statement pipeline: open an implicit transaction
// if the policy calls for one, prepare, then dispatch on the statement's
// declared column count. Row-producing statements get a result stream, others
// are executed to completion. The caller's cursor takes ownership of the
// prepared statement and stream. Holds the connection lock throughout.
func (c *Connection) runStatement(ctx context.Context, cur *Cursor, query string, args []any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.eng == nil {
		return ErrClosed
	}

	if err := c.maybeBegin(ctx, query); err != nil {
		return err
	}

	stmt, err := c.eng.Prepare(ctx, query)
	if err != nil {
		return &EngineError{Op: "prepare", Err: err}
	}
	cur.installStmt(stmt)

	params := marshalParams(args)
	if stmt.ColumnCount() > 0 {
		rows, err := stmt.Query(ctx, params)
		if err != nil {
			return &EngineError{Op: "query", Err: err}
		}
		cur.installRows(rows)
	} else {
		if err := stmt.Execute(ctx, params); err != nil {
			return &EngineError{Op: "execute", Err: err}
		}
		cur.installRows(nil)
	}

	cur.setResult(c.eng.Changes(), c.eng.LastInsertRowID())
	return nil
}

// runMany executes the statement once per parameter set, sequentially.
// Affected-row counts accumulate across iterations, the last insert rowid
// wins, and the cursor counters are published only after every set succeeds.
func (c *Connection) runMany(ctx context.Context, cur *Cursor, query string, sets [][]any) error {
	var total, lastID int64
	for _, args := range sets {
		if err := c.runStatement(ctx, cur, query, args); err != nil {
			return err
		}
		total += cur.RowCount()
		lastID = cur.LastRowID()
	}
	cur.setResult(total, lastID)
	return nil
}

// runScript hands a multi-statement script to the engine as one opaque unit.
// No implicit transaction management, no result rows, no counter updates.
func (c *Connection) runScript(ctx context.Context, script string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.eng == nil {
		return ErrClosed
	}
	if err := c.eng.ExecuteBatch(ctx, script); err != nil {
		return &EngineError{Op: "execute", Err: err}
	}
	return nil
}

// maybeBegin opens an implicit transaction when the policy is transactional,
// the statement is data-modifying and the engine is not already inside a
// transaction. Caller holds c.mu.
func (c *Connection) maybeBegin(ctx context.Context, query string) error {
	if c.policy().autocommit() {
		return nil
	}
	if !isDataModifying(query) || !c.eng.IsAutocommit() {
		return nil
	}
	log.Printf("[DEBUG] implicit BEGIN before %q", firstWord(query))
	return c.execPlain(ctx, "BEGIN")
}

// execPlain runs a no-result statement outside the cursor pipeline, used for
// transaction control. Caller holds c.mu.
func (c *Connection) execPlain(ctx context.Context, query string) error {
	stmt, err := c.eng.Prepare(ctx, query)
	if err != nil {
		return &EngineError{Op: "prepare", Err: err}
	}
	defer stmt.Close()
	if err := stmt.Execute(ctx, nil); err != nil {
		return &EngineError{Op: "execute", Err: err}
	}
	return nil
}

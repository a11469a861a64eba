package driver

import (
	"context"
	"strings"
	"time"

	"github.com/umputun/litedrv/pkg/engine"
)

// fakeDB is a scripted in-memory engine for pipeline tests. Statements are
// recorded verbatim; queries listed in results produce rows, everything else
// executes with the configured changes counter. BEGIN/COMMIT/ROLLBACK flip
// the autocommit flag the way a real engine would.
type fakeDB struct {
	conn   *fakeConn
	closed bool
}

func (f *fakeDB) Connect() (engine.Conn, error) { return f.conn, nil }

func (f *fakeDB) Sync(_ context.Context) error { return nil }

func (f *fakeDB) Close() error { f.closed = true; return nil }

type fakeConn struct {
	executed   []string // every statement passed to Prepare, in order
	results    map[string][][]engine.Value
	columns    map[string][]string
	changes    int64
	lastRowID  int64
	autocommit bool
	nextCalls  int // Next invocations across all result streams
	closed     bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		results:    map[string][][]engine.Value{},
		columns:    map[string][]string{},
		autocommit: true,
	}
}

func (f *fakeConn) SetBusyTimeout(_ time.Duration) error { return nil }

func (f *fakeConn) IsAutocommit() bool { return f.autocommit }

func (f *fakeConn) Changes() int64 { return f.changes }

func (f *fakeConn) LastInsertRowID() int64 { return f.lastRowID }

func (f *fakeConn) Close() error { f.closed = true; return nil }

func (f *fakeConn) Prepare(_ context.Context, sql string) (engine.Stmt, error) {
	f.executed = append(f.executed, sql)
	return &fakeStmt{conn: f, sql: sql}, nil
}

func (f *fakeConn) ExecuteBatch(_ context.Context, script string) error {
	f.executed = append(f.executed, script)
	return nil
}

func (f *fakeConn) count(sql string) int {
	n := 0
	for _, s := range f.executed {
		if s == sql {
			n++
		}
	}
	return n
}

type fakeStmt struct {
	conn *fakeConn
	sql  string
}

func (s *fakeStmt) ColumnCount() int { return len(s.conn.columns[s.sql]) }

func (s *fakeStmt) Columns() []string { return s.conn.columns[s.sql] }

func (s *fakeStmt) Close() error { return nil }

func (s *fakeStmt) Execute(_ context.Context, _ []engine.Value) error {
	switch strings.ToUpper(strings.TrimSpace(s.sql)) {
	case "BEGIN":
		s.conn.autocommit = false
	case "COMMIT", "ROLLBACK":
		s.conn.autocommit = true
	}
	return nil
}

func (s *fakeStmt) Query(_ context.Context, _ []engine.Value) (engine.Rows, error) {
	rows := s.conn.results[s.sql]
	return &fakeRows{conn: s.conn, rows: rows, cols: len(s.conn.columns[s.sql])}, nil
}

type fakeRows struct {
	conn *fakeConn
	rows [][]engine.Value
	pos  int
	cols int
}

func (r *fakeRows) Next(_ context.Context) ([]engine.Value, error) {
	r.conn.nextCalls++
	if r.pos >= len(r.rows) {
		return nil, nil
	}
	row := r.rows[r.pos]
	r.pos++
	return row, nil
}

func (r *fakeRows) ColumnCount() int { return r.cols }

func (r *fakeRows) Close() error { return nil }

// fakeConnection wires a fake engine into a Connection with the given
// transaction settings.
func fakeConnection(conn *fakeConn, isolation string, mode AutocommitMode) *Connection {
	return &Connection{db: &fakeDB{conn: conn}, eng: conn, isolation: isolation, autocommit: mode}
}

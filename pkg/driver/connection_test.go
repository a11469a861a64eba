package driver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/umputun/litedrv/pkg/engine/sqlite" // register the local engine
)

func memConn(t *testing.T) *Connection {
	t.Helper()
	conn, err := Connect(context.Background(), DefaultConfig(":memory:"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestConnectionRoundTrip(t *testing.T) {
	ctx := context.Background()
	conn := memConn(t)

	_, err := conn.Execute(ctx, "CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT)")
	require.NoError(t, err)

	cur, err := conn.Execute(ctx, "INSERT INTO t (name) VALUES (?)", "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), cur.LastRowID())
	assert.Equal(t, int64(1), cur.RowCount())

	cur, err = conn.Execute(ctx, "INSERT INTO t (name) VALUES (?)", "b")
	require.NoError(t, err)
	assert.Equal(t, int64(2), cur.LastRowID())

	require.NoError(t, conn.Commit(ctx))

	cur, err = conn.Execute(ctx, "SELECT id, name FROM t ORDER BY id")
	require.NoError(t, err)
	assert.Equal(t, []Column{{Name: "id"}, {Name: "name"}}, cur.Description())

	rows, err := cur.FetchAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(1), "a"}, {int64(2), "b"}}, rows)
}

func TestConnectionClosed(t *testing.T) {
	ctx := context.Background()
	conn := memConn(t)
	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close(), "close is idempotent")

	_, err := conn.Execute(ctx, "SELECT 1")
	require.ErrorIs(t, err, ErrClosed)

	_, err = conn.ExecuteScript(ctx, "SELECT 1;")
	require.ErrorIs(t, err, ErrClosed)

	require.NoError(t, conn.Commit(ctx), "commit on closed connection is a no-op")
	require.NoError(t, conn.Rollback(ctx), "rollback on closed connection is a no-op")
	assert.False(t, conn.InTransaction())
}

func TestConnectionCommitNoop(t *testing.T) {
	ctx := context.Background()
	conn := memConn(t)

	// no transaction open, both are safe no-ops
	require.NoError(t, conn.Commit(ctx))
	require.NoError(t, conn.Commit(ctx))
	require.NoError(t, conn.Rollback(ctx))
}

func TestConnectionRollback(t *testing.T) {
	ctx := context.Background()
	conn := memConn(t)

	_, err := conn.Execute(ctx, "CREATE TABLE t (id INTEGER PRIMARY KEY)")
	require.NoError(t, err)
	_, err = conn.Execute(ctx, "INSERT INTO t DEFAULT VALUES")
	require.NoError(t, err)
	assert.True(t, conn.InTransaction())

	require.NoError(t, conn.Rollback(ctx))

	cur, err := conn.Execute(ctx, "SELECT count(*) FROM t")
	require.NoError(t, err)
	row, err := cur.FetchOne(ctx)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(0)}, row, "rollback discarded the insert")
}

func TestConnectionExecuteMany(t *testing.T) {
	ctx := context.Background()
	conn := memConn(t)

	_, err := conn.Execute(ctx, "CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT)")
	require.NoError(t, err)

	cur, err := conn.ExecuteMany(ctx, "INSERT INTO t (name) VALUES (?)",
		[][]any{{"a"}, {"b"}, {"c"}})
	require.NoError(t, err)
	assert.Equal(t, int64(3), cur.RowCount(), "affected rows accumulate")
	assert.Equal(t, int64(3), cur.LastRowID(), "last set wins")
	require.NoError(t, conn.Commit(ctx))

	cur, err = conn.Execute(ctx, "SELECT count(*) FROM t")
	require.NoError(t, err)
	row, err := cur.FetchOne(ctx)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(3)}, row)
}

func TestConnectionExecuteScript(t *testing.T) {
	ctx := context.Background()
	conn := memConn(t)

	_, err := conn.ExecuteScript(ctx, `
		CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT);
		INSERT INTO users (name) VALUES ('a');
		INSERT INTO users (name) VALUES ('b');
	`)
	require.NoError(t, err)

	cur, err := conn.Execute(ctx, "SELECT count(*) FROM users")
	require.NoError(t, err)
	row, err := cur.FetchOne(ctx)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(2)}, row)
}

func TestConnectionAutocommitModes(t *testing.T) {
	ctx := context.Background()

	t.Run("explicit on skips implicit transactions", func(t *testing.T) {
		cfg := DefaultConfig(":memory:")
		cfg.Autocommit = AutocommitOn
		conn, err := Connect(ctx, cfg)
		require.NoError(t, err)
		defer conn.Close()

		_, err = conn.Execute(ctx, "CREATE TABLE t (id INTEGER PRIMARY KEY)")
		require.NoError(t, err)
		_, err = conn.Execute(ctx, "INSERT INTO t DEFAULT VALUES")
		require.NoError(t, err)
		assert.False(t, conn.InTransaction())
	})

	t.Run("explicit off groups even without isolation", func(t *testing.T) {
		cfg := DefaultConfig(":memory:")
		cfg.IsolationLevel = ""
		cfg.Autocommit = AutocommitOff
		conn, err := Connect(ctx, cfg)
		require.NoError(t, err)
		defer conn.Close()

		_, err = conn.Execute(ctx, "CREATE TABLE t (id INTEGER PRIMARY KEY)")
		require.NoError(t, err)
		_, err = conn.Execute(ctx, "INSERT INTO t DEFAULT VALUES")
		require.NoError(t, err)
		assert.True(t, conn.InTransaction())
		require.NoError(t, conn.Commit(ctx))
	})

	t.Run("switch at runtime", func(t *testing.T) {
		conn := memConn(t)
		require.NoError(t, conn.SetAutocommit(AutocommitOn))
		assert.Equal(t, AutocommitOn, conn.Autocommit())

		_, err := conn.Execute(ctx, "CREATE TABLE t (id INTEGER PRIMARY KEY)")
		require.NoError(t, err)
		_, err = conn.Execute(ctx, "INSERT INTO t DEFAULT VALUES")
		require.NoError(t, err)
		assert.False(t, conn.InTransaction())

		err = conn.SetAutocommit(AutocommitMode(9))
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
	})
}

func TestConnectionWithTransaction(t *testing.T) {
	ctx := context.Background()
	conn := memConn(t)

	_, err := conn.Execute(ctx, "CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT)")
	require.NoError(t, err)
	require.NoError(t, conn.Commit(ctx))

	err = conn.WithTransaction(ctx, func(ctx context.Context) error {
		_, err := conn.Execute(ctx, "INSERT INTO t (name) VALUES (?)", "kept")
		return err
	})
	require.NoError(t, err)

	failure := errors.New("boom")
	err = conn.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := conn.Execute(ctx, "INSERT INTO t (name) VALUES (?)", "discarded"); err != nil {
			return err
		}
		return failure
	})
	require.ErrorIs(t, err, failure)

	cur, err := conn.Execute(ctx, "SELECT name FROM t ORDER BY id")
	require.NoError(t, err)
	rows, err := cur.FetchAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"kept"}}, rows)
}

func TestConnectionConcurrentCursors(t *testing.T) {
	// one goroutine drains a result set row by row while another executes
	// inserts on a second cursor of the same connection; both share one
	// physical engine connection, run with -race
	ctx := context.Background()
	conn := memConn(t)

	_, err := conn.Execute(ctx, "CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT)")
	require.NoError(t, err)
	sets := make([][]any, 500)
	for i := range sets {
		sets[i] = []any{fmt.Sprintf("row-%d", i)}
	}
	_, err = conn.ExecuteMany(ctx, "INSERT INTO t (name) VALUES (?)", sets)
	require.NoError(t, err)
	require.NoError(t, conn.Commit(ctx))

	reader, err := conn.Execute(ctx, "SELECT id, name FROM t ORDER BY id")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errCh := make(chan error, 2)
	wg.Add(2)

	go func() {
		defer wg.Done()
		fetched := 0
		for {
			row, err := reader.FetchOne(ctx)
			if err != nil {
				errCh <- fmt.Errorf("fetch failed after %d rows: %w", fetched, err)
				return
			}
			if row == nil {
				break
			}
			fetched++
		}
		if fetched < 500 {
			errCh <- fmt.Errorf("got %d rows, expected at least 500", fetched)
		}
	}()

	go func() {
		defer wg.Done()
		cur := conn.Cursor()
		for i := 0; i < 100; i++ {
			if err := cur.Execute(ctx, "INSERT INTO t (name) VALUES (?)", "concurrent"); err != nil {
				errCh <- fmt.Errorf("insert %d failed: %w", i, err)
				return
			}
			_ = cur.Description() // engine metadata access from the writer side
		}
	}()

	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}
	require.NoError(t, conn.Commit(ctx))

	cur, err := conn.Execute(ctx, "SELECT count(*) FROM t")
	require.NoError(t, err)
	row, err := cur.FetchOne(ctx)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(600)}, row)
}

func TestCursorFetchAfterConnectionClose(t *testing.T) {
	ctx := context.Background()
	conn := memConn(t)

	_, err := conn.Execute(ctx, "CREATE TABLE t (a)")
	require.NoError(t, err)
	_, err = conn.Execute(ctx, "INSERT INTO t VALUES (1)")
	require.NoError(t, err)
	require.NoError(t, conn.Commit(ctx))

	cur, err := conn.Execute(ctx, "SELECT a FROM t")
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	_, err = cur.FetchOne(ctx)
	require.ErrorIs(t, err, ErrClosed)
	_, err = cur.FetchAll(ctx)
	require.ErrorIs(t, err, ErrClosed)
	assert.Nil(t, cur.Description())
	require.NoError(t, cur.Close(), "close drops the slots without touching the engine")
}

func TestConnectionSyncLocal(t *testing.T) {
	conn := memConn(t)
	err := conn.Sync(context.Background())
	var engErr *EngineError
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, "sync", engErr.Op)
}

func TestConnectConfigErrors(t *testing.T) {
	ctx := context.Background()

	tbl := []struct {
		name string
		cfg  Config
	}{
		{"empty target", Config{}},
		{"encryption with sync", Config{Target: "local.db", EncryptionKey: "k", SyncURL: "libsql://r.example.com"}},
		{"invalid autocommit", Config{Target: ":memory:", Autocommit: AutocommitMode(5)}},
	}

	for _, tt := range tbl {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Connect(ctx, tt.cfg)
			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestConnectUnregisteredEngine(t *testing.T) {
	cfg := DefaultConfig("libsql://db.example.com")
	_, err := Connect(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no "remote" engine registered`)
}

func TestConnectionTypes(t *testing.T) {
	ctx := context.Background()
	conn := memConn(t)

	_, err := conn.Execute(ctx, "CREATE TABLE t (i INTEGER, r REAL, s TEXT, b BLOB, n)")
	require.NoError(t, err)
	_, err = conn.Execute(ctx, "INSERT INTO t VALUES (?, ?, ?, ?, ?)",
		int64(42), 2.5, "hello", []byte{0xde, 0xad}, nil)
	require.NoError(t, err)

	cur, err := conn.Execute(ctx, "SELECT i, r, s, b, n FROM t")
	require.NoError(t, err)
	row, err := cur.FetchOne(ctx)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(42), 2.5, "hello", []byte{0xde, 0xad}, nil}, row)
}

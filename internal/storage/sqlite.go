// Package storage provides the shared embedded-SQL backing store used by
// the consent registry, feedback store, usage tracker and
// scheduler metrics rollup. All four own small, independently
// migrated tables in the same engine; none of them needs a standalone
// server, so a pure-Go embedded driver is the idiomatic fit (see
// scrypster-memento's go.mod, which pulls in modernc.org/sqlite for exactly
// this "local relational tables next to a vector store" shape).
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	_ "modernc.org/sqlite"
)

var memCounter atomic.Uint64

// OpenSQLite opens (creating if necessary) a SQLite database file at path.
// An empty path opens a private in-memory database (a fresh one per call,
// so concurrent callers/tests never share state), which is useful for
// tests and for deployments that only need process-lifetime analytics.
func OpenSQLite(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:ctxengine_mem_%d?mode=memory&cache=shared", memCounter.Add(1))
	if path != "" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
			}
		}
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database %s: %w", path, err)
	}
	// A single shared connection avoids SQLITE_BUSY under the
	// write-behind/batched-flush access pattern every owner of this helper
	// uses; these tables are small and low-throughput enough that
	// serializing writes costs nothing observable.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite database %s: %w", path, err)
	}
	return db, nil
}

package testdb

import (
	"os"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	tcpg "github.com/mpapenbr/fpv-racedash/testsupport/tcpostgres"
)

var (
	once sync.Once
	pool *pgxpool.Pool
)

// InitTestDb returns a migrated database with empty tables.
// TESTDB_URL selects an external database, otherwise a container is started.
// The pool is shared by all tests of the calling package.
func InitTestDb() *pgxpool.Pool {
	once.Do(func() {
		if os.Getenv("TESTDB_URL") != "" {
			pool = tcpg.SetupExternalTestDb()
		} else {
			pool = tcpg.SetupTestDb()
		}
	})
	tcpg.ClearAllTables(pool)
	return pool
}

//nolint:errcheck // testsetup
package tcpostgres

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mpapenbr/fpv-racedash/pkg/db/migrate"
	database "github.com/mpapenbr/fpv-racedash/pkg/db/postgres"
)

// create a pg connection pool for the fpvdash test database
func SetupTestDb() *pgxpool.Pool {
	ctx := context.Background()
	port, err := nat.NewPort("tcp", "5432")
	if err != nil {
		log.Fatal(err)
	}
	container, err := StartPostgres(ctx,
		WithPort(port.Port()),
		WithCredentials("postgres", "password", "postgres"),
		WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second)),
		WithName("fpv-racedash-test"),
	)
	if err != nil {
		log.Fatal(err)
	}
	containerPort, _ := container.MappedPort(ctx, port)
	host, _ := container.Host(ctx)
	dbUrl := fmt.Sprintf("postgresql://postgres:password@%s:%s/postgres",
		host, containerPort.Port())
	return setup(dbUrl)
}

// SetupExternalTestDb uses the database given by TESTDB_URL.
func SetupExternalTestDb() *pgxpool.Pool {
	return setup(os.Getenv("TESTDB_URL"))
}

func setup(dbUrl string) *pgxpool.Pool {
	if err := migrate.MigrateDb(dbUrl); err != nil {
		log.Fatal(err)
	}
	pool, err := database.InitWithUrl(dbUrl)
	if err != nil {
		log.Fatal(err)
	}
	return pool
}

// ClearAllTables removes all events. Records are removed by cascade.
func ClearAllTables(pool *pgxpool.Pool) {
	pool.Exec(context.Background(), "delete from event")
}

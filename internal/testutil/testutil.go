package testutil

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/nkiryanov/tokenauth/internal/db"
)

const (
	postgresImage = "postgres:17-alpine"
	redisImage    = "redis:7-alpine"
)

// Return random free port on 127.0.0.1 address
func RandomPort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:")
	if err != nil {
		return 0, err
	}
	defer ln.Close() // nolint:errcheck

	return ln.Addr().(*net.TCPAddr).Port, nil
}

// Fail if docker not available
func requireDocker(t *testing.T) {
	t.Helper()

	out, err := exec.Command("docker", "info", "--format", "{{.ServerVersion}}").CombinedOutput()
	if err != nil {
		t.Fatalf("docker is required for this test but not available: %s", out)
	}
}

// OpenSQLite returns migrated in-memory database closed on test cleanup
func OpenSQLite(t *testing.T) *sqlx.DB {
	t.Helper()

	conn, err := db.OpenSQLite(t.Context(), db.SQLiteScheme+":memory:")
	require.NoError(t, err, "in-memory sqlite should be opened and migrated")
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

// NewMiniRedis starts in-process redis and a client to it.
// Both are stopped on test cleanup. Use the server to fast forward TTLs or simulate outage.
func NewMiniRedis(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

type PostgresContainer struct {
	DSN       string
	Pool      *pgxpool.Pool
	Terminate func()
}

// StartPostgresContainer runs postgres in docker with schema migrated.
// Fails the test if anything goes wrong, caller must call Terminate.
func StartPostgresContainer(t *testing.T) PostgresContainer {
	t.Helper()
	requireDocker(t)

	port, err := RandomPort()
	require.NoError(t, err, "free port for postgres should be acquired")

	container, err := postgres.Run(t.Context(),
		postgresImage,
		postgres.WithDatabase("tokenauth-test"),
		postgres.WithUsername("tokenauth"),
		postgres.WithPassword("pwd"),
		postgres.BasicWaitStrategies(),
		testcontainers.CustomizeRequestOption(func(req *testcontainers.GenericContainerRequest) error {
			req.ExposedPorts = []string{fmt.Sprintf("%d:5432", port)}
			return nil
		}),
	)
	require.NoError(t, err, "postgres container should start")

	dsn, err := container.ConnectionString(t.Context())
	require.NoError(t, err)
	t.Logf("postgres started, DSN=%v", dsn)

	pool, err := db.ConnectAndMigrate(t.Context(), dsn)
	require.NoError(t, err, "postgres should be connected and migrated")

	return PostgresContainer{
		DSN:  dsn,
		Pool: pool,
		Terminate: func() {
			pool.Close()
			testcontainers.CleanupContainer(t, container)
		},
	}
}

type RedisContainer struct {
	URL       string
	Terminate func()
}

// StartRedisContainer runs real redis in docker, same rules as for postgres
func StartRedisContainer(t *testing.T) RedisContainer {
	t.Helper()
	requireDocker(t)

	container, err := tcredis.Run(t.Context(), redisImage)
	require.NoError(t, err, "redis container should start")

	url, err := container.ConnectionString(t.Context())
	require.NoError(t, err)
	t.Logf("redis started, URL=%v", url)

	return RedisContainer{
		URL:       url,
		Terminate: func() { testcontainers.CleanupContainer(t, container) },
	}
}

type txBeginner interface {
	Begin(context.Context) (pgx.Tx, error)
}

// WithTx runs testFunc inside transaction rolled back afterwards,
// so every test sees the database as it was before
func WithTx(conn txBeginner, t *testing.T, testFunc func(tx pgx.Tx)) {
	t.Helper()

	tx, err := conn.Begin(t.Context())
	require.NoError(t, err)
	defer func() {
		require.NoError(t, tx.Rollback(t.Context()))
	}()

	testFunc(tx)
}

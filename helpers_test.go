package pgmq_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	pgmq "github.com/pgqueue/pgmq-go"
)

// Integration tests run against a real PostgreSQL with the pgmq extension,
// started once per package in a container. The container is started lazily so
// that `go test -short` never touches docker.

type postgresContainer struct {
	container testcontainers.Container
	config    *pgxpool.Config
}

var (
	containerOnce sync.Once
	sharedDB      *postgresContainer
	containerErr  error
)

// skipIfShort skips a test if we're running in short mode
func skipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping long-running test in short mode")
	}
}

func newPostgresContainer(ctx context.Context) (*postgresContainer, error) {
	req := testcontainers.ContainerRequest{
		// Postgres image with the pgmq extension preinstalled.
		Image:        "quay.io/tembo/pg17-pgmq:latest",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "postgres",
			"POSTGRES_PASSWORD": "postgres",
			"POSTGRES_DB":       "postgres",
		},
		WaitingFor: wait.ForAll(
			// First, we wait for the container to log readiness twice.
			// This is because it will restart itself after the first startup.
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			// Then, we wait for docker to actually serve the port on localhost.
			// For non-linux OSes like Mac and Windows, Docker or Rancher Desktop will have to start a separate proxy.
			// Without this, the tests will be flaky on those OSes!
			wait.ForListeningPort("5432/tcp"),
		).WithDeadline(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start container: %w", err)
	}

	mappedPort, err := container.MappedPort(ctx, "5432")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get mapped port: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get host: %w", err)
	}

	connString := fmt.Sprintf("postgres://postgres:postgres@%s:%s/postgres", host, mappedPort.Port())
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to parse connection config: %w", err)
	}

	return &postgresContainer{
		container: container,
		config:    config,
	}, nil
}

// setupTestPool connects to the shared container and ensures the pgmq
// extension is installed, starting the container on first use.
func setupTestPool(t *testing.T) (*pgxpool.Pool, context.Context) {
	t.Helper()
	ctx := context.Background()

	containerOnce.Do(func() {
		sharedDB, containerErr = newPostgresContainer(ctx)
	})
	if containerErr != nil {
		t.Fatalf("Failed to start postgres container: %v", containerErr)
	}

	pool, err := pgxpool.NewWithConfig(ctx, sharedDB.config)
	if err != nil {
		t.Fatalf("Failed to create pool: %v", err)
	}
	if err := pgmq.CreateExtension(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("Failed to create pgmq extension: %v", err)
	}
	t.Cleanup(pool.Close)

	return pool, ctx
}

// setupLiveClient returns a client backed by the container database and a
// fresh queue unique to the test, dropped on cleanup.
func setupLiveClient(t *testing.T) (*pgmq.Client, string, context.Context) {
	t.Helper()
	pool, ctx := setupTestPool(t)

	client, err := pgmq.DialFromPool(ctx, pool)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	queue := uniqueQueueName(t)
	if err := client.CreateQueue(ctx, queue); err != nil {
		t.Fatalf("Failed to create queue: %v", err)
	}
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.DropQueue(cleanupCtx, queue); err != nil {
			t.Logf("Warning: Failed to drop queue %s: %v", queue, err)
		}
	})

	return client, queue, ctx
}

// uniqueQueueName converts the test name into a valid pgmq queue identifier
// and makes it unique across runs.
func uniqueQueueName(t *testing.T) string {
	replacer := strings.NewReplacer(
		"/", "_",
		" ", "_",
		"(", "",
		")", "",
		"#", "",
		".", "_",
	)
	sanitized := strings.ToLower(replacer.Replace(t.Name()))
	if len(sanitized) > 30 {
		sanitized = sanitized[:30]
	}
	return fmt.Sprintf("%s_%d", sanitized, time.Now().UnixNano()%1_000_000)
}

// Package testenv starts throwaway PostgreSQL and MinIO containers for
// tests. Every helper skips the calling test when Docker is unreachable or
// when tests run with -short.
package testenv

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"testing"

	_ "github.com/lib/pq"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	"submission-intake/internal/db"
)

const (
	pgPassword    = "secret"
	pgDatabase    = "intake"
	minioUser     = "minio"
	minioPassword = "minio123"
)

func pool(t *testing.T) *dockertest.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in -short mode")
	}
	p, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	if err := p.Client.Ping(); err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	return p
}

// Postgres starts a PostgreSQL container, applies the schema migrations and
// returns an open pool. The container is purged when the test ends.
func Postgres(t *testing.T) *sql.DB {
	t.Helper()
	p := pool(t)

	res, err := p.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "15",
		Env: []string{
			"POSTGRES_PASSWORD=" + pgPassword,
			"POSTGRES_DB=" + pgDatabase,
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
	})
	if err != nil {
		t.Fatalf("could not start postgres: %v", err)
	}
	t.Cleanup(func() { _ = p.Purge(res) })

	dsn := fmt.Sprintf("postgres://postgres:%s@localhost:%s/%s?sslmode=disable",
		pgPassword, res.GetPort("5432/tcp"), pgDatabase)

	// Wait for Postgres
	if err := p.Retry(func() error {
		pingDB, err := sql.Open("postgres", dsn)
		if err != nil {
			return err
		}
		defer pingDB.Close()
		return pingDB.Ping()
	}); err != nil {
		t.Fatalf("could not connect to postgres: %v", err)
	}

	conn, err := db.OpenDB(dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	if err := db.RunMigrations(conn); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return conn
}

// MinIO starts a MinIO container with an empty bucket and returns a client
// for it, the endpoint and the bucket name.
func MinIO(t *testing.T) (*minio.Client, string, string) {
	t.Helper()
	p := pool(t)

	res, err := p.RunWithOptions(&dockertest.RunOptions{
		Repository: "minio/minio",
		Tag:        "RELEASE.2024-01-31T20-20-33Z",
		Cmd:        []string{"server", "/data"},
		Env: []string{
			"MINIO_ROOT_USER=" + minioUser,
			"MINIO_ROOT_PASSWORD=" + minioPassword,
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
	})
	if err != nil {
		t.Fatalf("could not start minio: %v", err)
	}
	t.Cleanup(func() { _ = p.Purge(res) })

	endpoint := "localhost:" + res.GetPort("9000/tcp")

	if err := p.Retry(func() error {
		resp, err := http.Get("http://" + endpoint + "/minio/health/live")
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("minio not ready: %d", resp.StatusCode)
		}
		return nil
	}); err != nil {
		t.Fatalf("minio not ready: %v", err)
	}

	mc, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(minioUser, minioPassword, ""),
		Secure: false,
	})
	if err != nil {
		t.Fatalf("failed to create minio client: %v", err)
	}

	bucket := "testbucket"
	if err := mc.MakeBucket(context.Background(), bucket, minio.MakeBucketOptions{}); err != nil {
		t.Fatalf("could not create bucket: %v", err)
	}
	return mc, endpoint, bucket
}

// MinIOCredentials returns the access and secret key of containers started by MinIO.
func MinIOCredentials() (string, string) {
	return minioUser, minioPassword
}

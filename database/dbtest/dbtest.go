// Package dbtest starts a disposable Postgres for integration tests.
package dbtest

import (
	"context"
	"testing"
	"time"

	"github.com/irsalhamdi/e-commerce-shop/database"
	"github.com/jmoiron/sqlx"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
)

const (
	dbUser     = "postgres"
	dbPassword = "postgres"
)

// NewUnit starts a migrated Postgres container named after the test and
// registers its teardown. The test is skipped when no Docker daemon is reachable.
func NewUnit(t *testing.T, name string) *sqlx.DB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("docker not available: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker not reachable: %v", err)
	}
	pool.MaxWait = time.Minute

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "15-alpine",
		Env: []string{
			"POSTGRES_USER=" + dbUser,
			"POSTGRES_PASSWORD=" + dbPassword,
			"POSTGRES_DB=" + name,
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("starting postgres: %v", err)
	}
	_ = resource.Expire(300)

	t.Cleanup(func() {
		if err := pool.Purge(resource); err != nil {
			t.Logf("purging postgres: %v", err)
		}
	})

	cfg := database.Config{
		User:         dbUser,
		Password:     dbPassword,
		Host:         resource.GetHostPort("5432/tcp"),
		Name:         name,
		MaxIdleConns: 2,
		MaxOpenConns: 10,
		DisableTLS:   true,
	}

	db, err := database.Open(cfg)
	if err != nil {
		t.Fatalf("opening postgres: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	err = pool.Retry(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return database.StatusCheck(ctx, db)
	})
	if err != nil {
		t.Fatalf("waiting for postgres: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrating: %v", err)
	}

	return db
}

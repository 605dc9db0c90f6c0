package postgres

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"

	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

// TestDB is a throwaway database backed by a postgres container. Tests
// call SetupTestDB once, defer Cleanup, and reset state between
// subtests with TruncateTables.
type TestDB struct {
	DB *DB

	terminate func(context.Context) error
}

// SetupTestDB starts a postgres container, connects through the usual
// pool wrapper, and applies the schema migrations.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("storyqa_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	terminate := func(ctx context.Context) error {
		return container.Terminate(ctx)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		terminate(ctx)
		t.Fatalf("reading connection string: %v", err)
	}

	db, err := NewFromDSN(connStr)
	if err != nil {
		terminate(ctx)
		t.Fatalf("connecting to test database: %v", err)
	}

	tdb := &TestDB{DB: db, terminate: terminate}
	if err := tdb.applyMigrations(); err != nil {
		tdb.Cleanup(t)
		t.Fatalf("applying migrations: %v", err)
	}
	return tdb
}

// applyMigrations runs every migrations/*.sql file in name order. A
// fresh container means each file applies exactly once, so any error
// is fatal.
func (td *TestDB) applyMigrations() error {
	dir, err := migrationsDir()
	if err != nil {
		return err
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return fmt.Errorf("listing migrations: %w", err)
	}
	sort.Strings(files)

	for _, file := range files {
		ddl, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("reading %s: %w", filepath.Base(file), err)
		}
		if _, err := td.DB.Exec(string(ddl)); err != nil {
			return fmt.Errorf("applying %s: %w", filepath.Base(file), err)
		}
	}
	return nil
}

// migrationsDir resolves the repo's migrations directory relative to
// this source file, so tests pass regardless of working directory.
func migrationsDir() (string, error) {
	_, self, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("locating source file")
	}
	dir := filepath.Join(filepath.Dir(self), "..", "..", "..", "migrations")
	if _, err := os.Stat(dir); err != nil {
		return "", fmt.Errorf("migrations directory not found at %s", dir)
	}
	return dir, nil
}

// Cleanup closes the pool and tears down the container.
func (td *TestDB) Cleanup(t *testing.T) {
	t.Helper()

	if td.DB != nil {
		td.DB.Close()
	}
	if td.terminate != nil {
		if err := td.terminate(context.Background()); err != nil {
			t.Logf("terminating container: %v", err)
		}
	}
}

// TruncateTables empties every table so the next subtest starts clean.
func (td *TestDB) TruncateTables(t *testing.T) {
	t.Helper()

	if _, err := td.DB.Exec("TRUNCATE TABLE execution_results, test_cases, reports, runs CASCADE"); err != nil {
		t.Fatalf("truncating tables: %v", err)
	}
}

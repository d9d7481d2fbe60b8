//go:build integration

package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func TestHRSchemaRoundTripOnPostgres(t *testing.T) {
	db := openTemporaryPostgres(t)
	runner := NewRunner()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if applied, err := runner.Up(ctx, db, 0); err != nil || applied < 1 {
		t.Fatalf("Up() = %d, %v", applied, err)
	}
	if applied, err := runner.Up(ctx, db, 0); err != nil || applied != 0 {
		t.Fatalf("second Up() = %d, %v; want 0, nil", applied, err)
	}
	for _, table := range []string{"employees", "leave_requests", "payroll_records", "organization_units", "attendance_records"} {
		if !postgresTableExists(t, db, table) {
			t.Fatalf("table %s missing after Up()", table)
		}
	}

	status, err := runner.Status(ctx, db)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	for _, version := range status {
		if !version.Applied || version.Modified {
			t.Fatalf("unexpected status row: %+v", version)
		}
	}

	if rolledBack, err := runner.Down(ctx, db, len(status)); err != nil || rolledBack != len(status) {
		t.Fatalf("Down() = %d, %v", rolledBack, err)
	}
	if postgresTableExists(t, db, "employees") {
		t.Fatal("employees still exists after Down()")
	}
	var remaining int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+ledgerTable).Scan(&remaining); err != nil || remaining != 0 {
		t.Fatalf("ledger rows = %d, %v", remaining, err)
	}
}

// openTemporaryPostgres creates a throwaway database next to the one named by ASKHR_TEST_STORE_DSN
// and drops it when the test ends.
func openTemporaryPostgres(t *testing.T) *sql.DB {
	t.Helper()
	adminDSN := strings.TrimSpace(os.Getenv("ASKHR_TEST_STORE_DSN"))
	if adminDSN == "" {
		t.Skip("ASKHR_TEST_STORE_DSN is not set")
	}
	parsed, err := url.Parse(adminDSN)
	if err != nil || strings.TrimPrefix(parsed.Path, "/") == "" {
		t.Fatalf("ASKHR_TEST_STORE_DSN must be a postgres URL with a database name: %v", err)
	}

	admin, err := sql.Open("pgx", adminDSN)
	if err != nil {
		t.Fatalf("open admin connection: %v", err)
	}
	name := fmt.Sprintf("askhr_migrate_it_%d", time.Now().UnixNano())
	if _, err := admin.Exec(`CREATE DATABASE ` + name); err != nil {
		t.Fatalf("create %s: %v", name, err)
	}

	target := *parsed
	target.Path = "/" + name
	db, err := sql.Open("pgx", target.String())
	if err != nil {
		t.Fatalf("open %s: %v", name, err)
	}
	t.Cleanup(func() {
		_ = db.Close()
		_, _ = admin.Exec(`SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = $1`, name)
		if _, err := admin.Exec(`DROP DATABASE ` + name); err != nil {
			t.Errorf("drop %s: %v", name, err)
		}
		_ = admin.Close()
	})
	return db
}

func postgresTableExists(t *testing.T, db *sql.DB, table string) bool {
	t.Helper()
	var found sql.NullString
	if err := db.QueryRow(`SELECT to_regclass($1)::text`, "public."+table).Scan(&found); err != nil {
		t.Fatalf("to_regclass(%s): %v", table, err)
	}
	return found.Valid
}

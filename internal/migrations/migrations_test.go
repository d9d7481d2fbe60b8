package migrations

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func TestLoadMigrationsSortsAndPairsUpDown(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/000002_two.up.sql":   {Data: []byte("SELECT 2;")},
		"sql/000002_two.down.sql": {Data: []byte("SELECT -2;")},
		"sql/000001_one.up.sql":   {Data: []byte("SELECT 1;")},
		"sql/000001_one.down.sql": {Data: []byte("SELECT -1;")},
	}

	items, err := loadScripts(fsys)
	if err != nil {
		t.Fatalf("loadMigrations() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d", len(items))
	}
	if items[0].Version != 1 || items[1].Version != 2 {
		t.Fatalf("unexpected migration order: %+v", items)
	}
	if items[0].Name != "one" || items[0].Checksum == "" || items[0].Checksum == items[1].Checksum {
		t.Fatalf("unexpected names or checksums: %+v", items)
	}
}

func TestLoadMigrationsRejectsConflictingNames(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/000001_one.up.sql":   {Data: []byte("SELECT 1;")},
		"sql/000001_uno.down.sql": {Data: []byte("SELECT -1;")},
	}
	if _, err := loadScripts(fsys); err == nil || !strings.Contains(err.Error(), "conflicting names") {
		t.Fatalf("loadScripts() error = %v", err)
	}
}

func TestRunnerRefusesEditedAppliedMigration(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()

	original := &Runner{fsys: fstest.MapFS{
		"sql/000001_notes.up.sql":   {Data: []byte("CREATE TABLE notes (id INTEGER);")},
		"sql/000001_notes.down.sql": {Data: []byte("DROP TABLE notes;")},
	}}
	if _, err := original.Up(ctx, db, 0); err != nil {
		t.Fatalf("Up() error = %v", err)
	}

	edited := &Runner{fsys: fstest.MapFS{
		"sql/000001_notes.up.sql":   {Data: []byte("CREATE TABLE notes (id INTEGER, body TEXT);")},
		"sql/000001_notes.down.sql": {Data: []byte("DROP TABLE notes;")},
		"sql/000002_extra.up.sql":   {Data: []byte("CREATE TABLE extra (id INTEGER);")},
		"sql/000002_extra.down.sql": {Data: []byte("DROP TABLE extra;")},
	}}
	applied, err := edited.Up(ctx, db, 0)
	if !errors.Is(err, ErrChecksumMismatch) || applied != 0 {
		t.Fatalf("Up() = %d, %v; want 0, ErrChecksumMismatch", applied, err)
	}
	assertSQLiteTable(t, db, "extra", false)

	status, err := edited.Status(ctx, db)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if len(status) != 2 || !status[0].Modified || status[1].Applied {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestLoadMigrationsErrorsWhenDownMissing(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/000001_one.up.sql": {Data: []byte("SELECT 1;")},
	}
	_, err := loadScripts(fsys)
	if err == nil {
		t.Fatal("expected error for missing down migration")
	}
	if !strings.Contains(err.Error(), "missing down SQL") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunnerAppliesAndRollsBackOnSQLite(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	runner := NewRunner()

	applied, err := runner.Up(ctx, db, 0)
	if err != nil {
		t.Fatalf("runner.Up() error = %v", err)
	}
	if applied != 1 {
		t.Fatalf("runner.Up() applied %d migrations, want 1", applied)
	}
	again, err := runner.Up(ctx, db, 0)
	if err != nil || again != 0 {
		t.Fatalf("second runner.Up() = %d, %v; want 0, nil", again, err)
	}

	assertSQLiteTable(t, db, "employees", true)
	assertSQLiteTable(t, db, "payroll_records", true)

	status, err := runner.Status(ctx, db)
	if err != nil {
		t.Fatalf("runner.Status() error = %v", err)
	}
	if len(status) != 1 || status[0].Version != 1 || status[0].Name != "hr" || !status[0].Applied || status[0].Modified {
		t.Fatalf("unexpected status: %+v", status)
	}

	rolledBack, err := runner.Down(ctx, db, 1)
	if err != nil {
		t.Fatalf("runner.Down() error = %v", err)
	}
	if rolledBack != 1 {
		t.Fatalf("runner.Down() rolled back %d migrations, want 1", rolledBack)
	}
	assertSQLiteTable(t, db, "employees", false)
}

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func assertSQLiteTable(t *testing.T, db *sql.DB, table string, expected bool) {
	t.Helper()

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&count); err != nil {
		t.Fatalf("query table %q existence failed: %v", table, err)
	}
	if exists := count > 0; exists != expected {
		t.Fatalf("table %q exists = %v, want %v", table, exists, expected)
	}
}

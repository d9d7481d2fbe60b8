// Package migrations applies the embedded HR schema to the record store.
package migrations

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

//go:embed sql/*.sql
var embeddedFS embed.FS

const ledgerTable = "askhr_schema_migrations"

var scriptName = regexp.MustCompile(`^([0-9]+)_([a-z0-9_]+)\.(up|down)\.sql$`)

// ErrChecksumMismatch means an applied migration was edited after it ran.
var ErrChecksumMismatch = errors.New("applied migration differs from embedded source")

type Runner struct {
	fsys fs.FS
}

func NewRunner() *Runner {
	return &Runner{fsys: embeddedFS}
}

type script struct {
	Version  int64
	Name     string
	Checksum string
	Up       string
	Down     string
}

// Version is one row of Status output.
type Version struct {
	Version  int64  `json:"version"`
	Name     string `json:"name"`
	Applied  bool   `json:"applied"`
	Modified bool   `json:"modified,omitempty"`
}

type state struct {
	scripts []script
	applied map[int64]string
}

func (r *Runner) load(ctx context.Context, db *sql.DB) (state, error) {
	scripts, err := loadScripts(r.fsys)
	if err != nil {
		return state{}, err
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+ledgerTable+` (
	version BIGINT PRIMARY KEY,
	name TEXT NOT NULL,
	checksum TEXT NOT NULL,
	applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`); err != nil {
		return state{}, fmt.Errorf("ensure migration ledger: %w", err)
	}

	rows, err := db.QueryContext(ctx, `SELECT version, checksum FROM `+ledgerTable)
	if err != nil {
		return state{}, fmt.Errorf("query migration ledger: %w", err)
	}
	defer func() { _ = rows.Close() }()

	applied := map[int64]string{}
	for rows.Next() {
		var version int64
		var checksum string
		if err := rows.Scan(&version, &checksum); err != nil {
			return state{}, fmt.Errorf("scan migration ledger: %w", err)
		}
		applied[version] = checksum
	}
	if err := rows.Err(); err != nil {
		return state{}, fmt.Errorf("read migration ledger: %w", err)
	}
	return state{scripts: scripts, applied: applied}, nil
}

// Up applies pending migrations in version order; steps <= 0 applies all of them. Nothing runs when
// an already applied script no longer matches its recorded checksum.
func (r *Runner) Up(ctx context.Context, db *sql.DB, steps int) (int, error) {
	st, err := r.load(ctx, db)
	if err != nil {
		return 0, err
	}
	for _, item := range st.scripts {
		if checksum, ok := st.applied[item.Version]; ok && checksum != item.Checksum {
			return 0, fmt.Errorf("migration %06d_%s: %w", item.Version, item.Name, ErrChecksumMismatch)
		}
	}

	count := 0
	for _, item := range st.scripts {
		if _, ok := st.applied[item.Version]; ok {
			continue
		}
		if steps > 0 && count >= steps {
			break
		}
		record := fmt.Sprintf(`INSERT INTO %s (version, name, checksum) VALUES (%d, '%s', '%s')`,
			ledgerTable, item.Version, item.Name, item.Checksum)
		if err := runInTx(ctx, db, item.Up, record); err != nil {
			return count, fmt.Errorf("apply migration %06d_%s: %w", item.Version, item.Name, err)
		}
		count++
	}
	return count, nil
}

// Down rolls back the newest applied migrations; steps <= 0 rolls back one.
func (r *Runner) Down(ctx context.Context, db *sql.DB, steps int) (int, error) {
	if steps <= 0 {
		steps = 1
	}
	st, err := r.load(ctx, db)
	if err != nil {
		return 0, err
	}

	byVersion := make(map[int64]script, len(st.scripts))
	for _, item := range st.scripts {
		byVersion[item.Version] = item
	}
	versions := make([]int64, 0, len(st.applied))
	for version := range st.applied {
		versions = append(versions, version)
	}
	slices.Sort(versions)
	slices.Reverse(versions)

	count := 0
	for _, version := range versions {
		if count >= steps {
			break
		}
		item, ok := byVersion[version]
		if !ok {
			return count, fmt.Errorf("applied migration %d is missing from source", version)
		}
		erase := fmt.Sprintf(`DELETE FROM %s WHERE version = %d`, ledgerTable, version)
		if err := runInTx(ctx, db, item.Down, erase); err != nil {
			return count, fmt.Errorf("roll back migration %06d_%s: %w", item.Version, item.Name, err)
		}
		count++
	}
	return count, nil
}

// Status reports every embedded migration and whether it has been applied.
func (r *Runner) Status(ctx context.Context, db *sql.DB) ([]Version, error) {
	st, err := r.load(ctx, db)
	if err != nil {
		return nil, err
	}
	out := make([]Version, 0, len(st.scripts))
	for _, item := range st.scripts {
		checksum, applied := st.applied[item.Version]
		out = append(out, Version{
			Version:  item.Version,
			Name:     item.Name,
			Applied:  applied,
			Modified: applied && checksum != item.Checksum,
		})
	}
	return out, nil
}

func runInTx(ctx context.Context, db *sql.DB, statements ...string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, statement := range statements {
		if _, err := tx.ExecContext(ctx, statement); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func loadScripts(fsys fs.FS) ([]script, error) {
	entries, err := fs.ReadDir(fsys, "sql")
	if err != nil {
		return nil, fmt.Errorf("read migration dir: %w", err)
	}

	byVersion := map[int64]*script{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		parts := scriptName.FindStringSubmatch(path.Base(entry.Name()))
		if parts == nil {
			continue
		}
		version, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse migration version for %q: %w", entry.Name(), err)
		}
		body, err := fs.ReadFile(fsys, path.Join("sql", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %q: %w", entry.Name(), err)
		}

		item, ok := byVersion[version]
		if !ok {
			item = &script{Version: version, Name: parts[2]}
			byVersion[version] = item
		}
		if item.Name != parts[2] {
			return nil, fmt.Errorf("migration %d has conflicting names %q and %q", version, item.Name, parts[2])
		}
		if parts[3] == "up" {
			item.Up = string(body)
			sum := sha256.Sum256(body)
			item.Checksum = hex.EncodeToString(sum[:])
		} else {
			item.Down = string(body)
		}
	}

	scripts := make([]script, 0, len(byVersion))
	for _, item := range byVersion {
		if strings.TrimSpace(item.Up) == "" {
			return nil, fmt.Errorf("migration %d missing up SQL", item.Version)
		}
		if strings.TrimSpace(item.Down) == "" {
			return nil, fmt.Errorf("migration %d missing down SQL", item.Version)
		}
		scripts = append(scripts, *item)
	}
	slices.SortFunc(scripts, func(a, b script) int {
		switch {
		case a.Version < b.Version:
			return -1
		case a.Version > b.Version:
			return 1
		}
		return 0
	})
	return scripts, nil
}

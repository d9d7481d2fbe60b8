package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"
	_ "modernc.org/sqlite"
)

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectDuckDB   Dialect = "duckdb"
	DialectSQLite   Dialect = "sqlite"
)

func ParseDialect(value string) (Dialect, error) {
	switch Dialect(strings.ToLower(strings.TrimSpace(value))) {
	case DialectPostgres, "pgx", "postgresql":
		return DialectPostgres, nil
	case DialectDuckDB:
		return DialectDuckDB, nil
	case DialectSQLite, "sqlite3":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("unsupported sql dialect %q", value)
	}
}

func (d Dialect) DriverName() string {
	switch d {
	case DialectPostgres:
		return "pgx"
	case DialectDuckDB:
		return "duckdb"
	default:
		return "sqlite"
	}
}

// Placeholder renders the n-th (1-based) bind parameter.
func (d Dialect) Placeholder(n int) string {
	if d == DialectPostgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// LockClause is appended to the read half of a mutation.
func (d Dialect) LockClause() string {
	if d == DialectPostgres {
		return " FOR UPDATE"
	}
	return ""
}

type DBConfig struct {
	Dialect         Dialect
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

func Open(ctx context.Context, cfg DBConfig) (*sql.DB, error) {
	if cfg.DSN == "" && cfg.Dialect == DialectPostgres {
		return nil, fmt.Errorf("store dsn is required")
	}

	db, err := sql.Open(cfg.Dialect.DriverName(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open store db: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if cfg.Dialect == DialectSQLite && (cfg.DSN == "" || strings.Contains(cfg.DSN, ":memory:")) {
		// Every connection to an in-memory sqlite database sees its own empty database.
		maxOpen = 1
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping store db: %w", err)
	}

	return db, nil
}

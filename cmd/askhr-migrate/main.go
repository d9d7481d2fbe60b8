package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/duckmesh/askhr/internal/config"
	"github.com/duckmesh/askhr/internal/migrations"
	"github.com/duckmesh/askhr/internal/store/sqlstore"
)

func main() {
	direction := flag.String("direction", "up", "migration direction: up|down|status")
	steps := flag.Int("steps", 0, "number of migration steps; 0 means all for up, 1 for down")
	flag.Parse()

	cfg, err := config.LoadFromEnv("askhr-migrate")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	if cfg.Store.Backend == "memory" {
		fmt.Fprintln(os.Stderr, "ASKHR_STORE_BACKEND must name a SQL backend (postgres, duckdb or sqlite)")
		os.Exit(1)
	}
	dialect, err := sqlstore.ParseDialect(cfg.Store.Backend)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := sqlstore.Open(ctx, sqlstore.DBConfig{Dialect: dialect, DSN: cfg.Store.DSN, MaxOpenConns: 1, MaxIdleConns: 1})
	if err != nil {
		fmt.Fprintf(os.Stderr, "database open error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	runner := migrations.NewRunner()
	switch *direction {
	case "up":
		applied, err := runner.Up(ctx, db, *steps)
		if err != nil {
			fmt.Fprintf(os.Stderr, "migration up failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("applied %d migration(s)\n", applied)
	case "down":
		applied, err := runner.Down(ctx, db, *steps)
		if err != nil {
			fmt.Fprintf(os.Stderr, "migration down failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("rolled back %d migration(s)\n", applied)
	case "status":
		versions, err := runner.Status(ctx, db)
		if err != nil {
			fmt.Fprintf(os.Stderr, "migration status failed: %v\n", err)
			os.Exit(1)
		}
		for _, version := range versions {
			state := "pending"
			switch {
			case version.Modified:
				state = "applied (modified since)"
			case version.Applied:
				state = "applied"
			}
			fmt.Printf("%06d_%s %s\n", version.Version, version.Name, state)
		}
	default:
		fmt.Fprintf(os.Stderr, "invalid direction: %s\n", *direction)
		os.Exit(1)
	}
}

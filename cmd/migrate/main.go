package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/laia-connect/billing/internal/config"
	"github.com/laia-connect/billing/internal/logger"
	_ "github.com/lib/pq"
)

// Applies the SQL files under migrations/ in lexical order, tracking
// applied files in schema_migrations so re-runs are no-ops.
func main() {
	dir := flag.String("dir", "migrations", "Directory containing migration SQL files")
	dryRun := flag.Bool("dry-run", false, "Print pending migrations without executing them")
	flag.Parse()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logger.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	db, err := sqlx.Connect("postgres", cfg.Postgres.GetDSN())
	if err != nil {
		logger.Fatalw("Failed to connect to postgres", "error", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename   TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		logger.Fatalw("Failed to create schema_migrations table", "error", err)
	}

	files, err := filepath.Glob(filepath.Join(*dir, "*.sql"))
	if err != nil {
		logger.Fatalw("Failed to list migrations", "error", err)
	}
	sort.Strings(files)

	applied := map[string]bool{}
	var names []string
	if err := db.SelectContext(ctx, &names, `SELECT filename FROM schema_migrations`); err != nil {
		logger.Fatalw("Failed to read applied migrations", "error", err)
	}
	for _, n := range names {
		applied[n] = true
	}

	for _, file := range files {
		name := filepath.Base(file)
		if applied[name] {
			continue
		}

		if *dryRun {
			fmt.Printf("pending: %s\n", name)
			continue
		}

		sqlBytes, err := os.ReadFile(file)
		if err != nil {
			logger.Fatalw("Failed to read migration", "file", name, "error", err)
		}

		logger.Infow("Applying migration", "file", name)
		tx, err := db.BeginTxx(ctx, nil)
		if err != nil {
			logger.Fatalw("Failed to begin transaction", "error", err)
		}
		if _, err := tx.ExecContext(ctx, string(sqlBytes)); err != nil {
			_ = tx.Rollback()
			logger.Fatalw("Migration failed", "file", name, "error", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (filename) VALUES ($1)`, name); err != nil {
			_ = tx.Rollback()
			logger.Fatalw("Failed to record migration", "file", name, "error", err)
		}
		if err := tx.Commit(); err != nil {
			logger.Fatalw("Failed to commit migration", "file", name, "error", err)
		}
	}

	if !*dryRun {
		logger.Info("Migrations up to date")
	}
}

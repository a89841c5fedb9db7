package main

import (
	"context"
	"database/sql"
	"embed"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/nw-com/nw-patrol/config"
	"github.com/nw-com/nw-patrol/utils/logger"
	"github.com/nw-com/nw-patrol/utils/migration"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func main() {
	var (
		command = flag.String("command", "up", "Migration command (up, down, status)")
		steps   = flag.Int("steps", 1, "Number of migrations to roll back with -command=down")
		verbose = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Could not load .env file", "error", err)
	}

	cfg, err := config.LoadDatabase()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	level := cfg.LogLevel
	if *verbose {
		level = "debug"
	}
	appLogger := logger.NewWithWriter(level, os.Stdout).With("service", "user-admin-migrate")

	if err := run(*command, *steps, cfg, appLogger); err != nil {
		appLogger.Error("Migration failed", "command", *command, "error", err)
		os.Exit(1)
	}
}

func run(command string, steps int, cfg *config.Config, appLogger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := sql.Open("postgres", cfg.DatabaseDSN())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(2)

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	files, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	migrator := migration.NewMigrator(db, appLogger, files)

	switch command {
	case "up":
		applied, err := migrator.Up(ctx)
		if err != nil {
			return err
		}
		appLogger.Info("Migrations applied", "count", applied)

	case "down":
		if steps <= 0 {
			steps = 1
		}
		for i := range steps {
			rolled, err := migrator.Down(ctx)
			if err != nil {
				return fmt.Errorf("step %d: %w", i+1, err)
			}
			if !rolled {
				appLogger.Info("No migrations to roll back")
				break
			}
		}

	case "status":
		states, err := migrator.Status(ctx)
		if err != nil {
			return err
		}
		for _, st := range states {
			if st.Applied {
				appLogger.Info("Migration applied",
					"version", st.Version,
					"name", st.Name,
					"applied_at", st.AppliedAt.Format(time.RFC3339),
					"drifted", st.Drifted)
				continue
			}
			appLogger.Info("Migration pending", "version", st.Version, "name", st.Name)
		}

	default:
		return fmt.Errorf("unknown command %q (available: up, down, status)", command)
	}
	return nil
}

// Command dbctl manages the database schema: applying and reverting
// migrations, inspecting the recorded version and scaffolding new files.
package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/printworks/platform/internal/config"
	"github.com/printworks/platform/internal/database"
	"github.com/printworks/platform/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	logr := logger.NewWithLevel(cfg.Env, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e := &env{
		logger:        logr,
		out:           os.Stdout,
		migrationsDir: cfg.MigrationsDir,
		now:           time.Now,
		open: func(ctx context.Context, src fs.FS) (schemaMigrator, error) {
			return openMigrator(ctx, cfg, src, logr)
		},
	}
	commander := newCommander(flag.CommandLine, e)
	flag.Parse()

	status := commander.Execute(ctx)
	stop()
	os.Exit(int(status))
}

// boundMigrator closes its database pool along with the migrator.
type boundMigrator struct {
	*database.SchemaMigrator
	db *database.DB
}

func (b boundMigrator) Close() error {
	return errors.Join(b.SchemaMigrator.Close(), b.db.Close())
}

func openMigrator(ctx context.Context, cfg config.Config, src fs.FS, logr *slog.Logger) (schemaMigrator, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	db, err := database.Connect(ctx, database.OptionsFromConfig(cfg, logr))
	if err != nil {
		return nil, err
	}
	m, err := database.NewSchemaMigrator(ctx, db.DB, src, logr)
	if err != nil {
		db.Close()
		return nil, err
	}
	return boundMigrator{SchemaMigrator: m, db: db}, nil
}

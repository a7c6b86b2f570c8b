package main

import (
	"context"
	_ "embed"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/printworks/platform/internal/config"
	"github.com/printworks/platform/internal/database"
	"github.com/printworks/platform/internal/domain"
	"github.com/printworks/platform/internal/logger"
	"github.com/printworks/platform/internal/storage/memory"
	pgstorage "github.com/printworks/platform/internal/storage/postgres"
)

//go:embed fixture.yaml
var defaultFixture []byte

func main() {
	file := flag.String("file", "", "YAML fixture to load instead of the built-in sample data")
	dryRun := flag.Bool("dry-run", false, "apply the fixture to in-memory repositories only")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	logr := logger.NewWithLevel(cfg.Env, cfg.LogLevel)

	if cfg.IsProduction() {
		logr.Error("refusing to seed a production environment")
		os.Exit(1)
	}

	data := defaultFixture
	if *file != "" {
		data, err = os.ReadFile(*file)
		if err != nil {
			logr.Error("failed to read fixture", "file", *file, "err", err)
			os.Exit(1)
		}
	}
	fx, err := parseFixture(data)
	if err != nil {
		logr.Error("invalid fixture", "err", err)
		os.Exit(1)
	}

	ctx := context.Background()

	var container domain.Container
	if *dryRun {
		container = memoryContainer(cfg)
	} else {
		if cfg.DataBackend != config.BackendPostgres {
			logr.Error("seed command requires DATA_BACKEND=postgres (or -dry-run)")
			os.Exit(1)
		}
		db, err := database.Connect(ctx, database.OptionsFromConfig(cfg, logr))
		if err != nil {
			logr.Error("failed to connect database", "err", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := db.RunMigrations(ctx); err != nil {
			logr.Error("migrations failed", "err", err)
			os.Exit(1)
		}
		container = domain.New(domain.Options{
			ClientRepo:     pgstorage.NewClientRepository(db.DB),
			SupplierRepo:   pgstorage.NewSupplierRepository(db.DB),
			MaterialRepo:   pgstorage.NewMaterialRepository(db.DB),
			JobRepo:        pgstorage.NewJobRepository(db.DB),
			MachineRepo:    pgstorage.NewMachineRepository(db.DB),
			UserRepo:       pgstorage.NewUserRepository(db.DB),
			MaterialMargin: cfg.MaterialMargin,
		})
	}

	sum, err := newSeeder(container, logr).apply(ctx, fx)
	if err != nil {
		logr.Error("seed failed", "err", err)
		os.Exit(1)
	}

	fmt.Printf("users=%d suppliers=%d clients=%d materials=%d machines=%d jobs=%d\n",
		sum.Users, sum.Suppliers, sum.Clients, sum.Materials, sum.Machines, sum.Jobs)
	logr.Info("seed complete", "dry_run", *dryRun)
}

func memoryContainer(cfg config.Config) domain.Container {
	return domain.New(domain.Options{
		ClientRepo:     memory.NewClientRepository(),
		SupplierRepo:   memory.NewSupplierRepository(),
		MaterialRepo:   memory.NewMaterialRepository(),
		JobRepo:        memory.NewJobRepository(),
		MachineRepo:    memory.NewMachineRepository(),
		UserRepo:       memory.NewUserRepository(),
		MaterialMargin: cfg.MaterialMargin,
	})
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"log/slog"

	"github.com/printworks/platform/internal/alerts"
	"github.com/printworks/platform/internal/auth"
	"github.com/printworks/platform/internal/cache"
	"github.com/printworks/platform/internal/config"
	"github.com/printworks/platform/internal/database"
	"github.com/printworks/platform/internal/domain"
	"github.com/printworks/platform/internal/httpapi"
	"github.com/printworks/platform/internal/logger"
	"github.com/printworks/platform/internal/metrics"
	"github.com/printworks/platform/internal/server"
	"github.com/printworks/platform/internal/storage/memory"
	pgstorage "github.com/printworks/platform/internal/storage/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	logr := logger.NewWithLevel(cfg.Env, cfg.LogLevel)

	baseCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var db *database.DB
	if cfg.DataBackend == config.BackendPostgres {
		db, err = database.Connect(baseCtx, database.OptionsFromConfig(cfg, logr))
		if err != nil {
			logr.Error("failed to connect database", "err", err)
			os.Exit(1)
		}
		defer func() {
			if cerr := db.Close(); cerr != nil {
				logr.Error("error closing database", "err", cerr)
			}
		}()

		if cfg.AutoMigrate {
			if err := db.RunMigrations(baseCtx); err != nil {
				logr.Error("database migrations failed", "err", err)
				os.Exit(1)
			}
		}
	}

	reportCache := openCache(baseCtx, cfg, logr)
	defer reportCache.Close()

	domainContainer, err := buildDomainContainer(cfg, logr, db, reportCache)
	if err != nil {
		logr.Error("failed to init domain container", "err", err)
		os.Exit(1)
	}

	m := metrics.New()
	srv := server.New(cfg, logr, m)
	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.JWTExpiry)
	httpapi.Register(srv.Router(), logr, domainContainer, issuer, httpapi.Options{
		ItemsPerPage: cfg.ItemsPerPage,
		MaxPageSize:  cfg.MaxPageSize,
	})

	scanner := alerts.NewScanner(domainContainer.Inventory, logr, m.LowStockMaterials, m.StockScans)
	if err := scanner.Start(baseCtx, cfg.LowStockScanSchedule); err != nil {
		logr.Error("failed to start low stock scanner", "err", err)
		os.Exit(1)
	}

	go func() {
		if err := srv.Run(); err != nil {
			logr.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	<-baseCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	scanner.Stop(ctx)
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("server shutdown failed", "err", err)
		os.Exit(1)
	}
}

// openCache connects to Redis when REDIS_URL is set. Reports still work
// without it, so a failed connection only downgrades to no caching.
func openCache(ctx context.Context, cfg config.Config, logr *slog.Logger) cache.Cache {
	if cfg.RedisURL == "" {
		return cache.Noop{}
	}
	c, err := cache.NewRedis(ctx, cfg.RedisURL, "printworks:")
	if err != nil {
		logr.Warn("report cache unavailable, continuing without it", "err", err)
		return cache.Noop{}
	}
	logr.Info("report cache enabled", "ttl", cfg.ReportCacheTTL)
	return c
}

func buildDomainContainer(cfg config.Config, logr *slog.Logger, db *database.DB, reportCache cache.Cache) (domain.Container, error) {
	opts := domain.Options{
		ReportCache:    reportCache,
		ReportCacheTTL: cfg.ReportCacheTTL,
		MaterialMargin: cfg.MaterialMargin,
	}
	switch cfg.DataBackend {
	case config.BackendMemory:
		logr.Info("using in-memory repositories (DATA_BACKEND=memory)")
		opts.ClientRepo = memory.NewClientRepository()
		opts.SupplierRepo = memory.NewSupplierRepository()
		opts.MaterialRepo = memory.NewMaterialRepository()
		opts.JobRepo = memory.NewJobRepository()
		opts.MachineRepo = memory.NewMachineRepository()
		opts.UserRepo = memory.NewUserRepository()
	case config.BackendPostgres:
		if db == nil {
			return domain.Container{}, fmt.Errorf("postgres backend requires database connection")
		}
		logr.Info("using postgres repositories (DATA_BACKEND=postgres)")
		sqlDB := db.DB
		opts.ClientRepo = pgstorage.NewClientRepository(sqlDB)
		opts.SupplierRepo = pgstorage.NewSupplierRepository(sqlDB)
		opts.MaterialRepo = pgstorage.NewMaterialRepository(sqlDB)
		opts.JobRepo = pgstorage.NewJobRepository(sqlDB)
		opts.MachineRepo = pgstorage.NewMachineRepository(sqlDB)
		opts.UserRepo = pgstorage.NewUserRepository(sqlDB)
	default:
		return domain.Container{}, fmt.Errorf("unsupported data backend: %s", cfg.DataBackend)
	}
	return domain.New(opts), nil
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Migrator defines an interface capable of applying schema migrations.
type Migrator interface {
	Up(ctx context.Context) error
	Down(ctx context.Context, steps int) error
	Version(ctx context.Context) (version uint, dirty bool, err error)
	Force(ctx context.Context, version int) error
}

// SchemaMigrator applies versioned migrations with golang-migrate. Applied
// versions are tracked in the schema_migrations table.
type SchemaMigrator struct {
	m      *migrate.Migrate
	logger *slog.Logger
}

// NewSchemaMigrator builds a migrator reading *.up.sql / *.down.sql pairs
// from src and applying them over a dedicated connection taken from db.
func NewSchemaMigrator(ctx context.Context, db *sql.DB, src fs.FS, logger *slog.Logger) (*SchemaMigrator, error) {
	if db == nil {
		return nil, errors.New("schema migrator requires a database handle")
	}
	if logger == nil {
		logger = slog.Default()
	}

	source, err := iofs.New(src, ".")
	if err != nil {
		return nil, fmt.Errorf("open migration source: %w", err)
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("acquire migration connection: %w", err), source.Close())
	}
	driver, err := migratepg.WithConnection(ctx, conn, &migratepg.Config{})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("open migration driver: %w", err), conn.Close(), source.Close())
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("init migrator: %w", err), driver.Close(), source.Close())
	}
	return &SchemaMigrator{m: m, logger: logger}, nil
}

// Up applies all pending migrations.
func (s *SchemaMigrator) Up(ctx context.Context) error {
	err := s.run(ctx, s.m.Up)
	if errors.Is(err, migrate.ErrNoChange) {
		s.logger.Info("no migrations to run")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	s.logVersion("migrations applied")
	return nil
}

// Down rolls back the given number of migrations.
func (s *SchemaMigrator) Down(ctx context.Context, steps int) error {
	if steps <= 0 {
		return errors.New("steps must be positive")
	}
	err := s.run(ctx, func() error { return s.m.Steps(-steps) })
	if errors.Is(err, migrate.ErrNoChange) {
		s.logger.Info("nothing to roll back")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrate down: %w", err)
	}
	s.logVersion("migrations rolled back")
	return nil
}

// Version reports the current schema version. A database without any
// applied migration reports version 0.
func (s *SchemaMigrator) Version(context.Context) (uint, bool, error) {
	v, dirty, err := s.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

// Force sets the recorded version without running migrations, clearing
// the dirty flag after a failed run has been repaired by hand.
func (s *SchemaMigrator) Force(_ context.Context, version int) error {
	if err := s.m.Force(version); err != nil {
		return fmt.Errorf("force version %d: %w", version, err)
	}
	s.logger.Info("schema version forced", "version", version)
	return nil
}

// Close releases the migration source and returns the connection to the
// pool. The *sql.DB stays open.
func (s *SchemaMigrator) Close() error {
	srcErr, dbErr := s.m.Close()
	return errors.Join(srcErr, dbErr)
}

// run executes fn and asks golang-migrate to stop after the current
// migration if ctx is cancelled first.
func (s *SchemaMigrator) run(ctx context.Context, fn func() error) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			select {
			case s.m.GracefulStop <- true:
			default:
			}
		case <-done:
		}
	}()
	return fn()
}

func (s *SchemaMigrator) logVersion(msg string) {
	v, dirty, err := s.Version(context.Background())
	if err != nil {
		s.logger.Warn(msg, "err", err)
		return
	}
	s.logger.Info(msg, "version", v, "dirty", dirty)
}

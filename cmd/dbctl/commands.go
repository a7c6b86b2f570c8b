package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/google/subcommands"

	"github.com/printworks/platform/internal/database"
)

// schemaMigrator is a database.Migrator holding resources until Close.
type schemaMigrator interface {
	database.Migrator
	Close() error
}

// env carries what every subcommand needs. open is only called by commands
// that touch the database.
type env struct {
	logger        *slog.Logger
	out           io.Writer
	migrationsDir string
	now           func() time.Time
	open          func(ctx context.Context, src fs.FS) (schemaMigrator, error)
}

// migrationSource reads migrations from dir when it exists, so files written
// by the migrate command are applied by upgrade. Otherwise the set compiled
// into the binary is used.
func migrationSource(dir string) (fs.FS, string) {
	if dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return os.DirFS(dir), dir
		}
	}
	return database.MigrationsFS(), "embedded"
}

func newCommander(f *flag.FlagSet, e *env) *subcommands.Commander {
	commander := subcommands.NewCommander(f, "dbctl")
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(&upgradeCmd{env: e}, "schema")
	commander.Register(&downgradeCmd{env: e}, "schema")
	commander.Register(&versionCmd{env: e}, "schema")
	commander.Register(&forceCmd{env: e}, "schema")
	commander.Register(&migrateCmd{env: e}, "authoring")
	return commander
}

// withMigrator opens a migrator, runs fn and maps the outcome to an exit
// status.
func (e *env) withMigrator(ctx context.Context, op string, fn func(schemaMigrator) error) subcommands.ExitStatus {
	src, origin := migrationSource(e.migrationsDir)
	e.logger.Debug("migration source", "op", op, "source", origin)
	m, err := e.open(ctx, src)
	if err != nil {
		e.logger.Error("failed to open migrator", "op", op, "err", err)
		return subcommands.ExitFailure
	}
	defer func() {
		if cerr := m.Close(); cerr != nil {
			e.logger.Warn("closing migrator", "err", cerr)
		}
	}()

	if err := fn(m); err != nil {
		e.logger.Error(op+" failed", "err", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type upgradeCmd struct{ env *env }

var _ subcommands.Command = (*upgradeCmd)(nil)

func (*upgradeCmd) Name() string     { return "upgrade" }
func (*upgradeCmd) Synopsis() string { return "apply all pending migrations" }
func (*upgradeCmd) Usage() string {
	return "upgrade:\n  Apply every migration newer than the current schema version.\n"
}
func (*upgradeCmd) SetFlags(*flag.FlagSet) {}

func (c *upgradeCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.env.withMigrator(ctx, "upgrade", func(m schemaMigrator) error {
		return m.Up(ctx)
	})
}

type downgradeCmd struct {
	env   *env
	steps int
}

var _ subcommands.Command = (*downgradeCmd)(nil)

func (*downgradeCmd) Name() string     { return "downgrade" }
func (*downgradeCmd) Synopsis() string { return "roll back applied migrations" }
func (*downgradeCmd) Usage() string {
	return "downgrade [-steps N]:\n  Revert the last N migrations (default 1).\n"
}

func (c *downgradeCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.steps, "steps", 1, "number of migrations to revert")
}

func (c *downgradeCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.steps <= 0 {
		c.env.logger.Error("-steps must be positive", "steps", c.steps)
		return subcommands.ExitUsageError
	}
	return c.env.withMigrator(ctx, "downgrade", func(m schemaMigrator) error {
		return m.Down(ctx, c.steps)
	})
}

type versionCmd struct{ env *env }

var _ subcommands.Command = (*versionCmd)(nil)

func (*versionCmd) Name() string     { return "version" }
func (*versionCmd) Synopsis() string { return "print the current schema version" }
func (*versionCmd) Usage() string {
	return "version:\n  Print the applied schema version and whether it is dirty.\n"
}
func (*versionCmd) SetFlags(*flag.FlagSet) {}

func (c *versionCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.env.withMigrator(ctx, "version", func(m schemaMigrator) error {
		v, dirty, err := m.Version(ctx)
		if err != nil {
			return err
		}
		if dirty {
			fmt.Fprintf(c.env.out, "%d (dirty)\n", v)
			return nil
		}
		fmt.Fprintf(c.env.out, "%d\n", v)
		return nil
	})
}

// unsetVersion marks -version as not given; -1 is a valid target meaning
// "no migrations applied".
const unsetVersion = -2

type forceCmd struct {
	env     *env
	version int
}

var _ subcommands.Command = (*forceCmd)(nil)

func (*forceCmd) Name() string     { return "force" }
func (*forceCmd) Synopsis() string { return "set the schema version without migrating" }
func (*forceCmd) Usage() string {
	return "force -version V:\n  Record V as the current version and clear the dirty flag.\n"
}

func (c *forceCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.version, "version", unsetVersion, "schema version to record (-1 for none)")
}

func (c *forceCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.version < -1 {
		c.env.logger.Error("-version is required")
		return subcommands.ExitUsageError
	}
	return c.env.withMigrator(ctx, "force", func(m schemaMigrator) error {
		return m.Force(ctx, c.version)
	})
}

type migrateCmd struct {
	env  *env
	name string
	dir  string
}

var _ subcommands.Command = (*migrateCmd)(nil)

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "create a new empty migration pair" }
func (*migrateCmd) Usage() string {
	return "migrate -name NAME [-dir DIR]:\n  Write timestamped NAME.up.sql and NAME.down.sql files.\n"
}

func (c *migrateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.name, "name", "", "short description of the change")
	f.StringVar(&c.dir, "dir", c.env.migrationsDir, "directory holding migration files")
}

func (c *migrateCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.name == "" {
		c.env.logger.Error("-name is required")
		return subcommands.ExitUsageError
	}
	up, down, err := database.ScaffoldMigration(c.dir, c.name, c.env.now())
	if err != nil {
		c.env.logger.Error("scaffold migration failed", "err", err)
		return subcommands.ExitFailure
	}
	fmt.Fprintln(c.env.out, up)
	fmt.Fprintln(c.env.out, down)
	return subcommands.ExitSuccess
}

package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/subcommands"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMigrator struct {
	calls   []string
	steps   int
	forced  int
	version uint
	dirty   bool
	err     error
	closed  bool
}

func (f *fakeMigrator) Up(context.Context) error {
	f.calls = append(f.calls, "up")
	return f.err
}

func (f *fakeMigrator) Down(_ context.Context, steps int) error {
	f.calls = append(f.calls, "down")
	f.steps = steps
	return f.err
}

func (f *fakeMigrator) Version(context.Context) (uint, bool, error) {
	f.calls = append(f.calls, "version")
	return f.version, f.dirty, f.err
}

func (f *fakeMigrator) Force(_ context.Context, version int) error {
	f.calls = append(f.calls, "force")
	f.forced = version
	return f.err
}

func (f *fakeMigrator) Close() error {
	f.closed = true
	return nil
}

type harness struct {
	env      *env
	migrator *fakeMigrator
	out      *bytes.Buffer
	opened   int
	source   fs.FS
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{migrator: &fakeMigrator{}, out: &bytes.Buffer{}}
	h.env = &env{
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		out:           h.out,
		migrationsDir: t.TempDir(),
		now:           func() time.Time { return time.Date(2024, 3, 9, 14, 5, 0, 0, time.UTC) },
		open: func(_ context.Context, src fs.FS) (schemaMigrator, error) {
			h.opened++
			h.source = src
			return h.migrator, nil
		},
	}
	return h
}

func (h *harness) run(t *testing.T, args ...string) subcommands.ExitStatus {
	t.Helper()
	fs := flag.NewFlagSet("dbctl", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	commander := newCommander(fs, h.env)
	commander.Output = io.Discard
	commander.Error = io.Discard
	require.NoError(t, fs.Parse(args))
	return commander.Execute(context.Background())
}

func TestUpgrade(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, subcommands.ExitSuccess, h.run(t, "upgrade"))
	assert.Equal(t, []string{"up"}, h.migrator.calls)
	assert.True(t, h.migrator.closed)
}

func TestDowngradeSteps(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, subcommands.ExitSuccess, h.run(t, "downgrade"))
	assert.Equal(t, 1, h.migrator.steps)

	assert.Equal(t, subcommands.ExitSuccess, h.run(t, "downgrade", "-steps", "3"))
	assert.Equal(t, 3, h.migrator.steps)

	assert.Equal(t, subcommands.ExitUsageError, h.run(t, "downgrade", "-steps", "0"))
	assert.Equal(t, 2, h.opened)
}

func TestVersionOutput(t *testing.T) {
	h := newHarness(t)
	h.migrator.version = 1

	require.Equal(t, subcommands.ExitSuccess, h.run(t, "version"))
	assert.Equal(t, "1\n", h.out.String())

	h.out.Reset()
	h.migrator.dirty = true
	require.Equal(t, subcommands.ExitSuccess, h.run(t, "version"))
	assert.Equal(t, "1 (dirty)\n", h.out.String())
}

func TestForceRequiresVersion(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, subcommands.ExitUsageError, h.run(t, "force"))
	assert.Zero(t, h.opened)

	assert.Equal(t, subcommands.ExitSuccess, h.run(t, "force", "-version", "-1"))
	assert.Equal(t, -1, h.migrator.forced)
}

func TestMigratorErrorsFail(t *testing.T) {
	h := newHarness(t)
	h.migrator.err = errors.New("dirty database version 1")
	assert.Equal(t, subcommands.ExitFailure, h.run(t, "upgrade"))
	assert.True(t, h.migrator.closed)

	h = newHarness(t)
	h.env.open = func(context.Context, fs.FS) (schemaMigrator, error) {
		return nil, errors.New("connection refused")
	}
	assert.Equal(t, subcommands.ExitFailure, h.run(t, "version"))
}

func TestMigrateScaffoldsFiles(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, subcommands.ExitSuccess, h.run(t, "migrate", "-name", "Add job priority"))
	assert.Zero(t, h.opened)

	up := filepath.Join(h.env.migrationsDir, "20240309140500_add_job_priority.up.sql")
	down := filepath.Join(h.env.migrationsDir, "20240309140500_add_job_priority.down.sql")
	assert.FileExists(t, up)
	assert.FileExists(t, down)
	assert.Equal(t, up+"\n"+down+"\n", h.out.String())

	body, err := os.ReadFile(up)
	require.NoError(t, err)
	assert.Contains(t, string(body), "apply")

	assert.Equal(t, subcommands.ExitFailure, h.run(t, "migrate", "-name", "Add job priority"))
	assert.Equal(t, subcommands.ExitUsageError, h.run(t, "migrate"))
}

func TestUpgradeReadsScaffoldedMigrations(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, subcommands.ExitSuccess, h.run(t, "migrate", "-name", "add job priority"))
	require.Equal(t, subcommands.ExitSuccess, h.run(t, "upgrade"))

	require.NotNil(t, h.source)
	_, err := fs.Stat(h.source, "20240309140500_add_job_priority.up.sql")
	assert.NoError(t, err)
}

func TestMigrationSourceFallsBackToEmbedded(t *testing.T) {
	src, origin := migrationSource(filepath.Join(t.TempDir(), "missing"))
	assert.Equal(t, "embedded", origin)
	_, err := fs.Stat(src, "0001_init.up.sql")
	assert.NoError(t, err)
}

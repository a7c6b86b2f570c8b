package main

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printworks/platform/internal/config"
	"github.com/printworks/platform/internal/domain/jobs"
	"github.com/printworks/platform/internal/domain/users"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDefaultFixtureParses(t *testing.T) {
	fx, err := parseFixture(defaultFixture)
	require.NoError(t, err)

	assert.Len(t, fx.Users, 3)
	assert.Equal(t, "Shop", fx.Users[0].FirstName)
	assert.Equal(t, "VIN-GLS-137", fx.Materials[0].Code)
	assert.Equal(t, jobs.TypeOutsourced, fx.Jobs[1].Type)
	assert.Equal(t, 1012.5, fx.Jobs[0].Readings[0].EndMeter)
}

func TestSeedAppliesFixture(t *testing.T) {
	ctx := context.Background()
	fx, err := parseFixture(defaultFixture)
	require.NoError(t, err)

	svc := memoryContainer(config.Config{MaterialMargin: 0.05})
	sum, err := newSeeder(svc, quietLogger()).apply(ctx, fx)
	require.NoError(t, err)
	assert.Equal(t, summary{Users: 3, Suppliers: 2, Clients: 2, Materials: 3, Machines: 2, Jobs: 2}, sum)

	admin, err := svc.Users.Authenticate(ctx, "admin@printworks.local", "change-me-now")
	require.NoError(t, err)
	assert.Equal(t, users.RoleAdmin, admin.Role)

	vinyl, err := svc.Inventory.GetByCode(ctx, "VIN-GLS-137")
	require.NoError(t, err)
	// 12 manual + 0.5 wastage, then 12.5m metered plus 5% margin.
	assert.InDelta(t, 500-12-0.5-13.125, vinyl.StockLevel, 1e-6)

	low, err := svc.Inventory.LowStock(ctx)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, "INK-ECO-C", low[0].Code)

	list, err := svc.Jobs.List(ctx, jobs.Filter{Type: jobs.TypeInHouse}, 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	readings, err := svc.Machines.ReadingsForJob(ctx, list[0].ID)
	require.NoError(t, err)
	assert.Len(t, readings, 1)
}

func TestSeedIsRepeatable(t *testing.T) {
	ctx := context.Background()
	fx, err := parseFixture(defaultFixture)
	require.NoError(t, err)

	svc := memoryContainer(config.Config{MaterialMargin: 0.05})
	_, err = newSeeder(svc, quietLogger()).apply(ctx, fx)
	require.NoError(t, err)

	sum, err := newSeeder(svc, quietLogger()).apply(ctx, fx)
	require.NoError(t, err)
	assert.Equal(t, summary{}, sum)

	list, err := svc.Jobs.List(ctx, jobs.Filter{}, 0, 0)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestSeedRejectsDanglingReferences(t *testing.T) {
	fx := fixture{
		Jobs: []jobFixture{{ClientPhone: "0799 000 000", Description: "orphan"}},
	}
	svc := memoryContainer(config.Config{})
	_, err := newSeeder(svc, quietLogger()).apply(context.Background(), fx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown client")
}

package domain

import (
	"context"
	"time"

	"github.com/printworks/platform/internal/cache"
	"github.com/printworks/platform/internal/domain/clients"
	"github.com/printworks/platform/internal/domain/inventory"
	"github.com/printworks/platform/internal/domain/jobs"
	"github.com/printworks/platform/internal/domain/machines"
	"github.com/printworks/platform/internal/domain/reports"
	"github.com/printworks/platform/internal/domain/suppliers"
	"github.com/printworks/platform/internal/domain/users"
)

// Container wires domain services together.
type Container struct {
	Clients   clients.Service
	Suppliers suppliers.Service
	Inventory inventory.Service
	Jobs      jobs.Service
	Machines  machines.Service
	Users     users.Service
	Reports   reports.Service
}

// Options configures the domain container. Nil repositories fall back to
// the Null implementations.
type Options struct {
	ClientRepo   clients.Repository
	SupplierRepo suppliers.Repository
	MaterialRepo inventory.Repository
	JobRepo      jobs.Repository
	MachineRepo  machines.Repository
	UserRepo     users.Repository

	ReportCache    cache.Cache
	ReportCacheTTL time.Duration
	MaterialMargin float64
}

// New constructs a domain container with provided repositories.
func New(opts Options) Container {
	clientRepo := opts.ClientRepo
	if clientRepo == nil {
		clientRepo = clients.NullRepository{}
	}

	supplierRepo := opts.SupplierRepo
	if supplierRepo == nil {
		supplierRepo = suppliers.NullRepository{}
	}

	materialRepo := opts.MaterialRepo
	if materialRepo == nil {
		materialRepo = inventory.NullRepository{}
	}

	jobRepo := opts.JobRepo
	if jobRepo == nil {
		jobRepo = jobs.NullRepository{}
	}

	machineRepo := opts.MachineRepo
	if machineRepo == nil {
		machineRepo = machines.NullRepository{}
	}

	userRepo := opts.UserRepo
	if userRepo == nil {
		userRepo = users.NullRepository{}
	}

	clientSvc := clients.NewService(clientRepo)
	supplierSvc := suppliers.NewService(supplierRepo)
	c := Container{Users: users.NewService(userRepo)}
	c.Inventory = inventory.NewService(materialRepo, supplierSvc)
	c.Jobs = jobs.NewService(jobRepo, clientSvc, c.Inventory)
	c.Clients = clients.GuardDelete(clientSvc, referencedBy(func(ctx context.Context, id string) (bool, error) {
		list, err := c.Jobs.List(ctx, jobs.Filter{ClientID: id}, 0, 1)
		return len(list) > 0, err
	}))
	c.Suppliers = suppliers.GuardDelete(supplierSvc, referencedBy(func(ctx context.Context, id string) (bool, error) {
		list, err := c.Inventory.List(ctx, inventory.Filter{SupplierID: id})
		return len(list) > 0, err
	}))
	c.Machines = machines.NewService(machineRepo, c.Jobs, opts.MaterialMargin)
	c.Reports = reports.NewService(reports.Sources{
		Clients:   c.Clients,
		Suppliers: c.Suppliers,
		Inventory: c.Inventory,
		Jobs:      c.Jobs,
		Machines:  c.Machines,
	}, opts.ReportCache, opts.ReportCacheTTL)
	return c
}

// referencedBy adapts a lookup function to the ReferenceChecker interfaces.
type referencedBy func(ctx context.Context, id string) (bool, error)

func (f referencedBy) Referenced(ctx context.Context, id string) (bool, error) {
	return f(ctx, id)
}

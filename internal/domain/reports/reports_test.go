package reports_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/printworks/platform/internal/domain/clients"
	"github.com/printworks/platform/internal/domain/inventory"
	"github.com/printworks/platform/internal/domain/jobs"
	"github.com/printworks/platform/internal/domain/machines"
	"github.com/printworks/platform/internal/domain/reports"
	"github.com/printworks/platform/internal/domain/suppliers"
	"github.com/printworks/platform/internal/storage/memory"
)

type mapCache struct {
	data map[string][]byte
	sets int
}

func (c *mapCache) Get(_ context.Context, key string, dst any) (bool, error) {
	raw, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

func (c *mapCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = raw
	c.sets++
	return nil
}

func (c *mapCache) Close() error { return nil }

type world struct {
	src      reports.Sources
	client   clients.Client
	material inventory.Material
	job      jobs.Job
	machine  machines.Machine
}

func newWorld(t *testing.T) world {
	t.Helper()
	ctx := context.Background()

	clientSvc := clients.NewService(memory.NewClientRepository())
	supplierSvc := suppliers.NewService(memory.NewSupplierRepository())
	inventorySvc := inventory.NewService(memory.NewMaterialRepository(), supplierSvc)
	jobSvc := jobs.NewService(memory.NewJobRepository(), clientSvc, inventorySvc)
	machineSvc := machines.NewService(memory.NewMachineRepository(), jobSvc, 0)

	supplier, _, err := supplierSvc.Create(ctx, suppliers.CreateInput{Name: "Paper Mill", PhoneNumber: "0700111000"})
	if err != nil {
		t.Fatalf("supplier: %v", err)
	}
	material, err := inventorySvc.Create(ctx, inventory.CreateInput{
		Code: "ART-300", Name: "Art paper 300gsm", Category: "paper", Type: "sheet",
		UnitOfMeasure: "sheets", StockLevel: 12, MinThreshold: 10, ReorderQuantity: 500,
		CostPerUnit: 10, SupplierID: supplier.ID,
	})
	if err != nil {
		t.Fatalf("material: %v", err)
	}
	client, err := clientSvc.Create(ctx, clients.CreateInput{Name: "Bakery", PhoneNumber: "0722333444"})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	job, err := jobSvc.Create(ctx, jobs.CreateInput{
		ClientID: client.ID, Description: "Menus", TotalUnits: 10, PricingPerUnit: 100,
	})
	if err != nil {
		t.Fatalf("job: %v", err)
	}
	machine, err := machineSvc.CreateMachine(ctx, machines.MachineInput{Name: "Konica", SerialNumber: "K-1"})
	if err != nil {
		t.Fatalf("machine: %v", err)
	}

	return world{
		src: reports.Sources{
			Clients: clientSvc, Suppliers: supplierSvc, Inventory: inventorySvc,
			Jobs: jobSvc, Machines: machineSvc,
		},
		client: client, material: material, job: job, machine: machine,
	}
}

func TestMaterialUsageAndJobUsage(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	svc := reports.NewService(w.src, nil, 0)

	if _, err := w.src.Machines.LogReading(ctx, machines.ReadingInput{
		MachineID: w.machine.ID, JobID: w.job.ID, MaterialID: w.material.ID, StartMeter: 0, EndMeter: 4,
	}); err != nil {
		t.Fatalf("log reading: %v", err)
	}

	usage, err := svc.MaterialUsage(ctx, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("material usage: %v", err)
	}
	if len(usage) != 1 || usage[0].ClientName != "Bakery" || usage[0].MaterialName != "Art paper 300gsm" {
		t.Fatalf("unexpected usage rows: %+v", usage)
	}

	rows, err := svc.JobUsage(ctx, w.job.ID)
	if err != nil {
		t.Fatalf("job usage: %v", err)
	}
	if len(rows) != 1 || rows[0].MachineName != "Konica" || rows[0].MaterialUsage != 4 {
		t.Fatalf("unexpected job usage rows: %+v", rows)
	}

	jobRows, err := svc.Jobs(ctx, jobs.Filter{})
	if err != nil {
		t.Fatalf("jobs report: %v", err)
	}
	if len(jobRows) != 1 || jobRows[0].TotalCost != 40 || jobRows[0].Profit != 960 || len(jobRows[0].Materials) != 1 {
		t.Fatalf("unexpected job rows: %+v", jobRows)
	}
}

type countingJobs struct {
	jobs.Service
	gets int
}

func (c *countingJobs) Get(ctx context.Context, id string) (jobs.Job, error) {
	c.gets++
	return c.Service.Get(ctx, id)
}

func TestMaterialUsageLooksUpEachJobOnce(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		start := float64(i * 2)
		if _, err := w.src.Machines.LogReading(ctx, machines.ReadingInput{
			MachineID: w.machine.ID, JobID: w.job.ID, MaterialID: w.material.ID,
			StartMeter: start, EndMeter: start + 2,
		}); err != nil {
			t.Fatalf("log reading %d: %v", i, err)
		}
	}

	counter := &countingJobs{Service: w.src.Jobs}
	src := w.src
	src.Jobs = counter
	svc := reports.NewService(src, nil, 0)

	usage, err := svc.MaterialUsage(ctx, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("material usage: %v", err)
	}
	if len(usage) != 3 {
		t.Fatalf("expected 3 usage rows, got %d", len(usage))
	}
	for _, row := range usage {
		if row.ClientName != "Bakery" {
			t.Fatalf("unexpected client name: %+v", row)
		}
	}
	if counter.gets != 1 {
		t.Fatalf("expected one job lookup, got %d", counter.gets)
	}
}

func TestLowStockSuggestsReorder(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	svc := reports.NewService(w.src, nil, 0)

	rows, err := svc.LowStock(ctx)
	if err != nil {
		t.Fatalf("low stock: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected no low stock yet, got %d", len(rows))
	}

	if _, _, err := w.src.Inventory.RecordUsage(ctx, inventory.UsageInput{MaterialID: w.material.ID, JobID: w.job.ID, Quantity: 3}); err != nil {
		t.Fatalf("usage: %v", err)
	}
	rows, err = svc.LowStock(ctx)
	if err != nil {
		t.Fatalf("low stock: %v", err)
	}
	if len(rows) != 1 || rows[0].SupplierName != "Paper Mill" || rows[0].SuggestedReorder != 500 {
		t.Fatalf("unexpected low stock rows: %+v", rows)
	}
}

func TestOutstandingPayments(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	svc := reports.NewService(w.src, nil, 0)

	paid, err := w.src.Jobs.Create(ctx, jobs.CreateInput{ClientID: w.client.ID, Description: "Stickers", TotalUnits: 1, PricingPerUnit: 300})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := w.src.Jobs.RecordPayment(ctx, paid.ID, 300); err != nil {
		t.Fatalf("payment: %v", err)
	}

	report, err := svc.OutstandingPayments(ctx, w.client.ID)
	if err != nil {
		t.Fatalf("outstanding: %v", err)
	}
	if len(report.Jobs) != 1 || report.Jobs[0].JobID != w.job.ID || report.TotalOutstanding != 1000 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestSummaryUsesCache(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	c := &mapCache{data: map[string][]byte{}}
	svc := reports.NewService(w.src, c, time.Minute)

	first, err := svc.Summary(ctx)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if first.JobsByStatus[jobs.StatusPending] != 1 || first.Revenue != 1000 {
		t.Fatalf("unexpected summary: %+v", first)
	}

	if _, err := w.src.Jobs.Create(ctx, jobs.CreateInput{ClientID: w.client.ID, Description: "More menus", PricingPerUnit: 50}); err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := svc.Summary(ctx)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if second.Revenue != first.Revenue || c.sets != 1 {
		t.Fatalf("expected cached summary, got revenue %d after %d sets", second.Revenue, c.sets)
	}
}

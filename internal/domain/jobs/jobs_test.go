package jobs_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/printworks/platform/internal/domain/clients"
	"github.com/printworks/platform/internal/domain/inventory"
	"github.com/printworks/platform/internal/domain/jobs"
	"github.com/printworks/platform/internal/domain/suppliers"
	"github.com/printworks/platform/internal/storage/memory"
)

type harness struct {
	jobs      jobs.Service
	inventory inventory.Service
	material  inventory.Material
}

func newHarness(t *testing.T) harness {
	t.Helper()
	ctx := context.Background()

	supplierSvc := suppliers.NewService(memory.NewSupplierRepository())
	supplier, _, err := supplierSvc.Create(ctx, suppliers.CreateInput{Name: "Media Supply", PhoneNumber: "0700999888"})
	if err != nil {
		t.Fatalf("create supplier: %v", err)
	}
	inventorySvc := inventory.NewService(memory.NewMaterialRepository(), supplierSvc)
	material, err := inventorySvc.Create(ctx, inventory.CreateInput{
		Code: "BAN-1", Name: "Banner", Category: "banner", Type: "roll",
		UnitOfMeasure: "meters", StockLevel: 50, MinThreshold: 5, CostPerUnit: 120,
		SupplierID: supplier.ID,
	})
	if err != nil {
		t.Fatalf("create material: %v", err)
	}

	clientSvc := clients.NewService(memory.NewClientRepository())
	return harness{
		jobs:      jobs.NewService(memory.NewJobRepository(), clientSvc, inventorySvc),
		inventory: inventorySvc,
		material:  material,
	}
}

func (h harness) create(t *testing.T, in jobs.CreateInput) jobs.Job {
	t.Helper()
	if in.ClientPhone == "" && in.ClientID == "" {
		in.ClientPhone = "0712000111"
		in.ClientName = "Walk-in"
	}
	if in.Description == "" {
		in.Description = "Business cards"
	}
	job, err := h.jobs.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	return job
}

func TestCreateComputesCostAndPrice(t *testing.T) {
	h := newHarness(t)

	job := h.create(t, jobs.CreateInput{
		TotalUnits:     100,
		PricingPerUnit: 50,
		PricingInput:   1000,
		Expenses:       []jobs.ExpenseInput{{Name: "Delivery", Cost: 500}},
	})
	if job.Status != jobs.StatusPending || job.Type != jobs.TypeInHouse {
		t.Fatalf("unexpected defaults: %+v", job)
	}
	if job.TotalCost != 1500 {
		t.Fatalf("expected total cost 1500, got %d", job.TotalCost)
	}
	if job.Price() != 5000 || job.Profit() != 3500 {
		t.Fatalf("unexpected price/profit: %d/%d", job.Price(), job.Profit())
	}
	if job.PaymentStatus() != jobs.PaymentUnpaid {
		t.Fatalf("expected Unpaid, got %s", job.PaymentStatus())
	}
}

func TestCreateOutsourcedRequiresVendor(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.jobs.Create(ctx, jobs.CreateInput{
		ClientPhone: "0712000111", Description: "Mugs", Type: jobs.TypeOutsourced,
	})
	var verr *jobs.ValidationError
	if !errors.As(err, &verr) || verr.Field != "vendor_name" {
		t.Fatalf("expected vendor_name validation error, got %v", err)
	}

	job := h.create(t, jobs.CreateInput{
		Type: jobs.TypeOutsourced, VendorName: "Mug Makers", VendorCostPerUnit: 300,
		TotalUnits: 10, PricingPerUnit: 500,
	})
	if job.TotalCost != 3000 {
		t.Fatalf("expected vendor cost in total, got %d", job.TotalCost)
	}
}

func TestCreateRejectsInvertedDates(t *testing.T) {
	h := newHarness(t)
	start := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, -1)

	_, err := h.jobs.Create(context.Background(), jobs.CreateInput{
		ClientPhone: "0712000111", Description: "Flyers", StartDate: &start, EndDate: &end,
	})
	if err == nil {
		t.Fatalf("expected end before start to be rejected")
	}
}

func TestProgressTransitions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	job := h.create(t, jobs.CreateInput{})

	if _, err := h.jobs.UpdateProgress(ctx, job.ID, jobs.ProgressInput{Status: jobs.StatusCompleted}); !errors.Is(err, jobs.ErrInvalidTransition) {
		t.Fatalf("pending to completed should be invalid, got %v", err)
	}

	steps := []jobs.Status{jobs.StatusInProgress, jobs.StatusOnHold, jobs.StatusInProgress, jobs.StatusCompleted}
	for _, status := range steps {
		updated, err := h.jobs.UpdateProgress(ctx, job.ID, jobs.ProgressInput{Status: status, Notes: "moved to " + string(status)})
		if err != nil {
			t.Fatalf("transition to %s failed: %v", status, err)
		}
		job = updated
	}
	if job.CompletedAt == nil {
		t.Fatalf("expected completed_at to be stamped")
	}

	reopened, err := h.jobs.UpdateProgress(ctx, job.ID, jobs.ProgressInput{Status: jobs.StatusInProgress})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if reopened.CompletedAt != nil {
		t.Fatalf("expected completed_at to be cleared on reopen")
	}

	notes, err := h.jobs.Notes(ctx, job.ID)
	if err != nil {
		t.Fatalf("notes failed: %v", err)
	}
	if len(notes) != len(steps) {
		t.Fatalf("expected %d notes, got %d", len(steps), len(notes))
	}
}

func TestCancelRequiresReasonAndIsFinal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	job := h.create(t, jobs.CreateInput{})

	if _, err := h.jobs.UpdateProgress(ctx, job.ID, jobs.ProgressInput{Status: jobs.StatusCancelled}); err == nil {
		t.Fatalf("expected cancellation without reason to fail")
	}
	cancelled, err := h.jobs.UpdateProgress(ctx, job.ID, jobs.ProgressInput{Status: jobs.StatusCancelled, Reason: "client withdrew"})
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.CancelledAt == nil || cancelled.CancellationReason != "client withdrew" {
		t.Fatalf("cancellation not recorded: %+v", cancelled)
	}
	if _, err := h.jobs.UpdateProgress(ctx, job.ID, jobs.ProgressInput{Status: jobs.StatusInProgress}); !errors.Is(err, jobs.ErrInvalidTransition) {
		t.Fatalf("expected cancelled job to be final, got %v", err)
	}
	if _, err := h.jobs.RecordPayment(ctx, job.ID, 100); !errors.Is(err, jobs.ErrJobClosed) {
		t.Fatalf("expected payment on cancelled job to fail, got %v", err)
	}
}

func TestAddMaterialUsage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	job := h.create(t, jobs.CreateInput{PricingInput: 100})

	if _, _, err := h.jobs.AddMaterialUsage(ctx, job.ID, jobs.MaterialUsageInput{MaterialID: h.material.ID, Quantity: 0.05}); err == nil {
		t.Fatalf("expected tiny quantity to be rejected")
	}

	updated, usage, err := h.jobs.AddMaterialUsage(ctx, job.ID, jobs.MaterialUsageInput{MaterialID: h.material.ID, Quantity: 2.5})
	if err != nil {
		t.Fatalf("add usage failed: %v", err)
	}
	if usage.Cost != 300 || usage.ID == "" {
		t.Fatalf("unexpected usage: %+v", usage)
	}
	if updated.TotalCost != 400 {
		t.Fatalf("expected total cost 400, got %d", updated.TotalCost)
	}
	material, _ := h.inventory.Get(ctx, h.material.ID)
	if material.StockLevel != 47.5 {
		t.Fatalf("expected stock 47.5, got %v", material.StockLevel)
	}

	if _, _, err := h.jobs.AddMaterialUsage(ctx, job.ID, jobs.MaterialUsageInput{MaterialID: h.material.ID, Quantity: 100}); !errors.Is(err, inventory.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
}

func TestAddMaterialUsageRejectsOutsourcedAndClosed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	outsourced := h.create(t, jobs.CreateInput{Type: jobs.TypeOutsourced, VendorName: "Vendor"})
	if _, _, err := h.jobs.AddMaterialUsage(ctx, outsourced.ID, jobs.MaterialUsageInput{MaterialID: h.material.ID, Quantity: 1}); !errors.Is(err, jobs.ErrOutsourcedJob) {
		t.Fatalf("expected ErrOutsourcedJob, got %v", err)
	}

	job := h.create(t, jobs.CreateInput{Status: jobs.StatusInProgress})
	if _, err := h.jobs.UpdateProgress(ctx, job.ID, jobs.ProgressInput{Status: jobs.StatusCompleted}); err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if _, _, err := h.jobs.AddMaterialUsage(ctx, job.ID, jobs.MaterialUsageInput{MaterialID: h.material.ID, Quantity: 1}); !errors.Is(err, jobs.ErrJobClosed) {
		t.Fatalf("expected ErrJobClosed, got %v", err)
	}
}

func TestSharedExpenses(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.create(t, jobs.CreateInput{})
	b := h.create(t, jobs.CreateInput{})

	updated, err := h.jobs.AddExpenses(ctx, a.ID, []jobs.ExpenseInput{
		{Name: "Courier", Cost: 800, JobIDs: []string{b.ID}},
		{Name: "Lamination", Cost: 200},
	})
	if err != nil {
		t.Fatalf("add expenses failed: %v", err)
	}
	if updated.TotalCost != 1000 {
		t.Fatalf("expected primary cost 1000, got %d", updated.TotalCost)
	}
	other, _ := h.jobs.Get(ctx, b.ID)
	if other.TotalCost != 800 {
		t.Fatalf("expected shared cost 800, got %d", other.TotalCost)
	}

	_, err = h.jobs.AddExpenses(ctx, a.ID, []jobs.ExpenseInput{{Name: "Ghost", Cost: 1, JobIDs: []string{"missing"}}})
	if !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown shared job, got %v", err)
	}
	unchanged, _ := h.jobs.Get(ctx, a.ID)
	if unchanged.TotalCost != 1000 {
		t.Fatalf("failed shared expense must not charge the primary job, got %d", unchanged.TotalCost)
	}
}

func TestSharedExpenseChargesEachJobOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.create(t, jobs.CreateInput{})
	b := h.create(t, jobs.CreateInput{})

	updated, err := h.jobs.AddExpenses(ctx, a.ID, []jobs.ExpenseInput{
		{Name: "Courier", Cost: 800, JobIDs: []string{a.ID, b.ID, b.ID}},
	})
	if err != nil {
		t.Fatalf("add expenses failed: %v", err)
	}
	stored, _ := h.jobs.Get(ctx, a.ID)
	if updated.TotalCost != 800 || stored.TotalCost != 800 {
		t.Fatalf("expected primary cost 800, returned %d stored %d", updated.TotalCost, stored.TotalCost)
	}
	other, _ := h.jobs.Get(ctx, b.ID)
	if other.TotalCost != 800 {
		t.Fatalf("expected shared cost 800, got %d", other.TotalCost)
	}
	for _, id := range []string{a.ID, b.ID} {
		expenses, err := h.jobs.Expenses(ctx, id)
		if err != nil {
			t.Fatalf("list expenses: %v", err)
		}
		if len(expenses) != 1 {
			t.Fatalf("expected 1 expense on job %s, got %d", id, len(expenses))
		}
	}
}

// closingRepository closes the job just before an update runs, as if
// another request had completed it in between.
type closingRepository struct {
	jobs.Repository
}

func (r closingRepository) Update(ctx context.Context, id string, fn jobs.UpdateFunc) (jobs.Job, jobs.Changes, error) {
	_, _, err := r.Repository.Update(ctx, id, func(job *jobs.Job) (jobs.Changes, error) {
		job.Status = jobs.StatusCancelled
		return jobs.Changes{}, nil
	})
	if err != nil {
		return jobs.Job{}, jobs.Changes{}, err
	}
	return r.Repository.Update(ctx, id, fn)
}

// failingCommitRepository runs the update but fails to store it.
type failingCommitRepository struct {
	jobs.Repository
}

var errCommit = errors.New("commit failed")

func (r failingCommitRepository) Update(ctx context.Context, id string, fn jobs.UpdateFunc) (jobs.Job, jobs.Changes, error) {
	job, err := r.Repository.FindByID(ctx, id)
	if err != nil {
		return jobs.Job{}, jobs.Changes{}, err
	}
	if _, err := fn(&job); err != nil {
		return jobs.Job{}, jobs.Changes{}, err
	}
	return jobs.Job{}, jobs.Changes{}, errCommit
}

func TestAddMaterialUsageRechecksJobUnderLock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	repo := memory.NewJobRepository()
	svc := jobs.NewService(closingRepository{repo}, clients.NewService(memory.NewClientRepository()), h.inventory)

	job, err := svc.Create(ctx, jobs.CreateInput{ClientPhone: "0712000111", Description: "Stickers"})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	if _, _, err := svc.AddMaterialUsage(ctx, job.ID, jobs.MaterialUsageInput{MaterialID: h.material.ID, Quantity: 2}); !errors.Is(err, jobs.ErrJobClosed) {
		t.Fatalf("expected ErrJobClosed, got %v", err)
	}
	material, _ := h.inventory.Get(ctx, h.material.ID)
	if material.StockLevel != 50 {
		t.Fatalf("closed job must not draw stock, got %v", material.StockLevel)
	}
}

func TestAddMaterialUsageReversesDrawWhenJobLineFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	repo := memory.NewJobRepository()
	svc := jobs.NewService(failingCommitRepository{repo}, clients.NewService(memory.NewClientRepository()), h.inventory)

	job, err := svc.Create(ctx, jobs.CreateInput{ClientPhone: "0712000111", Description: "Stickers"})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	_, _, err = svc.AddMaterialUsage(ctx, job.ID, jobs.MaterialUsageInput{MaterialID: h.material.ID, Quantity: 2, Wastage: 0.5})
	if !errors.Is(err, errCommit) {
		t.Fatalf("expected commit error, got %v", err)
	}

	material, _ := h.inventory.Get(ctx, h.material.ID)
	if material.StockLevel != 50 {
		t.Fatalf("expected stock restored to 50, got %v", material.StockLevel)
	}
	ledger, err := h.inventory.Transactions(ctx, inventory.TransactionFilter{MaterialID: h.material.ID})
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(ledger) != 2 {
		t.Fatalf("expected usage and reversal entries, got %d", len(ledger))
	}
	reversal := ledger[0]
	if reversal.Type != inventory.TransactionAdjustment || reversal.Reason != inventory.ReasonSystemCorrection || reversal.Quantity != 2.5 {
		t.Fatalf("unexpected reversal entry: %+v", reversal)
	}
	if reversal.ReferenceNumber != ledger[1].ID {
		t.Fatalf("reversal should reference usage %s, got %q", ledger[1].ID, reversal.ReferenceNumber)
	}
}

func TestAddMeteredUsageAcceptsSmallQuantities(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	job := h.create(t, jobs.CreateInput{})

	updated, usage, err := h.jobs.AddMeteredUsage(ctx, job.ID, jobs.MaterialUsageInput{MaterialID: h.material.ID, Quantity: 0.05})
	if err != nil {
		t.Fatalf("add metered usage failed: %v", err)
	}
	if usage.Cost != 6 || updated.TotalCost != 6 {
		t.Fatalf("unexpected cost: usage %d job %d", usage.Cost, updated.TotalCost)
	}
	if _, _, err := h.jobs.AddMeteredUsage(ctx, job.ID, jobs.MaterialUsageInput{MaterialID: h.material.ID}); err == nil {
		t.Fatalf("expected zero quantity to be rejected")
	}
}

func TestUpdateTimeframeRecordsHistory(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 7)
	job := h.create(t, jobs.CreateInput{StartDate: &start, EndDate: &end})

	later := end.AddDate(0, 0, 3)
	updated, err := h.jobs.UpdateTimeframe(ctx, job.ID, jobs.TimeframeInput{EndDate: &later, Reason: "paper delayed"})
	if err != nil {
		t.Fatalf("update timeframe failed: %v", err)
	}
	if !updated.EndDate.Equal(later) || !updated.StartDate.Equal(start) {
		t.Fatalf("unexpected dates: %v - %v", updated.StartDate, updated.EndDate)
	}

	early := start.AddDate(0, 0, -1)
	if _, err := h.jobs.UpdateTimeframe(ctx, job.ID, jobs.TimeframeInput{EndDate: &early}); err == nil {
		t.Fatalf("expected end before start to fail")
	}

	changes, err := h.jobs.TimeframeChanges(ctx, job.ID)
	if err != nil {
		t.Fatalf("timeframe changes failed: %v", err)
	}
	if len(changes) != 1 || !changes[0].OldEnd.Equal(end) || changes[0].Reason != "paper delayed" {
		t.Fatalf("unexpected history: %+v", changes)
	}
}

func TestRecordPayment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	job := h.create(t, jobs.CreateInput{TotalUnits: 10, PricingPerUnit: 100})

	partial, err := h.jobs.RecordPayment(ctx, job.ID, 400)
	if err != nil {
		t.Fatalf("payment failed: %v", err)
	}
	if partial.PaymentStatus() != jobs.PaymentPartiallyPaid || partial.Outstanding() != 600 {
		t.Fatalf("unexpected payment state: %s %d", partial.PaymentStatus(), partial.Outstanding())
	}
	if _, err := h.jobs.RecordPayment(ctx, job.ID, 700); !errors.Is(err, jobs.ErrOverpayment) {
		t.Fatalf("expected ErrOverpayment, got %v", err)
	}
	paid, err := h.jobs.RecordPayment(ctx, job.ID, 600)
	if err != nil {
		t.Fatalf("final payment failed: %v", err)
	}
	if paid.PaymentStatus() != jobs.PaymentPaid {
		t.Fatalf("expected Paid, got %s", paid.PaymentStatus())
	}
}

func TestListFilters(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.create(t, jobs.CreateInput{})
	h.create(t, jobs.CreateInput{Status: jobs.StatusInProgress})

	inProgress, err := h.jobs.List(ctx, jobs.Filter{Status: jobs.StatusInProgress}, 0, 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(inProgress) != 1 {
		t.Fatalf("expected 1 in-progress job, got %d", len(inProgress))
	}
	if _, err := h.jobs.List(ctx, jobs.Filter{Status: "archived"}, 0, 10); err == nil {
		t.Fatalf("expected unknown status filter to be rejected")
	}
}

func TestClassifyUpdate(t *testing.T) {
	cases := map[string]jobs.UpdateKind{
		`{"progress_status":"completed"}`:                        jobs.UpdateProgress,
		`{"material_id":"m1","additional_usage_meters":2}`:       jobs.UpdateMaterialUsage,
		`{"material_id":"m1"}`:                                   jobs.UpdateUnknown,
		`{"expenses":[]}`:                                        jobs.UpdateExpenses,
		`{"end_date":"2024-01-01"}`:                              jobs.UpdateTimeframe,
		`{"progress_status":"on_hold","start_date":"2024-01-01"}`: jobs.UpdateProgress,
		`{"colour":"red"}`:                                       jobs.UpdateUnknown,
	}
	for body, want := range cases {
		var payload map[string]json.RawMessage
		if err := json.Unmarshal([]byte(body), &payload); err != nil {
			t.Fatalf("bad fixture %s: %v", body, err)
		}
		if got := jobs.ClassifyUpdate(payload); got != want {
			t.Fatalf("%s: expected %s, got %s", body, want, got)
		}
	}
}

func TestCanTransition(t *testing.T) {
	if jobs.CanTransition(jobs.StatusCancelled, jobs.StatusPending) {
		t.Fatalf("cancelled jobs must not transition")
	}
	if !jobs.CanTransition(jobs.StatusCompleted, jobs.StatusInProgress) {
		t.Fatalf("completed jobs may be reopened")
	}
}

// Package reports builds read-only views across jobs, inventory and
// machines. Summary and low-stock views may be served from a cache.
package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/printworks/platform/internal/cache"
	"github.com/printworks/platform/internal/domain/clients"
	"github.com/printworks/platform/internal/domain/inventory"
	"github.com/printworks/platform/internal/domain/jobs"
	"github.com/printworks/platform/internal/domain/machines"
	"github.com/printworks/platform/internal/domain/suppliers"
)

const (
	keySummary  = "reports:summary"
	keyLowStock = "reports:low_stock"
)

type MaterialUsageRow struct {
	TransactionID string    `json:"transaction_id"`
	MaterialID    string    `json:"material_id"`
	MaterialName  string    `json:"material_name"`
	JobID         string    `json:"job_id"`
	ClientName    string    `json:"client_name"`
	Quantity      float64   `json:"quantity"`
	Wastage       float64   `json:"wastage"`
	CreatedAt     time.Time `json:"created_at"`
}

type JobRow struct {
	JobID         string               `json:"job_id"`
	Description   string               `json:"description"`
	ClientID      string               `json:"client_id"`
	ClientName    string               `json:"client_name"`
	Status        jobs.Status          `json:"status"`
	PaymentStatus jobs.PaymentStatus   `json:"payment_status"`
	Price         int64                `json:"price"`
	TotalCost     int64                `json:"total_cost"`
	Profit        int64                `json:"profit"`
	AmountPaid    int64                `json:"amount_paid"`
	Outstanding   int64                `json:"outstanding"`
	Materials     []jobs.MaterialUsage `json:"materials"`
}

type JobUsageRow struct {
	ReadingID     string    `json:"reading_id"`
	MachineID     string    `json:"machine_id"`
	MachineName   string    `json:"machine_name"`
	MaterialID    string    `json:"material_id,omitempty"`
	MaterialName  string    `json:"material_name,omitempty"`
	ClientName    string    `json:"client_name"`
	StartMeter    float64   `json:"start_meter"`
	EndMeter      float64   `json:"end_meter"`
	MaterialUsage float64   `json:"material_usage"`
	CreatedAt     time.Time `json:"created_at"`
}

type LowStockRow struct {
	Material         inventory.Material `json:"material"`
	SupplierName     string             `json:"supplier_name"`
	SuggestedReorder float64            `json:"suggested_reorder"`
}

type OutstandingReport struct {
	Client           clients.Client `json:"client"`
	Jobs             []JobRow       `json:"jobs"`
	TotalOutstanding int64          `json:"total_outstanding"`
}

type Summary struct {
	JobsByStatus  map[jobs.Status]int `json:"jobs_by_status"`
	Revenue       int64               `json:"revenue"`
	Cost          int64               `json:"cost"`
	Profit        int64               `json:"profit"`
	Outstanding   int64               `json:"outstanding"`
	LowStockCount int                 `json:"low_stock_count"`
	GeneratedAt   time.Time           `json:"generated_at"`
}

// Service produces reports.
type Service interface {
	MaterialUsage(ctx context.Context, from, to time.Time) ([]MaterialUsageRow, error)
	Jobs(ctx context.Context, filter jobs.Filter) ([]JobRow, error)
	JobUsage(ctx context.Context, jobID string) ([]JobUsageRow, error)
	LowStock(ctx context.Context) ([]LowStockRow, error)
	OutstandingPayments(ctx context.Context, clientID string) (OutstandingReport, error)
	Summary(ctx context.Context) (Summary, error)
}

// Sources are the services reports read from.
type Sources struct {
	Clients   clients.Service
	Suppliers suppliers.Service
	Inventory inventory.Service
	Jobs      jobs.Service
	Machines  machines.Service
}

// NewService builds the report service. A nil cache disables caching.
func NewService(src Sources, c cache.Cache, ttl time.Duration) Service {
	if c == nil {
		c = cache.Noop{}
	}
	return &service{src: src, cache: c, ttl: ttl}
}

type service struct {
	src   Sources
	cache cache.Cache
	ttl   time.Duration
}

// names memoises lookups of display names within a single report.
type names struct {
	ctx       context.Context
	src       Sources
	clients   map[string]string
	materials map[string]string
	// job id to client id
	jobs map[string]string
}

func (s *service) names(ctx context.Context) *names {
	return &names{
		ctx:       ctx,
		src:       s.src,
		clients:   map[string]string{},
		materials: map[string]string{},
		jobs:      map[string]string{},
	}
}

func (n *names) client(id string) string {
	if id == "" {
		return ""
	}
	if name, ok := n.clients[id]; ok {
		return name
	}
	var name string
	if c, err := n.src.Clients.Get(n.ctx, id); err == nil {
		name = c.Name
		if name == "" {
			name = c.PhoneNumber
		}
	}
	n.clients[id] = name
	return name
}

func (n *names) jobClient(jobID string) string {
	if jobID == "" {
		return ""
	}
	clientID, ok := n.jobs[jobID]
	if !ok {
		if job, err := n.src.Jobs.Get(n.ctx, jobID); err == nil {
			clientID = job.ClientID
		}
		n.jobs[jobID] = clientID
	}
	return n.client(clientID)
}

func (n *names) material(id string) string {
	if id == "" {
		return ""
	}
	if name, ok := n.materials[id]; ok {
		return name
	}
	var name string
	if m, err := n.src.Inventory.Get(n.ctx, id); err == nil {
		name = m.Name
	}
	n.materials[id] = name
	return name
}

func (s *service) MaterialUsage(ctx context.Context, from, to time.Time) ([]MaterialUsageRow, error) {
	txs, err := s.src.Inventory.Transactions(ctx, inventory.TransactionFilter{
		Type: inventory.TransactionUsage,
		From: from,
		To:   to,
	})
	if err != nil {
		return nil, fmt.Errorf("load usage transactions: %w", err)
	}

	n := s.names(ctx)
	rows := make([]MaterialUsageRow, 0, len(txs))
	for _, tx := range txs {
		rows = append(rows, MaterialUsageRow{
			TransactionID: tx.ID,
			MaterialID:    tx.MaterialID,
			MaterialName:  n.material(tx.MaterialID),
			JobID:         tx.JobID,
			ClientName:    n.jobClient(tx.JobID),
			Quantity:      tx.Quantity,
			Wastage:       tx.Wastage,
			CreatedAt:     tx.CreatedAt,
		})
	}
	return rows, nil
}

func (s *service) Jobs(ctx context.Context, filter jobs.Filter) ([]JobRow, error) {
	list, err := s.src.Jobs.List(ctx, filter, 0, 0)
	if err != nil {
		return nil, err
	}
	n := s.names(ctx)
	rows := make([]JobRow, 0, len(list))
	for _, j := range list {
		row, err := s.jobRow(ctx, n, j)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *service) jobRow(ctx context.Context, n *names, j jobs.Job) (JobRow, error) {
	usages, err := s.src.Jobs.MaterialUsages(ctx, j.ID)
	if err != nil {
		return JobRow{}, fmt.Errorf("load material usage for job %s: %w", j.ID, err)
	}
	return JobRow{
		JobID:         j.ID,
		Description:   j.Description,
		ClientID:      j.ClientID,
		ClientName:    n.client(j.ClientID),
		Status:        j.Status,
		PaymentStatus: j.PaymentStatus(),
		Price:         j.Price(),
		TotalCost:     j.TotalCost,
		Profit:        j.Profit(),
		AmountPaid:    j.AmountPaid,
		Outstanding:   j.Outstanding(),
		Materials:     usages,
	}, nil
}

func (s *service) JobUsage(ctx context.Context, jobID string) ([]JobUsageRow, error) {
	job, err := s.src.Jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	readings, err := s.src.Machines.ReadingsForJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	n := s.names(ctx)
	machineNames := map[string]string{}
	rows := make([]JobUsageRow, 0, len(readings))
	for _, r := range readings {
		name, ok := machineNames[r.MachineID]
		if !ok {
			if m, err := s.src.Machines.GetMachine(ctx, r.MachineID); err == nil {
				name = m.Name
			}
			machineNames[r.MachineID] = name
		}
		rows = append(rows, JobUsageRow{
			ReadingID:     r.ID,
			MachineID:     r.MachineID,
			MachineName:   name,
			MaterialID:    r.MaterialID,
			MaterialName:  n.material(r.MaterialID),
			ClientName:    n.client(job.ClientID),
			StartMeter:    r.StartMeter,
			EndMeter:      r.EndMeter,
			MaterialUsage: r.MaterialUsage,
			CreatedAt:     r.CreatedAt,
		})
	}
	return rows, nil
}

func (s *service) LowStock(ctx context.Context) ([]LowStockRow, error) {
	var rows []LowStockRow
	if s.cached(ctx, keyLowStock, &rows) {
		return rows, nil
	}

	materials, err := s.src.Inventory.LowStock(ctx)
	if err != nil {
		return nil, err
	}
	supplierNames := map[string]string{}
	rows = make([]LowStockRow, 0, len(materials))
	for _, m := range materials {
		name, ok := supplierNames[m.SupplierID]
		if !ok {
			if sup, err := s.src.Suppliers.Get(ctx, m.SupplierID); err == nil {
				name = sup.Name
			}
			supplierNames[m.SupplierID] = name
		}
		rows = append(rows, LowStockRow{
			Material:         m,
			SupplierName:     name,
			SuggestedReorder: suggestedReorder(m),
		})
	}

	s.store(ctx, keyLowStock, rows)
	return rows, nil
}

// suggestedReorder is the configured reorder quantity, or enough to get
// back to the threshold when none is configured.
func suggestedReorder(m inventory.Material) float64 {
	if m.ReorderQuantity > 0 {
		return m.ReorderQuantity
	}
	if gap := m.MinThreshold - m.StockLevel; gap > 0 {
		return gap
	}
	return 0
}

func (s *service) OutstandingPayments(ctx context.Context, clientID string) (OutstandingReport, error) {
	client, err := s.src.Clients.Get(ctx, clientID)
	if err != nil {
		return OutstandingReport{}, err
	}
	list, err := s.src.Jobs.List(ctx, jobs.Filter{ClientID: clientID}, 0, 0)
	if err != nil {
		return OutstandingReport{}, err
	}

	report := OutstandingReport{Client: client, Jobs: []JobRow{}}
	n := s.names(ctx)
	for _, j := range list {
		if j.Status == jobs.StatusCancelled || j.PaymentStatus() == jobs.PaymentPaid {
			continue
		}
		row, err := s.jobRow(ctx, n, j)
		if err != nil {
			return OutstandingReport{}, err
		}
		report.Jobs = append(report.Jobs, row)
		report.TotalOutstanding += row.Outstanding
	}
	return report, nil
}

func (s *service) Summary(ctx context.Context) (Summary, error) {
	var summary Summary
	if s.cached(ctx, keySummary, &summary) {
		return summary, nil
	}

	list, err := s.src.Jobs.List(ctx, jobs.Filter{}, 0, 0)
	if err != nil {
		return Summary{}, err
	}
	summary = Summary{JobsByStatus: map[jobs.Status]int{}, GeneratedAt: time.Now().UTC()}
	for _, j := range list {
		summary.JobsByStatus[j.Status]++
		if j.Status == jobs.StatusCancelled {
			continue
		}
		summary.Revenue += j.Price()
		summary.Cost += j.TotalCost
		summary.Outstanding += j.Outstanding()
	}
	summary.Profit = summary.Revenue - summary.Cost

	low, err := s.src.Inventory.LowStock(ctx)
	if err != nil {
		return Summary{}, err
	}
	summary.LowStockCount = len(low)

	s.store(ctx, keySummary, summary)
	return summary, nil
}

// cached reads key into dst. Cache errors are treated as misses.
func (s *service) cached(ctx context.Context, key string, dst any) bool {
	hit, err := s.cache.Get(ctx, key, dst)
	return err == nil && hit
}

func (s *service) store(ctx context.Context, key string, value any) {
	if s.ttl <= 0 {
		return
	}
	_ = s.cache.Set(ctx, key, value, s.ttl)
}

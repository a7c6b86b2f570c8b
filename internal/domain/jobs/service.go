package jobs

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/printworks/platform/internal/domain/clients"
	"github.com/printworks/platform/internal/domain/inventory"
)

// ClientDirectory resolves the client a job is ordered by.
type ClientDirectory interface {
	Get(ctx context.Context, id string) (clients.Client, error)
	FindOrCreate(ctx context.Context, name, phoneNumber string) (clients.Client, error)
}

// StockLedger draws material from inventory for a job and returns it when
// the job cost line cannot be stored.
type StockLedger interface {
	Get(ctx context.Context, id string) (inventory.Material, error)
	RecordUsage(ctx context.Context, input inventory.UsageInput) (inventory.Material, inventory.Transaction, error)
	ReverseUsage(ctx context.Context, usage inventory.Transaction) (inventory.Material, inventory.Transaction, error)
}

// Service exposes job workflow operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (Job, error)
	Get(ctx context.Context, id string) (Job, error)
	List(ctx context.Context, filter Filter, offset, limit int) ([]Job, error)
	UpdateProgress(ctx context.Context, id string, input ProgressInput) (Job, error)
	AddMaterialUsage(ctx context.Context, id string, input MaterialUsageInput) (Job, MaterialUsage, error)
	AddMeteredUsage(ctx context.Context, id string, input MaterialUsageInput) (Job, MaterialUsage, error)
	AddExpenses(ctx context.Context, id string, inputs []ExpenseInput) (Job, error)
	UpdateTimeframe(ctx context.Context, id string, input TimeframeInput) (Job, error)
	RecordPayment(ctx context.Context, id string, amount int64) (Job, error)

	Notes(ctx context.Context, id string) ([]Note, error)
	Expenses(ctx context.Context, id string) ([]Expense, error)
	MaterialUsages(ctx context.Context, id string) ([]MaterialUsage, error)
	TimeframeChanges(ctx context.Context, id string) ([]TimeframeChange, error)
}

// CreateInput describes a new job. The client is either referenced by ID or
// found (or created) by name and phone number.
type CreateInput struct {
	ClientID          string         `json:"client_id"`
	ClientName        string         `json:"client_name"`
	ClientPhone       string         `json:"client_phone"`
	Description       string         `json:"description"`
	Type              Type           `json:"job_type"`
	VendorName        string         `json:"vendor_name"`
	VendorCostPerUnit int64          `json:"vendor_cost_per_unit"`
	TotalUnits        int            `json:"total_units"`
	PricingPerUnit    int64          `json:"pricing_per_unit"`
	PricingInput      int64          `json:"pricing_input"`
	Status            Status         `json:"progress_status"`
	StartDate         *time.Time     `json:"start_date"`
	EndDate           *time.Time     `json:"end_date"`
	Notes             string         `json:"notes"`
	Expenses          []ExpenseInput `json:"expenses"`
}

// ExpenseInput is a cost incurred for a job. JobIDs shares the same expense
// with other jobs; each listed job is charged the full cost.
type ExpenseInput struct {
	Name       string     `json:"name"`
	Cost       int64      `json:"cost"`
	Date       *time.Time `json:"date"`
	Category   string     `json:"category"`
	ReceiptURL string     `json:"receipt_url"`
	JobIDs     []string   `json:"job_ids"`
}

type ProgressInput struct {
	Status      Status     `json:"progress_status"`
	Notes       string     `json:"notes"`
	CompletedAt *time.Time `json:"completed_at"`
	Reason      string     `json:"reason"`
}

type MaterialUsageInput struct {
	MaterialID string  `json:"material_id"`
	Quantity   float64 `json:"quantity"`
	Wastage    float64 `json:"wastage"`
	UserID     string  `json:"user_id"`
}

type TimeframeInput struct {
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
	Reason    string     `json:"reason"`
}

const minUsageQuantity = 0.1

// NewService builds a job service.
func NewService(repo Repository, directory ClientDirectory, ledger StockLedger) Service {
	return &service{repo: repo, clients: directory, ledger: ledger, now: time.Now}
}

type service struct {
	repo    Repository
	clients ClientDirectory
	ledger  StockLedger
	now     func() time.Time
}

func (s *service) Create(ctx context.Context, input CreateInput) (Job, error) {
	job := Job{
		Description:       strings.TrimSpace(input.Description),
		Type:              input.Type,
		VendorName:        strings.TrimSpace(input.VendorName),
		VendorCostPerUnit: input.VendorCostPerUnit,
		TotalUnits:        input.TotalUnits,
		PricingPerUnit:    input.PricingPerUnit,
		Status:            input.Status,
		StartDate:         input.StartDate,
		EndDate:           input.EndDate,
	}
	if job.Type == "" {
		job.Type = TypeInHouse
	}
	if job.Status == "" {
		job.Status = StatusPending
	}
	if job.TotalUnits == 0 {
		job.TotalUnits = 1
	}
	if err := validateNewJob(job, input.PricingInput); err != nil {
		return Job{}, err
	}

	expenses, shared, err := s.prepareExpenses(ctx, "", input.Expenses)
	if err != nil {
		return Job{}, err
	}

	client, err := s.resolveClient(ctx, input)
	if err != nil {
		return Job{}, err
	}
	job.ClientID = client.ID

	now := s.now().UTC()
	job.LastStatusChange = now
	job.TotalCost = input.PricingInput
	if job.Type == TypeOutsourced {
		job.TotalCost += job.VendorCostPerUnit * int64(job.TotalUnits)
	}
	var changes Changes
	for _, e := range expenses {
		job.TotalCost += e.Cost
		changes.Expenses = append(changes.Expenses, e)
	}
	if note := strings.TrimSpace(input.Notes); note != "" {
		changes.Notes = append(changes.Notes, Note{Content: note})
	}

	created, err := s.repo.Create(ctx, job, changes)
	if err != nil {
		return Job{}, err
	}
	if err := s.chargeShared(ctx, shared); err != nil {
		return created, err
	}
	return created, nil
}

func (s *service) resolveClient(ctx context.Context, input CreateInput) (clients.Client, error) {
	if id := strings.TrimSpace(input.ClientID); id != "" {
		c, err := s.clients.Get(ctx, id)
		if errors.Is(err, clients.ErrNotFound) {
			return clients.Client{}, invalid("client_id", "unknown client")
		}
		return c, err
	}
	if strings.TrimSpace(input.ClientPhone) == "" {
		return clients.Client{}, invalid("client_id", "client_id or client_phone is required")
	}
	return s.clients.FindOrCreate(ctx, input.ClientName, input.ClientPhone)
}

func validateNewJob(job Job, pricingInput int64) error {
	if job.Description == "" || len(job.Description) > 500 {
		return invalid("description", "is required and must be at most 500 characters")
	}
	switch job.Type {
	case TypeInHouse:
	case TypeOutsourced:
		if job.VendorName == "" {
			return invalid("vendor_name", "is required for outsourced jobs")
		}
		if job.VendorCostPerUnit < 0 {
			return invalid("vendor_cost_per_unit", "cannot be negative")
		}
	default:
		return invalid("job_type", "must be in_house or outsourced")
	}
	if job.Status != StatusPending && job.Status != StatusInProgress {
		return invalid("progress_status", "new jobs start pending or in_progress")
	}
	if job.TotalUnits < 0 {
		return invalid("total_units", "cannot be negative")
	}
	if job.PricingPerUnit < 0 {
		return invalid("pricing_per_unit", "cannot be negative")
	}
	if pricingInput < 0 {
		return invalid("pricing_input", "cannot be negative")
	}
	return checkDates(job.StartDate, job.EndDate)
}

func checkDates(start, end *time.Time) error {
	if start != nil && end != nil && end.Before(*start) {
		return invalid("end_date", "must not be before start_date")
	}
	return nil
}

func (s *service) update(ctx context.Context, id string, fn UpdateFunc) (Job, error) {
	job, _, err := s.repo.Update(ctx, id, fn)
	return job, err
}

func (s *service) Get(ctx context.Context, id string) (Job, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *service) List(ctx context.Context, filter Filter, offset, limit int) ([]Job, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, invalid("status", "unknown status")
	}
	return s.repo.List(ctx, filter, offset, limit)
}

func (s *service) UpdateProgress(ctx context.Context, id string, input ProgressInput) (Job, error) {
	if !input.Status.Valid() {
		return Job{}, invalid("progress_status", "unknown status")
	}
	reason := strings.TrimSpace(input.Reason)
	if input.Status == StatusCancelled && reason == "" {
		return Job{}, invalid("reason", "is required when cancelling a job")
	}

	return s.update(ctx, id, func(job *Job) (Changes, error) {
		if !CanTransition(job.Status, input.Status) {
			return Changes{}, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, job.Status, input.Status)
		}
		now := s.now().UTC()

		switch input.Status {
		case StatusCompleted:
			completed := now
			if input.CompletedAt != nil {
				completed = input.CompletedAt.UTC()
			}
			job.CompletedAt = &completed
		case StatusCancelled:
			job.CancelledAt = &now
			job.CancellationReason = reason
		case StatusInProgress:
			job.CompletedAt = nil
		}
		job.Status = input.Status
		job.LastStatusChange = now

		var changes Changes
		if note := strings.TrimSpace(input.Notes); note != "" {
			changes.Notes = append(changes.Notes, Note{Content: note})
		}
		return changes, nil
	})
}

func (s *service) AddMaterialUsage(ctx context.Context, id string, input MaterialUsageInput) (Job, MaterialUsage, error) {
	if input.Quantity < minUsageQuantity {
		return Job{}, MaterialUsage{}, invalid("quantity", fmt.Sprintf("must be at least %.1f", minUsageQuantity))
	}
	return s.chargeMaterial(ctx, id, input)
}

// AddMeteredUsage charges usage computed from machine meter readings. Unlike
// manual entries any positive quantity is accepted.
func (s *service) AddMeteredUsage(ctx context.Context, id string, input MaterialUsageInput) (Job, MaterialUsage, error) {
	if input.Quantity <= 0 {
		return Job{}, MaterialUsage{}, invalid("quantity", "must be positive")
	}
	return s.chargeMaterial(ctx, id, input)
}

// chargeMaterial draws stock while the job is locked, so the job cannot
// close between the check and the charge. If the job line then fails to
// store, the draw is reversed in the ledger.
func (s *service) chargeMaterial(ctx context.Context, id string, input MaterialUsageInput) (Job, MaterialUsage, error) {
	var drawn *inventory.Transaction
	updated, stored, err := s.repo.Update(ctx, id, func(job *Job) (Changes, error) {
		if err := checkOpenInHouse(*job); err != nil {
			return Changes{}, err
		}
		material, tx, err := s.ledger.RecordUsage(ctx, inventory.UsageInput{
			MaterialID: input.MaterialID,
			JobID:      id,
			UserID:     input.UserID,
			Quantity:   input.Quantity,
			Wastage:    input.Wastage,
		})
		if err != nil {
			return Changes{}, err
		}
		drawn = &tx

		usage := MaterialUsage{
			MaterialID: material.ID,
			Quantity:   input.Quantity,
			Cost:       int64(math.Round(float64(material.CostPerUnit) * input.Quantity)),
		}
		job.TotalCost += usage.Cost
		return Changes{MaterialUsages: []MaterialUsage{usage}}, nil
	})
	if err == nil {
		return updated, stored.MaterialUsages[0], nil
	}
	if drawn == nil {
		return Job{}, MaterialUsage{}, err
	}
	err = fmt.Errorf("record usage cost: %w", err)
	if _, _, rerr := s.ledger.ReverseUsage(ctx, *drawn); rerr != nil {
		return Job{}, MaterialUsage{}, errors.Join(err, fmt.Errorf("reverse stock draw %s: %w", drawn.ID, rerr))
	}
	return Job{}, MaterialUsage{}, err
}

func checkOpenInHouse(job Job) error {
	if job.Type == TypeOutsourced {
		return ErrOutsourcedJob
	}
	if job.Status.Closed() {
		return ErrJobClosed
	}
	return nil
}

func (s *service) AddExpenses(ctx context.Context, id string, inputs []ExpenseInput) (Job, error) {
	if len(inputs) == 0 {
		return Job{}, invalid("expenses", "at least one expense is required")
	}
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return Job{}, err
	}
	expenses, shared, err := s.prepareExpenses(ctx, id, inputs)
	if err != nil {
		return Job{}, err
	}

	updated, err := s.update(ctx, id, func(job *Job) (Changes, error) {
		for _, e := range expenses {
			job.TotalCost += e.Cost
		}
		return Changes{Expenses: expenses}, nil
	})
	if err != nil {
		return Job{}, err
	}
	if err := s.chargeShared(ctx, shared); err != nil {
		return updated, err
	}
	return updated, nil
}

// prepareExpenses validates expense inputs and verifies every shared job
// exists before anything is written. It returns the expenses for the primary
// job and the copies owed by other jobs. Each job is charged an expense at
// most once, however often it is listed.
func (s *service) prepareExpenses(ctx context.Context, primaryID string, inputs []ExpenseInput) ([]Expense, map[string][]Expense, error) {
	now := s.now().UTC()
	primary := make([]Expense, 0, len(inputs))
	shared := make(map[string][]Expense)

	for i, in := range inputs {
		name := strings.TrimSpace(in.Name)
		if name == "" || len(name) > 100 {
			return nil, nil, invalid(fmt.Sprintf("expenses[%d].name", i), "is required and must be at most 100 characters")
		}
		if in.Cost < 0 {
			return nil, nil, invalid(fmt.Sprintf("expenses[%d].cost", i), "cannot be negative")
		}
		date := now
		if in.Date != nil {
			date = in.Date.UTC()
		}
		e := Expense{
			Name:       name,
			Cost:       in.Cost,
			Date:       date,
			Category:   strings.TrimSpace(in.Category),
			ReceiptURL: strings.TrimSpace(in.ReceiptURL),
		}
		primary = append(primary, e)

		charged := map[string]bool{primaryID: true}
		for _, jobID := range in.JobIDs {
			jobID = strings.TrimSpace(jobID)
			if jobID == "" || charged[jobID] {
				continue
			}
			charged[jobID] = true
			if _, err := s.repo.FindByID(ctx, jobID); err != nil {
				return nil, nil, fmt.Errorf("shared expense job %s: %w", jobID, err)
			}
			shared[jobID] = append(shared[jobID], e)
		}
	}
	return primary, shared, nil
}

func (s *service) chargeShared(ctx context.Context, shared map[string][]Expense) error {
	for jobID, expenses := range shared {
		_, err := s.update(ctx, jobID, func(job *Job) (Changes, error) {
			for _, e := range expenses {
				job.TotalCost += e.Cost
			}
			return Changes{Expenses: expenses}, nil
		})
		if err != nil {
			return fmt.Errorf("charge shared expense to job %s: %w", jobID, err)
		}
	}
	return nil
}

func (s *service) UpdateTimeframe(ctx context.Context, id string, input TimeframeInput) (Job, error) {
	if input.StartDate == nil && input.EndDate == nil {
		return Job{}, invalid("start_date", "start_date or end_date is required")
	}
	if len(input.Reason) > 255 {
		return Job{}, invalid("reason", "must be at most 255 characters")
	}

	return s.update(ctx, id, func(job *Job) (Changes, error) {
		change := TimeframeChange{
			OldStart: job.StartDate,
			OldEnd:   job.EndDate,
			Reason:   strings.TrimSpace(input.Reason),
		}
		start, end := job.StartDate, job.EndDate
		if input.StartDate != nil {
			start = input.StartDate
		}
		if input.EndDate != nil {
			end = input.EndDate
		}
		if err := checkDates(start, end); err != nil {
			return Changes{}, err
		}
		job.StartDate, job.EndDate = start, end
		change.NewStart, change.NewEnd = start, end
		return Changes{TimeframeChanges: []TimeframeChange{change}}, nil
	})
}

func (s *service) RecordPayment(ctx context.Context, id string, amount int64) (Job, error) {
	if amount <= 0 {
		return Job{}, invalid("amount", "must be positive")
	}
	return s.update(ctx, id, func(job *Job) (Changes, error) {
		if job.Status == StatusCancelled {
			return Changes{}, ErrJobClosed
		}
		if amount > job.Outstanding() {
			return Changes{}, fmt.Errorf("%w: outstanding %d, paid %d", ErrOverpayment, job.Outstanding(), amount)
		}
		job.AmountPaid += amount
		return Changes{}, nil
	})
}

func (s *service) Notes(ctx context.Context, id string) ([]Note, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.Notes(ctx, id)
}

func (s *service) Expenses(ctx context.Context, id string) ([]Expense, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.Expenses(ctx, id)
}

func (s *service) MaterialUsages(ctx context.Context, id string) ([]MaterialUsage, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.MaterialUsages(ctx, id)
}

func (s *service) TimeframeChanges(ctx context.Context, id string) ([]TimeframeChange, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.TimeframeChanges(ctx, id)
}

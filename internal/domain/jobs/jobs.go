// Package jobs manages print jobs from intake to payment: progress through
// the status workflow, material consumption, expenses, schedule changes and
// the money owed by the client.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotImplemented    = errors.New("jobs repository: not implemented")
	ErrNotFound          = errors.New("job not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrOutsourcedJob     = errors.New("material usage cannot be recorded on outsourced jobs")
	ErrJobClosed         = errors.New("job is completed or cancelled")
	ErrOverpayment       = errors.New("payment exceeds outstanding balance")
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusOnHold     Status = "on_hold"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusPending:    {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusOnHold, StatusCompleted, StatusCancelled},
	StatusOnHold:     {StatusInProgress, StatusCancelled},
	StatusCompleted:  {StatusInProgress},
	StatusCancelled:  {},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether a job may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Closed reports whether no further production work may be recorded.
func (s Status) Closed() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Type string

const (
	TypeInHouse    Type = "in_house"
	TypeOutsourced Type = "outsourced"
)

type PaymentStatus string

const (
	PaymentPaid          PaymentStatus = "Paid"
	PaymentPartiallyPaid PaymentStatus = "Partially Paid"
	PaymentUnpaid        PaymentStatus = "Unpaid"
)

// PaymentStatuses lists every payment status in display order.
func PaymentStatuses() []PaymentStatus {
	return []PaymentStatus{PaymentPaid, PaymentPartiallyPaid, PaymentUnpaid}
}

// Job is a unit of print work ordered by a client. Monetary fields are in
// cents.
type Job struct {
	ID                 string     `json:"id"`
	ClientID           string     `json:"client_id"`
	Description        string     `json:"description"`
	Type               Type       `json:"job_type"`
	VendorName         string     `json:"vendor_name,omitempty"`
	VendorCostPerUnit  int64      `json:"vendor_cost_per_unit,omitempty"`
	TotalUnits         int        `json:"total_units"`
	PricingPerUnit     int64      `json:"pricing_per_unit"`
	Status             Status     `json:"progress_status"`
	TotalCost          int64      `json:"total_cost"`
	AmountPaid         int64      `json:"amount_paid"`
	StartDate          *time.Time `json:"start_date,omitempty"`
	EndDate            *time.Time `json:"end_date,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
	LastStatusChange   time.Time  `json:"last_status_change"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Price is the amount the client is billed.
func (j Job) Price() int64 {
	return j.PricingPerUnit * int64(j.TotalUnits)
}

// Outstanding is the unpaid part of the price, never negative.
func (j Job) Outstanding() int64 {
	if owed := j.Price() - j.AmountPaid; owed > 0 {
		return owed
	}
	return 0
}

func (j Job) Profit() int64 {
	return j.Price() - j.TotalCost
}

func (j Job) PaymentStatus() PaymentStatus {
	switch {
	case j.AmountPaid <= 0 && j.Price() > 0:
		return PaymentUnpaid
	case j.Outstanding() == 0:
		return PaymentPaid
	default:
		return PaymentPartiallyPaid
	}
}

type Note struct {
	ID        string    `json:"id"`
	JobID     string    `json:"job_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type Expense struct {
	ID         string    `json:"id"`
	JobID      string    `json:"job_id"`
	Name       string    `json:"name"`
	Cost       int64     `json:"cost"`
	Date       time.Time `json:"date"`
	Category   string    `json:"category,omitempty"`
	ReceiptURL string    `json:"receipt_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type MaterialUsage struct {
	ID         string    `json:"id"`
	JobID      string    `json:"job_id"`
	MaterialID string    `json:"material_id"`
	Quantity   float64   `json:"quantity"`
	Cost       int64     `json:"cost"`
	CreatedAt  time.Time `json:"created_at"`
}

type TimeframeChange struct {
	ID        string     `json:"id"`
	JobID     string     `json:"job_id"`
	OldStart  *time.Time `json:"old_start_date,omitempty"`
	OldEnd    *time.Time `json:"old_end_date,omitempty"`
	NewStart  *time.Time `json:"new_start_date,omitempty"`
	NewEnd    *time.Time `json:"new_end_date,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	ChangedAt time.Time  `json:"changed_at"`
}

// Changes are child records written together with a job update.
type Changes struct {
	Notes            []Note
	Expenses         []Expense
	MaterialUsages   []MaterialUsage
	TimeframeChanges []TimeframeChange
}

// UpdateFunc mutates a job in place and returns the child records to store
// with it. An error aborts the update.
type UpdateFunc func(job *Job) (Changes, error)

// Filter narrows job listings. Empty fields match everything.
type Filter struct {
	ClientID string
	Status   Status
	Type     Type
}

// Repository abstracts job persistence. Create and Update store the job and
// its child records atomically.
type Repository interface {
	Create(ctx context.Context, job Job, changes Changes) (Job, error)
	FindByID(ctx context.Context, id string) (Job, error)
	// Update returns the job and the child records as stored.
	Update(ctx context.Context, id string, fn UpdateFunc) (Job, Changes, error)
	List(ctx context.Context, filter Filter, offset, limit int) ([]Job, error)

	Notes(ctx context.Context, jobID string) ([]Note, error)
	Expenses(ctx context.Context, jobID string) ([]Expense, error)
	MaterialUsages(ctx context.Context, jobID string) ([]MaterialUsage, error)
	TimeframeChanges(ctx context.Context, jobID string) ([]TimeframeChange, error)
}

// NullRepository returns ErrNotImplemented for all operations.
type NullRepository struct{}

func (NullRepository) Create(context.Context, Job, Changes) (Job, error) {
	return Job{}, ErrNotImplemented
}
func (NullRepository) FindByID(context.Context, string) (Job, error) { return Job{}, ErrNotImplemented }
func (NullRepository) Update(context.Context, string, UpdateFunc) (Job, Changes, error) {
	return Job{}, Changes{}, ErrNotImplemented
}
func (NullRepository) List(context.Context, Filter, int, int) ([]Job, error) {
	return nil, ErrNotImplemented
}
func (NullRepository) Notes(context.Context, string) ([]Note, error) { return nil, ErrNotImplemented }
func (NullRepository) Expenses(context.Context, string) ([]Expense, error) {
	return nil, ErrNotImplemented
}
func (NullRepository) MaterialUsages(context.Context, string) ([]MaterialUsage, error) {
	return nil, ErrNotImplemented
}
func (NullRepository) TimeframeChanges(context.Context, string) ([]TimeframeChange, error) {
	return nil, ErrNotImplemented
}

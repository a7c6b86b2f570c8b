// Package inventory tracks printing materials and every change to their
// stock levels. Stock only moves through ledger transactions: usage against
// a job, restocking from a supplier delivery, or a manual adjustment after
// an inventory count.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotImplemented    = errors.New("inventory repository: not implemented")
	ErrNotFound          = errors.New("material not found")
	ErrCodeExists        = errors.New("material code already in use")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInUse             = errors.New("material has usage history and cannot be deleted")
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

// Material is a stocked consumable such as vinyl, paper or ink.
type Material struct {
	ID              string         `json:"id"`
	Code            string         `json:"material_code"`
	Name            string         `json:"name"`
	Category        string         `json:"category"`
	Type            string         `json:"type"`
	UnitOfMeasure   string         `json:"unit_of_measure"`
	StockLevel      float64        `json:"stock_level"`
	MinThreshold    float64        `json:"min_threshold"`
	ReorderQuantity float64        `json:"reorder_quantity"`
	CostPerUnit     int64          `json:"cost_per_unit"` // cents
	Specifications  map[string]any `json:"specifications"`
	SupplierID      string         `json:"supplier_id"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// IsLowStock reports whether the material is at or below its reorder point.
func (m Material) IsLowStock() bool {
	return m.StockLevel <= m.MinThreshold
}

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TransactionUsage      TransactionType = "USAGE"
	TransactionRestock    TransactionType = "RESTOCK"
	TransactionAdjustment TransactionType = "ADJUSTMENT"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionUsage, TransactionRestock, TransactionAdjustment:
		return true
	}
	return false
}

// AdjustmentReason explains a manual stock correction.
type AdjustmentReason string

const (
	ReasonInventoryCount   AdjustmentReason = "INVENTORY_COUNT"
	ReasonDamage           AdjustmentReason = "DAMAGE"
	ReasonQualityIssue     AdjustmentReason = "QUALITY_ISSUE"
	ReasonSystemCorrection AdjustmentReason = "SYSTEM_CORRECTION"
	ReasonOther            AdjustmentReason = "OTHER"
)

// Valid reports whether r is an accepted adjustment reason.
func (r AdjustmentReason) Valid() bool {
	switch r {
	case ReasonInventoryCount, ReasonDamage, ReasonQualityIssue, ReasonSystemCorrection, ReasonOther:
		return true
	}
	return false
}

// Transaction is an immutable stock ledger entry. NewStock always equals
// PreviousStock plus the signed effect of Quantity for the entry type.
type Transaction struct {
	ID              string           `json:"id"`
	MaterialID      string           `json:"material_id"`
	Type            TransactionType  `json:"transaction_type"`
	Quantity        float64          `json:"quantity"`
	Wastage         float64          `json:"wastage"`
	PreviousStock   float64          `json:"previous_stock"`
	NewStock        float64          `json:"new_stock"`
	JobID           string           `json:"job_id,omitempty"`
	UserID          string           `json:"user_id,omitempty"`
	SupplierID      string           `json:"supplier_id,omitempty"`
	CostPerUnit     int64            `json:"cost_per_unit,omitempty"`
	Reason          AdjustmentReason `json:"adjustment_reason,omitempty"`
	ReferenceNumber string           `json:"reference_number,omitempty"`
	Notes           string           `json:"notes,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// Filter narrows material listings. Empty fields match everything.
type Filter struct {
	Category   string
	Type       string
	SupplierID string
	Search     string
}

// TransactionFilter narrows ledger queries. An empty MaterialID matches all
// materials.
type TransactionFilter struct {
	MaterialID string
	Type       TransactionType
	From       time.Time
	To         time.Time
}

// Mutation changes a locked material in place and returns the ledger entry
// describing the change. Returning an error aborts without side effects.
type Mutation func(m *Material) (Transaction, error)

// Repository abstracts material and ledger persistence.
type Repository interface {
	FindByID(ctx context.Context, id string) (Material, error)
	FindByCode(ctx context.Context, code string) (Material, error)
	Save(ctx context.Context, material Material) (Material, error)
	List(ctx context.Context, filter Filter) ([]Material, error)
	Delete(ctx context.Context, id string) error
	// Mutate applies fn to the material and stores the updated material and
	// the returned transaction atomically.
	Mutate(ctx context.Context, id string, fn Mutation) (Material, Transaction, error)
	Transactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error)
}

// NullRepository returns ErrNotImplemented for all operations.
type NullRepository struct{}

func (NullRepository) FindByID(context.Context, string) (Material, error) {
	return Material{}, ErrNotImplemented
}
func (NullRepository) FindByCode(context.Context, string) (Material, error) {
	return Material{}, ErrNotImplemented
}
func (NullRepository) Save(context.Context, Material) (Material, error) {
	return Material{}, ErrNotImplemented
}
func (NullRepository) List(context.Context, Filter) ([]Material, error) {
	return nil, ErrNotImplemented
}
func (NullRepository) Delete(context.Context, string) error { return ErrNotImplemented }
func (NullRepository) Mutate(context.Context, string, Mutation) (Material, Transaction, error) {
	return Material{}, Transaction{}, ErrNotImplemented
}
func (NullRepository) Transactions(context.Context, TransactionFilter) ([]Transaction, error) {
	return nil, ErrNotImplemented
}

package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/printworks/platform/internal/domain/suppliers"
)

// SupplierDirectory resolves the supplier a material is bought from.
type SupplierDirectory interface {
	Get(ctx context.Context, id string) (suppliers.Supplier, error)
}

// Service provides material catalogue and stock operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (Material, error)
	Get(ctx context.Context, id string) (Material, error)
	GetByCode(ctx context.Context, code string) (Material, error)
	List(ctx context.Context, filter Filter) ([]Material, error)
	Search(ctx context.Context, term, category, supplierID string) ([]Material, error)
	Update(ctx context.Context, id string, input UpdateInput) (Material, error)
	Delete(ctx context.Context, id string) error
	LowStock(ctx context.Context) ([]Material, error)

	RecordUsage(ctx context.Context, input UsageInput) (Material, Transaction, error)
	ReverseUsage(ctx context.Context, usage Transaction) (Material, Transaction, error)
	Restock(ctx context.Context, input RestockInput) (Material, Transaction, error)
	AdjustStock(ctx context.Context, input AdjustInput) (Material, Transaction, error)
	Transactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error)
	UsageHistory(ctx context.Context, materialID string, from, to time.Time) ([]Transaction, error)
}

// CreateInput describes a new material.
type CreateInput struct {
	Code            string         `json:"material_code"`
	Name            string         `json:"name"`
	Category        string         `json:"category"`
	Type            string         `json:"type"`
	UnitOfMeasure   string         `json:"unit_of_measure"`
	StockLevel      float64        `json:"stock_level"`
	MinThreshold    float64        `json:"min_threshold"`
	ReorderQuantity float64        `json:"reorder_quantity"`
	CostPerUnit     int64          `json:"cost_per_unit"`
	Specifications  map[string]any `json:"specifications"`
	SupplierID      string         `json:"supplier_id"`
}

// UpdateInput carries optional catalogue changes. Stock levels are not
// editable here; use Restock or AdjustStock.
type UpdateInput struct {
	Name            *string        `json:"name"`
	Category        *string        `json:"category"`
	Type            *string        `json:"type"`
	UnitOfMeasure   *string        `json:"unit_of_measure"`
	MinThreshold    *float64       `json:"min_threshold"`
	ReorderQuantity *float64       `json:"reorder_quantity"`
	CostPerUnit     *int64         `json:"cost_per_unit"`
	Specifications  map[string]any `json:"specifications"`
	SupplierID      *string        `json:"supplier_id"`
}

// UsageInput records consumption of a material by a job.
type UsageInput struct {
	MaterialID string  `json:"material_id"`
	JobID      string  `json:"job_id"`
	UserID     string  `json:"user_id"`
	Quantity   float64 `json:"quantity_used"`
	Wastage    float64 `json:"wastage"`
	Notes      string  `json:"notes"`
}

// RestockInput records a supplier delivery.
type RestockInput struct {
	MaterialID      string  `json:"material_id"`
	Quantity        float64 `json:"quantity"`
	UserID          string  `json:"user_id"`
	ReferenceNumber string  `json:"reference_number"`
	CostPerUnit     *int64  `json:"cost_per_unit"`
	SupplierID      string  `json:"supplier_id"`
	Notes           string  `json:"notes"`
}

// AdjustInput sets the stock level after a count or correction.
type AdjustInput struct {
	MaterialID      string           `json:"material_id"`
	NewStockLevel   float64          `json:"new_stock_level"`
	UserID          string           `json:"user_id"`
	Reason          AdjustmentReason `json:"adjustment_reason"`
	ReferenceNumber string           `json:"reference_number"`
	Notes           string           `json:"notes"`
}

// NewService builds an inventory service. A nil directory skips supplier
// existence checks.
func NewService(repo Repository, directory SupplierDirectory) Service {
	return &service{repo: repo, suppliers: directory}
}

type service struct {
	repo      Repository
	suppliers SupplierDirectory
}

func (s *service) Create(ctx context.Context, input CreateInput) (Material, error) {
	m := Material{
		Code:            strings.TrimSpace(input.Code),
		Name:            strings.TrimSpace(input.Name),
		Category:        strings.TrimSpace(input.Category),
		Type:            strings.TrimSpace(input.Type),
		UnitOfMeasure:   strings.TrimSpace(input.UnitOfMeasure),
		StockLevel:      input.StockLevel,
		MinThreshold:    input.MinThreshold,
		ReorderQuantity: input.ReorderQuantity,
		CostPerUnit:     input.CostPerUnit,
		Specifications:  input.Specifications,
		SupplierID:      strings.TrimSpace(input.SupplierID),
	}
	if m.Specifications == nil {
		m.Specifications = map[string]any{}
	}
	if err := validateMaterial(m); err != nil {
		return Material{}, err
	}
	if m.StockLevel < 0 {
		return Material{}, invalid("stock_level", "cannot be negative")
	}
	if err := s.checkSupplier(ctx, m.SupplierID); err != nil {
		return Material{}, err
	}

	if _, err := s.repo.FindByCode(ctx, m.Code); err == nil {
		return Material{}, ErrCodeExists
	} else if !errors.Is(err, ErrNotFound) {
		return Material{}, err
	}

	return s.repo.Save(ctx, m)
}

func (s *service) Get(ctx context.Context, id string) (Material, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *service) GetByCode(ctx context.Context, code string) (Material, error) {
	return s.repo.FindByCode(ctx, strings.TrimSpace(code))
}

func (s *service) List(ctx context.Context, filter Filter) ([]Material, error) {
	return s.repo.List(ctx, filter)
}

func (s *service) Search(ctx context.Context, term, category, supplierID string) ([]Material, error) {
	return s.repo.List(ctx, Filter{
		Search:     strings.TrimSpace(term),
		Category:   category,
		SupplierID: supplierID,
	})
}

func (s *service) Update(ctx context.Context, id string, input UpdateInput) (Material, error) {
	m, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Material{}, err
	}

	if input.Name != nil {
		m.Name = strings.TrimSpace(*input.Name)
	}
	if input.Category != nil {
		m.Category = strings.TrimSpace(*input.Category)
	}
	if input.Type != nil {
		m.Type = strings.TrimSpace(*input.Type)
	}
	if input.UnitOfMeasure != nil {
		m.UnitOfMeasure = strings.TrimSpace(*input.UnitOfMeasure)
	}
	if input.MinThreshold != nil {
		m.MinThreshold = *input.MinThreshold
	}
	if input.ReorderQuantity != nil {
		m.ReorderQuantity = *input.ReorderQuantity
	}
	if input.CostPerUnit != nil {
		m.CostPerUnit = *input.CostPerUnit
	}
	if input.Specifications != nil {
		m.Specifications = input.Specifications
	}
	if input.SupplierID != nil {
		m.SupplierID = strings.TrimSpace(*input.SupplierID)
		if err := s.checkSupplier(ctx, m.SupplierID); err != nil {
			return Material{}, err
		}
	}

	if err := validateMaterial(m); err != nil {
		return Material{}, err
	}
	return s.repo.Save(ctx, m)
}

// Delete removes a material that was never drawn for a job.
func (s *service) Delete(ctx context.Context, id string) error {
	used, err := s.repo.Transactions(ctx, TransactionFilter{MaterialID: id, Type: TransactionUsage})
	if err != nil {
		return err
	}
	if len(used) > 0 {
		return ErrInUse
	}
	return s.repo.Delete(ctx, id)
}

func (s *service) LowStock(ctx context.Context) ([]Material, error) {
	all, err := s.repo.List(ctx, Filter{})
	if err != nil {
		return nil, err
	}
	low := make([]Material, 0)
	for _, m := range all {
		if m.IsLowStock() {
			low = append(low, m)
		}
	}
	return low, nil
}

func (s *service) RecordUsage(ctx context.Context, input UsageInput) (Material, Transaction, error) {
	if strings.TrimSpace(input.JobID) == "" {
		return Material{}, Transaction{}, invalid("job_id", "is required")
	}
	if input.Quantity <= 0 {
		return Material{}, Transaction{}, invalid("quantity_used", "must be positive")
	}
	if input.Wastage < 0 {
		return Material{}, Transaction{}, invalid("wastage", "cannot be negative")
	}
	if len(input.Notes) > 255 {
		return Material{}, Transaction{}, invalid("notes", "must be at most 255 characters")
	}

	deduction := input.Quantity + input.Wastage
	return s.repo.Mutate(ctx, input.MaterialID, func(m *Material) (Transaction, error) {
		if m.StockLevel < deduction {
			return Transaction{}, fmt.Errorf("%w: available %.2f, required %.2f", ErrInsufficientStock, m.StockLevel, deduction)
		}
		previous := m.StockLevel
		m.StockLevel -= deduction
		return Transaction{
			Type:          TransactionUsage,
			Quantity:      input.Quantity,
			Wastage:       input.Wastage,
			PreviousStock: previous,
			NewStock:      m.StockLevel,
			JobID:         input.JobID,
			UserID:        input.UserID,
			CostPerUnit:   m.CostPerUnit,
			Notes:         input.Notes,
		}, nil
	})
}

// ReverseUsage puts back the stock drawn by a usage entry. The correction is
// its own SYSTEM_CORRECTION adjustment referencing the usage entry; the
// original entry is never modified.
func (s *service) ReverseUsage(ctx context.Context, usage Transaction) (Material, Transaction, error) {
	if usage.Type != TransactionUsage {
		return Material{}, Transaction{}, invalid("transaction_type", "only usage entries can be reversed")
	}
	restore := usage.Quantity + usage.Wastage
	return s.repo.Mutate(ctx, usage.MaterialID, func(m *Material) (Transaction, error) {
		previous := m.StockLevel
		m.StockLevel += restore
		return Transaction{
			Type:            TransactionAdjustment,
			Quantity:        restore,
			PreviousStock:   previous,
			NewStock:        m.StockLevel,
			JobID:           usage.JobID,
			UserID:          usage.UserID,
			Reason:          ReasonSystemCorrection,
			ReferenceNumber: usage.ID,
			Notes:           "reversal of usage not charged to job",
		}, nil
	})
}

func (s *service) Restock(ctx context.Context, input RestockInput) (Material, Transaction, error) {
	if input.Quantity <= 0 {
		return Material{}, Transaction{}, invalid("quantity", "must be positive")
	}
	ref := strings.TrimSpace(input.ReferenceNumber)
	if ref == "" || len(ref) > 50 {
		return Material{}, Transaction{}, invalid("reference_number", "is required and must be at most 50 characters")
	}
	if input.CostPerUnit != nil && *input.CostPerUnit < 0 {
		return Material{}, Transaction{}, invalid("cost_per_unit", "cannot be negative")
	}
	if input.SupplierID != "" {
		if err := s.checkSupplier(ctx, input.SupplierID); err != nil {
			return Material{}, Transaction{}, err
		}
	}

	return s.repo.Mutate(ctx, input.MaterialID, func(m *Material) (Transaction, error) {
		previous := m.StockLevel
		m.StockLevel += input.Quantity
		if input.CostPerUnit != nil {
			m.CostPerUnit = *input.CostPerUnit
		}
		supplierID := input.SupplierID
		if supplierID == "" {
			supplierID = m.SupplierID
		}
		return Transaction{
			Type:            TransactionRestock,
			Quantity:        input.Quantity,
			PreviousStock:   previous,
			NewStock:        m.StockLevel,
			UserID:          input.UserID,
			SupplierID:      supplierID,
			CostPerUnit:     m.CostPerUnit,
			ReferenceNumber: ref,
			Notes:           input.Notes,
		}, nil
	})
}

func (s *service) AdjustStock(ctx context.Context, input AdjustInput) (Material, Transaction, error) {
	if input.NewStockLevel < 0 {
		return Material{}, Transaction{}, invalid("new_stock_level", "cannot be negative")
	}
	if !input.Reason.Valid() {
		return Material{}, Transaction{}, invalid("adjustment_reason", "must be one of INVENTORY_COUNT, DAMAGE, QUALITY_ISSUE, SYSTEM_CORRECTION, OTHER")
	}
	notes := strings.TrimSpace(input.Notes)
	if notes == "" || len(notes) > 255 {
		return Material{}, Transaction{}, invalid("notes", "is required and must be at most 255 characters")
	}
	if len(input.ReferenceNumber) > 50 {
		return Material{}, Transaction{}, invalid("reference_number", "must be at most 50 characters")
	}

	return s.repo.Mutate(ctx, input.MaterialID, func(m *Material) (Transaction, error) {
		previous := m.StockLevel
		m.StockLevel = input.NewStockLevel
		return Transaction{
			Type:            TransactionAdjustment,
			Quantity:        input.NewStockLevel - previous,
			PreviousStock:   previous,
			NewStock:        input.NewStockLevel,
			UserID:          input.UserID,
			Reason:          input.Reason,
			ReferenceNumber: strings.TrimSpace(input.ReferenceNumber),
			Notes:           notes,
		}, nil
	})
}

func (s *service) Transactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, invalid("type", "must be one of USAGE, RESTOCK, ADJUSTMENT")
	}
	return s.repo.Transactions(ctx, filter)
}

func (s *service) UsageHistory(ctx context.Context, materialID string, from, to time.Time) ([]Transaction, error) {
	return s.repo.Transactions(ctx, TransactionFilter{
		MaterialID: materialID,
		Type:       TransactionUsage,
		From:       from,
		To:         to,
	})
}

func (s *service) checkSupplier(ctx context.Context, supplierID string) error {
	if s.suppliers == nil {
		return nil
	}
	if _, err := s.suppliers.Get(ctx, supplierID); err != nil {
		if errors.Is(err, suppliers.ErrNotFound) {
			return invalid("supplier_id", "unknown supplier")
		}
		return err
	}
	return nil
}

func validateMaterial(m Material) error {
	required := []struct {
		field string
		value string
		max   int
	}{
		{"material_code", m.Code, 50},
		{"name", m.Name, 100},
		{"category", m.Category, 50},
		{"type", m.Type, 50},
		{"unit_of_measure", m.UnitOfMeasure, 20},
		{"supplier_id", m.SupplierID, 64},
	}
	for _, r := range required {
		if r.value == "" {
			return invalid(r.field, "is required")
		}
		if len(r.value) > r.max {
			return invalid(r.field, fmt.Sprintf("must be at most %d characters", r.max))
		}
	}
	if m.CostPerUnit <= 0 {
		return invalid("cost_per_unit", "must be positive")
	}
	if m.MinThreshold < 0 {
		return invalid("min_threshold", "cannot be negative")
	}
	if m.ReorderQuantity < 0 {
		return invalid("reorder_quantity", "cannot be negative")
	}
	return nil
}

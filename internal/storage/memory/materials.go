package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/printworks/platform/internal/domain/inventory"
)

// MaterialRepository is an in-memory implementation of inventory.Repository.
// A single lock guards materials and the ledger so Mutate is atomic.
type MaterialRepository struct {
	mu           sync.RWMutex
	materials    map[string]inventory.Material
	transactions []inventory.Transaction
}

// NewMaterialRepository returns an initialized in-memory repository.
func NewMaterialRepository() *MaterialRepository {
	return &MaterialRepository{
		materials: make(map[string]inventory.Material),
	}
}

func (r *MaterialRepository) FindByID(_ context.Context, id string) (inventory.Material, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.materials[id]
	if !ok {
		return inventory.Material{}, inventory.ErrNotFound
	}
	return m, nil
}

func (r *MaterialRepository) FindByCode(_ context.Context, code string) (inventory.Material, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.materials {
		if m.Code == code {
			return m, nil
		}
	}
	return inventory.Material{}, inventory.ErrNotFound
}

// Save inserts or updates catalogue fields. The stock level of an existing
// material is kept; it only changes through Mutate.
func (r *MaterialRepository) Save(_ context.Context, material inventory.Material) (inventory.Material, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, other := range r.materials {
		if id != material.ID && other.Code == material.Code {
			return inventory.Material{}, inventory.ErrCodeExists
		}
	}

	now := time.Now().UTC()
	if existing, ok := r.materials[material.ID]; ok && material.ID != "" {
		material.CreatedAt = existing.CreatedAt
		material.StockLevel = existing.StockLevel
	} else {
		if material.ID == "" {
			material.ID = newID()
		}
		material.CreatedAt = now
	}
	material.UpdatedAt = now
	r.materials[material.ID] = material
	return material, nil
}

// List returns materials ordered by name.
func (r *MaterialRepository) List(_ context.Context, filter inventory.Filter) ([]inventory.Material, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	term := strings.ToLower(filter.Search)
	list := make([]inventory.Material, 0, len(r.materials))
	for _, m := range r.materials {
		if filter.Category != "" && m.Category != filter.Category {
			continue
		}
		if filter.Type != "" && m.Type != filter.Type {
			continue
		}
		if filter.SupplierID != "" && m.SupplierID != filter.SupplierID {
			continue
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(m.Name), term) &&
			!strings.Contains(strings.ToLower(m.Code), term) {
			continue
		}
		list = append(list, m)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Name == list[j].Name {
			return list[i].Code < list[j].Code
		}
		return list[i].Name < list[j].Name
	})
	return list, nil
}

func (r *MaterialRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.materials[id]; !ok {
		return inventory.ErrNotFound
	}
	delete(r.materials, id)
	return nil
}

// Mutate applies fn to a copy of the material under the write lock and
// commits both the material and the transaction only if fn succeeds.
func (r *MaterialRepository) Mutate(_ context.Context, id string, fn inventory.Mutation) (inventory.Material, inventory.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.materials[id]
	if !ok {
		return inventory.Material{}, inventory.Transaction{}, inventory.ErrNotFound
	}

	tx, err := fn(&m)
	if err != nil {
		return inventory.Material{}, inventory.Transaction{}, err
	}

	now := time.Now().UTC()
	m.UpdatedAt = now
	tx.ID = newID()
	tx.MaterialID = m.ID
	tx.CreatedAt = now

	r.materials[m.ID] = m
	r.transactions = append(r.transactions, tx)
	return m, tx, nil
}

// Transactions returns matching ledger entries newest first.
func (r *MaterialRepository) Transactions(_ context.Context, filter inventory.TransactionFilter) ([]inventory.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]inventory.Transaction, 0)
	for i := len(r.transactions) - 1; i >= 0; i-- {
		tx := r.transactions[i]
		if filter.MaterialID != "" && tx.MaterialID != filter.MaterialID {
			continue
		}
		if filter.Type != "" && tx.Type != filter.Type {
			continue
		}
		if !filter.From.IsZero() && tx.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && tx.CreatedAt.After(filter.To) {
			continue
		}
		list = append(list, tx)
	}
	return list, nil
}

package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/printworks/platform/internal/domain/suppliers"
)

// SupplierRepository is an in-memory implementation of suppliers.Repository.
type SupplierRepository struct {
	mu        sync.RWMutex
	suppliers map[string]suppliers.Supplier
	order     map[string]int
	seq       int
}

// NewSupplierRepository returns an initialized in-memory repository.
func NewSupplierRepository() *SupplierRepository {
	return &SupplierRepository{
		suppliers: make(map[string]suppliers.Supplier),
		order:     make(map[string]int),
	}
}

func (r *SupplierRepository) FindByID(_ context.Context, id string) (suppliers.Supplier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.suppliers[id]
	if !ok {
		return suppliers.Supplier{}, suppliers.ErrNotFound
	}
	return s, nil
}

func (r *SupplierRepository) FindByPhone(_ context.Context, phoneNumber string) (suppliers.Supplier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.suppliers {
		if s.PhoneNumber == phoneNumber {
			return s, nil
		}
	}
	return suppliers.Supplier{}, suppliers.ErrNotFound
}

func (r *SupplierRepository) Save(_ context.Context, supplier suppliers.Supplier) (suppliers.Supplier, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, other := range r.suppliers {
		if id != supplier.ID && other.PhoneNumber == supplier.PhoneNumber {
			return suppliers.Supplier{}, suppliers.ErrPhoneExists
		}
	}

	now := time.Now().UTC()
	if existing, ok := r.suppliers[supplier.ID]; ok && supplier.ID != "" {
		supplier.CreatedAt = existing.CreatedAt
	} else {
		if supplier.ID == "" {
			supplier.ID = newID()
		}
		supplier.CreatedAt = now
		r.seq++
		r.order[supplier.ID] = r.seq
	}
	supplier.UpdatedAt = now
	r.suppliers[supplier.ID] = supplier
	return supplier, nil
}

func (r *SupplierRepository) List(_ context.Context, offset, limit int) ([]suppliers.Supplier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]suppliers.Supplier, 0, len(r.suppliers))
	for _, s := range r.suppliers {
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool {
		return r.order[list[i].ID] < r.order[list[j].ID]
	})
	return paginate(list, offset, limit), nil
}

func (r *SupplierRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.suppliers[id]; !ok {
		return suppliers.ErrNotFound
	}
	delete(r.suppliers, id)
	delete(r.order, id)
	return nil
}

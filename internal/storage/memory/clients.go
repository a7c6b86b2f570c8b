package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/printworks/platform/internal/domain/clients"
)

// ClientRepository is an in-memory implementation of clients.Repository.
type ClientRepository struct {
	mu      sync.RWMutex
	clients map[string]clients.Client
	order   map[string]int
	seq     int
}

// NewClientRepository returns an initialized in-memory repository.
func NewClientRepository() *ClientRepository {
	return &ClientRepository{
		clients: make(map[string]clients.Client),
		order:   make(map[string]int),
	}
}

// FindByID returns a client by identifier.
func (r *ClientRepository) FindByID(_ context.Context, id string) (clients.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clients[id]
	if !ok {
		return clients.Client{}, clients.ErrNotFound
	}
	return c, nil
}

// FindByPhone returns the client registered under a normalised phone number.
func (r *ClientRepository) FindByPhone(_ context.Context, phoneNumber string) (clients.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.clients {
		if c.PhoneNumber == phoneNumber {
			return c, nil
		}
	}
	return clients.Client{}, clients.ErrNotFound
}

// Save inserts or updates a client record.
func (r *ClientRepository) Save(_ context.Context, client clients.Client) (clients.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, other := range r.clients {
		if id != client.ID && other.PhoneNumber == client.PhoneNumber {
			return clients.Client{}, clients.ErrPhoneExists
		}
	}

	now := time.Now().UTC()
	if existing, ok := r.clients[client.ID]; ok && client.ID != "" {
		client.CreatedAt = existing.CreatedAt
	} else {
		if client.ID == "" {
			client.ID = newID()
		}
		client.CreatedAt = now
		r.seq++
		r.order[client.ID] = r.seq
	}
	client.UpdatedAt = now
	r.clients[client.ID] = client
	return client, nil
}

// List returns clients in creation order with offset/limit pagination.
func (r *ClientRepository) List(_ context.Context, offset, limit int) ([]clients.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]clients.Client, 0, len(r.clients))
	for _, c := range r.clients {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool {
		return r.order[list[i].ID] < r.order[list[j].ID]
	})
	return paginate(list, offset, limit), nil
}

// Delete removes a client.
func (r *ClientRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[id]; !ok {
		return clients.ErrNotFound
	}
	delete(r.clients, id)
	delete(r.order, id)
	return nil
}

package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/printworks/platform/internal/domain/users"
)

// UserRepository implements users.Repository in-memory.
type UserRepository struct {
	mu    sync.RWMutex
	store map[string]users.User
}

// NewUserRepository constructs repository.
func NewUserRepository() *UserRepository {
	return &UserRepository{store: make(map[string]users.User)}
}

func (r *UserRepository) FindByID(_ context.Context, id string) (users.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.store[id]
	if !ok {
		return users.User{}, users.ErrNotFound
	}
	return user, nil
}

func (r *UserRepository) FindByEmail(_ context.Context, email string) (users.User, error) {
	return r.findBy(func(u users.User) bool { return strings.EqualFold(u.Email, email) })
}

func (r *UserRepository) FindByUsername(_ context.Context, username string) (users.User, error) {
	return r.findBy(func(u users.User) bool { return u.Username == username })
}

func (r *UserRepository) findBy(match func(users.User) bool) (users.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.store {
		if match(u) {
			return u, nil
		}
	}
	return users.User{}, users.ErrNotFound
}

func (r *UserRepository) Save(_ context.Context, user users.User) (users.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, other := range r.store {
		if id == user.ID {
			continue
		}
		if strings.EqualFold(other.Email, user.Email) {
			return users.User{}, users.ErrEmailExists
		}
		if other.Username == user.Username {
			return users.User{}, users.ErrUsernameExists
		}
	}

	now := time.Now().UTC()
	if existing, ok := r.store[user.ID]; ok && user.ID != "" {
		user.CreatedAt = existing.CreatedAt
	} else {
		if user.ID == "" {
			user.ID = newID()
		}
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	r.store[user.ID] = user
	return user, nil
}

// List returns users ordered by username.
func (r *UserRepository) List(_ context.Context, offset, limit int) ([]users.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]users.User, 0, len(r.store))
	for _, u := range r.store {
		list = append(list, u)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Username < list[j].Username })
	return paginate(list, offset, limit), nil
}

package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/printworks/platform/internal/domain/machines"
)

// MachineRepository is an in-memory implementation of machines.Repository.
type MachineRepository struct {
	mu       sync.RWMutex
	machines map[string]machines.Machine
	readings []machines.Reading
}

// NewMachineRepository returns an initialized in-memory repository.
func NewMachineRepository() *MachineRepository {
	return &MachineRepository{machines: make(map[string]machines.Machine)}
}

func (r *MachineRepository) FindMachine(_ context.Context, id string) (machines.Machine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.machines[id]
	if !ok {
		return machines.Machine{}, machines.ErrNotFound
	}
	return m, nil
}

func (r *MachineRepository) FindMachineBySerial(_ context.Context, serial string) (machines.Machine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.machines {
		if m.SerialNumber == serial {
			return m, nil
		}
	}
	return machines.Machine{}, machines.ErrNotFound
}

func (r *MachineRepository) SaveMachine(_ context.Context, machine machines.Machine) (machines.Machine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, other := range r.machines {
		if id != machine.ID && other.SerialNumber == machine.SerialNumber {
			return machines.Machine{}, machines.ErrSerialExists
		}
	}

	now := time.Now().UTC()
	if existing, ok := r.machines[machine.ID]; ok && machine.ID != "" {
		machine.CreatedAt = existing.CreatedAt
	} else {
		if machine.ID == "" {
			machine.ID = newID()
		}
		machine.CreatedAt = now
	}
	machine.UpdatedAt = now
	r.machines[machine.ID] = machine
	return machine, nil
}

// ListMachines returns machines ordered by name.
func (r *MachineRepository) ListMachines(_ context.Context, status machines.Status) ([]machines.Machine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]machines.Machine, 0, len(r.machines))
	for _, m := range r.machines {
		if status != "" && m.Status != status {
			continue
		}
		list = append(list, m)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list, nil
}

func (r *MachineRepository) CreateReading(_ context.Context, reading machines.Reading) (machines.Reading, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reading.ID = newID()
	reading.CreatedAt = time.Now().UTC()
	r.readings = append(r.readings, reading)
	return reading, nil
}

// newestFirst walks readings in reverse insertion order.
func (r *MachineRepository) newestFirst(keep func(machines.Reading) bool) []machines.Reading {
	list := make([]machines.Reading, 0)
	for i := len(r.readings) - 1; i >= 0; i-- {
		if keep(r.readings[i]) {
			list = append(list, r.readings[i])
		}
	}
	return list
}

func (r *MachineRepository) ReadingsByJob(_ context.Context, jobID string) ([]machines.Reading, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.newestFirst(func(rd machines.Reading) bool { return rd.JobID == jobID }), nil
}

func (r *MachineRepository) ReadingsByMachine(_ context.Context, machineID string, from, to time.Time) ([]machines.Reading, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.newestFirst(func(rd machines.Reading) bool {
		if rd.MachineID != machineID {
			return false
		}
		if !from.IsZero() && rd.CreatedAt.Before(from) {
			return false
		}
		return to.IsZero() || !rd.CreatedAt.After(to)
	}), nil
}

func (r *MachineRepository) ListReadings(_ context.Context, offset, limit int) ([]machines.Reading, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.newestFirst(func(machines.Reading) bool { return true })
	return paginate(all, offset, limit), len(all), nil
}

func (r *MachineRepository) DeleteReading(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, rd := range r.readings {
		if rd.ID == id {
			r.readings = append(r.readings[:i], r.readings[i+1:]...)
			return nil
		}
	}
	return machines.ErrReadingMissing
}

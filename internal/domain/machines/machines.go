// Package machines tracks production equipment and the meter readings
// operators log against jobs. A reading that names a material also draws
// the metered length, plus a wastage margin, from inventory.
package machines

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotImplemented = errors.New("machines repository: not implemented")
	ErrNotFound       = errors.New("machine not found")
	ErrReadingMissing = errors.New("machine reading not found")
	ErrSerialExists   = errors.New("machine serial number already in use")
	ErrInvalidMeter   = errors.New("end meter must not be below start meter")
	ErrRetired        = errors.New("machine is retired")
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type Status string

const (
	StatusActive      Status = "active"
	StatusMaintenance Status = "maintenance"
	StatusRetired     Status = "retired"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusMaintenance, StatusRetired:
		return true
	}
	return false
}

// Machine is a printer, cutter or other metered device.
type Machine struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Model        string    `json:"model"`
	SerialNumber string    `json:"serial_number"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Reading is a start/end meter pair logged for a job.
type Reading struct {
	ID            string    `json:"id"`
	MachineID     string    `json:"machine_id"`
	JobID         string    `json:"job_id"`
	MaterialID    string    `json:"material_id,omitempty"`
	StartMeter    float64   `json:"start_meter"`
	EndMeter      float64   `json:"end_meter"`
	MaterialUsage float64   `json:"material_usage"`
	OperatorID    string    `json:"operator_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func (r Reading) MeterDifference() float64 {
	return r.EndMeter - r.StartMeter
}

// CalculateMaterialUsage converts a meter span into material consumed,
// including the wastage margin.
func CalculateMaterialUsage(start, end, margin float64) float64 {
	return (end - start) * (1 + margin)
}

// Repository abstracts machine and reading persistence.
type Repository interface {
	FindMachine(ctx context.Context, id string) (Machine, error)
	FindMachineBySerial(ctx context.Context, serial string) (Machine, error)
	SaveMachine(ctx context.Context, machine Machine) (Machine, error)
	ListMachines(ctx context.Context, status Status) ([]Machine, error)

	CreateReading(ctx context.Context, reading Reading) (Reading, error)
	ReadingsByJob(ctx context.Context, jobID string) ([]Reading, error)
	// ReadingsByMachine returns readings newest first. Zero times leave the
	// range open.
	ReadingsByMachine(ctx context.Context, machineID string, from, to time.Time) ([]Reading, error)
	ListReadings(ctx context.Context, offset, limit int) ([]Reading, int, error)
	DeleteReading(ctx context.Context, id string) error
}

// NullRepository returns ErrNotImplemented for all operations.
type NullRepository struct{}

func (NullRepository) FindMachine(context.Context, string) (Machine, error) {
	return Machine{}, ErrNotImplemented
}
func (NullRepository) FindMachineBySerial(context.Context, string) (Machine, error) {
	return Machine{}, ErrNotImplemented
}
func (NullRepository) SaveMachine(context.Context, Machine) (Machine, error) {
	return Machine{}, ErrNotImplemented
}
func (NullRepository) ListMachines(context.Context, Status) ([]Machine, error) {
	return nil, ErrNotImplemented
}
func (NullRepository) CreateReading(context.Context, Reading) (Reading, error) {
	return Reading{}, ErrNotImplemented
}
func (NullRepository) ReadingsByJob(context.Context, string) ([]Reading, error) {
	return nil, ErrNotImplemented
}
func (NullRepository) ReadingsByMachine(context.Context, string, time.Time, time.Time) ([]Reading, error) {
	return nil, ErrNotImplemented
}
func (NullRepository) ListReadings(context.Context, int, int) ([]Reading, int, error) {
	return nil, 0, ErrNotImplemented
}
func (NullRepository) DeleteReading(context.Context, string) error { return ErrNotImplemented }

package machines

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/printworks/platform/internal/domain/jobs"
)

// JobRecorder is the part of the job service a reading needs.
type JobRecorder interface {
	Get(ctx context.Context, id string) (jobs.Job, error)
	AddMeteredUsage(ctx context.Context, id string, input jobs.MaterialUsageInput) (jobs.Job, jobs.MaterialUsage, error)
}

type Service interface {
	CreateMachine(ctx context.Context, input MachineInput) (Machine, error)
	GetMachine(ctx context.Context, id string) (Machine, error)
	UpdateMachine(ctx context.Context, id string, input MachineUpdate) (Machine, error)
	ListMachines(ctx context.Context, status Status) ([]Machine, error)

	LogReading(ctx context.Context, input ReadingInput) (Reading, error)
	ReadingsForJob(ctx context.Context, jobID string) ([]Reading, error)
	ReadingsForMachine(ctx context.Context, machineID string, from, to time.Time) (MachineReadings, error)
	ListReadings(ctx context.Context, page, perPage int) (ReadingPage, error)
	DeleteReading(ctx context.Context, id string) error
}

type MachineInput struct {
	Name         string `json:"name"`
	Model        string `json:"model"`
	SerialNumber string `json:"serial_number"`
	Status       Status `json:"status"`
}

type MachineUpdate struct {
	Name   *string `json:"name"`
	Model  *string `json:"model"`
	Status *Status `json:"status"`
}

type ReadingInput struct {
	MachineID  string  `json:"machine_id"`
	JobID      string  `json:"job_id"`
	MaterialID string  `json:"material_id"`
	StartMeter float64 `json:"start_meter"`
	EndMeter   float64 `json:"end_meter"`
	OperatorID string  `json:"operator_id"`
}

// MachineReadings groups a machine's readings with the total metered span.
type MachineReadings struct {
	Readings   []Reading `json:"readings"`
	TotalUsage float64   `json:"total_usage"`
}

type ReadingPage struct {
	Readings []Reading `json:"readings"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	PerPage  int       `json:"per_page"`
}

// NewService builds the machine service. margin is the wastage fraction
// added to metered material usage.
func NewService(repo Repository, recorder JobRecorder, margin float64) Service {
	return &service{repo: repo, jobs: recorder, margin: margin}
}

type service struct {
	repo   Repository
	jobs   JobRecorder
	margin float64
}

func (s *service) CreateMachine(ctx context.Context, input MachineInput) (Machine, error) {
	m := Machine{
		Name:         strings.TrimSpace(input.Name),
		Model:        strings.TrimSpace(input.Model),
		SerialNumber: strings.TrimSpace(input.SerialNumber),
		Status:       input.Status,
	}
	if m.Status == "" {
		m.Status = StatusActive
	}
	if err := validateMachine(m); err != nil {
		return Machine{}, err
	}

	if _, err := s.repo.FindMachineBySerial(ctx, m.SerialNumber); err == nil {
		return Machine{}, ErrSerialExists
	} else if !errors.Is(err, ErrNotFound) {
		return Machine{}, err
	}
	return s.repo.SaveMachine(ctx, m)
}

func (s *service) GetMachine(ctx context.Context, id string) (Machine, error) {
	return s.repo.FindMachine(ctx, id)
}

func (s *service) UpdateMachine(ctx context.Context, id string, input MachineUpdate) (Machine, error) {
	m, err := s.repo.FindMachine(ctx, id)
	if err != nil {
		return Machine{}, err
	}
	if input.Name != nil {
		m.Name = strings.TrimSpace(*input.Name)
	}
	if input.Model != nil {
		m.Model = strings.TrimSpace(*input.Model)
	}
	if input.Status != nil {
		m.Status = *input.Status
	}
	if err := validateMachine(m); err != nil {
		return Machine{}, err
	}
	return s.repo.SaveMachine(ctx, m)
}

func (s *service) ListMachines(ctx context.Context, status Status) ([]Machine, error) {
	if status != "" && !status.Valid() {
		return nil, &ValidationError{Field: "status", Message: "unknown status"}
	}
	return s.repo.ListMachines(ctx, status)
}

func validateMachine(m Machine) error {
	if m.Name == "" || len(m.Name) > 100 {
		return &ValidationError{Field: "name", Message: "is required and must be at most 100 characters"}
	}
	if len(m.Model) > 100 {
		return &ValidationError{Field: "model", Message: "must be at most 100 characters"}
	}
	if m.SerialNumber == "" || len(m.SerialNumber) > 100 {
		return &ValidationError{Field: "serial_number", Message: "is required and must be at most 100 characters"}
	}
	if !m.Status.Valid() {
		return &ValidationError{Field: "status", Message: "must be active, maintenance or retired"}
	}
	return nil
}

// LogReading stores a meter reading. When a material is named the computed
// usage is charged to the job first, so a stock shortfall rejects the
// reading as a whole.
func (s *service) LogReading(ctx context.Context, input ReadingInput) (Reading, error) {
	if input.StartMeter < 0 {
		return Reading{}, &ValidationError{Field: "start_meter", Message: "cannot be negative"}
	}
	if input.EndMeter < input.StartMeter {
		return Reading{}, ErrInvalidMeter
	}

	machine, err := s.repo.FindMachine(ctx, input.MachineID)
	if err != nil {
		return Reading{}, err
	}
	if machine.Status == StatusRetired {
		return Reading{}, ErrRetired
	}
	if _, err := s.jobs.Get(ctx, input.JobID); err != nil {
		return Reading{}, err
	}

	reading := Reading{
		MachineID:  machine.ID,
		JobID:      input.JobID,
		MaterialID: strings.TrimSpace(input.MaterialID),
		StartMeter: input.StartMeter,
		EndMeter:   input.EndMeter,
		OperatorID: input.OperatorID,
	}
	if reading.MaterialID != "" {
		reading.MaterialUsage = CalculateMaterialUsage(input.StartMeter, input.EndMeter, s.margin)
		if reading.MaterialUsage > 0 {
			_, _, err := s.jobs.AddMeteredUsage(ctx, input.JobID, jobs.MaterialUsageInput{
				MaterialID: reading.MaterialID,
				Quantity:   reading.MaterialUsage,
				UserID:     input.OperatorID,
			})
			if err != nil {
				return Reading{}, err
			}
		}
	}

	return s.repo.CreateReading(ctx, reading)
}

func (s *service) ReadingsForJob(ctx context.Context, jobID string) ([]Reading, error) {
	return s.repo.ReadingsByJob(ctx, jobID)
}

func (s *service) ReadingsForMachine(ctx context.Context, machineID string, from, to time.Time) (MachineReadings, error) {
	if _, err := s.repo.FindMachine(ctx, machineID); err != nil {
		return MachineReadings{}, err
	}
	readings, err := s.repo.ReadingsByMachine(ctx, machineID, from, to)
	if err != nil {
		return MachineReadings{}, err
	}
	out := MachineReadings{Readings: readings}
	for _, r := range readings {
		out.TotalUsage += r.MeterDifference()
	}
	return out, nil
}

func (s *service) ListReadings(ctx context.Context, page, perPage int) (ReadingPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	readings, total, err := s.repo.ListReadings(ctx, (page-1)*perPage, perPage)
	if err != nil {
		return ReadingPage{}, err
	}
	return ReadingPage{Readings: readings, Total: total, Page: page, PerPage: perPage}, nil
}

func (s *service) DeleteReading(ctx context.Context, id string) error {
	return s.repo.DeleteReading(ctx, id)
}

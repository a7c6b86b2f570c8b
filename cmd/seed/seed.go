package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/printworks/platform/internal/domain"
	"github.com/printworks/platform/internal/domain/clients"
	"github.com/printworks/platform/internal/domain/inventory"
	"github.com/printworks/platform/internal/domain/jobs"
	"github.com/printworks/platform/internal/domain/machines"
	"github.com/printworks/platform/internal/domain/suppliers"
	"github.com/printworks/platform/internal/domain/users"
)

type fixture struct {
	Users     []userFixture     `yaml:"users"`
	Suppliers []partyFixture    `yaml:"suppliers"`
	Clients   []partyFixture    `yaml:"clients"`
	Materials []materialFixture `yaml:"materials"`
	Machines  []machineFixture  `yaml:"machines"`
	Jobs      []jobFixture      `yaml:"jobs"`
}

type userFixture struct {
	Username  string `yaml:"username"`
	Email     string `yaml:"email"`
	Password  string `yaml:"password"`
	FirstName string `yaml:"first_name"`
	LastName  string `yaml:"last_name"`
	Phone     string `yaml:"phone"`
	Role      string `yaml:"role"`
}

type partyFixture struct {
	Name        string         `yaml:"name"`
	PhoneNumber string         `yaml:"phone_number"`
	TaxID       string         `yaml:"tax_id"`
	ContactInfo map[string]any `yaml:"contact_info"`
}

type materialFixture struct {
	Code            string         `yaml:"material_code"`
	Name            string         `yaml:"name"`
	Category        string         `yaml:"category"`
	Type            string         `yaml:"type"`
	UnitOfMeasure   string         `yaml:"unit_of_measure"`
	StockLevel      float64        `yaml:"stock_level"`
	MinThreshold    float64        `yaml:"min_threshold"`
	ReorderQuantity float64        `yaml:"reorder_quantity"`
	CostPerUnit     int64          `yaml:"cost_per_unit"`
	SupplierPhone   string         `yaml:"supplier_phone"`
	Specifications  map[string]any `yaml:"specifications"`
}

type machineFixture struct {
	Name         string `yaml:"name"`
	Model        string `yaml:"model"`
	SerialNumber string `yaml:"serial_number"`
}

type jobFixture struct {
	ClientPhone       string           `yaml:"client_phone"`
	Description       string           `yaml:"description"`
	Type              jobs.Type        `yaml:"job_type"`
	TotalUnits        int              `yaml:"total_units"`
	PricingPerUnit    int64            `yaml:"pricing_per_unit"`
	PricingInput      int64            `yaml:"pricing_input"`
	VendorName        string           `yaml:"vendor_name"`
	VendorCostPerUnit int64            `yaml:"vendor_cost_per_unit"`
	Notes             string           `yaml:"notes"`
	Usage             []usageFixture   `yaml:"usage"`
	Readings          []readingFixture `yaml:"readings"`
}

type usageFixture struct {
	MaterialCode string  `yaml:"material_code"`
	Quantity     float64 `yaml:"quantity"`
	Wastage      float64 `yaml:"wastage"`
}

type readingFixture struct {
	MachineSerial string  `yaml:"machine_serial"`
	MaterialCode  string  `yaml:"material_code"`
	StartMeter    float64 `yaml:"start_meter"`
	EndMeter      float64 `yaml:"end_meter"`
}

func parseFixture(data []byte) (fixture, error) {
	var fx fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return fixture{}, fmt.Errorf("parse fixture: %w", err)
	}
	return fx, nil
}

// summary counts the records created by a seed run. Records that already
// existed are not counted.
type summary struct {
	Users     int
	Suppliers int
	Clients   int
	Materials int
	Machines  int
	Jobs      int
}

// seeder applies a fixture through the domain services so every record goes
// through the same validation as the API. Re-running is safe: existing
// users, parties, materials, machines and jobs are reused.
type seeder struct {
	svc    domain.Container
	logger *slog.Logger

	adminID   string
	suppliers map[string]string
	clients   map[string]string
	materials map[string]string
	machines  map[string]string
	sum       summary
}

func newSeeder(svc domain.Container, logger *slog.Logger) *seeder {
	return &seeder{
		svc:       svc,
		logger:    logger,
		suppliers: map[string]string{},
		clients:   map[string]string{},
		materials: map[string]string{},
		machines:  map[string]string{},
	}
}

func (s *seeder) apply(ctx context.Context, fx fixture) (summary, error) {
	steps := []func(context.Context, fixture) error{
		s.seedUsers,
		s.seedSuppliers,
		s.seedClients,
		s.seedMaterials,
		s.seedMachines,
		s.seedJobs,
	}
	for _, step := range steps {
		if err := step(ctx, fx); err != nil {
			return s.sum, err
		}
	}
	return s.sum, nil
}

func (s *seeder) seedUsers(ctx context.Context, fx fixture) error {
	for _, in := range fx.Users {
		u, err := s.svc.Users.Register(ctx, users.RegisterInput{
			Username:  in.Username,
			Email:     in.Email,
			Password:  in.Password,
			FirstName: in.FirstName,
			LastName:  in.LastName,
			Phone:     in.Phone,
			Role:      in.Role,
		})
		switch {
		case errors.Is(err, users.ErrEmailExists), errors.Is(err, users.ErrUsernameExists):
			s.logger.Info("user already exists", "email", in.Email)
			continue
		case err != nil:
			return fmt.Errorf("seed user %s: %w", in.Email, err)
		}
		if u.Role == users.RoleAdmin && s.adminID == "" {
			s.adminID = u.ID
		}
		s.sum.Users++
		s.logger.Info("seeded user", "user_id", u.ID, "role", u.Role)
	}
	return nil
}

func (s *seeder) seedSuppliers(ctx context.Context, fx fixture) error {
	for _, in := range fx.Suppliers {
		sup, created, err := s.svc.Suppliers.Create(ctx, suppliers.CreateInput{
			Name:        in.Name,
			PhoneNumber: in.PhoneNumber,
			ContactInfo: in.ContactInfo,
			TaxID:       in.TaxID,
		})
		if err != nil {
			return fmt.Errorf("seed supplier %s: %w", in.Name, err)
		}
		if created {
			s.sum.Suppliers++
		}
		s.suppliers[in.PhoneNumber] = sup.ID
	}
	return nil
}

func (s *seeder) seedClients(ctx context.Context, fx fixture) error {
	for _, in := range fx.Clients {
		c, err := s.svc.Clients.Create(ctx, clients.CreateInput{
			Name:        in.Name,
			PhoneNumber: in.PhoneNumber,
			ContactInfo: in.ContactInfo,
			TaxID:       in.TaxID,
		})
		if errors.Is(err, clients.ErrPhoneExists) {
			c, err = s.svc.Clients.FindOrCreate(ctx, in.Name, in.PhoneNumber)
		} else if err == nil {
			s.sum.Clients++
		}
		if err != nil {
			return fmt.Errorf("seed client %s: %w", in.Name, err)
		}
		s.clients[in.PhoneNumber] = c.ID
	}
	return nil
}

func (s *seeder) seedMaterials(ctx context.Context, fx fixture) error {
	for _, in := range fx.Materials {
		if existing, err := s.svc.Inventory.GetByCode(ctx, in.Code); err == nil {
			s.materials[in.Code] = existing.ID
			continue
		} else if !errors.Is(err, inventory.ErrNotFound) {
			return fmt.Errorf("lookup material %s: %w", in.Code, err)
		}

		supplierID := ""
		if in.SupplierPhone != "" {
			id, ok := s.suppliers[in.SupplierPhone]
			if !ok {
				return fmt.Errorf("material %s references unknown supplier %q", in.Code, in.SupplierPhone)
			}
			supplierID = id
		}

		m, err := s.svc.Inventory.Create(ctx, inventory.CreateInput{
			Code:            in.Code,
			Name:            in.Name,
			Category:        in.Category,
			Type:            in.Type,
			UnitOfMeasure:   in.UnitOfMeasure,
			StockLevel:      in.StockLevel,
			MinThreshold:    in.MinThreshold,
			ReorderQuantity: in.ReorderQuantity,
			CostPerUnit:     in.CostPerUnit,
			Specifications:  in.Specifications,
			SupplierID:      supplierID,
		})
		if err != nil {
			return fmt.Errorf("seed material %s: %w", in.Code, err)
		}
		s.materials[in.Code] = m.ID
		s.sum.Materials++
		if m.IsLowStock() {
			s.logger.Warn("seeded material starts below threshold", "material_code", m.Code, "stock_level", m.StockLevel)
		}
	}
	return nil
}

func (s *seeder) seedMachines(ctx context.Context, fx fixture) error {
	existing, err := s.svc.Machines.ListMachines(ctx, "")
	if err != nil {
		return fmt.Errorf("list machines: %w", err)
	}
	for _, m := range existing {
		s.machines[m.SerialNumber] = m.ID
	}

	for _, in := range fx.Machines {
		if _, ok := s.machines[in.SerialNumber]; ok {
			continue
		}
		m, err := s.svc.Machines.CreateMachine(ctx, machines.MachineInput{
			Name:         in.Name,
			Model:        in.Model,
			SerialNumber: in.SerialNumber,
		})
		if err != nil {
			return fmt.Errorf("seed machine %s: %w", in.SerialNumber, err)
		}
		s.machines[in.SerialNumber] = m.ID
		s.sum.Machines++
	}
	return nil
}

func (s *seeder) seedJobs(ctx context.Context, fx fixture) error {
	for _, in := range fx.Jobs {
		clientID, ok := s.clients[in.ClientPhone]
		if !ok {
			return fmt.Errorf("job %q references unknown client %q", in.Description, in.ClientPhone)
		}
		exists, err := s.jobExists(ctx, clientID, in.Description)
		if err != nil {
			return err
		}
		if exists {
			continue
		}

		job, err := s.svc.Jobs.Create(ctx, jobs.CreateInput{
			ClientID:          clientID,
			Description:       in.Description,
			Type:              in.Type,
			TotalUnits:        in.TotalUnits,
			PricingPerUnit:    in.PricingPerUnit,
			PricingInput:      in.PricingInput,
			VendorName:        in.VendorName,
			VendorCostPerUnit: in.VendorCostPerUnit,
			Notes:             in.Notes,
		})
		if err != nil {
			return fmt.Errorf("seed job %q: %w", in.Description, err)
		}
		s.sum.Jobs++

		for _, u := range in.Usage {
			materialID, ok := s.materials[u.MaterialCode]
			if !ok {
				return fmt.Errorf("job %q uses unknown material %q", in.Description, u.MaterialCode)
			}
			if _, _, err := s.svc.Jobs.AddMaterialUsage(ctx, job.ID, jobs.MaterialUsageInput{
				MaterialID: materialID,
				Quantity:   u.Quantity,
				Wastage:    u.Wastage,
				UserID:     s.adminID,
			}); err != nil {
				return fmt.Errorf("seed usage for job %q: %w", in.Description, err)
			}
		}

		for _, r := range in.Readings {
			machineID, ok := s.machines[r.MachineSerial]
			if !ok {
				return fmt.Errorf("job %q reads unknown machine %q", in.Description, r.MachineSerial)
			}
			if _, err := s.svc.Machines.LogReading(ctx, machines.ReadingInput{
				MachineID:  machineID,
				JobID:      job.ID,
				MaterialID: s.materials[r.MaterialCode],
				StartMeter: r.StartMeter,
				EndMeter:   r.EndMeter,
				OperatorID: s.adminID,
			}); err != nil {
				return fmt.Errorf("seed reading for job %q: %w", in.Description, err)
			}
		}
		s.logger.Info("seeded job", "job_id", job.ID, "client_id", clientID)
	}
	return nil
}

func (s *seeder) jobExists(ctx context.Context, clientID, description string) (bool, error) {
	list, err := s.svc.Jobs.List(ctx, jobs.Filter{ClientID: clientID}, 0, 0)
	if err != nil {
		return false, fmt.Errorf("list jobs for client %s: %w", clientID, err)
	}
	for _, j := range list {
		if j.Description == description {
			return true, nil
		}
	}
	return false, nil
}

package suppliers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/printworks/platform/internal/phone"
)

var (
	ErrNotImplemented = errors.New("suppliers repository: not implemented")
	ErrNotFound       = errors.New("supplier not found")
	ErrPhoneExists    = errors.New("supplier phone number already in use")
	ErrInUse          = errors.New("supplier has materials and cannot be deleted")
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Supplier is a vendor of materials or outsourced production.
type Supplier struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	PhoneNumber string         `json:"phone_number"`
	ContactInfo map[string]any `json:"contact_info"`
	TaxID       string         `json:"tax_id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Repository abstracts supplier persistence.
type Repository interface {
	FindByID(ctx context.Context, id string) (Supplier, error)
	FindByPhone(ctx context.Context, phoneNumber string) (Supplier, error)
	Save(ctx context.Context, supplier Supplier) (Supplier, error)
	List(ctx context.Context, offset, limit int) ([]Supplier, error)
	Delete(ctx context.Context, id string) error
}

// NullRepository returns ErrNotImplemented for all operations.
type NullRepository struct{}

func (NullRepository) FindByID(context.Context, string) (Supplier, error) {
	return Supplier{}, ErrNotImplemented
}

func (NullRepository) FindByPhone(context.Context, string) (Supplier, error) {
	return Supplier{}, ErrNotImplemented
}

func (NullRepository) Save(context.Context, Supplier) (Supplier, error) {
	return Supplier{}, ErrNotImplemented
}

func (NullRepository) List(context.Context, int, int) ([]Supplier, error) {
	return nil, ErrNotImplemented
}

func (NullRepository) Delete(context.Context, string) error { return ErrNotImplemented }

// Service provides supplier operations.
type Service interface {
	Get(ctx context.Context, id string) (Supplier, error)
	GetByPhone(ctx context.Context, phoneNumber string) (Supplier, error)
	// Create returns the existing supplier, and created=false, when the
	// normalised phone number is already registered.
	Create(ctx context.Context, input CreateInput) (supplier Supplier, created bool, err error)
	Update(ctx context.Context, id string, input UpdateInput) (Supplier, error)
	List(ctx context.Context, offset, limit int) ([]Supplier, error)
	Delete(ctx context.Context, id string) error
}

// CreateInput is used to register a supplier.
type CreateInput struct {
	Name        string         `json:"name"`
	PhoneNumber string         `json:"phone_number"`
	ContactInfo map[string]any `json:"contact_info"`
	TaxID       string         `json:"tax_id"`
}

// UpdateInput carries optional supplier changes.
type UpdateInput struct {
	Name        *string        `json:"name"`
	PhoneNumber *string        `json:"phone_number"`
	ContactInfo map[string]any `json:"contact_info"`
	TaxID       *string        `json:"tax_id"`
}

// NewService builds a supplier service.
func NewService(repo Repository) Service {
	return &service{repo: repo}
}

type service struct {
	repo Repository
}

func (s *service) Get(ctx context.Context, id string) (Supplier, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *service) GetByPhone(ctx context.Context, phoneNumber string) (Supplier, error) {
	number, err := normalizePhone(phoneNumber)
	if err != nil {
		return Supplier{}, err
	}
	return s.repo.FindByPhone(ctx, number)
}

func (s *service) Create(ctx context.Context, input CreateInput) (Supplier, bool, error) {
	name := strings.TrimSpace(input.Name)
	if err := validateName(name); err != nil {
		return Supplier{}, false, err
	}
	number, err := normalizePhone(input.PhoneNumber)
	if err != nil {
		return Supplier{}, false, err
	}
	if len(input.TaxID) > 50 {
		return Supplier{}, false, &ValidationError{Field: "tax_id", Message: "must be at most 50 characters"}
	}

	existing, err := s.repo.FindByPhone(ctx, number)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Supplier{}, false, err
	}

	info := input.ContactInfo
	if info == nil {
		info = map[string]any{}
	}
	saved, err := s.repo.Save(ctx, Supplier{
		Name:        name,
		PhoneNumber: number,
		ContactInfo: info,
		TaxID:       strings.TrimSpace(input.TaxID),
	})
	if err != nil {
		return Supplier{}, false, err
	}
	return saved, true, nil
}

func (s *service) Update(ctx context.Context, id string, input UpdateInput) (Supplier, error) {
	supplier, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Supplier{}, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if err := validateName(name); err != nil {
			return Supplier{}, err
		}
		supplier.Name = name
	}
	if input.PhoneNumber != nil {
		number, err := normalizePhone(*input.PhoneNumber)
		if err != nil {
			return Supplier{}, err
		}
		if number != supplier.PhoneNumber {
			other, err := s.repo.FindByPhone(ctx, number)
			if err == nil && other.ID != supplier.ID {
				return Supplier{}, ErrPhoneExists
			}
			if err != nil && !errors.Is(err, ErrNotFound) {
				return Supplier{}, err
			}
		}
		supplier.PhoneNumber = number
	}
	if input.ContactInfo != nil {
		supplier.ContactInfo = input.ContactInfo
	}
	if input.TaxID != nil {
		supplier.TaxID = strings.TrimSpace(*input.TaxID)
	}

	return s.repo.Save(ctx, supplier)
}

func (s *service) List(ctx context.Context, offset, limit int) ([]Supplier, error) {
	return s.repo.List(ctx, offset, limit)
}

func (s *service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// ReferenceChecker reports whether materials still point at a supplier.
type ReferenceChecker interface {
	Referenced(ctx context.Context, id string) (bool, error)
}

// GuardDelete wraps svc so that Delete fails with ErrInUse while refs
// reports the supplier as referenced.
func GuardDelete(svc Service, refs ReferenceChecker) Service {
	return guarded{Service: svc, refs: refs}
}

type guarded struct {
	Service
	refs ReferenceChecker
}

func (g guarded) Delete(ctx context.Context, id string) error {
	in, err := g.refs.Referenced(ctx, id)
	if err != nil {
		return err
	}
	if in {
		return ErrInUse
	}
	return g.Service.Delete(ctx, id)
}

func validateName(name string) error {
	if name == "" {
		return &ValidationError{Field: "name", Message: "is required"}
	}
	if len(name) > 100 {
		return &ValidationError{Field: "name", Message: "must be at most 100 characters"}
	}
	return nil
}

func normalizePhone(raw string) (string, error) {
	number, err := phone.Normalize(raw)
	if err != nil {
		return "", &ValidationError{Field: "phone_number", Message: "must be a valid 254XXXXXXXXX number"}
	}
	return number, nil
}

package clients

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/printworks/platform/internal/phone"
)

// Domain-level errors for clients.
var (
	ErrNotImplemented = errors.New("clients repository: not implemented")
	ErrNotFound       = errors.New("client not found")
	ErrPhoneExists    = errors.New("client phone number already in use")
	ErrInUse          = errors.New("client has jobs and cannot be deleted")
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Client represents a customer ordering print work.
type Client struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	PhoneNumber string         `json:"phone_number"`
	ContactInfo map[string]any `json:"contact_info"`
	TaxID       string         `json:"tax_id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Repository abstracts persistence for clients.
type Repository interface {
	FindByID(ctx context.Context, id string) (Client, error)
	FindByPhone(ctx context.Context, phoneNumber string) (Client, error)
	Save(ctx context.Context, client Client) (Client, error)
	List(ctx context.Context, offset, limit int) ([]Client, error)
	Delete(ctx context.Context, id string) error
}

// NullRepository stub implementation returning ErrNotImplemented.
type NullRepository struct{}

func (NullRepository) FindByID(context.Context, string) (Client, error) {
	return Client{}, ErrNotImplemented
}

func (NullRepository) FindByPhone(context.Context, string) (Client, error) {
	return Client{}, ErrNotImplemented
}

func (NullRepository) Save(context.Context, Client) (Client, error) {
	return Client{}, ErrNotImplemented
}

func (NullRepository) List(context.Context, int, int) ([]Client, error) {
	return nil, ErrNotImplemented
}

func (NullRepository) Delete(context.Context, string) error {
	return ErrNotImplemented
}

// Service exposes business operations over clients.
type Service interface {
	Get(ctx context.Context, id string) (Client, error)
	Create(ctx context.Context, input CreateInput) (Client, error)
	FindOrCreate(ctx context.Context, name, phoneNumber string) (Client, error)
	Update(ctx context.Context, id string, input UpdateInput) (Client, error)
	List(ctx context.Context, offset, limit int) ([]Client, error)
	Delete(ctx context.Context, id string) error
}

// CreateInput defines data required to create a client.
type CreateInput struct {
	Name        string         `json:"name"`
	PhoneNumber string         `json:"phone_number"`
	ContactInfo map[string]any `json:"contact_info"`
	TaxID       string         `json:"tax_id"`
}

// UpdateInput defines data for updating a client.
type UpdateInput struct {
	Name        *string        `json:"name"`
	PhoneNumber *string        `json:"phone_number"`
	ContactInfo map[string]any `json:"contact_info"`
	TaxID       *string        `json:"tax_id"`
}

// NewService builds a client service with the given repository.
func NewService(repo Repository) Service {
	return &service{repo: repo}
}

type service struct {
	repo Repository
}

func (s *service) Get(ctx context.Context, id string) (Client, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *service) Create(ctx context.Context, input CreateInput) (Client, error) {
	number, err := normalizePhone(input.PhoneNumber)
	if err != nil {
		return Client{}, err
	}
	name := strings.TrimSpace(input.Name)
	if err := validateDetails(name, input.TaxID); err != nil {
		return Client{}, err
	}

	if err := s.ensurePhoneFree(ctx, number, ""); err != nil {
		return Client{}, err
	}

	return s.repo.Save(ctx, Client{
		Name:        name,
		PhoneNumber: number,
		ContactInfo: contactInfo(input.ContactInfo),
		TaxID:       strings.TrimSpace(input.TaxID),
	})
}

// FindOrCreate looks a client up by phone number and creates one with the
// given name when none exists.
func (s *service) FindOrCreate(ctx context.Context, name, phoneNumber string) (Client, error) {
	number, err := normalizePhone(phoneNumber)
	if err != nil {
		return Client{}, err
	}

	existing, err := s.repo.FindByPhone(ctx, number)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Client{}, err
	}
	name = strings.TrimSpace(name)
	if err := validateDetails(name, ""); err != nil {
		return Client{}, err
	}

	return s.repo.Save(ctx, Client{
		Name:        name,
		PhoneNumber: number,
		ContactInfo: map[string]any{},
	})
}

func (s *service) Update(ctx context.Context, id string, input UpdateInput) (Client, error) {
	client, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Client{}, err
	}

	if input.Name != nil {
		client.Name = strings.TrimSpace(*input.Name)
	}
	if input.PhoneNumber != nil {
		number, err := normalizePhone(*input.PhoneNumber)
		if err != nil {
			return Client{}, err
		}
		if number != client.PhoneNumber {
			if err := s.ensurePhoneFree(ctx, number, client.ID); err != nil {
				return Client{}, err
			}
		}
		client.PhoneNumber = number
	}
	if input.ContactInfo != nil {
		client.ContactInfo = input.ContactInfo
	}
	if input.TaxID != nil {
		client.TaxID = strings.TrimSpace(*input.TaxID)
	}
	if err := validateDetails(client.Name, client.TaxID); err != nil {
		return Client{}, err
	}

	return s.repo.Save(ctx, client)
}

func (s *service) List(ctx context.Context, offset, limit int) ([]Client, error) {
	return s.repo.List(ctx, offset, limit)
}

func (s *service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func validateDetails(name, taxID string) error {
	if len(name) > 100 {
		return &ValidationError{Field: "name", Message: "must be at most 100 characters"}
	}
	if len(taxID) > 50 {
		return &ValidationError{Field: "tax_id", Message: "must be at most 50 characters"}
	}
	return nil
}

// ReferenceChecker reports whether other records still point at a client.
type ReferenceChecker interface {
	Referenced(ctx context.Context, id string) (bool, error)
}

// GuardDelete wraps svc so that Delete fails with ErrInUse while refs
// reports the client as referenced.
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

func (s *service) ensurePhoneFree(ctx context.Context, number, selfID string) error {
	existing, err := s.repo.FindByPhone(ctx, number)
	switch {
	case err == nil && existing.ID != selfID:
		return ErrPhoneExists
	case err == nil, errors.Is(err, ErrNotFound):
		return nil
	default:
		return err
	}
}

func normalizePhone(raw string) (string, error) {
	number, err := phone.Normalize(raw)
	if err != nil {
		return "", &ValidationError{Field: "phone_number", Message: "must be a valid 254XXXXXXXXX number"}
	}
	return number, nil
}

func contactInfo(in map[string]any) map[string]any {
	if in == nil {
		return map[string]any{}
	}
	return in
}

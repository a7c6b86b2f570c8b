package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNotImplemented  = errors.New("users repository: not implemented")
	ErrNotFound        = errors.New("user not found")
	ErrInvalidPassword = errors.New("invalid password")
	ErrEmailExists     = errors.New("email already in use")
	ErrUsernameExists  = errors.New("username already in use")
	ErrInactive        = errors.New("user account is inactive")
	ErrUnknownRole     = errors.New("unknown role")
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// User represents a staff account.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Phone        string     `json:"phone,omitempty"`
	IsActive     bool       `json:"is_active"`
	IsVerified   bool       `json:"is_verified"`
	Role         string     `json:"role"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// HasPermission reports whether the user's role grants p.
func (u User) HasPermission(p Permission) bool {
	return RoleHasPermission(u.Role, p)
}

// Permissions lists what the user's role grants.
func (u User) Permissions() []Permission {
	r, ok := LookupRole(u.Role)
	if !ok {
		return nil
	}
	return append([]Permission(nil), r.Permissions...)
}

// Repository defines persistence behaviour for users.
type Repository interface {
	FindByID(ctx context.Context, id string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByUsername(ctx context.Context, username string) (User, error)
	Save(ctx context.Context, user User) (User, error)
	List(ctx context.Context, offset, limit int) ([]User, error)
}

// NullRepository can be used when no storage is configured.
type NullRepository struct{}

func (NullRepository) FindByID(context.Context, string) (User, error)    { return User{}, ErrNotImplemented }
func (NullRepository) FindByEmail(context.Context, string) (User, error) { return User{}, ErrNotImplemented }
func (NullRepository) FindByUsername(context.Context, string) (User, error) {
	return User{}, ErrNotImplemented
}
func (NullRepository) Save(context.Context, User) (User, error) { return User{}, ErrNotImplemented }
func (NullRepository) List(context.Context, int, int) ([]User, error) {
	return nil, ErrNotImplemented
}

// Service exposes user registration, authentication and administration.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (User, error)
	Authenticate(ctx context.Context, email, password string) (User, error)
	Get(ctx context.Context, id string) (User, error)
	List(ctx context.Context, offset, limit int) ([]User, error)
	SetRole(ctx context.Context, id, role string) (User, error)
	SetActive(ctx context.Context, id string, active bool) (User, error)
	Roles() []Role
}

type service struct {
	repo Repository
	cost int
	now  func() time.Time
}

// RegisterInput captures data required to create an account.
type RegisterInput struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Role      string `json:"role"`
}

// NewService constructs a user service hashing passwords at bcrypt's
// default cost.
func NewService(repo Repository) Service {
	return NewServiceWithCost(repo, bcrypt.DefaultCost)
}

// NewServiceWithCost is NewService with an explicit bcrypt cost.
func NewServiceWithCost(repo Repository, cost int) Service {
	return &service{repo: repo, cost: cost, now: time.Now}
}

func (s *service) Register(ctx context.Context, input RegisterInput) (User, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	if email == "" || !strings.Contains(email, "@") {
		return User{}, &ValidationError{Field: "email", Message: "a valid email is required"}
	}
	if len(input.Password) < 8 {
		return User{}, &ValidationError{Field: "password", Message: "must be at least 8 characters"}
	}
	username := strings.TrimSpace(input.Username)
	if username == "" {
		username = email[:strings.Index(email, "@")]
	}
	if len(username) > 80 {
		return User{}, &ValidationError{Field: "username", Message: "must be at most 80 characters"}
	}
	role := input.Role
	if role == "" {
		role = RoleOperator
	}
	if _, ok := LookupRole(role); !ok {
		return User{}, ErrUnknownRole
	}

	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return User{}, ErrEmailExists
	} else if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}
	if _, err := s.repo.FindByUsername(ctx, username); err == nil {
		return User{}, ErrUsernameExists
	} else if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.cost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	return s.repo.Save(ctx, User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Phone:        strings.TrimSpace(input.Phone),
		IsActive:     true,
		Role:         role,
	})
}

func (s *service) Authenticate(ctx context.Context, email, password string) (User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return User{}, &ValidationError{Field: "email", Message: "is required"}
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidPassword
	}
	if !user.IsActive {
		return User{}, ErrInactive
	}

	now := s.now().UTC()
	user.LastLogin = &now
	return s.repo.Save(ctx, user)
}

func (s *service) Get(ctx context.Context, id string) (User, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *service) List(ctx context.Context, offset, limit int) ([]User, error) {
	return s.repo.List(ctx, offset, limit)
}

func (s *service) SetRole(ctx context.Context, id, role string) (User, error) {
	if _, ok := LookupRole(role); !ok {
		return User{}, ErrUnknownRole
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	user.Role = role
	return s.repo.Save(ctx, user)
}

func (s *service) SetActive(ctx context.Context, id string, active bool) (User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	user.IsActive = active
	return s.repo.Save(ctx, user)
}

func (s *service) Roles() []Role {
	return Roles()
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/printworks/platform/internal/domain/users"
)

// UserRepository persists users in Postgres.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository constructs a postgres-backed user repository.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, username, email, password_hash, first_name, last_name, phone,
       is_active, is_verified, role, last_login, created_at, updated_at`

func scanUser(row rowScanner) (users.User, error) {
	var (
		u         users.User
		lastLogin sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Phone,
		&u.IsActive, &u.IsVerified, &u.Role, &lastLogin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return users.User{}, err
	}
	u.LastLogin = timePtr(lastLogin)
	return u, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (users.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id::text = $1`, id)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (users.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (users.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (r *UserRepository) findOne(ctx context.Context, query, arg string) (users.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return users.User{}, users.ErrNotFound
		}
		return users.User{}, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) Save(ctx context.Context, user users.User) (users.User, error) {
	now := time.Now().UTC()
	email := strings.ToLower(user.Email)

	if user.ID == "" {
		const insert = `
            INSERT INTO users (username, email, password_hash, first_name, last_name, phone,
                               is_active, is_verified, role, last_login, created_at, updated_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)
            RETURNING id
        `
		if err := r.db.QueryRowContext(ctx, insert,
			user.Username,
			email,
			user.PasswordHash,
			user.FirstName,
			user.LastName,
			user.Phone,
			user.IsActive,
			user.IsVerified,
			user.Role,
			user.LastLogin,
			now,
		).Scan(&user.ID); err != nil {
			return users.User{}, writeUserErr("insert user", err)
		}
		user.Email = email
		user.CreatedAt = now
		user.UpdatedAt = now
		return user, nil
	}

	const update = `
        UPDATE users
           SET username = $2,
               email = $3,
               password_hash = $4,
               first_name = $5,
               last_name = $6,
               phone = $7,
               is_active = $8,
               is_verified = $9,
               role = $10,
               last_login = $11,
               updated_at = $12
         WHERE id::text = $1
        RETURNING created_at
    `
	var created time.Time
	err := r.db.QueryRowContext(ctx, update,
		user.ID,
		user.Username,
		email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.Phone,
		user.IsActive,
		user.IsVerified,
		user.Role,
		user.LastLogin,
		now,
	).Scan(&created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return users.User{}, users.ErrNotFound
		}
		return users.User{}, writeUserErr("update user", err)
	}
	user.Email = email
	user.CreatedAt = created
	user.UpdatedAt = now
	return user, nil
}

// writeUserErr maps unique constraint names from the initial schema onto domain errors.
func writeUserErr(op string, err error) error {
	if constraint, ok := uniqueViolation(err); ok {
		if strings.Contains(constraint, "username") {
			return users.ErrUsernameExists
		}
		return users.ErrEmailExists
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (r *UserRepository) List(ctx context.Context, offset, limit int) ([]users.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at, id OFFSET $1 LIMIT $2`,
		offset, limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	result := []users.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return result, nil
}

var _ users.Repository = (*UserRepository)(nil)

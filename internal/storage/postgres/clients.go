package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/printworks/platform/internal/domain/clients"
)

// ClientRepository persists clients using a *sql.DB handle.
type ClientRepository struct {
	db *sql.DB
}

// NewClientRepository returns a repository backed by a pooled DB connection.
func NewClientRepository(db *sql.DB) *ClientRepository {
	return &ClientRepository{db: db}
}

const clientColumns = `id, name, phone_number, contact_info, tax_id, created_at, updated_at`

func scanClient(row rowScanner) (clients.Client, error) {
	var (
		c    clients.Client
		info []byte
	)
	if err := row.Scan(&c.ID, &c.Name, &c.PhoneNumber, &info, &c.TaxID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return clients.Client{}, err
	}
	decoded, err := decodeJSON(info)
	if err != nil {
		return clients.Client{}, fmt.Errorf("decode contact info: %w", err)
	}
	c.ContactInfo = decoded
	return c, nil
}

// FindByID fetches a client by primary key.
func (r *ClientRepository) FindByID(ctx context.Context, id string) (clients.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE id::text = $1`
	return r.findOne(ctx, query, id)
}

// FindByPhone fetches a client by normalised phone number.
func (r *ClientRepository) FindByPhone(ctx context.Context, phoneNumber string) (clients.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE phone_number = $1`
	return r.findOne(ctx, query, phoneNumber)
}

func (r *ClientRepository) findOne(ctx context.Context, query string, arg any) (clients.Client, error) {
	c, err := scanClient(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return clients.Client{}, clients.ErrNotFound
		}
		return clients.Client{}, fmt.Errorf("find client: %w", err)
	}
	return c, nil
}

// Save inserts or updates a client record.
func (r *ClientRepository) Save(ctx context.Context, client clients.Client) (clients.Client, error) {
	info, err := encodeJSON(client.ContactInfo)
	if err != nil {
		return clients.Client{}, fmt.Errorf("encode contact info: %w", err)
	}
	now := time.Now().UTC()

	if client.ID == "" {
		const insert = `
            INSERT INTO clients (name, phone_number, contact_info, tax_id, created_at, updated_at)
            VALUES ($1,$2,$3,$4,$5,$5)
            RETURNING id
        `
		if err := r.db.QueryRowContext(ctx, insert,
			client.Name,
			client.PhoneNumber,
			info,
			client.TaxID,
			now,
		).Scan(&client.ID); err != nil {
			return clients.Client{}, r.writeErr("insert client", err)
		}
		client.CreatedAt = now
		client.UpdatedAt = now
		return client, nil
	}

	const update = `
        UPDATE clients
           SET name = $2,
               phone_number = $3,
               contact_info = $4,
               tax_id = $5,
               updated_at = $6
         WHERE id::text = $1
        RETURNING created_at
    `
	var created time.Time
	err = r.db.QueryRowContext(ctx, update,
		client.ID,
		client.Name,
		client.PhoneNumber,
		info,
		client.TaxID,
		now,
	).Scan(&created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return clients.Client{}, clients.ErrNotFound
		}
		return clients.Client{}, r.writeErr("update client", err)
	}

	client.CreatedAt = created
	client.UpdatedAt = now
	return client, nil
}

func (r *ClientRepository) writeErr(op string, err error) error {
	if _, ok := uniqueViolation(err); ok {
		return clients.ErrPhoneExists
	}
	return fmt.Errorf("%s: %w", op, err)
}

// List returns clients ordered by creation date.
func (r *ClientRepository) List(ctx context.Context, offset, limit int) ([]clients.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients ORDER BY created_at, id OFFSET $1 LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, offset, limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	result := []clients.Client{}
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return result, nil
}

// Delete removes a client.
func (r *ClientRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM clients WHERE id::text = $1`, id)
	if foreignKeyViolation(err) {
		return clients.ErrInUse
	}
	if err != nil {
		return fmt.Errorf("delete client: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return clients.ErrNotFound
	}
	return nil
}

var _ clients.Repository = (*ClientRepository)(nil)

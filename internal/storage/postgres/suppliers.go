package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/printworks/platform/internal/domain/suppliers"
)

// SupplierRepository persists suppliers using a *sql.DB handle.
type SupplierRepository struct {
	db *sql.DB
}

// NewSupplierRepository returns a repository backed by a pooled DB connection.
func NewSupplierRepository(db *sql.DB) *SupplierRepository {
	return &SupplierRepository{db: db}
}

const supplierColumns = `id, name, phone_number, contact_info, tax_id, created_at, updated_at`

func scanSupplier(row rowScanner) (suppliers.Supplier, error) {
	var (
		s    suppliers.Supplier
		info []byte
	)
	if err := row.Scan(&s.ID, &s.Name, &s.PhoneNumber, &info, &s.TaxID, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return suppliers.Supplier{}, err
	}
	decoded, err := decodeJSON(info)
	if err != nil {
		return suppliers.Supplier{}, fmt.Errorf("decode contact info: %w", err)
	}
	s.ContactInfo = decoded
	return s, nil
}

// FindByID fetches a supplier by primary key.
func (r *SupplierRepository) FindByID(ctx context.Context, id string) (suppliers.Supplier, error) {
	query := `SELECT ` + supplierColumns + ` FROM suppliers WHERE id::text = $1`
	return r.findOne(ctx, query, id)
}

// FindByPhone fetches a supplier by normalised phone number.
func (r *SupplierRepository) FindByPhone(ctx context.Context, phoneNumber string) (suppliers.Supplier, error) {
	query := `SELECT ` + supplierColumns + ` FROM suppliers WHERE phone_number = $1`
	return r.findOne(ctx, query, phoneNumber)
}

func (r *SupplierRepository) findOne(ctx context.Context, query string, arg any) (suppliers.Supplier, error) {
	c, err := scanSupplier(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return suppliers.Supplier{}, suppliers.ErrNotFound
		}
		return suppliers.Supplier{}, fmt.Errorf("find supplier: %w", err)
	}
	return c, nil
}

// Save inserts or updates a supplier record.
func (r *SupplierRepository) Save(ctx context.Context, supplier suppliers.Supplier) (suppliers.Supplier, error) {
	info, err := encodeJSON(supplier.ContactInfo)
	if err != nil {
		return suppliers.Supplier{}, fmt.Errorf("encode contact info: %w", err)
	}
	now := time.Now().UTC()

	if supplier.ID == "" {
		const insert = `
            INSERT INTO suppliers (name, phone_number, contact_info, tax_id, created_at, updated_at)
            VALUES ($1,$2,$3,$4,$5,$5)
            RETURNING id
        `
		if err := r.db.QueryRowContext(ctx, insert,
			supplier.Name,
			supplier.PhoneNumber,
			info,
			supplier.TaxID,
			now,
		).Scan(&supplier.ID); err != nil {
			return suppliers.Supplier{}, r.writeErr("insert supplier", err)
		}
		supplier.CreatedAt = now
		supplier.UpdatedAt = now
		return supplier, nil
	}

	const update = `
        UPDATE suppliers
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
		supplier.ID,
		supplier.Name,
		supplier.PhoneNumber,
		info,
		supplier.TaxID,
		now,
	).Scan(&created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return suppliers.Supplier{}, suppliers.ErrNotFound
		}
		return suppliers.Supplier{}, r.writeErr("update supplier", err)
	}

	supplier.CreatedAt = created
	supplier.UpdatedAt = now
	return supplier, nil
}

func (r *SupplierRepository) writeErr(op string, err error) error {
	if _, ok := uniqueViolation(err); ok {
		return suppliers.ErrPhoneExists
	}
	return fmt.Errorf("%s: %w", op, err)
}

// List returns suppliers ordered by creation date.
func (r *SupplierRepository) List(ctx context.Context, offset, limit int) ([]suppliers.Supplier, error) {
	query := `SELECT ` + supplierColumns + ` FROM suppliers ORDER BY created_at, id OFFSET $1 LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, offset, limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("list suppliers: %w", err)
	}
	defer rows.Close()

	result := []suppliers.Supplier{}
	for rows.Next() {
		c, err := scanSupplier(rows)
		if err != nil {
			return nil, fmt.Errorf("scan supplier: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return result, nil
}

// Delete removes a supplier.
func (r *SupplierRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM suppliers WHERE id::text = $1`, id)
	if foreignKeyViolation(err) {
		return suppliers.ErrInUse
	}
	if err != nil {
		return fmt.Errorf("delete supplier: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return suppliers.ErrNotFound
	}
	return nil
}

var _ suppliers.Repository = (*SupplierRepository)(nil)

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/printworks/platform/internal/domain/inventory"
)

// MaterialRepository persists materials and their stock ledger.
type MaterialRepository struct {
	db *sql.DB
}

func NewMaterialRepository(db *sql.DB) *MaterialRepository {
	return &MaterialRepository{db: db}
}

const materialColumns = `id, material_code, name, category, type, unit_of_measure,
       stock_level, min_threshold, reorder_quantity, cost_per_unit,
       specifications, supplier_id, created_at, updated_at`

func scanMaterial(row rowScanner) (inventory.Material, error) {
	var (
		m     inventory.Material
		specs []byte
	)
	err := row.Scan(
		&m.ID,
		&m.Code,
		&m.Name,
		&m.Category,
		&m.Type,
		&m.UnitOfMeasure,
		&m.StockLevel,
		&m.MinThreshold,
		&m.ReorderQuantity,
		&m.CostPerUnit,
		&specs,
		&m.SupplierID,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return inventory.Material{}, err
	}
	if m.Specifications, err = decodeJSON(specs); err != nil {
		return inventory.Material{}, fmt.Errorf("decode specifications: %w", err)
	}
	return m, nil
}

func (r *MaterialRepository) FindByID(ctx context.Context, id string) (inventory.Material, error) {
	return r.findOne(ctx, `SELECT `+materialColumns+` FROM materials WHERE id::text = $1`, id)
}

func (r *MaterialRepository) FindByCode(ctx context.Context, code string) (inventory.Material, error) {
	return r.findOne(ctx, `SELECT `+materialColumns+` FROM materials WHERE material_code = $1`, code)
}

func (r *MaterialRepository) findOne(ctx context.Context, query string, arg any) (inventory.Material, error) {
	m, err := scanMaterial(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return inventory.Material{}, inventory.ErrNotFound
		}
		return inventory.Material{}, fmt.Errorf("find material: %w", err)
	}
	return m, nil
}

// Save inserts or updates a material. Stock changes made here bypass the
// ledger, so callers only use it for catalogue fields.
func (r *MaterialRepository) Save(ctx context.Context, m inventory.Material) (inventory.Material, error) {
	specs, err := encodeJSON(m.Specifications)
	if err != nil {
		return inventory.Material{}, fmt.Errorf("encode specifications: %w", err)
	}
	now := time.Now().UTC()

	if m.ID == "" {
		const insert = `
            INSERT INTO materials (material_code, name, category, type, unit_of_measure,
                                   stock_level, min_threshold, reorder_quantity, cost_per_unit,
                                   specifications, supplier_id, created_at, updated_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11::uuid,$12,$12)
            RETURNING id
        `
		err := r.db.QueryRowContext(ctx, insert,
			m.Code, m.Name, m.Category, m.Type, m.UnitOfMeasure,
			m.StockLevel, m.MinThreshold, m.ReorderQuantity, m.CostPerUnit,
			specs, m.SupplierID, now,
		).Scan(&m.ID)
		if err != nil {
			return inventory.Material{}, writeMaterialErr("insert material", err)
		}
		m.CreatedAt, m.UpdatedAt = now, now
		return m, nil
	}

	const update = `
        UPDATE materials
           SET material_code = $2,
               name = $3,
               category = $4,
               type = $5,
               unit_of_measure = $6,
               min_threshold = $7,
               reorder_quantity = $8,
               cost_per_unit = $9,
               specifications = $10,
               supplier_id = $11::uuid,
               updated_at = $12
         WHERE id::text = $1
        RETURNING created_at, stock_level
    `
	err = r.db.QueryRowContext(ctx, update,
		m.ID, m.Code, m.Name, m.Category, m.Type, m.UnitOfMeasure,
		m.MinThreshold, m.ReorderQuantity, m.CostPerUnit,
		specs, m.SupplierID, now,
	).Scan(&m.CreatedAt, &m.StockLevel)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return inventory.Material{}, inventory.ErrNotFound
		}
		return inventory.Material{}, writeMaterialErr("update material", err)
	}
	m.UpdatedAt = now
	return m, nil
}

func writeMaterialErr(op string, err error) error {
	if _, ok := uniqueViolation(err); ok {
		return inventory.ErrCodeExists
	}
	return fmt.Errorf("%s: %w", op, err)
}

// List returns matching materials ordered by name.
func (r *MaterialRepository) List(ctx context.Context, filter inventory.Filter) ([]inventory.Material, error) {
	query := `SELECT ` + materialColumns + `
          FROM materials
         WHERE ($1 = '' OR category = $1)
           AND ($2 = '' OR type = $2)
           AND ($3 = '' OR supplier_id::text = $3)
           AND ($4 = '' OR name ILIKE '%' || $4 || '%' OR material_code ILIKE '%' || $4 || '%')
         ORDER BY name, material_code`

	rows, err := r.db.QueryContext(ctx, query, filter.Category, filter.Type, filter.SupplierID, filter.Search)
	if err != nil {
		return nil, fmt.Errorf("list materials: %w", err)
	}
	defer rows.Close()

	result := []inventory.Material{}
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, fmt.Errorf("scan material: %w", err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return result, nil
}

func (r *MaterialRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM materials WHERE id::text = $1`, id)
	if foreignKeyViolation(err) {
		return inventory.ErrInUse
	}
	if err != nil {
		return fmt.Errorf("delete material: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return inventory.ErrNotFound
	}
	return nil
}

// Mutate locks the material row, applies fn and writes the new stock level
// and ledger entry in one transaction.
func (r *MaterialRepository) Mutate(ctx context.Context, id string, fn inventory.Mutation) (inventory.Material, inventory.Transaction, error) {
	var (
		m  inventory.Material
		tx inventory.Transaction
	)
	err := withTx(ctx, r.db, func(sqlTx *sql.Tx) error {
		var err error
		m, err = scanMaterial(sqlTx.QueryRowContext(ctx,
			`SELECT `+materialColumns+` FROM materials WHERE id::text = $1 FOR UPDATE`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return inventory.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock material: %w", err)
		}

		if tx, err = fn(&m); err != nil {
			return err
		}

		now := time.Now().UTC()
		if _, err := sqlTx.ExecContext(ctx, `
            UPDATE materials
               SET stock_level = $2, cost_per_unit = $3, updated_at = $4
             WHERE id = $1::uuid`,
			m.ID, m.StockLevel, m.CostPerUnit, now,
		); err != nil {
			return fmt.Errorf("update stock: %w", err)
		}
		m.UpdatedAt = now

		tx.MaterialID = m.ID
		err = sqlTx.QueryRowContext(ctx, `
            INSERT INTO stock_transactions (material_id, transaction_type, quantity, wastage,
                                            previous_stock, new_stock, job_id, user_id, supplier_id,
                                            cost_per_unit, adjustment_reason, reference_number, notes, created_at)
            VALUES ($1::uuid,$2,$3,$4,$5,$6,NULLIF($7,'')::uuid,NULLIF($8,'')::uuid,NULLIF($9,'')::uuid,$10,$11,$12,$13,$14)
            RETURNING id, created_at`,
			tx.MaterialID, string(tx.Type), tx.Quantity, tx.Wastage,
			tx.PreviousStock, tx.NewStock, tx.JobID, tx.UserID, tx.SupplierID,
			tx.CostPerUnit, string(tx.Reason), tx.ReferenceNumber, tx.Notes, now,
		).Scan(&tx.ID, &tx.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert stock transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return inventory.Material{}, inventory.Transaction{}, err
	}
	return m, tx, nil
}

// Transactions returns matching ledger entries newest first.
func (r *MaterialRepository) Transactions(ctx context.Context, filter inventory.TransactionFilter) ([]inventory.Transaction, error) {
	const query = `
        SELECT id, material_id, transaction_type, quantity, wastage, previous_stock, new_stock,
               COALESCE(job_id::text, ''), COALESCE(user_id::text, ''), COALESCE(supplier_id::text, ''),
               cost_per_unit, adjustment_reason, reference_number, notes, created_at
          FROM stock_transactions
         WHERE ($1 = '' OR material_id::text = $1)
           AND ($2 = '' OR transaction_type = $2)
           AND ($3::timestamptz IS NULL OR created_at >= $3)
           AND ($4::timestamptz IS NULL OR created_at <= $4)
         ORDER BY created_at DESC, id`

	rows, err := r.db.QueryContext(ctx, query,
		filter.MaterialID, string(filter.Type), rangeArg(filter.From), rangeArg(filter.To))
	if err != nil {
		return nil, fmt.Errorf("list stock transactions: %w", err)
	}
	defer rows.Close()

	result := []inventory.Transaction{}
	for rows.Next() {
		var (
			t            inventory.Transaction
			kind, reason string
		)
		if err := rows.Scan(
			&t.ID, &t.MaterialID, &kind, &t.Quantity, &t.Wastage, &t.PreviousStock, &t.NewStock,
			&t.JobID, &t.UserID, &t.SupplierID,
			&t.CostPerUnit, &reason, &t.ReferenceNumber, &t.Notes, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan stock transaction: %w", err)
		}
		t.Type = inventory.TransactionType(kind)
		t.Reason = inventory.AdjustmentReason(reason)
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return result, nil
}

var _ inventory.Repository = (*MaterialRepository)(nil)

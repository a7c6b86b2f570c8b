package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/printworks/platform/internal/domain/machines"
)

// MachineRepository persists machines and meter readings.
type MachineRepository struct {
	db *sql.DB
}

func NewMachineRepository(db *sql.DB) *MachineRepository {
	return &MachineRepository{db: db}
}

const (
	machineColumns = `id, name, model, serial_number, status, created_at, updated_at`
	readingColumns = `id, machine_id, job_id, COALESCE(material_id::text, ''), start_meter, end_meter,
       material_usage, COALESCE(operator_id::text, ''), created_at`
)

func scanMachine(row rowScanner) (machines.Machine, error) {
	var (
		m      machines.Machine
		status string
	)
	if err := row.Scan(&m.ID, &m.Name, &m.Model, &m.SerialNumber, &status, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return machines.Machine{}, err
	}
	m.Status = machines.Status(status)
	return m, nil
}

func scanReading(row rowScanner) (machines.Reading, error) {
	var r machines.Reading
	err := row.Scan(&r.ID, &r.MachineID, &r.JobID, &r.MaterialID, &r.StartMeter, &r.EndMeter,
		&r.MaterialUsage, &r.OperatorID, &r.CreatedAt)
	return r, err
}

func (r *MachineRepository) FindMachine(ctx context.Context, id string) (machines.Machine, error) {
	return r.findMachine(ctx, `SELECT `+machineColumns+` FROM machines WHERE id::text = $1`, id)
}

func (r *MachineRepository) FindMachineBySerial(ctx context.Context, serial string) (machines.Machine, error) {
	return r.findMachine(ctx, `SELECT `+machineColumns+` FROM machines WHERE serial_number = $1`, serial)
}

func (r *MachineRepository) findMachine(ctx context.Context, query, arg string) (machines.Machine, error) {
	m, err := scanMachine(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return machines.Machine{}, machines.ErrNotFound
		}
		return machines.Machine{}, fmt.Errorf("find machine: %w", err)
	}
	return m, nil
}

func (r *MachineRepository) SaveMachine(ctx context.Context, m machines.Machine) (machines.Machine, error) {
	now := time.Now().UTC()

	if m.ID == "" {
		err := r.db.QueryRowContext(ctx, `
            INSERT INTO machines (name, model, serial_number, status, created_at, updated_at)
            VALUES ($1,$2,$3,$4,$5,$5)
            RETURNING id`,
			m.Name, m.Model, m.SerialNumber, string(m.Status), now,
		).Scan(&m.ID)
		if err != nil {
			return machines.Machine{}, writeMachineErr("insert machine", err)
		}
		m.CreatedAt, m.UpdatedAt = now, now
		return m, nil
	}

	err := r.db.QueryRowContext(ctx, `
        UPDATE machines
           SET name = $2, model = $3, serial_number = $4, status = $5, updated_at = $6
         WHERE id::text = $1
        RETURNING created_at`,
		m.ID, m.Name, m.Model, m.SerialNumber, string(m.Status), now,
	).Scan(&m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return machines.Machine{}, machines.ErrNotFound
		}
		return machines.Machine{}, writeMachineErr("update machine", err)
	}
	m.UpdatedAt = now
	return m, nil
}

func writeMachineErr(op string, err error) error {
	if _, ok := uniqueViolation(err); ok {
		return machines.ErrSerialExists
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (r *MachineRepository) ListMachines(ctx context.Context, status machines.Status) ([]machines.Machine, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+machineColumns+` FROM machines WHERE ($1 = '' OR status = $1) ORDER BY name, id`,
		string(status))
	if err != nil {
		return nil, fmt.Errorf("list machines: %w", err)
	}
	defer rows.Close()

	result := []machines.Machine{}
	for rows.Next() {
		m, err := scanMachine(rows)
		if err != nil {
			return nil, fmt.Errorf("scan machine: %w", err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return result, nil
}

func (r *MachineRepository) CreateReading(ctx context.Context, reading machines.Reading) (machines.Reading, error) {
	err := r.db.QueryRowContext(ctx, `
        INSERT INTO machine_readings (machine_id, job_id, material_id, start_meter, end_meter,
                                      material_usage, operator_id)
        VALUES ($1::uuid,$2::uuid,NULLIF($3,'')::uuid,$4,$5,$6,NULLIF($7,'')::uuid)
        RETURNING id, created_at`,
		reading.MachineID, reading.JobID, reading.MaterialID, reading.StartMeter, reading.EndMeter,
		reading.MaterialUsage, reading.OperatorID,
	).Scan(&reading.ID, &reading.CreatedAt)
	if err != nil {
		return machines.Reading{}, fmt.Errorf("insert machine reading: %w", err)
	}
	return reading, nil
}

func (r *MachineRepository) queryReadings(ctx context.Context, query string, args ...any) ([]machines.Reading, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list machine readings: %w", err)
	}
	defer rows.Close()

	result := []machines.Reading{}
	for rows.Next() {
		rd, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("scan machine reading: %w", err)
		}
		result = append(result, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return result, nil
}

func (r *MachineRepository) ReadingsByJob(ctx context.Context, jobID string) ([]machines.Reading, error) {
	return r.queryReadings(ctx,
		`SELECT `+readingColumns+` FROM machine_readings WHERE job_id::text = $1 ORDER BY created_at DESC, id`,
		jobID)
}

func (r *MachineRepository) ReadingsByMachine(ctx context.Context, machineID string, from, to time.Time) ([]machines.Reading, error) {
	return r.queryReadings(ctx, `SELECT `+readingColumns+`
          FROM machine_readings
         WHERE machine_id::text = $1
           AND ($2::timestamptz IS NULL OR created_at >= $2)
           AND ($3::timestamptz IS NULL OR created_at <= $3)
         ORDER BY created_at DESC, id`,
		machineID, rangeArg(from), rangeArg(to))
}

func (r *MachineRepository) ListReadings(ctx context.Context, offset, limit int) ([]machines.Reading, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM machine_readings`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count machine readings: %w", err)
	}
	list, err := r.queryReadings(ctx,
		`SELECT `+readingColumns+` FROM machine_readings ORDER BY created_at DESC, id OFFSET $1 LIMIT $2`,
		offset, limitArg(limit))
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *MachineRepository) DeleteReading(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM machine_readings WHERE id::text = $1`, id)
	if err != nil {
		return fmt.Errorf("delete machine reading: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return machines.ErrReadingMissing
	}
	return nil
}

var _ machines.Repository = (*MachineRepository)(nil)

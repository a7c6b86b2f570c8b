package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/printworks/platform/internal/domain/jobs"
)

// JobRepository persists jobs and their child records.
type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

const jobColumns = `id, client_id, description, job_type, vendor_name, vendor_cost_per_unit,
       total_units, pricing_per_unit, progress_status, total_cost, amount_paid,
       start_date, end_date, completed_at, cancelled_at, cancellation_reason,
       last_status_change, created_at, updated_at`

func scanJob(row rowScanner) (jobs.Job, error) {
	var (
		j                                    jobs.Job
		kind, status                         string
		start, end, completedAt, cancelledAt sql.NullTime
	)
	err := row.Scan(
		&j.ID, &j.ClientID, &j.Description, &kind, &j.VendorName, &j.VendorCostPerUnit,
		&j.TotalUnits, &j.PricingPerUnit, &status, &j.TotalCost, &j.AmountPaid,
		&start, &end, &completedAt, &cancelledAt, &j.CancellationReason,
		&j.LastStatusChange, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return jobs.Job{}, err
	}
	j.Type = jobs.Type(kind)
	j.Status = jobs.Status(status)
	j.StartDate = timePtr(start)
	j.EndDate = timePtr(end)
	j.CompletedAt = timePtr(completedAt)
	j.CancelledAt = timePtr(cancelledAt)
	return j, nil
}

// Create inserts a job with its initial child records.
func (r *JobRepository) Create(ctx context.Context, job jobs.Job, changes jobs.Changes) (jobs.Job, error) {
	now := time.Now().UTC()
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
            INSERT INTO jobs (client_id, description, job_type, vendor_name, vendor_cost_per_unit,
                              total_units, pricing_per_unit, progress_status, total_cost, amount_paid,
                              start_date, end_date, completed_at, cancelled_at, cancellation_reason,
                              last_status_change, created_at, updated_at)
            VALUES ($1::uuid,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$17)
            RETURNING id`,
			job.ClientID, job.Description, string(job.Type), job.VendorName, job.VendorCostPerUnit,
			job.TotalUnits, job.PricingPerUnit, string(job.Status), job.TotalCost, job.AmountPaid,
			job.StartDate, job.EndDate, job.CompletedAt, job.CancelledAt, job.CancellationReason,
			job.LastStatusChange, now,
		).Scan(&job.ID)
		if err != nil {
			return fmt.Errorf("insert job: %w", err)
		}
		_, err = insertChanges(ctx, tx, job.ID, changes, now)
		return err
	})
	if err != nil {
		return jobs.Job{}, err
	}
	job.CreatedAt, job.UpdatedAt = now, now
	return job, nil
}

func (r *JobRepository) FindByID(ctx context.Context, id string) (jobs.Job, error) {
	j, err := scanJob(r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id::text = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return jobs.Job{}, jobs.ErrNotFound
		}
		return jobs.Job{}, fmt.Errorf("find job: %w", err)
	}
	return j, nil
}

// Update locks the job row, applies fn and stores the result together with
// any child records fn returns.
func (r *JobRepository) Update(ctx context.Context, id string, fn jobs.UpdateFunc) (jobs.Job, jobs.Changes, error) {
	var (
		job    jobs.Job
		stored jobs.Changes
	)
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		job, err = scanJob(tx.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id::text = $1 FOR UPDATE`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return jobs.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock job: %w", err)
		}

		changes, err := fn(&job)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		_, err = tx.ExecContext(ctx, `
            UPDATE jobs
               SET description = $2,
                   vendor_name = $3,
                   vendor_cost_per_unit = $4,
                   total_units = $5,
                   pricing_per_unit = $6,
                   progress_status = $7,
                   total_cost = $8,
                   amount_paid = $9,
                   start_date = $10,
                   end_date = $11,
                   completed_at = $12,
                   cancelled_at = $13,
                   cancellation_reason = $14,
                   last_status_change = $15,
                   updated_at = $16
             WHERE id = $1::uuid`,
			job.ID, job.Description, job.VendorName, job.VendorCostPerUnit,
			job.TotalUnits, job.PricingPerUnit, string(job.Status), job.TotalCost, job.AmountPaid,
			job.StartDate, job.EndDate, job.CompletedAt, job.CancelledAt, job.CancellationReason,
			job.LastStatusChange, now,
		)
		if err != nil {
			return fmt.Errorf("update job: %w", err)
		}
		job.UpdatedAt = now

		stored, err = insertChanges(ctx, tx, job.ID, changes, now)
		return err
	})
	if err != nil {
		return jobs.Job{}, jobs.Changes{}, err
	}
	return job, stored, nil
}

func insertChanges(ctx context.Context, tx *sql.Tx, jobID string, c jobs.Changes, now time.Time) (jobs.Changes, error) {
	for i := range c.Notes {
		n := &c.Notes[i]
		n.JobID, n.CreatedAt = jobID, now
		if err := tx.QueryRowContext(ctx,
			`INSERT INTO job_notes (job_id, content, created_at) VALUES ($1::uuid,$2,$3) RETURNING id`,
			jobID, n.Content, now,
		).Scan(&n.ID); err != nil {
			return jobs.Changes{}, fmt.Errorf("insert job note: %w", err)
		}
	}
	for i := range c.Expenses {
		e := &c.Expenses[i]
		e.JobID, e.CreatedAt = jobID, now
		if err := tx.QueryRowContext(ctx, `
            INSERT INTO job_expenses (job_id, name, cost, date, category, receipt_url, created_at)
            VALUES ($1::uuid,$2,$3,$4,$5,$6,$7) RETURNING id`,
			jobID, e.Name, e.Cost, e.Date, e.Category, e.ReceiptURL, now,
		).Scan(&e.ID); err != nil {
			return jobs.Changes{}, fmt.Errorf("insert job expense: %w", err)
		}
	}
	for i := range c.MaterialUsages {
		u := &c.MaterialUsages[i]
		u.JobID, u.CreatedAt = jobID, now
		if err := tx.QueryRowContext(ctx, `
            INSERT INTO job_material_usages (job_id, material_id, quantity, cost, created_at)
            VALUES ($1::uuid,$2::uuid,$3,$4,$5) RETURNING id`,
			jobID, u.MaterialID, u.Quantity, u.Cost, now,
		).Scan(&u.ID); err != nil {
			return jobs.Changes{}, fmt.Errorf("insert job material usage: %w", err)
		}
	}
	for i := range c.TimeframeChanges {
		t := &c.TimeframeChanges[i]
		t.JobID, t.ChangedAt = jobID, now
		if err := tx.QueryRowContext(ctx, `
            INSERT INTO job_timeframe_changes (job_id, old_start, old_end, new_start, new_end, reason, changed_at)
            VALUES ($1::uuid,$2,$3,$4,$5,$6,$7) RETURNING id`,
			jobID, t.OldStart, t.OldEnd, t.NewStart, t.NewEnd, t.Reason, now,
		).Scan(&t.ID); err != nil {
			return jobs.Changes{}, fmt.Errorf("insert job timeframe change: %w", err)
		}
	}
	return c, nil
}

// List returns matching jobs newest first.
func (r *JobRepository) List(ctx context.Context, filter jobs.Filter, offset, limit int) ([]jobs.Job, error) {
	query := `SELECT ` + jobColumns + `
          FROM jobs
         WHERE ($1 = '' OR client_id::text = $1)
           AND ($2 = '' OR progress_status = $2)
           AND ($3 = '' OR job_type = $3)
         ORDER BY created_at DESC, id
        OFFSET $4
         LIMIT $5`

	rows, err := r.db.QueryContext(ctx, query,
		filter.ClientID, string(filter.Status), string(filter.Type), offset, limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	result := []jobs.Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		result = append(result, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return result, nil
}

// children runs a per-job child query ordered oldest first and scans each
// row with scan.
func children[T any](ctx context.Context, db *sql.DB, what, query, jobID string, scan func(rowScanner) (T, error)) ([]T, error) {
	rows, err := db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", what, err)
	}
	defer rows.Close()

	result := []T{}
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", what, err)
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return result, nil
}

func (r *JobRepository) Notes(ctx context.Context, jobID string) ([]jobs.Note, error) {
	return children(ctx, r.db, "job notes",
		`SELECT id, job_id, content, created_at FROM job_notes WHERE job_id::text = $1 ORDER BY created_at, id`,
		jobID, func(row rowScanner) (jobs.Note, error) {
			var n jobs.Note
			err := row.Scan(&n.ID, &n.JobID, &n.Content, &n.CreatedAt)
			return n, err
		})
}

func (r *JobRepository) Expenses(ctx context.Context, jobID string) ([]jobs.Expense, error) {
	return children(ctx, r.db, "job expenses", `
        SELECT id, job_id, name, cost, date, category, receipt_url, created_at
          FROM job_expenses WHERE job_id::text = $1 ORDER BY created_at, id`,
		jobID, func(row rowScanner) (jobs.Expense, error) {
			var e jobs.Expense
			err := row.Scan(&e.ID, &e.JobID, &e.Name, &e.Cost, &e.Date, &e.Category, &e.ReceiptURL, &e.CreatedAt)
			return e, err
		})
}

func (r *JobRepository) MaterialUsages(ctx context.Context, jobID string) ([]jobs.MaterialUsage, error) {
	return children(ctx, r.db, "job material usages", `
        SELECT id, job_id, material_id, quantity, cost, created_at
          FROM job_material_usages WHERE job_id::text = $1 ORDER BY created_at, id`,
		jobID, func(row rowScanner) (jobs.MaterialUsage, error) {
			var u jobs.MaterialUsage
			err := row.Scan(&u.ID, &u.JobID, &u.MaterialID, &u.Quantity, &u.Cost, &u.CreatedAt)
			return u, err
		})
}

func (r *JobRepository) TimeframeChanges(ctx context.Context, jobID string) ([]jobs.TimeframeChange, error) {
	return children(ctx, r.db, "job timeframe changes", `
        SELECT id, job_id, old_start, old_end, new_start, new_end, reason, changed_at
          FROM job_timeframe_changes WHERE job_id::text = $1 ORDER BY changed_at, id`,
		jobID, func(row rowScanner) (jobs.TimeframeChange, error) {
			var (
				t                            jobs.TimeframeChange
				oldStart, oldEnd, newS, newE sql.NullTime
			)
			err := row.Scan(&t.ID, &t.JobID, &oldStart, &oldEnd, &newS, &newE, &t.Reason, &t.ChangedAt)
			t.OldStart, t.OldEnd = timePtr(oldStart), timePtr(oldEnd)
			t.NewStart, t.NewEnd = timePtr(newS), timePtr(newE)
			return t, err
		})
}

var _ jobs.Repository = (*JobRepository)(nil)

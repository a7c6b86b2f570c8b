package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/printworks/platform/internal/domain/clients"
	"github.com/printworks/platform/internal/domain/inventory"
	"github.com/printworks/platform/internal/domain/jobs"
	"github.com/printworks/platform/internal/domain/machines"
	"github.com/printworks/platform/internal/domain/suppliers"
	"github.com/printworks/platform/internal/domain/users"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

func q(s string) string { return regexp.QuoteMeta(s) }

func TestClientFindByIDMissing(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(q("FROM clients WHERE id::text = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := NewClientRepository(db).FindByID(context.Background(), "missing")
	if !errors.Is(err, clients.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClientSaveMapsUniqueViolation(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(q("INSERT INTO clients")).
		WillReturnError(&pq.Error{Code: pgerrcode.UniqueViolation, Constraint: "clients_phone_number_key"})

	_, err := NewClientRepository(db).Save(context.Background(), clients.Client{Name: "Acme", PhoneNumber: "+15550100"})
	if !errors.Is(err, clients.ErrPhoneExists) {
		t.Fatalf("expected ErrPhoneExists, got %v", err)
	}
}

func TestClientListDecodesContactInfo(t *testing.T) {
	db, mock := newMock(t)
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "name", "phone_number", "contact_info", "tax_id", "created_at", "updated_at"}).
		AddRow("c1", "Acme", "+15550100", []byte(`{"email":"ops@acme.test"}`), "TX-1", now, now)
	mock.ExpectQuery(q("FROM clients ORDER BY created_at, id OFFSET $1 LIMIT $2")).
		WithArgs(0, 10).
		WillReturnRows(rows)

	list, err := NewClientRepository(db).List(context.Background(), 0, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ContactInfo["email"] != "ops@acme.test" {
		t.Fatalf("unexpected clients: %+v", list)
	}
}

var materialCols = []string{
	"id", "material_code", "name", "category", "type", "unit_of_measure",
	"stock_level", "min_threshold", "reorder_quantity", "cost_per_unit",
	"specifications", "supplier_id", "created_at", "updated_at",
}

func materialRow(stock float64) *sqlmock.Rows {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(materialCols).
		AddRow("m1", "VIN-001", "Vinyl", "media", "roll", "sqm", stock, 5.0, 50.0, int64(250), []byte(`{}`), "s1", now, now)
}

func TestMaterialMutateCommits(t *testing.T) {
	db, mock := newMock(t)
	created := time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(q("FROM materials WHERE id::text = $1 FOR UPDATE")).
		WithArgs("m1").
		WillReturnRows(materialRow(20))
	mock.ExpectExec(q("UPDATE materials")).
		WithArgs("m1", 12.0, int64(250), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(q("INSERT INTO stock_transactions")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("t1", created))
	mock.ExpectCommit()

	m, tx, err := NewMaterialRepository(db).Mutate(context.Background(), "m1", func(m *inventory.Material) (inventory.Transaction, error) {
		prev := m.StockLevel
		m.StockLevel -= 8
		return inventory.Transaction{
			Type:          inventory.TransactionUsage,
			Quantity:      8,
			PreviousStock: prev,
			NewStock:      m.StockLevel,
			JobID:         "j1",
		}, nil
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if m.StockLevel != 12 {
		t.Fatalf("expected stock 12, got %v", m.StockLevel)
	}
	if tx.ID != "t1" || tx.MaterialID != "m1" || !tx.CreatedAt.Equal(created) {
		t.Fatalf("unexpected transaction: %+v", tx)
	}
}

func TestMaterialMutateRollsBackOnError(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(q("FOR UPDATE")).WithArgs("m1").WillReturnRows(materialRow(2))
	mock.ExpectRollback()

	_, _, err := NewMaterialRepository(db).Mutate(context.Background(), "m1", func(*inventory.Material) (inventory.Transaction, error) {
		return inventory.Transaction{}, inventory.ErrInsufficientStock
	})
	if !errors.Is(err, inventory.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
}

func TestMaterialMutateMissing(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(q("FOR UPDATE")).WithArgs("nope").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, _, err := NewMaterialRepository(db).Mutate(context.Background(), "nope", func(*inventory.Material) (inventory.Transaction, error) {
		t.Fatal("mutation must not run")
		return inventory.Transaction{}, nil
	})
	if !errors.Is(err, inventory.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMachineDeleteReadingMissing(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(q("DELETE FROM machine_readings")).
		WithArgs("r1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewMachineRepository(db).DeleteReading(context.Background(), "r1")
	if !errors.Is(err, machines.ErrReadingMissing) {
		t.Fatalf("expected ErrReadingMissing, got %v", err)
	}
}

func TestMachineListReadingsCountsTotal(t *testing.T) {
	db, mock := newMock(t)
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(q("SELECT count(*) FROM machine_readings")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(q("OFFSET $1 LIMIT $2")).
		WithArgs(2, 2).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "machine_id", "job_id", "material_id", "start_meter", "end_meter",
			"material_usage", "operator_id", "created_at",
		}).AddRow("r3", "mc1", "j1", "", 100.0, 160.0, 63.0, "", now))

	list, total, err := NewMachineRepository(db).ListReadings(context.Background(), 2, 2)
	if err != nil {
		t.Fatalf("list readings: %v", err)
	}
	if total != 3 || len(list) != 1 || list[0].ID != "r3" {
		t.Fatalf("unexpected page: total=%d list=%+v", total, list)
	}
}

func TestUserSaveMapsConstraintNames(t *testing.T) {
	cases := []struct {
		constraint string
		want       error
	}{
		{"users_username_key", users.ErrUsernameExists},
		{"users_email_key", users.ErrEmailExists},
	}
	for _, tc := range cases {
		t.Run(tc.constraint, func(t *testing.T) {
			db, mock := newMock(t)
			mock.ExpectQuery(q("INSERT INTO users")).
				WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: tc.constraint})

			_, err := NewUserRepository(db).Save(context.Background(), users.User{Username: "jo", Email: "Jo@Example.test"})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestLimitArg(t *testing.T) {
	if limitArg(0) != nil || limitArg(-1) != nil {
		t.Fatal("non-positive limits must map to NULL")
	}
	if limitArg(5) != 5 {
		t.Fatal("positive limits pass through")
	}
}

func TestDeleteMapsForeignKeyViolation(t *testing.T) {
	cases := []struct {
		table  string
		delete func(db *sql.DB) error
		want   error
	}{
		{"clients", func(db *sql.DB) error { return NewClientRepository(db).Delete(context.Background(), "c1") }, clients.ErrInUse},
		{"suppliers", func(db *sql.DB) error { return NewSupplierRepository(db).Delete(context.Background(), "c1") }, suppliers.ErrInUse},
		{"materials", func(db *sql.DB) error { return NewMaterialRepository(db).Delete(context.Background(), "c1") }, inventory.ErrInUse},
	}
	for _, tc := range cases {
		t.Run(tc.table, func(t *testing.T) {
			db, mock := newMock(t)
			mock.ExpectExec(q("DELETE FROM " + tc.table)).
				WithArgs("c1").
				WillReturnError(&pq.Error{Code: pgerrcode.ForeignKeyViolation})

			if err := tc.delete(db); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestSupplierFindByPhoneMissing(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(q("FROM suppliers WHERE phone_number = $1")).
		WithArgs("254733000111").
		WillReturnError(sql.ErrNoRows)

	_, err := NewSupplierRepository(db).FindByPhone(context.Background(), "254733000111")
	if !errors.Is(err, suppliers.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSupplierSaveUpdates(t *testing.T) {
	created := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)

	db, mock := newMock(t)
	mock.ExpectQuery(q("UPDATE suppliers")).
		WithArgs("s1", "Ink House", "254733000111", []byte(`{"email":"ink@example.test"}`), "", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	s, err := NewSupplierRepository(db).Save(context.Background(), suppliers.Supplier{
		ID: "s1", Name: "Ink House", PhoneNumber: "254733000111",
		ContactInfo: map[string]any{"email": "ink@example.test"},
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !s.CreatedAt.Equal(created) {
		t.Fatalf("expected created_at from the row, got %v", s.CreatedAt)
	}

	db, mock = newMock(t)
	mock.ExpectQuery(q("UPDATE suppliers")).WillReturnError(sql.ErrNoRows)
	if _, err := NewSupplierRepository(db).Save(context.Background(), suppliers.Supplier{ID: "gone"}); !errors.Is(err, suppliers.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	db, mock = newMock(t)
	mock.ExpectQuery(q("INSERT INTO suppliers")).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "suppliers_phone_number_key"})
	if _, err := NewSupplierRepository(db).Save(context.Background(), suppliers.Supplier{Name: "Dup"}); !errors.Is(err, suppliers.ErrPhoneExists) {
		t.Fatalf("expected ErrPhoneExists, got %v", err)
	}
}

var jobCols = []string{
	"id", "client_id", "description", "job_type", "vendor_name", "vendor_cost_per_unit",
	"total_units", "pricing_per_unit", "progress_status", "total_cost", "amount_paid",
	"start_date", "end_date", "completed_at", "cancelled_at", "cancellation_reason",
	"last_status_change", "created_at", "updated_at",
}

func jobRow(status string) *sqlmock.Rows {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(jobCols).AddRow(
		"j1", "c1", "Banners", "in_house", "", int64(0),
		int64(2), int64(500), status, int64(100), int64(0),
		now, nil, nil, nil, "",
		now, now, now,
	)
}

func TestJobUpdateWritesChildrenInOrder(t *testing.T) {
	db, mock := newMock(t)
	stamp := time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(q("FROM jobs WHERE id::text = $1 FOR UPDATE")).
		WithArgs("j1").
		WillReturnRows(jobRow("in_progress"))
	mock.ExpectExec(q("UPDATE jobs")).
		WithArgs("j1", "Banners", "", int64(0), 2, int64(500), "on_hold", int64(450), int64(0),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "",
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(q("INSERT INTO job_notes")).
		WithArgs("j1", "waiting on artwork", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("n1"))
	mock.ExpectQuery(q("INSERT INTO job_expenses")).
		WithArgs("j1", "Courier", int64(200), stamp, "", "", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("e1"))
	mock.ExpectQuery(q("INSERT INTO job_material_usages")).
		WithArgs("j1", "m1", 1.5, int64(150), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u1"))
	mock.ExpectQuery(q("INSERT INTO job_timeframe_changes")).
		WithArgs("j1", sqlmock.AnyArg(), nil, sqlmock.AnyArg(), sqlmock.AnyArg(), "client delay", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("t1"))
	mock.ExpectCommit()

	job, stored, err := NewJobRepository(db).Update(context.Background(), "j1", func(j *jobs.Job) (jobs.Changes, error) {
		if j.StartDate == nil || j.EndDate != nil {
			t.Fatalf("expected start date only, got %v/%v", j.StartDate, j.EndDate)
		}
		end := stamp.AddDate(0, 0, 7)
		old := j.StartDate
		j.Status = jobs.StatusOnHold
		j.TotalCost += 350
		return jobs.Changes{
			Notes:            []jobs.Note{{Content: "waiting on artwork"}},
			Expenses:         []jobs.Expense{{Name: "Courier", Cost: 200, Date: stamp}},
			MaterialUsages:   []jobs.MaterialUsage{{MaterialID: "m1", Quantity: 1.5, Cost: 150}},
			TimeframeChanges: []jobs.TimeframeChange{{OldStart: old, NewStart: old, NewEnd: &end, Reason: "client delay"}},
		}, nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if job.Status != jobs.StatusOnHold || job.TotalCost != 450 {
		t.Fatalf("unexpected job: %+v", job)
	}
	if stored.Notes[0].ID != "n1" || stored.Expenses[0].ID != "e1" ||
		stored.MaterialUsages[0].ID != "u1" || stored.TimeframeChanges[0].ID != "t1" {
		t.Fatalf("child ids not returned: %+v", stored)
	}
	if stored.MaterialUsages[0].JobID != "j1" {
		t.Fatalf("child job id not set: %+v", stored.MaterialUsages[0])
	}
}

func TestJobUpdateRollsBack(t *testing.T) {
	t.Run("update func error", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(q("FOR UPDATE")).WithArgs("j1").WillReturnRows(jobRow("cancelled"))
		mock.ExpectRollback()

		_, _, err := NewJobRepository(db).Update(context.Background(), "j1", func(*jobs.Job) (jobs.Changes, error) {
			return jobs.Changes{}, jobs.ErrJobClosed
		})
		if !errors.Is(err, jobs.ErrJobClosed) {
			t.Fatalf("expected ErrJobClosed, got %v", err)
		}
	})

	t.Run("child insert error", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(q("FOR UPDATE")).WithArgs("j1").WillReturnRows(jobRow("in_progress"))
		mock.ExpectExec(q("UPDATE jobs")).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(q("INSERT INTO job_notes")).WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()

		_, _, err := NewJobRepository(db).Update(context.Background(), "j1", func(*jobs.Job) (jobs.Changes, error) {
			return jobs.Changes{Notes: []jobs.Note{{Content: "x"}}}, nil
		})
		if err == nil || !strings.Contains(err.Error(), "insert job note") {
			t.Fatalf("expected note insert error, got %v", err)
		}
	})

	t.Run("missing job", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(q("FOR UPDATE")).WithArgs("nope").WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		_, _, err := NewJobRepository(db).Update(context.Background(), "nope", func(*jobs.Job) (jobs.Changes, error) {
			t.Fatal("update func must not run")
			return jobs.Changes{}, nil
		})
		if !errors.Is(err, jobs.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestJobCreateInsertsInitialChildren(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(q("INSERT INTO jobs")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("j9"))
	mock.ExpectQuery(q("INSERT INTO job_notes")).
		WithArgs("j9", "rush order", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("n9"))
	mock.ExpectCommit()

	job, err := NewJobRepository(db).Create(context.Background(), jobs.Job{
		ClientID: "c1", Description: "Flyers", Type: jobs.TypeInHouse, Status: jobs.StatusPending, TotalUnits: 1,
	}, jobs.Changes{Notes: []jobs.Note{{Content: "rush order"}}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if job.ID != "j9" || job.CreatedAt.IsZero() {
		t.Fatalf("unexpected job: %+v", job)
	}
}

package suppliers_test

import (
	"context"
	"errors"
	"testing"

	"github.com/printworks/platform/internal/domain/suppliers"
	"github.com/printworks/platform/internal/storage/memory"
)

func TestCreateIsIdempotentByPhone(t *testing.T) {
	ctx := context.Background()
	svc := suppliers.NewService(memory.NewSupplierRepository())

	first, created, err := svc.Create(ctx, suppliers.CreateInput{Name: "Paper Co", PhoneNumber: "0733111222"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if !created {
		t.Fatalf("expected first create to report created")
	}

	second, created, err := svc.Create(ctx, suppliers.CreateInput{Name: "Paper Company", PhoneNumber: "254733111222"})
	if err != nil {
		t.Fatalf("second create failed: %v", err)
	}
	if created {
		t.Fatalf("expected existing supplier to be returned")
	}
	if second.ID != first.ID || second.Name != "Paper Co" {
		t.Fatalf("unexpected supplier: %+v", second)
	}
}

func TestCreateRequiresName(t *testing.T) {
	svc := suppliers.NewService(memory.NewSupplierRepository())

	_, _, err := svc.Create(context.Background(), suppliers.CreateInput{PhoneNumber: "0733111222"})
	var verr *suppliers.ValidationError
	if !errors.As(err, &verr) || verr.Field != "name" {
		t.Fatalf("expected name validation error, got %v", err)
	}
}

func TestGetByPhone(t *testing.T) {
	ctx := context.Background()
	svc := suppliers.NewService(memory.NewSupplierRepository())

	created, _, err := svc.Create(ctx, suppliers.CreateInput{Name: "Ink Hub", PhoneNumber: "0799000111"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	found, err := svc.GetByPhone(ctx, "+254-799-000-111")
	if err != nil {
		t.Fatalf("get by phone failed: %v", err)
	}
	if found.ID != created.ID {
		t.Fatalf("expected %s, got %s", created.ID, found.ID)
	}
	if _, err := svc.GetByPhone(ctx, "0799000999"); !errors.Is(err, suppliers.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateRejectsTakenPhone(t *testing.T) {
	ctx := context.Background()
	svc := suppliers.NewService(memory.NewSupplierRepository())

	a, _, _ := svc.Create(ctx, suppliers.CreateInput{Name: "A", PhoneNumber: "0700000001"})
	b, _, _ := svc.Create(ctx, suppliers.CreateInput{Name: "B", PhoneNumber: "0700000002"})

	number := b.PhoneNumber
	if _, err := svc.Update(ctx, a.ID, suppliers.UpdateInput{PhoneNumber: &number}); !errors.Is(err, suppliers.ErrPhoneExists) {
		t.Fatalf("expected ErrPhoneExists, got %v", err)
	}

	empty := " "
	if _, err := svc.Update(ctx, a.ID, suppliers.UpdateInput{Name: &empty}); err == nil {
		t.Fatalf("expected blank name to be rejected")
	}

	list, err := svc.List(ctx, 0, 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 suppliers, got %d", len(list))
	}
}

type referenced map[string]bool

func (r referenced) Referenced(_ context.Context, id string) (bool, error) {
	return r[id], nil
}

func TestGuardDeleteKeepsSuppliersWithMaterials(t *testing.T) {
	ctx := context.Background()
	refs := referenced{}
	svc := suppliers.GuardDelete(suppliers.NewService(memory.NewSupplierRepository()), refs)

	s, _, err := svc.Create(ctx, suppliers.CreateInput{Name: "Ink House", PhoneNumber: "0733000111"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	refs[s.ID] = true
	if err := svc.Delete(ctx, s.ID); !errors.Is(err, suppliers.ErrInUse) {
		t.Fatalf("expected ErrInUse, got %v", err)
	}

	delete(refs, s.ID)
	if err := svc.Delete(ctx, s.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := svc.Get(ctx, s.ID); !errors.Is(err, suppliers.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

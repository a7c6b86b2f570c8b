package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printworks/platform/internal/domain/inventory"
)

func TestPaginate(t *testing.T) {
	list := []int{1, 2, 3, 4, 5}

	assert.Equal(t, []int{1, 2, 3, 4, 5}, paginate(list, 0, 0))
	assert.Equal(t, []int{3, 4}, paginate(list, 2, 2))
	assert.Equal(t, []int{5}, paginate(list, 4, 10))
	assert.Empty(t, paginate(list, 5, 1))
	assert.Equal(t, []int{1}, paginate(list, -3, 1))
}

func TestMaterialMutateCommitsTogether(t *testing.T) {
	ctx := context.Background()
	repo := NewMaterialRepository()
	m, err := repo.Save(ctx, inventory.Material{Code: "BAN-440", Name: "Banner", StockLevel: 10})
	require.NoError(t, err)

	updated, tx, err := repo.Mutate(ctx, m.ID, func(m *inventory.Material) (inventory.Transaction, error) {
		prev := m.StockLevel
		m.StockLevel -= 4
		return inventory.Transaction{Type: inventory.TransactionUsage, Quantity: 4, PreviousStock: prev, NewStock: m.StockLevel}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 6.0, updated.StockLevel)
	assert.Equal(t, m.ID, tx.MaterialID)
	assert.NotEmpty(t, tx.ID)

	boom := errors.New("boom")
	_, _, err = repo.Mutate(ctx, m.ID, func(m *inventory.Material) (inventory.Transaction, error) {
		m.StockLevel = 0
		return inventory.Transaction{}, boom
	})
	require.ErrorIs(t, err, boom)

	got, err := repo.FindByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 6.0, got.StockLevel)

	ledger, err := repo.Transactions(ctx, inventory.TransactionFilter{MaterialID: m.ID})
	require.NoError(t, err)
	assert.Len(t, ledger, 1)

	_, _, err = repo.Mutate(ctx, "missing", nil)
	assert.ErrorIs(t, err, inventory.ErrNotFound)
}

func TestMaterialSaveKeepsStockLevel(t *testing.T) {
	ctx := context.Background()
	repo := NewMaterialRepository()
	stale, err := repo.Save(ctx, inventory.Material{Code: "BAN-440", Name: "Banner", StockLevel: 10})
	require.NoError(t, err)

	_, _, err = repo.Mutate(ctx, stale.ID, func(m *inventory.Material) (inventory.Transaction, error) {
		m.StockLevel = 6
		return inventory.Transaction{Type: inventory.TransactionUsage, Quantity: 4}, nil
	})
	require.NoError(t, err)

	stale.Name = "Banner 440gsm"
	saved, err := repo.Save(ctx, stale)
	require.NoError(t, err)
	assert.Equal(t, 6.0, saved.StockLevel)
	assert.Equal(t, "Banner 440gsm", saved.Name)
}

func TestMaterialCodeUnique(t *testing.T) {
	ctx := context.Background()
	repo := NewMaterialRepository()
	_, err := repo.Save(ctx, inventory.Material{Code: "INK-C"})
	require.NoError(t, err)

	_, err = repo.Save(ctx, inventory.Material{Code: "INK-C"})
	assert.ErrorIs(t, err, inventory.ErrCodeExists)
}

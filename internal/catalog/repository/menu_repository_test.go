package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pizzacall/internal/testutil"
)

// Unit Tests

func TestNewMySQLMenuRepository(t *testing.T) {
	db := &sql.DB{}
	repo := NewMySQLMenuRepository(db)

	assert.NotNil(t, repo)
	assert.Equal(t, db, repo.db)
}

// Integration Tests

func TestMenuRepository_FindAvailableByTenant_FiltersAndOrders(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SetupTestTables(t, db)
	defer testutil.CleanupTestDB(t, db)

	large := "Large"
	testutil.InsertMenuItem(t, db, "p-1", "Margherita", nil, 9.5, true)
	testutil.InsertMenuItem(t, db, "p-1", "Hawaienne", nil, 11, false)
	testutil.InsertMenuItem(t, db, "p-1", "Regina", &large, 12, true)
	testutil.InsertMenuItem(t, db, "p-2", "Calzone", nil, 10, true)

	repo := NewMySQLMenuRepository(db)

	items, err := repo.FindAvailableByTenant(context.Background(), "p-1")
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "Margherita", items[0].Name)
	assert.Nil(t, items[0].Size)
	assert.Equal(t, 9.5, items[0].Price)
	assert.True(t, items[0].IsAvailable)

	assert.Equal(t, "Regina", items[1].Name)
	require.NotNil(t, items[1].Size)
	assert.Equal(t, "Large", *items[1].Size)

	for _, item := range items {
		assert.Equal(t, "p-1", item.TenantID)
	}
}

func TestMenuRepository_FindAvailableByTenant_Empty(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SetupTestTables(t, db)
	defer testutil.CleanupTestDB(t, db)

	repo := NewMySQLMenuRepository(db)

	items, err := repo.FindAvailableByTenant(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Empty(t, items)
}

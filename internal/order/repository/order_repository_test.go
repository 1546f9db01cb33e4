package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pizzacall/internal/domain"
	"pizzacall/internal/testutil"
)

// Unit Tests

func TestNewMySQLOrderRepository(t *testing.T) {
	db := &sql.DB{}
	repo := NewMySQLOrderRepository(db)

	assert.NotNil(t, repo)
	assert.Equal(t, db, repo.db)
}

// Integration Tests

func TestOrderRepository_Insert_Success(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SetupTestTables(t, db)
	defer testutil.CleanupTestDB(t, db)

	repo := NewMySQLOrderRepository(db)
	phone := "+33612345678"

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)

	id, err := repo.Insert(context.Background(), tx, domain.Order{
		TenantID:      "p-1",
		CallID:        "CA123",
		CustomerPhone: &phone,
		TotalPrice:    19.0,
		Status:        domain.OrderStatusConfirmed,
		CreatedAt:     time.Now().UTC().Truncate(time.Second),
	})
	require.NoError(t, err)
	assert.Greater(t, id, uint(0))
	require.NoError(t, tx.Commit())

	var (
		tenantID, callID, status string
		customerPhone            sql.NullString
		total                    float64
	)
	err = db.QueryRow(`SELECT pizzeriaId, callSid, customerPhone, status, totalPrice FROM Orders WHERE id = ?`, id).
		Scan(&tenantID, &callID, &customerPhone, &status, &total)
	require.NoError(t, err)

	assert.Equal(t, "p-1", tenantID)
	assert.Equal(t, "CA123", callID)
	assert.Equal(t, phone, customerPhone.String)
	assert.Equal(t, domain.OrderStatusConfirmed, status)
	assert.Equal(t, 19.0, total)
}

func TestOrderRepository_Insert_NullPhone(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SetupTestTables(t, db)
	defer testutil.CleanupTestDB(t, db)

	repo := NewMySQLOrderRepository(db)

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)

	id, err := repo.Insert(context.Background(), tx, domain.Order{
		TenantID:   "p-1",
		CallID:     "CA124",
		TotalPrice: 9.5,
		Status:     domain.OrderStatusConfirmed,
		CreatedAt:  time.Now().UTC(),
	})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	var customerPhone sql.NullString
	err = db.QueryRow(`SELECT customerPhone FROM Orders WHERE id = ?`, id).Scan(&customerPhone)
	require.NoError(t, err)
	assert.False(t, customerPhone.Valid)
}

func TestOrderRepository_Insert_RollbackLeavesNoRow(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SetupTestTables(t, db)
	defer testutil.CleanupTestDB(t, db)

	repo := NewMySQLOrderRepository(db)

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)

	_, err = repo.Insert(context.Background(), tx, domain.Order{
		TenantID:   "p-1",
		CallID:     "CA125",
		TotalPrice: 9.5,
		Status:     domain.OrderStatusConfirmed,
		CreatedAt:  time.Now().UTC(),
	})
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM Orders WHERE callSid = 'CA125'`).Scan(&count))
	assert.Equal(t, 0, count)
}

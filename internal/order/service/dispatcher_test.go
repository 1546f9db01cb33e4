package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pizzacall/internal/config"
	"pizzacall/internal/domain"
	apperrors "pizzacall/internal/errors"
	"pizzacall/internal/order/repository"
	"pizzacall/internal/testutil"
)

// Mock implementations
type mockTransactionManager struct {
	calls       int
	BeginTxFunc func(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

func (m *mockTransactionManager) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	m.calls++
	return m.BeginTxFunc(ctx, opts)
}

type mockOrderRepository struct {
	InsertFunc func(ctx context.Context, tx *sql.Tx, order domain.Order) (uint, error)
}

func (m *mockOrderRepository) Insert(ctx context.Context, tx *sql.Tx, order domain.Order) (uint, error) {
	return m.InsertFunc(ctx, tx, order)
}

type mockOrderItemRepository struct {
	InsertAllFunc func(ctx context.Context, tx *sql.Tx, orderID uint, items []domain.OrderItem) error
}

func (m *mockOrderItemRepository) InsertAll(ctx context.Context, tx *sql.Tx, orderID uint, items []domain.OrderItem) error {
	return m.InsertAllFunc(ctx, tx, orderID, items)
}

func failingTxManager(t *testing.T) *mockTransactionManager {
	return &mockTransactionManager{
		BeginTxFunc: func(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
			t.Fatalf("storage must not be touched")
			return nil, nil
		},
	}
}

func newTestDispatcher(db TransactionManager, policy string) *Dispatcher {
	return NewDispatcher(db, &mockOrderRepository{}, &mockOrderItemRepository{}, zap.NewNop(), policy, 5*time.Second)
}

func margheritaRequest() domain.OrderCommitRequest {
	return domain.OrderCommitRequest{
		Items:      []domain.OrderItem{{Name: "Margherita", Quantity: 2, Price: 9.5}},
		TotalPrice: 19.0,
		CallID:     "CA123",
	}
}

func TestCommit_EmptyItemsRejectedBeforeStorage(t *testing.T) {
	txMgr := failingTxManager(t)
	d := newTestDispatcher(txMgr, config.TotalPolicyTrust)

	order, err := d.Commit(context.Background(), "p-1", domain.OrderCommitRequest{TotalPrice: 0})

	assert.Nil(t, order)
	ve, ok := apperrors.IsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "items", ve.Details[0].Field)
	assert.Equal(t, 0, txMgr.calls)
}

func TestCommit_InvalidItemsRejected(t *testing.T) {
	d := newTestDispatcher(failingTxManager(t), config.TotalPolicyTrust)

	_, err := d.Commit(context.Background(), "p-1", domain.OrderCommitRequest{
		Items: []domain.OrderItem{
			{Name: "", Quantity: 1, Price: 9.5},
			{Name: "Regina", Quantity: 0, Price: 11},
			{Name: "Calzone", Quantity: 1, Price: -1},
		},
		TotalPrice: 20,
	})

	ve, ok := apperrors.IsValidationError(err)
	require.True(t, ok)

	fields := make([]string, 0, len(ve.Details))
	for _, d := range ve.Details {
		fields = append(fields, d.Field)
	}
	assert.ElementsMatch(t, []string{"items[0].name", "items[1].quantity", "items[2].price"}, fields)
}

func TestCommit_MissingTenantRejected(t *testing.T) {
	d := newTestDispatcher(failingTxManager(t), config.TotalPolicyTrust)

	_, err := d.Commit(context.Background(), "", margheritaRequest())

	_, ok := apperrors.IsValidationError(err)
	assert.True(t, ok)
}

func TestCommit_StrictPolicyRejectsTotalMismatch(t *testing.T) {
	d := newTestDispatcher(failingTxManager(t), config.TotalPolicyStrict)

	req := margheritaRequest()
	req.TotalPrice = 15.0

	_, err := d.Commit(context.Background(), "p-1", req)

	ve, ok := apperrors.IsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "totalPrice", ve.Details[0].Field)
}

func TestCommit_BeginTxFailureIsNotRetried(t *testing.T) {
	txMgr := &mockTransactionManager{
		BeginTxFunc: func(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
			return nil, errors.New("connection refused")
		},
	}
	d := newTestDispatcher(txMgr, config.TotalPolicyTrust)

	order, err := d.Commit(context.Background(), "p-1", margheritaRequest())

	assert.Nil(t, order)
	_, ok := apperrors.IsInternalError(err)
	assert.True(t, ok)
	assert.Equal(t, 1, txMgr.calls)
}

// Integration Tests

func countOrders(t *testing.T, db *sql.DB, callID string) int {
	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM Orders WHERE callSid = ?`, callID).Scan(&count))
	return count
}

func TestCommit_PersistsExactlyOneConfirmedOrder(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SetupTestTables(t, db)
	defer testutil.CleanupTestDB(t, db)

	d := NewDispatcher(db, repository.NewMySQLOrderRepository(db), repository.NewMySQLOrderItemRepository(db), zap.NewNop(), config.TotalPolicyTrust, 5*time.Second)

	req := margheritaRequest()
	req.CustomerPhone = "+33612345678"

	order, err := d.Commit(context.Background(), "p-1", req)
	require.NoError(t, err)
	assert.Greater(t, order.ID, uint(0))
	assert.Equal(t, "p-1", order.TenantID)
	assert.Equal(t, 19.0, order.TotalPrice)
	assert.Equal(t, domain.OrderStatusConfirmed, order.Status)

	assert.Equal(t, 1, countOrders(t, db, "CA123"))

	var (
		tenantID, status string
		total            float64
		itemCount        int
	)
	require.NoError(t, db.QueryRow(`SELECT pizzeriaId, status, totalPrice FROM Orders WHERE id = ?`, order.ID).Scan(&tenantID, &status, &total))
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM OrderItems WHERE orderId = ?`, order.ID).Scan(&itemCount))

	assert.Equal(t, "p-1", tenantID)
	assert.Equal(t, "confirmed", status)
	assert.Equal(t, 19.0, total)
	assert.Equal(t, 1, itemCount)
}

func TestCommit_TrustPolicyPersistsDeclaredTotal(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SetupTestTables(t, db)
	defer testutil.CleanupTestDB(t, db)

	d := NewDispatcher(db, repository.NewMySQLOrderRepository(db), repository.NewMySQLOrderItemRepository(db), zap.NewNop(), config.TotalPolicyTrust, 5*time.Second)

	req := margheritaRequest()
	req.TotalPrice = 17.5

	order, err := d.Commit(context.Background(), "p-1", req)
	require.NoError(t, err)

	var total float64
	require.NoError(t, db.QueryRow(`SELECT totalPrice FROM Orders WHERE id = ?`, order.ID).Scan(&total))
	assert.Equal(t, 17.5, total)
}

func TestCommit_KeepsSuppliedTotalUnrounded(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SetupTestTables(t, db)
	defer testutil.CleanupTestDB(t, db)

	d := NewDispatcher(db, repository.NewMySQLOrderRepository(db), repository.NewMySQLOrderItemRepository(db), zap.NewNop(), config.TotalPolicyTrust, 5*time.Second)

	req := margheritaRequest()
	req.TotalPrice = 19.004

	order, err := d.Commit(context.Background(), "p-1", req)
	require.NoError(t, err)
	assert.Equal(t, 19.004, order.TotalPrice)

	// The column scale is the only rounding applied.
	var total float64
	require.NoError(t, db.QueryRow(`SELECT totalPrice FROM Orders WHERE id = ?`, order.ID).Scan(&total))
	assert.Equal(t, 19.0, total)
}

func TestCommit_ItemFailureLeavesNoPartialWrite(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SetupTestTables(t, db)
	defer testutil.CleanupTestDB(t, db)

	itemRepo := &mockOrderItemRepository{
		InsertAllFunc: func(ctx context.Context, tx *sql.Tx, orderID uint, items []domain.OrderItem) error {
			return errors.New("disk full")
		},
	}
	d := NewDispatcher(db, repository.NewMySQLOrderRepository(db), itemRepo, zap.NewNop(), config.TotalPolicyTrust, 5*time.Second)

	_, err := d.Commit(context.Background(), "p-1", margheritaRequest())
	require.Error(t, err)

	assert.Equal(t, 0, countOrders(t, db, "CA123"))
}

package service

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"pizzacall/internal/config"
	"pizzacall/internal/domain"
	"pizzacall/internal/errors"
)

const maxOrderItems = 50

type TransactionManager interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

type OrderRepository interface {
	Insert(ctx context.Context, tx *sql.Tx, order domain.Order) (uint, error)
}

type OrderItemRepository interface {
	InsertAll(ctx context.Context, tx *sql.Tx, orderID uint, items []domain.OrderItem) error
}

// Dispatcher validates and persists the orders the dialogue engine commits.
// Persistence is attempted exactly once per request: a retried insert could
// duplicate a caller's order.
type Dispatcher struct {
	db            TransactionManager
	orderRepo     OrderRepository
	orderItemRepo OrderItemRepository
	logger        *zap.Logger
	totalPolicy   string
	commitTimeout time.Duration
	now           func() time.Time
}

func NewDispatcher(
	db TransactionManager,
	orderRepo OrderRepository,
	orderItemRepo OrderItemRepository,
	logger *zap.Logger,
	totalPolicy string,
	commitTimeout time.Duration,
) *Dispatcher {
	return &Dispatcher{
		db:            db,
		orderRepo:     orderRepo,
		orderItemRepo: orderItemRepo,
		logger:        logger,
		totalPolicy:   totalPolicy,
		commitTimeout: commitTimeout,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (d *Dispatcher) Commit(ctx context.Context, tenantID string, req domain.OrderCommitRequest) (*domain.Order, error) {
	logger := d.logger.With(zap.String("pizzeriaId", tenantID), zap.String("callSid", req.CallID))

	// Bloque 1: Validación previa, sin tocar la base
	if err := d.validate(tenantID, req, logger); err != nil {
		logger.Warn("order rejected", zap.Error(err))
		return nil, err
	}

	order := domain.Order{
		TenantID:   tenantID,
		CallID:     req.CallID,
		Items:      append([]domain.OrderItem(nil), req.Items...),
		TotalPrice: req.TotalPrice,
		Status:     domain.OrderStatusConfirmed,
		CreatedAt:  d.now().Truncate(time.Second),
	}
	if req.CustomerPhone != "" {
		phone := req.CustomerPhone
		order.CustomerPhone = &phone
	}

	// Bloque 2: Transacción con timeout
	txCtx, cancel := context.WithTimeout(ctx, d.commitTimeout)
	defer cancel()

	tx, err := d.db.BeginTx(txCtx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		logger.Error("failed to begin transaction", zap.Error(err))
		return nil, errors.NewInternalError("persisting order", err)
	}
	// Rollback is a no-op once the transaction has been committed.
	defer tx.Rollback()

	orderID, err := d.orderRepo.Insert(txCtx, tx, order)
	if err != nil {
		logger.Error("failed to insert order", zap.Error(err))
		return nil, errors.NewInternalError("persisting order", err)
	}

	if err := d.orderItemRepo.InsertAll(txCtx, tx, orderID, order.Items); err != nil {
		logger.Error("failed to insert order items", zap.Uint("orderId", orderID), zap.Int("itemCount", len(order.Items)), zap.Error(err))
		return nil, errors.NewInternalError("persisting order", err)
	}

	// Bloque 3: Commit
	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", zap.Uint("orderId", orderID), zap.Error(err))
		return nil, errors.NewInternalError("persisting order", err)
	}

	order.ID = orderID
	logger.Info("order confirmed", zap.Uint("orderId", orderID), zap.Int("itemCount", len(order.Items)), zap.Float64("totalPrice", order.TotalPrice))

	return &order, nil
}

func (d *Dispatcher) validate(tenantID string, req domain.OrderCommitRequest, logger *zap.Logger) error {
	var details []errors.ValidationDetail

	if tenantID == "" {
		details = append(details, errors.ValidationDetail{Field: "pizzeriaId", Message: "pizzeriaId is required"})
	}

	if len(req.Items) == 0 {
		details = append(details, errors.ValidationDetail{Field: "items", Message: "items must not be empty"})
	}

	if len(req.Items) > maxOrderItems {
		details = append(details, errors.ValidationDetail{Field: "items", Message: "items exceeds maximum of " + strconv.Itoa(maxOrderItems)})
	}

	for idx, item := range req.Items {
		prefix := "items[" + strconv.Itoa(idx) + "]"
		if strings.TrimSpace(item.Name) == "" {
			details = append(details, errors.ValidationDetail{Field: prefix + ".name", Message: "name is required"})
		}
		if item.Quantity < 1 {
			details = append(details, errors.ValidationDetail{Field: prefix + ".quantity", Message: "quantity must be at least 1"})
		}
		if item.Price < 0 || math.IsNaN(item.Price) || math.IsInf(item.Price, 0) {
			details = append(details, errors.ValidationDetail{Field: prefix + ".price", Message: "price must be a non-negative number"})
		}
	}

	if req.TotalPrice < 0 || math.IsNaN(req.TotalPrice) || math.IsInf(req.TotalPrice, 0) {
		details = append(details, errors.ValidationDetail{Field: "totalPrice", Message: "totalPrice must be a non-negative number"})
	}

	if len(details) > 0 {
		return errors.NewValidationError("invalid order", details...)
	}

	itemsTotal := req.ItemsTotal()
	if math.Abs(itemsTotal-domain.RoundCents(req.TotalPrice)) >= 0.01 {
		if d.totalPolicy == config.TotalPolicyStrict {
			return errors.NewValidationError("invalid order", errors.ValidationDetail{
				Field:   "totalPrice",
				Message: fmt.Sprintf("totalPrice %.2f does not match the sum of items %.2f", req.TotalPrice, itemsTotal),
			})
		}
		logger.Warn("declared total differs from item subtotals", zap.Float64("totalPrice", req.TotalPrice), zap.Float64("itemsTotal", itemsTotal))
	}

	return nil
}

package order

import (
	"database/sql"

	"go.uber.org/zap"

	"pizzacall/internal/config"
	orderrepo "pizzacall/internal/order/repository"
	"pizzacall/internal/order/service"
)

func NewModule(db *sql.DB, cfg *config.Config, logger *zap.Logger) *service.Dispatcher {
	orderRepo := orderrepo.NewMySQLOrderRepository(db)
	orderItemRepo := orderrepo.NewMySQLOrderItemRepository(db)

	return service.NewDispatcher(
		db,
		orderRepo,
		orderItemRepo,
		logger,
		cfg.Order.TotalPolicy,
		cfg.Order.CommitTimeout,
	)
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"pizzacall/internal/domain"
)

type MySQLOrderItemRepository struct {
	db *sql.DB
}

func NewMySQLOrderItemRepository(db *sql.DB) *MySQLOrderItemRepository {
	return &MySQLOrderItemRepository{db: db}
}

// InsertAll writes every line of an order in a single multi-row statement.
// An empty slice is a no-op.
func (r *MySQLOrderItemRepository) InsertAll(ctx context.Context, tx *sql.Tx, orderID uint, items []domain.OrderItem) error {
	if len(items) == 0 {
		return nil
	}

	placeholders := make([]string, 0, len(items))
	args := make([]any, 0, len(items)*4)
	for _, item := range items {
		placeholders = append(placeholders, "(?, ?, ?, ?)")
		args = append(args, orderID, item.Name, item.Quantity, item.Price)
	}

	query := `INSERT INTO OrderItems (orderId, name, quantity, price) VALUES ` + strings.Join(placeholders, ", ")

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("inserting %d order items: %w", len(items), err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if affected != int64(len(items)) {
		return fmt.Errorf("inserted %d order items, expected %d", affected, len(items))
	}

	return nil
}

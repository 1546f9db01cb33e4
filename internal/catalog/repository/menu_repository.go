package repository

import (
	"context"
	"database/sql"
	"fmt"

	"pizzacall/internal/domain"
)

type MySQLMenuRepository struct {
	db *sql.DB
}

func NewMySQLMenuRepository(db *sql.DB) *MySQLMenuRepository {
	return &MySQLMenuRepository{db: db}
}

// FindAvailableByTenant returns the tenant's available items ordered by id so
// that two loads of an unchanged menu render identically.
func (r *MySQLMenuRepository) FindAvailableByTenant(ctx context.Context, tenantID string) ([]domain.MenuItem, error) {
	query := `
		SELECT id, pizzeriaId, name, description, size, price, isAvailable
		FROM MenuItems
		WHERE pizzeriaId = ?
		  AND isAvailable = 1
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("querying menu items: %w", err)
	}
	defer rows.Close()

	var items []domain.MenuItem
	for rows.Next() {
		var item domain.MenuItem
		err := rows.Scan(
			&item.ID, &item.TenantID, &item.Name, &item.Description,
			&item.Size, &item.Price, &item.IsAvailable,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning menu item row: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating menu item rows: %w", err)
	}

	return items, nil
}

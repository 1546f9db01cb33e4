package repository

import (
	"context"
	"database/sql"
	"fmt"

	"pizzacall/internal/domain"
	"pizzacall/internal/errors"
)

type MySQLTenantRepository struct {
	db *sql.DB
}

func NewMySQLTenantRepository(db *sql.DB) *MySQLTenantRepository {
	return &MySQLTenantRepository{db: db}
}

func (r *MySQLTenantRepository) FindByPhoneNumber(ctx context.Context, phoneNumber string) (*domain.Tenant, error) {
	query := `
		SELECT id, name, phoneNumber, createdAt
		FROM Pizzerias
		WHERE phoneNumber = ?
	`

	var tenant domain.Tenant
	err := r.db.QueryRowContext(ctx, query, phoneNumber).Scan(
		&tenant.ID, &tenant.Name, &tenant.PhoneNumber, &tenant.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("pizzeria with phone number %s not found", phoneNumber))
	}
	if err != nil {
		return nil, fmt.Errorf("querying pizzeria by phone number: %w", err)
	}

	return &tenant, nil
}

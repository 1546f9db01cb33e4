package testutil

import (
	"database/sql"
	"fmt"
	"testing"

	_ "github.com/go-sql-driver/mysql"
)

// SetupTestDB abre la base de datos de prueba.
// Espera una BD MySQL en localhost:3306 llamada 'pizzacall_test'; si no responde, el test se salta.
func SetupTestDB(t *testing.T) *sql.DB {
	dsn := "root:@tcp(localhost:3306)/pizzacall_test?parseTime=true"
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	err = db.Ping()
	if err != nil {
		t.Skipf("test database not available: %v", err)
	}

	return db
}

// CleanupTestDB limpia la BD de prueba
func CleanupTestDB(t *testing.T, db *sql.DB) {
	if db == nil {
		return
	}

	tables := []string{"OrderItems", "Orders", "MenuItems", "Pizzerias"}
	for _, table := range tables {
		_, err := db.Exec(fmt.Sprintf("DELETE FROM %s", table))
		if err != nil {
			t.Logf("failed to clean table %s: %v", table, err)
		}
	}

	db.Close()
}

// SetupTestTables crea las tablas necesarias para los tests
func SetupTestTables(t *testing.T, db *sql.DB) {
	createPizzeriasTable := `
	CREATE TABLE IF NOT EXISTS Pizzerias (
		id VARCHAR(36) NOT NULL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		phoneNumber VARCHAR(30) NOT NULL UNIQUE,
		createdAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`

	createMenuItemsTable := `
	CREATE TABLE IF NOT EXISTS MenuItems (
		id INT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		pizzeriaId VARCHAR(36) NOT NULL,
		name VARCHAR(255) NOT NULL,
		description TEXT,
		size VARCHAR(50),
		price DECIMAL(10,2) NOT NULL,
		isAvailable TINYINT(1) NOT NULL DEFAULT 1,
		INDEX idx_pizzeria_available (pizzeriaId, isAvailable)
	)`

	createOrdersTable := `
	CREATE TABLE IF NOT EXISTS Orders (
		id INT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		pizzeriaId VARCHAR(36) NOT NULL,
		callSid VARCHAR(64) NOT NULL,
		customerPhone VARCHAR(30),
		totalPrice DECIMAL(10,2) NOT NULL,
		status VARCHAR(20) NOT NULL,
		createdAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_pizzeria (pizzeriaId),
		INDEX idx_call (callSid)
	)`

	createOrderItemsTable := `
	CREATE TABLE IF NOT EXISTS OrderItems (
		id INT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		orderId INT UNSIGNED NOT NULL,
		name VARCHAR(255) NOT NULL,
		quantity INT NOT NULL,
		price DECIMAL(10,2) NOT NULL,
		FOREIGN KEY (orderId) REFERENCES Orders(id) ON DELETE CASCADE,
		INDEX idx_order (orderId)
	)`

	tables := []struct {
		name  string
		query string
	}{
		{"Pizzerias", createPizzeriasTable},
		{"MenuItems", createMenuItemsTable},
		{"Orders", createOrdersTable},
		{"OrderItems", createOrderItemsTable},
	}

	for _, tbl := range tables {
		_, err := db.Exec(tbl.query)
		if err != nil {
			t.Logf("failed to create table %s: %v", tbl.name, err)
		}
	}
}

// InsertPizzeria registra una pizzeria de prueba.
func InsertPizzeria(t *testing.T, db *sql.DB, id, name, phone string) {
	_, err := db.Exec(`INSERT INTO Pizzerias (id, name, phoneNumber) VALUES (?, ?, ?)`, id, name, phone)
	if err != nil {
		t.Fatalf("failed to insert pizzeria %s: %v", id, err)
	}
}

// InsertMenuItem registra un item de menú de prueba.
func InsertMenuItem(t *testing.T, db *sql.DB, pizzeriaID, name string, size *string, price float64, available bool) {
	_, err := db.Exec(
		`INSERT INTO MenuItems (pizzeriaId, name, size, price, isAvailable) VALUES (?, ?, ?, ?, ?)`,
		pizzeriaID, name, size, price, available,
	)
	if err != nil {
		t.Fatalf("failed to insert menu item %s: %v", name, err)
	}
}

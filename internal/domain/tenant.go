package domain

import "time"

// Tenant is a pizzeria reachable through one dedicated phone number.
type Tenant struct {
	ID          string
	Name        string
	PhoneNumber string
	CreatedAt   time.Time
}

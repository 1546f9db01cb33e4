package domain

import (
	"math"
	"time"
)

const (
	OrderStatusConfirmed = "confirmed"
	OrderStatusFailed    = "failed"
)

type OrderItem struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

func (i OrderItem) Subtotal() float64 {
	return float64(i.Quantity) * i.Price
}

// OrderCommitRequest is what the dialogue engine asks to persist. CallID and
// CustomerPhone are filled in by the call session, never by the engine.
type OrderCommitRequest struct {
	Items         []OrderItem
	TotalPrice    float64
	CallID        string
	CustomerPhone string
}

// ItemsTotal sums the item subtotals, rounded to cents.
func (r OrderCommitRequest) ItemsTotal() float64 {
	total := 0.0
	for _, item := range r.Items {
		total += item.Subtotal()
	}
	return RoundCents(total)
}

type Order struct {
	ID            uint
	TenantID      string
	CallID        string
	CustomerPhone *string
	Items         []OrderItem
	TotalPrice    float64
	Status        string
	CreatedAt     time.Time
}

func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

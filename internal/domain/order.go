package domain

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderPendingPayment OrderStatus = "pending_payment"
	OrderPaid           OrderStatus = "paid"
	OrderCanceled       OrderStatus = "canceled"
	OrderRefunded       OrderStatus = "refunded"
)

type Order struct {
	ID              uuid.UUID
	UserID          string
	ShowtimeID      string
	Status          OrderStatus
	SubtotalCents   int64
	ServiceFeeCents int64
	TaxCents        int64
	TotalCents      int64
	Currency        string
	CreatedAt       time.Time
	Items           []OrderItem

	// ItemCount is populated by list queries that skip loading items.
	ItemCount int
}

type OrderItem struct {
	SeatID     string
	Tier       string
	PriceCents int64
	TaxCents   int64
}

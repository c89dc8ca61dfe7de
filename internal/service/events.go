package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderItemEvent struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type OrderPaidEvent struct {
	OrderID       uuid.UUID        `json:"order_id"`
	OrderNumber   string           `json:"order_number"`
	UserID        uuid.UUID        `json:"user_id"`
	CustomerEmail string           `json:"customer_email,omitempty"`
	CustomerName  string           `json:"customer_name,omitempty"`
	Items         []OrderItemEvent `json:"items"`
	Total         decimal.Decimal  `json:"total"`
	VAT           decimal.Decimal  `json:"vat"`
	Currency      string           `json:"currency"`
	PaidAt        time.Time        `json:"paid_at"`
}

type OrderCancelledEvent struct {
	OrderID       uuid.UUID `json:"order_id"`
	OrderNumber   string    `json:"order_number"`
	UserID        uuid.UUID `json:"user_id"`
	Reason        string    `json:"reason,omitempty"`
	StockReleased bool      `json:"stock_released"`
	CancelledAt   time.Time `json:"cancelled_at"`
}

type ReconciliationRequiredEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Note        string    `json:"note"`
	FlaggedAt   time.Time `json:"flagged_at"`
}

type EventBus interface {
	PublishOrderPaid(ctx context.Context, e OrderPaidEvent) error
	PublishOrderCancelled(ctx context.Context, e OrderCancelledEvent) error
	PublishReconciliationRequired(ctx context.Context, e ReconciliationRequiredEvent) error
}

package service

import (
	"context"
	"time"

	"bottlestore-service/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CreateOrderItem struct {
	ProductID uuid.UUID
	Quantity  int
}

// CheckoutInput — адрес и пожелания по доставке. Стоимость доставки клиент не передаёт:
// она берётся из конфигурации сервиса.
type CheckoutInput struct {
	Items                []CreateOrderItem // пусто — оформляем содержимое корзины
	AddressID            *uuid.UUID        // адрес из адресной книги, приоритетнее DeliveryAddress
	DeliveryAddress      models.DeliveryAddress
	DeliveryInstructions string
	DeliveryDate         *time.Time
	Notes                string
}

type CheckoutResult struct {
	Order        *models.Order
	ClientSecret string
}

type ListFilter struct {
	UserID                 *uuid.UUID
	Status                 *models.OrderStatus
	PaymentStatus          *models.PaymentStatus
	ReconciliationRequired *bool
	Limit                  int
	Offset                 int
}

type OrderConfig struct {
	DeliveryFee    decimal.Decimal
	Currency       string // ISO 4217, в нижнем регистре для провайдера
	SubmitThrottle time.Duration
}

type OrderService interface {
	Checkout(ctx context.Context, in CheckoutInput, meta ClientMeta) (*CheckoutResult, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, f ListFilter) ([]models.Order, int64, error)
	GetPaymentStatus(ctx context.Context, id uuid.UUID) (*models.Order, error)
	CancelOrder(ctx context.Context, id uuid.UUID, reason *string) (*models.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus, notes *string) (*models.Order, error)
	ResolveReconciliation(ctx context.Context, id uuid.UUID, note string) (*models.Order, error)
}

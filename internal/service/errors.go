package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrValidation   = errors.New("validation error")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	ErrUserNotFound       = errors.New("user not found")
	ErrEmailExists        = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidDateOfBirth = errors.New("invalid date of birth")
	ErrTooManyRequests    = errors.New("too many requests")

	ErrAgeVerificationRequired = errors.New("age verification required")

	ErrProductNotFound    = errors.New("product not found")
	ErrProductUnavailable = errors.New("product is not available")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvalidQuantity    = errors.New("quantity must be > 0")
	ErrInvalidCategory    = errors.New("invalid category")
	ErrInvalidPrice       = errors.New("price must be >= 0")
	ErrStockUnderflow     = errors.New("stock adjustment would make stock negative")

	ErrAddressNotFound = errors.New("address not found")
	ErrInvalidAddress  = errors.New("invalid address")

	ErrCartEmpty        = errors.New("cart is empty")
	ErrCartItemNotFound = errors.New("cart item not found")

	ErrEmptyItems              = errors.New("empty items")
	ErrOrderNotFound           = errors.New("order not found")
	ErrOrderNotCancellable     = errors.New("order cannot be cancelled in its current status")
	ErrInvalidStatus           = errors.New("invalid order status")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrDeliveryUnavailable     = errors.New("delivery not available at requested time")
	ErrDeliveryAddressRequired = errors.New("delivery address is required")
	ErrPaymentUnavailable      = errors.New("payment processor unavailable")
	ErrNotFlaggedForReconcile  = errors.New("order is not flagged for reconciliation")
	ErrOrderTotalsMismatch     = errors.New("order items do not match order subtotal")
	ErrInvalidWebhookSignature = errors.New("invalid webhook signature")
	ErrUnsupportedWebhookEvent = errors.New("unsupported webhook event")
)

// InsufficientStockError — остатка не хватает на запрошенное количество.
type InsufficientStockError struct {
	ProductID uuid.UUID
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.Name, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// LineError указывает, какая позиция заказа не прошла проверку.
type LineError struct {
	Line      int
	ProductID uuid.UUID
	Err       error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("item %d (product %s): %v", e.Line+1, e.ProductID, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// ShortLine — позиция, которую не удалось списать при подтверждении оплаты.
type ShortLine struct {
	ProductID uuid.UUID
	Name      string
	Requested int
}

type StockShortfallError struct {
	Lines []ShortLine
}

func (e *StockShortfallError) Error() string {
	msg := "stock shortfall:"
	for i, l := range e.Lines {
		if i > 0 {
			msg += ","
		}
		msg += fmt.Sprintf(" %s x%d", l.Name, l.Requested)
	}
	return msg
}

func (e *StockShortfallError) Unwrap() error { return ErrInsufficientStock }

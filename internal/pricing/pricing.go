// Package pricing считает суммы заказа. Все вычисления в decimal, без float.
package pricing

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	VATRate = decimal.RequireFromString("0.15")

	vatDivisor = decimal.NewFromInt(1).Add(VATRate)
	hundred    = decimal.NewFromInt(100)
)

var (
	ErrNegativeAmount    = errors.New("amount must not be negative")
	ErrInvalidQuantity   = errors.New("quantity must be > 0")
	ErrNotWholeMinorUnit = errors.New("amount has more than 2 decimal places")
)

// Line — позиция для расчёта: цена за единицу с НДС и количество.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

type Totals struct {
	Subtotal    decimal.Decimal
	DeliveryFee decimal.Decimal
	Total       decimal.Decimal
	VAT         decimal.Decimal
}

// Round2 — округление до копеек half-up (от нуля на .5).
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// VATComponent выделяет НДС из суммы, в которую он уже включён.
func VATComponent(totalInclusive decimal.Decimal) decimal.Decimal {
	net := totalInclusive.DivRound(vatDivisor, 16)
	return Round2(totalInclusive.Sub(net))
}

func LineSubtotal(unitPrice decimal.Decimal, qty int) decimal.Decimal {
	return Round2(unitPrice.Mul(decimal.NewFromInt(int64(qty))))
}

// Compute — единственная формула итогов заказа: total = Σ line + delivery, НДС из total.
func Compute(lines []Line, deliveryFee decimal.Decimal) (Totals, error) {
	if deliveryFee.IsNegative() {
		return Totals{}, ErrNegativeAmount
	}

	subtotal := decimal.Zero
	for _, l := range lines {
		if l.Quantity <= 0 {
			return Totals{}, ErrInvalidQuantity
		}
		if l.UnitPrice.IsNegative() {
			return Totals{}, ErrNegativeAmount
		}
		subtotal = subtotal.Add(LineSubtotal(l.UnitPrice, l.Quantity))
	}

	fee := Round2(deliveryFee)
	total := subtotal.Add(fee)
	return Totals{
		Subtotal:    subtotal,
		DeliveryFee: fee,
		Total:       total,
		VAT:         VATComponent(total),
	}, nil
}

// ToMinorUnits переводит сумму в центы. Сумма с дробью меньше цента — ошибка, а не округление.
func ToMinorUnits(amount decimal.Decimal) (int64, error) {
	if amount.IsNegative() {
		return 0, ErrNegativeAmount
	}
	cents := amount.Mul(hundred)
	if !cents.Equal(cents.Truncate(0)) {
		return 0, ErrNotWholeMinorUnit
	}
	return cents.IntPart(), nil
}

func FromMinorUnits(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

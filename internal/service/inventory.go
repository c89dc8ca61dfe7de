package service

import (
	"context"
	"sort"
	"time"

	"bottlestore-service/internal/models"
	"bottlestore-service/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// InventoryLedger — единственное место, где меняется products.stock_quantity.
type InventoryLedger struct {
	repo *repository.Repository
	log  *zap.Logger
	now  func() time.Time
}

func NewInventoryLedger(repo *repository.Repository, log *zap.Logger) *InventoryLedger {
	return &InventoryLedger{repo: repo, log: log, now: time.Now}
}

// CheckAvailability — проверка без удержания остатка.
func (l *InventoryLedger) CheckAvailability(p *models.Product, requested int) error {
	if requested <= 0 {
		return ErrInvalidQuantity
	}
	if p == nil {
		return ErrProductNotFound
	}
	if !p.IsActive {
		return ErrProductUnavailable
	}
	if p.StockQuantity <= 0 || p.StockQuantity < requested {
		return &InsufficientStockError{
			ProductID: p.ID,
			Name:      p.Name,
			Requested: requested,
			Available: max(p.StockQuantity, 0),
		}
	}
	return nil
}

type stockLine struct {
	productID uuid.UUID
	name      string
	qty       int
}

// aggregateLines сводит позиции по товару и сортирует по id,
// чтобы конкурирующие заказы брали блокировки строк в одном порядке.
func aggregateLines(items []models.OrderItem) []stockLine {
	idx := make(map[uuid.UUID]int, len(items))
	var out []stockLine
	for _, it := range items {
		if i, ok := idx[it.ProductID]; ok {
			out[i].qty += it.Quantity
			continue
		}
		idx[it.ProductID] = len(out)
		out = append(out, stockLine{productID: it.ProductID, name: it.ProductName, qty: it.Quantity})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].productID.String() < out[j].productID.String() })
	return out
}

// ReserveOnConfirmedPayment списывает остаток по всем позициям заказа.
// Вызывается внутри транзакции сверки; списание идёт в SAVEPOINT:
// либо проходят все позиции, либо ни одна, и тогда возвращается *StockShortfallError.
func (l *InventoryLedger) ReserveOnConfirmedPayment(ctx context.Context, tx *repository.Repository, order *models.Order) error {
	lines := aggregateLines(order.Items)
	if len(lines) == 0 {
		return nil
	}

	return tx.WithTx(ctx, func(sp *repository.Repository) error {
		var short []ShortLine
		for _, ln := range lines {
			ok, err := sp.Products.TryDecrement(ctx, ln.productID, ln.qty)
			if err != nil {
				return err
			}
			if !ok {
				short = append(short, ShortLine{ProductID: ln.productID, Name: ln.name, Requested: ln.qty})
			}
		}
		if len(short) > 0 {
			l.log.Warn("Недостаточно остатка при подтверждении оплаты",
				zap.String("order_id", order.ID.String()),
				zap.Int("short_lines", len(short)),
			)
			return &StockShortfallError{Lines: short}
		}
		l.log.Info("Остаток списан под заказ",
			zap.String("order_id", order.ID.String()),
			zap.Int("lines", len(lines)),
		)
		return nil
	})
}

// ReleaseOnCancellation возвращает на склад ровно то, что было списано под заказ.
// Заказ без списания (StockReserved=false) склад не трогает.
func (l *InventoryLedger) ReleaseOnCancellation(ctx context.Context, tx *repository.Repository, order *models.Order) (bool, error) {
	if !order.StockReserved {
		return false, nil
	}
	for _, ln := range aggregateLines(order.Items) {
		ok, err := tx.Products.Increment(ctx, ln.productID, ln.qty)
		if err != nil {
			return false, err
		}
		if !ok {
			// товар удалён после заказа: вернуть некуда
			l.log.Warn("Товар для возврата остатка не найден",
				zap.String("order_id", order.ID.String()),
				zap.String("product_id", ln.productID.String()),
			)
		}
	}
	l.log.Info("Остаток возвращён по отменённому заказу", zap.String("order_id", order.ID.String()))
	return true, nil
}

// AdjustStock — ручная корректировка остатка администратором (приход, списание брака).
func (l *InventoryLedger) AdjustStock(ctx context.Context, productID uuid.UUID, delta int) (*models.Product, error) {
	adminID, err := requireAdmin(ctx)
	if err != nil {
		return nil, err
	}

	p, err := l.repo.Products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProductNotFound
	}
	if delta == 0 {
		return p, nil
	}

	ok, err := l.repo.Products.AdjustStock(ctx, productID, delta)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrStockUnderflow
	}

	l.log.Info("Остаток скорректирован вручную",
		zap.String("product_id", productID.String()),
		zap.Int("delta", delta),
		zap.String("admin_id", adminID.String()),
	)
	return l.repo.Products.GetByID(ctx, productID)
}

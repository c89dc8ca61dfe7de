package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bottlestore-service/internal/models"
	"bottlestore-service/internal/pricing"
	"bottlestore-service/internal/repository"

	"github.com/google/uuid"
	"github.com/nanorand/nanorand"
	"go.uber.org/zap"
)

const (
	defaultCountry     = "South Africa"
	maxReasonLen       = 500
	paymentMethodCard  = "card"
	checkoutThrottleNS = "checkout:"
)

type orderService struct {
	repo      *repository.Repository
	ledger    *InventoryLedger
	gate      *AgeGate
	payments  PaymentProcessor
	delivery  DeliveryWindow
	events    EventBus
	throttle  RateLimiter
	cfg       OrderConfig
	now       func() time.Time
	newNumber func(time.Time) (string, error)
	log       *zap.Logger
}

func NewOrderService(
	repo *repository.Repository,
	ledger *InventoryLedger,
	gate *AgeGate,
	payments PaymentProcessor,
	delivery DeliveryWindow,
	events EventBus,
	throttle RateLimiter,
	cfg OrderConfig,
	log *zap.Logger,
) OrderService {
	if cfg.Currency == "" {
		cfg.Currency = "zar"
	}
	return &orderService{
		repo:      repo,
		ledger:    ledger,
		gate:      gate,
		payments:  payments,
		delivery:  delivery,
		events:    events,
		throttle:  throttle,
		cfg:       cfg,
		now:       time.Now,
		newNumber: NewOrderNumber,
		log:       log,
	}
}

// NewOrderNumber: ORD-<unix ms>-<6 случайных символов>. Уникальность гарантирует UNIQUE в БД.
func NewOrderNumber(at time.Time) (string, error) {
	suffix, err := nanorand.Gen(6)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ORD-%d-%s", at.UnixMilli(), strings.ToUpper(suffix)), nil
}

func (s *orderService) Checkout(ctx context.Context, in CheckoutInput, meta ClientMeta) (*CheckoutResult, error) {
	userID, _, err := requireAuth(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.checkThrottle(ctx, userID); err != nil {
		return nil, err
	}

	user, err := s.repo.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, ErrUnauthorized
	}
	// отказ пишется в журнал сразу, успех — уже с id заказа внутри транзакции
	if ok, _ := s.gate.Check(user); !ok {
		return nil, s.gate.Require(ctx, s.repo, user, nil, meta)
	}

	addr, err := s.deliveryAddress(ctx, userID, in)
	if err != nil {
		return nil, err
	}
	if err := s.checkDelivery(in.DeliveryDate); err != nil {
		return nil, err
	}

	lines, err := s.resolveLines(ctx, userID, in.Items)
	if err != nil {
		return nil, err
	}

	order, err := s.createPendingOrder(ctx, user, lines, addr, in, meta)
	if err != nil {
		return nil, err
	}
	s.markSubmitted(ctx, userID)

	secret, err := s.requestPayment(ctx, order)
	if err != nil {
		return nil, err
	}

	return &CheckoutResult{Order: order, ClientSecret: secret}, nil
}

func (s *orderService) throttleKey(userID uuid.UUID) (string, bool) {
	if s.throttle == nil || s.cfg.SubmitThrottle <= 0 {
		return "", false
	}
	return checkoutThrottleNS + userID.String(), true
}

func (s *orderService) checkThrottle(ctx context.Context, userID uuid.UUID) error {
	key, ok := s.throttleKey(userID)
	if !ok {
		return nil
	}
	limited, err := s.throttle.CheckRateLimit(ctx, key)
	if err != nil {
		// кэш недоступен — оформление не блокируем
		s.log.Warn("Не удалось проверить ограничение частоты оформления", zap.Error(err))
		return nil
	}
	if limited {
		return ErrTooManyRequests
	}
	return nil
}

// markSubmitted ставит ключ только после созданного заказа: отклонённое оформление
// можно сразу повторить.
func (s *orderService) markSubmitted(ctx context.Context, userID uuid.UUID) {
	key, ok := s.throttleKey(userID)
	if !ok {
		return
	}
	if err := s.throttle.SetRateLimit(ctx, key, s.cfg.SubmitThrottle); err != nil {
		s.log.Warn("Не удалось установить ограничение частоты оформления", zap.Error(err))
	}
}

// deliveryAddress: сохранённый адрес по id, иначе адрес из запроса, иначе адрес по умолчанию.
// В заказ попадает копия, дальнейшие правки адресной книги заказ не меняют.
func (s *orderService) deliveryAddress(ctx context.Context, userID uuid.UUID, in CheckoutInput) (models.DeliveryAddress, error) {
	if in.AddressID != nil {
		a, err := s.repo.Addresses.GetForUser(ctx, *in.AddressID, userID)
		if err != nil {
			return models.DeliveryAddress{}, err
		}
		if a == nil {
			return models.DeliveryAddress{}, ErrAddressNotFound
		}
		return normalizeAddress(a.Snapshot())
	}
	if !isBlankAddress(in.DeliveryAddress) {
		return normalizeAddress(in.DeliveryAddress)
	}
	def, err := s.repo.Addresses.GetDefault(ctx, userID)
	if err != nil {
		return models.DeliveryAddress{}, err
	}
	if def == nil {
		return models.DeliveryAddress{}, ErrDeliveryAddressRequired
	}
	return normalizeAddress(def.Snapshot())
}

func isBlankAddress(a models.DeliveryAddress) bool {
	return strings.TrimSpace(a.Street) == "" &&
		strings.TrimSpace(a.City) == "" &&
		strings.TrimSpace(a.PostalCode) == ""
}

func normalizeAddress(a models.DeliveryAddress) (models.DeliveryAddress, error) {
	a.Street = strings.TrimSpace(a.Street)
	a.Suburb = strings.TrimSpace(a.Suburb)
	a.City = strings.TrimSpace(a.City)
	a.Province = strings.TrimSpace(a.Province)
	a.PostalCode = strings.TrimSpace(a.PostalCode)
	a.Country = strings.TrimSpace(a.Country)
	if a.Street == "" || a.City == "" || a.PostalCode == "" {
		return a, ErrDeliveryAddressRequired
	}
	if a.Country == "" {
		a.Country = defaultCountry
	}
	return a, nil
}

func (s *orderService) checkDelivery(at *time.Time) error {
	if at == nil {
		return nil
	}
	now := s.now()
	if at.Before(now) {
		return fmt.Errorf("%w: delivery date is in the past%s", ErrDeliveryUnavailable, s.nextDateHint(now))
	}
	if s.delivery == nil {
		return nil
	}
	if d := s.delivery.CanDeliver(*at); !d.Allowed {
		return fmt.Errorf("%w: %s%s", ErrDeliveryUnavailable, d.Reason, s.nextDateHint(*at))
	}
	return nil
}

func (s *orderService) nextDateHint(from time.Time) string {
	if s.delivery == nil {
		return ""
	}
	return "; next available delivery date " + s.delivery.NextAvailableDate(from).Format(time.DateOnly)
}

// orderLine — позиция после слияния дублей. Line указывает на первое вхождение
// товара в запросе (или в корзине), по нему клиент находит ошибочную позицию.
type orderLine struct {
	CreateOrderItem
	Line int
}

// resolveLines берёт позиции из запроса или из корзины и сводит дубли по товару.
func (s *orderService) resolveLines(ctx context.Context, userID uuid.UUID, items []CreateOrderItem) ([]orderLine, error) {
	if len(items) == 0 {
		cart, err := s.repo.Carts.GetByUserID(ctx, userID)
		if err != nil {
			return nil, err
		}
		if cart == nil || len(cart.Items) == 0 {
			return nil, ErrCartEmpty
		}
		items = make([]CreateOrderItem, 0, len(cart.Items))
		for _, it := range cart.Items {
			items = append(items, CreateOrderItem{ProductID: it.ProductID, Quantity: it.Quantity})
		}
	}

	idx := make(map[uuid.UUID]int, len(items))
	out := make([]orderLine, 0, len(items))
	for i, it := range items {
		if it.Quantity <= 0 {
			return nil, &LineError{Line: i, ProductID: it.ProductID, Err: ErrInvalidQuantity}
		}
		if j, ok := idx[it.ProductID]; ok {
			out[j].Quantity += it.Quantity
			continue
		}
		idx[it.ProductID] = len(out)
		out = append(out, orderLine{CreateOrderItem: it, Line: i})
	}
	return out, nil
}

// createPendingOrder в одной транзакции перечитывает товары под FOR SHARE,
// снимает снимок цен и создаёт заказ в (pending, pending). Любая плохая позиция
// откатывает всё оформление.
func (s *orderService) createPendingOrder(
	ctx context.Context,
	user *models.User,
	lines []orderLine,
	addr models.DeliveryAddress,
	in CheckoutInput,
	meta ClientMeta,
) (*models.Order, error) {
	now := s.now()
	var order *models.Order

	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		ids := make([]uuid.UUID, 0, len(lines))
		for _, l := range lines {
			ids = append(ids, l.ProductID)
		}
		products, err := tx.Products.LockForShare(ctx, ids)
		if err != nil {
			return err
		}

		orderID := uuid.New()
		items := make([]models.OrderItem, 0, len(lines))
		priced := make([]pricing.Line, 0, len(lines))
		for _, l := range lines {
			p, ok := products[l.ProductID]
			if !ok {
				return &LineError{Line: l.Line, ProductID: l.ProductID, Err: ErrProductNotFound}
			}
			if err := s.ledger.CheckAvailability(&p, l.Quantity); err != nil {
				return &LineError{Line: l.Line, ProductID: l.ProductID, Err: err}
			}
			items = append(items, models.OrderItem{
				ID:           uuid.New(),
				OrderID:      orderID,
				ProductID:    p.ID,
				ProductName:  p.Name,
				ProductPrice: p.Price,
				Quantity:     l.Quantity,
				Subtotal:     pricing.LineSubtotal(p.Price, l.Quantity),
				CreatedAt:    now,
			})
			priced = append(priced, pricing.Line{UnitPrice: p.Price, Quantity: l.Quantity})
		}

		totals, err := pricing.Compute(priced, s.cfg.DeliveryFee)
		if err != nil {
			return err
		}

		number, err := s.newNumber(now)
		if err != nil {
			return err
		}

		order = &models.Order{
			ID:                    orderID,
			OrderNumber:           number,
			UserID:                user.ID,
			Status:                models.OrderStatusPending,
			PaymentStatus:         models.PaymentStatusPending,
			Subtotal:              totals.Subtotal,
			VATAmount:             totals.VAT,
			DeliveryFee:           totals.DeliveryFee,
			TotalAmount:           totals.Total,
			Currency:              strings.ToUpper(s.cfg.Currency),
			DeliveryAddress:       addr,
			DeliveryInstructions:  strings.TrimSpace(in.DeliveryInstructions),
			DeliveryDate:          in.DeliveryDate,
			AgeVerifiedAtCheckout: true,
			Notes:                 strings.TrimSpace(in.Notes),
			CreatedAt:             now,
			UpdatedAt:             now,
		}
		if err := tx.Orders.Create(ctx, order); err != nil {
			return err
		}
		if err := tx.OrderItems.BulkCreate(ctx, items); err != nil {
			return err
		}
		order.Items = items

		return s.gate.Require(ctx, tx, user, &order.ID, meta)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Заказ создан",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.String("total", order.TotalAmount.StringFixed(2)),
	)
	return order, nil
}

// requestPayment создаёт платёжное намерение. При отказе провайдера заказ
// переводится в (cancelled, failed), чтобы не оставался похожим на ожидающий оплаты.
func (s *orderService) requestPayment(ctx context.Context, order *models.Order) (string, error) {
	amount, err := pricing.ToMinorUnits(order.TotalAmount)
	if err != nil {
		s.failOrder(ctx, order, "invalid order amount")
		return "", err
	}
	if s.payments == nil {
		s.failOrder(ctx, order, "payment processor not configured")
		return "", ErrPaymentUnavailable
	}

	intent, err := s.payments.CreatePaymentIntent(ctx, PaymentIntentRequest{
		AmountMinor:    amount,
		Currency:       strings.ToLower(s.cfg.Currency),
		Description:    "Order " + order.OrderNumber,
		IdempotencyKey: order.ID.String(),
		Metadata: map[string]string{
			"orderId":     order.ID.String(),
			"orderNumber": order.OrderNumber,
			"userId":      order.UserID.String(),
		},
	})
	if err != nil {
		s.log.Error("Не удалось создать платёжное намерение",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
		s.failOrder(ctx, order, "payment intent creation failed")
		return "", ErrPaymentUnavailable
	}

	if err := s.repo.Orders.UpdateFields(ctx, order.ID, map[string]any{
		"payment_intent_id": intent.ID,
		"updated_at":        s.now(),
	}); err != nil {
		if cerr := s.payments.CancelPaymentIntent(ctx, intent.ID); cerr != nil {
			s.log.Warn("Не удалось отменить платёжное намерение", zap.String("intent_id", intent.ID), zap.Error(cerr))
		}
		s.failOrder(ctx, order, "payment reference not stored")
		return "", err
	}
	order.PaymentIntentID = &intent.ID

	return intent.ClientSecret, nil
}

func (s *orderService) failOrder(ctx context.Context, order *models.Order, reason string) {
	err := s.repo.Orders.UpdateFields(ctx, order.ID, map[string]any{
		"status":         models.OrderStatusCancelled,
		"payment_status": models.PaymentStatusFailed,
		"cancel_reason":  reason,
		"updated_at":     s.now(),
	})
	if err != nil {
		s.log.Error("Не удалось пометить заказ как неоплачиваемый", zap.String("order_id", order.ID.String()), zap.Error(err))
		return
	}
	order.Status = models.OrderStatusCancelled
	order.PaymentStatus = models.PaymentStatusFailed
	order.CancelReason = &reason
}

func (s *orderService) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	userID, role, err := requireAuth(ctx)
	if err != nil {
		return nil, err
	}

	var ord *models.Order
	if role == models.RoleAdmin {
		ord, err = s.repo.Orders.GetByID(ctx, id)
	} else {
		ord, err = s.repo.Orders.GetByIDForUser(ctx, id, userID)
	}
	if err != nil {
		return nil, err
	}
	if ord == nil {
		return nil, ErrOrderNotFound
	}
	return ord, nil
}

// GetPaymentStatus только читает: переходы выполняет сверка по событиям провайдера.
func (s *orderService) GetPaymentStatus(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.GetOrder(ctx, id)
}

func (s *orderService) ListOrders(ctx context.Context, f ListFilter) ([]models.Order, int64, error) {
	userID, role, err := requireAuth(ctx)
	if err != nil {
		return nil, 0, err
	}
	if role != models.RoleAdmin {
		f.UserID = &userID
		f.ReconciliationRequired = nil
	}
	if f.Status != nil && !f.Status.Valid() {
		return nil, 0, ErrInvalidStatus
	}
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	ordersPtr, total, err := s.repo.Orders.List(ctx, repository.OrderListFilter{
		UserID:                 f.UserID,
		Status:                 f.Status,
		PaymentStatus:          f.PaymentStatus,
		ReconciliationRequired: f.ReconciliationRequired,
		Limit:                  f.Limit,
		Offset:                 f.Offset,
	})
	if err != nil {
		return nil, 0, err
	}

	orders := make([]models.Order, len(ordersPtr))
	for i, o := range ordersPtr {
		orders[i] = *o
	}
	return orders, total, nil
}

func (s *orderService) CancelOrder(ctx context.Context, id uuid.UUID, reason *string) (*models.Order, error) {
	userID, role, err := requireAuth(ctx)
	if err != nil {
		return nil, err
	}
	return s.cancel(ctx, id, func(o *models.Order) error {
		if role != models.RoleAdmin && o.UserID != userID {
			return ErrOrderNotFound
		}
		return nil
	}, sanitizeReason(reason))
}

// cancel: заказ, его позиции и возврат остатка меняются в одной транзакции под FOR UPDATE.
func (s *orderService) cancel(ctx context.Context, id uuid.UUID, authorize func(*models.Order) error, reason string) (*models.Order, error) {
	var (
		ord      *models.Order
		released bool
	)
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		var err error
		ord, err = tx.Orders.LockByID(ctx, id)
		if err != nil {
			return err
		}
		if ord == nil {
			return ErrOrderNotFound
		}
		if err := authorize(ord); err != nil {
			return err
		}
		if !ord.Cancellable() {
			return ErrOrderNotCancellable
		}

		released, err = s.ledger.ReleaseOnCancellation(ctx, tx, ord)
		if err != nil {
			return err
		}

		fields := map[string]any{
			"status":         models.OrderStatusCancelled,
			"stock_reserved": false,
			"updated_at":     s.now(),
		}
		if reason != "" {
			fields["cancel_reason"] = reason
		}
		return tx.Orders.UpdateFields(ctx, id, fields)
	})
	if err != nil {
		return nil, err
	}

	// неоплаченное намерение отменяем у провайдера, ошибка не критична
	if ord.PaymentIntentID != nil && ord.PaymentStatus == models.PaymentStatusPending && s.payments != nil {
		if err := s.payments.CancelPaymentIntent(ctx, *ord.PaymentIntentID); err != nil {
			s.log.Warn("Не удалось отменить платёжное намерение",
				zap.String("order_id", ord.ID.String()),
				zap.Error(err),
			)
		}
	}

	s.log.Info("Заказ отменён",
		zap.String("order_id", ord.ID.String()),
		zap.Bool("stock_released", released),
	)

	if s.events != nil {
		if err := s.events.PublishOrderCancelled(ctx, OrderCancelledEvent{
			OrderID:       ord.ID,
			OrderNumber:   ord.OrderNumber,
			UserID:        ord.UserID,
			Reason:        reason,
			StockReleased: released,
			CancelledAt:   s.now(),
		}); err != nil {
			s.log.Warn("Не удалось опубликовать событие отмены заказа", zap.Error(err))
		}
	}

	return s.repo.Orders.GetByID(ctx, id)
}

// UpdateStatus — ручное продвижение заказа по доставке. Оплату и склад не трогает,
// кроме перехода в cancelled, который идёт через обычную отмену.
func (s *orderService) UpdateStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus, notes *string) (*models.Order, error) {
	adminID, err := requireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	if status == models.OrderStatusCancelled {
		return s.cancel(ctx, id, func(*models.Order) error { return nil }, sanitizeReason(notes))
	}

	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		ord, err := tx.Orders.LockByID(ctx, id)
		if err != nil {
			return err
		}
		if ord == nil {
			return ErrOrderNotFound
		}
		if ord.Status.Terminal() {
			return ErrInvalidStatusTransition
		}
		fields := map[string]any{
			"status":     status,
			"updated_at": s.now(),
		}
		if notes != nil {
			fields["notes"] = strings.TrimSpace(*notes)
		}
		return tx.Orders.UpdateFields(ctx, id, fields)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Статус заказа изменён",
		zap.String("order_id", id.String()),
		zap.String("status", string(status)),
		zap.String("admin_id", adminID.String()),
	)
	return s.repo.Orders.GetByID(ctx, id)
}

// ResolveReconciliation снимает флаг ручной сверки. Для отменённого оплаченного заказа
// оператор подтверждает возврат денег, для активного — повторяется списание остатка.
func (s *orderService) ResolveReconciliation(ctx context.Context, id uuid.UUID, note string) (*models.Order, error) {
	adminID, err := requireAdmin(ctx)
	if err != nil {
		return nil, err
	}

	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		ord, err := tx.Orders.LockByID(ctx, id)
		if err != nil {
			return err
		}
		if ord == nil {
			return ErrOrderNotFound
		}
		if !ord.ReconciliationRequired {
			return ErrNotFlaggedForReconcile
		}
		// флаг не снимаем, если сохранённые позиции разошлись с суммой заказа
		sum, err := tx.OrderItems.SumByOrder(ctx, ord.ID)
		if err != nil {
			return err
		}
		if !sum.Equal(ord.Subtotal) {
			return fmt.Errorf("%w: items %s, order subtotal %s", ErrOrderTotalsMismatch, sum.StringFixed(2), ord.Subtotal.StringFixed(2))
		}

		resolution := strings.TrimSpace(note)
		if resolution == "" {
			resolution = "resolved by operator"
		}
		if ord.ReconciliationNote != nil {
			resolution = *ord.ReconciliationNote + "; " + resolution
		}

		fields := map[string]any{
			"reconciliation_required": false,
			"reconciliation_note":     resolution,
			"updated_at":              s.now(),
		}
		switch {
		case ord.Status == models.OrderStatusCancelled:
			fields["payment_status"] = models.PaymentStatusRefunded
		case !ord.StockReserved:
			if err := s.ledger.ReserveOnConfirmedPayment(ctx, tx, ord); err != nil {
				return err
			}
			fields["stock_reserved"] = true
		}
		return tx.Orders.UpdateFields(ctx, id, fields)
	})
	if err != nil {
		var short *StockShortfallError
		if errors.As(err, &short) {
			s.log.Warn("Сверка не завершена: остатка всё ещё не хватает", zap.String("order_id", id.String()))
		}
		return nil, err
	}

	s.log.Info("Сверка заказа завершена", zap.String("order_id", id.String()), zap.String("admin_id", adminID.String()))
	return s.repo.Orders.GetByID(ctx, id)
}

func sanitizeReason(reason *string) string {
	if reason == nil {
		return ""
	}
	r := []rune(strings.TrimSpace(*reason))
	if len(r) > maxReasonLen {
		r = r[:maxReasonLen]
	}
	return string(r)
}

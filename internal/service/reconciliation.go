package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"bottlestore-service/internal/models"
	"bottlestore-service/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Исход обработки события, сохраняется в payment_events.outcome.
const (
	OutcomeApplied      = "applied"
	OutcomeNoop         = "noop"
	OutcomeDuplicate    = "duplicate"
	OutcomeFlagged      = "flagged"
	OutcomeUnknownOrder = "unknown_order"
	OutcomeIgnored      = "ignored"
)

const refundRequiredNote = "payment captured after cancellation; refund required"

// PaymentReconciler применяет события провайдера к заказу и складу ровно один раз.
type PaymentReconciler struct {
	repo   *repository.Repository
	ledger *InventoryLedger
	events EventBus
	now    func() time.Time
	log    *zap.Logger
}

func NewPaymentReconciler(repo *repository.Repository, ledger *InventoryLedger, events EventBus, log *zap.Logger) *PaymentReconciler {
	return &PaymentReconciler{
		repo:   repo,
		ledger: ledger,
		events: events,
		now:    time.Now,
		log:    log,
	}
}

// HandleEvent возвращает ошибку только при внутреннем сбое по найденному заказу:
// тогда транзакция откатывается вместе с записью события и провайдер повторит доставку.
// Неизвестный заказ, повтор и неподдерживаемый тип — не ошибки.
func (r *PaymentReconciler) HandleEvent(ctx context.Context, ev WebhookEvent) (string, error) {
	switch ev.Type {
	case WebhookPaymentSucceeded, WebhookPaymentFailed, WebhookPaymentCanceled:
	default:
		r.log.Info("Событие провайдера пропущено", zap.String("event_id", ev.ID), zap.String("type", ev.Type))
		return OutcomeIgnored, nil
	}

	var (
		outcome  string
		paid     *OrderPaidEvent
		flagged  *ReconciliationRequiredEvent
		orderRef *models.Order
	)

	err := r.repo.WithTx(ctx, func(tx *repository.Repository) error {
		ord, err := r.findOrder(ctx, tx, ev)
		if err != nil {
			return err
		}
		if ord == nil {
			outcome = OutcomeUnknownOrder
			return nil
		}
		orderRef = ord

		rec := &models.PaymentEvent{
			ProviderEventID: ev.ID,
			Type:            ev.Type,
			PaymentIntentID: ev.PaymentIntentID,
			OrderID:         &ord.ID,
			Outcome:         "processing",
			CreatedAt:       r.now(),
		}
		inserted, err := tx.PaymentEvents.Record(ctx, rec)
		if err != nil {
			return err
		}
		if !inserted {
			outcome = OutcomeDuplicate
			return nil
		}

		switch ev.Type {
		case WebhookPaymentSucceeded:
			outcome, paid, flagged, err = r.applySucceeded(ctx, tx, ord, ev)
		case WebhookPaymentFailed:
			outcome, err = r.applyFailed(ctx, tx, ord, false)
		case WebhookPaymentCanceled:
			outcome, err = r.applyFailed(ctx, tx, ord, true)
		}
		if err != nil {
			return err
		}
		return tx.PaymentEvents.SetOutcome(ctx, rec.ID, outcome)
	})
	if err != nil {
		r.log.Error("Ошибка обработки события провайдера",
			zap.String("event_id", ev.ID),
			zap.String("type", ev.Type),
			zap.Error(err),
		)
		return "", err
	}

	fields := []zap.Field{
		zap.String("event_id", ev.ID),
		zap.String("type", ev.Type),
		zap.String("intent_id", ev.PaymentIntentID),
		zap.String("outcome", outcome),
	}
	if orderRef != nil {
		fields = append(fields, zap.String("order_number", orderRef.OrderNumber))
	}
	if outcome == OutcomeUnknownOrder {
		r.log.Warn("Заказ для события провайдера не найден", fields...)
	} else {
		r.log.Info("Событие провайдера обработано", fields...)
	}

	r.publish(ctx, paid, flagged)
	return outcome, nil
}

// findOrder ищет заказ по id намерения, затем по orderId из метаданных:
// событие может прийти раньше, чем оформление сохранит id намерения.
func (r *PaymentReconciler) findOrder(ctx context.Context, tx *repository.Repository, ev WebhookEvent) (*models.Order, error) {
	if ev.PaymentIntentID != "" {
		ord, err := tx.Orders.GetByPaymentIntentID(ctx, ev.PaymentIntentID)
		if err != nil {
			return nil, err
		}
		if ord != nil {
			return tx.Orders.LockByID(ctx, ord.ID)
		}
	}

	raw := strings.TrimSpace(ev.Metadata["orderId"])
	if raw == "" {
		return nil, nil
	}
	orderID, err := uuid.Parse(raw)
	if err != nil {
		return nil, nil
	}
	ord, err := tx.Orders.LockByID(ctx, orderID)
	if err != nil || ord == nil {
		return nil, err
	}
	if ord.PaymentIntentID != nil && *ord.PaymentIntentID != ev.PaymentIntentID {
		// метаданные указывают на заказ с другим намерением
		return nil, nil
	}
	if ord.PaymentIntentID == nil && ev.PaymentIntentID != "" {
		if err := tx.Orders.UpdateFields(ctx, ord.ID, map[string]any{"payment_intent_id": ev.PaymentIntentID}); err != nil {
			return nil, err
		}
		intentID := ev.PaymentIntentID
		ord.PaymentIntentID = &intentID
	}
	return ord, nil
}

func (r *PaymentReconciler) applySucceeded(
	ctx context.Context,
	tx *repository.Repository,
	ord *models.Order,
	ev WebhookEvent,
) (string, *OrderPaidEvent, *ReconciliationRequiredEvent, error) {
	// повторное списание по уже оплаченному заказу невозможно
	if ord.PaymentStatus == models.PaymentStatusCompleted {
		return OutcomeNoop, nil, nil, nil
	}

	now := r.now()
	fields := map[string]any{
		"payment_status": models.PaymentStatusCompleted,
		"payment_method": paymentMethodCard,
		"updated_at":     now,
	}

	if ord.Status == models.OrderStatusCancelled {
		fields["reconciliation_required"] = true
		fields["reconciliation_note"] = refundRequiredNote
		if err := tx.Orders.UpdateFields(ctx, ord.ID, fields); err != nil {
			return "", nil, nil, err
		}
		return OutcomeFlagged, nil, r.flagEvent(ord, refundRequiredNote, now), nil
	}

	if ord.Status == models.OrderStatusPending {
		fields["status"] = models.OrderStatusProcessing
	}

	outcome := OutcomeApplied
	var flagged *ReconciliationRequiredEvent

	err := r.ledger.ReserveOnConfirmedPayment(ctx, tx, ord)
	var short *StockShortfallError
	switch {
	case errors.As(err, &short):
		// деньги списаны, товара нет: отрицательный остаток недопустим, нужен оператор
		note := short.Error()
		fields["reconciliation_required"] = true
		fields["reconciliation_note"] = note
		outcome = OutcomeFlagged
		flagged = r.flagEvent(ord, note, now)
	case err != nil:
		return "", nil, nil, err
	default:
		fields["stock_reserved"] = true
	}

	if err := tx.Orders.UpdateFields(ctx, ord.ID, fields); err != nil {
		return "", nil, nil, err
	}
	if _, err := tx.Carts.ClearByUser(ctx, ord.UserID); err != nil {
		return "", nil, nil, err
	}

	paid, err := r.paidEvent(ctx, tx, ord, now)
	if err != nil {
		return "", nil, nil, err
	}
	return outcome, paid, flagged, nil
}

func (r *PaymentReconciler) applyFailed(ctx context.Context, tx *repository.Repository, ord *models.Order, canceled bool) (string, error) {
	// событие отказа, пришедшее после успешной оплаты, устарело
	if ord.PaymentStatus == models.PaymentStatusCompleted {
		return OutcomeNoop, nil
	}

	fields := map[string]any{
		"payment_status": models.PaymentStatusFailed,
		"updated_at":     r.now(),
	}
	if canceled && ord.Status != models.OrderStatusCancelled {
		fields["status"] = models.OrderStatusCancelled
		if ord.CancelReason == nil {
			fields["cancel_reason"] = "payment cancelled"
		}
	}
	if err := tx.Orders.UpdateFields(ctx, ord.ID, fields); err != nil {
		return "", err
	}
	return OutcomeApplied, nil
}

func (r *PaymentReconciler) flagEvent(ord *models.Order, note string, at time.Time) *ReconciliationRequiredEvent {
	return &ReconciliationRequiredEvent{
		OrderID:     ord.ID,
		OrderNumber: ord.OrderNumber,
		Note:        note,
		FlaggedAt:   at,
	}
}

func (r *PaymentReconciler) paidEvent(ctx context.Context, tx *repository.Repository, ord *models.Order, at time.Time) (*OrderPaidEvent, error) {
	ev := &OrderPaidEvent{
		OrderID:     ord.ID,
		OrderNumber: ord.OrderNumber,
		UserID:      ord.UserID,
		Items:       make([]OrderItemEvent, 0, len(ord.Items)),
		Total:       ord.TotalAmount,
		VAT:         ord.VATAmount,
		Currency:    ord.Currency,
		PaidAt:      at,
	}
	for _, it := range ord.Items {
		ev.Items = append(ev.Items, OrderItemEvent{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.ProductPrice,
			Subtotal:    it.Subtotal,
		})
	}

	u, err := tx.Users.GetByID(ctx, ord.UserID)
	if err != nil {
		return nil, err
	}
	if u != nil {
		ev.CustomerEmail = u.Email
		ev.CustomerName = strings.TrimSpace(u.FirstName + " " + u.LastName)
	}
	return ev, nil
}

func (r *PaymentReconciler) publish(ctx context.Context, paid *OrderPaidEvent, flagged *ReconciliationRequiredEvent) {
	if r.events == nil {
		return
	}
	if paid != nil {
		if err := r.events.PublishOrderPaid(ctx, *paid); err != nil {
			r.log.Warn("Не удалось опубликовать событие оплаты", zap.String("order_id", paid.OrderID.String()), zap.Error(err))
		}
	}
	if flagged != nil {
		if err := r.events.PublishReconciliationRequired(ctx, *flagged); err != nil {
			r.log.Warn("Не удалось опубликовать событие сверки", zap.String("order_id", flagged.OrderID.String()), zap.Error(err))
		}
	}
}

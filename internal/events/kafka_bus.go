package events

import (
	"context"
	"encoding/json"
	"time"

	"bottlestore-service/internal/service"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Типы событий в заголовке event-type.
const (
	TypeOrderPaid              = "order.paid"
	TypeOrderCancelled         = "order.cancelled"
	TypeReconciliationRequired = "order.reconciliation_required"
)

const publishTimeout = 5 * time.Second

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type EmailMessage struct {
	To       string         `json:"to"`
	Subject  string         `json:"subject"`
	Template string         `json:"template"`
	Data     map[string]any `json:"data"`
}

type KafkaBus struct {
	orders messageWriter
	email  messageWriter
	log    *zap.Logger
}

func newWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
	}
}

func NewKafkaBus(brokers []string, ordersTopic, emailTopic string, log *zap.Logger) *KafkaBus {
	return &KafkaBus{
		orders: newWriter(brokers, ordersTopic),
		email:  newWriter(brokers, emailTopic),
		log:    log,
	}
}

func (b *KafkaBus) PublishOrderPaid(ctx context.Context, e service.OrderPaidEvent) error {
	if err := b.write(ctx, b.orders, TypeOrderPaid, e.OrderID.String(), e); err != nil {
		return err
	}
	if e.CustomerEmail == "" {
		return nil
	}

	items := make([]map[string]any, 0, len(e.Items))
	for _, it := range e.Items {
		items = append(items, map[string]any{
			"name":     it.ProductName,
			"quantity": it.Quantity,
			"subtotal": it.Subtotal.StringFixed(2),
		})
	}
	msg := EmailMessage{
		To:       e.CustomerEmail,
		Subject:  "Order " + e.OrderNumber + " confirmed",
		Template: "order_paid",
		Data: map[string]any{
			"name":         e.CustomerName,
			"order_number": e.OrderNumber,
			"total":        e.Total.StringFixed(2),
			"vat":          e.VAT.StringFixed(2),
			"currency":     e.Currency,
			"items":        items,
		},
	}
	// письмо не критично: событие заказа уже ушло
	if err := b.write(ctx, b.email, "email.order_paid", e.CustomerEmail, msg); err != nil {
		b.log.Warn("Не удалось отправить письмо об оплате",
			zap.String("order_number", e.OrderNumber),
			zap.Error(err),
		)
	}
	return nil
}

func (b *KafkaBus) PublishOrderCancelled(ctx context.Context, e service.OrderCancelledEvent) error {
	return b.write(ctx, b.orders, TypeOrderCancelled, e.OrderID.String(), e)
}

func (b *KafkaBus) PublishReconciliationRequired(ctx context.Context, e service.ReconciliationRequiredEvent) error {
	return b.write(ctx, b.orders, TypeReconciliationRequired, e.OrderID.String(), e)
}

func (b *KafkaBus) write(ctx context.Context, w messageWriter, eventType, key string, payload any) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	value, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	err = w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(eventType)},
		},
	})
	if err != nil {
		return err
	}
	b.log.Debug("Событие опубликовано", zap.String("type", eventType), zap.String("key", key))
	return nil
}

func (b *KafkaBus) Close() error {
	errOrders := b.orders.Close()
	errEmail := b.email.Close()
	if errOrders != nil {
		return errOrders
	}
	return errEmail
}

// NopBus используется, когда Kafka выключена.
type NopBus struct{ log *zap.Logger }

func NewNopBus(log *zap.Logger) *NopBus { return &NopBus{log: log} }

func (b *NopBus) PublishOrderPaid(_ context.Context, e service.OrderPaidEvent) error {
	b.log.Debug("Kafka выключена, событие оплаты не отправлено", zap.String("order_number", e.OrderNumber))
	return nil
}

func (b *NopBus) PublishOrderCancelled(_ context.Context, e service.OrderCancelledEvent) error {
	b.log.Debug("Kafka выключена, событие отмены не отправлено", zap.String("order_number", e.OrderNumber))
	return nil
}

func (b *NopBus) PublishReconciliationRequired(_ context.Context, e service.ReconciliationRequiredEvent) error {
	b.log.Debug("Kafka выключена, событие сверки не отправлено", zap.String("order_number", e.OrderNumber))
	return nil
}

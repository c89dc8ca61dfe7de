package sweeper

import (
	"context"
	"time"

	"bottlestore-service/internal/models"
	"bottlestore-service/internal/repository"

	"go.uber.org/zap"
)

const pageSize = 100

// OrderInfo — заказ, требующий внимания оператора.
type OrderInfo struct {
	ID          string
	OrderNumber string
	Status      models.OrderStatus
	Payment     models.PaymentStatus
	Note        string
	Age         time.Duration

	// ProviderEvents — сколько событий провайдера записано по намерению заказа
	ProviderEvents int64
}

type Report struct {
	Stale   []OrderInfo
	Flagged []OrderInfo
}

// Sweeper только читает заказы и пишет их в лог, состояние не меняет.
type Sweeper struct {
	repo       *repository.Repository
	staleAfter time.Duration
	now        func() time.Time
	log        *zap.Logger
}

func NewSweeper(repo *repository.Repository, staleAfter time.Duration, log *zap.Logger) *Sweeper {
	if staleAfter <= 0 {
		staleAfter = 24 * time.Hour
	}
	return &Sweeper{
		repo:       repo,
		staleAfter: staleAfter,
		now:        time.Now,
		log:        log,
	}
}

// ReportStale — заказы в (pending, pending) старше staleAfter.
func (s *Sweeper) ReportStale(ctx context.Context) ([]OrderInfo, error) {
	now := s.now()
	cutoff := now.Add(-s.staleAfter)
	status := models.OrderStatusPending
	payment := models.PaymentStatusPending

	orders, err := s.collect(ctx, repository.OrderListFilter{
		Status:        &status,
		PaymentStatus: &payment,
		CreatedBefore: &cutoff,
	})
	if err != nil {
		s.log.Error("Не удалось получить зависшие заказы", zap.Error(err))
		return nil, err
	}

	out := make([]OrderInfo, 0, len(orders))
	for _, o := range orders {
		info, err := s.toInfo(ctx, o, now)
		if err != nil {
			return nil, err
		}
		s.log.Warn("Зависший неоплаченный заказ",
			zap.String("order_id", info.ID),
			zap.String("order_number", info.OrderNumber),
			zap.Duration("age", info.Age),
			zap.Int64("provider_events", info.ProviderEvents),
		)
		out = append(out, info)
	}
	if len(out) > 0 {
		s.log.Info("Найдены зависшие заказы", zap.Int("count", len(out)))
	}
	return out, nil
}

// ReportFlagged — заказы с флагом ручной сверки.
func (s *Sweeper) ReportFlagged(ctx context.Context) ([]OrderInfo, error) {
	now := s.now()
	flag := true

	orders, err := s.collect(ctx, repository.OrderListFilter{ReconciliationRequired: &flag})
	if err != nil {
		s.log.Error("Не удалось получить заказы на сверку", zap.Error(err))
		return nil, err
	}

	out := make([]OrderInfo, 0, len(orders))
	for _, o := range orders {
		info, err := s.toInfo(ctx, o, now)
		if err != nil {
			return nil, err
		}
		s.log.Warn("Заказ ожидает ручной сверки",
			zap.String("order_id", info.ID),
			zap.String("order_number", info.OrderNumber),
			zap.String("status", string(info.Status)),
			zap.String("payment_status", string(info.Payment)),
			zap.String("note", info.Note),
			zap.Int64("provider_events", info.ProviderEvents),
		)
		out = append(out, info)
	}
	if len(out) > 0 {
		s.log.Info("Найдены заказы на сверку", zap.Int("count", len(out)))
	}
	return out, nil
}

func (s *Sweeper) RunAll(ctx context.Context) (*Report, error) {
	s.log.Info("Запуск проверки заказов")

	stale, err := s.ReportStale(ctx)
	if err != nil {
		return nil, err
	}
	flagged, err := s.ReportFlagged(ctx)
	if err != nil {
		return nil, err
	}

	s.log.Info("Проверка заказов завершена",
		zap.Int("stale", len(stale)),
		zap.Int("flagged", len(flagged)),
	)
	return &Report{Stale: stale, Flagged: flagged}, nil
}

func (s *Sweeper) collect(ctx context.Context, f repository.OrderListFilter) ([]*models.Order, error) {
	var all []*models.Order
	f.Limit = pageSize
	for {
		page, total, err := s.repo.Orders.List(ctx, f)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		f.Offset += len(page)
		if len(page) < pageSize || int64(f.Offset) >= total {
			return all, nil
		}
	}
}

func (s *Sweeper) toInfo(ctx context.Context, o *models.Order, now time.Time) (OrderInfo, error) {
	info := OrderInfo{
		ID:          o.ID.String(),
		OrderNumber: o.OrderNumber,
		Status:      o.Status,
		Payment:     o.PaymentStatus,
		Age:         now.Sub(o.CreatedAt),
	}
	if o.ReconciliationNote != nil {
		info.Note = *o.ReconciliationNote
	}
	if o.PaymentIntentID != nil {
		n, err := s.repo.PaymentEvents.CountByIntent(ctx, *o.PaymentIntentID)
		if err != nil {
			s.log.Error("Не удалось посчитать события провайдера", zap.String("order_id", info.ID), zap.Error(err))
			return OrderInfo{}, err
		}
		info.ProviderEvents = n
	}
	return info, nil
}

package sweeper

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Scheduler struct {
	sweeper  *Sweeper
	interval time.Duration
	log      *zap.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewScheduler(sweeper *Sweeper, interval time.Duration, log *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Scheduler{
		sweeper:  sweeper,
		interval: interval,
		log:      log,
		stopCh:   make(chan struct{}),
	}
}

// Start запускает периодическую проверку; первый проход выполняется сразу.
func (s *Scheduler) Start(ctx context.Context) {
	s.log.Info("Запуск планировщика проверки заказов", zap.Duration("interval", s.interval))
	s.wg.Add(1)
	go s.run(ctx)
}

// Stop останавливает планировщик и ждёт завершения текущего прохода.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.log.Info("Остановка планировщика проверки заказов")
		close(s.stopCh)
	})
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	if _, err := s.sweeper.RunAll(ctx); err != nil {
		s.log.Error("Первичная проверка заказов завершилась ошибкой", zap.Error(err))
	}

	for {
		select {
		case <-ticker.C:
			if _, err := s.sweeper.RunAll(ctx); err != nil {
				s.log.Error("Проверка заказов завершилась ошибкой", zap.Error(err))
			}
		case <-s.stopCh:
			s.log.Info("Планировщик проверки заказов остановлен")
			return
		case <-ctx.Done():
			s.log.Info("Планировщик проверки заказов отменён")
			return
		}
	}
}

// RunOnceNow выполняет одну проверку немедленно.
func (s *Scheduler) RunOnceNow(ctx context.Context) (*Report, error) {
	return s.sweeper.RunAll(ctx)
}

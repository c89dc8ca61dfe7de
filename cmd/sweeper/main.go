package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"bottlestore-service/config"
	"bottlestore-service/internal/platform/database"
	"bottlestore-service/internal/platform/logger"
	"bottlestore-service/internal/repository"
	"bottlestore-service/internal/sweeper"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	isDev := os.Getenv("ENV") == "development"
	if err := logger.Init(isDev); err != nil {
		panic(err)
	}
	defer logger.Sync()

	if len(os.Args) < 2 {
		fmt.Println("Usage: go run cmd/sweeper/main.go [stale|flagged|all|run]")
		fmt.Println("  stale   - report unpaid orders older than STALE_ORDER_AFTER")
		fmt.Println("  flagged - report orders waiting for manual reconciliation")
		fmt.Println("  all     - both reports once")
		fmt.Println("  run     - keep reporting every SWEEP_INTERVAL until stopped")
		os.Exit(1)
	}

	log := logger.L()
	cfg := config.Load(log)

	db := database.ConnectDB(&cfg.DB.Config, log)
	defer database.CloseDB(db, log)

	sw := sweeper.NewSweeper(repository.New(db), cfg.Sweeper.StaleAfter, log)
	ctx := context.Background()

	switch os.Args[1] {
	case "stale":
		if _, err := sw.ReportStale(ctx); err != nil {
			log.Fatal("Проверка зависших заказов не выполнена", zap.Error(err))
		}
	case "flagged":
		if _, err := sw.ReportFlagged(ctx); err != nil {
			log.Fatal("Проверка заказов на сверку не выполнена", zap.Error(err))
		}
	case "run":
		ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		scheduler := sweeper.NewScheduler(sw, cfg.Sweeper.Interval, log)
		scheduler.Start(ctx)
		<-ctx.Done()
		scheduler.Stop()
	case "all":
		fallthrough
	default:
		if _, err := sw.RunAll(ctx); err != nil {
			log.Fatal("Проверка заказов не выполнена", zap.Error(err))
		}
	}

	log.Info("Проверка заказов завершена")
}

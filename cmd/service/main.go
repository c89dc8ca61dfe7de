package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bottlestore-service/config"
	"bottlestore-service/internal/auth"
	"bottlestore-service/internal/cache"
	"bottlestore-service/internal/delivery"
	"bottlestore-service/internal/events"
	"bottlestore-service/internal/payments"
	"bottlestore-service/internal/platform/database"
	"bottlestore-service/internal/platform/logger"
	"bottlestore-service/internal/repository"
	"bottlestore-service/internal/service"
	"bottlestore-service/internal/sweeper"
	"bottlestore-service/internal/transport/http/router"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

func main() {
	_ = godotenv.Load()
	isDev := os.Getenv("ENV") == "development"
	if err := logger.Init(isDev); err != nil {
		panic(err)
	}

	defer logger.Sync()

	log := logger.L()

	cfg := config.Load(log)
	if !isDev {
		gin.SetMode(gin.ReleaseMode)
	}

	db := database.ConnectDB(&cfg.DB.Config, log)
	defer database.CloseDB(db, log)

	repos := repository.New(db)

	var (
		redisClient *cache.RedisClient
		throttle    service.RateLimiter
	)
	if cfg.Redis.Enabled {
		var err error
		redisClient, err = cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
		if err != nil {
			log.Fatal("Не удалось подключиться к Redis", zap.Error(err))
		}
		defer redisClient.Close()
		throttle = redisClient
		log.Info("Redis включён")
	} else {
		log.Info("Redis выключен")
	}

	var bus service.EventBus
	if cfg.Kafka.Enabled {
		kafkaBus := events.NewKafkaBus(cfg.Kafka.Brokers, cfg.Kafka.OrdersTopic, cfg.Kafka.EmailTopic, log)
		defer kafkaBus.Close()
		bus = kafkaBus
		log.Info("Kafka включена", zap.Strings("brokers", cfg.Kafka.Brokers))
	} else {
		bus = events.NewNopBus(log)
		log.Info("Kafka выключена")
	}

	stripeProvider, err := payments.NewStripeProvider(payments.StripeConfig{
		APIKey:        cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		Log:           log,
	})
	if err != nil {
		log.Fatal("Не удалось создать клиент Stripe", zap.Error(err))
	}

	calendar, err := delivery.NewStaticCalendar(cfg.Checkout.DeliveryTZ, cfg.Checkout.DeliveryFromHr, cfg.Checkout.DeliveryUntilHr)
	if err != nil {
		log.Fatal("Неверные настройки окна доставки", zap.Error(err))
	}

	hasher := auth.NewBcrypt(0)
	tokens := auth.NewHSProvider(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Audience)

	ledger := service.NewInventoryLedger(repos, log)
	gate := service.NewAgeGate(log)

	authSvc := service.NewAuthService(repos, hasher, tokens, gate, cfg.JWT.AccessExp, log)
	catalogSvc := service.NewCatalogService(repos, log)
	cartSvc := service.NewCartService(repos, ledger, gate, log)
	addressSvc := service.NewAddressService(repos, log)
	orderSvc := service.NewOrderService(repos, ledger, gate, stripeProvider, calendar, bus, throttle, service.OrderConfig{
		DeliveryFee:    cfg.Checkout.DeliveryFee,
		Currency:       cfg.Stripe.Currency,
		SubmitThrottle: cfg.Checkout.SubmitThrottle,
	}, log)
	reconciler := service.NewPaymentReconciler(repos, ledger, bus, log)

	ready := func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return err
		}
		if redisClient != nil {
			return redisClient.Ping(ctx)
		}
		return nil
	}

	r := router.Router(router.Deps{
		Auth:           authSvc,
		Catalog:        catalogSvc,
		Stock:          ledger,
		Carts:          cartSvc,
		Addresses:      addressSvc,
		Orders:         orderSvc,
		Tokens:         tokens,
		Verifier:       stripeProvider,
		Events:         reconciler,
		Seen:           throttle,
		AllowedOrigins: cfg.Checkout.AllowedOrigins,
		Ready:          ready,
	}, log)

	sweepSvc := sweeper.NewSweeper(repos, cfg.Sweeper.StaleAfter, log)
	scheduler := sweeper.NewScheduler(sweepSvc, cfg.Sweeper.Interval, log)

	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()
	scheduler.Start(sweepCtx)

	// gRPC health для оркестратора
	lis, err := net.Listen("tcp", cfg.GRPCPort)
	if err != nil {
		log.Fatal("failed to listen", zap.Error(err))
	}
	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthSrv.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	grpc_health_v1.RegisterHealthServer(grpcServer, healthSrv)
	reflection.Register(grpcServer)

	go func() {
		log.Info("Запуск gRPC health сервера", zap.String("addr", cfg.GRPCPort))
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatal("gRPC server failed", zap.Error(err))
		}
	}()

	httpServer := &http.Server{
		Addr:              cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Запуск HTTP сервера", zap.String("addr", cfg.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Остановка сервиса...")

	healthSrv.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	scheduler.Stop()
	sweepCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", zap.Error(err))
	}

	grpcServer.GracefulStop()
	log.Info("Сервис остановлен")
}

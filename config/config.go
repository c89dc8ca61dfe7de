package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"bottlestore-service/internal/platform/database"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Config struct {
	Env      string
	HTTPPort string
	GRPCPort string
	JWT      JWT
	DB       DB
	Stripe   Stripe
	Redis    Redis
	Kafka    Kafka
	Checkout Checkout
	Sweeper  Sweeper
}

type JWT struct {
	Secret    string
	Issuer    string
	Audience  string
	AccessExp time.Duration
}

type DB struct {
	database.Config
}

type Stripe struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
}

type Redis struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type Kafka struct {
	Enabled     bool
	Brokers     []string
	OrdersTopic string
	EmailTopic  string
}

type Checkout struct {
	DeliveryFee     decimal.Decimal
	SubmitThrottle  time.Duration
	AllowedOrigins  []string
	DeliveryTZ      string
	DeliveryFromHr  int
	DeliveryUntilHr int
}

type Sweeper struct {
	StaleAfter time.Duration
	Interval   time.Duration
}

func Load(log *zap.Logger) *Config {
	return &Config{
		Env:      getEnvDefault("ENV", "production"),
		HTTPPort: getEnv("APP_PORT", log),
		GRPCPort: getEnvDefault("GRPC_HEALTH_PORT", ":50061"),
		JWT: JWT{
			Secret:    getEnv("JWT_SECRET", log),
			Issuer:    getEnv("JWT_ISSUER", log),
			Audience:  getEnv("JWT_AUDIENCE", log),
			AccessExp: parseDurationWithDays(getEnvDefault("ACCESS_EXP", "7d")),
		},
		DB: DB{
			Config: database.Config{
				Host:         getEnv("DB_HOST", log),
				Port:         getEnv("DB_PORT", log),
				User:         getEnv("DB_USER", log),
				Password:     getEnv("DB_PASSWORD", log),
				Name:         getEnv("DB_NAME", log),
				SSLMode:      getEnv("DB_SSLMODE", log),
				MaxOpenConns: atoiDefault(getEnvDefault("DB_MAX_OPEN_CONNS", ""), 5),
			},
		},
		Stripe: Stripe{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", log),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", log),
			Currency:      strings.ToLower(getEnvDefault("CURRENCY", "zar")),
		},
		Redis: Redis{
			Enabled:  getEnvDefault("REDIS_ENABLED", "false") == "true",
			Addr:     getEnvDefault("REDIS_ADDR", "localhost:6379"),
			Password: getEnvDefault("REDIS_PASSWORD", ""),
			DB:       atoiDefault(getEnvDefault("REDIS_DB", ""), 0),
		},
		Kafka: Kafka{
			Enabled:     getEnvDefault("KAFKA_ENABLED", "false") == "true",
			Brokers:     splitAndTrim(getEnvDefault("KAFKA_BROKERS", "localhost:9092")),
			OrdersTopic: getEnvDefault("KAFKA_ORDERS_TOPIC", "orders.events"),
			EmailTopic:  getEnvDefault("KAFKA_EMAIL_TOPIC", "email.send"),
		},
		Checkout: Checkout{
			DeliveryFee:     decimalDefault(getEnvDefault("DELIVERY_FEE", ""), decimal.Zero),
			SubmitThrottle:  parseDurationWithDays(getEnvDefault("CHECKOUT_THROTTLE", "5s")),
			AllowedOrigins:  splitAndTrim(getEnvDefault("CORS_ORIGINS", "*")),
			DeliveryTZ:      getEnvDefault("DELIVERY_TZ", "Africa/Johannesburg"),
			DeliveryFromHr:  atoiDefault(getEnvDefault("DELIVERY_FROM_HOUR", ""), 9),
			DeliveryUntilHr: atoiDefault(getEnvDefault("DELIVERY_UNTIL_HOUR", ""), 18),
		},
		Sweeper: Sweeper{
			StaleAfter: parseDurationWithDays(getEnvDefault("STALE_ORDER_AFTER", "2d")),
			Interval:   parseDurationWithDays(getEnvDefault("SWEEP_INTERVAL", "1h")),
		},
	}
}

func getEnv(key string, log *zap.Logger) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	log.Error("Обязательная переменная окружения не установлена", zap.String("key", key))
	panic("missing required environment variable: " + key)
}

func getEnvDefault(key, def string) string {
	if val, exists := os.LookupEnv(key); exists && val != "" {
		return val
	}
	return def
}

func parseDurationWithDays(s string) time.Duration {
	if strings.HasSuffix(s, "d") {
		daysStr := strings.TrimSuffix(s, "d")
		days, err := time.ParseDuration(daysStr + "h")
		if err != nil {
			log.Printf("Ошибка парсинга длительности: %v", err)
			return 0
		}
		return time.Duration(24) * days
	}

	duration, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return duration
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func decimalDefault(s string, def decimal.Decimal) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || d.IsNegative() {
		return def
	}
	return d
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

package service

import (
	"context"
	"time"

	"bottlestore-service/internal/delivery"
	"bottlestore-service/internal/models"

	"github.com/google/uuid"
)

type PaymentIntentRequest struct {
	AmountMinor    int64
	Currency       string
	Description    string
	IdempotencyKey string
	Metadata       map[string]string
}

type PaymentIntent struct {
	ID           string
	ClientSecret string
	Status       string
}

// PaymentProcessor — внешний платёжный провайдер (Stripe).
type PaymentProcessor interface {
	CreatePaymentIntent(ctx context.Context, req PaymentIntentRequest) (PaymentIntent, error)
	CancelPaymentIntent(ctx context.Context, intentID string) error
}

const (
	WebhookPaymentSucceeded = "payment_intent.succeeded"
	WebhookPaymentFailed    = "payment_intent.payment_failed"
	WebhookPaymentCanceled  = "payment_intent.canceled"
)

// WebhookEvent — событие провайдера после проверки подписи.
type WebhookEvent struct {
	ID              string
	Type            string
	PaymentIntentID string
	Metadata        map[string]string
	FailureMessage  string
}

type WebhookVerifier interface {
	VerifyWebhook(payload []byte, sigHeader string) (WebhookEvent, error)
}

type DeliveryWindow interface {
	CanDeliver(t time.Time) delivery.Decision
	NextAvailableDate(from time.Time) time.Time
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) bool
}

type Claims struct {
	UserID uuid.UUID
	Role   models.Role
	Exp    time.Time
}

type TokenProvider interface {
	SignAccess(ctx context.Context, sub uuid.UUID, role string, ttl time.Duration) (token string, exp time.Time, err error)
	ParseAndValidateAccess(ctx context.Context, token string) (*Claims, error)
}

// RateLimiter — ключ с TTL в кэше; nil отключает ограничение.
type RateLimiter interface {
	SetRateLimit(ctx context.Context, key string, ttl time.Duration) error
	CheckRateLimit(ctx context.Context, key string) (bool, error)
}

// ClientMeta — данные запроса для журнала проверки возраста.
type ClientMeta struct {
	IP        *string
	UserAgent *string
}

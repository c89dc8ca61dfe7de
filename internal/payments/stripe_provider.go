// Package payments — адаптер Stripe: платёжные намерения и проверка подписи webhook.
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"bottlestore-service/internal/service"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"
	"go.uber.org/zap"
)

type stripePaymentIntentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Cancel(id string, params *stripe.PaymentIntentCancelParams) (*stripe.PaymentIntent, error)
}

type StripeConfig struct {
	APIKey        string
	WebhookSecret string
	Backends      *stripe.Backends
	// Tolerance — допустимый возраст подписи; 0 — значение по умолчанию библиотеки
	Tolerance time.Duration
	Log       *zap.Logger

	intents stripePaymentIntentAPI
}

type StripeProvider struct {
	intents   stripePaymentIntentAPI
	secret    string
	tolerance time.Duration
	log       *zap.Logger
}

func NewStripeProvider(cfg StripeConfig) (*StripeProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.intents == nil {
		return nil, errors.New("stripe: api key is required")
	}
	if strings.TrimSpace(cfg.WebhookSecret) == "" {
		return nil, errors.New("stripe: webhook secret is required")
	}

	intents := cfg.intents
	if intents == nil {
		intents = client.New(apiKey, cfg.Backends).PaymentIntents
	}

	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}

	return &StripeProvider{
		intents:   intents,
		secret:    cfg.WebhookSecret,
		tolerance: cfg.Tolerance,
		log:       log,
	}, nil
}

func (p *StripeProvider) CreatePaymentIntent(ctx context.Context, req service.PaymentIntentRequest) (service.PaymentIntent, error) {
	if req.AmountMinor <= 0 {
		return service.PaymentIntent{}, errors.New("stripe: amount must be positive")
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.AmountMinor),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	if len(req.Metadata) > 0 {
		params.Metadata = make(map[string]string, len(req.Metadata))
		for k, v := range req.Metadata {
			params.Metadata[k] = v
		}
	}

	pi, err := p.intents.New(params)
	if err != nil {
		return service.PaymentIntent{}, fmt.Errorf("stripe: create payment intent: %w", err)
	}

	p.log.Info("Платёжное намерение создано",
		zap.String("intent_id", pi.ID),
		zap.Int64("amount", pi.Amount),
		zap.String("currency", string(pi.Currency)),
	)

	return service.PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
	}, nil
}

func (p *StripeProvider) CancelPaymentIntent(ctx context.Context, intentID string) error {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	if _, err := p.intents.Cancel(intentID, params); err != nil {
		return fmt.Errorf("stripe: cancel payment intent %s: %w", intentID, err)
	}
	return nil
}

// VerifyWebhook проверяет подпись по сырому телу запроса и только потом разбирает JSON.
func (p *StripeProvider) VerifyWebhook(payload []byte, sigHeader string) (service.WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, p.secret, webhook.ConstructEventOptions{
		Tolerance:                p.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		p.log.Warn("Подпись webhook не прошла проверку", zap.Error(err))
		return service.WebhookEvent{}, fmt.Errorf("%w: %v", service.ErrInvalidWebhookSignature, err)
	}

	out := service.WebhookEvent{
		ID:   event.ID,
		Type: string(event.Type),
	}
	if !strings.HasPrefix(out.Type, "payment_intent.") {
		return out, nil
	}
	if event.Data == nil {
		return out, fmt.Errorf("%w: event %s has no data", service.ErrUnsupportedWebhookEvent, event.ID)
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return out, fmt.Errorf("%w: decode payment intent: %v", service.ErrUnsupportedWebhookEvent, err)
	}
	out.PaymentIntentID = pi.ID
	out.Metadata = pi.Metadata
	if pi.LastPaymentError != nil {
		out.FailureMessage = pi.LastPaymentError.Msg
	}
	return out, nil
}

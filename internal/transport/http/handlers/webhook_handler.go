package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"bottlestore-service/internal/dto"
	"bottlestore-service/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	maxWebhookBody  = 64 << 10
	webhookSeenTTL  = 24 * time.Hour
	webhookSeenNS   = "webhook:"
	signatureHeader = "Stripe-Signature"
)

type EventHandler interface {
	HandleEvent(ctx context.Context, ev service.WebhookEvent) (string, error)
}

type WebhookHandler struct {
	verifier service.WebhookVerifier
	events   EventHandler
	seen     service.RateLimiter // быстрый отсев повторов; nil — только журнал в БД
	log      *zap.Logger
}

func NewWebhookHandler(verifier service.WebhookVerifier, events EventHandler, seen service.RateLimiter, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{verifier: verifier, events: events, seen: seen, log: log}
}

// Handle читает тело как есть: подпись считается по сырым байтам.
func (h *WebhookHandler) Handle(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)
	payload, err := c.GetRawData()
	if err != nil {
		h.log.Warn("Не удалось прочитать тело вебхука", zap.Error(err))
		badRequest(c, "cannot read body")
		return
	}

	ev, err := h.verifier.VerifyWebhook(payload, c.GetHeader(signatureHeader))
	if err != nil {
		h.log.Warn("Вебхук отклонён", zap.Error(err))
		if errors.Is(err, service.ErrInvalidWebhookSignature) {
			c.JSON(http.StatusBadRequest, dto.NewError(dto.CodeInvalidSignature, "invalid signature"))
			return
		}
		badRequest(c, "invalid payload")
		return
	}

	ctx := c.Request.Context()
	if h.seen != nil {
		dup, err := h.seen.CheckRateLimit(ctx, webhookSeenNS+ev.ID)
		if err != nil {
			h.log.Warn("Кэш вебхуков недоступен", zap.Error(err))
		} else if dup {
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}
	}

	outcome, err := h.events.HandleEvent(ctx, ev)
	if err != nil {
		// 500: провайдер повторит доставку
		c.JSON(http.StatusInternalServerError, dto.NewInternalError())
		return
	}

	if h.seen != nil && outcome != service.OutcomeUnknownOrder {
		if err := h.seen.SetRateLimit(ctx, webhookSeenNS+ev.ID, webhookSeenTTL); err != nil {
			h.log.Warn("Не удалось отметить вебхук в кэше", zap.String("event_id", ev.ID), zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

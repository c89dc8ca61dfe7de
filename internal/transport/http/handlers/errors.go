package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"bottlestore-service/internal/dto"
	"bottlestore-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type errMapping struct {
	target error
	status int
	code   string
}

// порядок важен: LineError с ErrProductNotFound внутри — это недоступная позиция, а не 404
var errMappings = []errMapping{
	{service.ErrUnauthorized, http.StatusUnauthorized, dto.CodeUnauthorized},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, dto.CodeUnauthorized},
	{service.ErrForbidden, http.StatusForbidden, dto.CodeForbidden},
	{service.ErrAgeVerificationRequired, http.StatusForbidden, dto.CodeAgeVerificationRequired},
	{service.ErrTooManyRequests, http.StatusTooManyRequests, dto.CodeRateLimited},
	{service.ErrInsufficientStock, http.StatusConflict, dto.CodeInsufficientStock},
	{service.ErrProductUnavailable, http.StatusConflict, dto.CodeProductUnavailable},
	{service.ErrCartEmpty, http.StatusBadRequest, dto.CodeCartEmpty},
	{service.ErrOrderNotCancellable, http.StatusConflict, dto.CodeOrderNotCancellable},
	{service.ErrInvalidStatusTransition, http.StatusConflict, dto.CodeInvalidStatusTransition},
	{service.ErrNotFlaggedForReconcile, http.StatusConflict, dto.CodeConflict},
	{service.ErrOrderTotalsMismatch, http.StatusConflict, dto.CodeConflict},
	{service.ErrEmailExists, http.StatusConflict, dto.CodeConflict},
	{service.ErrDeliveryUnavailable, http.StatusUnprocessableEntity, dto.CodeDeliveryUnavailable},
	{service.ErrPaymentUnavailable, http.StatusBadGateway, dto.CodePaymentUnavailable},
	{service.ErrValidation, http.StatusBadRequest, dto.CodeValidation},
	{service.ErrInvalidQuantity, http.StatusBadRequest, dto.CodeValidation},
	{service.ErrInvalidCategory, http.StatusBadRequest, dto.CodeValidation},
	{service.ErrInvalidPrice, http.StatusBadRequest, dto.CodeValidation},
	{service.ErrInvalidDateOfBirth, http.StatusBadRequest, dto.CodeValidation},
	{service.ErrEmptyItems, http.StatusBadRequest, dto.CodeValidation},
	{service.ErrDeliveryAddressRequired, http.StatusBadRequest, dto.CodeValidation},
	{service.ErrInvalidAddress, http.StatusBadRequest, dto.CodeValidation},
	{service.ErrInvalidStatus, http.StatusBadRequest, dto.CodeValidation},
	{service.ErrStockUnderflow, http.StatusBadRequest, dto.CodeValidation},
	{service.ErrOrderNotFound, http.StatusNotFound, dto.CodeNotFound},
	{service.ErrProductNotFound, http.StatusNotFound, dto.CodeNotFound},
	{service.ErrCartItemNotFound, http.StatusNotFound, dto.CodeNotFound},
	{service.ErrAddressNotFound, http.StatusNotFound, dto.CodeNotFound},
	{service.ErrUserNotFound, http.StatusNotFound, dto.CodeNotFound},
}

// writeError переводит ошибку сервиса в ответ; внутренние детали только в лог.
func writeError(c *gin.Context, log *zap.Logger, err error) {
	var lineErr *service.LineError
	if errors.As(err, &lineErr) {
		status, code := http.StatusConflict, dto.CodeProductUnavailable
		switch {
		case errors.Is(lineErr.Err, service.ErrInsufficientStock):
			code = dto.CodeInsufficientStock
		case errors.Is(lineErr.Err, service.ErrInvalidQuantity):
			status, code = http.StatusBadRequest, dto.CodeValidation
		}
		c.JSON(status, dto.BaseError{
			Code:    code,
			Message: lineErr.Error(),
			Fields: []dto.FieldError{{
				Field:   fmt.Sprintf("items[%d]", lineErr.Line),
				Message: lineErr.Err.Error(),
				Tag:     lineErr.ProductID.String(),
			}},
		})
		return
	}

	for _, m := range errMappings {
		if errors.Is(err, m.target) {
			c.JSON(m.status, dto.NewError(m.code, err.Error()))
			return
		}
	}

	log.Error("Внутренняя ошибка обработки запроса",
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	c.JSON(http.StatusInternalServerError, dto.NewInternalError())
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, dto.NewValidationError(msg, nil))
}

func paramUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}

func queryBool(c *gin.Context, name string) *bool {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &v
}

func clientMeta(c *gin.Context) service.ClientMeta {
	var meta service.ClientMeta
	if ip := c.ClientIP(); ip != "" {
		meta.IP = &ip
	}
	if ua := c.Request.UserAgent(); ua != "" {
		meta.UserAgent = &ua
	}
	return meta
}

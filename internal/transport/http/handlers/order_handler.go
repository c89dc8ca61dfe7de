package handlers

import (
	"fmt"
	"net/http"

	"bottlestore-service/internal/dto"
	"bottlestore-service/internal/models"
	"bottlestore-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type OrderHandler struct {
	orders service.OrderService
	log    *zap.Logger
}

func NewOrderHandler(orders service.OrderService, log *zap.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, log: log}
}

// Checkout оформляет содержимое корзины.
func (h *OrderHandler) Checkout(c *gin.Context) {
	var req dto.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	req.Items = nil
	h.submit(c, req)
}

// Create оформляет явный список позиций.
func (h *OrderHandler) Create(c *gin.Context) {
	var req dto.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if len(req.Items) == 0 {
		writeError(c, h.log, service.ErrEmptyItems)
		return
	}
	h.submit(c, req)
}

func (h *OrderHandler) submit(c *gin.Context, req dto.CheckoutRequest) {
	in := service.CheckoutInput{
		DeliveryAddress:      req.DeliveryAddress.ToModel(),
		DeliveryInstructions: req.DeliveryInstructions,
		DeliveryDate:         req.DeliveryDate,
		Notes:                req.Notes,
	}
	if req.AddressID != nil {
		aid, err := uuid.Parse(*req.AddressID)
		if err != nil {
			badRequest(c, "invalid addressId")
			return
		}
		in.AddressID = &aid
	}
	for i, it := range req.Items {
		pid, err := uuid.Parse(it.ProductID)
		if err != nil {
			c.JSON(http.StatusBadRequest, dto.NewValidationError("invalid product id", []dto.FieldError{
				{Field: fmt.Sprintf("items[%d].productId", i), Message: "must be a uuid", Tag: "uuid"},
			}))
			return
		}
		in.Items = append(in.Items, service.CreateOrderItem{ProductID: pid, Quantity: it.Quantity})
	}

	res, err := h.orders.Checkout(c.Request.Context(), in, clientMeta(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, dto.CheckoutResponse{
		ClientSecret: res.ClientSecret,
		OrderID:      res.Order.ID.String(),
		OrderNumber:  res.Order.OrderNumber,
		TotalAmount:  res.Order.TotalAmount.StringFixed(2),
	})
}

// List — для покупателя сервис сам ограничит выборку его заказами.
func (h *OrderHandler) List(c *gin.Context) {
	f := service.ListFilter{
		Limit:                  queryInt(c, "limit", 20),
		Offset:                 queryInt(c, "offset", 0),
		ReconciliationRequired: queryBool(c, "reconciliation_required"),
	}
	if raw := c.Query("status"); raw != "" {
		st := models.OrderStatus(raw)
		if !st.Valid() {
			writeError(c, h.log, service.ErrInvalidStatus)
			return
		}
		f.Status = &st
	}
	if raw := c.Query("payment_status"); raw != "" {
		ps := models.PaymentStatus(raw)
		f.PaymentStatus = &ps
	}
	if raw := c.Query("user_id"); raw != "" {
		uid, err := uuid.Parse(raw)
		if err != nil {
			badRequest(c, "invalid user_id")
			return
		}
		f.UserID = &uid
	}

	list, total, err := h.orders.ListOrders(c.Request.Context(), f)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.OrderListResponse{
		Orders: dto.FromOrders(list),
		Total:  total,
		Limit:  f.Limit,
		Offset: f.Offset,
	})
}

func (h *OrderHandler) Get(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	o, err := h.orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromOrder(o))
}

func (h *OrderHandler) PaymentStatus(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	o, err := h.orders.GetPaymentStatus(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromPaymentStatus(o))
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req dto.CancelOrderRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}
	o, err := h.orders.CancelOrder(c.Request.Context(), id, req.Reason)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromOrder(o))
}

func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "status is required")
		return
	}
	o, err := h.orders.UpdateStatus(c.Request.Context(), id, models.OrderStatus(req.Status), req.Notes)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromOrder(o))
}

func (h *OrderHandler) ResolveReconciliation(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req dto.ResolveReconciliationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "note is required")
		return
	}
	o, err := h.orders.ResolveReconciliation(c.Request.Context(), id, req.Note)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromOrder(o))
}

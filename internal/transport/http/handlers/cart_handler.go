package handlers

import (
	"net/http"

	"bottlestore-service/internal/dto"
	"bottlestore-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CartHandler struct {
	carts service.CartService
	log   *zap.Logger
}

func NewCartHandler(carts service.CartService, log *zap.Logger) *CartHandler {
	return &CartHandler{carts: carts, log: log}
}

func (h *CartHandler) Get(c *gin.Context) {
	view, err := h.carts.GetCart(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromCart(view))
}

func (h *CartHandler) AddItem(c *gin.Context) {
	var req dto.AddCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "productId and quantity are required")
		return
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		badRequest(c, "invalid productId")
		return
	}
	view, err := h.carts.AddItem(c.Request.Context(), productID, req.Quantity, clientMeta(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromCart(view))
}

func (h *CartHandler) UpdateItem(c *gin.Context) {
	itemID, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "quantity is required")
		return
	}
	view, err := h.carts.SetItemQuantity(c.Request.Context(), itemID, req.Quantity, clientMeta(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromCart(view))
}

func (h *CartHandler) RemoveItem(c *gin.Context) {
	itemID, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	view, err := h.carts.RemoveItem(c.Request.Context(), itemID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromCart(view))
}

func (h *CartHandler) Clear(c *gin.Context) {
	if err := h.carts.Clear(c.Request.Context()); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

package handlers

import (
	"context"
	"net/http"

	"bottlestore-service/internal/dto"
	"bottlestore-service/internal/models"
	"bottlestore-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// StockAdjuster — единственная точка ручного изменения остатка.
type StockAdjuster interface {
	AdjustStock(ctx context.Context, productID uuid.UUID, delta int) (*models.Product, error)
}

type ProductHandler struct {
	catalog service.CatalogService
	stock   StockAdjuster
	log     *zap.Logger
}

func NewProductHandler(catalog service.CatalogService, stock StockAdjuster, log *zap.Logger) *ProductHandler {
	return &ProductHandler{catalog: catalog, stock: stock, log: log}
}

func (h *ProductHandler) List(c *gin.Context) {
	q := service.ProductQuery{
		Brand:           c.Query("brand"),
		Query:           c.Query("search"),
		Featured:        queryBool(c, "featured"),
		Limit:           queryInt(c, "limit", 20),
		Offset:          queryInt(c, "offset", 0),
		IncludeInactive: c.Query("include_inactive") == "true",
	}
	if raw := c.Query("category"); raw != "" {
		cat := models.ProductCategory(raw)
		q.Category = &cat
	}
	for name, dst := range map[string]**decimal.Decimal{"min_price": &q.MinPrice, "max_price": &q.MaxPrice} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		v, err := decimal.NewFromString(raw)
		if err != nil {
			badRequest(c, "invalid "+name)
			return
		}
		*dst = &v
	}

	list, total, err := h.catalog.ListProducts(c.Request.Context(), q)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.ProductListResponse{
		Products: dto.FromProducts(list),
		Total:    total,
		Limit:    q.Limit,
		Offset:   q.Offset,
	})
}

func (h *ProductHandler) Featured(c *gin.Context) {
	featured := true
	list, _, err := h.catalog.ListProducts(c.Request.Context(), service.ProductQuery{
		Featured: &featured,
		Limit:    queryInt(c, "limit", 8),
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": dto.FromProducts(list)})
}

func (h *ProductHandler) Categories(c *gin.Context) {
	cats, err := h.catalog.Categories(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": cats})
}

// Get принимает id или slug.
func (h *ProductHandler) Get(c *gin.Context) {
	ref := c.Param("id")
	var (
		p   *models.Product
		err error
	)
	if id, perr := uuid.Parse(ref); perr == nil {
		p, err = h.catalog.GetProduct(c.Request.Context(), id)
	} else {
		p, err = h.catalog.GetProductBySlug(c.Request.Context(), ref)
	}
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromProduct(p))
}

func (h *ProductHandler) Create(c *gin.Context) {
	var req dto.ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("Неверный запрос создания товара", zap.Error(err))
		badRequest(c, "invalid request body")
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	p, err := h.catalog.CreateProduct(c.Request.Context(), service.ProductInput{
		Name:              req.Name,
		Description:       req.Description,
		Category:          models.ProductCategory(req.Category),
		Subcategory:       req.Subcategory,
		Brand:             req.Brand,
		AlcoholContent:    req.AlcoholContent,
		VolumeML:          req.VolumeML,
		Price:             req.Price,
		StockQuantity:     req.StockQuantity,
		LowStockThreshold: req.LowStockThreshold,
		ImageURL:          req.ImageURL,
		IsActive:          active,
		Featured:          req.Featured,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, dto.FromProduct(p))
}

func (h *ProductHandler) Update(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req dto.ProductPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	patch := service.ProductPatch{
		Name:              req.Name,
		Description:       req.Description,
		Subcategory:       req.Subcategory,
		Brand:             req.Brand,
		AlcoholContent:    req.AlcoholContent,
		VolumeML:          req.VolumeML,
		Price:             req.Price,
		LowStockThreshold: req.LowStockThreshold,
		ImageURL:          req.ImageURL,
		IsActive:          req.IsActive,
		Featured:          req.Featured,
	}
	if req.Category != nil {
		cat := models.ProductCategory(*req.Category)
		patch.Category = &cat
	}

	p, err := h.catalog.UpdateProduct(c.Request.Context(), id, patch)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromProduct(p))
}

func (h *ProductHandler) Delete(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	if err := h.catalog.DeleteProduct(c.Request.Context(), id); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ProductHandler) AdjustStock(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req dto.StockAdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "delta must be a non-zero integer")
		return
	}
	p, err := h.stock.AdjustStock(c.Request.Context(), id, req.Delta)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromProduct(p))
}

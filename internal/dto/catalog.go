package dto

import (
	"time"

	"bottlestore-service/internal/models"

	"github.com/shopspring/decimal"
)

const DateLayout = "2006-01-02"

type ProductRequest struct {
	Name              string           `json:"name" binding:"required"`
	Description       string           `json:"description"`
	Category          string           `json:"category" binding:"required"`
	Subcategory       string           `json:"subcategory"`
	Brand             string           `json:"brand"`
	AlcoholContent    *decimal.Decimal `json:"alcoholContent"`
	VolumeML          *int             `json:"volumeMl"`
	Price             decimal.Decimal  `json:"price"`
	StockQuantity     int              `json:"stockQuantity" binding:"min=0"`
	LowStockThreshold *int             `json:"lowStockThreshold"`
	ImageURL          string           `json:"imageUrl"`
	IsActive          *bool            `json:"isActive"`
	Featured          bool             `json:"featured"`
}

// ProductPatchRequest — остаток здесь не меняется, для этого есть /stock.
type ProductPatchRequest struct {
	Name              *string          `json:"name"`
	Description       *string          `json:"description"`
	Category          *string          `json:"category"`
	Subcategory       *string          `json:"subcategory"`
	Brand             *string          `json:"brand"`
	AlcoholContent    *decimal.Decimal `json:"alcoholContent"`
	VolumeML          *int             `json:"volumeMl"`
	Price             *decimal.Decimal `json:"price"`
	LowStockThreshold *int             `json:"lowStockThreshold"`
	ImageURL          *string          `json:"imageUrl"`
	IsActive          *bool            `json:"isActive"`
	Featured          *bool            `json:"featured"`
}

type StockAdjustRequest struct {
	Delta int `json:"delta" binding:"required"`
}

type ProductResponse struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	Slug           string           `json:"slug"`
	Description    string           `json:"description,omitempty"`
	Category       string           `json:"category"`
	Subcategory    string           `json:"subcategory,omitempty"`
	Brand          string           `json:"brand,omitempty"`
	AlcoholContent *decimal.Decimal `json:"alcoholContent,omitempty"`
	VolumeML       *int             `json:"volumeMl,omitempty"`
	Price          string           `json:"price"`
	StockQuantity  int              `json:"stockQuantity"`
	LowStock       bool             `json:"lowStock"`
	ImageURL       string           `json:"imageUrl,omitempty"`
	IsActive       bool             `json:"isActive"`
	Featured       bool             `json:"featured"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

type ProductListResponse struct {
	Products []ProductResponse `json:"products"`
	Total    int64             `json:"total"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

func FromProduct(p *models.Product) ProductResponse {
	return ProductResponse{
		ID:             p.ID.String(),
		Name:           p.Name,
		Slug:           p.Slug,
		Description:    p.Description,
		Category:       string(p.Category),
		Subcategory:    p.Subcategory,
		Brand:          p.Brand,
		AlcoholContent: p.AlcoholContent,
		VolumeML:       p.VolumeML,
		Price:          p.Price.StringFixed(2),
		StockQuantity:  p.StockQuantity,
		LowStock:       p.LowStock(),
		ImageURL:       p.ImageURL,
		IsActive:       p.IsActive,
		Featured:       p.Featured,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func FromProducts(list []models.Product) []ProductResponse {
	out := make([]ProductResponse, 0, len(list))
	for i := range list {
		out = append(out, FromProduct(&list[i]))
	}
	return out
}

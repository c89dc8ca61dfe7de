package dto

import "bottlestore-service/internal/service"

type AddCartItemRequest struct {
	ProductID string `json:"productId" binding:"required,uuid"`
	Quantity  int    `json:"quantity" binding:"required"`
}

type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" binding:"required"`
}

type CartLineResponse struct {
	ItemID    string `json:"itemId"`
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	ImageURL  string `json:"imageUrl,omitempty"`
	UnitPrice string `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
	LineTotal string `json:"lineTotal"`
	Available bool   `json:"available"`
	InStock   int    `json:"inStock"`
}

type CartResponse struct {
	CartID    string             `json:"cartId"`
	Items     []CartLineResponse `json:"items"`
	ItemCount int                `json:"itemCount"`
	Subtotal  string             `json:"subtotal"`
}

func FromCart(v *service.CartView) CartResponse {
	resp := CartResponse{
		CartID:    v.CartID.String(),
		Items:     make([]CartLineResponse, 0, len(v.Lines)),
		ItemCount: v.ItemCount,
		Subtotal:  v.Subtotal.StringFixed(2),
	}
	for _, l := range v.Lines {
		resp.Items = append(resp.Items, CartLineResponse{
			ItemID:    l.ItemID.String(),
			ProductID: l.ProductID.String(),
			Name:      l.Name,
			ImageURL:  l.ImageURL,
			UnitPrice: l.UnitPrice.StringFixed(2),
			Quantity:  l.Quantity,
			LineTotal: l.LineTotal.StringFixed(2),
			Available: l.Available,
			InStock:   l.InStock,
		})
	}
	return resp
}

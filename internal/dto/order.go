package dto

import (
	"time"

	"bottlestore-service/internal/models"
)

type OrderItemRequest struct {
	ProductID string `json:"productId" binding:"required,uuid"`
	Quantity  int    `json:"quantity"`
}

type AddressRequest struct {
	Street     string `json:"street"`
	Suburb     string `json:"suburb"`
	City       string `json:"city"`
	Province   string `json:"province"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

type CheckoutRequest struct {
	Items                []OrderItemRequest `json:"items"`
	AddressID            *string            `json:"addressId" binding:"omitempty,uuid"`
	DeliveryAddress      AddressRequest     `json:"deliveryAddress"`
	DeliveryInstructions string             `json:"deliveryInstructions"`
	DeliveryDate         *time.Time         `json:"deliveryDate"` // RFC3339
	Notes                string             `json:"notes"`
}

// CheckoutResponse — покупатель получает только то, что нужно для оплаты.
type CheckoutResponse struct {
	ClientSecret string `json:"clientSecret"`
	OrderID      string `json:"orderId"`
	OrderNumber  string `json:"orderNumber"`
	TotalAmount  string `json:"totalAmount"`
}

type CancelOrderRequest struct {
	Reason *string `json:"reason"`
}

type UpdateStatusRequest struct {
	Status string  `json:"status" binding:"required"`
	Notes  *string `json:"notes"`
}

type ResolveReconciliationRequest struct {
	Note string `json:"note" binding:"required"`
}

type OrderItemResponse struct {
	ProductID    string `json:"productId"`
	ProductName  string `json:"productName"`
	ProductPrice string `json:"productPrice"`
	Quantity     int    `json:"quantity"`
	Subtotal     string `json:"subtotal"`
}

type OrderResponse struct {
	ID                     string              `json:"id"`
	OrderNumber            string              `json:"orderNumber"`
	UserID                 string              `json:"userId"`
	Status                 string              `json:"status"`
	PaymentStatus          string              `json:"paymentStatus"`
	Subtotal               string              `json:"subtotal"`
	VATAmount              string              `json:"vatAmount"`
	DeliveryFee            string              `json:"deliveryFee"`
	TotalAmount            string              `json:"totalAmount"`
	Currency               string              `json:"currency"`
	DeliveryAddress        AddressRequest      `json:"deliveryAddress"`
	DeliveryInstructions   string              `json:"deliveryInstructions,omitempty"`
	DeliveryDate           *time.Time          `json:"deliveryDate,omitempty"`
	PaymentMethod          *string             `json:"paymentMethod,omitempty"`
	Notes                  string              `json:"notes,omitempty"`
	CancelReason           *string             `json:"cancelReason,omitempty"`
	ReconciliationRequired bool                `json:"reconciliationRequired"`
	ReconciliationNote     *string             `json:"reconciliationNote,omitempty"`
	Items                  []OrderItemResponse `json:"items"`
	CreatedAt              time.Time           `json:"createdAt"`
	UpdatedAt              time.Time           `json:"updatedAt"`
}

type OrderListResponse struct {
	Orders []OrderResponse `json:"orders"`
	Total  int64           `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

type PaymentStatusResponse struct {
	OrderID       string `json:"orderId"`
	OrderNumber   string `json:"orderNumber"`
	Status        string `json:"status"`
	PaymentStatus string `json:"paymentStatus"`
	TotalAmount   string `json:"totalAmount"`
}

func (a AddressRequest) ToModel() models.DeliveryAddress {
	return models.DeliveryAddress{
		Street:     a.Street,
		Suburb:     a.Suburb,
		City:       a.City,
		Province:   a.Province,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}

func FromOrder(o *models.Order) OrderResponse {
	resp := OrderResponse{
		ID:            o.ID.String(),
		OrderNumber:   o.OrderNumber,
		UserID:        o.UserID.String(),
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		Subtotal:      o.Subtotal.StringFixed(2),
		VATAmount:     o.VATAmount.StringFixed(2),
		DeliveryFee:   o.DeliveryFee.StringFixed(2),
		TotalAmount:   o.TotalAmount.StringFixed(2),
		Currency:      o.Currency,
		DeliveryAddress: AddressRequest{
			Street:     o.DeliveryAddress.Street,
			Suburb:     o.DeliveryAddress.Suburb,
			City:       o.DeliveryAddress.City,
			Province:   o.DeliveryAddress.Province,
			PostalCode: o.DeliveryAddress.PostalCode,
			Country:    o.DeliveryAddress.Country,
		},
		DeliveryInstructions:   o.DeliveryInstructions,
		DeliveryDate:           o.DeliveryDate,
		PaymentMethod:          o.PaymentMethod,
		Notes:                  o.Notes,
		CancelReason:           o.CancelReason,
		ReconciliationRequired: o.ReconciliationRequired,
		ReconciliationNote:     o.ReconciliationNote,
		Items:                  make([]OrderItemResponse, 0, len(o.Items)),
		CreatedAt:              o.CreatedAt,
		UpdatedAt:              o.UpdatedAt,
	}
	for _, it := range o.Items {
		resp.Items = append(resp.Items, OrderItemResponse{
			ProductID:    it.ProductID.String(),
			ProductName:  it.ProductName,
			ProductPrice: it.ProductPrice.StringFixed(2),
			Quantity:     it.Quantity,
			Subtotal:     it.Subtotal.StringFixed(2),
		})
	}
	return resp
}

func FromOrders(list []models.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(list))
	for i := range list {
		out = append(out, FromOrder(&list[i]))
	}
	return out
}

func FromPaymentStatus(o *models.Order) PaymentStatusResponse {
	return PaymentStatusResponse{
		OrderID:       o.ID.String(),
		OrderNumber:   o.OrderNumber,
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		TotalAmount:   o.TotalAmount.StringFixed(2),
	}
}

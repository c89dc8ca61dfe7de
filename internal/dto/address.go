package dto

import (
	"time"

	"bottlestore-service/internal/models"
)

type AddressCreateRequest struct {
	AddressType *string `json:"addressType" binding:"omitempty,oneof=home work other"`
	Street      string  `json:"streetAddress" binding:"required"`
	Suburb      string  `json:"suburb"`
	City        string  `json:"city" binding:"required"`
	Province    string  `json:"province" binding:"required"`
	PostalCode  string  `json:"postalCode" binding:"required"`
	IsDefault   bool    `json:"isDefault"`
}

type AddressUpdateRequest struct {
	AddressType *string `json:"addressType" binding:"omitempty,oneof=home work other"`
	Street      *string `json:"streetAddress"`
	Suburb      *string `json:"suburb"`
	City        *string `json:"city"`
	Province    *string `json:"province"`
	PostalCode  *string `json:"postalCode"`
	IsDefault   *bool   `json:"isDefault"`
}

type AddressResponse struct {
	ID          string    `json:"id"`
	AddressType *string   `json:"addressType,omitempty"`
	Street      string    `json:"streetAddress"`
	Suburb      string    `json:"suburb,omitempty"`
	City        string    `json:"city"`
	Province    string    `json:"province"`
	PostalCode  string    `json:"postalCode"`
	IsDefault   bool      `json:"isDefault"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type AddressListResponse struct {
	Addresses []AddressResponse `json:"addresses"`
}

func AddressTypePtr(s *string) *models.AddressType {
	if s == nil {
		return nil
	}
	t := models.AddressType(*s)
	return &t
}

func FromAddress(a *models.Address) AddressResponse {
	resp := AddressResponse{
		ID:         a.ID.String(),
		Street:     a.Street,
		Suburb:     a.Suburb,
		City:       a.City,
		Province:   a.Province,
		PostalCode: a.PostalCode,
		IsDefault:  a.IsDefault,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
	if a.AddressType != nil {
		t := string(*a.AddressType)
		resp.AddressType = &t
	}
	return resp
}

func FromAddresses(list []models.Address) AddressListResponse {
	resp := AddressListResponse{Addresses: make([]AddressResponse, 0, len(list))}
	for i := range list {
		resp.Addresses = append(resp.Addresses, FromAddress(&list[i]))
	}
	return resp
}

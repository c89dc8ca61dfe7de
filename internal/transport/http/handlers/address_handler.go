package handlers

import (
	"net/http"

	"bottlestore-service/internal/dto"
	"bottlestore-service/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AddressHandler struct {
	addresses service.AddressService
	log       *zap.Logger
}

func NewAddressHandler(addresses service.AddressService, log *zap.Logger) *AddressHandler {
	return &AddressHandler{addresses: addresses, log: log}
}

func (h *AddressHandler) List(c *gin.Context) {
	list, err := h.addresses.ListAddresses(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromAddresses(list))
}

func (h *AddressHandler) Create(c *gin.Context) {
	var req dto.AddressCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "streetAddress, city, province and postalCode are required")
		return
	}
	a, err := h.addresses.CreateAddress(c.Request.Context(), service.AddressInput{
		AddressType: dto.AddressTypePtr(req.AddressType),
		Street:      req.Street,
		Suburb:      req.Suburb,
		City:        req.City,
		Province:    req.Province,
		PostalCode:  req.PostalCode,
		IsDefault:   req.IsDefault,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, dto.FromAddress(a))
}

func (h *AddressHandler) Update(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req dto.AddressUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	a, err := h.addresses.UpdateAddress(c.Request.Context(), id, service.AddressPatch{
		AddressType: dto.AddressTypePtr(req.AddressType),
		Street:      req.Street,
		Suburb:      req.Suburb,
		City:        req.City,
		Province:    req.Province,
		PostalCode:  req.PostalCode,
		IsDefault:   req.IsDefault,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromAddress(a))
}

func (h *AddressHandler) Delete(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	if err := h.addresses.DeleteAddress(c.Request.Context(), id); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AddressHandler) SetDefault(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	a, err := h.addresses.SetDefaultAddress(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromAddress(a))
}

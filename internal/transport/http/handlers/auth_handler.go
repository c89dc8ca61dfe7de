package handlers

import (
	"context"
	"net/http"
	"time"

	"bottlestore-service/internal/dto"
	"bottlestore-service/internal/models"
	"bottlestore-service/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Authenticator interface {
	Register(ctx context.Context, in service.RegisterInput, meta service.ClientMeta) (*service.AuthResult, error)
	Login(ctx context.Context, email, password string) (*service.AuthResult, error)
	Me(ctx context.Context) (*models.User, error)
	VerifyAge(ctx context.Context, meta service.ClientMeta) (*models.User, error)
}

type AuthHandler struct {
	auth Authenticator
	log  *zap.Logger
}

func NewAuthHandler(auth Authenticator, log *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, log: log}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("Неверный запрос регистрации", zap.Error(err))
		badRequest(c, "invalid request body")
		return
	}
	dob, err := time.Parse(dto.DateLayout, req.DateOfBirth)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.NewValidationError("invalid date of birth", []dto.FieldError{
			{Field: "dateOfBirth", Message: "expected YYYY-MM-DD", Tag: "date"},
		}))
		return
	}

	res, err := h.auth.Register(c.Request.Context(), service.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Phone:       req.Phone,
		DateOfBirth: dob,
	}, clientMeta(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, toAuthResponse(res))
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("Неверный запрос входа", zap.Error(err))
		badRequest(c, "invalid request body")
		return
	}
	res, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, toAuthResponse(res))
}

func (h *AuthHandler) Me(c *gin.Context) {
	u, err := h.auth.Me(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromUser(u))
}

func (h *AuthHandler) VerifyAge(c *gin.Context) {
	u, err := h.auth.VerifyAge(c.Request.Context(), clientMeta(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromUser(u))
}

func toAuthResponse(res *service.AuthResult) dto.AuthResponse {
	return dto.AuthResponse{
		User:        dto.FromUser(res.User),
		AccessToken: res.AccessToken,
		ExpiresAt:   res.ExpiresAt,
	}
}

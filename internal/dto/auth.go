package dto

import (
	"time"

	"bottlestore-service/internal/models"
)

type RegisterRequest struct {
	Email       string  `json:"email" binding:"required,email"`
	Password    string  `json:"password" binding:"required,min=8"`
	FirstName   string  `json:"firstName" binding:"required"`
	LastName    string  `json:"lastName" binding:"required"`
	Phone       *string `json:"phone"`
	DateOfBirth string  `json:"dateOfBirth" binding:"required"` // YYYY-MM-DD
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type UserResponse struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	FirstName     string     `json:"firstName"`
	LastName      string     `json:"lastName"`
	Phone         *string    `json:"phone,omitempty"`
	DateOfBirth   *string    `json:"dateOfBirth,omitempty"`
	AgeVerified   bool       `json:"ageVerified"`
	AgeVerifiedAt *time.Time `json:"ageVerifiedAt,omitempty"`
	Role          string     `json:"role"`
	CreatedAt     time.Time  `json:"createdAt"`
}

type AuthResponse struct {
	User        UserResponse `json:"user"`
	AccessToken string       `json:"accessToken"`
	ExpiresAt   time.Time    `json:"expiresAt"`
}

func FromUser(u *models.User) UserResponse {
	resp := UserResponse{
		ID:            u.ID.String(),
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Phone:         u.Phone,
		AgeVerified:   u.AgeVerified,
		AgeVerifiedAt: u.AgeVerifiedAt,
		Role:          string(u.Role),
		CreatedAt:     u.CreatedAt,
	}
	if u.DateOfBirth != nil {
		dob := u.DateOfBirth.Format(DateLayout)
		resp.DateOfBirth = &dob
	}
	return resp
}

package auth

import (
	"github.com/angelmondragon/storefront-backend/internal/delivery"
	"github.com/angelmondragon/storefront-backend/internal/users"
)

// RegisterRequest creates a customer account.
type RegisterRequest struct {
	Name     string  `json:"name" validate:"required,max=120"`
	Email    string  `json:"email" validate:"required,email"`
	Phone    *string `json:"phone,omitempty" validate:"omitempty,e164"`
	Password string  `json:"password" validate:"required,min=8,max=128"`
}

// LoginRequest accepts either an email or a phone number as identifier.
type LoginRequest struct {
	Email    string `json:"email,omitempty" validate:"required_without=Phone,omitempty,email"`
	Phone    string `json:"phone,omitempty" validate:"required_without=Email,omitempty,e164"`
	Password string `json:"password" validate:"required"`
}

// WorkerLoginRequest authenticates a delivery or stock worker.
type WorkerLoginRequest struct {
	Phone    string `json:"phone" validate:"required,e164"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest carries the (possibly expired) access token and its
// refresh token.
type RefreshRequest struct {
	AccessToken  string `json:"accessToken" validate:"required"`
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// TokenResponse is returned by every flow that issues tokens. Exactly one of
// User or Worker is set.
type TokenResponse struct {
	AccessToken  string              `json:"accessToken"`
	RefreshToken string              `json:"refreshToken"`
	ExpiresIn    int64               `json:"expiresIn"`
	User         *users.UserDTO      `json:"user,omitempty"`
	Worker       *delivery.WorkerDTO `json:"worker,omitempty"`
}

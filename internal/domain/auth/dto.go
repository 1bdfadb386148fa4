package auth

import (
	"time"

	"github.com/google/uuid"

	"github.com/ficore/wallet-api/internal/domain/user"
)

// RegisterRequest for POST /auth/register
type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required,min=8,max=128"`
	FirstName string `json:"first_name" validate:"required,min=1,max=100"`
	LastName  string `json:"last_name" validate:"required,min=1,max=100"`
}

// LoginRequest for POST /auth/login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest for POST /auth/refresh and /auth/logout
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// KYCRequest captures the identity numbers required before wallet creation.
type KYCRequest struct {
	BVN string `json:"bvn" validate:"required,identity11"`
	NIN string `json:"nin" validate:"required,identity11"`
}

// UserResponse represents user in API response
type UserResponse struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	KYCComplete bool      `json:"kyc_complete"`
	Tier        string    `json:"tier"`
	CreatedAt   time.Time `json:"created_at"`
}

// TokensResponse contains token pair
type TokensResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// AuthResponse returned after login/register
type AuthResponse struct {
	User   UserResponse   `json:"user"`
	Tokens TokensResponse `json:"tokens"`
}

// UserResponseFromEntity converts entity to response
func UserResponseFromEntity(u *user.User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		Role:        string(u.Role),
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		KYCComplete: u.KYCComplete(),
		Tier:        string(u.FeeTier(time.Now())),
		CreatedAt:   u.CreatedAt,
	}
}

package dto

import "github.com/spec-kit/auth-service/internal/domain"

// RegisterRequest payload for new accounts. RegNo and Role are optional.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	RegNo    string `json:"regNo"`
	Role     string `json:"role"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// VerifyEmailRequest payload for POST verification.
type VerifyEmailRequest struct {
	Token string `json:"token"`
}

// UserResponse is the public account summary. The password hash never
// leaves the service.
type UserResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// NewUserResponse maps a domain user to its public summary.
func NewUserResponse(user *domain.User) UserResponse {
	return UserResponse{ID: user.ID, Name: user.Name, Email: user.Email}
}

// RegisterResponse for POST /auth/register.
type RegisterResponse struct {
	Message string       `json:"message"`
	User    UserResponse `json:"user"`
}

// LoginResponse for POST /auth/login. The refresh token travels only in
// the cookie, never in this body.
type LoginResponse struct {
	Message     string       `json:"message"`
	User        UserResponse `json:"user"`
	AccessToken string       `json:"accessToken"`
}

// RefreshResponse for POST /auth/refresh-token.
type RefreshResponse struct {
	AccessToken string `json:"accessToken"`
}

// MessageResponse generic message body.
type MessageResponse struct {
	Message string `json:"message"`
}

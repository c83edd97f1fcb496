package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/auth-service/internal/api/dto"
	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/service"
	apperrors "github.com/spec-kit/auth-service/pkg/util"
)

const refreshCookieName = "refreshToken"

// AuthHandler exposes the authentication endpoints.
type AuthHandler struct {
	auth     *service.AuthService
	baseURL  string
	secure   bool
	sameSite string
}

// NewAuthHandler constructs handler. secure controls the refresh cookie's
// Secure attribute (on in production).
func NewAuthHandler(authService *service.AuthService, baseURL string, secure bool) *AuthHandler {
	return &AuthHandler{
		auth:     authService,
		baseURL:  baseURL,
		secure:   secure,
		sameSite: fiber.CookieSameSiteStrictMode,
	}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	result, err := h.auth.Register(c.UserContext(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		RegNo:    req.RegNo,
		Role:     req.Role,
	})
	if err != nil {
		return err
	}

	message := "User created successfully. Please check your email for verification link."
	if !result.VerificationSent {
		message = "User created successfully. Email verification could not be sent."
	}

	return c.Status(http.StatusCreated).JSON(dto.RegisterResponse{
		Message: message,
		User:    dto.NewUserResponse(result.User),
	})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	result, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}

	h.setRefreshCookie(c, result.RefreshToken, result.RefreshExpiresAt)

	return c.JSON(dto.LoginResponse{
		Message:     "Login successful",
		User:        dto.NewUserResponse(result.User),
		AccessToken: result.AccessToken,
	})
}

// VerifyEmail handles POST /auth/verify-email.
func (h *AuthHandler) VerifyEmail(c *fiber.Ctx) error {
	var req dto.VerifyEmailRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	if err := h.auth.VerifyEmail(c.UserContext(), req.Token); err != nil {
		return err
	}
	return c.JSON(dto.MessageResponse{Message: "Email verified successfully"})
}

// VerifyEmailPage handles GET /auth/verify-email?token= and renders a
// small HTML result page for links opened from the mail client.
func (h *AuthHandler) VerifyEmailPage(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)

	token := c.Query("token")
	if token == "" {
		return c.Status(http.StatusBadRequest).
			SendString(h.failurePage("No token provided."))
	}

	if err := h.auth.VerifyEmail(c.UserContext(), token); err != nil {
		return c.Status(http.StatusBadRequest).
			SendString(h.failurePage("Invalid or expired token. Please request a new verification email."))
	}
	return c.SendString(h.successPage())
}

// RefreshToken handles POST /auth/refresh-token.
func (h *AuthHandler) RefreshToken(c *fiber.Ctx) error {
	refreshToken := c.Cookies(refreshCookieName)
	if refreshToken == "" {
		return apperrors.NewUnauthorized("refresh token not provided")
	}

	accessToken, err := h.auth.Refresh(c.UserContext(), refreshToken)
	if err != nil {
		return err
	}
	return c.JSON(dto.RefreshResponse{AccessToken: accessToken})
}

// Logout handles POST /auth/logout. Always clears the cookie and reports
// success, even when the stored row was already revoked or absent.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if refreshToken := c.Cookies(refreshCookieName); refreshToken != "" {
		h.auth.Logout(c.UserContext(), refreshToken)
	}

	h.clearRefreshCookie(c)
	return c.JSON(dto.MessageResponse{Message: "Logged out successfully"})
}

// Me handles GET /auth/me for bearer-authenticated callers.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	response := fiber.Map{
		"user": fiber.Map{
			"id":       user.ID,
			"name":     user.Name,
			"email":    user.Email,
			"verified": user.Verified,
			"role":     user.Role,
		},
	}

	if session, err := h.auth.ActiveSession(c.UserContext(), user.ID); err == nil {
		response["session"] = fiber.Map{
			"createdAt": session.CreatedAt,
			"expiresAt": session.ExpiresAt,
		}
	}

	return c.JSON(response)
}

func (h *AuthHandler) setRefreshCookie(c *fiber.Ctx, token string, expiresAt time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		HTTPOnly: true,
		Secure:   h.secure,
		SameSite: h.sameSite,
	})
}

func (h *AuthHandler) clearRefreshCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   h.secure,
		SameSite: h.sameSite,
	})
}

func (h *AuthHandler) successPage() string {
	return fmt.Sprintf(`<html>
    <body style="font-family: Arial, sans-serif; text-align: center; padding: 50px;">
        <h2>Email Verified Successfully!</h2>
        <p>Your email has been verified. You can now log in to your account.</p>
        <a href="%s/login" style="color: #007bff;">Go to Login</a>
    </body>
</html>`, h.baseURL)
}

func (h *AuthHandler) failurePage(reason string) string {
	return fmt.Sprintf(`<html>
    <body style="font-family: Arial, sans-serif; text-align: center; padding: 50px;">
        <h2>Verification Failed</h2>
        <p>%s</p>
        <a href="%s" style="color: #007bff;">Go to App</a>
    </body>
</html>`, reason, h.baseURL)
}

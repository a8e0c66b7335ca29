package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/voiceforge/api/internal/auth"
	"github.com/voiceforge/api/pkg/response"
)

// AuthHandler serves the ForwardAuth verification endpoint used when the
// service runs behind a gateway.
type AuthHandler struct {
	jwtSecret string
}

func NewAuthHandler(jwtSecret string) *AuthHandler {
	return &AuthHandler{jwtSecret: jwtSecret}
}

// Verify handles GET /auth/verify. On success it returns the caller
// identity in X-User-* headers for the gateway to forward.
func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return response.Unauthorized(c, "Missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return response.Unauthorized(c, "Invalid authorization header format")
	}

	claims, err := auth.ValidateToken(parts[1], h.jwtSecret)
	if err != nil {
		return response.Unauthorized(c, "Invalid or expired token")
	}

	c.Set("X-User-Id", claims.UserID)
	c.Set("X-User-Email", claims.Email)
	return c.SendStatus(fiber.StatusOK)
}

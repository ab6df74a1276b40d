package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Middleware validates the access token on protected HTTP routes and
// stores the resolved identity in the request locals. The token may arrive
// as a bearer header, an accessToken query parameter or a cookie.
func Middleware(jwtManager *JWTManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := extractToken(c)
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Missing access token in the request",
			})
		}

		claims, err := jwtManager.ValidateAccessToken(token)
		if err != nil {
			if errors.Is(err, ErrExpiredToken) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"message": "Invalid Access Token",
					"code":    "TOKEN_EXPIRED",
				})
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Invalid Access Token",
			})
		}

		c.Locals("username", claims.Username)
		c.Locals("userID", claims.UserID)
		c.Locals("accessToken", token)
		return c.Next()
	}
}

func extractToken(c *fiber.Ctx) string {
	authHeader := c.Get("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
		return ""
	}
	if token := c.Query("accessToken"); token != "" {
		return token
	}
	return c.Cookies("accessToken")
}

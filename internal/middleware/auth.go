package middleware

import (
	"strconv"
	"strings"

	"warden/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

var cfg *config.Config

// InitMiddleware initializes authentication middleware with the given config.
func InitMiddleware(c *config.Config) {
	cfg = c
}

// AuthRequired verifies a bearer JWT and stores the subject as c.Locals("userID").
// Tokens are issued elsewhere; this service only checks them.
func AuthRequired(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return unauthorized(c, "Authorization header required")
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return unauthorized(c, "Invalid authorization header format")
	}
	return authenticate(c, parts[1])
}

// WebSocketAuthRequired accepts the token from the query string, since
// browsers cannot set headers on websocket upgrades.
func WebSocketAuthRequired(c *fiber.Ctx) error {
	if token := c.Query("token"); token != "" {
		return authenticate(c, token)
	}
	return AuthRequired(c)
}

func authenticate(c *fiber.Ctx, tokenString string) error {
	userID, err := ParseUserToken(tokenString)
	if err != nil {
		return unauthorized(c, err.Error())
	}
	c.Locals("userID", userID)
	return c.Next()
}

// ParseUserToken validates an HS256 token and returns the user ID in its
// "sub" claim.
func ParseUserToken(tokenString string) (uint, error) {
	if cfg == nil {
		return 0, fiber.NewError(fiber.StatusUnauthorized, "Authentication is not configured")
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
		}
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return 0, fiber.NewError(fiber.StatusUnauthorized, "Invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, fiber.NewError(fiber.StatusUnauthorized, "Invalid token claims")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return 0, fiber.NewError(fiber.StatusUnauthorized, "Invalid token structure - missing subject")
	}
	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil || userID == 0 {
		return 0, fiber.NewError(fiber.StatusUnauthorized, "Invalid user ID in token")
	}
	return uint(userID), nil
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": msg,
		"code":  "UNAUTHORIZED",
	})
}

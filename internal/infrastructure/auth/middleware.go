package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"dovita-portal/internal/domain"
)

// BearerMiddleware authenticates inbound requests with a provider-issued
// JWT and stashes the principal's id on the echo context.
type BearerMiddleware struct {
	provider *Provider
}

func NewBearerMiddleware(provider *Provider) *BearerMiddleware {
	return &BearerMiddleware{provider: provider}
}

func (m *BearerMiddleware) Handler(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing authorization token"})
		}
		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if tokenString == "" {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid authorization token"})
		}
		claims, err := m.provider.validate(tokenString)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid token"})
		}
		if claims.sub == "" {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": domain.ErrInvalidInput.Error()})
		}
		c.Set("user_id", claims.sub)
		return next(c)
	}
}

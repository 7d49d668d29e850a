package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"jobhub/internal/usecase"
	"jobhub/pkg/errors"
)

type AuthMiddleware struct {
	verifier usecase.TokenVerifier
}

func NewAuthMiddleware(verifier usecase.TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
	}
}

func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			return errors.Unauthorized("Authorization header is required", nil)
		}

		idToken, ok := BearerToken(authHeader)
		if !ok {
			return errors.Unauthorized("Invalid authorization format", nil)
		}

		uid, err := m.verifier.VerifyToken(c.Request().Context(), idToken)
		if err != nil {
			return errors.Unauthorized("Invalid or expired token", err)
		}

		c.Set("uid", uid)

		return next(c)
	}
}

// GetUIDFromToken verifies a raw token, for transports that cannot send
// headers.
func (m *AuthMiddleware) GetUIDFromToken(c echo.Context, token string) (string, error) {
	return m.verifier.VerifyToken(c.Request().Context(), token)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" value.
func BearerToken(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

package handler

import (
	"github.com/labstack/echo/v4"

	"jobhub/internal/usecase"
	"jobhub/pkg/errors"
	"jobhub/pkg/response"
)

// DevTokenHandler mints tokens for arbitrary users. Development only.
type DevTokenHandler struct {
	issuer usecase.TokenIssuer
}

func NewDevTokenHandler(issuer usecase.TokenIssuer) *DevTokenHandler {
	return &DevTokenHandler{
		issuer: issuer,
	}
}

type devTokenRequest struct {
	UserID string `json:"user_id" validate:"required,max=128"`
}

func (h *DevTokenHandler) GenerateToken(c echo.Context) error {
	var req devTokenRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	token, err := h.issuer.IssueToken(req.UserID)
	if err != nil {
		return response.Error(c, errors.Internal("Failed to issue token", err))
	}

	return response.Success(c, map[string]interface{}{
		"token":   token,
		"user_id": req.UserID,
	})
}

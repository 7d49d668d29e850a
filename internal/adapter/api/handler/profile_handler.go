package handler

import (
	"github.com/labstack/echo/v4"

	"jobhub/internal/usecase"
	"jobhub/pkg/response"
)

type ProfileHandler struct {
	messagingUseCase *usecase.MessagingUseCase
}

func NewProfileHandler(messagingUseCase *usecase.MessagingUseCase) *ProfileHandler {
	return &ProfileHandler{
		messagingUseCase: messagingUseCase,
	}
}

func (h *ProfileHandler) GetProfile(c echo.Context) error {
	profile, err := h.messagingUseCase.GetProfile(c.Request().Context(), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, profile)
}

package handler

import (
	"github.com/labstack/echo/v4"

	"jobhub/internal/domain/entity"
	"jobhub/internal/usecase"
	"jobhub/pkg/response"
	"jobhub/pkg/utils"
)

type ContactHandler struct {
	messagingUseCase *usecase.MessagingUseCase
}

func NewContactHandler(messagingUseCase *usecase.MessagingUseCase) *ContactHandler {
	return &ContactHandler{
		messagingUseCase: messagingUseCase,
	}
}

// ListContacts derives the caller's contacts from the message log.
func (h *ContactHandler) ListContacts(c echo.Context) error {
	userID := c.Get("uid").(string)
	pagination := utils.GetPaginationParams(c)

	view, err := h.messagingUseCase.ListContacts(c.Request().Context(), userID)
	if err != nil {
		return response.Error(c, err)
	}

	start, end := pagination.Bounds(len(view.Contacts))
	items := view.Contacts[start:end]
	if items == nil {
		items = []*entity.Profile{}
	}

	return response.Paginated(c, items, int64(len(view.Contacts)), pagination.Page, pagination.PageSize)
}

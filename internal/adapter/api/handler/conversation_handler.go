package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"jobhub/internal/domain/entity"
	"jobhub/internal/usecase"
	"jobhub/pkg/errors"
	"jobhub/pkg/response"
)

type ConversationHandler struct {
	messagingUseCase *usecase.MessagingUseCase
}

func NewConversationHandler(messagingUseCase *usecase.MessagingUseCase) *ConversationHandler {
	return &ConversationHandler{
		messagingUseCase: messagingUseCase,
	}
}

type sendMessageRequest struct {
	Content string `json:"content" validate:"max=4000"`
}

type conversationResponse struct {
	PeerID   string            `json:"peer_id"`
	Messages []*entity.Message `json:"messages"`
}

func newConversationResponse(view usecase.ConversationView) conversationResponse {
	messages := view.Messages
	if messages == nil {
		messages = []*entity.Message{}
	}
	return conversationResponse{
		PeerID:   view.PeerID,
		Messages: messages,
	}
}

// GetMessages returns the full conversation between the caller and :peerId,
// oldest first.
func (h *ConversationHandler) GetMessages(c echo.Context) error {
	userID := c.Get("uid").(string)
	peerID := c.Param("peerId")

	view, err := h.messagingUseCase.LoadConversation(c.Request().Context(), userID, peerID)
	if err != nil {
		if errors.Is(err, errors.CodeQuery) {
			return response.ErrorWithData(c, err, newConversationResponse(view))
		}
		return response.Error(c, err)
	}

	return response.Success(c, newConversationResponse(view))
}

// SendMessage writes a message from the caller to :peerId. Blank content is
// accepted and ignored.
func (h *ConversationHandler) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)
	peerID := c.Param("peerId")

	message, err := h.messagingUseCase.SendMessage(c.Request().Context(), userID, peerID, req.Content)
	if err != nil {
		return response.Error(c, err)
	}
	if message == nil {
		return c.NoContent(http.StatusNoContent)
	}

	return response.Created(c, message)
}

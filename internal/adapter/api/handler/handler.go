package handler

import (
	"jobhub/internal/usecase"
)

var (
	conversationHandler *ConversationHandler
	contactHandler      *ContactHandler
	profileHandler      *ProfileHandler
	healthHandler       *HealthHandler
	devTokenHandler     *DevTokenHandler
)

func Setup(messagingUseCase *usecase.MessagingUseCase, backend string) {
	conversationHandler = NewConversationHandler(messagingUseCase)
	contactHandler = NewContactHandler(messagingUseCase)
	profileHandler = NewProfileHandler(messagingUseCase)
	healthHandler = NewHealthHandler(backend)
}

// SetupDevTokenHandler is only called when tokens are signed locally.
func SetupDevTokenHandler(issuer usecase.TokenIssuer) {
	devTokenHandler = NewDevTokenHandler(issuer)
}

func GetConversationHandler() *ConversationHandler {
	return conversationHandler
}

func GetContactHandler() *ContactHandler {
	return contactHandler
}

func GetProfileHandler() *ProfileHandler {
	return profileHandler
}

func GetHealthHandler() *HealthHandler {
	return healthHandler
}

func GetDevTokenHandler() *DevTokenHandler {
	return devTokenHandler
}

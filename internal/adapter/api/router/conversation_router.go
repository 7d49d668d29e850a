package router

import (
	"github.com/labstack/echo/v4"

	"jobhub/internal/adapter/api/handler"
	"jobhub/internal/adapter/api/middleware"
	"jobhub/internal/infrastructure/ratelimit"
)

func SetupConversationRouter(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, rateLimiter *ratelimit.RateLimiter) {
	conversationHandler := handler.GetConversationHandler()

	conversations := e.Group("/v1/conversations")
	conversations.Use(authMiddleware.Authenticate)

	conversations.GET("/:peerId/messages", conversationHandler.GetMessages)
	conversations.POST("/:peerId/messages", conversationHandler.SendMessage, middleware.RateLimit(rateLimiter, ratelimit.ActionSendMessage))
}

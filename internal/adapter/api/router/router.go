package router

import (
	"github.com/labstack/echo/v4"

	"jobhub/internal/adapter/api/handler"
	"jobhub/internal/adapter/api/middleware"
	"jobhub/internal/infrastructure/ratelimit"
)

func Setup(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, rateLimiter *ratelimit.RateLimiter, wsHandler *handler.WebSocketHandler) {
	SetupHealthRouter(e)
	SetupConversationRouter(e, authMiddleware, rateLimiter)
	SetupContactRouter(e, authMiddleware)
	SetupProfileRouter(e, authMiddleware)
	SetupWebSocketRouter(e, wsHandler)
}

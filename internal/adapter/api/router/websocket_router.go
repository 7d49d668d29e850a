package router

import (
	"github.com/labstack/echo/v4"

	"jobhub/internal/adapter/api/handler"
)

// SetupWebSocketRouter sets up WebSocket routes. Authentication happens
// inside the handler.
func SetupWebSocketRouter(e *echo.Echo, wsHandler *handler.WebSocketHandler) {
	e.GET("/ws", wsHandler.HandleWebSocket)
}

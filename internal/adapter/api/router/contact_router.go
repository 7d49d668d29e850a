package router

import (
	"github.com/labstack/echo/v4"

	"jobhub/internal/adapter/api/handler"
	"jobhub/internal/adapter/api/middleware"
)

func SetupContactRouter(e *echo.Echo, authMiddleware *middleware.AuthMiddleware) {
	contactHandler := handler.GetContactHandler()

	e.GET("/v1/contacts", contactHandler.ListContacts, authMiddleware.Authenticate)
}

package router

import (
	"github.com/labstack/echo/v4"

	"jobhub/internal/adapter/api/handler"
	"jobhub/internal/adapter/api/middleware"
)

func SetupProfileRouter(e *echo.Echo, authMiddleware *middleware.AuthMiddleware) {
	profileHandler := handler.GetProfileHandler()

	profiles := e.Group("/v1/profiles")
	profiles.Use(authMiddleware.Authenticate)

	profiles.GET("/:id", profileHandler.GetProfile)
}

package routes

import (
	"moviestream_backend/internal/handlers"
	"moviestream_backend/internal/logger"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes регистрирует все HTTP маршруты.
func RegisterRoutes(ginRouter *gin.Engine, appHandlers *handlers.AppHandlers) {
	appHandlers.HealthHandler.RegisterRoutes(ginRouter)

	api := ginRouter.Group("/api")
	{
		appHandlers.PaymentHandler.RegisterRoutes(api)
		appHandlers.VideoHandler.RegisterRoutes(api)
		appHandlers.SecurityHandler.RegisterRoutes(api)
	}

	logger.Info("HTTP routes registered", "routes", len(ginRouter.Routes()))
}

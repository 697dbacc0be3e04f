package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/campusalert/internal/handlers"
	"github.com/charlesng35/campusalert/internal/middleware"
)

func registerWarningRoutes(api *gin.RouterGroup, handler *handlers.WarningHandler, limiter *middleware.RateLimiter) {
	group := api.Group("/warnings")
	{
		group.POST("", middleware.RateLimit(limiter), handler.Create)
		group.GET("/:id", handler.Get)
	}
}

package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/campusalert/internal/handlers"
)

func registerUserRoutes(api *gin.RouterGroup, handler *handlers.ProfileHandler) {
	group := api.Group("/users/:id")
	{
		group.GET("/profile", handler.Get)
		group.PUT("/profile", handler.Put)
		group.GET("/warnings", handler.Warnings)
	}
}

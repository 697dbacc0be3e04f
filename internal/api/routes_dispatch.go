package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/campusalert/internal/handlers"
)

func registerDispatchRoutes(api *gin.RouterGroup, engine handlers.StatusReporter) {
	api.GET("/dispatch/status", handlers.DispatchStatus(engine))
}

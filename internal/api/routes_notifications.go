package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/campusalert/internal/handlers"
	"github.com/charlesng35/campusalert/internal/realtime"
)

// registerNotificationRoutes mounts the websocket stream. Without a hub (for
// example when delivering through Kafka) the route is not registered.
func registerNotificationRoutes(api *gin.RouterGroup, hub *realtime.Hub, stream string) {
	if hub == nil {
		return
	}
	if stream == "" {
		stream = realtime.StreamAlerts
	}
	handler := handlers.NewRealtimeHandler(hub, stream)
	api.GET("/notifications/stream", handler.Stream)
}

package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/charlesng35/campusalert/internal/app"
	"github.com/charlesng35/campusalert/internal/handlers"
	"github.com/charlesng35/campusalert/internal/middleware"
	"github.com/charlesng35/campusalert/internal/monitoring"
	"github.com/charlesng35/campusalert/internal/realtime"
	"github.com/charlesng35/campusalert/internal/services"
)

// Dependencies are the components the router exposes over HTTP.
type Dependencies struct {
	Config    *app.Config
	Warnings  *services.WarningService
	Profiles  *services.ProfileService
	Relevance *services.RelevanceService
	Dispatch  handlers.StatusReporter
	Hub       *realtime.Hub
	Health    *monitoring.HealthManager
	// RateLimiter throttles warning submissions; nil disables throttling.
	RateLimiter *middleware.RateLimiter
	Logger      *zap.Logger
}

// NewRouter builds the Gin engine, wires middleware and registers routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if deps.Warnings == nil || deps.Profiles == nil || deps.Relevance == nil {
		return nil, fmt.Errorf("warning, profile and relevance services must be provided")
	}
	if deps.Dispatch == nil {
		return nil, fmt.Errorf("dispatch engine must be provided")
	}

	r := gin.New()

	r.Use(middleware.Recovery())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())

	registerHealthRoutes(r, deps.Health)

	api := r.Group("/api")
	registerWarningRoutes(api, handlers.NewWarningHandler(deps.Warnings), deps.RateLimiter)
	registerUserRoutes(api, handlers.NewProfileHandler(deps.Profiles, deps.Relevance))
	registerDispatchRoutes(api, deps.Dispatch)
	registerNotificationRoutes(api, deps.Hub, deps.Config.Delivery.Stream)

	if prom := deps.Config.Monitoring.Prometheus; prom.Enabled {
		endpoint := prom.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}

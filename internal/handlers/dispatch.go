package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/campusalert/internal/dispatch"
	"github.com/charlesng35/campusalert/pkg/response"
)

// StatusReporter exposes the dispatch engine state. *dispatch.Engine satisfies it.
type StatusReporter interface {
	Status() dispatch.Status
}

// DispatchStatus handles GET /api/dispatch/status.
func DispatchStatus(engine StatusReporter) gin.HandlerFunc {
	return func(c *gin.Context) {
		response.Success(c, http.StatusOK, engine.Status())
	}
}

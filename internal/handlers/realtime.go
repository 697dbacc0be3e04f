package handlers

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/campusalert/internal/realtime"
	appErrors "github.com/charlesng35/campusalert/pkg/errors"
	"github.com/charlesng35/campusalert/pkg/response"
)

// RealtimeHandler upgrades HTTP connections into websocket notification streams.
type RealtimeHandler struct {
	hub      *realtime.Hub
	defaults []string
	allowed  map[string]struct{}
}

// NewRealtimeHandler constructs a realtime handler. Clients are subscribed to
// defaultStream on connect and may only join the listed streams.
func NewRealtimeHandler(hub *realtime.Hub, defaultStream string, streams ...string) *RealtimeHandler {
	allowed := make(map[string]struct{}, len(streams)+1)
	for _, stream := range append([]string{defaultStream}, streams...) {
		if stream = normalizeStream(stream); stream != "" {
			allowed[stream] = struct{}{}
		}
	}

	var defaults []string
	if stream := normalizeStream(defaultStream); stream != "" {
		defaults = []string{stream}
	}
	return &RealtimeHandler{hub: hub, defaults: defaults, allowed: allowed}
}

// Stream handles GET /api/notifications/stream. Extra streams may be
// requested with ?streams=a,b.
func (h *RealtimeHandler) Stream(c *gin.Context) {
	if h.hub == nil {
		response.Error(c, appErrors.ErrNotFound)
		return
	}

	streams := append([]string(nil), h.defaults...)
	for _, raw := range strings.Split(c.Query("streams"), ",") {
		stream := normalizeStream(raw)
		if stream == "" {
			continue
		}
		if _, ok := h.allowed[stream]; !ok {
			response.Error(c, appErrors.NewBadRequest("unknown stream "+stream))
			return
		}
		streams = append(streams, stream)
	}

	if err := h.hub.Serve(streams, c.Writer, c.Request); err != nil {
		if errors.Is(err, realtime.ErrHubClosed) {
			response.Error(c, appErrors.ErrUnavailable)
			return
		}
		// The upgrader has already written an HTTP error.
		_ = c.Error(err)
	}
}

func normalizeStream(stream string) string {
	return strings.ToLower(strings.TrimSpace(stream))
}

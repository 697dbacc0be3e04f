package checks

import (
	"context"
	"fmt"

	"github.com/charlesng35/campusalert/internal/monitoring"
	"github.com/charlesng35/campusalert/internal/realtime"
)

// Realtime reports down once the hub is closed; stream is the broadcast
// stream whose subscriber count is included in the details.
func Realtime(hub *realtime.Hub, stream string) monitoring.Check {
	return monitoring.NewCheck("realtime", func(ctx context.Context) monitoring.ProbeResult {
		if hub == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "realtime hub not in use"}
		}
		if hub.Closed() {
			return monitoring.ProbeResult{Status: monitoring.StatusDown, Details: "hub closed"}
		}
		return monitoring.ProbeResult{
			Status:  monitoring.StatusUp,
			Details: fmt.Sprintf("%d subscribers", hub.Subscribers(stream)),
		}
	})
}

package checks

import (
	"context"
	"fmt"

	"github.com/charlesng35/campusalert/internal/dispatch"
	"github.com/charlesng35/campusalert/internal/monitoring"
)

// DefaultQueueBacklog is the queue depth above which dispatch reports degraded.
const DefaultQueueBacklog = 100

// DispatchReporter exposes engine state. *dispatch.Engine satisfies it.
type DispatchReporter interface {
	Status() dispatch.Status
}

// Dispatch reports degraded when more than backlog notifications are waiting.
func Dispatch(reporter DispatchReporter, backlog int) monitoring.Check {
	if backlog <= 0 {
		backlog = DefaultQueueBacklog
	}
	return monitoring.NewCheck("dispatch", func(ctx context.Context) monitoring.ProbeResult {
		if reporter == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusDown, Details: "dispatch engine not configured"}
		}
		status := reporter.Status()
		details := fmt.Sprintf("queue=%d quota=%d/%d", status.QueueDepth, status.QuotaUsed, status.QuotaLimit)
		if status.QueueDepth > backlog {
			return monitoring.ProbeResult{Status: monitoring.StatusDegraded, Details: details}
		}
		return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: details}
	})
}

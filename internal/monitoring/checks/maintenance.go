package checks

import (
	"context"
	"fmt"
	"time"

	"github.com/charlesng35/campusalert/internal/app/maintenance"
	"github.com/charlesng35/campusalert/internal/monitoring"
)

// DefaultMaintenanceMaxAge covers the overnight gap between the last evening
// run and the first morning run.
const DefaultMaintenanceMaxAge = 12 * time.Hour

// MaintenanceReporter exposes scheduled job outcomes. *maintenance.Scheduler satisfies it.
type MaintenanceReporter interface {
	Status() maintenance.JobStatus
}

// Maintenance reports down after repeated job failures and degraded when the
// last run is older than maxAge or scheduled deliveries are failing. A gateway
// outage never reports down. now defaults to time.Now.
func Maintenance(reporter MaintenanceReporter, maxAge time.Duration, now func() time.Time) monitoring.Check {
	if maxAge <= 0 {
		maxAge = DefaultMaintenanceMaxAge
	}
	if now == nil {
		now = time.Now
	}

	return monitoring.NewCheck("maintenance", func(ctx context.Context) monitoring.ProbeResult {
		if reporter == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusDegraded, Details: "scheduler disabled"}
		}

		status := reporter.Status()
		switch {
		case status.TotalRuns == 0:
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "pending first run"}
		case status.ConsecutiveFailures >= 3:
			return monitoring.ProbeResult{
				Status:  monitoring.StatusDown,
				Details: fmt.Sprintf("%d consecutive failures: %s", status.ConsecutiveFailures, status.LastError),
			}
		case now().Sub(status.LastRunAt) > maxAge:
			return monitoring.ProbeResult{
				Status:  monitoring.StatusDegraded,
				Details: "stale run " + status.LastRunAt.UTC().Format(time.RFC3339),
			}
		case status.ConsecutiveFailures > 0:
			return monitoring.ProbeResult{Status: monitoring.StatusDegraded, Details: status.LastError}
		case status.ConsecutiveDeliveryFailures > 0:
			return monitoring.ProbeResult{
				Status:  monitoring.StatusDegraded,
				Details: fmt.Sprintf("%d failed deliveries: %s", status.ConsecutiveDeliveryFailures, status.LastDeliveryError),
			}
		default:
			return monitoring.ProbeResult{Status: monitoring.StatusUp}
		}
	})
}

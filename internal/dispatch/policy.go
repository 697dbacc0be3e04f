package dispatch

import "time"

const (
	DefaultInstantWindow = 60 * time.Minute
	DefaultMaxResidency  = 1440 * time.Minute
)

// Action is the dispatch decision for a new notification.
type Action string

const (
	ActionSendNow Action = "SEND_NOW"
	ActionEnqueue Action = "ENQUEUE"
	ActionDiscard Action = "DISCARD"
)

// Policy decides whether a notification is pushed now, queued, or dropped.
type Policy struct {
	InstantWindow time.Duration
	MaxResidency  time.Duration
}

// DefaultPolicy returns the policy with the default window and residency.
func DefaultPolicy() Policy {
	return Policy{InstantWindow: DefaultInstantWindow, MaxResidency: DefaultMaxResidency}
}

func (p Policy) withDefaults() Policy {
	if p.InstantWindow <= 0 {
		p.InstantWindow = DefaultInstantWindow
	}
	if p.MaxResidency <= 0 {
		p.MaxResidency = DefaultMaxResidency
	}
	return p
}

// Evaluate applies the dispatch rules to n at the given time. quotaRemaining
// is the number of sends left in today's quota; only low priority
// notifications are bound by it.
func (p Policy) Evaluate(n Notification, quotaRemaining int, now time.Time) Action {
	p = p.withDefaults()

	elapsed, ok := elapsedMinutes(n.IncidentAt, now)
	if !ok {
		return ActionDiscard
	}

	if elapsed <= wholeMinutes(p.InstantWindow) && (n.Priority != PriorityLow || quotaRemaining > 0) {
		return ActionSendNow
	}
	if elapsed <= wholeMinutes(p.MaxResidency) {
		return ActionEnqueue
	}
	return ActionDiscard
}

// elapsedMinutes returns the whole minutes between incident and now. ok is
// false for a missing timestamp or an incident in the future.
func elapsedMinutes(incident, now time.Time) (int64, bool) {
	if incident.IsZero() || incident.After(now) {
		return 0, false
	}
	return int64(now.Sub(incident) / time.Minute), true
}

func wholeMinutes(d time.Duration) int64 {
	return int64(d / time.Minute)
}

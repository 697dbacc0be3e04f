package dispatch

import (
	"fmt"
	"strings"
	"time"

	"github.com/charlesng35/campusalert/internal/warnings"
)

// Priority is the static dispatch urgency of a notification. Lower values are
// more urgent and leave the queue first.
type Priority int

const (
	PriorityHigh Priority = iota
	PriorityMedium
	PriorityLow
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityLow:
		return "low"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// MarshalText encodes the priority by name.
func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a priority name.
func (p *Priority) UnmarshalText(text []byte) error {
	parsed, err := ParsePriority(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePriority accepts "high", "medium" or "low" in any case.
func ParsePriority(raw string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "high":
		return PriorityHigh, nil
	case "medium", "normal":
		return PriorityMedium, nil
	case "low":
		return PriorityLow, nil
	default:
		return PriorityLow, fmt.Errorf("unknown priority %q", raw)
	}
}

// State is the lifecycle position of a notification.
type State string

const (
	StateCreated   State = "CREATED"
	StateQueued    State = "QUEUED"
	StateSent      State = "SENT"
	StateDiscarded State = "DISCARDED"
	StateExpired   State = "EXPIRED"
)

var transitions = map[State][]State{
	StateCreated: {StateSent, StateQueued, StateDiscarded},
	StateQueued:  {StateSent, StateExpired, StateDiscarded},
}

// Terminal reports whether no further transitions are possible from s.
func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}

// CanTransition reports whether s may move to next.
func (s State) CanTransition(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Notification is a push candidate derived from a warning. It copies the
// fields it needs so it stays valid after the warning record is gone.
type Notification struct {
	ID         string             `json:"id"`
	Category   warnings.Category  `json:"category"`
	Priority   Priority           `json:"priority"`
	Title      string             `json:"title"`
	Body       string             `json:"body"`
	Location   *warnings.Location `json:"location,omitempty"`
	IncidentAt time.Time          `json:"incident_at"`
	CreatedAt  time.Time          `json:"created_at"`
	State      State              `json:"state"`
}

// transition moves the notification to next, rejecting moves the lifecycle does not allow.
func (n *Notification) transition(next State) error {
	if !n.State.CanTransition(next) {
		return NewTransitionError(n.ID, n.State, next)
	}
	n.State = next
	return nil
}

package dispatch

import (
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/charlesng35/campusalert/internal/warnings"
)

const maxBodyRunes = 240

// DefaultPriorities is the built-in category to priority table.
func DefaultPriorities() map[warnings.Category]Priority {
	return map[warnings.Category]Priority{
		warnings.CategoryAssault:             PriorityHigh,
		warnings.CategoryMugging:             PriorityHigh,
		warnings.CategoryThreatening:         PriorityHigh,
		warnings.CategoryHarassment:          PriorityHigh,
		warnings.CategoryBurglary:            PriorityMedium,
		warnings.CategoryTheft:               PriorityMedium,
		warnings.CategorySuspiciousBehaviour: PriorityMedium,
		warnings.CategoryVandalism:           PriorityLow,
		warnings.CategoryGeneral:             PriorityLow,
	}
}

// Factory turns submitted warnings into notifications.
type Factory struct {
	priorities map[warnings.Category]Priority
	clock      clockwork.Clock
}

// NewFactory builds a factory. Entries in overrides replace the defaults; a
// nil clock uses real time.
func NewFactory(overrides map[warnings.Category]Priority, clock clockwork.Clock) *Factory {
	priorities := DefaultPriorities()
	for category, priority := range overrides {
		priorities[category] = priority
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Factory{priorities: priorities, clock: clock}
}

// Priority returns the dispatch priority for a category. Categories missing
// from the table are treated as low priority.
func (f *Factory) Priority(category warnings.Category) Priority {
	if p, ok := f.priorities[category]; ok {
		return p
	}
	return PriorityLow
}

// Create derives a new notification from w.
func (f *Factory) Create(w warnings.Warning) Notification {
	title := "Campus alert: " + w.Category.Title()

	body := strings.TrimSpace(w.WarningDescription)
	if body == "" {
		body = w.Category.Title() + " reported nearby."
	}

	var loc *warnings.Location
	if w.Location != nil {
		cpy := *w.Location
		loc = &cpy
	}

	return Notification{
		ID:         w.ID,
		Category:   w.Category,
		Priority:   f.Priority(w.Category),
		Title:      title,
		Body:       truncateRunes(body, maxBodyRunes),
		Location:   loc,
		IncidentAt: w.IncidentAt,
		CreatedAt:  f.clock.Now(),
		State:      StateCreated,
	}
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}

package warnings

import (
	"strings"
	"time"
)

// timestampLayouts lists the formats accepted from the submission form, most specific first.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"02/01/2006 15:04",
}

// Submission is the payload received from the warning submission form.
type Submission struct {
	ID                 string    `json:"id,omitempty" validate:"omitempty,max=64"`
	Category           string    `json:"category" validate:"max=64"`
	IncidentTimestamp  string    `json:"incident_timestamp" validate:"max=64"`
	Location           *Location `json:"location,omitempty"`
	PeopleDescription  string    `json:"people_description" validate:"max=2000"`
	WarningDescription string    `json:"warning_description" validate:"max=4000"`
}

// ToWarning converts the submission into a domain warning. Malformed fields
// never fail the conversion: an unparseable timestamp becomes the zero time and
// an out-of-range location is dropped.
func (s Submission) ToWarning() Warning {
	return Warning{
		ID:                 strings.TrimSpace(s.ID),
		Category:           ParseCategory(s.Category),
		IncidentAt:         ParseTimestamp(s.IncidentTimestamp),
		Location:           sanitizeLocation(s.Location),
		PeopleDescription:  strings.TrimSpace(s.PeopleDescription),
		WarningDescription: strings.TrimSpace(s.WarningDescription),
	}
}

// ParseTimestamp parses the incident timestamp, returning the zero time when
// the value is empty or matches none of the accepted layouts. Layouts without
// a zone are interpreted as UTC.
func ParseTimestamp(raw string) time.Time {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return ts.UTC()
		}
	}
	return time.Time{}
}

func sanitizeLocation(loc *Location) *Location {
	if loc == nil {
		return nil
	}
	if loc.Lat < -90 || loc.Lat > 90 || loc.Long < -180 || loc.Long > 180 {
		return nil
	}
	cpy := *loc
	return &cpy
}

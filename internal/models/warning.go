package models

import (
	"time"

	"github.com/charlesng35/campusalert/internal/warnings"
)

// Warning is a stored incident report. Rows are never updated except for the
// dispatch outcome recorded right after submission.
type Warning struct {
	BaseModel

	Category           string     `gorm:"type:varchar(32);not null;index" json:"category"`
	IncidentAt         *time.Time `gorm:"index" json:"incident_at"`
	RawTimestamp       string     `gorm:"type:varchar(64)" json:"raw_timestamp,omitempty"`
	Lat                *float64   `json:"lat"`
	Long               *float64   `json:"long"`
	PeopleDescription  string     `gorm:"type:text" json:"people_description"`
	WarningDescription string     `gorm:"type:text" json:"warning_description"`

	DispatchAction string `gorm:"type:varchar(16)" json:"dispatch_action"`
	DispatchState  string `gorm:"type:varchar(16)" json:"dispatch_state"`
}

// NewWarning builds a row from a domain warning and the raw timestamp it was parsed from.
func NewWarning(w warnings.Warning, rawTimestamp string) *Warning {
	row := &Warning{
		BaseModel:          BaseModel{ID: w.ID},
		Category:           string(w.Category),
		RawTimestamp:       rawTimestamp,
		PeopleDescription:  w.PeopleDescription,
		WarningDescription: w.WarningDescription,
	}
	if w.HasIncidentTime() {
		ts := w.IncidentAt.UTC()
		row.IncidentAt = &ts
	}
	if w.Location != nil {
		lat, long := w.Location.Lat, w.Location.Long
		row.Lat, row.Long = &lat, &long
	}
	return row
}

// Domain converts the row back into the classifier's warning type.
func (w *Warning) Domain() warnings.Warning {
	out := warnings.Warning{
		ID:                 w.ID,
		Category:           warnings.ParseCategory(w.Category),
		PeopleDescription:  w.PeopleDescription,
		WarningDescription: w.WarningDescription,
	}
	if w.IncidentAt != nil {
		out.IncidentAt = w.IncidentAt.UTC()
	}
	out.Location = locationOf(w.Lat, w.Long)
	return out
}

func locationOf(lat, long *float64) *warnings.Location {
	if lat == nil || long == nil {
		return nil
	}
	return &warnings.Location{Lat: *lat, Long: *long}
}

func coordinates(loc *warnings.Location) (*float64, *float64) {
	if loc == nil {
		return nil, nil
	}
	lat, long := loc.Lat, loc.Long
	return &lat, &long
}

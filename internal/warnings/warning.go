package warnings

import (
	"strings"
	"time"
)

// Category is the closed set of incident types a warning can be filed under.
type Category string

const (
	CategoryGeneral             Category = "general"
	CategoryAssault             Category = "assault"
	CategoryMugging             Category = "mugging"
	CategoryThreatening         Category = "threatening-behaviour"
	CategoryHarassment          Category = "harassment"
	CategoryBurglary            Category = "burglary"
	CategoryTheft               Category = "theft"
	CategoryVandalism           Category = "vandalism"
	CategorySuspiciousBehaviour Category = "suspicious-behaviour"
)

var categoryTitles = map[Category]string{
	CategoryGeneral:             "General warning",
	CategoryAssault:             "Assault",
	CategoryMugging:             "Mugging",
	CategoryThreatening:         "Threatening behaviour",
	CategoryHarassment:          "Harassment",
	CategoryBurglary:            "Burglary",
	CategoryTheft:               "Theft",
	CategoryVandalism:           "Vandalism",
	CategorySuspiciousBehaviour: "Suspicious behaviour",
}

// Categories returns every known category in declaration order.
func Categories() []Category {
	return []Category{
		CategoryGeneral,
		CategoryAssault,
		CategoryMugging,
		CategoryThreatening,
		CategoryHarassment,
		CategoryBurglary,
		CategoryTheft,
		CategoryVandalism,
		CategorySuspiciousBehaviour,
	}
}

// ParseCategory normalises user input into a Category. Unknown or empty values
// map to CategoryGeneral.
func ParseCategory(raw string) Category {
	value := strings.ToLower(strings.TrimSpace(raw))
	value = strings.ReplaceAll(value, "_", "-")
	value = strings.ReplaceAll(value, " ", "-")
	// Accept the US spelling as well.
	value = strings.Replace(value, "behavior", "behaviour", 1)

	category := Category(value)
	if category.Known() {
		return category
	}
	return CategoryGeneral
}

// Known reports whether c is a member of the closed enumeration.
func (c Category) Known() bool {
	_, ok := categoryTitles[c]
	return ok
}

// Title returns a human readable label for the category.
func (c Category) Title() string {
	if title, ok := categoryTitles[c]; ok {
		return title
	}
	return categoryTitles[CategoryGeneral]
}

// Location is a WGS-84 coordinate pair.
type Location struct {
	Lat  float64 `json:"lat"`
	Long float64 `json:"long"`
}

// Warning is an immutable incident report. A zero IncidentAt means the
// submitted timestamp was missing or could not be parsed; a nil Location means
// no coordinates were supplied.
type Warning struct {
	ID                 string
	Category           Category
	IncidentAt         time.Time
	Location           *Location
	PeopleDescription  string
	WarningDescription string
}

// HasIncidentTime reports whether the warning carries a usable timestamp.
func (w Warning) HasIncidentTime() bool {
	return !w.IncidentAt.IsZero()
}

package warnings

import "strings"

// Gender is the demographic category recorded on a user profile.
type Gender string

const (
	GenderMale    Gender = "MALE"
	GenderFemale  Gender = "FEMALE"
	GenderUnknown Gender = "UNKNOWN"
)

// ParseGender maps free-form input onto the known genders, defaulting to GenderUnknown.
func ParseGender(raw string) Gender {
	switch Gender(strings.ToUpper(strings.TrimSpace(raw))) {
	case GenderMale:
		return GenderMale
	case GenderFemale:
		return GenderFemale
	default:
		return GenderUnknown
	}
}

// UserProfile holds the attributes the relevance classifier scores against.
// Every location is optional; FrequentLocations keeps the user's ordering.
type UserProfile struct {
	ID                string
	Home              *Location
	LastKnown         *Location
	FrequentLocations []Location
	Gender            Gender
	OwnsBicycle       bool
	OwnsCar           bool
	OwnsLaptop        bool
}

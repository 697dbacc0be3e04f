package classifier

import (
	"strings"
	"unicode"

	"github.com/charlesng35/campusalert/internal/warnings"
)

// CandidateScope restricts which profile locations the proximity check considers.
type CandidateScope string

const (
	// ScopeAll tests the last known location, home, then each frequent location.
	ScopeAll CandidateScope = "all"
	// ScopeHomeOnly tests the home location only.
	ScopeHomeOnly CandidateScope = "home"
)

const (
	DefaultTightRadius = 50.0
	DefaultLooseRadius = 100.0
)

// Check contributes a non-negative delta to a relevance score.
type Check func(w warnings.Warning, p warnings.UserProfile, kw Keywords) int

// CategoryProfile captures the scoring behaviour of a single category.
type CategoryProfile struct {
	InitialRelevance int
	TightRadius      float64
	LooseRadius      float64
	Candidates       CandidateScope

	// Optional checks; nil means the check contributes nothing.
	Ownership   Check
	Demographic Check
}

// Keywords are the ownership keyword sets, scanned in the order vehicle,
// bicycle, laptop.
type Keywords struct {
	Vehicle []string
	Bicycle []string
	Laptop  []string
}

// DefaultKeywords returns the built-in ownership keyword sets.
func DefaultKeywords() Keywords {
	return Keywords{
		Vehicle: []string{"car", "vehicle", "van", "motorbike", "motorcycle", "scooter"},
		Bicycle: []string{"bike", "bicycle", "cycle"},
		Laptop:  []string{"laptop", "computer", "macbook", "notebook"},
	}
}

func (k Keywords) normalised() Keywords {
	return Keywords{
		Vehicle: lowerAll(k.Vehicle),
		Bicycle: lowerAll(k.Bicycle),
		Laptop:  lowerAll(k.Laptop),
	}
}

// DefaultProfiles returns the built-in category table.
func DefaultProfiles() map[warnings.Category]CategoryProfile {
	base := CategoryProfile{
		TightRadius: DefaultTightRadius,
		LooseRadius: DefaultLooseRadius,
		Candidates:  ScopeAll,
	}

	profiles := make(map[warnings.Category]CategoryProfile, len(warnings.Categories()))
	for _, category := range warnings.Categories() {
		profiles[category] = base
	}

	for _, category := range []warnings.Category{
		warnings.CategoryAssault,
		warnings.CategoryMugging,
		warnings.CategoryThreatening,
	} {
		p := profiles[category]
		p.InitialRelevance = 1
		profiles[category] = p
	}

	burglary := profiles[warnings.CategoryBurglary]
	burglary.TightRadius = 250
	burglary.LooseRadius = 500
	burglary.Candidates = ScopeHomeOnly
	profiles[warnings.CategoryBurglary] = burglary

	for _, category := range []warnings.Category{warnings.CategoryTheft, warnings.CategoryVandalism} {
		p := profiles[category]
		p.Ownership = OwnershipCheck
		profiles[category] = p
	}

	harassment := profiles[warnings.CategoryHarassment]
	harassment.Demographic = DemographicCheck
	profiles[warnings.CategoryHarassment] = harassment

	return profiles
}

// OwnershipCheck adds one point when the incident text mentions an item type
// the user owns. Keyword sets are tried in priority order and the first set
// that both matches and is owned wins. Keywords match whole words only, so
// "van" does not hit "vandalised".
func OwnershipCheck(w warnings.Warning, p warnings.UserProfile, kw Keywords) int {
	text := tokenize(w.WarningDescription)
	if len(text) == 0 {
		return 0
	}

	sets := []struct {
		words []string
		owned bool
	}{
		{kw.Vehicle, p.OwnsCar},
		{kw.Bicycle, p.OwnsBicycle},
		{kw.Laptop, p.OwnsLaptop},
	}
	for _, set := range sets {
		if set.owned && containsAny(text, set.words) {
			return 1
		}
	}
	return 0
}

// DemographicCheck adds one point for female users.
func DemographicCheck(_ warnings.Warning, p warnings.UserProfile, _ Keywords) int {
	if p.Gender == warnings.GenderFemale {
		return 1
	}
	return 0
}

// tokenize lowercases s and splits it into words of letters and digits.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// containsAny reports whether any keyword appears in text as a run of whole
// words. A trailing plural "s" on the last word is accepted.
func containsAny(text []string, keywords []string) bool {
	for _, keyword := range keywords {
		if containsPhrase(text, tokenize(keyword)) {
			return true
		}
	}
	return false
}

func containsPhrase(text, phrase []string) bool {
	if len(phrase) == 0 || len(phrase) > len(text) {
		return false
	}
	last := len(phrase) - 1
outer:
	for i := 0; i+last < len(text); i++ {
		for j, word := range phrase {
			token := text[i+j]
			if token == word || (j == last && token == word+"s") {
				continue
			}
			continue outer
		}
		return true
	}
	return false
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}

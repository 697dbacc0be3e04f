package classifier

import (
	"sort"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/charlesng35/campusalert/internal/warnings"
)

const (
	instantRecencyMinutes = 60
	recentRecencyMinutes  = 12 * 60
)

// ProfileOverride adjusts the default scoring for one category. Zero values
// leave the default untouched.
type ProfileOverride struct {
	InitialRelevance *int
	TightRadius      float64
	LooseRadius      float64
	Candidates       CandidateScope
}

// Config customises the classifier.
type Config struct {
	// TightRadius and LooseRadius replace the default radii of every category
	// that has not been given its own override.
	TightRadius float64
	LooseRadius float64
	Overrides   map[warnings.Category]ProfileOverride
	Keywords    *Keywords
	Clock       clockwork.Clock
}

// Classifier scores warnings against user profiles. It holds no mutable state
// and is safe for concurrent use.
type Classifier struct {
	profiles map[warnings.Category]CategoryProfile
	keywords Keywords
	clock    clockwork.Clock
}

// Scored pairs a warning with its relevance score for one user.
type Scored struct {
	Warning warnings.Warning
	Score   int
}

// New builds a Classifier from the default category table and the supplied overrides.
func New(cfg Config) *Classifier {
	profiles := DefaultProfiles()

	if cfg.TightRadius > 0 || cfg.LooseRadius > 0 {
		for category, p := range profiles {
			if category == warnings.CategoryBurglary {
				continue
			}
			if cfg.TightRadius > 0 {
				p.TightRadius = cfg.TightRadius
			}
			if cfg.LooseRadius > 0 {
				p.LooseRadius = cfg.LooseRadius
			}
			profiles[category] = p
		}
	}

	for category, override := range cfg.Overrides {
		p, ok := profiles[category]
		if !ok {
			continue
		}
		if override.InitialRelevance != nil && *override.InitialRelevance >= 0 {
			p.InitialRelevance = *override.InitialRelevance
		}
		if override.TightRadius > 0 {
			p.TightRadius = override.TightRadius
		}
		if override.LooseRadius > 0 {
			p.LooseRadius = override.LooseRadius
		}
		if override.Candidates != "" {
			p.Candidates = override.Candidates
		}
		profiles[category] = p
	}

	keywords := DefaultKeywords()
	if cfg.Keywords != nil {
		keywords = *cfg.Keywords
	}

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Classifier{
		profiles: profiles,
		keywords: keywords.normalised(),
		clock:    clock,
	}
}

// Profile returns the scoring profile used for the category, falling back to
// the general profile for unknown categories.
func (c *Classifier) Profile(category warnings.Category) CategoryProfile {
	if p, ok := c.profiles[category]; ok {
		return p
	}
	return c.profiles[warnings.CategoryGeneral]
}

// Classify returns the relevance of w to p. Missing fields on either side
// contribute zero; the result is never negative.
func (c *Classifier) Classify(w warnings.Warning, p warnings.UserProfile) int {
	return c.classifyAt(w, p, c.clock.Now())
}

func (c *Classifier) classifyAt(w warnings.Warning, p warnings.UserProfile, now time.Time) int {
	profile := c.Profile(w.Category)

	score := profile.InitialRelevance
	score += locationScore(profile, w, p)
	score += recencyScore(w.IncidentAt, now)
	if profile.Ownership != nil {
		score += profile.Ownership(w, p, c.keywords)
	}
	if profile.Demographic != nil {
		score += profile.Demographic(w, p, c.keywords)
	}
	return score
}

// Rank scores every warning for the profile, keeps those at or above
// minScore, and orders them by score, then most recent incident, then ID.
// All warnings are scored against a single clock reading.
func (c *Classifier) Rank(items []warnings.Warning, p warnings.UserProfile, minScore int) []Scored {
	now := c.clock.Now()

	ranked := make([]Scored, 0, len(items))
	for _, w := range items {
		score := c.classifyAt(w, p, now)
		if score < minScore {
			continue
		}
		ranked = append(ranked, Scored{Warning: w, Score: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Warning.IncidentAt.Equal(b.Warning.IncidentAt) {
			return a.Warning.IncidentAt.After(b.Warning.IncidentAt)
		}
		return a.Warning.ID < b.Warning.ID
	})
	return ranked
}

func candidates(scope CandidateScope, p warnings.UserProfile) []warnings.Location {
	if scope == ScopeHomeOnly {
		if p.Home == nil {
			return nil
		}
		return []warnings.Location{*p.Home}
	}

	out := make([]warnings.Location, 0, 2+len(p.FrequentLocations))
	if p.LastKnown != nil {
		out = append(out, *p.LastKnown)
	}
	if p.Home != nil {
		out = append(out, *p.Home)
	}
	return append(out, p.FrequentLocations...)
}

// locationScore awards at most one bonus: +2 for the first candidate inside
// the tight radius, otherwise +1 for the first inside the loose radius.
func locationScore(profile CategoryProfile, w warnings.Warning, p warnings.UserProfile) int {
	if w.Location == nil {
		return 0
	}
	locs := candidates(profile.Candidates, p)

	for _, loc := range locs {
		if warnings.DistanceMetres(*w.Location, loc) <= profile.TightRadius {
			return 2
		}
	}
	for _, loc := range locs {
		if warnings.DistanceMetres(*w.Location, loc) <= profile.LooseRadius {
			return 1
		}
	}
	return 0
}

func recencyScore(incidentAt, now time.Time) int {
	if incidentAt.IsZero() || incidentAt.After(now) {
		return 0
	}
	if !incidentAt.After(now.AddDate(0, -1, 0)) {
		return 0
	}

	minutes := int(now.Sub(incidentAt) / time.Minute)
	switch {
	case minutes <= instantRecencyMinutes:
		return 2
	case minutes <= recentRecencyMinutes:
		return 1
	default:
		return 0
	}
}

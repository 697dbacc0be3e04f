package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/campusalert/internal/models"
	"github.com/charlesng35/campusalert/internal/warnings"
	"github.com/charlesng35/campusalert/pkg/validator"
)

// ErrProfileNotFound indicates no profile is stored for the user.
var ErrProfileNotFound = errors.New("profile service: profile not found")

// Coordinates is a validated latitude/longitude pair.
type Coordinates struct {
	Lat  float64 `json:"lat" validate:"gte=-90,lte=90"`
	Long float64 `json:"long" validate:"gte=-180,lte=180"`
}

// Profile is the API representation of a user profile.
type Profile struct {
	UserID            string        `json:"user_id"`
	Home              *Coordinates  `json:"home,omitempty"`
	LastKnown         *Coordinates  `json:"last_known,omitempty"`
	FrequentLocations []Coordinates `json:"frequent_locations" validate:"max=50,dive"`
	Gender            string        `json:"gender" validate:"gender"`
	OwnsBicycle       bool          `json:"owns_bicycle"`
	OwnsCar           bool          `json:"owns_car"`
	OwnsLaptop        bool          `json:"owns_laptop"`
}

// Domain converts the profile into the classifier's profile type.
func (p Profile) Domain() warnings.UserProfile {
	out := warnings.UserProfile{
		ID:          p.UserID,
		Home:        p.Home.location(),
		LastKnown:   p.LastKnown.location(),
		Gender:      warnings.ParseGender(p.Gender),
		OwnsBicycle: p.OwnsBicycle,
		OwnsCar:     p.OwnsCar,
		OwnsLaptop:  p.OwnsLaptop,
	}
	for _, loc := range p.FrequentLocations {
		out.FrequentLocations = append(out.FrequentLocations, warnings.Location{Lat: loc.Lat, Long: loc.Long})
	}
	return out
}

// ProfileFromDomain builds the API representation of a domain profile.
func ProfileFromDomain(p warnings.UserProfile) Profile {
	out := Profile{
		UserID:            p.ID,
		Home:              coordinatesOf(p.Home),
		LastKnown:         coordinatesOf(p.LastKnown),
		FrequentLocations: make([]Coordinates, 0, len(p.FrequentLocations)),
		Gender:            string(warnings.ParseGender(string(p.Gender))),
		OwnsBicycle:       p.OwnsBicycle,
		OwnsCar:           p.OwnsCar,
		OwnsLaptop:        p.OwnsLaptop,
	}
	for _, loc := range p.FrequentLocations {
		out.FrequentLocations = append(out.FrequentLocations, Coordinates{Lat: loc.Lat, Long: loc.Long})
	}
	return out
}

func (c *Coordinates) location() *warnings.Location {
	if c == nil {
		return nil
	}
	return &warnings.Location{Lat: c.Lat, Long: c.Long}
}

func coordinatesOf(loc *warnings.Location) *Coordinates {
	if loc == nil {
		return nil
	}
	return &Coordinates{Lat: loc.Lat, Long: loc.Long}
}

// ProfileService stores the user profiles relevance scoring reads.
type ProfileService struct {
	db *gorm.DB
}

// NewProfileService constructs a profile service once a database handle is supplied.
func NewProfileService(db *gorm.DB) (*ProfileService, error) {
	if db == nil {
		return nil, errors.New("profile service: db is required")
	}
	return &ProfileService{db: db}, nil
}

// Get loads the domain profile for userID.
func (s *ProfileService) Get(ctx context.Context, userID string) (warnings.UserProfile, error) {
	ctx = ensuredContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return warnings.UserProfile{}, ErrProfileNotFound
	}

	var row models.UserProfile
	err := s.db.WithContext(ctx).Take(&row, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return warnings.UserProfile{}, ErrProfileNotFound
	}
	if err != nil {
		return warnings.UserProfile{}, fmt.Errorf("profile service: get: %w", err)
	}

	profile, err := row.Domain()
	if err != nil {
		return warnings.UserProfile{}, fmt.Errorf("profile service: %w", err)
	}
	return profile, nil
}

// Upsert validates and stores the profile for userID, replacing any existing one.
func (s *ProfileService) Upsert(ctx context.Context, userID string, input Profile) (warnings.UserProfile, error) {
	ctx = ensuredContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return warnings.UserProfile{}, errors.New("profile service: user id is required")
	}
	if err := validator.ValidateStruct(input); err != nil {
		return warnings.UserProfile{}, err
	}

	input.UserID = userID
	profile := input.Domain()

	row, err := models.NewUserProfile(profile)
	if err != nil {
		return warnings.UserProfile{}, fmt.Errorf("profile service: %w", err)
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"home_lat", "home_long", "last_lat", "last_long",
			"frequent_locations", "gender",
			"owns_bicycle", "owns_car", "owns_laptop",
			"updated_at",
		}),
	}).Create(row).Error
	if err != nil {
		return warnings.UserProfile{}, fmt.Errorf("profile service: upsert: %w", err)
	}

	profile.Gender = warnings.ParseGender(row.Gender)
	return profile, nil
}

package models

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"github.com/charlesng35/campusalert/internal/warnings"
)

// UserProfile stores the attributes relevance scoring needs for one user. The
// primary key is the user ID.
type UserProfile struct {
	BaseModel

	HomeLat           *float64       `json:"home_lat"`
	HomeLong          *float64       `json:"home_long"`
	LastLat           *float64       `json:"last_lat"`
	LastLong          *float64       `json:"last_long"`
	FrequentLocations datatypes.JSON `json:"frequent_locations"`
	Gender            string         `gorm:"type:varchar(16);default:'UNKNOWN'" json:"gender"`
	OwnsBicycle       bool           `gorm:"default:false" json:"owns_bicycle"`
	OwnsCar           bool           `gorm:"default:false" json:"owns_car"`
	OwnsLaptop        bool           `gorm:"default:false" json:"owns_laptop"`
}

// NewUserProfile builds a row from a domain profile.
func NewUserProfile(p warnings.UserProfile) (*UserProfile, error) {
	frequent := p.FrequentLocations
	if frequent == nil {
		frequent = []warnings.Location{}
	}
	raw, err := json.Marshal(frequent)
	if err != nil {
		return nil, fmt.Errorf("encode frequent locations: %w", err)
	}

	row := &UserProfile{
		BaseModel:         BaseModel{ID: p.ID},
		FrequentLocations: datatypes.JSON(raw),
		Gender:            string(warnings.ParseGender(string(p.Gender))),
		OwnsBicycle:       p.OwnsBicycle,
		OwnsCar:           p.OwnsCar,
		OwnsLaptop:        p.OwnsLaptop,
	}
	row.HomeLat, row.HomeLong = coordinates(p.Home)
	row.LastLat, row.LastLong = coordinates(p.LastKnown)
	return row, nil
}

// Domain converts the row into the classifier's profile type.
func (p *UserProfile) Domain() (warnings.UserProfile, error) {
	out := warnings.UserProfile{
		ID:          p.ID,
		Home:        locationOf(p.HomeLat, p.HomeLong),
		LastKnown:   locationOf(p.LastLat, p.LastLong),
		Gender:      warnings.ParseGender(p.Gender),
		OwnsBicycle: p.OwnsBicycle,
		OwnsCar:     p.OwnsCar,
		OwnsLaptop:  p.OwnsLaptop,
	}
	if len(p.FrequentLocations) > 0 {
		if err := json.Unmarshal(p.FrequentLocations, &out.FrequentLocations); err != nil {
			return warnings.UserProfile{}, fmt.Errorf("decode frequent locations: %w", err)
		}
	}
	return out, nil
}

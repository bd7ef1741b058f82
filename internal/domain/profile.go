package domain

import (
	"time"

	"github.com/gdugdh24/yuno-backend/internal/geo"
)

// UserProfile is the matchable part of a user account.
type UserProfile struct {
	ID        int       `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Age       *int      `json:"age,omitempty" db:"age"`
	City      *string   `json:"city" db:"city"`
	School    *string   `json:"school" db:"school"`
	College   *string   `json:"college" db:"college"`
	Workplace *string   `json:"workplace" db:"workplace"`
	Interests []string  `json:"interests" db:"interests"`
	Latitude  *float64  `json:"latitude" db:"latitude"`
	Longitude *float64  `json:"longitude" db:"longitude"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Location returns the stored coordinates. ok is false when either
// coordinate is missing or the pair is not a valid point.
func (p *UserProfile) Location() (geo.Point, bool) {
	if p == nil || p.Latitude == nil || p.Longitude == nil {
		return geo.Point{}, false
	}
	pt := geo.Point{Lat: *p.Latitude, Lng: *p.Longitude}
	if pt.Validate() != nil {
		return geo.Point{}, false
	}
	return pt, true
}

// SetLocation replaces the stored coordinates; nil clears them.
func (p *UserProfile) SetLocation(pt *geo.Point) {
	if pt == nil {
		p.Latitude, p.Longitude = nil, nil
		return
	}
	lat, lng := pt.Lat, pt.Lng
	p.Latitude, p.Longitude = &lat, &lng
}

// Clone returns a deep copy.
func (p *UserProfile) Clone() *UserProfile {
	if p == nil {
		return nil
	}
	c := *p
	c.Age = cloneInt(p.Age)
	c.City = cloneString(p.City)
	c.School = cloneString(p.School)
	c.College = cloneString(p.College)
	c.Workplace = cloneString(p.Workplace)
	c.Latitude = cloneFloat(p.Latitude)
	c.Longitude = cloneFloat(p.Longitude)
	if p.Interests != nil {
		c.Interests = append([]string(nil), p.Interests...)
	}
	return &c
}

// NormalizeInterests collapses duplicates, keeping first-seen order.
// Matching stays case-sensitive, so "Music" and "music" are both kept.
func NormalizeInterests(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneInt(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

package domain

import "github.com/gdugdh24/yuno-backend/internal/geo"

// Affiliation attribute names, in the order they are reported.
const (
	AttributeCity      = "city"
	AttributeSchool    = "school"
	AttributeCollege   = "college"
	AttributeWorkplace = "workplace"
)

// DiscoveryQuery is a request-scoped discovery search.
type DiscoveryQuery struct {
	RequesterID int
	// Origin overrides the requester's stored location when set.
	Origin   *geo.Point
	RadiusKm float64
	Limit    int
	Offset   int
}

// Candidate is a spatial index hit.
type Candidate struct {
	Profile    *UserProfile
	DistanceKm float64
}

// CommonalityResult is a scored discovery candidate.
// Score always equals len(MatchedAttributes) + len(MatchedInterests).
type CommonalityResult struct {
	Candidate         *UserProfile `json:"candidate"`
	DistanceKm        float64      `json:"distance_km"`
	Score             int          `json:"score"`
	MatchedAttributes []string     `json:"matched_attributes"`
	MatchedInterests  []string     `json:"matched_interests"`
}

// Page is one page of ranked discovery results.
//
// HasMore is true when the page is full. A full page does not prove that
// more results exist; callers treat it as a hint.
type Page struct {
	Results  []CommonalityResult
	Origin   geo.Point
	RadiusKm float64
	Limit    int
	Offset   int
	HasMore  bool
}

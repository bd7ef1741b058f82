package discovery

import (
	"context"
	"fmt"
	"sort"

	"github.com/gdugdh24/yuno-backend/internal/domain"
)

const (
	statsRadiusKm        = 10.0
	statsSampleSize      = 100
	popularInterestLimit = 20
)

type NearbyCounts struct {
	Within1Km  int `json:"within_1km"`
	Within5Km  int `json:"within_5km"`
	Within10Km int `json:"within_10km"`
}

type CommonalityBuckets struct {
	None   int `json:"no_commonalities"`
	Low    int `json:"low_commonalities"`
	Medium int `json:"medium_commonalities"`
	High   int `json:"high_commonalities"`
}

type AttributeCounts struct {
	SameCity        int `json:"same_city"`
	SameSchool      int `json:"same_school"`
	SameCollege     int `json:"same_college"`
	SameWorkplace   int `json:"same_workplace"`
	SharedInterests int `json:"shared_interests"`
}

// Recommendations has no location hint: Stats fails with
// ErrLocationRequired when the requester has no stored location.
type Recommendations struct {
	CompleteProfile bool `json:"complete_profile"`
	AddInterests    bool `json:"add_interests"`
}

// Stats summarises the requester's surroundings.
type Stats struct {
	Nearby        NearbyCounts `json:"nearby"`
	Commonalities struct {
		ByCommonality CommonalityBuckets `json:"by_commonality"`
		ByAttribute   AttributeCounts    `json:"by_attribute"`
	} `json:"commonalities"`
	Recommendations Recommendations `json:"recommendations"`
}

// InterestCount is one entry of the popular interests list.
type InterestCount struct {
	Interest string `json:"interest"`
	Count    int    `json:"count"`
}

// Stats counts users within 1, 5 and 10 km of the requester's stored
// location and breaks down commonality over the best 100 of them.
func (uc *DiscoveryUseCase) Stats(ctx context.Context, requesterID int) (*Stats, error) {
	requester, err := uc.requester(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	origin, ok := requester.Location()
	if !ok {
		return nil, domain.ErrLocationRequired
	}

	ranked, _, err := uc.rank(ctx, requester, origin, statsRadiusKm)
	if err != nil {
		return nil, err
	}

	var s Stats
	for _, r := range ranked {
		if r.DistanceKm <= 1 {
			s.Nearby.Within1Km++
		}
		if r.DistanceKm <= 5 {
			s.Nearby.Within5Km++
		}
		s.Nearby.Within10Km++
	}

	for _, r := range paginate(ranked, 0, statsSampleSize) {
		switch {
		case r.Score == 0:
			s.Commonalities.ByCommonality.None++
		case r.Score <= 2:
			s.Commonalities.ByCommonality.Low++
		case r.Score <= 4:
			s.Commonalities.ByCommonality.Medium++
		default:
			s.Commonalities.ByCommonality.High++
		}

		for _, attr := range r.MatchedAttributes {
			switch attr {
			case domain.AttributeCity:
				s.Commonalities.ByAttribute.SameCity++
			case domain.AttributeSchool:
				s.Commonalities.ByAttribute.SameSchool++
			case domain.AttributeCollege:
				s.Commonalities.ByAttribute.SameCollege++
			case domain.AttributeWorkplace:
				s.Commonalities.ByAttribute.SameWorkplace++
			}
		}
		if len(r.MatchedInterests) > 0 {
			s.Commonalities.ByAttribute.SharedInterests++
		}
	}

	s.Recommendations = Recommendations{
		CompleteProfile: empty(requester.City) || empty(requester.School) ||
			empty(requester.College) || empty(requester.Workplace) || len(requester.Interests) == 0,
		AddInterests: len(requester.Interests) < 3,
	}
	return &s, nil
}

// PopularInterests returns the most common interests among users within
// radiusKm of the requester, requester excluded.
func (uc *DiscoveryUseCase) PopularInterests(ctx context.Context, requesterID int, radiusKm float64) ([]InterestCount, error) {
	if err := uc.validateRadius(radiusKm); err != nil {
		return nil, err
	}

	requester, err := uc.requester(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	origin, err := uc.resolveOrigin(requester, nil)
	if err != nil {
		return nil, err
	}

	hits, err := uc.index.Query(ctx, origin, radiusKm, requester.ID)
	if err != nil {
		return nil, fmt.Errorf("spatial query failed: %w", err)
	}

	counts := make(map[string]int)
	seen := make(map[int]struct{}, len(hits))
	for _, hit := range hits {
		if hit.Profile == nil || hit.Profile.ID == requester.ID || hit.DistanceKm > radiusKm {
			continue
		}
		if _, dup := seen[hit.Profile.ID]; dup {
			continue
		}
		seen[hit.Profile.ID] = struct{}{}
		for _, interest := range domain.NormalizeInterests(hit.Profile.Interests) {
			counts[interest]++
		}
	}

	out := make([]InterestCount, 0, len(counts))
	for interest, n := range counts {
		out = append(out, InterestCount{Interest: interest, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Interest < out[j].Interest
	})
	if len(out) > popularInterestLimit {
		out = out[:popularInterestLimit]
	}
	return out, nil
}

func empty(s *string) bool {
	return s == nil || *s == ""
}

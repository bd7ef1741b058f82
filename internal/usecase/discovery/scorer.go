package discovery

import "github.com/gdugdh24/yuno-backend/internal/domain"

// Score compares a candidate against the requester. Each affiliation
// counts once when both sides hold the same non-empty value; every shared
// interest counts once. Comparison is exact and case-sensitive.
//
// DistanceKm is left for the caller to fill.
func Score(requester, candidate *domain.UserProfile) domain.CommonalityResult {
	res := domain.CommonalityResult{
		Candidate:         candidate,
		MatchedAttributes: []string{},
		MatchedInterests:  []string{},
	}
	if requester == nil || candidate == nil {
		return res
	}

	attrs := []struct {
		name string
		a, b *string
	}{
		{domain.AttributeCity, requester.City, candidate.City},
		{domain.AttributeSchool, requester.School, candidate.School},
		{domain.AttributeCollege, requester.College, candidate.College},
		{domain.AttributeWorkplace, requester.Workplace, candidate.Workplace},
	}
	for _, attr := range attrs {
		if sameValue(attr.a, attr.b) {
			res.MatchedAttributes = append(res.MatchedAttributes, attr.name)
		}
	}

	if len(requester.Interests) > 0 && len(candidate.Interests) > 0 {
		mine := make(map[string]struct{}, len(requester.Interests))
		for _, s := range requester.Interests {
			mine[s] = struct{}{}
		}
		for _, s := range domain.NormalizeInterests(candidate.Interests) {
			if _, ok := mine[s]; ok {
				res.MatchedInterests = append(res.MatchedInterests, s)
			}
		}
	}

	res.Score = len(res.MatchedAttributes) + len(res.MatchedInterests)
	return res
}

func sameValue(a, b *string) bool {
	return a != nil && b != nil && *a != "" && *a == *b
}

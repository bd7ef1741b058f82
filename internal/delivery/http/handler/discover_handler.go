package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gdugdh24/yuno-backend/internal/domain"
	"github.com/gdugdh24/yuno-backend/internal/geo"
	"github.com/gdugdh24/yuno-backend/internal/usecase/discovery"
)

type DiscoverHandler struct {
	discoveryUseCase *discovery.DiscoveryUseCase
}

func NewDiscoverHandler(discoveryUseCase *discovery.DiscoveryUseCase) *DiscoverHandler {
	return &DiscoverHandler{
		discoveryUseCase: discoveryUseCase,
	}
}

// DiscoverRequest represents discover query parameters
type DiscoverRequest struct {
	Radius    *float64 `form:"radius" binding:"omitempty,gt=0"`
	Latitude  *float64 `form:"latitude" binding:"omitempty,min=-90,max=90"`
	Longitude *float64 `form:"longitude" binding:"omitempty,min=-180,max=180"`
	Limit     *int     `form:"limit" binding:"omitempty,min=1"`
	Offset    *int     `form:"offset" binding:"omitempty,min=0"`
}

type Distance struct {
	Km    float64 `json:"km"`
	Miles float64 `json:"miles"`
}

type Commonalities struct {
	Score      int      `json:"score"`
	Attributes []string `json:"attributes"`
	Interests  []string `json:"interests"`
	Total      int      `json:"total"`
}

// DiscoveredUser is one ranked result
type DiscoveredUser struct {
	ID            int           `json:"id"`
	Name          string        `json:"name"`
	Age           *int          `json:"age,omitempty"`
	City          *string       `json:"city"`
	School        *string       `json:"school"`
	College       *string       `json:"college"`
	Workplace     *string       `json:"workplace"`
	Interests     []string      `json:"interests"`
	Distance      Distance      `json:"distance"`
	Commonalities Commonalities `json:"commonalities"`
}

type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

type SearchParameters struct {
	Radius float64   `json:"radius"`
	Center geo.Point `json:"center"`
}

type CommonalityStats struct {
	WithCommonalities int     `json:"with_commonalities"`
	AverageScore      float64 `json:"average_score"`
}

type DiscoverSummary struct {
	TotalFound       int              `json:"total_found"`
	AverageDistance  float64          `json:"average_distance"`
	CommonalityStats CommonalityStats `json:"commonality_stats"`
}

// DiscoverResponse represents one page of nearby users
type DiscoverResponse struct {
	Users            []DiscoveredUser `json:"users"`
	Pagination       Pagination       `json:"pagination"`
	SearchParameters SearchParameters `json:"search_parameters"`
	Summary          DiscoverSummary  `json:"summary"`
}

// Discover handles GET /discover
// @Summary Discover nearby users
// @Description Nearby users ranked by shared attributes, then distance
// @Tags discover
// @Security BearerAuth
// @Produce json
// @Param radius query number false "Search radius in km"
// @Param latitude query number false "Search center latitude"
// @Param longitude query number false "Search center longitude"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} DiscoverResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /discover [get]
func (h *DiscoverHandler) Discover(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req DiscoverRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: bindingMessage(err)})
		return
	}
	if (req.Latitude == nil) != (req.Longitude == nil) {
		respondError(c, domain.ErrInvalidOrigin, "")
		return
	}

	cfg := h.discoveryUseCase.Config()
	q := domain.DiscoveryQuery{
		RequesterID: userID,
		RadiusKm:    cfg.DefaultRadiusKm,
		Limit:       cfg.DefaultLimit,
	}
	if req.Radius != nil {
		q.RadiusKm = *req.Radius
	}
	if req.Limit != nil {
		q.Limit = *req.Limit
	}
	if req.Offset != nil {
		q.Offset = *req.Offset
	}
	if req.Latitude != nil {
		q.Origin = &geo.Point{Lat: *req.Latitude, Lng: *req.Longitude}
	}

	page, err := h.discoveryUseCase.Discover(c.Request.Context(), q)
	if err != nil {
		respondError(c, err, "failed to discover users")
		return
	}

	c.JSON(http.StatusOK, newDiscoverResponse(page))
}

func newDiscoverResponse(page *domain.Page) DiscoverResponse {
	resp := DiscoverResponse{
		Users: make([]DiscoveredUser, 0, len(page.Results)),
		Pagination: Pagination{
			Limit:   page.Limit,
			Offset:  page.Offset,
			HasMore: page.HasMore,
		},
		SearchParameters: SearchParameters{
			Radius: page.RadiusKm,
			Center: page.Origin,
		},
	}

	var totalDistance float64
	var totalScore int
	for _, r := range page.Results {
		p := r.Candidate
		interests := p.Interests
		if interests == nil {
			interests = []string{}
		}
		resp.Users = append(resp.Users, DiscoveredUser{
			ID:        p.ID,
			Name:      p.Name,
			Age:       p.Age,
			City:      p.City,
			School:    p.School,
			College:   p.College,
			Workplace: p.Workplace,
			Interests: interests,
			Distance: Distance{
				Km:    geo.Round2(r.DistanceKm),
				Miles: geo.Round2(geo.KmToMiles(r.DistanceKm)),
			},
			Commonalities: Commonalities{
				Score:      r.Score,
				Attributes: r.MatchedAttributes,
				Interests:  r.MatchedInterests,
				Total:      len(r.MatchedAttributes) + len(r.MatchedInterests),
			},
		})

		totalDistance += r.DistanceKm
		totalScore += r.Score
		if r.Score > 0 {
			resp.Summary.CommonalityStats.WithCommonalities++
		}
	}

	if n := len(page.Results); n > 0 {
		resp.Summary.TotalFound = n
		resp.Summary.AverageDistance = geo.Round2(totalDistance / float64(n))
		resp.Summary.CommonalityStats.AverageScore = geo.Round2(float64(totalScore) / float64(n))
	}
	return resp
}

// Stats handles GET /discover/stats
// @Summary Discovery statistics
// @Tags discover
// @Security BearerAuth
// @Produce json
// @Success 200 {object} discovery.Stats
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /discover/stats [get]
func (h *DiscoverHandler) Stats(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	stats, err := h.discoveryUseCase.Stats(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "failed to get discovery stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}

// PopularInterestsRequest represents popular interests query parameters
type PopularInterestsRequest struct {
	Radius *float64 `form:"radius" binding:"omitempty,gt=0"`
}

// PopularInterests handles GET /discover/popular-interests
// @Summary Popular interests nearby
// @Tags discover
// @Security BearerAuth
// @Produce json
// @Param radius query number false "Search radius in km"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} ErrorResponse
// @Router /discover/popular-interests [get]
func (h *DiscoverHandler) PopularInterests(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req PopularInterestsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: bindingMessage(err)})
		return
	}
	radius := h.discoveryUseCase.Config().DefaultRadiusKm
	if req.Radius != nil {
		radius = *req.Radius
	}

	interests, err := h.discoveryUseCase.PopularInterests(c.Request.Context(), userID, radius)
	if err != nil {
		respondError(c, err, "failed to get popular interests")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"interests": interests,
		"radius":    radius,
	})
}

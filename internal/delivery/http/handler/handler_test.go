package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gdugdh24/yuno-backend/internal/domain"
	"github.com/gdugdh24/yuno-backend/internal/logging"
	"github.com/gdugdh24/yuno-backend/internal/repository"
	"github.com/gdugdh24/yuno-backend/internal/repository/memory"
	"github.com/gdugdh24/yuno-backend/internal/usecase/discovery"
	"github.com/gdugdh24/yuno-backend/internal/usecase/profile"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	logging.Init(logging.Config{Output: io.Discard})
	os.Exit(m.Run())
}

func str(s string) *string { return &s }

func located(id int, lat, lng float64) *domain.UserProfile {
	return &domain.UserProfile{ID: id, Name: "user", Latitude: &lat, Longitude: &lng}
}

type fixture struct {
	engine *gin.Engine
	repo   *memory.ProfileRepository
}

// newFixture wires handlers over an in-memory store and authenticates
// every request as userID.
func newFixture(t *testing.T, userID int, profiles ...*domain.UserProfile) *fixture {
	t.Helper()
	ctx := context.Background()
	repo := memory.NewProfileRepository()
	index := memory.NewGridIndex(5)
	for _, p := range profiles {
		require.NoError(t, repo.Create(ctx, p))
	}
	_, err := repository.WarmSpatialIndex(ctx, repo, index)
	require.NoError(t, err)

	dh := NewDiscoverHandler(discovery.NewDiscoveryUseCase(repo, index, discovery.DefaultConfig()))
	ph := NewProfileHandler(profile.NewProfileUseCase(repo, index))

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if userID > 0 {
			c.Set("user_id", userID)
		}
		c.Next()
	})
	r.GET("/discover", dh.Discover)
	r.GET("/discover/stats", dh.Stats)
	r.GET("/discover/popular-interests", dh.PopularInterests)
	r.GET("/profile/me", ph.GetMyProfile)
	r.PUT("/profile/me", ph.UpdateMyProfile)
	r.GET("/profile/:user_id", ph.GetProfileByUserID)

	return &fixture{engine: r, repo: repo}
}

func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error
}

func TestDiscover(t *testing.T) {
	requester := located(1, 19.0760, 72.8777)
	requester.City = str("Mumbai")
	requester.Interests = []string{"music", "chess", "travel"}

	match := located(2, 19.0760, 72.8777)
	match.City = str("Mumbai")
	match.Interests = []string{"cooking", "music", "chess"}

	stranger := located(3, 19.0800, 72.8777)

	f := newFixture(t, 1, requester, match, stranger)
	w := f.do(http.MethodGet, "/discover?radius=10", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp DiscoverResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Users, 2)

	first := resp.Users[0]
	assert.Equal(t, 2, first.ID)
	assert.Equal(t, 3, first.Commonalities.Score)
	assert.Equal(t, 3, first.Commonalities.Total)
	assert.Equal(t, []string{"city"}, first.Commonalities.Attributes)
	assert.Equal(t, []string{"music", "chess"}, first.Commonalities.Interests)
	assert.Equal(t, 0.0, first.Distance.Km)

	second := resp.Users[1]
	assert.Equal(t, 3, second.ID)
	assert.Equal(t, 0, second.Commonalities.Score)
	assert.InDelta(t, 0.44, second.Distance.Km, 0.01)
	assert.InDelta(t, second.Distance.Km*0.621371, second.Distance.Miles, 0.01)

	assert.Equal(t, 20, resp.Pagination.Limit)
	assert.False(t, resp.Pagination.HasMore)
	assert.Equal(t, 10.0, resp.SearchParameters.Radius)
	assert.InDelta(t, 19.0760, resp.SearchParameters.Center.Lat, 1e-9)
	assert.Equal(t, 2, resp.Summary.TotalFound)
	assert.Equal(t, 1, resp.Summary.CommonalityStats.WithCommonalities)
	assert.Equal(t, 1.5, resp.Summary.CommonalityStats.AverageScore)
}

func TestDiscover_Pagination(t *testing.T) {
	profiles := []*domain.UserProfile{located(1, 10, 10)}
	for id := 2; id <= 6; id++ {
		profiles = append(profiles, located(id, 10, 10))
	}
	f := newFixture(t, 1, profiles...)

	w := f.do(http.MethodGet, "/discover?limit=2&offset=2", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp DiscoverResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Users, 2)
	assert.Equal(t, 4, resp.Users[0].ID)
	assert.Equal(t, 5, resp.Users[1].ID)
	assert.True(t, resp.Pagination.HasMore)
	assert.Equal(t, 2, resp.Pagination.Offset)
}

func TestDiscover_ExplicitOrigin(t *testing.T) {
	requester := &domain.UserProfile{ID: 1, Name: "nowhere"}
	f := newFixture(t, 1, requester, located(2, 48.8566, 2.3522))

	w := f.do(http.MethodGet, "/discover?latitude=48.8566&longitude=2.3522", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp DiscoverResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Users, 1)
	assert.Equal(t, 2, resp.Users[0].ID)
	assert.Empty(t, resp.Users[0].Commonalities.Attributes)
	assert.NotNil(t, resp.Users[0].Commonalities.Interests)
}

func TestDiscover_Errors(t *testing.T) {
	tests := []struct {
		name   string
		userID int
		target string
		status int
		msg    string
	}{
		{"unauthenticated", 0, "/discover", http.StatusUnauthorized, "unauthorized"},
		{"no location", 2, "/discover", http.StatusBadRequest, "Location coordinates are required for discovery"},
		{"unknown requester", 99, "/discover", http.StatusNotFound, "user not found"},
		{"lone latitude", 1, "/discover?latitude=10", http.StatusBadRequest, domain.ErrInvalidOrigin.Error()},
		{"latitude out of range", 1, "/discover?latitude=91&longitude=0", http.StatusBadRequest, ""},
		{"negative radius", 1, "/discover?radius=-1", http.StatusBadRequest, ""},
		{"radius above max", 1, "/discover?radius=1000", http.StatusBadRequest, domain.ErrInvalidRadius.Error()},
		{"limit above max", 1, "/discover?limit=1000", http.StatusBadRequest, domain.ErrInvalidPagination.Error()},
		{"zero limit", 1, "/discover?limit=0", http.StatusBadRequest, ""},
		{"bad number", 1, "/discover?radius=abc", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.userID, located(1, 10, 10), &domain.UserProfile{ID: 2, Name: "nowhere"})
			w := f.do(http.MethodGet, tt.target, "")
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.msg != "" {
				assert.Equal(t, tt.msg, decodeError(t, w))
			}
		})
	}
}

func TestStatsAndPopularInterests(t *testing.T) {
	requester := located(1, 10, 10)
	requester.Interests = []string{"music"}
	other := located(2, 10, 10)
	other.Interests = []string{"music", "chess"}
	third := located(3, 10.01, 10)
	third.Interests = []string{"music"}

	f := newFixture(t, 1, requester, other, third)

	w := f.do(http.MethodGet, "/discover/stats", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var stats discovery.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Nearby.Within1Km)
	assert.Equal(t, 2, stats.Nearby.Within5Km)
	assert.Equal(t, 2, stats.Nearby.Within10Km)

	w = f.do(http.MethodGet, "/discover/popular-interests?radius=5", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Interests []discovery.InterestCount `json:"interests"`
		Radius    float64                   `json:"radius"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 5.0, resp.Radius)
	require.Len(t, resp.Interests, 2)
	assert.Equal(t, "music", resp.Interests[0].Interest)
	assert.Equal(t, 2, resp.Interests[0].Count)

	w = f.do(http.MethodGet, "/discover/popular-interests?radius=0", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProfileEndpoints(t *testing.T) {
	me := located(1, 10, 10)
	me.City = str("Pune")
	f := newFixture(t, 1, me, located(2, 10.01, 10), &domain.UserProfile{ID: 3, Name: "nowhere"})

	w := f.do(http.MethodGet, "/profile/me", "")
	require.Equal(t, http.StatusOK, w.Code)
	var got domain.UserProfile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Pune", *got.City)

	w = f.do(http.MethodPut, "/profile/me", `{"workplace":"Acme","interests":["go","go","chess"]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Acme", *got.Workplace)
	assert.Equal(t, []string{"go", "chess"}, got.Interests)

	w = f.do(http.MethodPut, "/profile/me", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPut, "/profile/me", `{"latitude":12}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPut, "/profile/me", `{"latitude":95,"longitude":0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodGet, "/profile/2", "")
	require.Equal(t, http.StatusOK, w.Code)
	var other struct {
		ID         int      `json:"id"`
		DistanceKm *float64 `json:"distance_km"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &other))
	assert.Equal(t, 2, other.ID)
	require.NotNil(t, other.DistanceKm)
	assert.InDelta(t, 1.11, *other.DistanceKm, 0.01)

	w = f.do(http.MethodGet, "/profile/3", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "distance_km")

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/profile/42", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/profile/abc", "").Code)
}
